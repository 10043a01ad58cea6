package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"paradox.game/internal/persistence/snapshot"
)

// Stats are the queue counters of an index backend. Writes never block the game loop, so
// a full queue drops the row and counts it here; the JSONL logs stay authoritative.
type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropTxTotal            uint64
	DropAuditTotal         uint64
	DropSnapshotTotal      uint64
	DropSnapshotStateTotal uint64
	DropArchiveTotal       uint64

	FlushFailTotal    uint64
	QueueDroppedTotal uint64
}

// levelRow and tokenRow are the read-model projections of a snapshot.
type levelRow struct {
	ID                 uint64 `json:"id"`
	ImageURL           string `json:"image_url"`
	Initialized        bool   `json:"initialized"`
	MintsSoFar         uint64 `json:"mints_so_far"`
	MintsWithoutAnswer uint64 `json:"mints_without_answer"`
}

type snapshotRow struct {
	Seq      uint64 `json:"seq"`
	Path     string `json:"path"`
	Levels   int    `json:"levels"`
	Minted   uint64 `json:"minted"`
	SoldOut  bool   `json:"sold_out"`
	Paused   bool   `json:"paused"`
	Treasury string `json:"treasury"`
}

type archiveRow struct {
	Kind       string `json:"kind"`
	Seq        uint64 `json:"seq"`
	Path       string `json:"path"`
	Minted     uint64 `json:"minted"`
	RecordedAt string `json:"recorded_at"`
}

type configRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

func newSnapshotRow(path string, snap snapshot.SnapshotV1) snapshotRow {
	return snapshotRow{
		Seq:      snap.Header.Seq,
		Path:     path,
		Levels:   len(snap.Levels),
		Minted:   snap.Minted(),
		SoldOut:  snap.SoldOut(),
		Paused:   snap.Paused,
		Treasury: snap.Treasury,
	}
}

func levelRows(snap snapshot.SnapshotV1) []levelRow {
	out := make([]levelRow, 0, len(snap.Levels))
	for _, lv := range snap.Levels {
		out = append(out, levelRow{
			ID:                 lv.ID,
			ImageURL:           lv.ImageURL,
			Initialized:        lv.Initialized,
			MintsSoFar:         lv.MintsSoFar,
			MintsWithoutAnswer: lv.MintsWithoutAnswer,
		})
	}
	return out
}

func newConfigRow(name string, v any) (configRow, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return configRow{}, err
	}
	sum := sha256.Sum256(b)
	return configRow{
		Name:      name,
		Digest:    hex.EncodeToString(sum[:]),
		JSON:      string(b),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}
