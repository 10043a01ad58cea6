package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	GameID  string `json:"game_id"`
	// Seq is the next transaction sequence number: the snapshot includes every tx below it.
	Seq uint64 `json:"seq"`
}

// SnapshotV1 is the full game state. Addresses are 0x-hex strings and amounts are decimal
// wei strings so this package stays independent of the game's types.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Config ConfigV1 `json:"config"`

	Owner       string    `json:"owner"`
	Admins      []string  `json:"admins"`
	Paused      bool      `json:"paused"`
	ActiveLevel uint64    `json:"active_level"`
	Levels      []LevelV1 `json:"levels"`

	UserMints []UserMintV1 `json:"user_mints,omitempty"`
	// Tokens[i] is the owner of token i.
	Tokens   []string `json:"tokens,omitempty"`
	Treasury string   `json:"treasury"`

	Counters CountersV1 `json:"counters"`
}

type ConfigV1 struct {
	BaseURI                           string `json:"base_uri"`
	TotalItems                        uint64 `json:"total_items"`
	ItemsPerLevel                     uint64 `json:"items_per_level"`
	MaxPurchasesWithoutAnswerPerLevel uint64 `json:"max_purchases_without_answer_per_level"`
	MaxMintsPerUserPerLevel           uint64 `json:"max_mints_per_user_per_level"`
	PricePerItem                      string `json:"price_per_item"`
	MaxPricePerItem                   string `json:"max_price_per_item"`
	SnapshotEveryTxs                  int    `json:"snapshot_every_txs,omitempty"`
}

type LevelV1 struct {
	ID                 uint64 `json:"id"`
	ImageURL           string `json:"image_url"`
	AnswerHash         string `json:"answer_hash"`
	Initialized        bool   `json:"initialized"`
	MintsSoFar         uint64 `json:"mints_so_far"`
	MintsWithoutAnswer uint64 `json:"mints_without_answer"`
}

type UserMintV1 struct {
	Level uint64 `json:"level"`
	User  string `json:"user"`
	Count uint64 `json:"count"`
}

type CountersV1 struct {
	Applied  uint64 `json:"applied"`
	Rejected uint64 `json:"rejected"`
}

// Minted is the global supply recorded in the snapshot.
func (s SnapshotV1) Minted() uint64 {
	var n uint64
	for _, lv := range s.Levels {
		n += lv.MintsSoFar
	}
	return n
}

// SoldOut reports whether the snapshot has issued the whole configured supply.
func (s SnapshotV1) SoldOut() bool {
	return s.Config.TotalItems > 0 && s.Minted() >= s.Config.TotalItems
}

// WriteSnapshot writes to a temp file and renames it over path, so a reader never sees a
// partial snapshot.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeSnapshotFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeSnapshotFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is for humans and tools; gob carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
