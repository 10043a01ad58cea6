package archive

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"paradox.game/internal/persistence/snapshot"
)

const KindSoldOut = "sold_out"

type SoldOutMeta struct {
	GameID     string `json:"game_id"`
	Seq        uint64 `json:"seq"`
	TotalItems uint64 `json:"total_items"`
	Minted     uint64 `json:"minted"`
	Levels     int    `json:"levels"`
	Treasury   string `json:"treasury"`
	Snapshot   string `json:"snapshot"`
	CreatedAt  string `json:"created_at"`
}

// ArchiveSoldOutSnapshot copies the first snapshot that shows the whole supply minted into
// gameDir/archives/sold_out/. Later sold-out snapshots are ignored: the archive keeps the
// state at the moment the game ended.
func ArchiveSoldOutSnapshot(gameDir, snapshotPath string, snap snapshot.SnapshotV1) (archivedPath string, archived bool, err error) {
	if !snap.SoldOut() {
		return "", false, nil
	}
	archiveDir := filepath.Join(gameDir, "archives", KindSoldOut)
	metaPath := filepath.Join(archiveDir, "meta.json")
	if _, err := os.Stat(metaPath); err == nil {
		return "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := SoldOutMeta{
		GameID:     snap.Header.GameID,
		Seq:        snap.Header.Seq,
		TotalItems: snap.Config.TotalItems,
		Minted:     snap.Minted(),
		Levels:     len(snap.Levels),
		Treasury:   snap.Treasury,
		Snapshot:   filepath.Base(dst),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

// ReadSoldOutMeta returns the archive metadata, or ok=false when the game has not sold out.
func ReadSoldOutMeta(gameDir string) (meta SoldOutMeta, ok bool, err error) {
	b, err := os.ReadFile(filepath.Join(gameDir, "archives", KindSoldOut, "meta.json"))
	if os.IsNotExist(err) {
		return meta, false, nil
	}
	if err != nil {
		return meta, false, err
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, false, err
	}
	return meta, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
