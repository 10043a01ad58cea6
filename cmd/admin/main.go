package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/archive"
	persistlog "paradox.game/internal/persistence/log"
	"paradox.game/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "", "game id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "games")
	if *gameID != "" {
		base = filepath.Join(base, *gameID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type snapshotSummary struct {
	Path        string   `json:"path"`
	GameID      string   `json:"game_id"`
	Seq         uint64   `json:"seq"`
	Owner       string   `json:"owner"`
	Admins      []string `json:"admins"`
	Paused      bool     `json:"paused"`
	ActiveLevel uint64   `json:"active_level"`
	Levels      int      `json:"levels"`
	Minted      uint64   `json:"minted"`
	TotalItems  uint64   `json:"total_items"`
	SoldOut     bool     `json:"sold_out"`
	Treasury    string   `json:"treasury"`
	Applied     uint64   `json:"applied"`
	Rejected    uint64   `json:"rejected"`

	SoldOutArchive *archive.SoldOutMeta `json:"sold_out_archive,omitempty"`
}

func summarize(path string, snap snapshot.SnapshotV1) snapshotSummary {
	return snapshotSummary{
		Path:        path,
		GameID:      snap.Header.GameID,
		Seq:         snap.Header.Seq,
		Owner:       snap.Owner,
		Admins:      snap.Admins,
		Paused:      snap.Paused,
		ActiveLevel: snap.ActiveLevel,
		Levels:      len(snap.Levels),
		Minted:      snap.Minted(),
		TotalItems:  snap.Config.TotalItems,
		SoldOut:     snap.SoldOut(),
		Treasury:    snap.Treasury,
		Applied:     snap.Counters.Applied,
		Rejected:    snap.Counters.Rejected,
	}
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "paradox", "game id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	levels := fs.Bool("levels", false, "also print one line per level")
	_ = fs.Parse(args)

	gameDir := filepath.Join(*dataDir, "games", *gameID)
	path := strings.TrimSpace(*snapPath)
	if path == "" {
		path = latestSnapshot(gameDir)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run server until it writes one")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	sum := summarize(path, snap)
	if meta, ok, err := archive.ReadSoldOutMeta(gameDir); err == nil && ok {
		sum.SoldOutArchive = &meta
	}
	printJSON(sum)
	if *levels {
		for _, lv := range snap.Levels {
			printJSON(struct {
				ID                 uint64 `json:"id"`
				ImageURL           string `json:"image_url"`
				Initialized        bool   `json:"initialized"`
				MintsSoFar         uint64 `json:"mints_so_far"`
				MintsWithoutAnswer uint64 `json:"mints_without_answer"`
			}{lv.ID, lv.ImageURL, lv.Initialized, lv.MintsSoFar, lv.MintsWithoutAnswer})
		}
	}
}

type auditFilter struct {
	Actor  string
	Action string
	Since  uint64
}

func (f auditFilter) match(e game.AuditEntry) bool {
	if e.Seq < f.Since {
		return false
	}
	if f.Actor != "" && !strings.EqualFold(e.Actor, f.Actor) {
		return false
	}
	if f.Action != "" && e.Action != strings.ToUpper(f.Action) {
		return false
	}
	return true
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "paradox", "game id")
	actor := fs.String("actor", "", "actor address filter")
	action := fs.String("action", "", "action filter (e.g. CREATE_LEVEL)")
	since := fs.Uint64("since_seq", 0, "only entries at or after this seq")
	_ = fs.Parse(args)

	files, err := persistlog.ListFiles(filepath.Join(*dataDir, "games", *gameID, "audit"), "audit")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	filter := auditFilter{Actor: strings.TrimSpace(*actor), Action: strings.TrimSpace(*action), Since: *since}
	n := 0
	for _, path := range files {
		err := readAuditFile(path, func(e game.AuditEntry) {
			if filter.match(e) {
				printJSON(e)
				n++
			}
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "%d entries from %d files\n", n, len(files))
}

func readAuditFile(path string, fn func(game.AuditEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e game.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		fn(e)
	}
	if err := sc.Err(); err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	return nil
}

func latestSnapshot(gameDir string) string {
	dir := filepath.Join(gameDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestSeq uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		seq, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || seq > bestSeq {
			bestSeq = seq
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
