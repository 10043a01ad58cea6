// Package replay re-executes logged transactions on a game and checks every outcome and
// digest against the log.
package replay

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"paradox.game/internal/game"
	persistlog "paradox.game/internal/persistence/log"
)

// ErrDone stops a replay once the log passes the requested last seq.
var ErrDone = errors.New("replay reached to_seq")

// lastEntry keeps the log entry Execute produced for the tx just replayed.
type lastEntry struct {
	entry game.TxLogEntry
}

func (l *lastEntry) WriteTx(e game.TxLogEntry) error {
	l.entry = e
	return nil
}

type Replayer struct {
	g          *game.Game
	last       *lastEntry
	verifyFrom uint64
	toSeq      uint64
	checked    uint64
}

// New takes over g's tx logger until the replay is done; callers install their own
// loggers afterwards. Entries below g's current seq are skipped, and toSeq 0 means no limit.
func New(g *game.Game, fromSeq, toSeq uint64) *Replayer {
	last := &lastEntry{}
	g.SetTxLogger(last)
	verifyFrom := fromSeq
	if verifyFrom < g.CurrentSeq() {
		verifyFrom = g.CurrentSeq()
	}
	return &Replayer{g: g, last: last, verifyFrom: verifyFrom, toSeq: toSeq}
}

func (r *Replayer) Game() *game.Game { return r.g }

// Checked is the number of entries whose digest was verified.
func (r *Replayer) Checked() uint64 { return r.checked }

// Dir replays every txs-*.jsonl.zst file in dir. A missing dir is an empty log.
func (r *Replayer) Dir(dir string) error {
	files, err := persistlog.ListFiles(dir, "txs")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return r.Files(files)
}

func (r *Replayer) Files(files []string) error {
	for _, path := range files {
		err := persistlog.ReadTxFile(path, func(e game.TxLogEntry) error {
			if err := r.Apply(e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			return nil
		})
		if errors.Is(err, ErrDone) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Apply re-executes one logged transaction and compares the outcome with the log.
func (r *Replayer) Apply(e game.TxLogEntry) error {
	start := r.g.CurrentSeq()
	if e.Seq < start {
		return nil
	}
	if r.toSeq != 0 && e.Seq > r.toSeq {
		return ErrDone
	}
	if e.Seq != start {
		return fmt.Errorf("seq gap: want=%d got=%d", start, e.Seq)
	}

	rec, _ := r.g.Execute(e.Tx)
	if rec.OK != e.Receipt.OK || rec.Code != e.Receipt.Code {
		return fmt.Errorf("outcome mismatch at seq %d: got ok=%v code=%s want ok=%v code=%s",
			e.Seq, rec.OK, rec.Code, e.Receipt.OK, e.Receipt.Code)
	}
	if e.Seq >= r.verifyFrom {
		r.checked++
		if got := r.last.entry.Digest; got != e.Digest {
			return fmt.Errorf("digest mismatch at seq %d: got=%s want=%s", e.Seq, got, e.Digest)
		}
	}
	return nil
}
