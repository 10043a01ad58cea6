package log

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"paradox.game/internal/game"
	"paradox.game/internal/protocol"
)

func TestTxLogger_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewTxLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	caller := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	for i := uint64(0); i < 3; i++ {
		if i == 2 {
			clock = clock.Add(2 * time.Minute)
		}
		err := l.WriteTx(game.TxLogEntry{
			Seq: i,
			Tx: game.Tx{
				Caller: caller,
				Method: protocol.MethodMint,
				Params: game.TxParams{LevelID: 1, Quantity: 1, Guess: common.HexToHash("0x01")},
				Value:  big.NewInt(100),
			},
			Receipt: game.Receipt{Seq: i, Method: protocol.MethodMint, OK: true, TokenIDs: []uint64{i}},
			Digest:  "d",
		})
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "txs"), "txs")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v", files)
	}
	if filepath.Base(files[0]) != "txs-2026-03-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", files[0])
	}

	var got []game.TxLogEntry
	for _, f := range files {
		if err := ReadTxFile(f, func(e game.TxLogEntry) error {
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("entries=%d", len(got))
	}
	e := got[1]
	if e.Seq != 1 || e.Tx.Caller != caller || e.Tx.Value.Cmp(big.NewInt(100)) != 0 || e.Tx.Params.Guess != common.HexToHash("0x01") {
		t.Fatalf("entry=%+v", e)
	}
}

func TestTxLogger_UnclosedFileIsReadable(t *testing.T) {
	dir := t.TempDir()
	l := NewTxLogger(dir)
	if err := l.WriteTx(game.TxLogEntry{Seq: 7, Digest: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	defer l.Close()

	files, err := ListFiles(filepath.Join(dir, "txs"), "txs")
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var n int
	if err := ReadTxFile(files[0], func(e game.TxLogEntry) error {
		if e.Seq != 7 {
			t.Fatalf("seq=%d", e.Seq)
		}
		n++
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 1 {
		t.Fatalf("entries=%d", n)
	}
}

func TestAuditLogger_WritesUnderAuditDir(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	if err := l.WriteAudit(game.AuditEntry{Seq: 1, Actor: "0x1", Action: "SET_PAUSED"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(dir, "audit"))
	if err != nil || len(ents) != 1 {
		t.Fatalf("audit dir: %v %v", ents, err)
	}
}
