package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"paradox.game/internal/commitment"
	"paradox.game/internal/persistence/snapshot"
	"paradox.game/internal/protocol"
)

type memTxLogger struct {
	mu      sync.Mutex
	entries []TxLogEntry
}

func (l *memTxLogger) WriteTx(e TxLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

type memAuditLogger struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (l *memAuditLogger) WriteAudit(e AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func TestRun_SubmitReadAndSnapshot(t *testing.T) {
	g := newTestGame(t, testConfig())
	txs := &memTxLogger{}
	audits := &memAuditLogger{}
	g.SetTxLogger(txs)
	g.SetAuditLogger(audits)
	sink := make(chan snapshot.SnapshotV1, 4)
	g.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	rec, err := g.Submit(callCtx, Tx{
		Caller: owner,
		Method: protocol.MethodCreateLevel,
		Params: TxParams{ImageURL: "img", AnswerHash: commitment.AnswerHash("a")},
	})
	if err != nil || !rec.OK || rec.LevelID != 1 || rec.Seq != 0 {
		t.Fatalf("create level: rec=%+v err=%v", rec, err)
	}
	rec, err = g.Submit(callCtx, Tx{Caller: alice, Method: protocol.MethodSetPaused})
	if err == nil || rec.OK || rec.Code != protocol.ErrNoPermission || rec.Seq != 1 {
		t.Fatalf("non-owner pause: rec=%+v err=%v", rec, err)
	}

	var levels uint64
	if err := g.Read(callCtx, func(g *Game) { levels = g.LevelCount() }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if levels != 1 {
		t.Fatalf("levels=%d", levels)
	}

	seq, err := g.RequestSnapshot(callCtx)
	if err != nil {
		t.Fatalf("request snapshot: %v", err)
	}
	if seq != 2 {
		t.Fatalf("snapshot seq=%d", seq)
	}
	select {
	case snap := <-sink:
		if snap.Header.Seq != 2 || len(snap.Levels) != 1 || snap.Header.GameID != "test" {
			t.Fatalf("snapshot header=%+v levels=%d", snap.Header, len(snap.Levels))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot delivered")
	}

	txs.mu.Lock()
	if len(txs.entries) != 2 || txs.entries[1].Seq != 1 || txs.entries[0].Digest == "" {
		t.Fatalf("tx log=%+v", txs.entries)
	}
	txs.mu.Unlock()
	audits.mu.Lock()
	if len(audits.entries) != 1 || audits.entries[0].Action != "CREATE_LEVEL" {
		t.Fatalf("audit=%+v", audits.entries)
	}
	audits.mu.Unlock()

	m := g.Metrics()
	if m.Seq != 2 || m.Applied != 1 || m.Rejected != 1 || m.Levels != 1 || !m.Paused {
		t.Fatalf("metrics=%+v", m)
	}

	g.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if _, err := g.Submit(context.Background(), Tx{Caller: owner, Method: protocol.MethodSetPaused}); err != ErrStopped {
		t.Fatalf("submit after stop: %v", err)
	}
}

func TestMaybeSnapshot_EveryN(t *testing.T) {
	cfg := testConfig()
	cfg.SnapshotEveryTxs = 2
	g := newTestGame(t, cfg)
	sink := make(chan snapshot.SnapshotV1, 4)
	g.SetSnapshotSink(sink)

	for i := 0; i < 4; i++ {
		if err := g.SetBaseURI(owner, "u"); err != nil {
			t.Fatalf("set base uri: %v", err)
		}
		g.maybeSnapshot()
	}
	// Rejected txs do not count towards the interval.
	_ = g.SetBaseURI(alice, "u")
	g.maybeSnapshot()

	if len(sink) != 2 {
		t.Fatalf("snapshots=%d", len(sink))
	}
	if s := <-sink; s.Header.Seq != 2 {
		t.Fatalf("first snapshot seq=%d", s.Header.Seq)
	}
}

func TestRun_FinalSnapshotOnCancel(t *testing.T) {
	g := newTestGame(t, testConfig())
	sink := make(chan snapshot.SnapshotV1, 1)
	g.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	if _, err := g.Submit(callCtx, Tx{
		Caller: owner,
		Method: protocol.MethodCreateLevel,
		Params: TxParams{ImageURL: "img", AnswerHash: commitment.AnswerHash("a")},
	}); err != nil {
		t.Fatalf("create level: %v", err)
	}

	cancel()
	select {
	case snap := <-sink:
		if snap.Header.Seq != 1 || len(snap.Levels) != 1 {
			t.Fatalf("final snapshot header=%+v levels=%d", snap.Header, len(snap.Levels))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no final snapshot")
	}
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
	if _, err := g.Submit(context.Background(), Tx{Caller: owner, Method: protocol.MethodSetPaused}); err != ErrStopped {
		t.Fatalf("submit after cancel: %v", err)
	}
	g.Stop()
}
