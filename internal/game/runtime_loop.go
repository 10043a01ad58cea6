package game

import (
	"context"
	"errors"
	"time"
)

type txReq struct {
	Tx   Tx
	Resp chan txResp
}

type txResp struct {
	Receipt Receipt
	Err     error
}

type readReq struct {
	Fn   func(*Game)
	Done chan struct{}
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Seq uint64
	Err string
}

var ErrStopped = errors.New("game stopped")

// finalSnapshotWait bounds how long shutdown waits for the sink to take the last snapshot.
const finalSnapshotWait = 10 * time.Second

// Run owns the game state until ctx is done or Stop is called.
// Requests are applied one at a time in arrival order. When ctx ends, Run hands a final
// snapshot to the sink (if any) and stops the game, so the sink must keep draining until
// Run returns.
func (g *Game) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			g.emitFinalSnapshot()
			g.Stop()
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.inbox:
			rec, err := g.Execute(req.Tx)
			req.Resp <- txResp{Receipt: rec, Err: err}
			g.maybeSnapshot()
		case req := <-g.reads:
			req.Fn(g)
			close(req.Done)
		case req := <-g.admin:
			g.handleAdminSnapshotRequests([]adminSnapshotReq{req})
		}
	}
}

func (g *Game) Stop() { g.stopOnce.Do(func() { close(g.stop) }) }

// Submit hands tx to the game loop and waits for its receipt.
// It is safe to call from other goroutines (e.g. websocket handlers).
func (g *Game) Submit(ctx context.Context, tx Tx) (Receipt, error) {
	resp := make(chan txResp, 1)
	select {
	case g.inbox <- txReq{Tx: tx, Resp: resp}:
	case <-g.stop:
		return Receipt{}, ErrStopped
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
	// Once queued the tx will be applied; wait for the outcome even if ctx ends,
	// so callers never lose a receipt for a committed mint.
	select {
	case r := <-resp:
		return r.Receipt, r.Err
	case <-g.stop:
		return Receipt{}, ErrStopped
	}
}

// Read runs fn on the game loop goroutine. fn must not retain g.
func (g *Game) Read(ctx context.Context, fn func(*Game)) error {
	done := make(chan struct{})
	select {
	case g.reads <- readReq{Fn: fn, Done: done}:
	case <-g.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-g.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestSnapshot asks the game loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (g *Game) RequestSnapshot(ctx context.Context) (seq uint64, err error) {
	if g == nil || g.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	select {
	case g.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Seq, errors.New(r.Err)
		}
		return r.Seq, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (g *Game) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if g == nil || len(reqs) == 0 {
		return
	}
	seq, errStr := g.emitSnapshot()
	resp := adminSnapshotResp{Seq: seq, Err: errStr}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the game loop.
		}
	}
}

func (g *Game) maybeSnapshot() {
	if g.snapshotSink == nil || g.committedSinceSnapshot < g.cfg.SnapshotEveryTxs {
		return
	}
	if _, errStr := g.emitSnapshot(); errStr == "" {
		g.committedSinceSnapshot = 0
	}
}

// emitSnapshot exports the current state. The returned seq is the snapshot's header seq:
// every transaction below it is included.
func (g *Game) emitSnapshot() (uint64, string) {
	cur := g.seq.Load()
	if g.snapshotSink == nil {
		return cur, "snapshot sink not configured"
	}
	snap := g.ExportSnapshot()
	select {
	case g.snapshotSink <- snap:
		g.committedSinceSnapshot = 0
		return cur, ""
	default:
		return cur, "snapshot sink backpressure"
	}
}

// emitFinalSnapshot exports the state at shutdown, waiting for sink space instead of
// dropping the snapshot on backpressure.
func (g *Game) emitFinalSnapshot() {
	if g.snapshotSink == nil {
		return
	}
	snap := g.ExportSnapshot()
	t := time.NewTimer(finalSnapshotWait)
	defer t.Stop()
	select {
	case g.snapshotSink <- snap:
		g.committedSinceSnapshot = 0
	case <-t.C:
	}
}
