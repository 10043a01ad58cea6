package game

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"paradox.game/internal/commitment"
	"paradox.game/internal/persistence/snapshot"
)

// Game is a single-threaded authoritative state machine.
// All state must be accessed only from the goroutine running Run, or before Run starts.
type Game struct {
	cfg Config

	access   AccessControl
	pause    PauseGate
	levels   LevelRegistry
	ledger   SupplyLedger
	tokens   tokenBook
	treasury *big.Int
	verifier AnswerVerifier

	seq atomic.Uint64

	inbox chan txReq
	reads chan readReq
	admin chan adminSnapshotReq
	stop  chan struct{}

	stopOnce sync.Once

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	txLogger    TxLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1

	applied  atomic.Uint64
	rejected atomic.Uint64
	minted   atomic.Uint64
	nLevels  atomic.Uint64
	paused   atomic.Bool

	committedSinceSnapshot int
}

// New creates a paused game owned by owner. A nil committer selects the Keccak scheme.
func New(cfg Config, owner common.Address, committer Committer) (*Game, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("owner address is required")
	}
	if committer == nil {
		committer = commitment.Keccak{}
	}
	g := &Game{
		cfg:      cfg,
		access:   newAccessControl(owner),
		pause:    PauseGate{paused: true},
		ledger:   newSupplyLedger(),
		tokens:   newTokenBook(),
		treasury: new(big.Int),
		verifier: AnswerVerifier{committer: committer},

		inbox: make(chan txReq, 1024),
		reads: make(chan readReq, 1024),
		admin: make(chan adminSnapshotReq, 16),
		stop:  make(chan struct{}),
	}
	g.publishMetrics()
	return g, nil
}

func (g *Game) ID() string {
	if g == nil {
		return ""
	}
	return g.cfg.ID
}

func (g *Game) SetTxLogger(l TxLogger)                         { g.txLogger = l }
func (g *Game) SetAuditLogger(l AuditLogger)                   { g.auditLogger = l }
func (g *Game) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { g.snapshotSink = ch }

// CurrentSeq is the sequence number the next transaction will get.
func (g *Game) CurrentSeq() uint64 { return g.seq.Load() }

// Metrics is safe to call from any goroutine.
func (g *Game) Metrics() Metrics {
	var m Metrics
	m.Seq = g.seq.Load()
	m.Applied = g.applied.Load()
	m.Rejected = g.rejected.Load()
	m.Minted = g.minted.Load()
	m.Levels = g.nLevels.Load()
	m.Paused = g.paused.Load()
	m.QueueDepths.Inbox = len(g.inbox)
	m.QueueDepths.Reads = len(g.reads)
	return m
}

func (g *Game) publishMetrics() {
	g.minted.Store(g.ledger.Minted())
	g.nLevels.Store(g.levels.Count())
	g.paused.Store(g.pause.IsPaused())
}

func sortAddresses(s []common.Address) {
	sort.Slice(s, func(i, j int) bool { return s[i].Cmp(s[j]) < 0 })
}
