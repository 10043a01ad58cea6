package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/archive"
	persistlog "paradox.game/internal/persistence/log"
	"paradox.game/internal/persistence/snapshot"
	"paradox.game/internal/replay"
	"paradox.game/internal/transport/httpapi"
	"paradox.game/internal/transport/ws"
	"paradox.game/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		ownerHex   = flag.String("owner", "", "owner address (required when starting a fresh game)")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (txs/audits + snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	cfg, err := tune.GameConfig()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}
	classifier, err := tune.Classifier()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	gameDir := filepath.Join(*dataDir, "games", cfg.ID)
	_ = os.MkdirAll(gameDir, 0o755)

	// Optional read-model index (does not affect game state).
	idx, err := openRuntimeIndex(gameDir, cfg.ID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertConfig("tuning", tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(gameDir)
	}

	g, err := loadGame(gameDir, cfg, snapshotToLoad, *ownerHex, logger)
	if err != nil {
		logger.Fatalf("load game: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	txLog := persistlog.NewTxLogger(gameDir)
	auditLog := persistlog.NewAuditLogger(gameDir)
	defer txLog.Close()
	defer auditLog.Close()
	if idx != nil {
		g.SetTxLogger(multiTxLogger{a: txLog, b: idx})
		g.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		g.SetTxLogger(txLog)
		g.SetAuditLogger(auditLog)
	}

	// Snapshot writer. It drains until the game loop has handed over its final snapshot.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	g.SetSnapshotSink(snapCh)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for snap := range snapCh {
			writeSnapshot(gameDir, snap, idx, logger)
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := g.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("game stopped: %v", err)
		}
	}()

	wsSrv, err := ws.NewServer(g, classifier, ws.Options{
		CallsPerSecond: tune.RateLimits.CallsPerSecond,
		CallBurst:      tune.RateLimits.CallBurst,
	}, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("ws: %v", err)
	}

	enableAdminHTTP := envBool("PARADOX_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("PARADOX_ENABLE_PPROF_HTTP", false)

	apiOpts := httpapi.Options{EnableAdmin: enableAdminHTTP}
	if idx != nil {
		apiOpts.Index = idx
	}
	api := httpapi.NewServer(g, apiOpts, logger)

	mux := http.NewServeMux()
	mux.Handle("/", api.Routes(wsSrv.Handler()))
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (PARADOX_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	<-runDone
	close(snapCh)
	<-writerDone
	logger.Printf("stopped at seq=%d", g.CurrentSeq())
}

// loadGame restores the game from snapshotPath, or starts a fresh one owned by ownerHex,
// then re-executes the tx log written after that point. Loggers are left unset.
func loadGame(gameDir string, cfg game.Config, snapshotPath, ownerHex string, logger *log.Logger) (*game.Game, error) {
	var g *game.Game
	if snapshotPath != "" {
		snap, err := snapshot.ReadSnapshot(snapshotPath)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		if snap.Header.GameID != "" && snap.Header.GameID != cfg.ID {
			return nil, fmt.Errorf("snapshot game id mismatch: tuning=%s snap=%s", cfg.ID, snap.Header.GameID)
		}
		g, err = game.FromSnapshot(snap, nil, cfg)
		if err != nil {
			return nil, fmt.Errorf("import snapshot: %w", err)
		}
		logger.Printf("resumed from snapshot=%s seq=%d minted=%d", filepath.Base(snapshotPath), g.CurrentSeq(), snap.Minted())
	} else {
		if !common.IsHexAddress(ownerHex) {
			return nil, fmt.Errorf("-owner is required for a fresh game (got %q)", ownerHex)
		}
		var err error
		g, err = game.New(cfg, common.HexToAddress(ownerHex), nil)
		if err != nil {
			return nil, err
		}
		logger.Printf("fresh game id=%s owner=%s total_items=%d", cfg.ID, g.Owner().Hex(), cfg.TotalItems)
	}

	start := g.CurrentSeq()
	r := replay.New(g, 0, 0)
	if err := r.Dir(filepath.Join(gameDir, "txs")); err != nil {
		return nil, fmt.Errorf("replay tx log: %w", err)
	}
	g.SetTxLogger(nil)
	if n := g.CurrentSeq() - start; n > 0 {
		logger.Printf("replayed %d txs from log, seq=%d digest=%s", n, g.CurrentSeq(), g.StateDigest())
	}
	return g, nil
}

// writeSnapshot persists snap, indexes it and archives it once the game is sold out.
func writeSnapshot(gameDir string, snap snapshot.SnapshotV1, idx runtimeIndex, logger *log.Logger) {
	path := filepath.Join(gameDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Seq))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
		idx.RecordSnapshotState(snap)
	}

	archivedPath, ok, err := archive.ArchiveSoldOutSnapshot(gameDir, path, snap)
	if err != nil {
		logger.Printf("archive sold-out snapshot: %v", err)
		return
	}
	if ok {
		logger.Printf("sold out at seq=%d; archived %s", snap.Header.Seq, archivedPath)
		if idx != nil {
			idx.RecordArchive(archive.KindSoldOut, snap.Header.Seq, archivedPath, snap.Minted())
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTxLogger struct {
	a game.TxLogger
	b game.TxLogger
}

func (m multiTxLogger) WriteTx(entry game.TxLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTx(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTx(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a game.AuditLogger
	b game.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry game.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
