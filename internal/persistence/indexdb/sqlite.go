package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/snapshot"
)

// SQLiteIndex is a queryable read-model fed from the game loop's loggers.
// All writes go through one goroutine that batches them into transactions.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTx            atomic.Uint64
	dropAudit         atomic.Uint64
	dropSnapshot      atomic.Uint64
	dropSnapshotState atomic.Uint64
	dropArchive       atomic.Uint64
}

type reqKind int

const (
	reqTx reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqSnapshotState
	reqArchive
)

type req struct {
	kind reqKind

	tx       game.TxLogEntry
	audit    game.AuditEntry
	snapshot snapshotRow
	levels   []levelRow
	archive  archiveRow
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS txs (
			seq INTEGER PRIMARY KEY,
			method TEXT NOT NULL,
			caller TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			reason TEXT,
			level_id TEXT NOT NULL,
			quantity TEXT NOT NULL,
			value TEXT NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_caller_seq ON txs(caller, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_txs_method_seq ON txs(method, seq);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			token_id INTEGER PRIMARY KEY,
			owner TEXT NOT NULL,
			level_id INTEGER NOT NULL,
			seq INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_owner ON tokens(owner);`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (seq, action)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_seq ON audits(actor, seq);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			seq INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			levels INTEGER NOT NULL,
			minted INTEGER NOT NULL,
			sold_out INTEGER NOT NULL,
			paused INTEGER NOT NULL,
			treasury TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS levels (
			id INTEGER PRIMARY KEY,
			image_url TEXT NOT NULL,
			initialized INTEGER NOT NULL,
			mints_so_far INTEGER NOT NULL,
			mints_without_answer INTEGER NOT NULL,
			as_of_seq INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			kind TEXT NOT NULL,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			minted INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (kind, seq)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:             len(s.ch),
		QueueCapacity:          cap(s.ch),
		DropTxTotal:            s.dropTx.Load(),
		DropAuditTotal:         s.dropAudit.Load(),
		DropSnapshotTotal:      s.dropSnapshot.Load(),
		DropSnapshotStateTotal: s.dropSnapshotState.Load(),
		DropArchiveTotal:       s.dropArchive.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTx(entry game.TxLogEntry) error {
	s.enqueue(req{kind: reqTx, tx: entry}, &s.dropTx)
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry game.AuditEntry) error {
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshot, snapshot: newSnapshotRow(path, snap)}, &s.dropSnapshot)
}

// RecordSnapshotState refreshes the levels table from a snapshot.
func (s *SQLiteIndex) RecordSnapshotState(snap snapshot.SnapshotV1) {
	s.enqueue(req{kind: reqSnapshotState, snapshot: snapshotRow{Seq: snap.Header.Seq}, levels: levelRows(snap)}, &s.dropSnapshotState)
}

func (s *SQLiteIndex) RecordArchive(kind string, seq uint64, path string, minted uint64) {
	if kind == "" || path == "" {
		return
	}
	s.enqueue(req{kind: reqArchive, archive: archiveRow{
		Kind:       kind,
		Seq:        seq,
		Path:       path,
		Minted:     minted,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}}, &s.dropArchive)
}

// UpsertConfig stores v as canonical JSON under name. It writes synchronously.
func (s *SQLiteIndex) UpsertConfig(name string, v any) error {
	if s == nil {
		return nil
	}
	row, err := newConfigRow(name, v)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		row.Name, row.Digest, row.JSON, row.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTx, _ := s.db.Prepare(`INSERT OR REPLACE INTO txs(seq,method,caller,ok,code,reason,level_id,quantity,value,digest,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertToken, _ := s.db.Prepare(`INSERT OR REPLACE INTO tokens(token_id,owner,level_id,seq) VALUES(?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(seq,action,actor,reason,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(seq,path,levels,minted,sold_out,paused,treasury) VALUES(?,?,?,?,?,?,?)`)
	upsertLevel, _ := s.db.Prepare(`INSERT OR REPLACE INTO levels(id,image_url,initialized,mints_so_far,mints_without_answer,as_of_seq) VALUES(?,?,?,?,?,?)`)
	insertArchive, _ := s.db.Prepare(`INSERT OR REPLACE INTO archives(kind,seq,path,minted,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTx, insertToken, insertAudit, insertSnapshot, upsertLevel, insertArchive} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTx:
			e := r.tx
			raw, _ := json.Marshal(e)
			value := "0"
			if e.Tx.Value != nil {
				value = e.Tx.Value.String()
			}
			if !exec(insertTx,
				int64(e.Seq),
				e.Tx.Method,
				e.Tx.Caller.Hex(),
				boolInt(e.Receipt.OK),
				e.Receipt.Code,
				e.Receipt.Reason,
				// Rejected txs may carry any uint64, so these are stored as decimal text like value.
				strconv.FormatUint(e.Tx.Params.LevelID, 10),
				strconv.FormatUint(e.Tx.Params.Quantity, 10),
				value,
				e.Digest,
				string(raw),
			) {
				continue
			}
			if e.Receipt.OK {
				for _, id := range e.Receipt.TokenIDs {
					if !exec(insertToken, int64(id), e.Tx.Caller.Hex(), int64(e.Receipt.LevelID), int64(e.Seq)) {
						break
					}
				}
			}

		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Seq), a.Action, a.Actor, a.Reason, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Seq), sn.Path, sn.Levels, int64(sn.Minted), boolInt(sn.SoldOut), boolInt(sn.Paused), sn.Treasury)

		case reqSnapshotState:
			for _, lv := range r.levels {
				if !exec(upsertLevel, int64(lv.ID), lv.ImageURL, boolInt(lv.Initialized), int64(lv.MintsSoFar), int64(lv.MintsWithoutAnswer), int64(r.snapshot.Seq)) {
					break
				}
			}

		case reqArchive:
			a := r.archive
			exec(insertArchive, a.Kind, int64(a.Seq), a.Path, int64(a.Minted), a.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
