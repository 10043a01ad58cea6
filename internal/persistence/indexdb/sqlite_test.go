package indexdb

import (
	"database/sql"
	"math"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/snapshot"
	"paradox.game/internal/protocol"
)

func TestSQLiteIndex_WritesTxsTokensAndAudits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "game.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	_ = idx.WriteTx(game.TxLogEntry{
		Seq: 4,
		Tx: game.Tx{
			Caller: alice,
			Method: protocol.MethodMint,
			Params: game.TxParams{LevelID: 2, Quantity: 2},
			Value:  big.NewInt(500),
		},
		Receipt: game.Receipt{Seq: 4, Method: protocol.MethodMint, OK: true, LevelID: 2, TokenIDs: []uint64{7, 8}},
		Digest:  "abc",
	})
	_ = idx.WriteTx(game.TxLogEntry{
		Seq:     5,
		Tx:      game.Tx{Caller: alice, Method: protocol.MethodMint, Params: game.TxParams{LevelID: 2, Quantity: 1}},
		Receipt: game.Receipt{Seq: 5, Method: protocol.MethodMint, Code: protocol.ErrBadPayment, Reason: "incorrect payment amount"},
		Digest:  "abc",
	})
	_ = idx.WriteTx(game.TxLogEntry{
		Seq:     6,
		Tx:      game.Tx{Caller: alice, Method: protocol.MethodMint, Params: game.TxParams{LevelID: math.MaxUint64, Quantity: math.MaxUint64}},
		Receipt: game.Receipt{Seq: 6, Method: protocol.MethodMint, Code: protocol.ErrBadState, Reason: "level does not exist"},
		Digest:  "abc",
	})
	_ = idx.WriteAudit(game.AuditEntry{Seq: 1, Actor: alice.Hex(), Action: "CREATE_LEVEL"})
	if err := idx.UpsertConfig("tuning", map[string]any{"total_items": 9}); err != nil {
		t.Fatalf("UpsertConfig: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		method, caller, value, reason string
		ok                            int
	)
	if err := db.QueryRow(`SELECT method,caller,ok,value FROM txs WHERE seq=4`).Scan(&method, &caller, &ok, &value); err != nil {
		t.Fatalf("scan tx 4: %v", err)
	}
	if method != "mint" || caller != alice.Hex() || ok != 1 || value != "500" {
		t.Fatalf("tx 4: method=%s caller=%s ok=%d value=%s", method, caller, ok, value)
	}
	if err := db.QueryRow(`SELECT ok,reason FROM txs WHERE seq=5`).Scan(&ok, &reason); err != nil {
		t.Fatalf("scan tx 5: %v", err)
	}
	if ok != 0 || reason != "incorrect payment amount" {
		t.Fatalf("tx 5: ok=%d reason=%q", ok, reason)
	}

	var levelID, quantity string
	if err := db.QueryRow(`SELECT CAST(level_id AS TEXT),CAST(quantity AS TEXT) FROM txs WHERE seq=6`).Scan(&levelID, &quantity); err != nil {
		t.Fatalf("scan tx 6: %v", err)
	}
	if levelID != "18446744073709551615" || quantity != "18446744073709551615" {
		t.Fatalf("tx 6: level_id=%s quantity=%s", levelID, quantity)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tokens WHERE owner=? AND level_id=2`, alice.Hex()).Scan(&n); err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if n != 2 {
		t.Fatalf("tokens=%d want 2", n)
	}
	var action string
	if err := db.QueryRow(`SELECT action FROM audits WHERE seq=1`).Scan(&action); err != nil {
		t.Fatalf("scan audit: %v", err)
	}
	if action != "CREATE_LEVEL" {
		t.Fatalf("action=%s", action)
	}
	var digest string
	if err := db.QueryRow(`SELECT digest FROM config WHERE name='tuning'`).Scan(&digest); err != nil || len(digest) != 64 {
		t.Fatalf("config digest=%q err=%v", digest, err)
	}
}

func TestSQLiteIndex_SnapshotStateAndArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, GameID: "g", Seq: 30},
		Config: snapshot.ConfigV1{TotalItems: 4},
		Levels: []snapshot.LevelV1{
			{ID: 1, ImageURL: "a", Initialized: true, MintsSoFar: 3, MintsWithoutAnswer: 1},
			{ID: 2, ImageURL: "b", Initialized: false, MintsSoFar: 1},
		},
		Treasury: "1000",
	}
	idx.RecordSnapshot("/data/snapshots/30.snap.zst", snap)
	idx.RecordSnapshotState(snap)
	idx.RecordArchive("sold_out", 30, "/data/archives/sold_out/30.snap.zst", snap.Minted())
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var minted, soldOut int
	if err := db.QueryRow(`SELECT minted,sold_out FROM snapshots WHERE seq=30`).Scan(&minted, &soldOut); err != nil {
		t.Fatalf("scan snapshot: %v", err)
	}
	if minted != 4 || soldOut != 1 {
		t.Fatalf("minted=%d sold_out=%d", minted, soldOut)
	}
	var initialized, mints int
	if err := db.QueryRow(`SELECT initialized,mints_so_far FROM levels WHERE id=2`).Scan(&initialized, &mints); err != nil {
		t.Fatalf("scan level: %v", err)
	}
	if initialized != 0 || mints != 1 {
		t.Fatalf("level 2: initialized=%d mints=%d", initialized, mints)
	}
	var archived string
	if err := db.QueryRow(`SELECT path FROM archives WHERE kind='sold_out' AND seq=30`).Scan(&archived); err != nil {
		t.Fatalf("scan archive: %v", err)
	}
	if archived != "/data/archives/sold_out/30.snap.zst" {
		t.Fatalf("archive path=%s", archived)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTx}

	_ = s.WriteTx(game.TxLogEntry{Seq: 2})
	_ = s.WriteAudit(game.AuditEntry{Seq: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})
	s.RecordSnapshotState(snapshot.SnapshotV1{})
	s.RecordArchive("sold_out", 2, "/tmp/2.snap.zst", 9)

	st := s.Stats()
	if st.DropTxTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 ||
		st.DropSnapshotStateTotal != 1 || st.DropArchiveTotal != 1 {
		t.Fatalf("drop stats=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
