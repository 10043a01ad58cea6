package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbQuery struct {
	Name   string
	Limit  int
	Caller string
	Method string
	Owner  string
}

const dbUsage = "usage: admin db [-data ./data] [-game ID|-db PATH] [-limit N] [-caller ADDR] [-method M] [-owner ADDR] snapshots|txs|tokens|levels|audits|archives|config"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	gameID := fs.String("game", "", "game id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	caller := fs.String("caller", "", "caller filter (txs)")
	method := fs.String("method", "", "method filter (txs)")
	owner := fs.String("owner", "", "owner filter (tokens)")
	_ = fs.Parse(args)

	q := dbQuery{Name: "snapshots", Limit: *limit, Caller: *caller, Method: *method, Owner: *owner}
	if fs.NArg() > 0 {
		q.Name = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*gameID) == "" {
			fmt.Fprintln(os.Stderr, "missing -game or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "games", *gameID, "index", "game.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runDBQuery(db, q, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, dbUsage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

type snapshotRecord struct {
	Seq      uint64 `json:"seq"`
	Path     string `json:"path"`
	Levels   int    `json:"levels"`
	Minted   uint64 `json:"minted"`
	SoldOut  bool   `json:"sold_out"`
	Paused   bool   `json:"paused"`
	Treasury string `json:"treasury"`
}

type txRecord struct {
	Seq     uint64 `json:"seq"`
	Method  string `json:"method"`
	Caller  string `json:"caller"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	LevelID uint64 `json:"level_id,omitempty"`
	Qty     uint64 `json:"quantity,omitempty"`
	Value   string `json:"value"`
	Digest  string `json:"digest"`
}

type tokenRecord struct {
	TokenID uint64 `json:"token_id"`
	Owner   string `json:"owner"`
	LevelID uint64 `json:"level_id"`
	Seq     uint64 `json:"seq"`
}

type levelRecord struct {
	ID                 uint64 `json:"id"`
	ImageURL           string `json:"image_url"`
	Initialized        bool   `json:"initialized"`
	MintsSoFar         uint64 `json:"mints_so_far"`
	MintsWithoutAnswer uint64 `json:"mints_without_answer"`
	AsOfSeq            uint64 `json:"as_of_seq"`
}

type auditRecord struct {
	Seq    uint64 `json:"seq"`
	Action string `json:"action"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

type archiveRecord struct {
	Kind       string `json:"kind"`
	Seq        uint64 `json:"seq"`
	Path       string `json:"path"`
	Minted     uint64 `json:"minted"`
	RecordedAt string `json:"recorded_at"`
}

type configRecord struct {
	Name      string          `json:"name"`
	Digest    string          `json:"digest"`
	UpdatedAt string          `json:"updated_at"`
	Value     json.RawMessage `json:"value"`
}

// runDBQuery prints one JSON line per row of the named read-model query.
func runDBQuery(db *sql.DB, q dbQuery, out io.Writer) error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	var (
		rows *sql.Rows
		err  error
		scan func(*sql.Rows) (any, error)
	)
	switch q.Name {
	case "snapshots":
		rows, err = db.Query(`SELECT seq,path,levels,minted,sold_out,paused,treasury FROM snapshots ORDER BY seq DESC LIMIT ?`, q.Limit)
		scan = func(rows *sql.Rows) (any, error) {
			var r snapshotRecord
			err := rows.Scan(&r.Seq, &r.Path, &r.Levels, &r.Minted, &r.SoldOut, &r.Paused, &r.Treasury)
			return r, err
		}

	case "txs":
		where, args := []string{}, []any{}
		if s := strings.TrimSpace(q.Caller); s != "" {
			where = append(where, "lower(caller)=lower(?)")
			args = append(args, s)
		}
		if s := strings.TrimSpace(q.Method); s != "" {
			where = append(where, "method=?")
			args = append(args, s)
		}
		stmt := `SELECT seq,method,caller,ok,COALESCE(code,''),COALESCE(reason,''),level_id,quantity,value,digest FROM txs`
		if len(where) > 0 {
			stmt += " WHERE " + strings.Join(where, " AND ")
		}
		stmt += " ORDER BY seq DESC LIMIT ?"
		rows, err = db.Query(stmt, append(args, q.Limit)...)
		scan = func(rows *sql.Rows) (any, error) {
			var r txRecord
			err := rows.Scan(&r.Seq, &r.Method, &r.Caller, &r.OK, &r.Code, &r.Reason, &r.LevelID, &r.Qty, &r.Value, &r.Digest)
			return r, err
		}

	case "tokens":
		if s := strings.TrimSpace(q.Owner); s != "" {
			rows, err = db.Query(`SELECT token_id,owner,level_id,seq FROM tokens WHERE lower(owner)=lower(?) ORDER BY token_id LIMIT ?`, s, q.Limit)
		} else {
			rows, err = db.Query(`SELECT token_id,owner,level_id,seq FROM tokens ORDER BY token_id DESC LIMIT ?`, q.Limit)
		}
		scan = func(rows *sql.Rows) (any, error) {
			var r tokenRecord
			err := rows.Scan(&r.TokenID, &r.Owner, &r.LevelID, &r.Seq)
			return r, err
		}

	case "levels":
		rows, err = db.Query(`SELECT id,image_url,initialized,mints_so_far,mints_without_answer,as_of_seq FROM levels ORDER BY id`)
		scan = func(rows *sql.Rows) (any, error) {
			var r levelRecord
			err := rows.Scan(&r.ID, &r.ImageURL, &r.Initialized, &r.MintsSoFar, &r.MintsWithoutAnswer, &r.AsOfSeq)
			return r, err
		}

	case "audits":
		rows, err = db.Query(`SELECT seq,action,actor,COALESCE(reason,'') FROM audits ORDER BY seq DESC LIMIT ?`, q.Limit)
		scan = func(rows *sql.Rows) (any, error) {
			var r auditRecord
			err := rows.Scan(&r.Seq, &r.Action, &r.Actor, &r.Reason)
			return r, err
		}

	case "archives":
		rows, err = db.Query(`SELECT kind,seq,path,minted,recorded_at FROM archives ORDER BY seq DESC`)
		scan = func(rows *sql.Rows) (any, error) {
			var r archiveRecord
			err := rows.Scan(&r.Kind, &r.Seq, &r.Path, &r.Minted, &r.RecordedAt)
			return r, err
		}

	case "config":
		rows, err = db.Query(`SELECT name,digest,updated_at,json FROM config ORDER BY name`)
		scan = func(rows *sql.Rows) (any, error) {
			var (
				r   configRecord
				raw string
			)
			err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt, &raw)
			r.Value = json.RawMessage(raw)
			return r, err
		}

	default:
		return fmt.Errorf("unknown query: %s", q.Name)
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
