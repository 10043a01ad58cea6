package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/snapshot"
)

// D1Config configures the HTTP ingest backend. Events are POSTed in batches as
// {"events":[{kind,game_id,payload}]} to a worker that writes them into Cloudflare D1.
type D1Config struct {
	Endpoint      string
	Token         string
	GameID        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxRetained bounds the events kept across failed flushes.
	MaxRetained int
	Logger      *log.Logger
}

type D1Index struct {
	cfg        D1Config
	httpClient *http.Client

	ch   chan d1Event
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	queueDropped atomic.Uint64
	flushFail    atomic.Uint64
}

type d1Event struct {
	Kind    string `json:"kind"`
	GameID  string `json:"game_id"`
	Payload any    `json:"payload"`
}

type d1TxPayload struct {
	Seq     uint64       `json:"seq"`
	Digest  string       `json:"digest"`
	Tx      game.Tx      `json:"tx"`
	Receipt game.Receipt `json:"receipt"`
}

type d1SnapshotStatePayload struct {
	Seq    uint64     `json:"seq"`
	Levels []levelRow `json:"levels"`
}

func OpenD1(cfg D1Config) (*D1Index, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.GameID = strings.TrimSpace(cfg.GameID)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty d1 ingest endpoint")
	}
	if cfg.GameID == "" {
		return nil, fmt.Errorf("empty game id")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = cfg.BatchSize * 64
	}

	d := &D1Index{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan d1Event, 32768),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func (d *D1Index) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
	})
	return nil
}

func (d *D1Index) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(d.ch),
		QueueCapacity:     cap(d.ch),
		FlushFailTotal:    d.flushFail.Load(),
		QueueDroppedTotal: d.queueDropped.Load(),
	}
}

func (d *D1Index) WriteTx(entry game.TxLogEntry) error {
	d.enqueue("tx", d1TxPayload{Seq: entry.Seq, Digest: entry.Digest, Tx: entry.Tx, Receipt: entry.Receipt})
	return nil
}

func (d *D1Index) WriteAudit(entry game.AuditEntry) error {
	d.enqueue("audit", entry)
	return nil
}

func (d *D1Index) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	d.enqueue("snapshot", newSnapshotRow(path, snap))
}

func (d *D1Index) RecordSnapshotState(snap snapshot.SnapshotV1) {
	d.enqueue("snapshot_state", d1SnapshotStatePayload{Seq: snap.Header.Seq, Levels: levelRows(snap)})
}

func (d *D1Index) RecordArchive(kind string, seq uint64, path string, minted uint64) {
	if kind == "" || strings.TrimSpace(path) == "" {
		return
	}
	d.enqueue("archive", archiveRow{
		Kind:       kind,
		Seq:        seq,
		Path:       path,
		Minted:     minted,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (d *D1Index) UpsertConfig(name string, v any) error {
	row, err := newConfigRow(name, v)
	if err != nil {
		return err
	}
	d.enqueue("config", row)
	return nil
}

func (d *D1Index) enqueue(kind string, payload any) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- d1Event{Kind: kind, GameID: d.cfg.GameID, Payload: payload}:
	default:
		d.queueDropped.Add(1)
		d.printf("d1 index queue full; drop kind=%s game=%s", kind, d.cfg.GameID)
	}
}

// loop keeps a failed batch and retries it on the next flush, trimming the oldest events
// once more than MaxRetained are pending.
func (d *D1Index) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	var pending []d1Event
	flush := func() {
		for len(pending) > 0 {
			n := len(pending)
			if n > d.cfg.BatchSize {
				n = d.cfg.BatchSize
			}
			if err := d.sendBatch(pending[:n]); err != nil {
				d.flushFail.Add(1)
				d.printf("d1 index flush failed batch=%d pending=%d err=%v", n, len(pending), err)
				if over := len(pending) - d.cfg.MaxRetained; over > 0 {
					d.queueDropped.Add(uint64(over))
					pending = append(pending[:0], pending[over:]...)
				}
				return
			}
			pending = pending[n:]
		}
		pending = nil
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			pending = append(pending, ev)
			if len(pending) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *D1Index) sendBatch(events []d1Event) error {
	body := struct {
		Events []d1Event `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	if d.cfg.Token != "" {
		req.Header.Set("x-paradox-index-token", d.cfg.Token)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (d *D1Index) printf(format string, args ...any) {
	if d != nil && d.cfg.Logger != nil {
		d.cfg.Logger.Printf(format, args...)
	}
}
