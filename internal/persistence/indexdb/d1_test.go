package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"paradox.game/internal/game"
)

func TestD1Index_RetainsBatchOnFlushFailure(t *testing.T) {
	var mu sync.Mutex
	reqCount := 0
	applied := 0
	var kinds []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reqCount++
		thisReq := reqCount
		mu.Unlock()

		if r.Header.Get("x-paradox-index-token") != "secret" {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		if thisReq <= 3 {
			http.Error(w, "temporary failure", http.StatusInternalServerError)
			return
		}
		var body struct {
			Events []struct {
				Kind   string `json:"kind"`
				GameID string `json:"game_id"`
			} `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		applied += len(body.Events)
		for _, ev := range body.Events {
			kinds = append(kinds, ev.Kind+"/"+ev.GameID)
		}
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	idx, err := OpenD1(D1Config{
		Endpoint:      srv.URL,
		Token:         "secret",
		GameID:        "paradox",
		BatchSize:     1,
		FlushInterval: 20 * time.Millisecond,
		HTTPTimeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OpenD1: %v", err)
	}
	defer func() { _ = idx.Close() }()

	if err := idx.WriteTx(game.TxLogEntry{Seq: 1, Digest: "abc"}); err != nil {
		t.Fatalf("WriteTx: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := applied >= 1
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	finalApplied := applied
	finalKinds := append([]string(nil), kinds...)
	mu.Unlock()
	if finalApplied != 1 || finalKinds[0] != "tx/paradox" {
		t.Fatalf("expected retained batch to be delivered once; applied=%d kinds=%v", finalApplied, finalKinds)
	}
	st := idx.Stats()
	if st.FlushFailTotal < 3 {
		t.Fatalf("flush failures=%d want >= 3", st.FlushFailTotal)
	}
	if st.QueueDroppedTotal != 0 {
		t.Fatalf("unexpected queue drops: %d", st.QueueDroppedTotal)
	}
}

func TestOpenD1_RequiresEndpointAndGame(t *testing.T) {
	if _, err := OpenD1(D1Config{GameID: "g"}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := OpenD1(D1Config{Endpoint: "http://x"}); err == nil {
		t.Fatalf("expected game id error")
	}
}
