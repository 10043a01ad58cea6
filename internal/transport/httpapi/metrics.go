package httpapi

import (
	"fmt"
	"net/http"
)

// handleMetrics writes the minimal Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	id := s.game.ID()
	m := s.game.Metrics()

	fmt.Fprintf(w, "# HELP paradox_game_seq Sequence number of the next transaction.\n")
	fmt.Fprintf(w, "# TYPE paradox_game_seq gauge\n")
	fmt.Fprintf(w, "paradox_game_seq{game=%q} %d\n", id, m.Seq)

	fmt.Fprintf(w, "# HELP paradox_game_txs_total Transactions processed by outcome.\n")
	fmt.Fprintf(w, "# TYPE paradox_game_txs_total counter\n")
	fmt.Fprintf(w, "paradox_game_txs_total{game=%q,outcome=%q} %d\n", id, "applied", m.Applied)
	fmt.Fprintf(w, "paradox_game_txs_total{game=%q,outcome=%q} %d\n", id, "rejected", m.Rejected)

	fmt.Fprintf(w, "# HELP paradox_game_minted Items minted so far.\n")
	fmt.Fprintf(w, "# TYPE paradox_game_minted gauge\n")
	fmt.Fprintf(w, "paradox_game_minted{game=%q} %d\n", id, m.Minted)

	fmt.Fprintf(w, "# HELP paradox_game_levels Levels created.\n")
	fmt.Fprintf(w, "# TYPE paradox_game_levels gauge\n")
	fmt.Fprintf(w, "paradox_game_levels{game=%q} %d\n", id, m.Levels)

	paused := 0
	if m.Paused {
		paused = 1
	}
	fmt.Fprintf(w, "# HELP paradox_game_paused 1 while minting is paused.\n")
	fmt.Fprintf(w, "# TYPE paradox_game_paused gauge\n")
	fmt.Fprintf(w, "paradox_game_paused{game=%q} %d\n", id, paused)

	fmt.Fprintf(w, "# HELP paradox_game_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(w, "# TYPE paradox_game_queue_depth gauge\n")
	fmt.Fprintf(w, "paradox_game_queue_depth{game=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(w, "paradox_game_queue_depth{game=%q,queue=%q} %d\n", id, "reads", m.QueueDepths.Reads)

	if s.opts.Index == nil {
		return
	}
	st := s.opts.Index.Stats()
	fmt.Fprintf(w, "# HELP paradox_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(w, "# TYPE paradox_index_queue_depth gauge\n")
	fmt.Fprintf(w, "paradox_index_queue_depth{game=%q} %d\n", id, st.QueueDepth)

	fmt.Fprintf(w, "# HELP paradox_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(w, "# TYPE paradox_index_queue_capacity gauge\n")
	fmt.Fprintf(w, "paradox_index_queue_capacity{game=%q} %d\n", id, st.QueueCapacity)

	fmt.Fprintf(w, "# HELP paradox_index_dropped_total Index rows dropped because the queue was full.\n")
	fmt.Fprintf(w, "# TYPE paradox_index_dropped_total counter\n")
	fmt.Fprintf(w, "paradox_index_dropped_total{game=%q,kind=%q} %d\n", id, "tx", st.DropTxTotal)
	fmt.Fprintf(w, "paradox_index_dropped_total{game=%q,kind=%q} %d\n", id, "audit", st.DropAuditTotal)
	fmt.Fprintf(w, "paradox_index_dropped_total{game=%q,kind=%q} %d\n", id, "snapshot", st.DropSnapshotTotal)
	fmt.Fprintf(w, "paradox_index_dropped_total{game=%q,kind=%q} %d\n", id, "snapshot_state", st.DropSnapshotStateTotal)
	fmt.Fprintf(w, "paradox_index_dropped_total{game=%q,kind=%q} %d\n", id, "archive", st.DropArchiveTotal)
	fmt.Fprintf(w, "paradox_index_dropped_total{game=%q,kind=%q} %d\n", id, "retained", st.QueueDroppedTotal)

	fmt.Fprintf(w, "# HELP paradox_index_flush_fail_total Failed index batch flushes.\n")
	fmt.Fprintf(w, "# TYPE paradox_index_flush_fail_total counter\n")
	fmt.Fprintf(w, "paradox_index_flush_fail_total{game=%q} %d\n", id, st.FlushFailTotal)
}
