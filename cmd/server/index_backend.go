package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"paradox.game/internal/game"
	"paradox.game/internal/persistence/indexdb"
	"paradox.game/internal/persistence/snapshot"
)

type runtimeIndex interface {
	game.TxLogger
	game.AuditLogger
	Close() error
	Stats() indexdb.Stats
	UpsertConfig(name string, v any) error
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
	RecordSnapshotState(snap snapshot.SnapshotV1)
	RecordArchive(kind string, seq uint64, path string, minted uint64)
}

func openRuntimeIndex(gameDir, gameID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("PARADOX_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(gameDir, "index", "game.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("PARADOX_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("PARADOX_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("PARADOX_INDEX_BACKEND=d1 but PARADOX_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("PARADOX_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("PARADOX_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			GameID:        gameID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported PARADOX_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
