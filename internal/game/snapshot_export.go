package game

import (
	"sort"

	"paradox.game/internal/persistence/snapshot"
)

// ExportSnapshot captures the full state. Must run on the game goroutine.
func (g *Game) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			GameID:  g.cfg.ID,
			Seq:     g.seq.Load(),
		},
		Config: snapshot.ConfigV1{
			BaseURI:                           g.cfg.BaseURI,
			TotalItems:                        g.cfg.TotalItems,
			ItemsPerLevel:                     g.cfg.ItemsPerLevel,
			MaxPurchasesWithoutAnswerPerLevel: g.cfg.MaxPurchasesWithoutAnswerPerLevel,
			MaxMintsPerUserPerLevel:           g.cfg.MaxMintsPerUserPerLevel,
			PricePerItem:                      g.cfg.PricePerItem.String(),
			MaxPricePerItem:                   g.cfg.MaxPricePerItem.String(),
			SnapshotEveryTxs:                  g.cfg.SnapshotEveryTxs,
		},
		Owner:       g.access.Owner().Hex(),
		Paused:      g.pause.IsPaused(),
		ActiveLevel: g.levels.Active(),
		Treasury:    g.treasury.String(),
		Counters: snapshot.CountersV1{
			Applied:  g.applied.Load(),
			Rejected: g.rejected.Load(),
		},
	}

	for _, id := range g.access.adminList() {
		snap.Admins = append(snap.Admins, id.Hex())
	}

	for _, rec := range g.levels.levels {
		c := g.ledger.Level(rec.ID)
		snap.Levels = append(snap.Levels, snapshot.LevelV1{
			ID:                 rec.ID,
			ImageURL:           rec.ImageURL,
			AnswerHash:         rec.AnswerHash,
			Initialized:        rec.Initialized,
			MintsSoFar:         c.Mints,
			MintsWithoutAnswer: c.WithoutAnswer,
		})
	}

	for k, n := range g.ledger.users {
		snap.UserMints = append(snap.UserMints, snapshot.UserMintV1{Level: k.Level, User: k.User.Hex(), Count: n})
	}
	sort.Slice(snap.UserMints, func(i, j int) bool {
		a, b := snap.UserMints[i], snap.UserMints[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}
		return a.User < b.User
	})

	snap.Tokens = make([]string, 0, len(g.tokens.owners))
	for _, o := range g.tokens.owners {
		snap.Tokens = append(snap.Tokens, o.Hex())
	}
	return snap
}
