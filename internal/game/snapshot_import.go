package game

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"paradox.game/internal/persistence/snapshot"
)

// FromSnapshot rebuilds a game from a snapshot. The snapshot's owner and rules win
// over anything the caller would configure; only operational parameters come from ops.
func FromSnapshot(snap snapshot.SnapshotV1, committer Committer, ops Config) (*Game, error) {
	if snap.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if !common.IsHexAddress(snap.Owner) {
		return nil, fmt.Errorf("snapshot owner %q is not an address", snap.Owner)
	}
	price, ok := math.ParseBig256(snap.Config.PricePerItem)
	if !ok {
		return nil, fmt.Errorf("snapshot price_per_item %q", snap.Config.PricePerItem)
	}
	maxPrice, ok := math.ParseBig256(snap.Config.MaxPricePerItem)
	if !ok {
		return nil, fmt.Errorf("snapshot max_price_per_item %q", snap.Config.MaxPricePerItem)
	}
	cfg := Config{
		ID:                                snap.Header.GameID,
		BaseURI:                           snap.Config.BaseURI,
		TotalItems:                        snap.Config.TotalItems,
		ItemsPerLevel:                     snap.Config.ItemsPerLevel,
		MaxPurchasesWithoutAnswerPerLevel: snap.Config.MaxPurchasesWithoutAnswerPerLevel,
		MaxMintsPerUserPerLevel:           snap.Config.MaxMintsPerUserPerLevel,
		PricePerItem:                      price,
		MaxPricePerItem:                   maxPrice,
		SnapshotEveryTxs:                  snap.Config.SnapshotEveryTxs,
	}
	if ops.SnapshotEveryTxs > 0 {
		cfg.SnapshotEveryTxs = ops.SnapshotEveryTxs
	}

	g, err := New(cfg, common.HexToAddress(snap.Owner), committer)
	if err != nil {
		return nil, err
	}
	if err := g.importSnapshot(snap); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) importSnapshot(snap snapshot.SnapshotV1) error {
	g.access.admins = map[common.Address]bool{}
	for _, a := range snap.Admins {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("admin %q is not an address", a)
		}
		g.access.admins[common.HexToAddress(a)] = true
	}
	g.pause.paused = snap.Paused

	g.levels = LevelRegistry{}
	g.ledger = newSupplyLedger()
	for i, lv := range snap.Levels {
		if lv.ID != uint64(i)+1 {
			return fmt.Errorf("level ids not sequential at index %d (id=%d)", i, lv.ID)
		}
		g.levels.levels = append(g.levels.levels, &levelRecord{
			ID:          lv.ID,
			ImageURL:    lv.ImageURL,
			AnswerHash:  lv.AnswerHash,
			Initialized: lv.Initialized,
		})
		if lv.MintsSoFar > g.cfg.ItemsPerLevel {
			return fmt.Errorf("level %d mints %d exceed items per level %d", lv.ID, lv.MintsSoFar, g.cfg.ItemsPerLevel)
		}
		if lv.MintsWithoutAnswer > lv.MintsSoFar {
			return fmt.Errorf("level %d mints without answer %d exceed its mints %d", lv.ID, lv.MintsWithoutAnswer, lv.MintsSoFar)
		}
		if lv.MintsSoFar > 0 || lv.MintsWithoutAnswer > 0 {
			g.ledger.levels[lv.ID] = LevelCounters{Mints: lv.MintsSoFar, WithoutAnswer: lv.MintsWithoutAnswer}
		}
		g.ledger.minted += lv.MintsSoFar
	}
	if snap.ActiveLevel != 0 && !g.levels.inRange(snap.ActiveLevel) {
		return fmt.Errorf("active level %d out of range", snap.ActiveLevel)
	}
	g.levels.active = snap.ActiveLevel

	perLevel := map[uint64]uint64{}
	for _, um := range snap.UserMints {
		if !common.IsHexAddress(um.User) {
			return fmt.Errorf("user mint %q is not an address", um.User)
		}
		if !g.levels.inRange(um.Level) {
			return fmt.Errorf("user mint for unknown level %d", um.Level)
		}
		g.ledger.users[UserLevelKey{Level: um.Level, User: common.HexToAddress(um.User)}] += um.Count
		perLevel[um.Level] += um.Count
	}
	for _, lv := range snap.Levels {
		if perLevel[lv.ID] != lv.MintsSoFar {
			return fmt.Errorf("level %d user mints %d do not match its mints %d", lv.ID, perLevel[lv.ID], lv.MintsSoFar)
		}
	}

	g.tokens = newTokenBook()
	for _, o := range snap.Tokens {
		if !common.IsHexAddress(o) {
			return fmt.Errorf("token owner %q is not an address", o)
		}
		addr := common.HexToAddress(o)
		g.tokens.owners = append(g.tokens.owners, addr)
		g.tokens.balances[addr]++
	}
	if g.tokens.supply() != g.ledger.Minted() {
		return fmt.Errorf("token count %d does not match level mints %d", g.tokens.supply(), g.ledger.Minted())
	}
	if g.ledger.Minted() > g.cfg.TotalItems {
		return fmt.Errorf("minted %d exceeds total items %d", g.ledger.Minted(), g.cfg.TotalItems)
	}

	treasury, ok := new(big.Int).SetString(snap.Treasury, 10)
	if !ok || treasury.Sign() < 0 {
		return fmt.Errorf("snapshot treasury %q", snap.Treasury)
	}
	g.treasury = treasury

	g.seq.Store(snap.Header.Seq)
	g.applied.Store(snap.Counters.Applied)
	g.rejected.Store(snap.Counters.Rejected)
	g.publishMetrics()
	return nil
}
