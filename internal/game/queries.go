package game

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Read-only accessors. Like every other method they must run on the game goroutine
// once Run has started; use Read to call them from elsewhere.

func (g *Game) Owner() common.Address          { return g.access.Owner() }
func (g *Game) IsAdmin(id common.Address) bool { return g.access.IsAdmin(id) }
func (g *Game) Admins() []common.Address       { return g.access.adminList() }
func (g *Game) Paused() bool                   { return g.pause.IsPaused() }
func (g *Game) BaseURI() string                { return g.cfg.BaseURI }
func (g *Game) TotalItems() uint64             { return g.cfg.TotalItems }
func (g *Game) ItemsPerLevel() uint64          { return g.cfg.ItemsPerLevel }
func (g *Game) ActiveLevel() uint64            { return g.levels.Active() }
func (g *Game) LevelCount() uint64             { return g.levels.Count() }
func (g *Game) TotalSupply() uint64            { return g.tokens.supply() }

func (g *Game) MaxPurchasesWithoutAnswerPerLevel() uint64 {
	return g.cfg.MaxPurchasesWithoutAnswerPerLevel
}

func (g *Game) MaxMintsPerUserPerLevel() uint64 { return g.cfg.MaxMintsPerUserPerLevel }

func (g *Game) PricePerItem() *big.Int    { return new(big.Int).Set(g.cfg.PricePerItem) }
func (g *Game) MaxPricePerItem() *big.Int { return new(big.Int).Set(g.cfg.MaxPricePerItem) }
func (g *Game) Treasury() *big.Int        { return new(big.Int).Set(g.treasury) }

func (g *Game) Level(id uint64) (Level, bool) {
	rec, ok := g.levels.get(id)
	if !ok {
		return Level{}, false
	}
	c := g.ledger.Level(id)
	return Level{
		ID:                 rec.ID,
		ImageURL:           rec.ImageURL,
		Initialized:        rec.Initialized,
		MintsSoFar:         c.Mints,
		MintsWithoutAnswer: c.WithoutAnswer,
		AnswerHash:         rec.AnswerHash,
	}, true
}

func (g *Game) UserMints(levelID uint64, user common.Address) uint64 {
	return g.ledger.UserMints(levelID, user)
}

// CheckAnswer reports whether guess is the commitment of the level's answer bound to caller.
func (g *Game) CheckAnswer(levelID uint64, caller common.Address, guess common.Hash) bool {
	rec, ok := g.levels.get(levelID)
	if !ok {
		return false
	}
	return g.verifier.Check(rec.AnswerHash, caller, guess)
}

func (g *Game) OwnerOf(tokenID uint64) (common.Address, bool) {
	return g.tokens.ownerOf(tokenID)
}

func (g *Game) BalanceOf(id common.Address) uint64 { return g.tokens.balances[id] }

func (g *Game) TokenURI(tokenID uint64) (string, error) {
	if _, ok := g.tokens.ownerOf(tokenID); !ok {
		return "", fmt.Errorf("token %d does not exist", tokenID)
	}
	return g.cfg.BaseURI + strconv.FormatUint(tokenID, 10), nil
}
