package game

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// mint runs every check before touching state; the reserve/credit/issue tail cannot fail
// except through reserve's own re-validation, which the envelope rolls back.
func (g *Game) mint(t *txn, tx Tx) (Receipt, error) {
	p := tx.Params

	// Program callers are refused before anything else, paused or not.
	if tx.CallerKind != AccountHuman {
		return Receipt{}, newError(KindValidation, ReasonContractCaller)
	}
	if err := g.pause.requireActive(); err != nil {
		return Receipt{}, err
	}
	lv, ok := g.levels.get(p.LevelID)
	if !ok || !lv.Initialized {
		return Receipt{}, newError(KindValidation, ReasonUnknownLevel)
	}
	if p.Quantity == 0 {
		return Receipt{}, newError(KindValidation, ReasonInvalidQuantity)
	}

	lim := g.cfg.limits()
	if err := g.ledger.checkGlobal(p.Quantity, lim); err != nil {
		return Receipt{}, err
	}
	if err := g.ledger.checkLevel(lv.ID, p.Quantity, lim); err != nil {
		return Receipt{}, err
	}

	withoutAnswer := p.Guess == (common.Hash{})
	unit := g.cfg.MaxPricePerItem
	if !withoutAnswer {
		if !g.verifier.Check(lv.AnswerHash, tx.Caller, p.Guess) {
			return Receipt{}, newError(KindValidation, ReasonIncorrectAnswer)
		}
		unit = g.cfg.PricePerItem
	}
	due := new(big.Int).Mul(unit, new(big.Int).SetUint64(p.Quantity))
	if tx.value().Cmp(due) != 0 {
		return Receipt{}, newError(KindPayment, ReasonIncorrectPayment)
	}
	if withoutAnswer {
		if err := g.ledger.checkWithoutAnswer(lv.ID, p.Quantity, lim); err != nil {
			return Receipt{}, err
		}
	}
	if err := g.ledger.checkUser(lv.ID, tx.Caller, p.Quantity, lim); err != nil {
		return Receipt{}, err
	}

	if err := g.ledger.reserve(t, Reservation{
		Level:         lv.ID,
		User:          tx.Caller,
		Quantity:      p.Quantity,
		WithoutAnswer: withoutAnswer,
	}, lim); err != nil {
		return Receipt{}, err
	}
	g.credit(t, due)
	ids := g.tokens.issue(t, tx.Caller, p.Quantity)

	return Receipt{LevelID: lv.ID, TokenIDs: ids, Amount: due}, nil
}

func (g *Game) credit(t *txn, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	old := g.treasury
	t.record(func() { g.treasury = old })
	g.treasury = new(big.Int).Add(old, amount)
}

func (g *Game) withdraw(t *txn, tx Tx) (Receipt, error) {
	if err := g.access.requireOwner(tx.Caller); err != nil {
		return Receipt{}, err
	}
	if tx.Params.To == (common.Address{}) {
		return Receipt{}, newError(KindValidation, ReasonInvalidRecipient)
	}
	amount := g.treasury
	if amount.Sign() != 0 {
		t.record(func() { g.treasury = amount })
		g.treasury = new(big.Int)
	}
	return Receipt{Amount: new(big.Int).Set(amount)}, nil
}
