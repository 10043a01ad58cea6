package game

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"paradox.game/internal/protocol"
)

// Typed wrappers around Execute for in-process callers. Callers are treated as human
// accounts except in Mint, which takes the kind explicitly.

func (g *Game) ChangeAdminStatus(caller, account common.Address, flag bool) error {
	_, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodChangeAdminStatus, Params: TxParams{Account: account, Flag: flag}})
	return err
}

func (g *Game) SetPaused(caller common.Address, flag bool) error {
	_, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodSetPaused, Params: TxParams{Flag: flag}})
	return err
}

func (g *Game) SetBaseURI(caller common.Address, uri string) error {
	_, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodSetBaseURI, Params: TxParams{URI: uri}})
	return err
}

func (g *Game) CreateLevel(caller common.Address, imageURL, answerHash string) (uint64, error) {
	rec, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodCreateLevel, Params: TxParams{ImageURL: imageURL, AnswerHash: answerHash}})
	return rec.LevelID, err
}

func (g *Game) UpdateLevel(caller common.Address, id uint64, initialized bool, imageURL string) error {
	_, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodUpdateLevel, Params: TxParams{LevelID: id, Initialized: initialized, ImageURL: imageURL}})
	return err
}

func (g *Game) SetActiveLevel(caller common.Address, id uint64) error {
	_, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodSetActiveLevel, Params: TxParams{LevelID: id}})
	return err
}

// Mint submits a mint. A zero guess requests the without-answer tier.
func (g *Game) Mint(caller common.Address, kind AccountKind, levelID uint64, guess common.Hash, quantity uint64, payment *big.Int) (Receipt, error) {
	return g.Execute(Tx{
		Caller:     caller,
		CallerKind: kind,
		Method:     protocol.MethodMint,
		Params:     TxParams{LevelID: levelID, Guess: guess, Quantity: quantity},
		Value:      payment,
	})
}

func (g *Game) Withdraw(caller, to common.Address) (*big.Int, error) {
	rec, err := g.Execute(Tx{Caller: caller, Method: protocol.MethodWithdraw, Params: TxParams{To: to}})
	if err != nil {
		return nil, err
	}
	return rec.Amount, nil
}
