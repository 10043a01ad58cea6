package game

import "github.com/ethereum/go-ethereum/common"

// PauseGate: level administration needs Paused, minting needs Active.
type PauseGate struct {
	paused bool
}

func (p *PauseGate) IsPaused() bool { return p.paused }

func (p *PauseGate) setPaused(t *txn, ac *AccessControl, caller common.Address, flag bool) error {
	if err := ac.requireOwner(caller); err != nil {
		return err
	}
	if p.paused == flag {
		return nil
	}
	setBool(t, &p.paused, flag)
	return nil
}

func (p *PauseGate) requirePaused() error {
	if !p.paused {
		return newError(KindState, ReasonNotPaused)
	}
	return nil
}

func (p *PauseGate) requireActive() error {
	if p.paused {
		return newError(KindState, ReasonPaused)
	}
	return nil
}
