package game

import "github.com/ethereum/go-ethereum/common"

type Limits struct {
	TotalItems               uint64
	ItemsPerLevel            uint64
	MaxWithoutAnswerPerLevel uint64
	MaxPerUserPerLevel       uint64
}

type LevelCounters struct {
	Mints         uint64
	WithoutAnswer uint64
}

type UserLevelKey struct {
	Level uint64
	User  common.Address
}

type Reservation struct {
	Level         uint64
	User          common.Address
	Quantity      uint64
	WithoutAnswer bool
}

// SupplyLedger owns every supply counter. Only the mint engine reserves against it.
// Invariants: minted <= TotalItems and minted == sum of levels[*].Mints.
type SupplyLedger struct {
	minted uint64
	levels map[uint64]LevelCounters
	users  map[UserLevelKey]uint64
}

func newSupplyLedger() SupplyLedger {
	return SupplyLedger{
		levels: map[uint64]LevelCounters{},
		users:  map[UserLevelKey]uint64{},
	}
}

func (l *SupplyLedger) Minted() uint64 { return l.minted }

func (l *SupplyLedger) Level(id uint64) LevelCounters { return l.levels[id] }

func (l *SupplyLedger) UserMints(level uint64, user common.Address) uint64 {
	return l.users[UserLevelKey{Level: level, User: user}]
}

// The check* helpers compare against the remaining headroom so huge quantities cannot overflow.

func (l *SupplyLedger) checkGlobal(q uint64, lim Limits) error {
	if l.minted >= lim.TotalItems || q > lim.TotalItems-l.minted {
		return newError(KindSupply, ReasonSoldOut)
	}
	return nil
}

func (l *SupplyLedger) checkLevel(id, q uint64, lim Limits) error {
	mints := l.levels[id].Mints
	if mints >= lim.ItemsPerLevel {
		return newError(KindSupply, ReasonLevelExhausted)
	}
	if q > lim.ItemsPerLevel-mints {
		return newError(KindSupply, ReasonLevelInsufficient)
	}
	return nil
}

func (l *SupplyLedger) checkWithoutAnswer(id, q uint64, lim Limits) error {
	n := l.levels[id].WithoutAnswer
	if n >= lim.MaxWithoutAnswerPerLevel || q > lim.MaxWithoutAnswerPerLevel-n {
		return newError(KindSupply, ReasonWithoutAnswerLimit)
	}
	return nil
}

func (l *SupplyLedger) checkUser(id uint64, user common.Address, q uint64, lim Limits) error {
	n := l.UserMints(id, user)
	if n >= lim.MaxPerUserPerLevel || q > lim.MaxPerUserPerLevel-n {
		return newError(KindSupply, ReasonUserLimit)
	}
	return nil
}

// reserve validates every cap first and only then applies all counter increments.
// On error nothing has been written.
func (l *SupplyLedger) reserve(t *txn, r Reservation, lim Limits) error {
	if r.Quantity == 0 {
		return newError(KindValidation, ReasonInvalidQuantity)
	}
	if err := l.checkGlobal(r.Quantity, lim); err != nil {
		return err
	}
	if err := l.checkLevel(r.Level, r.Quantity, lim); err != nil {
		return err
	}
	if r.WithoutAnswer {
		if err := l.checkWithoutAnswer(r.Level, r.Quantity, lim); err != nil {
			return err
		}
	}
	if err := l.checkUser(r.Level, r.User, r.Quantity, lim); err != nil {
		return err
	}

	setUint64(t, &l.minted, l.minted+r.Quantity)

	prevLevel, hadLevel := l.levels[r.Level]
	t.record(func() {
		if hadLevel {
			l.levels[r.Level] = prevLevel
		} else {
			delete(l.levels, r.Level)
		}
	})
	next := prevLevel
	next.Mints += r.Quantity
	if r.WithoutAnswer {
		next.WithoutAnswer += r.Quantity
	}
	l.levels[r.Level] = next

	key := UserLevelKey{Level: r.Level, User: r.User}
	prevUser, hadUser := l.users[key]
	t.record(func() {
		if hadUser {
			l.users[key] = prevUser
		} else {
			delete(l.users, key)
		}
	})
	l.users[key] = prevUser + r.Quantity
	return nil
}
