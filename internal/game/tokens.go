package game

import "github.com/ethereum/go-ethereum/common"

// tokenBook records issued tokens. Token ids are indexes into owners, starting at 0.
type tokenBook struct {
	owners   []common.Address
	balances map[common.Address]uint64
}

func newTokenBook() tokenBook {
	return tokenBook{balances: map[common.Address]uint64{}}
}

func (b *tokenBook) supply() uint64 { return uint64(len(b.owners)) }

func (b *tokenBook) ownerOf(id uint64) (common.Address, bool) {
	if id >= b.supply() {
		return common.Address{}, false
	}
	return b.owners[id], true
}

func (b *tokenBook) issue(t *txn, to common.Address, n uint64) []uint64 {
	start := len(b.owners)
	prevBal, hadBal := b.balances[to]
	t.record(func() {
		b.owners = b.owners[:start]
		if hadBal {
			b.balances[to] = prevBal
		} else {
			delete(b.balances, to)
		}
	})
	ids := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		ids = append(ids, uint64(len(b.owners)))
		b.owners = append(b.owners, to)
	}
	b.balances[to] = prevBal + n
	return ids
}
