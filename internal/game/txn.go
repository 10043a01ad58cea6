package game

// txn is the undo log of the transaction being applied.
// Every mutation records how to restore its pre-image before writing.
type txn struct {
	undo []func()
}

func (t *txn) record(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *txn) commit() {
	t.undo = nil
}

func setUint64(t *txn, p *uint64, v uint64) {
	old := *p
	t.record(func() { *p = old })
	*p = v
}

func setBool(t *txn, p *bool, v bool) {
	old := *p
	t.record(func() { *p = old })
	*p = v
}

func setString(t *txn, p *string, v string) {
	old := *p
	t.record(func() { *p = old })
	*p = v
}
