package game

import "github.com/ethereum/go-ethereum/common"

// AccessControl holds the fixed owner and the owner-managed admin set.
type AccessControl struct {
	owner  common.Address
	admins map[common.Address]bool
}

func newAccessControl(owner common.Address) AccessControl {
	return AccessControl{
		owner:  owner,
		admins: map[common.Address]bool{owner: true},
	}
}

func (a *AccessControl) Owner() common.Address { return a.owner }

func (a *AccessControl) IsOwner(id common.Address) bool { return id == a.owner }

func (a *AccessControl) IsAdmin(id common.Address) bool { return a.admins[id] }

func (a *AccessControl) requireOwner(caller common.Address) error {
	if !a.IsOwner(caller) {
		return newError(KindAuthorization, ReasonNotOwner)
	}
	return nil
}

// requireAdmin passes for the owner even if it was removed from the admin set.
func (a *AccessControl) requireAdmin(caller common.Address) error {
	if a.IsOwner(caller) || a.IsAdmin(caller) {
		return nil
	}
	return newError(KindAuthorization, ReasonNotAdmin)
}

func (a *AccessControl) changeAdminStatus(t *txn, caller, id common.Address, flag bool) error {
	if err := a.requireOwner(caller); err != nil {
		return err
	}
	if id == (common.Address{}) {
		return newError(KindValidation, ReasonInvalidAccount)
	}
	old, had := a.admins[id]
	t.record(func() {
		if had {
			a.admins[id] = old
		} else {
			delete(a.admins, id)
		}
	})
	if flag {
		a.admins[id] = true
	} else {
		delete(a.admins, id)
	}
	return nil
}

func (a *AccessControl) adminList() []common.Address {
	out := make([]common.Address, 0, len(a.admins))
	for id, ok := range a.admins {
		if ok {
			out = append(out, id)
		}
	}
	sortAddresses(out)
	return out
}
