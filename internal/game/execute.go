package game

import (
	"strings"

	"paradox.game/internal/protocol"
)

// Execute applies one transaction as a unit. On error every mutation made by the
// transaction has been undone and the returned error is a *Error.
// Must be called from the game loop goroutine (or before Run starts).
func (g *Game) Execute(tx Tx) (Receipt, error) {
	seq := g.seq.Add(1) - 1

	t := &txn{}
	rec, err := g.dispatch(t, tx)
	if err != nil {
		t.rollback()
		g.rejected.Add(1)
		rec = Receipt{Code: Code(err), Reason: Reason(err)}
	} else {
		t.commit()
		g.applied.Add(1)
		rec.OK = true
		g.committedSinceSnapshot++
	}
	rec.Seq = seq
	rec.Method = tx.Method
	g.publishMetrics()

	if g.txLogger != nil {
		_ = g.txLogger.WriteTx(TxLogEntry{Seq: seq, Tx: tx, Receipt: rec, Digest: g.stateDigest(seq)})
	}
	if err == nil {
		g.auditTx(seq, tx, rec)
	}
	return rec, err
}

func (g *Game) dispatch(t *txn, tx Tx) (Receipt, error) {
	if tx.Method != protocol.MethodMint && tx.value().Sign() != 0 {
		return Receipt{}, newError(KindPayment, ReasonUnexpectedPayment)
	}
	p := tx.Params
	switch tx.Method {
	case protocol.MethodChangeAdminStatus:
		return Receipt{}, g.access.changeAdminStatus(t, tx.Caller, p.Account, p.Flag)

	case protocol.MethodSetPaused:
		return Receipt{}, g.pause.setPaused(t, &g.access, tx.Caller, p.Flag)

	case protocol.MethodSetBaseURI:
		if err := g.access.requireOwner(tx.Caller); err != nil {
			return Receipt{}, err
		}
		setString(t, &g.cfg.BaseURI, p.URI)
		return Receipt{}, nil

	case protocol.MethodCreateLevel:
		if err := g.pause.requirePaused(); err != nil {
			return Receipt{}, err
		}
		if err := g.access.requireAdmin(tx.Caller); err != nil {
			return Receipt{}, err
		}
		id, err := g.levels.create(t, p.ImageURL, p.AnswerHash)
		return Receipt{LevelID: id}, err

	case protocol.MethodUpdateLevel:
		if err := g.pause.requirePaused(); err != nil {
			return Receipt{}, err
		}
		if err := g.access.requireAdmin(tx.Caller); err != nil {
			return Receipt{}, err
		}
		return Receipt{LevelID: p.LevelID}, g.levels.update(t, p.LevelID, p.Initialized, p.ImageURL)

	case protocol.MethodSetActiveLevel:
		if err := g.access.requireAdmin(tx.Caller); err != nil {
			return Receipt{}, err
		}
		return Receipt{LevelID: p.LevelID}, g.levels.setActive(t, p.LevelID)

	case protocol.MethodMint:
		return g.mint(t, tx)

	case protocol.MethodWithdraw:
		return g.withdraw(t, tx)

	default:
		return Receipt{}, newError(KindValidation, ReasonUnknownMethod)
	}
}

func (g *Game) auditTx(seq uint64, tx Tx, rec Receipt) {
	if g.auditLogger == nil || tx.Method == protocol.MethodMint {
		return
	}
	details := map[string]any{}
	p := tx.Params
	switch tx.Method {
	case protocol.MethodChangeAdminStatus:
		details["account"] = p.Account.Hex()
		details["flag"] = p.Flag
	case protocol.MethodSetPaused:
		details["flag"] = p.Flag
	case protocol.MethodSetBaseURI:
		details["uri"] = p.URI
	case protocol.MethodCreateLevel:
		details["level_id"] = rec.LevelID
		details["image_url"] = p.ImageURL
	case protocol.MethodUpdateLevel:
		details["level_id"] = p.LevelID
		details["initialized"] = p.Initialized
		details["image_url"] = p.ImageURL
	case protocol.MethodSetActiveLevel:
		details["level_id"] = p.LevelID
	case protocol.MethodWithdraw:
		details["to"] = p.To.Hex()
		details["amount"] = rec.Amount.String()
	}
	_ = g.auditLogger.WriteAudit(AuditEntry{
		Seq:     seq,
		Actor:   tx.Caller.Hex(),
		Action:  auditAction(tx.Method),
		Details: details,
	})
}

// auditAction turns "createLevel" into "CREATE_LEVEL".
func auditAction(method string) string {
	var b strings.Builder
	var prev rune
	for _, r := range method {
		if r >= 'A' && r <= 'Z' && prev >= 'a' && prev <= 'z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.ToUpper(b.String())
}
