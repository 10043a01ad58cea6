package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// stateDigest hashes every rule-relevant piece of state in a fixed order.
// Replay compares it per transaction.
func (g *Game) stateDigest(seq uint64) string {
	h := sha256.New()
	var tmp [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		h.Write([]byte(s))
	}
	writeBool := func(b bool) {
		if b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	writeU64(seq)
	writeStr(g.cfg.BaseURI)
	writeBool(g.pause.IsPaused())
	h.Write(g.access.Owner().Bytes())
	admins := g.access.adminList()
	writeU64(uint64(len(admins)))
	for _, a := range admins {
		h.Write(a.Bytes())
	}

	writeU64(g.levels.Active())
	writeU64(g.levels.Count())
	for _, rec := range g.levels.levels {
		c := g.ledger.Level(rec.ID)
		writeU64(rec.ID)
		writeStr(rec.ImageURL)
		writeStr(rec.AnswerHash)
		writeBool(rec.Initialized)
		writeU64(c.Mints)
		writeU64(c.WithoutAnswer)
	}

	keys := make([]UserLevelKey, 0, len(g.ledger.users))
	for k := range g.ledger.users {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Level != keys[j].Level {
			return keys[i].Level < keys[j].Level
		}
		return keys[i].User.Cmp(keys[j].User) < 0
	})
	writeU64(uint64(len(keys)))
	for _, k := range keys {
		writeU64(k.Level)
		h.Write(k.User.Bytes())
		writeU64(g.ledger.users[k])
	}

	writeU64(g.ledger.Minted())
	writeU64(g.tokens.supply())
	for _, o := range g.tokens.owners {
		h.Write(o.Bytes())
	}
	writeStr(g.treasury.String())

	return hex.EncodeToString(h.Sum(nil))
}

// StateDigest is the digest of the current state as recorded in the tx log entry for the
// last applied transaction.
func (g *Game) StateDigest() string {
	cur := g.seq.Load()
	if cur == 0 {
		return g.stateDigest(0)
	}
	return g.stateDigest(cur - 1)
}
