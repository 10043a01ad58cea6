package game

import (
	"crypto/subtle"

	"github.com/ethereum/go-ethereum/common"
)

// Committer binds a level's stored answer hash to a caller identity:
// Commit(Hash(plaintext), caller) == Hash(Hash(plaintext) ‖ caller).
// Clients compute the same value for their own address and submit it as the guess,
// so a guess observed in flight is useless to anyone else.
type Committer interface {
	Commit(answerHash string, caller common.Address) common.Hash
}

// AnswerVerifier is stateless; it only sees the stored hash and the submitted guess.
type AnswerVerifier struct {
	committer Committer
}

func (v AnswerVerifier) Check(answerHash string, caller common.Address, guess common.Hash) bool {
	if answerHash == "" || guess == (common.Hash{}) {
		return false
	}
	want := v.committer.Commit(answerHash, caller)
	return subtle.ConstantTimeCompare(want[:], guess[:]) == 1
}
