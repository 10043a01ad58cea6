// Package commitment implements the caller-bound answer commitment used by levels.
//
// A level stores AnswerHash(plaintext). A player proves knowledge of the answer by
// submitting keccak256(abi.encode(AnswerHash(plaintext), playerAddress)), which is
// worthless to anyone who copies it from the wire.
package commitment

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var bindArgs = mustArgs("string", "address")

func mustArgs(types ...string) abi.Arguments {
	out := make(abi.Arguments, 0, len(types))
	for _, s := range types {
		t, err := abi.NewType(s, "", nil)
		if err != nil {
			panic(err)
		}
		out = append(out, abi.Argument{Type: t})
	}
	return out
}

// AnswerHash is the inner hash stored on a level: 0x-prefixed lowercase keccak256 hex.
func AnswerHash(plaintext string) string {
	return crypto.Keccak256Hash([]byte(plaintext)).Hex()
}

// Keccak is the production Committer.
type Keccak struct{}

// Commit binds answerHash to caller. It returns the zero hash if encoding fails,
// which never verifies.
func (Keccak) Commit(answerHash string, caller common.Address) common.Hash {
	packed, err := bindArgs.Pack(answerHash, caller)
	if err != nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(packed)
}

// Guess is what a client with the plaintext submits from address caller.
func Guess(plaintext string, caller common.Address) common.Hash {
	return Keccak{}.Commit(AnswerHash(plaintext), caller)
}
