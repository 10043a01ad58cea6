package commitment

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestAnswerHash_Format(t *testing.T) {
	h := AnswerHash("ignorance is strength")
	if len(h) != 66 || !strings.HasPrefix(h, "0x") {
		t.Fatalf("hash=%q", h)
	}
	if h != strings.ToLower(h) {
		t.Fatalf("expected lowercase hex: %q", h)
	}
	if AnswerHash("ignorance is strength") != h {
		t.Fatalf("not deterministic")
	}
	if AnswerHash("ignorance is weakness") == h {
		t.Fatalf("different plaintexts collide")
	}
}

func TestAnswerHash_KnownVector(t *testing.T) {
	// keccak256("") is a fixed constant.
	want := "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	if got := AnswerHash(""); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCommit_BindsCaller(t *testing.T) {
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	stored := AnswerHash("answer")

	a := Keccak{}.Commit(stored, alice)
	if a == (common.Hash{}) {
		t.Fatalf("zero commitment")
	}
	if a != Guess("answer", alice) {
		t.Fatalf("Guess disagrees with Commit")
	}
	if a == (Keccak{}).Commit(stored, bob) {
		t.Fatalf("commitment not bound to caller")
	}
	if a == Guess("other", alice) {
		t.Fatalf("commitment not bound to answer")
	}
}
