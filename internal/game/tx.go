package game

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AccountKind is supplied by the calling layer. Only Human accounts may mint.
type AccountKind uint8

const (
	AccountHuman AccountKind = iota
	AccountProgram
)

func (k AccountKind) String() string {
	if k == AccountProgram {
		return "program"
	}
	return "human"
}

func (k AccountKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AccountKind) UnmarshalText(b []byte) error {
	v, err := ParseAccountKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func ParseAccountKind(s string) (AccountKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "human":
		return AccountHuman, nil
	case "program", "contract":
		return AccountProgram, nil
	default:
		return AccountHuman, fmt.Errorf("unknown account kind %q", s)
	}
}

// AccountClassifier tells originating accounts apart from programs.
// The game never classifies callers itself; transports stamp Tx.CallerKind with it.
type AccountClassifier interface {
	Classify(id common.Address) AccountKind
}

// StaticClassifier treats every listed address as a program and everything else as human.
type StaticClassifier map[common.Address]struct{}

func NewStaticClassifier(programs []common.Address) StaticClassifier {
	c := make(StaticClassifier, len(programs))
	for _, p := range programs {
		c[p] = struct{}{}
	}
	return c
}

func (c StaticClassifier) Classify(id common.Address) AccountKind {
	if _, ok := c[id]; ok {
		return AccountProgram
	}
	return AccountHuman
}

// Tx is one call against the game. Method names match protocol.Method*.
type Tx struct {
	Caller     common.Address `json:"caller"`
	CallerKind AccountKind    `json:"caller_kind"`
	Method     string         `json:"method"`
	Params     TxParams       `json:"params"`
	// Value is the attached payment in wei; nil means zero.
	Value *big.Int `json:"value,omitempty"`
}

// TxParams is a union of every method's arguments.
type TxParams struct {
	Account     common.Address `json:"account"`
	Flag        bool           `json:"flag,omitempty"`
	URI         string         `json:"uri,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	AnswerHash  string         `json:"answer_hash,omitempty"`
	LevelID     uint64         `json:"level_id,omitempty"`
	Initialized bool           `json:"initialized,omitempty"`
	Guess       common.Hash    `json:"guess"`
	Quantity    uint64         `json:"quantity,omitempty"`
	To          common.Address `json:"to"`
}

func (t Tx) value() *big.Int {
	if t.Value == nil {
		return new(big.Int)
	}
	return t.Value
}

// Receipt is the outcome of an applied transaction. Failed transactions also get a receipt
// (and consume a sequence number) so the transaction log has no gaps.
type Receipt struct {
	Seq    uint64 `json:"seq"`
	Method string `json:"method"`
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`

	LevelID  uint64   `json:"level_id,omitempty"`
	TokenIDs []uint64 `json:"token_ids,omitempty"`
	// Amount is the payment accepted by mint, or the balance released by withdraw.
	Amount *big.Int `json:"amount,omitempty"`
}
