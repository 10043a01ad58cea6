package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello     = "HELLO"
	TypeChallenge = "CHALLENGE"
	TypeAuth      = "AUTH"
	TypeWelcome   = "WELCOME"
	TypeCall      = "CALL"
	TypeResult    = "RESULT"
)

// Call methods. Names follow the original contract ABI.
const (
	MethodChangeAdminStatus = "changeAdminStatus"
	MethodSetPaused         = "setPaused"
	MethodSetBaseURI        = "setBaseURI"
	MethodCreateLevel       = "createLevel"
	MethodUpdateLevel       = "updateLevel"
	MethodSetActiveLevel    = "setActiveLevel"
	MethodMint              = "mint"
	MethodWithdraw          = "withdraw"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// LoginMessage is the text a client signs (EIP-191 personal sign) to prove it controls its address.
func LoginMessage(nonce string) string {
	return "paradox login: " + nonce
}
