package game

import (
	"errors"

	"paradox.game/internal/protocol"
)

// Kind classifies why a transaction was rejected.
type Kind int

const (
	KindAuthorization Kind = iota + 1
	KindState
	KindValidation
	KindSupply
	KindPayment
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindSupply:
		return "supply"
	case KindPayment:
		return "payment"
	default:
		return "unknown"
	}
}

// Code is the wire error code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindAuthorization:
		return protocol.ErrNoPermission
	case KindState:
		return protocol.ErrBadState
	case KindValidation:
		return protocol.ErrBadRequest
	case KindSupply:
		return protocol.ErrNoSupply
	case KindPayment:
		return protocol.ErrBadPayment
	default:
		return protocol.ErrInternal
	}
}

// Rejection reasons. Callers match on these strings, keep them stable.
const (
	ReasonNotOwner           = "caller is not the owner"
	ReasonNotAdmin           = "caller is not an admin"
	ReasonPaused             = "game is paused"
	ReasonNotPaused          = "game is not paused"
	ReasonContractCaller     = "contracts are not allowed to mint"
	ReasonUnknownLevel       = "unknown level"
	ReasonInvalidLevel       = "invalid level index"
	ReasonEmptyImageURL      = "image url is required"
	ReasonEmptyAnswerHash    = "answer hash is required"
	ReasonInvalidQuantity    = "invalid quantity"
	ReasonIncorrectAnswer    = "incorrect answer"
	ReasonIncorrectPayment   = "incorrect payment amount"
	ReasonUnexpectedPayment  = "method does not accept payment"
	ReasonSoldOut            = "sold out"
	ReasonLevelExhausted     = "all items have been minted for this level"
	ReasonLevelInsufficient  = "not enough minteable items left in this level"
	ReasonWithoutAnswerLimit = "exceeded purchase-without-answer limit"
	ReasonUserLimit          = "max purchase limit for user reached for this level"
	ReasonInvalidRecipient   = "invalid recipient"
	ReasonInvalidAccount     = "invalid account"
	ReasonUnknownMethod      = "unknown method"
)

// Error is a rejected transaction. The game state is unchanged when one is returned.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Reason
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// IsKind reports whether err is a game rejection of the given kind.
func IsKind(err error, kind Kind) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == kind
}

// Reason returns the rejection reason of err, or "" if err is not a game rejection.
func Reason(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return ""
}

// Code maps err to a wire error code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind.Code()
	}
	return protocol.ErrInternal
}
