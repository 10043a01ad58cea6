package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnauthenticated = "E_UNAUTHENTICATED"
	ErrRateLimit       = "E_RATE_LIMIT"
	ErrGameBusy        = "E_GAME_BUSY"

	// Game rule layer.
	ErrNoPermission = "E_NO_PERMISSION"
	ErrBadState     = "E_BAD_STATE"
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNoSupply     = "E_NO_SUPPLY"
	ErrBadPayment   = "E_BAD_PAYMENT"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnauthenticated: {},
	ErrRateLimit:       {},
	ErrGameBusy:        {},
	ErrNoPermission:    {},
	ErrBadState:        {},
	ErrBadRequest:      {},
	ErrNoSupply:        {},
	ErrBadPayment:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
