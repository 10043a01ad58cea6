package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Address         string `json:"address"`
	ClientName      string `json:"client_name,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// CHALLENGE (server -> client)
type ChallengeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Nonce           string `json:"nonce"`
}

// AUTH (client -> server)
type AuthMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Signature       string `json:"signature"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	Address         string     `json:"address"`
	AccountKind     string     `json:"account_kind"`
	Game            GameParams `json:"game"`
}

type GameParams struct {
	BaseURI                           string `json:"base_uri"`
	TotalItems                        uint64 `json:"total_items"`
	ItemsPerLevel                     uint64 `json:"items_per_level"`
	MaxPurchasesWithoutAnswerPerLevel uint64 `json:"max_purchases_without_answer_per_level"`
	MaxMintsPerUserPerLevel           uint64 `json:"max_mints_per_user_per_level"`
	PricePerItem                      string `json:"price_per_item"`
	MaxPricePerItem                   string `json:"max_price_per_item"`
	Paused                            bool   `json:"paused"`
	ActiveLevel                       uint64 `json:"active_level"`
}

// CALL (client -> server)
type CallMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ReqID           string     `json:"req_id"`
	Method          string     `json:"method"`
	Params          CallParams `json:"params"`
	// Value is the attached payment in wei (decimal or 0x hex). Empty means zero.
	Value string `json:"value,omitempty"`
}

// CallParams is a union of every method's arguments; each method reads only its own fields.
type CallParams struct {
	Account     string `json:"account,omitempty"`
	Flag        bool   `json:"flag,omitempty"`
	URI         string `json:"uri,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	AnswerHash  string `json:"answer_hash,omitempty"`
	LevelID     uint64 `json:"level_id,omitempty"`
	Initialized bool   `json:"initialized,omitempty"`
	Guess       string `json:"guess,omitempty"`
	Quantity    uint64 `json:"quantity,omitempty"`
	To          string `json:"to,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	OK              bool     `json:"ok"`
	Seq             uint64   `json:"seq,omitempty"`
	Code            string   `json:"code,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	TokenIDs        []uint64 `json:"token_ids,omitempty"`
	Amount          string   `json:"amount,omitempty"`
}
