package game

type TxLogger interface {
	WriteTx(entry TxLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TxLogEntry struct {
	Seq     uint64  `json:"seq"`
	Tx      Tx      `json:"tx"`
	Receipt Receipt `json:"receipt"`
	Digest  string  `json:"digest"`
}

type AuditEntry struct {
	Seq     uint64         `json:"seq"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"` // e.g. "CREATE_LEVEL"
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type Metrics struct {
	Seq         uint64 `json:"seq"`
	Applied     uint64 `json:"applied"`
	Rejected    uint64 `json:"rejected"`
	Minted      uint64 `json:"minted"`
	Levels      uint64 `json:"levels"`
	Paused      bool   `json:"paused"`
	QueueDepths struct {
		Inbox int `json:"inbox"`
		Reads int `json:"reads"`
	} `json:"queue_depths"`
}
