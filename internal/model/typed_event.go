package model

// TypedEvent is the JSONL envelope written by the decode command.
type TypedEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	BlockHash   string      `json:"block_hash"`
	TxHash      string      `json:"tx_hash"`
	TxIndex     uint64      `json:"tx_index"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// NewTypedEvent wraps a decoded event with its block context.
func NewTypedEvent(log LogRecord, ev Event) *TypedEvent {
	meta := ev.Meta()
	return &TypedEvent{
		ChainID:     meta.ChainID,
		BlockNumber: meta.BlockNumber,
		BlockHash:   meta.BlockHash,
		TxHash:      meta.TxHash,
		TxIndex:     meta.TxIndex,
		LogIndex:    meta.LogIndex,
		Address:     meta.Address,
		EventName:   ev.Name(),
		Timestamp:   meta.Timestamp,
		Decoded:     ev,
		Raw:         &RawLogRef{Topic0: log.Topic0(), Data: log.Data},
	}
}
