package model

import "fmt"

// LogRecord is the normalized representation of a chain log for storage.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Position returns the chain ordering key of the log.
func (lr LogRecord) Position() Position {
	return Position{Block: lr.BlockNumber, Tx: lr.TxIndex, Log: lr.LogIndex}
}

// Topic0 returns the event signature topic, or "" when the log has none.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// Position orders logs by (block, transaction index, log index).
type Position struct {
	Block uint64 `json:"block"`
	Tx    uint64 `json:"tx"`
	Log   uint64 `json:"log"`
}

// Less reports whether p sorts strictly before o.
func (p Position) Less(o Position) bool {
	if p.Block != o.Block {
		return p.Block < o.Block
	}
	if p.Tx != o.Tx {
		return p.Tx < o.Tx
	}
	return p.Log < o.Log
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d/%d", p.Block, p.Tx, p.Log)
}
