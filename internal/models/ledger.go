package models

import "time"

// LedgerInfo represents the outcome of one committed transaction
type LedgerInfo struct {
	Sequence   uint32    `json:"sequence"`
	Contract   string    `json:"contract"`
	Function   string    `json:"function"`
	ClosedAt   time.Time `json:"closed_at"`
	DurationMs int64     `json:"duration_ms"`
}
