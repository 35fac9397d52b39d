package models

import "time"

// StorageEntry represents a contract instance storage key-value pair
type StorageEntry struct {
	// Identification
	ContractID string `json:"contract_id"`
	Key        string `json:"key"`

	// Value
	Value     interface{} `json:"value"`      // Parsed value
	ValueType string      `json:"value_type"` // ScVal type name
	RawValue  []byte      `json:"-"`          // XDR encoded ScVal
}

// CodeBlob represents uploaded contract code
type CodeBlob struct {
	Hash       string    `json:"hash"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}
