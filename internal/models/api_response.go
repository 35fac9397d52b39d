package models

import (
	"time"
)

// DeployRequest is the body of POST /factories/{id}/deploy
type DeployRequest struct {
	Deployer string   `json:"deployer"`  // G... or C... address
	WasmHash string   `json:"wasm_hash"` // Hex
	Salt     string   `json:"salt"`      // Hex, 32 bytes
	InitFn   string   `json:"init_fn"`
	InitArgs []string `json:"init_args,omitempty"` // Base64 XDR ScVal each

	// Signatures of the deployer over the deploy invocation
	Credentials []CredentialRequest `json:"credentials,omitempty"`
}

// CredentialRequest is one signed authorization entry
type CredentialRequest struct {
	Address          string `json:"address"`
	Nonce            int64  `json:"nonce"`
	ExpirationLedger uint32 `json:"expiration_ledger"`
	Signature        string `json:"signature"` // Base64
}

// DeployResponse is returned by a successful deployment
type DeployResponse struct {
	ContractID string      `json:"contract_id"`
	InitResult interface{} `json:"init_result"`
	LedgerSeq  uint32      `json:"ledger_seq"`
}

// InvocationResponse carries the invocation tree a deployer has to sign
type InvocationResponse struct {
	Invocation string `json:"invocation"` // Base64 XDR SorobanAuthorizedInvocation
	Address    string `json:"address"`    // Address the deployment will claim
}

// AddressResponse is returned by the address calculation endpoints
type AddressResponse struct {
	Factory  string `json:"factory"`
	Deployer string `json:"deployer"`
	Salt     string `json:"salt"`
	Address  string `json:"address,omitempty"`
	Error    string `json:"error,omitempty"` // Batch only: why this entry has no address
}

// AddressQuery is one (deployer, salt) pair of a batch calculation
type AddressQuery struct {
	Deployer string `json:"deployer"`
	Salt     string `json:"salt"`
}

// AddressBatchRequest is the body of POST /factories/{id}/addresses
type AddressBatchRequest struct {
	Queries []AddressQuery `json:"queries"`
}

// AddressBatchResponse lists addresses in the order of the queries
type AddressBatchResponse struct {
	Addresses []AddressResponse `json:"addresses"`
}

// ContractResponse represents a contract instance with its current storage
type ContractResponse struct {
	ContractInstance
	Storage []StorageEntry `json:"storage"`
}

// ContractListResponse represents a paginated list of contract instances
type ContractListResponse struct {
	Contracts []*ContractInstance `json:"contracts"`
	Page      int                 `json:"page"`
	PageSize  int                 `json:"page_size"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string     `json:"status"`
	Timestamp  time.Time  `json:"timestamp"`
	Service    string     `json:"service"`
	LastLedger LedgerInfo `json:"last_ledger"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
