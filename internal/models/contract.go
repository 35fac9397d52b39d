package models

import "time"

// ContractInstance represents a contract instance claimed at an address
type ContractInstance struct {
	// Identification
	ContractID        string `json:"contract_id"`
	FactoryContractID string `json:"factory_contract_id,omitempty"` // Empty for registered (non-deployed) contracts

	// Deployment inputs
	Deployer string `json:"deployer,omitempty"`
	Salt     string `json:"salt,omitempty"` // Hex, as supplied by the deployer
	WasmHash string `json:"wasm_hash"`      // Hex sha256 of the code

	// Ledger context
	CreatedAtLedger uint32    `json:"created_at_ledger"`
	CreatedAt       time.Time `json:"created_at"`
}
