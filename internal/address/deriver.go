// Package address derives deterministic contract addresses.
//
// An address is sha256 of the XDR HashIdPreimage for CONTRACT_ID on the configured
// network, built from the owner and a salt scoped to the deploying factory:
//
//	scopedSalt = sha256(factoryKind || factoryKey || salt)
//	address    = sha256(XDR(HashIdPreimage{CONTRACT_ID, networkID, FROM_ADDRESS{owner, scopedSalt}}))
//
// Scoping the salt means two factories deploying for the same owner and salt never collide.
package address

import (
	"crypto/sha256"
	"fmt"

	"deployer/internal/host"

	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
)

// Deriver computes contract addresses for one network
type Deriver struct {
	networkID [32]byte
}

// NewDeriver creates a Deriver for the given network passphrase
func NewDeriver(networkPassphrase string) *Deriver {
	return &Deriver{networkID: network.ID(networkPassphrase)}
}

// NetworkID returns the hash of the network passphrase
func (d *Deriver) NetworkID() [32]byte {
	return d.networkID
}

// ScopedSalt returns the salt actually placed in the preimage
func ScopedSalt(factory host.Address, salt host.Salt) [32]byte {
	key := factory.Key()
	buf := make([]byte, 0, 1+len(key)+len(salt))
	buf = append(buf, byte(factory.Kind()))
	buf = append(buf, key[:]...)
	buf = append(buf, salt[:]...)
	return sha256.Sum256(buf)
}

// Preimage returns the contract id preimage for an owner and salt deployed through factory
func (d *Deriver) Preimage(factory, owner host.Address, salt host.Salt) xdr.ContractIdPreimage {
	return xdr.ContractIdPreimage{
		Type: xdr.ContractIdPreimageTypeContractIdPreimageFromAddress,
		FromAddress: &xdr.ContractIdPreimageFromAddress{
			Address: owner.MustScAddress(),
			Salt:    xdr.Uint256(ScopedSalt(factory, salt)),
		},
	}
}

// Derive returns the address a contract deployed by factory for (owner, salt) has.
// It has no side effects and does not require the contract to exist.
func (d *Deriver) Derive(factory, owner host.Address, salt host.Salt) host.Address {
	preimage := xdr.HashIdPreimage{
		Type: xdr.EnvelopeTypeEnvelopeTypeContractId,
		ContractId: &xdr.HashIdPreimageContractId{
			NetworkId:          xdr.Hash(d.networkID),
			ContractIdPreimage: d.Preimage(factory, owner, salt),
		},
	}

	raw, err := preimage.MarshalBinary()
	if err != nil {
		// Only reachable with a zero Address, which callers never hold.
		panic(fmt.Sprintf("address: failed to marshal contract id preimage: %v", err))
	}
	return host.ContractAddress(sha256.Sum256(raw))
}
