package address

import (
	"crypto/sha256"
	"testing"

	"deployer/internal/host"

	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	factoryA = host.ContractAddress([32]byte{0xa})
	factoryB = host.ContractAddress([32]byte{0xb})
	alice    = host.AccountAddress([32]byte{1})
	bob      = host.AccountAddress([32]byte{2})
)

func TestDerive_Deterministic(t *testing.T) {
	d := NewDeriver(network.TestNetworkPassphrase)

	first := d.Derive(factoryA, alice, host.Salt{1})
	second := NewDeriver(network.TestNetworkPassphrase).Derive(factoryA, alice, host.Salt{1})

	assert.Equal(t, first, second)
	assert.Equal(t, host.KindContract, first.Kind())
}

func TestDerive_InputsChangeTheAddress(t *testing.T) {
	d := NewDeriver(network.TestNetworkPassphrase)
	base := d.Derive(factoryA, alice, host.Salt{1})

	tests := []struct {
		name string
		addr host.Address
	}{
		{"salt", d.Derive(factoryA, alice, host.Salt{2})},
		{"owner", d.Derive(factoryA, bob, host.Salt{1})},
		{"factory", d.Derive(factoryB, alice, host.Salt{1})},
		{"network", NewDeriver(network.PublicNetworkPassphrase).Derive(factoryA, alice, host.Salt{1})},
		{"owner kind", d.Derive(factoryA, host.ContractAddress(alice.Key()), host.Salt{1})},
	}

	seen := map[host.Address]string{base: "base"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, dup := seen[tt.addr]
			assert.False(t, dup, "collides with %s", prev)
			seen[tt.addr] = tt.name
		})
	}
}

func TestDerive_MatchesPreimageHash(t *testing.T) {
	d := NewDeriver(network.TestNetworkPassphrase)

	preimage := xdr.HashIdPreimage{
		Type: xdr.EnvelopeTypeEnvelopeTypeContractId,
		ContractId: &xdr.HashIdPreimageContractId{
			NetworkId:          xdr.Hash(network.ID(network.TestNetworkPassphrase)),
			ContractIdPreimage: d.Preimage(factoryA, alice, host.Salt{3}),
		},
	}
	raw, err := preimage.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, host.ContractAddress(sha256.Sum256(raw)), d.Derive(factoryA, alice, host.Salt{3}))
	assert.Equal(t, network.ID(network.TestNetworkPassphrase), d.NetworkID())
}

func TestPreimage(t *testing.T) {
	d := NewDeriver(network.TestNetworkPassphrase)
	p := d.Preimage(factoryA, alice, host.Salt{5})

	require.Equal(t, xdr.ContractIdPreimageTypeContractIdPreimageFromAddress, p.Type)
	require.NotNil(t, p.FromAddress)

	owner, err := host.AddressFromScAddress(p.FromAddress.Address)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
	assert.Equal(t, xdr.Uint256(ScopedSalt(factoryA, host.Salt{5})), p.FromAddress.Salt)
}

func TestScopedSalt(t *testing.T) {
	assert.Equal(t, ScopedSalt(factoryA, host.Salt{1}), ScopedSalt(factoryA, host.Salt{1}))
	assert.NotEqual(t, ScopedSalt(factoryA, host.Salt{1}), ScopedSalt(factoryB, host.Salt{1}))
	assert.NotEqual(t, ScopedSalt(factoryA, host.Salt{1}), ScopedSalt(factoryA, host.Salt{2}))

	// The factory kind is part of the scope
	assert.NotEqual(t,
		ScopedSalt(host.ContractAddress([32]byte{1}), host.Salt{}),
		ScopedSalt(host.AccountAddress([32]byte{1}), host.Salt{}))
}
