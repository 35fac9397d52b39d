package debug_test

import (
	"encoding/json"
	"testing"

	"deployer/internal/address"
	"deployer/internal/auth"
	"deployer/internal/debug"
	"deployer/internal/host"
	"deployer/internal/scval"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeInvocation(t *testing.T) {
	deriver := address.NewDeriver(network.TestNetworkPassphrase)
	factory := host.ContractAddress([32]byte{1})
	deployer := host.MustParseAddress(keypair.MustRandom().Address())
	salt := host.Salt{9}
	code := host.HashCode([]byte("code"))

	create := auth.CreateContractInvocation(deriver.Preimage(factory, deployer, salt), code)
	inv, err := auth.ContractInvocation(factory, "deploy", []xdr.ScVal{scval.Symbol("init"), scval.U32(7)}, create)
	require.NoError(t, err)

	got := debug.DescribeInvocation(inv)
	assert.Equal(t, factory.String(), got.Contract)
	assert.Equal(t, "deploy", got.Function)
	assert.Equal(t, []interface{}{"init", uint32(7)}, got.Args)

	require.Len(t, got.SubInvocations, 1)
	sub := got.SubInvocations[0]
	assert.Equal(t, "create_contract", sub.Function)
	assert.Equal(t, deployer.String(), sub.Owner)
	assert.Equal(t, code.String(), sub.WasmHash)
	assert.Len(t, sub.Salt, 64)
	assert.Empty(t, sub.SubInvocations)

	formatted, err := debug.FormatInvocation(inv)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(formatted), &decoded))
	assert.Equal(t, "deploy", decoded["function"])
}
