package factory

import (
	"context"
	"fmt"

	"deployer/internal/address"
	"deployer/internal/auth"
	"deployer/internal/host"
	"deployer/internal/ledger"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
)

// Client calls a factory contract through the ledger
type Client struct {
	ledger  *ledger.Ledger
	address host.Address
}

// NewClient creates a client for the factory registered at addr
func NewClient(l *ledger.Ledger, addr host.Address) *Client {
	return &Client{ledger: l, address: addr}
}

// Address returns the factory's contract address
func (c *Client) Address() host.Address {
	return c.address
}

// Deploy submits a deploy transaction. authorizer supplies the deployer's consent;
// it is not consulted when the deployer is the factory itself.
func (c *Client) Deploy(ctx context.Context, authorizer auth.Authorizer, req DeployRequest) (*DeployResult, error) {
	args, err := EncodeDeployArgs(req)
	if err != nil {
		return nil, err
	}

	ret, err := c.ledger.Invoke(ctx, ledger.Call{
		Contract:   c.address,
		Function:   FnDeploy,
		Args:       args,
		Authorizer: authorizer,
	})
	if err != nil {
		return nil, err
	}

	items, err := scval.ToVec(ret)
	if err != nil || len(items) != 2 {
		return nil, fmt.Errorf("unexpected deploy return value %s", ret.Type.String())
	}
	deployed, err := scval.ToAddress(items[0])
	if err != nil {
		return nil, err
	}

	return &DeployResult{Address: deployed, InitResult: items[1]}, nil
}

// CalculateAddress asks the factory for the address of (deployer, salt).
// The call is simulated and never changes the ledger.
func (c *Client) CalculateAddress(ctx context.Context, deployer host.Address, salt host.Salt) (host.Address, error) {
	deployerVal, err := scval.Address(deployer)
	if err != nil {
		return host.Address{}, fmt.Errorf("%w: %v", host.ErrInvalidArguments, err)
	}

	ret, err := c.ledger.Simulate(ctx, ledger.Call{
		Contract: c.address,
		Function: FnCalculateAddress,
		Args:     []xdr.ScVal{deployerVal, scval.Bytes(salt[:])},
	})
	if err != nil {
		return host.Address{}, err
	}
	return scval.ToAddress(ret)
}

// DeployInvocation returns the invocation tree a delegated deployer has to sign for req
func (c *Client) DeployInvocation(req DeployRequest) (xdr.SorobanAuthorizedInvocation, error) {
	return DeployInvocation(c.ledger.Deriver(), c.address, req)
}

// DeployInvocation returns the invocation tree the factory at factoryAddr demands from
// req.Deployer: the deploy call itself with the create-contract host function below it
func DeployInvocation(deriver *address.Deriver, factoryAddr host.Address, req DeployRequest) (xdr.SorobanAuthorizedInvocation, error) {
	args, err := EncodeDeployArgs(req)
	if err != nil {
		return xdr.SorobanAuthorizedInvocation{}, err
	}

	create := auth.CreateContractInvocation(deriver.Preimage(factoryAddr, req.Deployer, req.Salt), req.WasmHash)
	return auth.ContractInvocation(factoryAddr, FnDeploy, args, create)
}
