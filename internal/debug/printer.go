package debug

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"deployer/internal/host"
	"deployer/internal/models"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
)

// Invocation is a readable form of an authorized invocation tree
type Invocation struct {
	Contract string        `json:"contract,omitempty"`
	Function string        `json:"function"`
	Args     []interface{} `json:"args,omitempty"`

	// Create-contract host function only
	Owner    string `json:"owner,omitempty"`
	Salt     string `json:"salt,omitempty"`
	WasmHash string `json:"wasm_hash,omitempty"`

	SubInvocations []Invocation `json:"sub_invocations,omitempty"`
}

// DescribeInvocation converts inv into its readable form
func DescribeInvocation(inv xdr.SorobanAuthorizedInvocation) Invocation {
	var out Invocation

	switch inv.Function.Type {
	case xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeContractFn:
		fn := inv.Function.ContractFn
		out.Contract = scAddressString(fn.ContractAddress)
		out.Function = string(fn.FunctionName)
		for _, arg := range fn.Args {
			out.Args = append(out.Args, scval.ToInterface(arg))
		}

	case xdr.SorobanAuthorizedFunctionTypeSorobanAuthorizedFunctionTypeCreateContractHostFn:
		out.Function = "create_contract"
		create := inv.Function.CreateContractHostFn
		if from := create.ContractIdPreimage.FromAddress; from != nil {
			out.Owner = scAddressString(from.Address)
			out.Salt = hex.EncodeToString(from.Salt[:])
		}
		if hash := create.Executable.WasmHash; hash != nil {
			out.WasmHash = hex.EncodeToString(hash[:])
		}

	default:
		out.Function = inv.Function.Type.String()
	}

	for _, sub := range inv.SubInvocations {
		out.SubInvocations = append(out.SubInvocations, DescribeInvocation(sub))
	}
	return out
}

// FormatInvocation renders inv as indented JSON
func FormatInvocation(inv xdr.SorobanAuthorizedInvocation) (string, error) {
	jsonData, err := json.MarshalIndent(DescribeInvocation(inv), "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// PrintInvocation prints the invocation tree in JSON format
func PrintInvocation(msg string, inv xdr.SorobanAuthorizedInvocation) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	jsonData, err := FormatInvocation(inv)
	if err != nil {
		slog.Error("Failed to marshal invocation to JSON", "error", err)
		return
	}

	slog.Debug(msg, "json", jsonData)
}

// PrintInstance prints the contract instance in JSON format
func PrintInstance(instance *models.ContractInstance) {
	jsonData, err := json.MarshalIndent(instance, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal contract instance to JSON", "error", err)
		return
	}

	slog.Debug("Contract instance details", "json", string(jsonData))
}

func scAddressString(sc xdr.ScAddress) string {
	addr, err := host.AddressFromScAddress(sc)
	if err != nil {
		return sc.Type.String()
	}
	return addr.String()
}
