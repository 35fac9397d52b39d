package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"deployer/internal/auth"
	"deployer/internal/factory"
	"deployer/internal/host"
	"deployer/internal/models"
	"deployer/internal/scval"

	"github.com/stellar/go/xdr"
)

// ParseDeployRequest converts the JSON body of a deploy request into factory arguments
// and the credentials supplied with it
func ParseDeployRequest(body models.DeployRequest) (factory.DeployRequest, []auth.Credential, error) {
	var req factory.DeployRequest

	deployer, err := host.ParseAddress(body.Deployer)
	if err != nil {
		return req, nil, fmt.Errorf("deployer: %w", err)
	}
	wasmHash, err := host.ParseCodeHash(body.WasmHash)
	if err != nil {
		return req, nil, fmt.Errorf("wasm_hash: %w", err)
	}
	salt, err := host.ParseSalt(body.Salt)
	if err != nil {
		return req, nil, fmt.Errorf("salt: %w", err)
	}
	if !scval.ValidSymbol(body.InitFn) {
		return req, nil, fmt.Errorf("init_fn: invalid symbol %q", body.InitFn)
	}

	args := make([]xdr.ScVal, len(body.InitArgs))
	for i, encoded := range body.InitArgs {
		args[i], err = scval.DecodeBase64(encoded)
		if err != nil {
			return req, nil, fmt.Errorf("init_args[%d]: %w", i, err)
		}
	}

	creds := make([]auth.Credential, len(body.Credentials))
	for i, c := range body.Credentials {
		addr, err := host.ParseAddress(c.Address)
		if err != nil {
			return req, nil, fmt.Errorf("credentials[%d].address: %w", i, err)
		}
		sig, err := base64.StdEncoding.DecodeString(c.Signature)
		if err != nil {
			return req, nil, fmt.Errorf("credentials[%d].signature: %w", i, err)
		}
		creds[i] = auth.Credential{
			Address:          addr,
			Nonce:            c.Nonce,
			ExpirationLedger: c.ExpirationLedger,
			Signature:        sig,
		}
	}

	req = factory.DeployRequest{
		Deployer: deployer,
		WasmHash: wasmHash,
		Salt:     salt,
		InitFn:   body.InitFn,
		InitArgs: args,
	}
	return req, creds, nil
}

// EncodeInvocation returns the base64 XDR encoding of an invocation tree
func EncodeInvocation(inv xdr.SorobanAuthorizedInvocation) (string, error) {
	raw, err := inv.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal invocation: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// StatusForError maps ledger and factory errors to HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, host.ErrInitializationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, host.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, host.ErrAddressAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, host.ErrInvalidCodeReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, host.ErrContractNotFound), errors.Is(err, host.ErrUnknownFunction):
		return http.StatusNotFound
	case errors.Is(err, host.ErrInvalidArguments):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// parsePagination reads limit and offset query parameters
func parsePagination(r *http.Request) (limit, offset int) {
	query := r.URL.Query()

	limit = 50 // default
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// routeLabel returns the route template of a request path, used as a metric label
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case path == "/" || path == "/health" || path == "/contracts":
		return path
	case parts[0] == "contracts":
		return "/contracts/{id}"
	case parts[0] == "factories" && len(parts) == 3:
		return "/factories/{id}/" + parts[2]
	default:
		return "other"
	}
}
