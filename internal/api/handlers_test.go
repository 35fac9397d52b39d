package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"deployer/internal/address"
	"deployer/internal/auth"
	"deployer/internal/contracts/valuestore"
	"deployer/internal/factory"
	"deployer/internal/host"
	"deployer/internal/ledger"
	"deployer/internal/models"
	"deployer/internal/scval"
	"deployer/internal/storage"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passphrase = network.TestNetworkPassphrase

type testServer struct {
	handler http.Handler
	ledger  *ledger.Ledger
	factory host.Address
	code    host.CodeHash
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	deriver := address.NewDeriver(passphrase)
	l := ledger.New(storage.NewMemoryStore(), deriver)

	code, err := l.UploadCode(ctx, valuestore.Code, valuestore.Contract{})
	require.NoError(t, err)
	factoryAddr, err := l.RegisterContract(ctx, [32]byte{1}, factory.Code, factory.NewContract(factory.New(deriver)))
	require.NoError(t, err)

	return &testServer{
		handler: NewServer(0, l, passphrase).Handler(),
		ledger:  l,
		factory: factoryAddr,
		code:    code,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) deployBody(t *testing.T, deployer string, salt byte, initArg xdr.ScVal) models.DeployRequest {
	t.Helper()
	arg, err := scval.EncodeBase64(initArg)
	require.NoError(t, err)
	return models.DeployRequest{
		Deployer: deployer,
		WasmHash: s.code.String(),
		Salt:     host.Salt{salt}.String(),
		InitFn:   "init",
		InitArgs: []string{arg},
	}
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[models.HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)

	rec = s.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignedDeploymentFlow(t *testing.T) {
	s := newTestServer(t)
	kp := keypair.MustRandom()
	body := s.deployBody(t, kp.Address(), 7, scval.U32(5))
	factoryPath := "/factories/" + s.factory.String()

	// 1. The address is known before deployment
	rec := s.do(t, http.MethodGet, fmt.Sprintf("%s/address?deployer=%s&salt=%s", factoryPath, body.Deployer, body.Salt), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	calculated := decode[models.AddressResponse](t, rec)

	// 2. Fetch and sign the invocation
	rec = s.do(t, http.MethodPost, factoryPath+"/invocation", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	invResp := decode[models.InvocationResponse](t, rec)
	assert.Equal(t, calculated.Address, invResp.Address)

	raw, err := base64.StdEncoding.DecodeString(invResp.Invocation)
	require.NoError(t, err)
	var inv xdr.SorobanAuthorizedInvocation
	require.NoError(t, inv.UnmarshalBinary(raw))

	cred, err := auth.Sign(kp, passphrase, inv, 1, 1000)
	require.NoError(t, err)

	// Without the signature the deployment is rejected
	rec = s.do(t, http.MethodPost, factoryPath+"/deploy", body)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	body.Credentials = []models.CredentialRequest{{
		Address:          kp.Address(),
		Nonce:            cred.Nonce,
		ExpirationLedger: cred.ExpirationLedger,
		Signature:        base64.StdEncoding.EncodeToString(cred.Signature),
	}}

	// 3. Deploy
	rec = s.do(t, http.MethodPost, factoryPath+"/deploy", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deployed := decode[models.DeployResponse](t, rec)
	assert.Equal(t, calculated.Address, deployed.ContractID)
	assert.Nil(t, deployed.InitResult)

	// 4. The instance is initialized
	rec = s.do(t, http.MethodGet, "/contracts/"+deployed.ContractID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contract := decode[models.ContractResponse](t, rec)
	assert.Equal(t, s.factory.String(), contract.FactoryContractID)
	assert.Equal(t, kp.Address(), contract.Deployer)
	require.Len(t, contract.Storage, 1)
	assert.Equal(t, float64(5), contract.Storage[0].Value)

	// 5. The address can only be claimed once
	rec = s.do(t, http.MethodPost, factoryPath+"/deploy", body)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	// A changed argument invalidates the signature
	body.Salt = host.Salt{8}.String()
	rec = s.do(t, http.MethodPost, factoryPath+"/deploy", body)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/contracts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.ContractListResponse](t, rec)
	assert.Len(t, list.Contracts, 2) // factory and the deployed instance
	assert.Equal(t, deployed.ContractID, list.Contracts[0].ContractID)
}

func TestDeployErrors(t *testing.T) {
	s := newTestServer(t)
	self := s.factory.String()
	factoryPath := "/factories/" + self

	unknownCode := s.deployBody(t, self, 1, scval.U32(1))
	unknownCode.WasmHash = host.HashCode([]byte("missing")).String()

	badInit := s.deployBody(t, self, 2, scval.Symbol("five"))

	badSymbol := s.deployBody(t, self, 3, scval.U32(1))
	badSymbol.InitFn = "not valid"

	tests := []struct {
		name   string
		path   string
		method string
		body   interface{}
		status int
	}{
		{"unknown code", factoryPath + "/deploy", http.MethodPost, unknownCode, http.StatusUnprocessableEntity},
		{"initializer fails", factoryPath + "/deploy", http.MethodPost, badInit, http.StatusUnprocessableEntity},
		{"invalid init function", factoryPath + "/deploy", http.MethodPost, badSymbol, http.StatusBadRequest},
		{"malformed json", factoryPath + "/deploy", http.MethodPost, "{", http.StatusBadRequest},
		{"account as factory", "/factories/" + keypair.MustRandom().Address() + "/deploy", http.MethodPost, badInit, http.StatusBadRequest},
		{"unknown factory", "/factories/" + host.ContractAddress([32]byte{42}).String() + "/deploy", http.MethodPost, s.deployBody(t, self, 4, scval.U32(1)), http.StatusNotFound},
		{"wrong method", factoryPath + "/deploy", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"unknown endpoint", factoryPath + "/upgrade", http.MethodPost, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			errResp := decode[models.ErrorResponse](t, rec)
			assert.Equal(t, tt.status, errResp.Code)
		})
	}

	// Nothing was deployed by the failed requests
	instances, err := s.ledger.Store().ListInstances(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, instances, 1)
}

func TestSelfDeploymentNeedsNoCredentials(t *testing.T) {
	s := newTestServer(t)
	self := s.factory.String()

	rec := s.do(t, http.MethodPost, "/factories/"+self+"/deploy", s.deployBody(t, self, 1, scval.U32(3)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCalculateAddressValidation(t *testing.T) {
	s := newTestServer(t)
	path := "/factories/" + s.factory.String() + "/address"

	rec := s.do(t, http.MethodGet, path+"?deployer=bad&salt="+host.Salt{}.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, path+"?deployer="+keypair.MustRandom().Address()+"&salt=00", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculateAddressesBatch(t *testing.T) {
	s := newTestServer(t)
	path := "/factories/" + s.factory.String() + "/addresses"

	queries := make([]models.AddressQuery, 0, 20)
	for i := 0; i < 20; i++ {
		queries = append(queries, models.AddressQuery{
			Deployer: keypair.MustRandom().Address(),
			Salt:     host.Salt{byte(i)}.String(),
		})
	}
	queries[3].Deployer = "bad"
	queries[11].Salt = "00"

	rec := s.do(t, http.MethodPost, path, models.AddressBatchRequest{Queries: queries})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	batch := decode[models.AddressBatchResponse](t, rec)
	require.Len(t, batch.Addresses, len(queries))

	for i, q := range queries {
		got := batch.Addresses[i]
		assert.Equal(t, q.Deployer, got.Deployer)
		assert.Equal(t, q.Salt, got.Salt)

		if i == 3 || i == 11 {
			assert.NotEmpty(t, got.Error, "query %d", i)
			assert.Empty(t, got.Address)
			continue
		}

		single := s.do(t, http.MethodGet, fmt.Sprintf("/factories/%s/address?deployer=%s&salt=%s", s.factory, q.Deployer, q.Salt), nil)
		require.Equal(t, http.StatusOK, single.Code)
		assert.Equal(t, decode[models.AddressResponse](t, single).Address, got.Address, "query %d", i)
		assert.Empty(t, got.Error)
	}
}

func TestCalculateAddressesRejects(t *testing.T) {
	s := newTestServer(t)
	query := models.AddressQuery{Deployer: keypair.MustRandom().Address(), Salt: host.Salt{}.String()}
	oneQuery := models.AddressBatchRequest{Queries: []models.AddressQuery{query}}

	// A deployed value store is a contract but not a factory
	rec := s.do(t, http.MethodPost, "/factories/"+s.factory.String()+"/deploy", s.deployBody(t, s.factory.String(), 1, scval.U32(1)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	store := decode[models.DeployResponse](t, rec).ContractID

	tooMany := models.AddressBatchRequest{Queries: make([]models.AddressQuery, maxBatchSize+1)}

	tests := []struct {
		name    string
		factory string
		method  string
		body    interface{}
		status  int
	}{
		{"empty batch", s.factory.String(), http.MethodPost, models.AddressBatchRequest{}, http.StatusBadRequest},
		{"oversized batch", s.factory.String(), http.MethodPost, tooMany, http.StatusBadRequest},
		{"malformed json", s.factory.String(), http.MethodPost, "[", http.StatusBadRequest},
		{"unknown factory", host.ContractAddress([32]byte{42}).String(), http.MethodPost, oneQuery, http.StatusNotFound},
		{"not a factory", store, http.MethodPost, oneQuery, http.StatusNotFound},
		{"wrong method", s.factory.String(), http.MethodGet, nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, "/factories/"+tt.factory+"/addresses", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestGetContractErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/contracts/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/contracts/"+host.ContractAddress([32]byte{42}).String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/contracts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{host.ErrAuthorizationDenied, http.StatusForbidden},
		{host.ErrAddressAlreadyClaimed, http.StatusConflict},
		{host.ErrInitializationFailed, http.StatusUnprocessableEntity},
		{host.ErrInvalidCodeReference, http.StatusUnprocessableEntity},
		{host.ErrContractNotFound, http.StatusNotFound},
		{host.ErrInvalidArguments, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", host.ErrAddressAlreadyClaimed), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusForError(tt.err))
		})
	}
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/health", routeLabel("/health"))
	assert.Equal(t, "/contracts/{id}", routeLabel("/contracts/CABC"))
	assert.Equal(t, "/factories/{id}/deploy", routeLabel("/factories/CABC/deploy"))
	assert.Equal(t, "/factories/{id}/addresses", routeLabel("/factories/CABC/addresses"))
	assert.Equal(t, "other", routeLabel("/something/else"))
}
