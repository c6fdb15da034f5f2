package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"compoundbank/core/state"
	"compoundbank/crypto"
	"compoundbank/native/compound"
	"compoundbank/native/token"
	"compoundbank/rpc/modules"
	"compoundbank/storage"
)

const testInitTime uint64 = 1_700_000_000

func rpcAddr(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.BankPrefix, raw)
}

type rpcFixture struct {
	server *Server
	ledger *token.Ledger
	token  crypto.Address
	ctoken crypto.Address
	user   crypto.Address
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	tokenAddr := rpcAddr(0x01)
	ctokenAddr := rpcAddr(0x02)
	custody := rpcAddr(0xAA)
	user := rpcAddr(0x10)

	ledger := token.NewLedger(manager, tokenAddr, ctokenAddr)
	require.NoError(t, ledger.Mint(tokenAddr, user, big.NewInt(1_000_000)))
	require.NoError(t, ledger.Mint(ctokenAddr, custody, big.NewInt(1_000_000)))
	require.NoError(t, ledger.Mint(tokenAddr, custody, big.NewInt(1_000_000)))

	params := compound.Params{
		InterestRateBps:     1000,
		BorrowRateBps:       2000,
		CollateralFactorBps: 5000,
		ExchangeRate:        big.NewInt(2),
	}
	engine := compound.NewEngine(custody, tokenAddr, ctokenAddr, params, testInitTime)
	engine.SetState(manager)
	engine.SetTransferrer(ledger)
	engine.SetClock(func() uint64 { return testInitTime })

	return &rpcFixture{
		server: NewServer(modules.NewCompoundModule(engine)),
		ledger: ledger,
		token:  tokenAddr,
		ctoken: ctokenAddr,
		user:   user,
	}
}

func doRPC(t *testing.T, s *Server, method string, params []interface{}, header http.Header) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	s.handle(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestLendOverRPC(t *testing.T) {
	f := newRPCFixture(t)

	rec, resp := doRPC(t, f.server, "compound_lend", []interface{}{
		map[string]string{"from": f.user.String(), "amount": "100"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "100", result["amount"])
	require.Equal(t, "200", result["ctokensAmount"])

	balance, err := f.ledger.BalanceOf(f.token, f.user)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(999_900)))
	balance, err = f.ledger.BalanceOf(f.ctoken, f.user)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(200)))
}

func TestGetPositionOverRPC(t *testing.T) {
	f := newRPCFixture(t)

	_, resp := doRPC(t, f.server, "compound_lend", []interface{}{
		map[string]string{"from": f.user.String(), "amount": "100"},
	}, nil)
	require.Nil(t, resp.Error)

	// Both the bare-string and object parameter forms work.
	for _, param := range []interface{}{f.user.String(), map[string]string{"address": f.user.String()}} {
		rec, resp := doRPC(t, f.server, "compound_getPosition", []interface{}{param}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Nil(t, resp.Error)
		result := resp.Result.(map[string]interface{})
		require.Equal(t, "200", result["lentAmount"])
		require.Equal(t, "200", result["effectiveLent"])
		require.Equal(t, "0", result["borrowedAmount"])
	}
}

func TestGetPositionNotFound(t *testing.T) {
	f := newRPCFixture(t)

	rec, resp := doRPC(t, f.server, "compound_getPosition", []interface{}{rpcAddr(0x66).String()}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, -32004, resp.Error.Code)
}

func TestBorrowCollateralErrorOverRPC(t *testing.T) {
	f := newRPCFixture(t)

	_, resp := doRPC(t, f.server, "compound_lend", []interface{}{
		map[string]string{"from": f.user.String(), "amount": "1000"},
	}, nil)
	require.Nil(t, resp.Error)

	// 2000 ctokens at factor 5000 and rate 2 cap borrowing at 500.
	rec, resp := doRPC(t, f.server, "compound_borrow", []interface{}{
		map[string]string{"from": f.user.String(), "amount": "501"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	rec, resp = doRPC(t, f.server, "compound_borrow", []interface{}{
		map[string]string{"from": f.user.String(), "amount": "500"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
}

func TestGetLedgerOverRPC(t *testing.T) {
	f := newRPCFixture(t)

	rec, resp := doRPC(t, f.server, "compound_getLedger", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	require.Equal(t, "2", result["exchangeRate"])
	require.Equal(t, float64(5000), result["collateralFactorBps"])
	require.Equal(t, float64(testInitTime), result["initTime"])
}

func TestInvalidRequests(t *testing.T) {
	f := newRPCFixture(t)

	// Non-POST.
	rec := httptest.NewRecorder()
	f.server.handle(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	// Unknown method.
	rec2, resp := doRPC(t, f.server, "compound_liquidate", nil, nil)
	require.Equal(t, http.StatusNotFound, rec2.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	// Malformed amount.
	rec3, resp := doRPC(t, f.server, "compound_lend", []interface{}{
		map[string]string{"from": f.user.String(), "amount": "ten"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec3.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	// Unsupported version.
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "1.0", "method": "compound_getLedger", "id": 1})
	require.NoError(t, err)
	rec4 := httptest.NewRecorder()
	f.server.handle(rec4, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec4.Code)
}

func TestBearerTokenGuardsMutations(t *testing.T) {
	t.Setenv("COMPOUNDBANK_RPC_TOKEN", "secret")
	f := newRPCFixture(t)

	params := []interface{}{map[string]string{"from": f.user.String(), "amount": "100"}}

	rec, resp := doRPC(t, f.server, "compound_lend", params, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	wrong := http.Header{}
	wrong.Set("Authorization", "Bearer wrong")
	rec, resp = doRPC(t, f.server, "compound_lend", params, wrong)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	good := http.Header{}
	good.Set("Authorization", "Bearer secret")
	rec, resp = doRPC(t, f.server, "compound_lend", params, good)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	// Queries stay open.
	rec, resp = doRPC(t, f.server, "compound_getLedger", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
}
