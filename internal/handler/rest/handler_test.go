package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bank-ledger-engine/internal/handler/rest"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/ledger"
	"github.com/sheikh-saqib/bank-ledger-engine/internal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := ledger.NewService(memory.NewStore())
	srv := httptest.NewServer(rest.NewHandler(svc, zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createAccount(t *testing.T, srv *httptest.Server) uuid.UUID {
	t.Helper()
	resp := postJSON(t, srv.URL+"/accounts", map[string]any{
		"number_account": 1001,
		"owner_account":  "owner",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var account struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&account))
	return account.ID
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDepositAndBalance(t *testing.T) {
	srv := newTestServer(t)
	id := createAccount(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/accounts/%s/deposit", srv.URL, id), map[string]any{
		"amount":          "150.25",
		"transaction_ref": "ref-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	balResp, err := http.Get(fmt.Sprintf("%s/accounts/%s/balance", srv.URL, id))
	require.NoError(t, err)
	defer balResp.Body.Close()
	require.Equal(t, http.StatusOK, balResp.StatusCode)

	var body struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(balResp.Body).Decode(&body))
	assert.Equal(t, "150.25", body.Balance)
}

func TestDepositInvalidAmount(t *testing.T) {
	srv := newTestServer(t)
	id := createAccount(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/accounts/%s/deposit", srv.URL, id), map[string]any{
		"amount":          "-5",
		"transaction_ref": "ref-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDepositUnknownAccount(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, fmt.Sprintf("%s/accounts/%s/deposit", srv.URL, uuid.New()), map[string]any{
		"amount":          "5",
		"transaction_ref": "ref-1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransferBetweenAccounts(t *testing.T) {
	srv := newTestServer(t)
	from := createAccount(t, srv)
	to := createAccount(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/accounts/%s/deposit", srv.URL, from), map[string]any{
		"amount":          "1000",
		"transaction_ref": "seed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/accounts/transfer", map[string]any{
		"from_id":         from,
		"to_id":           to,
		"amount":          "400",
		"transaction_ref": "xfer-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransferToSelfRejected(t *testing.T) {
	srv := newTestServer(t)
	id := createAccount(t, srv)

	resp := postJSON(t, srv.URL+"/accounts/transfer", map[string]any{
		"from_id":         id,
		"to_id":           id,
		"amount":          "10",
		"transaction_ref": "xfer-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecalculation(t *testing.T) {
	srv := newTestServer(t)
	id := createAccount(t, srv)

	resp := postJSON(t, fmt.Sprintf("%s/accounts/%s/recalculation", srv.URL, id), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHistoryRequiresDates(t *testing.T) {
	srv := newTestServer(t)
	id := createAccount(t, srv)

	resp, err := http.Get(fmt.Sprintf("%s/accounts/%s/history?startDate=bogus", srv.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvalidAccountID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/accounts/not-a-uuid/balance")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
