package brokerage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL), WithRateLimit(100))
}

func TestGetTransactions_Page(t *testing.T) {
	var gotPath, gotCount, gotMarker, gotAuth string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCount = r.URL.Query().Get("count")
		gotMarker = r.URL.Query().Get("marker")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"TransactionListResponse": {
			"Transaction": [
				{"transactionId": 25074000000123456, "transactionDate": 1741964400000, "transactionType": "Dividend", "amount": 12.5, "description": "VTI"},
				{"transactionId": "2", "transactionDate": "1741878000000", "transactionType": "Bought", "amount": "-100.25", "description": "AAPL", "brokerage": {"fee": 0}}
			],
			"marker": "abc",
			"totalCount": "40",
			"moreTransactions": "true"
		}}`))
	})

	page, err := client.GetTransactions(context.Background(), "acct-1", 25, "m1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/accounts/acct-1/transactions", gotPath)
	assert.Equal(t, "25", gotCount)
	assert.Equal(t, "m1", gotMarker)
	assert.Equal(t, "Bearer test-token", gotAuth)

	assert.True(t, page.HasTransactions)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "25074000000123456", page.Transactions[0].TransactionID)
	assert.Equal(t, "1741964400000", string(page.Transactions[0].TransactionDate))
	assert.Equal(t, -100.25, page.Transactions[1].Amount)
	assert.Contains(t, page.Transactions[1].Extra, "brokerage")
	assert.Equal(t, "abc", page.Marker)
	assert.Equal(t, 40, page.TotalCount)
	assert.True(t, page.MoreTransactions)
}

func TestGetTransactions_ClampsCount(t *testing.T) {
	var gotCount, gotMarker string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotCount = r.URL.Query().Get("count")
		_, hasMarker := r.URL.Query()["marker"]
		if hasMarker {
			gotMarker = "present"
		}
		w.Write([]byte(`{"TransactionListResponse": {"moreTransactions": "false"}}`))
	})

	page, err := client.GetTransactions(context.Background(), "acct", 500, "")
	require.NoError(t, err)
	assert.Equal(t, "50", gotCount)
	assert.Empty(t, gotMarker, "first page carries no marker")
	assert.False(t, page.HasTransactions)
}

func TestGetTransactions_SingleObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"TransactionListResponse": {"Transaction": {"transactionId": "9", "transactionDate": 1741964400000}, "moreTransactions": false}}`))
	})

	page, err := client.GetTransactions(context.Background(), "acct", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "9", page.Transactions[0].TransactionID)
	assert.False(t, page.MoreTransactions)
}

func TestGetTransactions_MissingEnvelope(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Other": {}}`))
	})

	page, err := client.GetTransactions(context.Background(), "acct", 10, "")
	require.NoError(t, err)
	assert.False(t, page.HasTransactions)
	assert.Empty(t, page.Transactions)
}

func TestGetTransactions_CustomPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"page": {"Transaction": [{"transactionId": "1"}]}}}`))
	}))
	defer srv.Close()

	client := NewClient("", WithBaseURL(srv.URL), WithResponsePaths("$.data.page", ""))
	page, err := client.GetTransactions(context.Background(), "acct", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
}

func TestGetTransactions_APIError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("token expired"))
	})

	_, err := client.GetTransactions(context.Background(), "acct", 10, "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "token expired", apiErr.Message)
	assert.Equal(t, "/v1/accounts/acct/transactions", apiErr.Endpoint)
}

func TestGetTransactions_CancelledContext(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetTransactions(ctx, "acct", 10, "")
	assert.Error(t, err)
}

func TestGetPositions(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acct/portfolio", r.URL.Path)
		w.Write([]byte(`{"PortfolioResponse": {"AccountPortfolio": [
			{"Position": [
				{"symbolDescription": "AAPL", "marketValue": 10000, "quantity": 50, "Quick": {"lastTrade": 200}},
				{"symbolDescription": "TQQQ", "marketValue": "5000", "quantity": "100"}
			]},
			{"Position": [{"symbolDescription": "MSTR", "marketValue": 3000, "quantity": 0}]}
		]}}`))
	})

	positions, err := client.GetPositions(context.Background(), "acct")
	require.NoError(t, err)
	require.Len(t, positions, 3)

	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.Equal(t, 200.0, positions[0].CurrentPrice)
	assert.Equal(t, 50.0, positions[1].CurrentPrice, "price falls back to market value over quantity")
	assert.Equal(t, 0.0, positions[2].CurrentPrice)
	assert.Equal(t, 3000.0, positions[2].MarketValue)
}

func TestGetPositions_SinglePortfolioObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"PortfolioResponse": {"AccountPortfolio": {"Position": [{"symbolDescription": "VTI", "marketValue": 100, "quantity": 1}]}}}`))
	})

	positions, err := client.GetPositions(context.Background(), "acct")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "VTI", positions[0].Symbol)
}

func TestGetPositions_NoPortfolio(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"PortfolioResponse": {}}`))
	})

	positions, err := client.GetPositions(context.Background(), "acct")
	require.NoError(t, err)
	assert.Empty(t, positions)
}
