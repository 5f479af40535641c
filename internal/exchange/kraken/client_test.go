package kraken

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcalloway/spreadbot/internal/domain"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString([]byte("kraken-test-secret"))
}

func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Ticker", r.URL.Path)
		assert.Equal(t, "XRPUSDC", r.URL.Query().Get("pair"))
		_, _ = w.Write([]byte(`{"error":[],"result":{"XRPUSDC":{"a":["1.00800","500","500.000"],"b":["1.00710","800","800.000"]}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	q, err := c.GetQuote(context.Background(), "XRP/USDC")
	require.NoError(t, err)
	assert.Equal(t, Name, q.Exchange)
	assert.True(t, q.Bid.Equal(decimal.RequireFromString("1.00710")))
	assert.True(t, q.Ask.Equal(decimal.RequireFromString("1.00800")))
}

func TestGetQuoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetQuote(context.Background(), "XRP/USDC")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestSubmitMarketOrderSignsRequest(t *testing.T) {
	creds := domain.Credential{Exchange: Name, APIKey: "key-1", APISecret: testSecret()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/0/private/AddOrder", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("API-Key"))
		assert.NotEmpty(t, r.Header.Get("API-Sign"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "XRPUSDC", r.PostFormValue("pair"))
		assert.Equal(t, "sell", r.PostFormValue("type"))
		assert.Equal(t, "market", r.PostFormValue("ordertype"))
		assert.Equal(t, "99.2", r.PostFormValue("volume"))
		assert.NotEmpty(t, r.PostFormValue("nonce"))

		_, _ = w.Write([]byte(`{"error":[],"result":{"txid":["OABC12-DEF34-GHI56"],"descr":{"order":"sell 99.2 XRPUSDC @ market","price":"1.00710"}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	fill, err := c.SubmitMarketOrder(context.Background(), creds, "XRP/USDC", domain.OrderSideSell, decimal.RequireFromString("99.2"))
	require.NoError(t, err)
	assert.Equal(t, "OABC12-DEF34-GHI56", fill.OrderID)
	assert.Equal(t, domain.OrderSideSell, fill.Side)
	assert.True(t, fill.Price.Equal(decimal.RequireFromString("1.00710")))
	assert.True(t, fill.Quantity.Equal(decimal.RequireFromString("99.2")))
}

func TestSubmitMarketOrderAPIError(t *testing.T) {
	creds := domain.Credential{Exchange: Name, APIKey: "key-1", APISecret: testSecret()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":["EOrder:Insufficient funds"],"result":{}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SubmitMarketOrder(context.Background(), creds, "XRP/USDC", domain.OrderSideBuy, decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Insufficient funds")
}

func TestGetBalance(t *testing.T) {
	creds := domain.Credential{Exchange: Name, APIKey: "key-1", APISecret: testSecret()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/private/Balance", r.URL.Path)
		_, _ = w.Write([]byte(`{"error":[],"result":{"XRP":"250.5000","USDC":"10.0000"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	bal, err := c.GetBalance(context.Background(), creds, "XRP")
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("250.5")))
}

func TestUnauthorized(t *testing.T) {
	creds := domain.Credential{Exchange: Name, APIKey: "bad", APISecret: testSecret()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetBalance(context.Background(), creds, "XRP")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
