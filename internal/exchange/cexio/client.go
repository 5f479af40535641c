// Package cexio is the REST client for the CEX.IO spot API.
package cexio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/crypto"
	"github.com/tmcalloway/spreadbot/internal/domain"
)

// Name is the exchange identifier used in config, credentials, and quotes.
const Name = "cexio"

// Client is the REST client for the CEX.IO API. Public endpoints need no
// credentials; private calls sign each request with the caller's key pair, so
// one Client serves every user.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new CEX.IO REST client. baseURL is the API root,
// e.g. "https://cex.io/api".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// pairPath converts "XRP/USDC" to the "XRP/USDC" path segment pair CEX.IO
// expects. The symbol is validated rather than rewritten.
func pairPath(symbol string) (string, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", fmt.Errorf("cexio: malformed symbol %q", symbol)
	}
	return base + "/" + quote, nil
}

type tickerResponse struct {
	Bid       json.Number `json:"bid"`
	Ask       json.Number `json:"ask"`
	Timestamp string      `json:"timestamp"`
	Error     string      `json:"error"`
}

// GetQuote returns the current best bid/ask from the public ticker.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := pairPath(symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	body, err := c.doPublic(ctx, "/ticker/"+pair)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("cexio: get ticker %s: %w", symbol, err)
	}

	var resp tickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("cexio: decode ticker: %w", err)
	}
	if resp.Error != "" {
		return domain.Quote{}, fmt.Errorf("cexio: ticker %s: %s: %w", symbol, resp.Error, domain.ErrQuoteUnavailable)
	}

	bid, err := decimal.NewFromString(resp.Bid.String())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("cexio: parse bid %q: %w", resp.Bid, err)
	}
	ask, err := decimal.NewFromString(resp.Ask.String())
	if err != nil {
		return domain.Quote{}, fmt.Errorf("cexio: parse ask %q: %w", resp.Ask, err)
	}

	q := domain.Quote{
		Exchange:   Name,
		Symbol:     symbol,
		Bid:        bid,
		Ask:        ask,
		ObservedAt: time.Now().UTC(),
	}
	if err := q.Validate(); err != nil {
		return domain.Quote{}, fmt.Errorf("cexio: ticker %s: %w", symbol, err)
	}
	return q, nil
}

type orderResponse struct {
	ID     string      `json:"id"`
	Time   int64       `json:"time"`
	Type   string      `json:"type"`
	Price  json.Number `json:"price"`
	Amount json.Number `json:"amount"`
	Error  string      `json:"error"`
}

// SubmitMarketOrder places a market order and returns the fill. Quantity is
// the base-asset amount for both sides.
func (c *Client) SubmitMarketOrder(ctx context.Context, creds domain.Credential, symbol string, side domain.OrderSide, quantity decimal.Decimal) (domain.Fill, error) {
	pair, err := pairPath(symbol)
	if err != nil {
		return domain.Fill{}, err
	}

	params := map[string]string{
		"type":       string(side),
		"amount":     quantity.String(),
		"order_type": "market",
	}
	body, err := c.doPrivate(ctx, creds, "/place_order/"+pair, params)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("cexio: place %s order %s: %w", side, symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Fill{}, fmt.Errorf("cexio: decode order response: %w", err)
	}
	if resp.Error != "" {
		return domain.Fill{}, fmt.Errorf("cexio: place %s order %s: %s", side, symbol, resp.Error)
	}

	price, err := decimal.NewFromString(resp.Price.String())
	if err != nil {
		return domain.Fill{}, fmt.Errorf("cexio: parse fill price %q: %w", resp.Price, err)
	}
	amount, err := decimal.NewFromString(resp.Amount.String())
	if err != nil {
		return domain.Fill{}, fmt.Errorf("cexio: parse fill amount %q: %w", resp.Amount, err)
	}

	return domain.Fill{
		OrderID:  resp.ID,
		Exchange: Name,
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: amount,
		FilledAt: time.UnixMilli(resp.Time).UTC(),
	}, nil
}

// GetBalance returns the free balance of one asset.
func (c *Client) GetBalance(ctx context.Context, creds domain.Credential, asset string) (decimal.Decimal, error) {
	body, err := c.doPrivate(ctx, creds, "/balance/", nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cexio: get balance: %w", err)
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("cexio: decode balance: %w", err)
	}
	if raw, ok := resp["error"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return decimal.Zero, fmt.Errorf("cexio: get balance: %s", msg)
	}

	raw, ok := resp[strings.ToUpper(asset)]
	if !ok {
		return decimal.Zero, nil
	}
	var entry struct {
		Available json.Number `json:"available"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return decimal.Zero, fmt.Errorf("cexio: decode balance entry %s: %w", asset, err)
	}

	avail, err := decimal.NewFromString(entry.Available.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("cexio: parse balance %q: %w", entry.Available, err)
	}
	return avail, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doPublic(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// doPrivate sends a signed POST. CEX.IO authenticates with a nonce plus an
// HMAC-SHA256 signature (uppercase hex) over nonce+key, passed alongside the
// key in the request body.
func (c *Client) doPrivate(ctx context.Context, creds domain.Credential, path string, params map[string]string) ([]byte, error) {
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := crypto.HMACSHA256Hex([]byte(creds.APISecret), nonce+creds.APIKey)

	payload := map[string]string{
		"key":       creds.APIKey,
		"signature": signature,
		"nonce":     nonce,
	}
	for k, v := range params {
		payload[k] = v
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("HTTP 429: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	default:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
