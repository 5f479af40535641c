// Package kraken is the REST client for the Kraken spot API.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmcalloway/spreadbot/internal/crypto"
	"github.com/tmcalloway/spreadbot/internal/domain"
)

// Name is the exchange identifier used in config, credentials, and quotes.
const Name = "kraken"

// Client is the REST client for the Kraken API. Private calls sign each
// request with the caller's key pair under Kraken's API-Sign scheme.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Kraken REST client. baseURL is the API root,
// e.g. "https://api.kraken.com".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// pairName converts "XRP/USDC" to Kraken's concatenated "XRPUSDC" pair.
func pairName(symbol string) (string, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return "", fmt.Errorf("kraken: malformed symbol %q", symbol)
	}
	return base + quote, nil
}

// krakenResponse is the envelope every Kraken endpoint uses.
type krakenResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (r krakenResponse) err() error {
	if len(r.Error) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(r.Error, "; "))
}

// GetQuote returns the current best bid/ask from the public Ticker endpoint.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	pair, err := pairName(symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	body, err := c.doPublic(ctx, "/0/public/Ticker", url.Values{"pair": {pair}})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: get ticker %s: %w", symbol, err)
	}

	var env krakenResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: decode ticker: %w", err)
	}
	if err := env.err(); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: ticker %s: %s: %w", symbol, err, domain.ErrQuoteUnavailable)
	}

	// The result is keyed by Kraken's canonical pair name, which may differ
	// from the requested one. There is exactly one entry.
	var result map[string]struct {
		Ask []json.Number `json:"a"`
		Bid []json.Number `json:"b"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: decode ticker result: %w", err)
	}

	for _, t := range result {
		if len(t.Ask) == 0 || len(t.Bid) == 0 {
			break
		}
		ask, err := decimal.NewFromString(t.Ask[0].String())
		if err != nil {
			return domain.Quote{}, fmt.Errorf("kraken: parse ask %q: %w", t.Ask[0], err)
		}
		bid, err := decimal.NewFromString(t.Bid[0].String())
		if err != nil {
			return domain.Quote{}, fmt.Errorf("kraken: parse bid %q: %w", t.Bid[0], err)
		}

		q := domain.Quote{
			Exchange:   Name,
			Symbol:     symbol,
			Bid:        bid,
			Ask:        ask,
			ObservedAt: time.Now().UTC(),
		}
		if err := q.Validate(); err != nil {
			return domain.Quote{}, fmt.Errorf("kraken: ticker %s: %w", symbol, err)
		}
		return q, nil
	}
	return domain.Quote{}, fmt.Errorf("kraken: ticker %s: empty result: %w", symbol, domain.ErrQuoteUnavailable)
}

// SubmitMarketOrder places a market order via AddOrder and returns the fill.
// Kraken acknowledges with a transaction ID; the requested quantity and the
// order description price are used as the fill record.
func (c *Client) SubmitMarketOrder(ctx context.Context, creds domain.Credential, symbol string, side domain.OrderSide, quantity decimal.Decimal) (domain.Fill, error) {
	pair, err := pairName(symbol)
	if err != nil {
		return domain.Fill{}, err
	}

	form := url.Values{
		"pair":      {pair},
		"type":      {string(side)},
		"ordertype": {"market"},
		"volume":    {quantity.String()},
	}
	body, err := c.doPrivate(ctx, creds, "/0/private/AddOrder", form)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("kraken: place %s order %s: %w", side, symbol, err)
	}

	var env krakenResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Fill{}, fmt.Errorf("kraken: decode order response: %w", err)
	}
	if err := env.err(); err != nil {
		return domain.Fill{}, fmt.Errorf("kraken: place %s order %s: %s", side, symbol, err)
	}

	var result struct {
		TxID  []string `json:"txid"`
		Descr struct {
			Order string `json:"order"`
			Price string `json:"price"`
		} `json:"descr"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return domain.Fill{}, fmt.Errorf("kraken: decode order result: %w", err)
	}
	if len(result.TxID) == 0 {
		return domain.Fill{}, fmt.Errorf("kraken: place %s order %s: no transaction id", side, symbol)
	}

	price := decimal.Zero
	if result.Descr.Price != "" {
		if p, perr := decimal.NewFromString(result.Descr.Price); perr == nil {
			price = p
		}
	}

	return domain.Fill{
		OrderID:  result.TxID[0],
		Exchange: Name,
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		FilledAt: time.Now().UTC(),
	}, nil
}

// GetBalance returns the free balance of one asset.
func (c *Client) GetBalance(ctx context.Context, creds domain.Credential, asset string) (decimal.Decimal, error) {
	body, err := c.doPrivate(ctx, creds, "/0/private/Balance", url.Values{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("kraken: get balance: %w", err)
	}

	var env krakenResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return decimal.Zero, fmt.Errorf("kraken: decode balance: %w", err)
	}
	if err := env.err(); err != nil {
		return decimal.Zero, fmt.Errorf("kraken: get balance: %s", err)
	}

	var result map[string]json.Number
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return decimal.Zero, fmt.Errorf("kraken: decode balance result: %w", err)
	}

	raw, ok := result[strings.ToUpper(asset)]
	if !ok {
		return decimal.Zero, nil
	}
	bal, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("kraken: parse balance %q: %w", raw, err)
	}
	return bal, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	full := c.baseURL + path
	if len(params) > 0 {
		full += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// doPrivate signs and sends a private POST. Kraken requires a monotonically
// increasing nonce and an API-Sign header: HMAC-SHA512 over
// path + SHA256(nonce + postdata), keyed with the base64-decoded secret.
func (c *Client) doPrivate(ctx context.Context, creds domain.Credential, path string, form url.Values) ([]byte, error) {
	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	form.Set("nonce", nonce)
	postdata := form.Encode()

	sign, err := crypto.KrakenSign(creds.APISecret, path, nonce, postdata)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(postdata))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("API-Key", creds.APIKey)
	req.Header.Set("API-Sign", sign)
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
