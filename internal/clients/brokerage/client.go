// Package brokerage provides a client for the brokerage accounts API
package brokerage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/interfaces"
	"github.com/bobmcallan/holdfast/internal/models"
)

const (
	DefaultBaseURL          = "https://api.etrade.com"
	DefaultTimeout          = 30 * time.Second
	DefaultRateLimit        = 2 // requests per second
	DefaultTransactionsPath = "$.TransactionListResponse"
	DefaultPositionsPath    = "$.PortfolioResponse.AccountPortfolio"

	// MaxPageSize is the largest count the transactions endpoint accepts.
	MaxPageSize = 50
)

// Compile-time interface checks
var (
	_ interfaces.TransactionSource = (*Client)(nil)
	_ interfaces.PositionSource    = (*Client)(nil)
)

// Client implements TransactionSource and PositionSource over HTTP
type Client struct {
	baseURL          string
	token            string
	transactionsPath string
	positionsPath    string
	httpClient       *http.Client
	logger           *common.Logger
	limiter          *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithResponsePaths overrides the JSONPath expressions locating the
// transaction envelope and the account portfolios. Empty values keep the defaults.
func WithResponsePaths(transactions, positions string) ClientOption {
	return func(c *Client) {
		if transactions != "" {
			c.transactionsPath = transactions
		}
		if positions != "" {
			c.positionsPath = positions
		}
	}
}

// NewClient creates a new brokerage client
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          DefaultBaseURL,
		token:            token,
		transactionsPath: DefaultTransactionsPath,
		positionsPath:    DefaultPositionsPath,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig creates a client from the brokerage config section
func NewClientFromConfig(cfg common.BrokerageConfig, logger *common.Logger) *Client {
	return NewClient(cfg.Token,
		WithBaseURL(cfg.BaseURL),
		WithRateLimit(cfg.RateLimit),
		WithTimeout(cfg.GetTimeout()),
		WithResponsePaths(cfg.TransactionsPath, cfg.PositionsPath),
		WithLogger(logger),
	)
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brokerage API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and decodes the body into a
// generic JSON document.
func (c *Client) get(ctx context.Context, path string, query url.Values) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("Brokerage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	// Numbers stay json.Number so long ids and epoch dates keep every digit
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return doc, nil
}

// extract evaluates a JSONPath against doc and decodes the match into out.
// It reports false when the path matches nothing.
func extract(doc any, path string, out any) (bool, error) {
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		// gval reports a missing key as an error
		return false, nil
	}
	if list, ok := val.([]any); ok && isWildcard(path) {
		if len(list) == 0 {
			return false, nil
		}
		val = list[0]
	}
	if val == nil {
		return false, nil
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("failed to re-encode %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

// isWildcard reports whether a path may yield several matches.
func isWildcard(path string) bool {
	for _, r := range path {
		if r == '*' || r == '?' {
			return true
		}
	}
	return false
}

// GetTransactions retrieves one page of an account's transactions, newest
// first. An empty marker requests the first page.
func (c *Client) GetTransactions(ctx context.Context, accountID string, count int, marker string) (*models.TransactionPage, error) {
	if count <= 0 || count > MaxPageSize {
		count = MaxPageSize
	}

	query := url.Values{}
	query.Set("count", strconv.Itoa(count))
	if marker != "" {
		query.Set("marker", marker)
	}

	path := fmt.Sprintf("/v1/accounts/%s/transactions", url.PathEscape(accountID))
	doc, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var page models.TransactionPage
	found, err := extract(doc, c.transactionsPath, &page)
	if err != nil {
		return nil, err
	}
	if !found {
		c.logger.Debug().Str("path", c.transactionsPath).Msg("No transaction envelope in response")
		return &models.TransactionPage{}, nil
	}
	return &page, nil
}

// accountPortfolio is one entry of the portfolio response.
type accountPortfolio struct {
	Position []positionData `json:"Position"`
}

type positionData struct {
	SymbolDescription string     `json:"symbolDescription"`
	MarketValue       flexNumber `json:"marketValue"`
	Quantity          flexNumber `json:"quantity"`
	Quick             struct {
		LastTrade flexNumber `json:"lastTrade"`
	} `json:"Quick"`
}

// flexNumber decodes a JSON number or numeric string; anything else is zero.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*n = flexNumber(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err == nil {
			*n = flexNumber(f)
		}
	}
	return nil
}

// GetPositions retrieves the account's current positions.
func (c *Client) GetPositions(ctx context.Context, accountID string) ([]models.Position, error) {
	path := fmt.Sprintf("/v1/accounts/%s/portfolio", url.PathEscape(accountID))
	doc, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	val, err := jsonpath.Get(c.positionsPath, doc)
	if err != nil {
		return []models.Position{}, nil
	}

	// AccountPortfolio is a list, or a single object for one-account responses
	var portfolios []accountPortfolio
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode portfolio: %w", err)
	}
	if _, isList := val.([]any); isList {
		err = json.Unmarshal(raw, &portfolios)
	} else {
		var single accountPortfolio
		err = json.Unmarshal(raw, &single)
		portfolios = []accountPortfolio{single}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode portfolio: %w", err)
	}

	positions := []models.Position{}
	for _, p := range portfolios {
		for _, pos := range p.Position {
			positions = append(positions, toPosition(pos))
		}
	}
	return positions, nil
}

func toPosition(p positionData) models.Position {
	mv := float64(p.MarketValue)
	qty := float64(p.Quantity)
	price := float64(p.Quick.LastTrade)
	if price == 0 && qty != 0 {
		price = mv / qty
	}
	return models.Position{
		Symbol:       p.SymbolDescription,
		MarketValue:  mv,
		Quantity:     qty,
		CurrentPrice: price,
	}
}
