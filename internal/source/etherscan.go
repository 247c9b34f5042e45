package source

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

	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/models"
)

// DefaultEtherscanURL is the public Etherscan API endpoint.
const DefaultEtherscanURL = "https://api.etherscan.io/api"

// maxBody caps how much of a response is read.
const maxBody = 64 << 20

// Etherscan fetches ERC-20 token transfers from an Etherscan-compatible API.
type Etherscan struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logrus.Logger
}

// EtherscanOption configures an Etherscan source.
type EtherscanOption func(*Etherscan)

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) EtherscanOption {
	return func(e *Etherscan) { e.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) EtherscanOption {
	return func(e *Etherscan) { e.httpClient = hc }
}

// NewEtherscan creates a source for baseURL. An empty baseURL uses
// DefaultEtherscanURL.
func NewEtherscan(baseURL string, log *logrus.Logger, opts ...EtherscanOption) *Etherscan {
	if baseURL == "" {
		baseURL = DefaultEtherscanURL
	}

	e := &Etherscan{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
	for _, o := range opts {
		o(e)
	}

	return e
}

type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type tokenTransfer struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// Canonical lowercases addr. Etherscan matches addresses case-insensitively
// and decoded edges are stored lowercased.
func (e *Etherscan) Canonical(addr models.Address) models.Address {
	return models.NormalizeAddress(addr.String())
}

// Fetch implements Source using the account/tokentx action.
func (e *Etherscan) Fetch(ctx context.Context, addr models.Address) ([]models.Edge, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", addr.String())
	q.Set("sort", "asc")
	if e.apiKey != "" {
		q.Set("apikey", e.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, fmt.Errorf("fetching %s: %w: %v", addr, models.ErrNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully consumed below.

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %v", addr, models.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("fetching %s: %w", addr, models.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("fetching %s: status %d: %w", addr, resp.StatusCode, models.ErrNetwork)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("fetching %s: status %d: %w", addr, resp.StatusCode, models.ErrAddressNotFound)
	}

	edges, err := e.decode(addr, body)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"address":   addr,
		"transfers": len(edges),
	}).Debug("fetched transfers")

	return edges, nil
}

func (e *Etherscan) decode(addr models.Address, body []byte) ([]models.Edge, error) {
	var env etherscanResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", addr, models.ErrNetwork, err)
	}

	if env.Status != "1" {
		return nil, classifyFailure(addr, env)
	}

	var txs []tokenTransfer
	if err := json.Unmarshal(env.Result, &txs); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w: %v", addr, models.ErrNetwork, err)
	}

	edges := make([]models.Edge, 0, len(txs))
	for _, tx := range txs {
		edges = append(edges, tx.edge(addr))
	}

	return dropZero(edges), nil
}

// classifyFailure maps a status "0" payload onto the error taxonomy. The
// human-readable detail is in result when it is a string.
func classifyFailure(addr models.Address, env etherscanResponse) error {
	var detail string
	_ = json.Unmarshal(env.Result, &detail)

	text := strings.ToLower(env.Message + " " + detail)

	switch {
	case strings.Contains(text, "no transactions found"):
		return fmt.Errorf("fetching %s: %w", addr, models.ErrAddressNotFound)
	case strings.Contains(text, "rate limit"):
		return fmt.Errorf("fetching %s: %s: %w", addr, detail, models.ErrRateLimited)
	case strings.Contains(text, "invalid address"):
		return fmt.Errorf("fetching %s: %s: %w", addr, detail, models.ErrAddressNotFound)
	default:
		return fmt.Errorf("fetching %s: %s %s: %w", addr, env.Message, detail, models.ErrNetwork)
	}
}

func (tx tokenTransfer) edge(critical models.Address) models.Edge {
	e := models.Edge{
		From: models.NormalizeAddress(tx.From),
		To:   models.NormalizeAddress(tx.To),
		Attributes: map[string]any{
			"hash":             tx.Hash,
			"value":            tx.Value,
			"token_symbol":     tx.TokenSymbol,
			"token_decimal":    tx.TokenDecimal,
			"contract_address": models.NormalizeAddress(tx.ContractAddress).String(),
			"block_number":     tx.BlockNumber,
			"critical_address": critical.String(),
		},
	}

	if sec, err := strconv.ParseInt(tx.TimeStamp, 10, 64); err == nil {
		ts := time.Unix(sec, 0).UTC()
		e.Timestamp = &ts
	}

	return e
}
