package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind names a webhook endpoint and its record type.
type Kind string

const (
	KindSolTransfer   Kind = "sol_transfer"
	KindNFTSale       Kind = "nft_sale"
	KindTokenTransfer Kind = "token_transfer"
)

// webhookPaths maps a Kind to the endpoint receiving its deliveries.
var webhookPaths = map[Kind]string{
	KindSolTransfer:   "/webhooks/sol-transfers",
	KindNFTSale:       "/webhooks/nft-sales",
	KindTokenTransfer: "/webhooks/token-transfers",
}

// SolTransfer is a persisted whale transfer.
type SolTransfer struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Signature string          `json:"signature"`
	Sender    string          `json:"sender"`
	Receiver  string          `json:"receiver"`
	AmountSOL decimal.Decimal `json:"amount_sol"`
}

// NFTSale is a persisted NFT sale.
type NFTSale struct {
	ID          int64           `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Signature   string          `json:"signature"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	PriceSOL    decimal.Decimal `json:"price_sol"`
	MintAddress string          `json:"mint_address"`
	Collection  string          `json:"collection"`
}

// TokenTransfer is a persisted transfer of a recognized token.
type TokenTransfer struct {
	ID          int64           `json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	Signature   string          `json:"signature"`
	TokenMint   string          `json:"token_mint"`
	TokenSymbol string          `json:"token_symbol"`
	Sender      string          `json:"sender"`
	Receiver    string          `json:"receiver"`
	Amount      decimal.Decimal `json:"amount"`
}

// Token is an entry of the server's token table.
type Token struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// ListOptions filters record listings. Zero values use server defaults.
type ListOptions struct {
	Signature string
	Address   string
	Limit     int
	Offset    int
}

// WebhookResult is the server's answer to a webhook delivery.
type WebhookResult struct {
	StatusCode int
	Message    string
	RequestID  string
}

// WebhookError is returned when the server rejects or fails a delivery.
type WebhookError struct {
	WebhookResult
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook rejected with status %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the solhook service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new solhook service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// SendWebhook posts a raw webhook payload, as the upstream indexer would.
// A non-200 answer is returned as a *WebhookError.
func (c *Client) SendWebhook(ctx context.Context, kind Kind, payload []byte) (*WebhookResult, error) {
	path, ok := webhookPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &WebhookResult{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		RequestID:  resp.Header.Get("X-Request-ID"),
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &WebhookError{WebhookResult: *result}
	}

	c.logger.Debug("webhook delivered", "kind", kind, "message", result.Message, "request_id", result.RequestID)
	return result, nil
}

// ListSolTransfers retrieves whale transfers, newest first.
func (c *Client) ListSolTransfers(ctx context.Context, opts ListOptions) ([]*SolTransfer, error) {
	var response struct {
		Records []*SolTransfer `json:"sol_transfers"`
	}
	if err := c.getJSON(ctx, "/api/v1/sol-transfers", opts.values(), &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// ListNFTSales retrieves NFT sales, newest first.
func (c *Client) ListNFTSales(ctx context.Context, opts ListOptions) ([]*NFTSale, error) {
	var response struct {
		Records []*NFTSale `json:"nft_sales"`
	}
	if err := c.getJSON(ctx, "/api/v1/nft-sales", opts.values(), &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// ListTokenTransfers retrieves token transfers, newest first.
func (c *Client) ListTokenTransfers(ctx context.Context, opts ListOptions) ([]*TokenTransfer, error) {
	var response struct {
		Records []*TokenTransfer `json:"token_transfers"`
	}
	if err := c.getJSON(ctx, "/api/v1/token-transfers", opts.values(), &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// Tokens retrieves the token table the server resolves mints against.
func (c *Client) Tokens(ctx context.Context) ([]Token, error) {
	var response struct {
		Tokens []Token `json:"tokens"`
	}
	if err := c.getJSON(ctx, "/api/v1/tokens", nil, &response); err != nil {
		return nil, err
	}
	return response.Tokens, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Signature != "" {
		v.Set("signature", o.Signature)
	}
	if o.Address != "" {
		v.Set("address", o.Address)
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	return v
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
