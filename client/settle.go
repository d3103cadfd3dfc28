// Package client is the HTTP client for the settle service API.
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
	"time"
)

// Intent describes a payment the caller wants settled.
type Intent struct {
	Kind          string `json:"kind"`
	Network       string `json:"network"`
	ToAddress     string `json:"to_address"`
	AmountDecimal string `json:"amount_decimal"`
	TokenSymbol   string `json:"token_symbol"`
	TokenContract string `json:"token_contract,omitempty"`
	RawPayload    string `json:"raw_payload,omitempty"`
}

// Settlement is the outcome of a settlement attempt.
type Settlement struct {
	Success      bool   `json:"success"`
	TxHash       string `json:"tx_hash,omitempty"`
	Network      string `json:"network"`
	Provider     string `json:"provider"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Record is a tracked settlement with its enrichment.
type Record struct {
	MessageID   string         `json:"message_id"`
	TxHash      string         `json:"tx_hash"`
	Network     string         `json:"network"`
	TokenSymbol string         `json:"token_symbol"`
	Amount      string         `json:"amount_decimal"`
	Status      string         `json:"status"`
	Source      string         `json:"source"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
	Achievement string         `json:"achievement,omitempty"`
	UserStats   map[string]int `json:"user_stats,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Client is the HTTP client for the settle service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new settle service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SubmitIntent sends a payment intent through the settlement pipeline and
// returns the outcome. messageID ties the settlement to a chat message and
// makes retries idempotent.
func (c *Client) SubmitIntent(ctx context.Context, userID, messageID string, it *Intent) (*Settlement, error) {
	reqBody := map[string]interface{}{
		"user_id":    userID,
		"message_id": messageID,
		"intent":     it,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var settlement Settlement
	if err := json.NewDecoder(resp.Body).Decode(&settlement); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("intent submitted",
		"message_id", messageID,
		"success", settlement.Success,
		"tx_hash", settlement.TxHash,
	)
	return &settlement, nil
}

// GetRecord retrieves the settlement record for a chat message.
func (c *Client) GetRecord(ctx context.Context, messageID string) (*Record, error) {
	u := fmt.Sprintf("%s/api/v1/records/%s", c.baseURL, url.PathEscape(messageID))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &record, nil
}

// AcceptRequest accepts a payment request on behalf of userID, settling the
// requested payment. A partial success (HTTP 202) means the payment settled
// but the request status could not be updated; the settlement is still
// returned.
func (c *Client) AcceptRequest(ctx context.Context, requestID, userID string) (*Settlement, error) {
	reqBody := map[string]interface{}{"user_id": userID}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/requests/%s/accept", c.baseURL, url.PathEscape(requestID))
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, c.parseErrorResponse(resp)
	}

	var settlement Settlement
	if err := json.NewDecoder(resp.Body).Decode(&settlement); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("payment request accepted",
		"request_id", requestID,
		"tx_hash", settlement.TxHash,
	)
	return &settlement, nil
}

// DeclineRequest declines a payment request.
func (c *Client) DeclineRequest(ctx context.Context, requestID string) error {
	u := fmt.Sprintf("%s/api/v1/requests/%s/decline", c.baseURL, url.PathEscape(requestID))
	req, err := http.NewRequestWithContext(ctx, "POST", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("payment request declined", "request_id", requestID)
	return nil
}

// RampWidgetParams configure a hosted fiat on-ramp session.
type RampWidgetParams struct {
	WalletAddress string `json:"wallet_address"`
	Network       string `json:"network,omitempty"`
	TokenSymbol   string `json:"token_symbol,omitempty"`
	FiatAmount    string `json:"fiat_amount,omitempty"`
	FiatCurrency  string `json:"fiat_currency,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
}

// RampWidgetURL builds the hosted on-ramp widget URL for the given
// parameters.
func (c *Client) RampWidgetURL(ctx context.Context, params RampWidgetParams) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/ramp/widget", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.parseErrorResponse(resp)
	}

	var response struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return response.URL, nil
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
