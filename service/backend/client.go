// Package backend is the HTTP client for the bloqz backend API: transaction
// preparation, broadcast relay, tracking, and payment-request state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client is the HTTP client for the bloqz backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a backend client. token is the caller's bearer token; it
// may be empty for unauthenticated deployments.
func NewClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into out (when out is non-nil). Non-2xx responses become errors
// carrying the backend's error message.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseErrorResponse(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Message = errResp.Error
	}
	return apiErr
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error: HTTP %d", e.StatusCode)
}

// IsConflict reports whether err is a backend 409, meaning the requested
// state transition lost a race.
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// GetUnsignedTransaction asks the backend to prepare an unsigned transaction
// for an operation it assembles server-side (Solana transfers, swaps, stakes).
func (c *Client) GetUnsignedTransaction(ctx context.Context, network, kind string, params map[string]any) (*UnsignedTransaction, error) {
	reqBody := map[string]any{
		"network": network,
		"kind":    kind,
		"params":  params,
	}
	var tx UnsignedTransaction
	if err := c.doJSON(ctx, "POST", "/api/v1/transactions/unsigned", reqBody, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetFeeEstimate fetches the backend's gas suggestion for a network.
func (c *Client) GetFeeEstimate(ctx context.Context, network string) (*FeeEstimate, error) {
	var fee FeeEstimate
	path := fmt.Sprintf("/api/v1/networks/%s/fee-estimate", url.PathEscape(network))
	if err := c.doJSON(ctx, "GET", path, nil, &fee); err != nil {
		return nil, err
	}
	return &fee, nil
}

// ExecuteTransaction relays a signed EVM transaction for broadcast and
// returns the transaction hash. Used by the custodial signing path.
func (c *Client) ExecuteTransaction(ctx context.Context, network, signedPayload string) (string, error) {
	reqBody := map[string]any{
		"network":        network,
		"signed_payload": signedPayload,
	}
	var resp struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.doJSON(ctx, "POST", "/api/v1/transactions/execute", reqBody, &resp); err != nil {
		return "", err
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("backend returned no transaction hash")
	}
	c.logger.Debug("transaction broadcast", "network", network, "tx_hash", resp.TxHash)
	return resp.TxHash, nil
}

// TrackTransaction records a settled transaction against its chat message.
func (c *Client) TrackTransaction(ctx context.Context, req *TrackRequest) error {
	if err := c.doJSON(ctx, "POST", "/api/v1/transactions/track", req, nil); err != nil {
		return err
	}
	c.logger.Debug("transaction tracked", "message_id", req.MessageID, "tx_hash", req.TxHash)
	return nil
}

// GetTransactionShareData fetches the social enrichment for a settled
// transaction.
func (c *Client) GetTransactionShareData(ctx context.Context, txHash string) (*ShareData, error) {
	var data ShareData
	path := fmt.Sprintf("/api/v1/transactions/%s/share-data", url.PathEscape(txHash))
	if err := c.doJSON(ctx, "GET", path, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTransactionStatus fetches the backend's confirmation view of a
// broadcast transaction.
func (c *Client) GetTransactionStatus(ctx context.Context, network, txHash string) (*TransactionStatus, error) {
	var status TransactionStatus
	path := fmt.Sprintf("/api/v1/networks/%s/transactions/%s", url.PathEscape(network), url.PathEscape(txHash))
	if err := c.doJSON(ctx, "GET", path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetPaymentRequest fetches the current state of a payment request. Callers
// must refetch immediately before acting on a request; cached state goes
// stale the moment the counterparty touches it.
func (c *Client) GetPaymentRequest(ctx context.Context, id string) (*PaymentRequest, error) {
	var pr PaymentRequest
	path := fmt.Sprintf("/api/v1/payment-requests/%s", url.PathEscape(id))
	if err := c.doJSON(ctx, "GET", path, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// ListPaymentRequests fetches the caller's open payment requests.
func (c *Client) ListPaymentRequests(ctx context.Context, status string) ([]*PaymentRequest, error) {
	path := "/api/v1/payment-requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Requests []*PaymentRequest `json:"requests"`
	}
	if err := c.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// BuildRequestPreview resolves a payment request into a payable preview:
// recipient address, token contract, and fee estimate for the payer's
// network.
func (c *Client) BuildRequestPreview(ctx context.Context, id string) (*RequestPreview, error) {
	var preview RequestPreview
	path := fmt.Sprintf("/api/v1/payment-requests/%s/preview", url.PathEscape(id))
	if err := c.doJSON(ctx, "GET", path, nil, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// MarkRequestAccepted transitions a payment request to accepted. Only called
// after the settlement transaction succeeded; the backend rejects the
// transition for terminal requests.
func (c *Client) MarkRequestAccepted(ctx context.Context, id, txHash string) error {
	reqBody := map[string]any{"tx_hash": txHash}
	path := fmt.Sprintf("/api/v1/payment-requests/%s/accept", url.PathEscape(id))
	if err := c.doJSON(ctx, "POST", path, reqBody, nil); err != nil {
		return err
	}
	c.logger.Debug("payment request accepted", "request_id", id, "tx_hash", txHash)
	return nil
}

// MarkRequestDeclined transitions a payment request to declined.
func (c *Client) MarkRequestDeclined(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/payment-requests/%s/decline", url.PathEscape(id))
	if err := c.doJSON(ctx, "POST", path, nil, nil); err != nil {
		return err
	}
	c.logger.Debug("payment request declined", "request_id", id)
	return nil
}

// MarkRequestExpired transitions a payment request to expired. The backend
// rejects the transition for terminal requests.
func (c *Client) MarkRequestExpired(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/v1/payment-requests/%s/expire", url.PathEscape(id))
	if err := c.doJSON(ctx, "POST", path, nil, nil); err != nil {
		return err
	}
	c.logger.Debug("payment request expired", "request_id", id)
	return nil
}

// ResolveRecipient resolves a chat user to a wallet address on a network.
func (c *Client) ResolveRecipient(ctx context.Context, userID, network string) (*Recipient, error) {
	var recipient Recipient
	path := fmt.Sprintf("/api/v1/users/%s/wallet?network=%s", url.PathEscape(userID), url.QueryEscape(network))
	if err := c.doJSON(ctx, "GET", path, nil, &recipient); err != nil {
		return nil, err
	}
	return &recipient, nil
}
