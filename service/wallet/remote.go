package wallet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// SnapshotClient resolves users to signing snapshots through the custodial
// key service. WalletConnect sessions live on the user's device and never
// appear in snapshots built here; server-side settlement always goes through
// the custodial wallets.
type SnapshotClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSnapshotClient creates a snapshot client for the custodial key service.
func NewSnapshotClient(baseURL, token string, httpClient *http.Client, logger *slog.Logger) *SnapshotClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &SnapshotClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SnapshotFor fetches the user's custodial wallet addresses and wraps them
// with remote signing sessions.
func (c *SnapshotClient) SnapshotFor(ctx context.Context, userID string) (AuthSnapshot, error) {
	var signers struct {
		EVMAddress    string `json:"evm_address"`
		SolanaAddress string `json:"solana_address"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/signers", url.PathEscape(userID))
	if err := c.doJSON(ctx, "GET", path, nil, &signers); err != nil {
		return AuthSnapshot{}, fmt.Errorf("failed to fetch signers for user %s: %w", userID, err)
	}

	snap := AuthSnapshot{}
	if signers.EVMAddress != "" {
		snap.CustodialEVMAddress = signers.EVMAddress
		snap.CustodialEVMSession = &remoteEVMSession{client: c, userID: userID}
	}
	if signers.SolanaAddress != "" {
		snap.CustodialSolanaAddress = signers.SolanaAddress
		snap.CustodialSolanaSigner = &remoteSolanaSigner{client: c, userID: userID}
	}
	return snap, nil
}

// remoteEVMSession forwards wallet JSON-RPC requests to the key service,
// which holds the user's custodial EVM key.
type remoteEVMSession struct {
	client *SnapshotClient
	userID string
}

func (s *remoteEVMSession) Request(ctx context.Context, method string, params ...any) (string, error) {
	reqBody := map[string]any{
		"method": method,
		"params": params,
	}
	var resp struct {
		Result string `json:"result"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/evm/request", url.PathEscape(s.userID))
	if err := s.client.doJSON(ctx, "POST", path, reqBody, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

// remoteSolanaSigner ships a fully-built transaction to the key service,
// which signs with the user's custodial Solana key and submits it.
type remoteSolanaSigner struct {
	client *SnapshotClient
	userID string
}

func (s *remoteSolanaSigner) SignAndSendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	reqBody := map[string]any{
		"transaction": base64.StdEncoding.EncodeToString(raw),
	}
	var resp struct {
		Signature string `json:"signature"`
	}
	path := fmt.Sprintf("/api/v1/users/%s/solana/sign-and-send", url.PathEscape(s.userID))
	if err := s.client.doJSON(ctx, "POST", path, reqBody, &resp); err != nil {
		return solanago.Signature{}, err
	}

	sig, err := solanago.SignatureFromBase58(resp.Signature)
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("invalid signature %q from key service: %w", resp.Signature, err)
	}
	return sig, nil
}

func (c *SnapshotClient) doJSON(ctx context.Context, method, path string, in, out any) error {
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
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("key service error (HTTP %d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("key service error: HTTP %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
