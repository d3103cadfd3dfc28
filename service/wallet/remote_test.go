package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloqz/settle/service/chains"
)

func TestSnapshotFor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/users/user-1/signers", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"evm_address":    "0x1111111111111111111111111111111111111111",
			"solana_address": "So1anaAddre55111111111111111111111111111111",
		})
	}))
	defer server.Close()

	c := NewSnapshotClient(server.URL, "secret", nil, nil)
	snap, err := c.SnapshotFor(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, snap.HasProviderFor(chains.FamilyEVM))
	assert.True(t, snap.HasProviderFor(chains.FamilySolana))
	assert.Equal(t, "0x1111111111111111111111111111111111111111", snap.CustodialEVMAddress)
}

func TestSnapshotFor_EVMOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"evm_address": "0x1111111111111111111111111111111111111111",
		})
	}))
	defer server.Close()

	c := NewSnapshotClient(server.URL, "", nil, nil)
	snap, err := c.SnapshotFor(context.Background(), "user-1")
	require.NoError(t, err)

	assert.True(t, snap.HasProviderFor(chains.FamilyEVM))
	assert.False(t, snap.HasProviderFor(chains.FamilySolana))
}

func TestSnapshotFor_UserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "user not found"})
	}))
	defer server.Close()

	c := NewSnapshotClient(server.URL, "", nil, nil)
	_, err := c.SnapshotFor(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}

func TestRemoteEVMSession_Request(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/users/user-1/signers" {
			json.NewEncoder(w).Encode(map[string]string{
				"evm_address": "0x1111111111111111111111111111111111111111",
			})
			return
		}

		assert.Equal(t, "/api/v1/users/user-1/evm/request", r.URL.Path)
		var body struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "eth_signTransaction", body.Method)
		require.Len(t, body.Params, 1)

		json.NewEncoder(w).Encode(map[string]string{"result": "0xsignedpayload"})
	}))
	defer server.Close()

	c := NewSnapshotClient(server.URL, "", nil, nil)
	snap, err := c.SnapshotFor(context.Background(), "user-1")
	require.NoError(t, err)

	result, err := snap.CustodialEVMSession.Request(context.Background(), "eth_signTransaction", map[string]string{
		"from": snap.CustodialEVMAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xsignedpayload", result)
}
