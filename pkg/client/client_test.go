package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/memory"
	"github.com/Layr-Labs/bip322-go/pkg/server"
	"github.com/Layr-Labs/bip322-go/pkg/signer"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/verifier"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fastRetry = RetryConfig{
	MaxAttempts:     3,
	InitialBackoff:  time.Millisecond,
	MaxBackoff:      5 * time.Millisecond,
	BackoffMultiple: 2.0,
}

func newVerificationServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.ServerConfig{Port: config.DefaultPort, CacheType: config.CacheTypeMemory}
	s := server.NewServer(cfg, verifier.NewVerifier(crypto.DefaultProvider(), nil), memory.NewMemoryCache(), zap.NewNop())
	ts := httptest.NewServer(s.GetHandler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_Verify(t *testing.T) {
	ts := newVerificationServer(t)
	c := NewClient(ts.URL+"/", nil).WithRetryConfig(fastRetry)

	priv, err := hex.DecodeString("bb051cd0dda0246f33c5a9e133ebd8e7bc02a92af6c41adc131ccd7826c5b004")
	require.NoError(t, err)
	sig, err := signer.Sign(priv, []byte("Hello World"), address.P2TR)
	require.NoError(t, err)

	const p2tr = "bc1ppv609nr0vr25u07u95waq5lucwfm6tde4nydujnu8npg4q75mr5sxq8lt3"

	resp, err := c.Verify(context.Background(), &types.VerifyRequest{Address: p2tr, Message: "Hello World", Signature: sig})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.False(t, resp.Cached)

	resp, err = c.Verify(context.Background(), &types.VerifyRequest{Address: p2tr, Message: "Hello World", Signature: sig})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.True(t, resp.Cached)

	resp, err = c.Verify(context.Background(), &types.VerifyRequest{Address: p2tr, Message: "Goodbye", Signature: sig})
	require.NoError(t, err)
	assert.False(t, resp.Valid)
}

func TestClient_Verify_StructuralError(t *testing.T) {
	ts := newVerificationServer(t)
	c := NewClient(ts.URL, nil).WithRetryConfig(fastRetry)

	resp, err := c.Verify(context.Background(), &types.VerifyRequest{
		Address:   "bc1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qccfmv3",
		Message:   "m",
		Signature: "AA==",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnsupportedAddress))
	require.NotNil(t, resp)
	assert.Equal(t, types.KindUnsupportedAddress, resp.ErrorKind)
}

func TestClient_DecodeWitnessAndClassify(t *testing.T) {
	ts := newVerificationServer(t)
	c := NewClient(ts.URL, nil).WithRetryConfig(fastRetry)

	items, err := c.DecodeWitness(context.Background(), witness.Serialize([][]byte{{0xab}, {0xcd, 0xef}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cdef"}, items)

	_, err = c.DecodeWitness(context.Background(), "AQEBAQ==")
	assert.True(t, errors.Is(err, types.ErrMalformedWitness))

	desc, err := c.ClassifyAddress(context.Background(), "2MyQBsrfRnTLwEdpjVVYNWHDB8LXLJUcub9")
	require.NoError(t, err)
	assert.Equal(t, "p2sh", desc.Type)
	assert.Equal(t, "testnet", desc.Network)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

// TestClient_RetriesServerErrors checks backoff on 5xx followed by success
func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(types.VerifyResponse{Valid: true, RequestID: "r"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil).WithRetryConfig(fastRetry)
	resp, err := c.Verify(context.Background(), &types.VerifyRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil).WithRetryConfig(fastRetry)
	_, err := c.Verify(context.Background(), &types.VerifyRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(fastRetry.MaxAttempts), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil).WithRetryConfig(fastRetry)
	_, err := c.Verify(context.Background(), &types.VerifyRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(ts.URL, nil).WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiple: 1})
	_, err := c.Verify(ctx, &types.VerifyRequest{})
	require.Error(t, err)
}
