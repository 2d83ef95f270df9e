package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Layr-Labs/bip322-go/pkg/address"
	"github.com/Layr-Labs/bip322-go/pkg/config"
	"github.com/Layr-Labs/bip322-go/pkg/crypto"
	"github.com/Layr-Labs/bip322-go/pkg/logger"
	"github.com/Layr-Labs/bip322-go/pkg/persistence"
	"github.com/Layr-Labs/bip322-go/pkg/persistence/memory"
	"github.com/Layr-Labs/bip322-go/pkg/signer"
	"github.com/Layr-Labs/bip322-go/pkg/types"
	"github.com/Layr-Labs/bip322-go/pkg/verifier"
	"github.com/Layr-Labs/bip322-go/pkg/witness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// private key behind L3VFeEujGtevx9w18HD1fhRbCH67Az2dpCymeRE1SoPK6XQtaN2k
	testPrivateKeyHex = "bb051cd0dda0246f33c5a9e133ebd8e7bc02a92af6c41adc131ccd7826c5b004"
	testP2WPKH        = "bc1q9vza2e8x573nczrlzms0wvx3gsqjx7vavgkx0l"
	testP2WSH         = "bc1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qccfmv3"
)

type failingCache struct{}

func (failingCache) Get(string) (*persistence.CachedResult, error) {
	return nil, fmt.Errorf("connection refused")
}
func (failingCache) Put(string, *persistence.CachedResult) error {
	return fmt.Errorf("connection refused")
}
func (failingCache) Close() error       { return nil }
func (failingCache) HealthCheck() error { return fmt.Errorf("connection refused") }

func newTestServer(t *testing.T, cfg *config.ServerConfig, cache persistence.IVerificationCache) *Server {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	if cfg == nil {
		cfg = &config.ServerConfig{Port: config.DefaultPort, CacheType: config.CacheTypeMemory}
	}
	return NewServer(cfg, verifier.NewVerifier(crypto.DefaultProvider(), l), cache, l)
}

func signTestMessage(t *testing.T, message string) string {
	t.Helper()
	priv, err := hex.DecodeString(testPrivateKeyHex)
	require.NoError(t, err)
	sig, err := signer.Sign(priv, []byte(message), address.P2WPKH)
	require.NoError(t, err)
	return sig
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	s.GetHandler().ServeHTTP(w, req)
	return w
}

func decodeVerifyResponse(t *testing.T, w *httptest.ResponseRecorder) types.VerifyResponse {
	t.Helper()
	var resp types.VerifyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandleVerify(t *testing.T) {
	sig := signTestMessage(t, "Hello World")

	t.Run("Valid signature", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "Hello World", Signature: sig})

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeVerifyResponse(t, w)
		assert.True(t, resp.Valid)
		assert.False(t, resp.Cached)
		assert.Empty(t, resp.ErrorKind)
		assert.NotEmpty(t, resp.RequestID)
	})

	t.Run("Wrong message", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "Hello World!", Signature: sig})

		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decodeVerifyResponse(t, w).Valid)
	})

	t.Run("Hex message", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{
			Address:    testP2WPKH,
			MessageHex: "0x" + hex.EncodeToString([]byte("Hello World")),
			Signature:  sig,
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeVerifyResponse(t, w).Valid)
	})

	t.Run("Bad hex message", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, MessageHex: "48656c6c6f", Signature: sig})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Invalid address", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: "not-an-address", Message: "m", Signature: sig})

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeVerifyResponse(t, w)
		assert.False(t, resp.Valid)
		assert.Equal(t, types.KindInvalidAddress, resp.ErrorKind)
	})

	t.Run("P2WSH", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WSH, Message: "m", Signature: sig})

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, types.KindUnsupportedAddress, decodeVerifyResponse(t, w).ErrorKind)
	})

	t.Run("Malformed witness", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "m", Signature: "!!!"})

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, types.KindMalformedWitness, decodeVerifyResponse(t, w).ErrorKind)
	})

	t.Run("Method not allowed", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/verify", nil)
		w := httptest.NewRecorder()
		s.handleVerify(w, req)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader([]byte("invalid json")))
		w := httptest.NewRecorder()
		s.handleVerify(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleVerify_Cache(t *testing.T) {
	sig := signTestMessage(t, "cached")

	t.Run("Definite outcomes are cached", func(t *testing.T) {
		cache := memory.NewMemoryCache()
		s := newTestServer(t, nil, cache)

		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "cached", Signature: sig})
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decodeVerifyResponse(t, w).Cached)
		assert.Equal(t, 1, cache.Len())

		w = postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "cached", Signature: sig})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeVerifyResponse(t, w)
		assert.True(t, resp.Valid)
		assert.True(t, resp.Cached)

		w = postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "other", Signature: sig})
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decodeVerifyResponse(t, w).Valid)
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("Structural errors are not cached", func(t *testing.T) {
		cache := memory.NewMemoryCache()
		s := newTestServer(t, nil, cache)

		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WSH, Message: "cached", Signature: sig})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, 0, cache.Len())
	})

	t.Run("Cache is consulted first", func(t *testing.T) {
		cache := memory.NewMemoryCache()
		key := persistence.CacheKey(testP2WPKH, []byte("seeded"), "garbage")
		require.NoError(t, cache.Put(key, &persistence.CachedResult{Address: testP2WPKH, Valid: true}))

		s := newTestServer(t, nil, cache)
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "seeded", Signature: "garbage"})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeVerifyResponse(t, w)
		assert.True(t, resp.Valid)
		assert.True(t, resp.Cached)
	})

	t.Run("Malformed addresses never reach the cache", func(t *testing.T) {
		cache := memory.NewMemoryCache()
		s := newTestServer(t, nil, cache)

		zeroSig := signTestMessage(t, "q\x00")
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, MessageHex: "0x7100", Signature: zeroSig})
		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, decodeVerifyResponse(t, w).Valid)
		require.Equal(t, 1, cache.Len())

		// shifting the zero byte from the message into the address must not hit the entry above
		w = postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH + "\x00q", Message: "", Signature: zeroSig})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeVerifyResponse(t, w)
		assert.False(t, resp.Valid)
		assert.False(t, resp.Cached)
		assert.Equal(t, types.KindInvalidAddress, resp.ErrorKind)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("Cache failures fall through to verification", func(t *testing.T) {
		s := newTestServer(t, nil, failingCache{})
		w := postJSON(t, s, "/verify", types.VerifyRequest{Address: testP2WPKH, Message: "cached", Signature: sig})
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeVerifyResponse(t, w).Valid)
	})
}

func TestHandleWitnessDecode(t *testing.T) {
	s := newTestServer(t, nil, nil)

	t.Run("Valid witness", func(t *testing.T) {
		encoded := witness.Serialize([][]byte{{0x01, 0x02}, {}, {0xff}})
		w := postJSON(t, s, "/witness/decode", types.WitnessDecodeRequest{Witness: encoded})

		require.Equal(t, http.StatusOK, w.Code)
		var resp types.WitnessDecodeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, []string{"0102", "", "ff"}, resp.Items)
	})

	t.Run("Trailing bytes", func(t *testing.T) {
		w := postJSON(t, s, "/witness/decode", types.WitnessDecodeRequest{Witness: "AQEBAQ=="})

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var resp types.WitnessDecodeResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, types.KindMalformedWitness, resp.ErrorKind)
	})

	t.Run("Method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/witness/decode", nil)
		w := httptest.NewRecorder()
		s.handleWitnessDecode(w, req)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleAddress(t *testing.T) {
	s := newTestServer(t, nil, nil)

	get := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/address?address="+addr, nil)
		w := httptest.NewRecorder()
		s.GetHandler().ServeHTTP(w, req)
		return w
	}

	t.Run("P2WPKH", func(t *testing.T) {
		w := get(testP2WPKH)
		require.Equal(t, http.StatusOK, w.Code)

		var resp types.AddressResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "p2wpkh", resp.Type)
		assert.Equal(t, "mainnet", resp.Network)
		assert.Equal(t, "00142b05d564e6a7a33c087f16e0f730d1440123799d", resp.ScriptPubKey)
	})

	t.Run("Invalid", func(t *testing.T) {
		w := get("bc1qinvalid")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Missing", func(t *testing.T) {
		w := get("")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		s := newTestServer(t, nil, memory.NewMemoryCache())
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		s.GetHandler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp types.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "btcec", resp.Provider)
		assert.Equal(t, "memory", resp.Cache)
	})

	t.Run("Degraded cache", func(t *testing.T) {
		s := newTestServer(t, nil, failingCache{})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		s.GetHandler().ServeHTTP(w, req)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("No cache", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		s.GetHandler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp types.HealthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "none", resp.Cache)
	})
}

func TestMiddleware_RequestID(t *testing.T) {
	s := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-123")
	w := httptest.NewRecorder()
	s.GetHandler().ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(headerRequestID))

	w = postJSON(t, s, "/verify", types.VerifyRequest{Address: "x"})
	generated := w.Header().Get(headerRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, decodeVerifyResponse(t, w).RequestID)
}

func TestMiddleware_RateLimit(t *testing.T) {
	cfg := &config.ServerConfig{Port: config.DefaultPort, RateLimit: 0.001, RateBurst: 1}
	s := newTestServer(t, cfg, nil)

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.GetHandler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, get("/address?address="+testP2WPKH))
	assert.Equal(t, http.StatusTooManyRequests, get("/address?address="+testP2WPKH))
	assert.Equal(t, http.StatusOK, get("/health"), "health checks are exempt")
}
