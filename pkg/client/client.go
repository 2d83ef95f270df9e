package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/bip322-go/pkg/types"
	"go.uber.org/zap"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// Client talks to a verification server
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger
}

// NewClient creates a client for the server at baseURL (e.g. http://localhost:8322).
// A nil logger disables logging.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		retryConfig: DefaultRetryConfig,
		logger:      logger,
	}
}

// WithRetryConfig replaces the retry settings
func (c *Client) WithRetryConfig(cfg RetryConfig) *Client {
	c.retryConfig = cfg
	return c
}

// retryable reports whether a response status is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// do sends the request, retrying on transport errors, 429 and 5xx with
// exponential backoff. It returns the status and body of the last response;
// the error is set only when no response was received at all.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var (
		lastErr    error
		lastStatus int
		lastBody   []byte
	)
	backoff := c.retryConfig.InitialBackoff

	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			data, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read response: %w", readErr)
			} else if !retryable(resp.StatusCode) {
				return resp.StatusCode, data, nil
			} else {
				lastStatus, lastBody = resp.StatusCode, data
				lastErr = fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
			}
		} else {
			lastErr = err
		}

		c.logger.Sugar().Debugw("Request attempt failed", "path", path, "attempt", attempt+1, "error", lastErr)

		if attempt < c.retryConfig.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retryConfig.BackoffMultiple)
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
		}
	}

	if lastStatus != 0 {
		return lastStatus, lastBody, nil
	}
	return 0, nil, fmt.Errorf("request to %s failed after %d attempts: %w", path, c.retryConfig.MaxAttempts, lastErr)
}

// Verify submits a verification request. Structural failures reported by the
// server come back as a *types.Error alongside the decoded response.
func (c *Client) Verify(ctx context.Context, req *types.VerifyRequest) (*types.VerifyResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/verify", data)
	if err != nil {
		return nil, err
	}

	var resp types.VerifyResponse
	switch status {
	case http.StatusOK, http.StatusUnprocessableEntity:
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	default:
		return nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	if resp.ErrorKind != "" {
		return &resp, types.NewError(resp.ErrorKind, "%s", resp.Error)
	}
	return &resp, nil
}

// DecodeWitness asks the server to parse a base64 witness stack
func (c *Client) DecodeWitness(ctx context.Context, encoded string) ([]string, error) {
	data, err := json.Marshal(&types.WitnessDecodeRequest{Witness: encoded})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/witness/decode", data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	var resp types.WitnessDecodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.ErrorKind != "" {
		return nil, types.NewError(resp.ErrorKind, "%s", resp.Error)
	}
	return resp.Items, nil
}

// ClassifyAddress asks the server to describe an address
func (c *Client) ClassifyAddress(ctx context.Context, addr string) (*types.AddressResponse, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/address?address="+url.QueryEscape(addr), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusUnprocessableEntity {
		return nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	var resp types.AddressResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.ErrorKind != "" {
		return &resp, types.NewError(resp.ErrorKind, "%s", resp.Error)
	}
	return &resp, nil
}

// Health returns the server's health report. A degraded server is not an error.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp types.HealthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode health response (status %d): %w", status, err)
	}
	return &resp, nil
}
