// Package client provides the srpgate HTTP API client used by srpctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/fzdarsky/srpgate/internal/cli/config"
	cliTLS "github.com/fzdarsky/srpgate/internal/cli/tls"
	"github.com/fzdarsky/srpgate/pkg/protocol"
)

const (
	defaultTimeout  = 30 * time.Second
	contentTypeJSON = "application/json"
	maxRetries      = 3
	initialBackoff  = 500 * time.Millisecond
	maxBackoff      = 5 * time.Second
	maxResponseSize = 1 << 20
)

// Client is an HTTP client for the srpgate API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	sessionToken string
	sleep        func(time.Duration)
}

// NewClient creates a client for the server in cfg. HTTPS connections pin
// the server certificate on first use unless a CA bundle is configured.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.Insecure {
		return NewClientWithHTTP(cfg.BaseURL(), &http.Client{Timeout: defaultTimeout}), nil
	}

	pins, err := cliTLS.NewPinStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open certificate pins: %w", err)
	}
	prompter := &cliTLS.Prompter{In: os.Stdin, Out: os.Stderr, AssumeYes: cfg.AssumeYes}

	transport, err := NewTOFUTransport(cfg.Address(), cfg.CACert, pins, prompter)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return NewClientWithHTTP(cfg.BaseURL(), &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}), nil
}

// NewClientWithHTTP creates a client with a caller-supplied http.Client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		sleep:      time.Sleep,
	}
}

// SetSessionToken sets the bearer token for authenticated requests.
func (c *Client) SetSessionToken(token string) {
	c.sessionToken = token
}

// SessionToken returns the current bearer token.
func (c *Client) SessionToken() string {
	return c.sessionToken
}

// GetAttributes fetches the public SRP attributes of identity.
func (c *Client) GetAttributes(ctx context.Context, identity string) (*protocol.SRPAttributes, error) {
	var resp protocol.GetSRPAttributesResponse
	path := "/users/srp/attributes?srpUserID=" + url.QueryEscape(identity)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Attributes, nil
}

// SetupSRP starts registration or verifier rotation.
func (c *Client) SetupSRP(ctx context.Context, req protocol.SetupSRPRequest) (*protocol.SetupSRPResponse, error) {
	var resp protocol.SetupSRPResponse
	if err := c.do(ctx, http.MethodPost, "/users/srp/setup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteSetup submits the setup proof.
func (c *Client) CompleteSetup(ctx context.Context, req protocol.CompleteSRPSetupRequest) (*protocol.CompleteSRPSetupResponse, error) {
	var resp protocol.CompleteSRPSetupResponse
	if err := c.do(ctx, http.MethodPost, "/users/srp/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSession starts a login handshake.
func (c *Client) CreateSession(ctx context.Context, req protocol.CreateSRPSessionRequest) (*protocol.CreateSRPSessionResponse, error) {
	var resp protocol.CreateSRPSessionResponse
	if err := c.do(ctx, http.MethodPost, "/users/srp/create-session", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifySession submits the login proof.
func (c *Client) VerifySession(ctx context.Context, req protocol.VerifySRPSessionRequest) (*protocol.UserVerificationResponse, error) {
	var resp protocol.UserVerificationResponse
	if err := c.do(ctx, http.MethodPost, "/users/srp/verify-session", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyEmailMFA submits an emailed one-time code.
func (c *Client) VerifyEmailMFA(ctx context.Context, req protocol.VerifyEmailMFARequest) (*protocol.UserVerificationResponse, error) {
	var resp protocol.UserVerificationResponse
	if err := c.do(ctx, http.MethodPost, "/users/two-factor/email/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetEmailMFA toggles email MFA for the logged-in account.
func (c *Client) SetEmailMFA(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/users/two-factor/email", protocol.SetEmailMFARequest{IsEnabled: enabled}, nil)
}

// Logout revokes the current session token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/users/logout", nil, nil); err != nil {
		return err
	}
	c.sessionToken = ""
	return nil
}

// do sends one API request. Only GET requests are retried: replaying a
// handshake step against a single-use challenge can never succeed.
func (c *Client) do(ctx context.Context, method, path string, body, response any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += maxRetries
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.sleep(backoff)
			backoff = min(backoff*2, maxBackoff)
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
		req.Header.Set("Accept", contentTypeJSON)
		if c.sessionToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.sessionToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryable(err) {
				lastErr = fmt.Errorf("request failed (attempt %d/%d): %w", attempt, attempts, err)
				continue
			}
			return fmt.Errorf("request failed: %w", err)
		}

		respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := newAPIError(resp, respBytes)
			if resp.StatusCode >= http.StatusInternalServerError && resp.StatusCode != http.StatusServiceUnavailable {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if response != nil && len(respBytes) > 0 {
			if err := json.Unmarshal(respBytes, response); err != nil {
				return fmt.Errorf("failed to parse response (invalid JSON): %w", err)
			}
		}
		return nil
	}

	return lastErr
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsTemporary {
		return true
	}

	// The server may still be starting.
	return errors.Is(err, syscall.ECONNREFUSED)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       protocol.ErrorCode
	Message    string
	Details    string
	RetryAfter time.Duration
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errResp protocol.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Code != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
		apiErr.Details = errResp.Details
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}
	return apiErr
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s (HTTP %d)", e.Message, e.Details, e.StatusCode)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	return msg
}

// IsAuthError reports whether err is a 401 from the server.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
