// Package pinterest implements the remote side of the sync: session
// management, paginated listing, payload fetch, and delete-by-id over
// the JSON HTTP API.
package pinterest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	pserrors "github.com/eerkela/pinsync/internal/errors"
)

// TransientError wraps an error that is likely temporary and safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller may retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const defaultBaseURL = "https://api.pinterest.example"

const (
	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided. Payload downloads use per-request
	// contexts instead, so streaming large files is not cut short.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps API (non-payload) response body reads to
	// prevent a misbehaving server from consuming unbounded memory.
	maxAPIResponseBytes = 4 * 1024 * 1024

	// requestsPerSecond throttles all remote calls. The API rate-limits
	// aggressively; one shared limiter covers every goroutine.
	requestsPerSecond = 5

	// maxRetries bounds the backoff retry loop for transient failures.
	maxRetries = 3
)

// Client talks to the remote collection API. One Client carries one
// session; the session handle is explicit state of the Client rather
// than process-global.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter

	mu         sync.Mutex
	token      string
	boardIDs   map[string]string // board name -> id
	sectionIDs map[string]string // "board/section" -> id
}

// NewClient creates an API client. If httpClient is nil, a client with
// a 30-second timeout is created. An empty baseURL selects the
// production endpoint.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: httpClientTimeout}
	}

	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		boardIDs:   make(map[string]string),
		sectionIDs: make(map[string]string),
	}
}

// Token returns the current session token, or empty if signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.token
}

// SetToken resumes a previously established session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SignIn authenticates and stores the session token on the client.
func (c *Client) SignIn(ctx context.Context, email, password, username string) (string, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
		"username": username,
	}

	var resp struct {
		Token string `json:"token"`
	}

	if err := c.doJSON(ctx, http.MethodPost, "/v3/login", body, &resp); err != nil {
		return "", fmt.Errorf("signing in: %w", err)
	}

	if resp.Token == "" {
		return "", fmt.Errorf("signing in: empty token in response")
	}

	c.SetToken(resp.Token)

	return resp.Token, nil
}

// SignOut invalidates the session token.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.Token()
	if token == "" {
		return nil
	}

	if err := c.doJSON(ctx, http.MethodPost, "/v3/logout", map[string]string{"token": token}, nil); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}

	c.SetToken("")

	return nil
}

// doJSON performs an authenticated JSON request with rate limiting and
// transient-failure retries, decoding the response into result when
// non-nil.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, result any) error {
	raw, err := c.doRaw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("decoding response from %s: %w", endpoint, err)
		}
	}

	return nil
}

// doRaw is doJSON without decoding: it returns the raw response body
// for callers that parse with gjson.
func (c *Client) doRaw(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var raw []byte

	op := func() error {
		var err error

		raw, err = c.roundTrip(ctx, method, endpoint, body)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}

		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}

	return raw, nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &TransientError{Err: fmt.Errorf("sending request to %s: %w", endpoint, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("API %s returned status %d: %w", endpoint, resp.StatusCode, pserrors.ErrNotAuthenticated)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("API %s returned status %d: %w", endpoint, resp.StatusCode, pserrors.ErrItemNotFound)
	case isTransientStatus(resp.StatusCode):
		return nil, &TransientError{Err: fmt.Errorf("API %s returned status %d", endpoint, resp.StatusCode)}
	default:
		return nil, fmt.Errorf("API %s returned status %d", endpoint, resp.StatusCode)
	}
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}
