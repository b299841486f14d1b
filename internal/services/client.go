package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tuttitracks/internal/shared"
)

// Credentials is the token of one user for the lifetime of a request or command.
//
// OnRefresh is called with the new token after a successful refresh so it can be persisted.
type Credentials struct {
	Username  string
	OnRefresh func(ctx context.Context, token *oauth2.Token) error

	mu    sync.Mutex
	token *oauth2.Token
}

// NewCredentials creates [Credentials] for username holding token.
func NewCredentials(username string, token *oauth2.Token, onRefresh func(context.Context, *oauth2.Token) error) *Credentials {
	return &Credentials{Username: username, OnRefresh: onRefresh, token: token}
}

// Token returns a copy of the current token, or nil.
func (c *Credentials) Token() *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil
	}
	t := *c.token
	return &t
}

func (c *Credentials) setToken(t *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = t
}

type credentialsKey struct{}

// WithCredentials returns a context carrying creds for the [Client].
func WithCredentials(ctx context.Context, creds *Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom returns the credentials stored by [WithCredentials].
func CredentialsFrom(ctx context.Context) (*Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(*Credentials)
	return creds, ok && creds != nil
}

// ClientOpts configures a [Client].
type ClientOpts struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// Client is the single path for authenticated calls to the remote API.
//
// Each call waits on a shared rate limiter, sends the bearer token from the context's [Credentials]
// and, on a 401, refreshes the token and retries exactly once.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenRefresher
	limiter *rate.Limiter
	logger  *log.Logger
}

// TimeoutClient returns a copy of base with its timeout set. base is never modified and may be nil.
func TimeoutClient(base *http.Client, timeout time.Duration) *http.Client {
	c := &http.Client{}
	if base != nil {
		cp := *base
		c = &cp
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
	return c
}

// NewClient creates a [Client] that refreshes expired tokens through tokens.
func NewClient(tokens TokenRefresher, opts ClientOpts) *Client {
	httpClient := TimeoutClient(opts.HTTPClient, opts.Timeout)

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// remoteError is the error envelope returned by the remote API.
type remoteError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Do sends a JSON request and decodes a 2xx response body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	creds, ok := CredentialsFrom(ctx)
	if !ok {
		return shared.ErrNotAuthenticated
	}

	token := creds.Token()
	if token == nil || token.AccessToken == "" {
		return shared.ErrNotAuthenticated
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	status, respBody, err := c.send(ctx, method, path, payload, token.AccessToken)
	if err != nil {
		return &shared.RemoteServiceError{Method: method, Path: path, Err: fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)}
	}

	if status == http.StatusUnauthorized {
		c.logger.Debug("access token rejected, refreshing", "user", creds.Username, "path", path)

		refreshed, err := c.refresh(ctx, creds, token)
		if err != nil {
			return err
		}

		status, respBody, err = c.send(ctx, method, path, payload, refreshed.AccessToken)
		if err != nil {
			return &shared.RemoteServiceError{Method: method, Path: path, Err: fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)}
		}
	}

	if status < 200 || status >= 300 {
		return &shared.RemoteServiceError{Method: method, Path: path, Status: status, Message: errorMessage(status, respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

// send performs one HTTP round trip and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, accessToken string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	remoteDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		remoteRequests.WithLabelValues(method, "error").Inc()
		return 0, nil, err
	}
	defer resp.Body.Close()

	remoteRequests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("remote request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))
	return resp.StatusCode, respBody, nil
}

// refresh swaps a new token into creds and persists it through OnRefresh.
func (c *Client) refresh(ctx context.Context, creds *Credentials, current *oauth2.Token) (*oauth2.Token, error) {
	if current.RefreshToken == "" {
		tokenRefreshes.WithLabelValues("missing").Inc()
		return nil, &shared.RemoteServiceError{
			Method:  "POST",
			Path:    "token",
			Status:  http.StatusUnauthorized,
			Message: "access token expired",
			Err:     shared.ErrNoRefreshToken,
		}
	}

	token, err := c.tokens.Refresh(ctx, current.RefreshToken)
	if err != nil {
		tokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}
	tokenRefreshes.WithLabelValues("success").Inc()

	creds.setToken(token)
	if creds.OnRefresh != nil {
		if err := creds.OnRefresh(ctx, token); err != nil {
			c.logger.Warn("failed to persist refreshed token", "user", creds.Username, "err", err)
		}
	}
	return token, nil
}

func errorMessage(status int, body []byte) string {
	var envelope remoteError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if msg := strings.TrimSpace(string(body)); msg != "" && len(msg) < 200 {
		return msg
	}
	return http.StatusText(status)
}
