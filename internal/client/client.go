package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/brattlof/userview/internal/user"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrInvalidResponse  = errors.New("invalid response")
)

const (
	addUserPath   = "/user"
	listUsersPath = "/users"
)

// API is the users service as seen by the view.
type API interface {
	AddUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]user.User, error)
}

// Client talks to the users service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddUser posts username as a form to /user. Any 2xx JSON response counts as
// success; the body is not inspected further.
func (c *Client) AddUser(ctx context.Context, username string) error {
	form := url.Values{}
	form.Set("username", username)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+addUserPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build add user request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var discard json.RawMessage
	if err := c.do(req, &discard); err != nil {
		return fmt.Errorf("add user %q: %w", username, err)
	}
	return nil
}

func (c *Client) ListUsers(ctx context.Context) ([]user.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listUsersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build list users request: %w", err)
	}

	var users []user.User
	if err := c.do(req, &users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		return nil, fmt.Errorf("list users: %w: not an array", ErrInvalidResponse)
	}
	return users, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("users service response",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	// No Content succeeds without a body; out is left untouched.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
