// Package client is a typed Go client for the courseai HTTP API, intended
// for tooling and integration tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ca "github.com/courseai/courseai"
)

// APIError is a decoded error response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%d, field %s): %s", e.Code, e.StatusCode, e.Field, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Client talks to a courseai server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown"}
		json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LoginResult is the response payload of the two login endpoints. The
// NeedsPassword flag is only meaningful for Google logins.
type LoginResult struct {
	User          *ca.Account `json:"user"`
	NeedsPassword bool        `json:"needsPassword"`
}

// Login authenticates with a username or email plus password.
func (c *Client) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/auth", map[string]string{
		"username": identifier,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin authenticates with a raw Google ID token.
func (c *Client) GoogleLogin(ctx context.Context, idToken string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/google-auth", map[string]string{"token": idToken}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPassword finishes account setup for a federated account: it claims the
// username and sets the first password.
func (c *Client) SetPassword(ctx context.Context, email, username, password string) (*ca.Account, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/set-password", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.User, nil
}

// UpdatePassword rotates the password of an account that already has one.
func (c *Client) UpdatePassword(ctx context.Context, email, password string) (time.Time, error) {
	var out struct {
		PasswordLastChanged time.Time `json:"passwordLastChanged"`
	}
	err := c.do(ctx, http.MethodPut, "/api/update-password", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out.PasswordLastChanged, err
}

// AppendHistory records a search for a user.
func (c *Client) AppendHistory(ctx context.Context, userID, query string) (*ca.SearchRecord, error) {
	var out ca.SearchRecord
	err := c.do(ctx, http.MethodPost, "/api/history", map[string]string{
		"userId":      userID,
		"searchQuery": query,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns a user's searches, newest first.
func (c *Client) History(ctx context.Context, userID string) ([]*ca.SearchRecord, error) {
	var out []*ca.SearchRecord
	err := c.do(ctx, http.MethodGet, "/api/history/"+userID, nil, &out)
	return out, err
}

// DeleteHistoryRecord removes a single search record.
func (c *Client) DeleteHistoryRecord(ctx context.Context, userID, recordID string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+userID+"/"+recordID, nil, nil)
}

// ClearHistory removes all of a user's searches and reports how many were
// deleted.
func (c *Client) ClearHistory(ctx context.Context, userID string) (int, error) {
	var out struct {
		DeletedCount int `json:"deletedCount"`
	}
	err := c.do(ctx, http.MethodDelete, "/api/history/"+userID, nil, &out)
	return out.DeletedCount, err
}
