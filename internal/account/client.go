// Package account implements the HTTP client for the sshweaver cloud
// account API, which stores connection records keyed by opaque identifiers.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gitlab.bluewillows.net/root/sshweaver/internal/model"
	"gitlab.bluewillows.net/root/sshweaver/pkg/httputil"
)

// apiOption mirrors model.Option on the wire.
type apiOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// apiConnection is the wire representation of a connection record.
type apiConnection struct {
	ID           string      `json:"id,omitempty"`
	Label        string      `json:"label"`
	Hostname     string      `json:"hostname"`
	Port         int         `json:"port"`
	Username     string      `json:"username,omitempty"`
	IdentityFile string      `json:"identity_file,omitempty"`
	ProxyCommand string      `json:"proxy_command,omitempty"`
	ExtraOptions []apiOption `json:"extra_options,omitempty"`
	GroupPath    []string    `json:"group_path,omitempty"`
}

// listResponse is the response of the connection listing endpoint.
type listResponse struct {
	Connections []apiConnection `json:"connections"`
}

// tokenRequest is the login request body.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the login response body.
type tokenResponse struct {
	Token string `json:"token"`
}

// Client talks to the cloud account API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithToken sets a previously obtained API token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new account API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httputil.DefaultClient(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Login exchanges a username and password for an API token. The token is
// retained on the client and also returned so callers can cache it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("encoding login request: %w", err)
	}

	var resp tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/token", body, &resp); err != nil {
		return "", wrapError("login", "", err)
	}
	if resp.Token == "" {
		return "", wrapError("login", "", fmt.Errorf("empty token in response: %w", ErrUnauthorized))
	}

	c.token = resp.Token
	c.logger.Debug("account login succeeded", slog.String("username", username))
	return resp.Token, nil
}

// FetchConnections retrieves all connection records from the account.
func (c *Client) FetchConnections(ctx context.Context) ([]*model.Connection, error) {
	var resp listResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/connections", nil, &resp); err != nil {
		return nil, wrapError("fetch", "", err)
	}

	conns := make([]*model.Connection, 0, len(resp.Connections))
	for _, ac := range resp.Connections {
		conns = append(conns, fromAPI(ac))
	}

	c.logger.Debug("fetched remote connections", slog.Int("count", len(conns)))
	return conns, nil
}

// CreateConnection creates a record on the account and returns its new id.
func (c *Client) CreateConnection(ctx context.Context, conn *model.Connection) (string, error) {
	body, err := json.Marshal(toAPI(conn))
	if err != nil {
		return "", fmt.Errorf("encoding connection: %w", err)
	}

	var resp apiConnection
	if err := c.doJSON(ctx, http.MethodPost, "/v1/connections", body, &resp); err != nil {
		return "", wrapError("create", conn.Key(), err)
	}
	return resp.ID, nil
}

// UpdateConnection overwrites the record identified by conn.RemoteID.
func (c *Client) UpdateConnection(ctx context.Context, conn *model.Connection) error {
	if conn.RemoteID == "" {
		return wrapError("update", conn.Key(), fmt.Errorf("connection has no remote id: %w", ErrNotFound))
	}

	body, err := json.Marshal(toAPI(conn))
	if err != nil {
		return fmt.Errorf("encoding connection: %w", err)
	}

	path := "/v1/connections/" + conn.RemoteID
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil); err != nil {
		return wrapError("update", conn.Key(), err)
	}
	return nil
}

// doJSON performs one API request and decodes the JSON response into out.
// API-level failures map onto the package sentinel errors.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, strings.TrimSpace(string(respBody)))
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(respBody)))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(respBody)))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(respBody)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response JSON: %w", err)
		}
	}
	return nil
}

func fromAPI(ac apiConnection) *model.Connection {
	conn := &model.Connection{
		Label:        ac.Label,
		Hostname:     ac.Hostname,
		Port:         ac.Port,
		User:         ac.Username,
		IdentityFile: ac.IdentityFile,
		ProxyCommand: ac.ProxyCommand,
		GroupPath:    ac.GroupPath,
		RemoteID:     ac.ID,
	}
	if conn.Port == 0 {
		conn.Port = model.DefaultPort
	}
	for _, opt := range ac.ExtraOptions {
		conn.Extra = append(conn.Extra, model.Option{Key: opt.Key, Value: opt.Value})
	}
	return conn
}

func toAPI(conn *model.Connection) apiConnection {
	ac := apiConnection{
		ID:           conn.RemoteID,
		Label:        conn.Label,
		Hostname:     conn.Hostname,
		Port:         conn.Port,
		Username:     conn.User,
		IdentityFile: conn.IdentityFile,
		ProxyCommand: conn.ProxyCommand,
		GroupPath:    conn.GroupPath,
	}
	for _, opt := range conn.Extra {
		ac.ExtraOptions = append(ac.ExtraOptions, apiOption{Key: opt.Key, Value: opt.Value})
	}
	return ac
}
