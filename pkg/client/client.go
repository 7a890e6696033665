// Package client implements backend.Backend over the Galley HTTP API,
// with retry, auth, and an online flag the host can poll. One Client is
// bound to one project.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/pkg/backend"
	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/protocol"
	"github.com/galleylabs/galley/pkg/retry"
)

// Config holds client settings. BaseURL and Project are required.
type Config struct {
	BaseURL     string
	Project     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
	Logger      *zap.Logger
}

// Client talks to one project on a Galley server.
type Client struct {
	baseURL      string
	project      string
	httpClient   *http.Client
	streamClient *http.Client // no timeout; SSE connections stay open
	retryConfig  retry.Config
	log          *zap.Logger

	mu        sync.RWMutex
	online    bool
	authToken string
}

// New returns a client for cfg. It performs no I/O; the first request
// decides the online flag.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		project:      cfg.Project,
		httpClient:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		retryConfig:  cfg.RetryConfig,
		log:          log,
		online:       true,
		authToken:    cfg.AuthToken,
	}
}

// Project returns the project this client is bound to.
func (c *Client) Project() string {
	return c.project
}

// SetAuthToken replaces the bearer token used on every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// IsOnline reports whether the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			c.log.Info("server is back online")
		} else {
			c.log.Warn("server is offline")
		}
	}
	c.online = online
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// Ping checks whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	c.setOnline(true)
	return nil
}

// Login authenticates with username/password and installs the returned
// token on the client.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.TokenResponse, error) {
	body, err := json.Marshal(protocol.TokenRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	var tok protocol.TokenResponse
	err = c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/token", body, &tok)
	if err != nil {
		return nil, err
	}
	c.SetAuthToken(tok.Token)
	return &tok, nil
}

// escapePath escapes each segment of a project path for use in a URL.
func escapePath(p models.Path) string {
	if p.IsRoot() {
		return ""
	}
	segs := strings.Split(string(p), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func (c *Client) treeURL(p models.Path) string {
	return c.baseURL + "/api/v1/projects/" + url.PathEscape(c.project) + "/tree/" + escapePath(p)
}

func (c *Client) contentURL(p models.Path) string {
	return c.baseURL + "/api/v1/projects/" + url.PathEscape(c.project) + "/content/" + escapePath(p)
}

func (c *Client) opURL(op string) string {
	return c.baseURL + "/api/v1/projects/" + url.PathEscape(c.project) + "/" + op
}

// ListDir fetches one directory level.
func (c *Client) ListDir(ctx context.Context, dir models.Path) ([]models.Entry, error) {
	var out protocol.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.treeURL(dir), nil, &out); err != nil {
		return nil, err
	}
	if out.Entries == nil {
		out.Entries = []models.Entry{}
	}
	return out.Entries, nil
}

// CreateEntry creates an empty file or a directory.
func (c *Client) CreateEntry(ctx context.Context, path models.Path, kind models.EntryKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entry kind %q", kind)
	}
	return c.doJSON(ctx, http.MethodPut, c.treeURL(path)+"?type="+string(kind), nil, nil)
}

// RenameEntry renames or re-parents an entry to a new path.
func (c *Client) RenameEntry(ctx context.Context, from, to models.Path) error {
	body, err := json.Marshal(protocol.RenameRequest{From: from.String(), To: to.String()})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, c.opURL("rename"), body, nil)
}

// MoveEntry moves an entry into toDir keeping its name.
func (c *Client) MoveEntry(ctx context.Context, from models.Path, toDir models.Path) error {
	body, err := json.Marshal(protocol.MoveRequest{From: from.String(), ToDir: toDir.String()})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, c.opURL("move"), body, nil)
}

// DuplicateEntry copies a file or a whole directory tree.
func (c *Client) DuplicateEntry(ctx context.Context, from, to models.Path) error {
	body, err := json.Marshal(protocol.DuplicateRequest{From: from.String(), To: to.String()})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, c.opURL("duplicate"), body, nil)
}

// DeleteEntry removes an entry; recursive is required for a non-empty
// directory.
func (c *Client) DeleteEntry(ctx context.Context, path models.Path, recursive bool) error {
	u := c.treeURL(path)
	if recursive {
		u += "?recursive=true"
	}
	return c.doJSON(ctx, http.MethodDelete, u, nil, nil)
}

// ReadFile downloads a file's content. The caller closes the reader.
func (c *Client) ReadFile(ctx context.Context, path models.Path) (io.ReadCloser, int64, error) {
	type result struct {
		body io.ReadCloser
		size int64
	}
	res, err := retry.DoWithResult(ctx, c.retryConfig, func() (result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.contentURL(path), nil)
		if err != nil {
			return result{}, err
		}
		c.applyAuth(req)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return result{}, retry.Transient(err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			defer resp.Body.Close()
			return result{}, c.statusError(resp)
		}
		c.setOnline(true)
		return result{body: resp.Body, size: resp.ContentLength}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.body, res.size, nil
}

// WriteFile replaces the content of an existing file.
func (c *Client) WriteFile(ctx context.Context, path models.Path, content []byte) (*protocol.WriteResponse, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() (*protocol.WriteResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentURL(path), bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.ContentLength = int64(len(content))
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return nil, retry.Transient(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, c.statusError(resp)
		}
		c.setOnline(true)
		var out protocol.WriteResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil
	})
}

// Projects lists the projects visible to the authenticated user.
func (c *Client) Projects(ctx context.Context) ([]protocol.ProjectInfo, error) {
	var out []protocol.ProjectInfo
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/api/v1/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProject makes a new empty project.
func (c *Client) CreateProject(ctx context.Context, id, name string) (*protocol.ProjectInfo, error) {
	body, err := json.Marshal(protocol.CreateProjectRequest{ID: id, Name: name})
	if err != nil {
		return nil, err
	}
	var out protocol.ProjectInfo
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/v1/projects", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON runs one API call with retries, mapping HTTP statuses onto the
// backend error taxonomy. out may be nil for calls with no body worth
// decoding.
func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return retry.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return c.statusError(resp)
		}
		c.setOnline(true)
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// statusError turns a non-2xx response into the error the engine
// understands. 404 and 409 map onto the backend sentinels and are
// final; 5xx and 429 are transient; other 4xx are final with the
// server's message when one was sent.
func (c *Client) statusError(resp *http.Response) error {
	msg := ""
	var apiErr protocol.ErrorResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr); decodeErr == nil {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.setOnline(true)
		return fmt.Errorf("%w: %s", backend.ErrNotFound, msg)
	case resp.StatusCode == http.StatusConflict:
		c.setOnline(true)
		return fmt.Errorf("%w: %s", backend.ErrConflict, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		// Throttled, not down; retry after backoff.
		c.setOnline(true)
		return retry.Transient(fmt.Errorf("server returned %d: %s", resp.StatusCode, msg))
	case resp.StatusCode >= 500:
		c.setOnline(false)
		return retry.Transient(fmt.Errorf("server returned %d: %s", resp.StatusCode, msg))
	default:
		c.setOnline(true)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
}
