// Package jira is a thin client for the JIRA REST API v2 using HTTP basic
// authentication.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andywolf/groupcomments/internal/logging"
	"github.com/andywolf/groupcomments/internal/version"
)

// APIRoot is the path prefix of every REST call.
const APIRoot = "/rest/api/2"

// DefaultTimeout bounds each request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Search defaults, matching the server-side defaults the tool relies on.
const (
	DefaultMaxResults = 1000
	DefaultFields     = "*navigable"
)

// Config identifies the JIRA instance and the account used against it.
type Config struct {
	BaseURL  string
	Username string
	Password string
}

// Client issues authenticated requests against a single JIRA instance.
// Its configuration does not change after NewClient returns.
type Client struct {
	apiRoot    string
	username   string
	password   string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request deadline on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets where request failures are reported.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the instance at cfg.BaseURL, which must be
// an absolute http or https URL. Any path on it (a context root such as
// /jira) is kept in front of APIRoot.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", cfg.BaseURL)
	}

	c := &Client{
		apiRoot:    strings.TrimRight(cfg.BaseURL, "/") + APIRoot,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logging.Discard(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get performs an authenticated GET of APIRoot+path with the given query
// parameters and decodes a 200 response into out. Any other status is
// reported to the logger and returned as a *StatusError.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post performs an authenticated POST of data encoded as JSON. Failures
// are reported like Get's, with the outgoing body included.
func (c *Client) Post(ctx context.Context, path string, data interface{}, out interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// SearchOptions selects one page of a JQL search.
type SearchOptions struct {
	JQL        string
	StartAt    int
	MaxResults int
	Fields     []string
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.StartAt < 0 {
		o.StartAt = 0
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if len(o.Fields) == 0 {
		o.Fields = []string{DefaultFields}
	}
	return o
}

// Search runs a JQL query through GET /search.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (*SearchPage, error) {
	opts = opts.withDefaults()

	params := url.Values{}
	params.Set("jql", opts.JQL)
	params.Set("fields", strings.Join(opts.Fields, ","))
	params.Set("startAt", strconv.Itoa(opts.StartAt))
	params.Set("maxResults", strconv.Itoa(opts.MaxResults))

	var page SearchPage
	if err := c.Get(ctx, "/search", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchPost runs the same query as Search through POST /search, which
// keeps long JQL out of the URL.
func (c *Client) SearchPost(ctx context.Context, opts SearchOptions) (*SearchPage, error) {
	opts = opts.withDefaults()

	body := map[string]interface{}{
		"jql":        opts.JQL,
		"fields":     opts.Fields,
		"startAt":    opts.StartAt,
		"maxResults": opts.MaxResults,
	}

	var page SearchPage
	if err := c.Post(ctx, "/search", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchIssue retrieves a single issue by key. With no fields given the
// server's default field set is returned.
func (c *Client) FetchIssue(ctx context.Context, key string, fields ...string) (*Issue, error) {
	var params url.Values
	if len(fields) > 0 {
		params = url.Values{"fields": {strings.Join(fields, ",")}}
	}

	var issue Issue
	if err := c.Get(ctx, "/issue/"+url.PathEscape(key), params, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Myself returns the authenticated user, which makes it a cheap credential
// check.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var me User
	if err := c.Get(ctx, "/myself", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body []byte,
	out interface{},
) error {
	u := c.apiRoot + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("jira request", logging.Fields{"method": method, "url": u})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.reportFailure(resp, method, u, body, respBody)
		return newStatusError(resp.StatusCode, method, u, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response from %s %s: %w", method, path, err)
	}
	return nil
}

// reportFailure writes the diagnostic for a non-200 response: status, URL
// and body, the request body for writes, and the headers on 403 since JIRA
// explains CAPTCHA and login denials there.
func (c *Client) reportFailure(resp *http.Response, method, u string, reqBody, respBody []byte) {
	fields := logging.Fields{
		"status": resp.StatusCode,
		"method": method,
		"url":    u,
		"body":   string(respBody),
	}
	if reqBody != nil {
		fields["request_body"] = string(reqBody)
	}
	if resp.StatusCode == http.StatusForbidden {
		fields["headers"] = resp.Header
	}
	c.logger.Error("jira request failed", fields)
}
