// Package remote implements contract.RemoteClient over the backend HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roamly/tripcache/internal/contract"
	"github.com/roamly/tripcache/schema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNoBaseURL is returned when no remote base URL is configured.
var ErrNoBaseURL = errors.New("remote base url is not configured")

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks JSON to the backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ contract.RemoteClient = (*Client)(nil)

// New returns a client whose requests are traced and bounded by timeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = contract.DefaultRemoteTimeout
	}
	return NewWithClient(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewWithClient returns a client using a caller-provided http.Client.
func NewWithClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote base url must be http or https, got %q", baseURL)
	}
	return &Client{baseURL: u, httpClient: httpClient}, nil
}

// GetRoutes implements contract.RemoteClient.
func (c *Client) GetRoutes(ctx context.Context, since *time.Time) ([]schema.Route, error) {
	var routes []schema.Route
	if err := c.do(ctx, http.MethodGet, "/routes", sinceQuery(since), nil, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// UpdateRoute implements contract.RemoteClient.
func (c *Client) UpdateRoute(ctx context.Context, id string, route schema.Route) error {
	return c.do(ctx, http.MethodPut, "/routes/"+url.PathEscape(id), nil, route, nil)
}

// GetTimelines implements contract.RemoteClient.
func (c *Client) GetTimelines(ctx context.Context, since *time.Time) (map[string]schema.Timeline, error) {
	var timelines map[string]schema.Timeline
	if err := c.do(ctx, http.MethodGet, "/timelines", sinceQuery(since), nil, &timelines); err != nil {
		return nil, err
	}
	return timelines, nil
}

// UpdateTimeline implements contract.RemoteClient.
func (c *Client) UpdateTimeline(ctx context.Context, id string, timeline schema.Timeline) error {
	return c.do(ctx, http.MethodPut, "/timelines/"+url.PathEscape(id), nil, timeline, nil)
}

type favoritesBody struct {
	IDs []string `json:"ids"`
}

// GetFavorites implements contract.RemoteClient.
func (c *Client) GetFavorites(ctx context.Context) ([]string, error) {
	var body favoritesBody
	if err := c.do(ctx, http.MethodGet, "/favorites", nil, nil, &body); err != nil {
		return nil, err
	}
	return body.IDs, nil
}

// UpdateFavorites implements contract.RemoteClient.
func (c *Client) UpdateFavorites(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return c.do(ctx, http.MethodPut, "/favorites", nil, favoritesBody{IDs: ids}, nil)
}

func sinceQuery(since *time.Time) url.Values {
	if since == nil {
		return nil
	}
	return url.Values{"since": []string{since.UTC().Format(time.RFC3339Nano)}}
}

// do sends one request to the escaped path. in is encoded as the JSON body when non-nil; out receives
// the decoded response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	u.Path = unescaped
	u.RawQuery = query.Encode()

	body := io.Reader(http.NoBody)
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
