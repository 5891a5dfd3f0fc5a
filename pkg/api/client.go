// Package api is the HTTP binding to the status server: metadata and
// catalog, the pull endpoint, the edge probe request, and the push stream
// source. Every request carries the client's User-Agent and X-Client-ID.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"presence/pkg/protocol"
	"presence/pkg/sse"
)

// DefaultTimeout bounds each non-streaming request.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration // per request; DefaultTimeout when zero
	Version   string        // reported in User-Agent
	ClientID  string        // random UUID when empty
	ProbePath string        // protocol.DefaultProbePath when empty

	// Transport is used for both request and stream clients.
	// http.DefaultTransport when nil.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client talks to one status server.
type Client struct {
	base      *url.URL
	probePath string
	clientID  string
	userAgent string
	requests  *http.Client
	streams   *http.Client
	logger    *slog.Logger
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	probePath := opts.ProbePath
	if probePath == "" {
		probePath = protocol.DefaultProbePath
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:      base,
		probePath: probePath,
		clientID:  clientID,
		userAgent: "presence/" + version,
		requests:  &http.Client{Transport: transport, Timeout: timeout},
		streams:   &http.Client{Transport: transport},
		logger:    logger.With("component", "api"),
	}, nil
}

// ClientID returns the identifier sent in X-Client-ID.
func (c *Client) ClientID() string { return c.clientID }

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) headers() http.Header {
	h := make(http.Header)
	h.Set(protocol.HeaderUserAgent, c.userAgent)
	h.Set(protocol.HeaderClientID, c.clientID)
	return h
}

// get performs one GET and returns the status, headers and body. Transport
// failures are wrapped in a *protocol.TransportError.
func (c *Client) get(ctx context.Context, op, path string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), http.NoBody)
	if err != nil {
		return 0, nil, nil, &protocol.TransportError{Op: op, Err: err}
	}
	req.Header = c.headers()
	req.Header.Set("Accept", "application/json")

	resp, err := c.requests.Do(req)
	if err != nil {
		return 0, nil, nil, &protocol.TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, nil, &protocol.TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	c.logger.Debug("request", "op", op, "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, resp.Header, body, nil
}

func statusError(op string, code int) error {
	return &protocol.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d %s", code, http.StatusText(code))}
}

// Metadata fetches site metadata and the status catalog.
func (c *Client) Metadata(ctx context.Context) (protocol.Metadata, error) {
	code, _, body, err := c.get(ctx, "fetch metadata", protocol.MetaPath)
	if err != nil {
		return protocol.Metadata{}, err
	}
	if code/100 != 2 {
		return protocol.Metadata{}, statusError("fetch metadata", code)
	}
	meta, err := protocol.DecodeMetadata(body)
	if err != nil {
		return protocol.Metadata{}, fmt.Errorf("fetch metadata: %w", err)
	}

	catalog, err := c.StatusList(ctx)
	if err != nil {
		return protocol.Metadata{}, err
	}
	meta.Catalog = catalog
	return meta, nil
}

// StatusList fetches the status catalog.
func (c *Client) StatusList(ctx context.Context) (protocol.Catalog, error) {
	code, _, body, err := c.get(ctx, "fetch status list", protocol.StatusListPath)
	if err != nil {
		return nil, err
	}
	if code/100 != 2 {
		return nil, statusError("fetch status list", code)
	}
	catalog, err := protocol.DecodeStatusList(body)
	if err != nil {
		return nil, fmt.Errorf("fetch status list: %w", err)
	}
	return catalog, nil
}

// Query pulls the current snapshot. A server-reported failure (success=false,
// whatever the HTTP status) is returned as a snapshot, not an error, so it
// can be shown with its details.
func (c *Client) Query(ctx context.Context) (protocol.StatusSnapshot, error) {
	code, _, body, err := c.get(ctx, "query status", protocol.QueryPath)
	if err != nil {
		return protocol.StatusSnapshot{}, err
	}

	snap, derr := protocol.DecodeSnapshot(body)
	if code/100 != 2 {
		if derr == nil && !snap.Success {
			return snap, nil
		}
		return protocol.StatusSnapshot{}, statusError("query status", code)
	}
	if derr != nil {
		return protocol.StatusSnapshot{}, fmt.Errorf("query status: %w", derr)
	}
	return snap, nil
}

// Edge requests the probe path and returns the response headers. Any non-2xx
// status is an error: only a successful answer says anything about the edge.
func (c *Client) Edge(ctx context.Context) (http.Header, error) {
	code, header, _, err := c.get(ctx, "probe edge", c.probePath)
	if err != nil {
		return nil, err
	}
	if code/100 != 2 {
		return nil, statusError("probe edge", code)
	}
	return header, nil
}

// EventSource returns the push stream source for this server.
func (c *Client) EventSource() *sse.Source {
	return &sse.Source{
		Client: c.streams,
		URL:    c.endpoint(protocol.EventsPath),
		Header: c.headers(),
		Logger: c.logger,
	}
}
