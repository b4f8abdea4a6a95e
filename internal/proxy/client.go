// Package proxy provides the SOCKS5 client used for all outbound traffic.
// HTTP requests and raw TCP probes alike go through the anonymizing proxy;
// nothing in this process dials a target directly.
package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/jonesrussell/torcrawl/internal/config"
	"github.com/jonesrussell/torcrawl/internal/logger"
)

// retryDelay is the pause between proxy request attempts.
const retryDelay = time.Second

// Response is the unified result of a GET or HEAD through the proxy.
type Response struct {
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Truncated    bool
	ContentType  string
	FinalURL     string
	ResponseTime time.Duration
}

// RequestOptions tunes a single request. Zero values fall back to the
// client configuration.
type RequestOptions struct {
	Timeout          time.Duration
	MaxContentLength int64
}

// Client issues HTTP requests and raw TCP connections through SOCKS5.
type Client struct {
	cfg    config.ProxyConfig
	dialer xproxy.ContextDialer
	log    logger.Interface
}

// NewClient creates a SOCKS5 proxy client.
func NewClient(cfg config.ProxyConfig, log logger.Interface) (*Client, error) {
	dialer, err := xproxy.SOCKS5("tcp", cfg.Addr(), nil, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}

	contextDialer, ok := dialer.(xproxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support context dialing")
	}

	return &Client{cfg: cfg, dialer: contextDialer, log: log}, nil
}

// Get issues a GET through the proxy with retries and a content-length cap.
func (c *Client) Get(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, opts)
}

// Head issues a HEAD through the proxy with retries.
func (c *Client) Head(ctx context.Context, url string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodHead, url, opts)
}

// do runs one request with up to MaxRetries additional attempts. HTTP error
// statuses are results, not errors; only transport failures retry.
func (c *Client) do(ctx context.Context, method, url string, opts RequestOptions) (*Response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	maxLen := opts.MaxContentLength
	if maxLen <= 0 {
		maxLen = c.cfg.MaxContentLength
	}

	var lastErr error
	attempts := c.cfg.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			c.log.Debug("retrying proxy request", "method", method, "url", url, "attempt", attempt)
		}

		resp, err := c.doOnce(ctx, method, url, timeout, maxLen)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// A dead domain does not get better within one request cycle.
		if IsConnectionFailure(err) {
			break
		}
	}

	return nil, lastErr
}

// doOnce runs a single request attempt.
func (c *Client) doOnce(ctx context.Context, method, url string, timeout time.Duration, maxLen int64) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()

	httpClient := c.httpClient(timeout)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", method, err)
	}
	defer resp.Body.Close()

	// Read one byte past the cap to detect truncation.
	limited := io.LimitReader(resp.Body, maxLen+1)
	body, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, fmt.Errorf("read response body: %w", readErr)
	}

	truncated := int64(len(body)) > maxLen
	if truncated {
		body = body[:maxLen]
	}

	return &Response{
		StatusCode:   resp.StatusCode,
		Headers:      resp.Header,
		Body:         body,
		Truncated:    truncated,
		ContentType:  resp.Header.Get("Content-Type"),
		FinalURL:     resp.Request.URL.String(),
		ResponseTime: time.Since(start),
	}, nil
}

// httpClient builds a transport bound to the SOCKS5 dialer. Connections are
// not pooled across requests: each onion circuit is cheap to tear down and
// pooling them keeps stale circuits alive.
func (c *Client) httpClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext:       c.dialer.DialContext,
		DisableKeepAlives: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// TCPConnect opens a raw TCP connection to host:port through the proxy.
// The caller owns the returned connection.
func (c *Client) TCPConnect(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := c.dialer.DialContext(connCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("proxy tcp connect %s: %w", addr, err)
	}

	return conn, nil
}
