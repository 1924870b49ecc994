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

	"github.com/adamwoolhether/xnatzip/client/download"
	"github.com/adamwoolhether/xnatzip/client/throttle"
)

// Client wraps an *http.Client configured for one repository server.
type Client struct {
	c      *http.Client
	logger *slog.Logger
}

// Build creates a Client. Without options it uses a fresh http.Client
// over http.DefaultTransport and slog.Default().
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
	}

	if opts.client != nil {
		hc := *opts.client
		client.c = &hc
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" || len(opts.headers) > 0 {
		transport = headerTransport{userAgent: opts.userAgent, headers: opts.headers, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Logger returns the logger the Client reports through.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// GetJSON issues a GET for u and decodes a 200 response into dest.
func (c *Client) GetJSON(ctx context.Context, u *url.URL, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("instantiating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	decodeFn := func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decoding body: %w", err)
		}

		return nil
	}

	return c.exec(req, http.StatusOK, decodeFn)
}

// Download issues a GET for u and streams a 200 response to destPath.
// Data lands in a temp file in the same directory which is renamed to
// destPath on success and removed on failure.
func (c *Client) Download(ctx context.Context, u *url.URL, destPath string, opts ...download.Option) error {
	if destPath == "" {
		return errors.New("destPath must not be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("instantiating request: %w", err)
	}

	dlFunc := func(resp *http.Response) error {
		if err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, c.logger, opts...); err != nil {
			return fmt.Errorf("download: %w", err)
		}

		return nil
	}

	return c.exec(req, http.StatusOK, dlFunc)
}

// exec runs the request and, once the status code matches expCode, fn.
func (c *Client) exec(req *http.Request, expCode int, fn execFn) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}

	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, resp.Body); err != nil {
				c.logger.Error("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != expCode {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}

		return newStatusError(resp.StatusCode, b)
	}

	if err := fn(resp); err != nil {
		discardBody = false
		return fmt.Errorf("exec fn: %w", err)
	}

	return nil
}
