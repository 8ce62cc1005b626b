package eventstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// Dialer opens the raw event stream.
type Dialer interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (io.ReadCloser, error)

func (f DialerFunc) Open(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// HTTPDialer opens the stream with a GET request. Credentials travel as
// cookies through the client's jar; no per-message auth is sent.
type HTTPDialer struct {
	client *http.Client
	url    string
	header http.Header
}

// HTTPDialerOption configures an HTTPDialer.
type HTTPDialerOption func(*HTTPDialer)

// WithHTTPClient sets the base client. Its Timeout is ignored because the
// stream is long-lived. Its transport is kept; its jar is kept only when no
// cookies are given.
func WithHTTPClient(c *http.Client) HTTPDialerOption {
	return func(d *HTTPDialer) {
		if c != nil {
			clone := *c
			d.client = &clone
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPDialerOption {
	return func(d *HTTPDialer) {
		d.header.Add(key, value)
	}
}

// NewHTTPDialer creates a dialer for rawURL carrying cookies.
func NewHTTPDialer(rawURL string, cookies []*http.Cookie, opts ...HTTPDialerOption) (*HTTPDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("eventstream: parse url: %w", err)
	}

	d := &HTTPDialer{
		client: &http.Client{},
		url:    u.String(),
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.client.Timeout = 0

	if d.client.Jar == nil || len(cookies) > 0 {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		jar.SetCookies(u, cookies)
		d.client.Jar = jar
	}
	return d, nil
}

// Open sends the request and returns the response body.
func (d *HTTPDialer) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range d.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, nil
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
