// Package iofetch issues HTTP requests with a shared rate limit and
// exponential backoff. A Fetcher is safe for concurrent use, so workers
// sharing it share the rate limit.
package iofetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gnames/bioclim/pkg/config"
	"github.com/gnames/gnfmt"
	"golang.org/x/time/rate"
)

// Options control timeouts, rate limit and retries of a Fetcher.
type Options struct {
	// Timeout limits a single attempt including reading the body.
	Timeout time.Duration
	// MinDelay is the minimal interval between attempts. Zero disables
	// the limit.
	MinDelay time.Duration
	// BackoffFactor is the wait before the first retry; every next wait
	// doubles up to MaxInterval.
	BackoffFactor time.Duration
	MaxInterval   time.Duration
	MaxRetries    int
	// RetryStatus lists response statuses that are retried.
	RetryStatus []int
}

// OptionsFromConfig converts HTTP settings to Options.
func OptionsFromConfig(cfg config.HTTPConfig) Options {
	return Options{
		Timeout:       cfg.Timeout,
		MinDelay:      cfg.MinDelay,
		BackoffFactor: cfg.BackoffFactor,
		MaxInterval:   cfg.MaxInterval,
		MaxRetries:    cfg.MaxRetries,
		RetryStatus:   cfg.RetryStatus,
	}
}

// Request describes one HTTP call. At most one of Form and JSON is used
// as the body, Form takes precedence.
type Request struct {
	Method   string
	URL      string
	Query    url.Values
	Form     url.Values
	JSON     any
	Header   http.Header
	User     string
	Password string
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher performs rate-limited requests with retries.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.MinDelay > 0 {
		lim = rate.NewLimiter(rate.Every(opts.MinDelay), 1)
	}
	return &Fetcher{
		client:  &http.Client{},
		limiter: lim,
		opts:    opts,
	}
}

// Fetch sends the request, retrying network errors and statuses from
// RetryStatus. Other non-2xx statuses return a StatusError at once.
// Every attempt waits for the rate limiter first.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	var res *Response
	attempt := 0
	op := func() error {
		attempt++
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		r, err := f.do(ctx, req)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("Request failed, retrying",
			"url", req.URL,
			"attempt", attempt,
			"wait", wait.String(),
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, f.backOff(ctx), notify)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, NewRequestError(req.URL, err)
	}
	return res, nil
}

func (f *Fetcher) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.opts.BackoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = f.opts.MaxInterval
	b.MaxElapsedTime = 0
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Millisecond
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	retries := max(f.opts.MaxRetries, 0)
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

func (f *Fetcher) do(ctx context.Context, req Request) (*Response, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	hreq, err := f.newRequest(ctx, req)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := f.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = NewStatusError(req.URL, resp.StatusCode, body)
		if slices.Contains(f.opts.RetryStatus, resp.StatusCode) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   body,
	}, nil
}

func (f *Fetcher) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.Query.Encode()
	}

	var body io.Reader
	var contentType string
	switch {
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		enc := gnfmt.GNjson{}
		bs, err := enc.Encode(req.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(bs)
		contentType = "application/json"
	}

	hreq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	if req.User != "" {
		hreq.SetBasicAuth(req.User, req.Password)
	}
	return hreq, nil
}
