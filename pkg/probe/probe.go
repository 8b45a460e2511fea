// Copyright (c) 2023 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package probe checks the health endpoint of a running server.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type options struct {
	logger   *zap.Logger
	timeout  time.Duration
	retries  int
	waitMin  time.Duration
	waitMax  time.Duration
	insecure bool
	rootCAs  *x509.CertPool
	breaker  breakerOptions
}

// Option configures a [Client].
type Option func(*options)

// Logger sets the logger used for request attempts and breaker state changes.
func Logger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Timeout bounds a single request attempt.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Retries sets how many times a failed attempt is retried.
func Retries(n int) Option {
	return func(o *options) {
		o.retries = n
	}
}

// RetryWait sets the bounds of the exponential backoff between attempts.
func RetryWait(min, max time.Duration) Option {
	return func(o *options) {
		o.waitMin = min
		o.waitMax = max
	}
}

// InsecureSkipVerify accepts any server certificate, e.g. the generated
// self-signed one.
func InsecureSkipVerify(skip bool) Option {
	return func(o *options) {
		o.insecure = skip
	}
}

// RootCAs sets the pool used to verify server certificates.
func RootCAs(pool *x509.CertPool) Option {
	return func(o *options) {
		o.rootCAs = pool
	}
}

// TripAfter opens the circuit after n consecutive failures and keeps it
// open for d.
func TripAfter(n uint32, d time.Duration) Option {
	return func(o *options) {
		o.breaker.tripCount = n
		o.breaker.timeout = d
	}
}

// Client sends health probes.
type Client struct {
	log     *zap.Logger
	http    *http.Client
	breaker *circuitRoundTripper
}

// New returns a [Client].
func New(opts ...Option) *Client {
	o := &options{
		logger:  zap.NewNop(),
		timeout: 5 * time.Second,
		retries: 2,
		waitMin: 100 * time.Millisecond,
		waitMax: 2 * time.Second,
		breaker: breakerOptions{
			name:        "probe",
			maxRequests: 1,
			timeout:     30 * time.Second,
			tripCount:   5,
			statusCodes: []int{
				http.StatusInternalServerError,
				http.StatusBadGateway,
				http.StatusServiceUnavailable,
				http.StatusGatewayTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		RootCAs:            o.rootCAs,
		InsecureSkipVerify: o.insecure,
	}
	breaker := newCircuitRoundTripper(transport, o.logger, o.breaker)

	log := o.logger
	rc := &retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   o.timeout,
			Transport: breaker,
		},
		Logger:       nil,
		RetryWaitMin: o.waitMin,
		RetryWaitMax: o.waitMax,
		RetryMax:     o.retries,
		RequestLogHook: func(l retryablehttp.Logger, req *http.Request, i int) {
			log.Debug("sending http request", zap.String("url", req.URL.String()), zap.Int("request_attempt_count", i))
		},
		ResponseLogHook: func(l retryablehttp.Logger, resp *http.Response) {
			log.Debug("received http response", zap.String("url", resp.Request.URL.String()), zap.Int("http_status_code", resp.StatusCode))
		},
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	return &Client{
		log:     log,
		http:    rc.StandardClient(),
		breaker: breaker,
	}
}

// Result describes a completed probe.
type Result struct {
	URL        string
	StatusCode int
	Status     string
	Latency    time.Duration
}

// Healthy reports whether the server answered with a 2xx status code.
func (r Result) Healthy() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError occurs when the server answered the probe with a non-2xx status.
type StatusError struct {
	Result Result
}

// Error implements the error interface.
func (e StatusError) Error() string {
	return fmt.Sprintf("unhealthy response from %s: %d %s", e.Result.URL, e.Result.StatusCode, e.Result.Status)
}

// Check sends a GET request to url. A response with a non-2xx status
// code is returned as a [StatusError] carrying the [Result].
func (c *Client) Check(ctx context.Context, url string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	res := Result{
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     readStatus(resp.Body),
		Latency:    time.Since(start),
	}
	c.log.Info(
		"probed server",
		zap.String("url", url),
		zap.Int("http_status_code", res.StatusCode),
		zap.String("status", res.Status),
		zap.Duration("latency", res.Latency),
	)
	if !res.Healthy() {
		return res, StatusError{Result: res}
	}
	return res, nil
}

// Watch probes url every interval until ctx is cancelled, handing each
// outcome to f.
func (c *Client) Watch(ctx context.Context, url string, interval time.Duration, f func(Result, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		f(c.Check(ctx, url))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CircuitOpen reports whether probes are currently being short-circuited.
func (c *Client) CircuitOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}

// readStatus extracts the "status" field of a health response, falling
// back to the raw body.
func readStatus(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}

	var body struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(b, &body) == nil && body.Status != "" {
		return body.Status
	}
	return string(b)
}
