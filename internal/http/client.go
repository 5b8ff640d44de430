// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"runtime"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wneessen/weather-monitor/internal/logger"
)

const (
	DefaultConnectTimeout = time.Second * 5
	DefaultReadTimeout    = time.Second * 20
	DefaultMaxRetries     = 3
	DefaultBackoffFactor  = time.Millisecond * 1500
	DefaultMaxBackoff     = time.Second * 10
	DefaultBreakerTimeout = time.Minute

	// maxBodySize limits the amount of data read from a single response.
	maxBodySize = 10 << 20
)

var (
	// version is the version of the application (will be set at build time)
	version = "dev"
	// UserAgent is the User-Agent that the HTTP client sends with API requests
	UserAgent = fmt.Sprintf("Mozilla/5.0 (%s; %s) weather-monitor/%s (+https://github.com/wneessen/weather-monitor/)",
		runtime.GOOS,
		runtime.GOARCH,
		version,
	)

	ErrNonPointerTarget = errors.New("target must be a non-nil pointer")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// Config controls timeouts, retries and the circuit breaker of the Client.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	BackoffFactor  time.Duration
	MaxBackoff     time.Duration

	// BreakerFailures is the number of consecutive failed requests per host after which the
	// breaker opens. Zero disables the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// APIKey is sent in the APIKeyHeader header if set.
	APIKey       string
	APIKeyHeader string
}

// DefaultConfig returns the Config used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		MaxRetries:     DefaultMaxRetries,
		BackoffFactor:  DefaultBackoffFactor,
		MaxBackoff:     DefaultMaxBackoff,
		BreakerTimeout: DefaultBreakerTimeout,
	}
}

// Client is a type wrapper for the Go stdlib http.Client that adds retries with backoff and a
// per-host circuit breaker. It is safe for concurrent use.
type Client struct {
	*http.Client
	logger *logger.Logger
	config Config

	// sleep waits for the given backoff delay, returning early if ctx is done.
	sleep func(ctx context.Context, delay time.Duration) error

	breakerLock sync.Mutex
	breakers    map[string]*gobreaker.CircuitBreaker
}

// New returns a new HTTP client
func New(log *logger.Logger, config Config) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.APIKeyHeader == "" {
		config.APIKeyHeader = "X-API-Key"
	}

	dialer := &net.Dialer{Timeout: config.ConnectTimeout}
	httpTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   config.ConnectTimeout,
		ResponseHeaderTimeout: config.ReadTimeout,
		MaxIdleConnsPerHost:   4,
	}
	httpClient := &http.Client{
		Timeout:   config.ConnectTimeout + config.ReadTimeout,
		Transport: httpTransport,
	}
	return &Client{
		Client:   httpClient,
		logger:   log,
		config:   config,
		sleep:    sleepContext,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get performs a HTTP GET request for the given URL and json-unmarshals the response
// into target. Transient failures are retried according to the client configuration.
// The returned status code is the one of the last attempt (0 if no response was received).
func (h *Client) Get(ctx context.Context, endpoint string, target any, query url.Values, headers map[string]string) (int, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, ErrNonPointerTarget
	}

	// Prepare URL and query parameters
	reqURL, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	var code int
	fetch := func() (any, error) {
		var body []byte
		code, body, err = h.getWithRetry(ctx, reqURL.String(), headers)
		return body, err
	}

	var result any
	breaker := h.breaker(reqURL.Host)
	if breaker == nil {
		result, err = fetch()
	} else {
		result, err = breaker.Execute(fetch)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w for %s: %w", ErrCircuitOpen, reqURL.Host, err)
		}
	}
	if err != nil {
		return code, err
	}

	// Unmarshal the JSON API response into target
	body, _ := result.([]byte)
	if err = json.Unmarshal(body, target); err != nil {
		return code, fmt.Errorf("failed to decode JSON: %w", err)
	}

	return code, nil
}

// getWithRetry performs the request until it succeeds, fails permanently or the retries are
// exhausted. It returns the last status code and error.
func (h *Client) getWithRetry(ctx context.Context, reqURL string, headers map[string]string) (int, []byte, error) {
	var (
		code int
		body []byte
		err  error
	)
	for attempt := 0; ; attempt++ {
		code, body, err = h.do(ctx, reqURL, headers)
		if err == nil {
			return code, body, nil
		}
		if !retryable(err) || attempt >= h.config.MaxRetries || ctx.Err() != nil {
			return code, nil, err
		}

		delay := h.backoff(attempt + 1)
		h.logger.Debug("retrying HTTP request", slog.String("url", reqURL), slog.Int("retry", attempt+1),
			slog.Duration("delay", delay), logger.Err(err))
		if serr := h.sleep(ctx, delay); serr != nil {
			return code, nil, err
		}
	}
}

// do executes a single attempt, bounded by the connect and read timeouts.
func (h *Client) do(ctx context.Context, reqURL string, headers map[string]string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.ConnectTimeout+h.config.ReadTimeout)
	defer cancel()

	// Prepare HTTP request
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed create new HTTP request with context: %w", err)
	}
	request.Header.Set("User-Agent", UserAgent)
	request.Header.Set("Accept", "application/json")
	if h.config.APIKey != "" {
		request.Header.Set(h.config.APIKeyHeader, h.config.APIKey)
	}
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	// Execute HTTP request
	response, err := h.Do(request)
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	if response == nil {
		return 0, nil, &NetworkError{Err: errors.New("nil response received")}
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			h.logger.Error("failed to close HTTP request body", logger.Err(err))
		}
	}(response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxBodySize))
		return response.StatusCode, nil, &StatusError{StatusCode: response.StatusCode, Status: response.Status}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return response.StatusCode, nil, &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return response.StatusCode, body, nil
}

// backoff returns the delay before the given retry (1-based): 0, f, 2f, 4f, ... capped at MaxBackoff.
func (h *Client) backoff(retry int) time.Duration {
	if retry <= 1 || h.config.BackoffFactor <= 0 {
		return 0
	}
	delay := h.config.BackoffFactor
	for i := 2; i < retry; i++ {
		delay *= 2
		if h.config.MaxBackoff > 0 && delay >= h.config.MaxBackoff {
			break
		}
	}
	if h.config.MaxBackoff > 0 && delay > h.config.MaxBackoff {
		delay = h.config.MaxBackoff
	}
	return delay
}

// breaker returns the circuit breaker for the given host or nil if breakers are disabled.
func (h *Client) breaker(host string) *gobreaker.CircuitBreaker {
	if h.config.BreakerFailures == 0 {
		return nil
	}

	h.breakerLock.Lock()
	defer h.breakerLock.Unlock()
	if cb, ok := h.breakers[host]; ok {
		return cb
	}

	threshold := h.config.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     h.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			h.logger.Warn("circuit breaker state changed", slog.String("host", name),
				slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	h.breakers[host] = cb
	return cb
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
