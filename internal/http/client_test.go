// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/weather-monitor/internal/logger"
	"github.com/wneessen/weather-monitor/internal/testhelper"
)

type testType struct {
	String string  `json:"string"`
	Int    int     `json:"int"`
	Float  float64 `json:"float"`
	Bool   bool    `json:"bool"`
}

const testBody = `{"string":"test","int":123,"float":123.456,"bool":true}`

func TestNew(t *testing.T) {
	t.Run("new client with defaults", func(t *testing.T) {
		client := New(logger.New(slog.LevelInfo), DefaultConfig())
		if client == nil {
			t.Fatal("expected client to be non-nil")
		}
		if client.Timeout != DefaultConnectTimeout+DefaultReadTimeout {
			t.Errorf("expected timeout to be %s, got %s", DefaultConnectTimeout+DefaultReadTimeout, client.Timeout)
		}
	})
	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		client := New(logger.New(slog.LevelInfo), Config{MaxRetries: -1})
		if client.config.ConnectTimeout != DefaultConnectTimeout {
			t.Errorf("expected connect timeout to be %s, got %s", DefaultConnectTimeout, client.config.ConnectTimeout)
		}
		if client.config.ReadTimeout != DefaultReadTimeout {
			t.Errorf("expected read timeout to be %s, got %s", DefaultReadTimeout, client.config.ReadTimeout)
		}
		if client.config.MaxRetries != 0 {
			t.Errorf("expected max retries to be 0, got %d", client.config.MaxRetries)
		}
	})
}

func TestClient_Get(t *testing.T) {
	t.Run("getting and serializing JSON should work", func(t *testing.T) {
		var gotReq *stdhttp.Request
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			gotReq = req
			return testhelper.JSONResponse(200, testBody), nil
		}

		conf := DefaultConfig()
		conf.APIKey = "secret"
		client, _ := testClient(t, conf, rtFn)
		query := url.Values{}
		query.Add("key", "value")
		headers := map[string]string{"X-Custom-Header": "custom-value"}

		target := new(testType)
		code, err := client.Get(t.Context(), "https://example.com", target, query, headers)
		if err != nil {
			t.Fatalf("failed to get JSON response: %s", err)
		}
		if code != 200 {
			t.Errorf("expected status code 200, got %d", code)
		}
		if target.String != "test" || target.Int != 123 || target.Float != 123.456 || !target.Bool {
			t.Errorf("unexpected target: %+v", target)
		}
		if gotReq.Method != stdhttp.MethodGet {
			t.Errorf("expected GET request, got %s", gotReq.Method)
		}
		if gotReq.URL.Query().Get("key") != "value" {
			t.Errorf("expected query to be sent, got %s", gotReq.URL.RawQuery)
		}
		if gotReq.Header.Get("User-Agent") != UserAgent {
			t.Errorf("expected user agent %q, got %q", UserAgent, gotReq.Header.Get("User-Agent"))
		}
		if gotReq.Header.Get("X-Custom-Header") != "custom-value" {
			t.Error("expected custom header to be sent")
		}
		if gotReq.Header.Get("X-API-Key") != "secret" {
			t.Error("expected API key header to be sent")
		}
	})
	t.Run("unmarshalling into non-pointer should fail", func(t *testing.T) {
		client := New(logger.NewLogger(slog.LevelInfo, io.Discard), DefaultConfig())
		var target testType
		_, err := client.Get(t.Context(), "https://example.com", target, nil, nil)
		if !errors.Is(err, ErrNonPointerTarget) {
			t.Errorf("expected error to be %s, got %s", ErrNonPointerTarget, err)
		}
	})
	t.Run("parsing an invalid url should fail", func(t *testing.T) {
		client := New(logger.NewLogger(slog.LevelInfo, io.Discard), DefaultConfig())
		_, err := client.Get(t.Context(), "http://example.com/xyz%", new(testType), nil, nil)
		if err == nil {
			t.Fatal("expected get to fail")
		}
		if !strings.Contains(err.Error(), "failed to parse URL") {
			t.Errorf("expected error to contain 'failed to parse URL', got %s", err)
		}
	})
	t.Run("invalid JSON fails without retry", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			return testhelper.JSONResponse(200, `{"string":`), nil
		}
		client, delays := testClient(t, DefaultConfig(), rtFn)
		_, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		if err == nil {
			t.Fatal("expected get to fail")
		}
		if !strings.Contains(err.Error(), "failed to decode JSON") {
			t.Errorf("expected decode error, got %s", err)
		}
		if calls != 1 || len(*delays) != 0 {
			t.Errorf("expected exactly one attempt, got %d attempts and %d delays", calls, len(*delays))
		}
	})
}

func TestClient_Get_retries(t *testing.T) {
	t.Run("two 503 responses followed by a 200 succeed after two delays", func(t *testing.T) {
		statuses := []int{503, 503, 200}
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			status := statuses[calls]
			calls++
			if status != 200 {
				return testhelper.JSONResponse(status, `{"error":true}`), nil
			}
			return testhelper.JSONResponse(200, testBody), nil
		}
		client, delays := testClient(t, DefaultConfig(), rtFn)

		target := new(testType)
		code, err := client.Get(t.Context(), "https://example.com", target, nil, nil)
		if err != nil {
			t.Fatalf("expected request to succeed, got %s", err)
		}
		if code != 200 {
			t.Errorf("expected status code 200, got %d", code)
		}
		if target.String != "test" {
			t.Errorf("expected body of the final response, got %+v", target)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
		want := []time.Duration{0, DefaultBackoffFactor}
		if len(*delays) != len(want) {
			t.Fatalf("expected %d retry delays, got %d", len(want), len(*delays))
		}
		for i := range want {
			if (*delays)[i] != want[i] {
				t.Errorf("expected delay %d to be %s, got %s", i, want[i], (*delays)[i])
			}
		}
	})
	t.Run("404 fails immediately without retries", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			return testhelper.JSONResponse(404, `{}`), nil
		}
		client, delays := testClient(t, DefaultConfig(), rtFn)
		code, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.StatusCode != 404 || code != 404 {
			t.Errorf("expected status 404, got %d/%d", statusErr.StatusCode, code)
		}
		if calls != 1 {
			t.Errorf("expected exactly one attempt, got %d", calls)
		}
		if len(*delays) != 0 {
			t.Errorf("expected zero retry delays, got %d", len(*delays))
		}
	})
	t.Run("429 is retried", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			if calls == 1 {
				return testhelper.JSONResponse(429, `{}`), nil
			}
			return testhelper.JSONResponse(200, testBody), nil
		}
		client, delays := testClient(t, DefaultConfig(), rtFn)
		if _, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil); err != nil {
			t.Fatalf("expected request to succeed, got %s", err)
		}
		if calls != 2 || len(*delays) != 1 {
			t.Errorf("expected 2 attempts and 1 delay, got %d and %d", calls, len(*delays))
		}
	})
	t.Run("exhausted retries surface the last status", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			return testhelper.JSONResponse(502, `{}`), nil
		}
		client, delays := testClient(t, DefaultConfig(), rtFn)
		_, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != 502 {
			t.Fatalf("expected 502 StatusError, got %v", err)
		}
		if calls != DefaultMaxRetries+1 {
			t.Errorf("expected %d attempts, got %d", DefaultMaxRetries+1, calls)
		}
		want := []time.Duration{0, DefaultBackoffFactor, DefaultBackoffFactor * 2}
		for i := range want {
			if (*delays)[i] != want[i] {
				t.Errorf("expected delay %d to be %s, got %s", i, want[i], (*delays)[i])
			}
		}
	})
	t.Run("network errors are retried and surfaced", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			return nil, errors.New("intentionally failing")
		}
		client, _ := testClient(t, DefaultConfig(), rtFn)
		_, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			t.Fatalf("expected NetworkError, got %v", err)
		}
		if !strings.Contains(err.Error(), "intentionally failing") {
			t.Errorf("expected error detail to be preserved, got %s", err)
		}
		if calls != DefaultMaxRetries+1 {
			t.Errorf("expected %d attempts, got %d", DefaultMaxRetries+1, calls)
		}
	})
	t.Run("cancelled context stops retrying", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			return testhelper.JSONResponse(503, `{}`), nil
		}
		client := New(logger.NewLogger(slog.LevelInfo, io.Discard), DefaultConfig())
		client.Transport = testhelper.MockRoundTripper{Fn: rtFn}
		ctx, cancel := context.WithCancel(t.Context())
		client.sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}
		_, err := client.Get(ctx, "https://example.com", new(testType), nil, nil)
		if err == nil {
			t.Fatal("expected get to fail")
		}
		if calls != 1 {
			t.Errorf("expected one attempt, got %d", calls)
		}
	})
}

func TestClient_Get_breaker(t *testing.T) {
	t.Run("open breaker rejects requests without contacting the upstream", func(t *testing.T) {
		calls := 0
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			calls++
			return testhelper.JSONResponse(500, `{}`), nil
		}
		conf := DefaultConfig()
		conf.MaxRetries = 0
		conf.BreakerFailures = 2
		client, _ := testClient(t, conf, rtFn)

		for i := 0; i < 2; i++ {
			if _, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil); err == nil {
				t.Fatal("expected get to fail")
			}
		}
		_, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected circuit open error, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 upstream calls, got %d", calls)
		}
	})
	t.Run("client errors do not trip the breaker", func(t *testing.T) {
		rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return testhelper.JSONResponse(400, `{}`), nil
		}
		conf := DefaultConfig()
		conf.BreakerFailures = 1
		client, _ := testClient(t, conf, rtFn)
		for i := 0; i < 3; i++ {
			_, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil)
			if errors.Is(err, ErrCircuitOpen) {
				t.Fatal("expected breaker to stay closed")
			}
		}
	})
	t.Run("breakers are kept per host", func(t *testing.T) {
		conf := DefaultConfig()
		conf.BreakerFailures = 1
		client := New(logger.NewLogger(slog.LevelInfo, io.Discard), conf)
		if client.breaker("a.example.com") == client.breaker("b.example.com") {
			t.Error("expected different breakers for different hosts")
		}
		if client.breaker("a.example.com") != client.breaker("a.example.com") {
			t.Error("expected the same breaker for the same host")
		}
	})
}

func TestClient_backoff(t *testing.T) {
	client := New(logger.NewLogger(slog.LevelInfo, io.Discard), DefaultConfig())
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 0},
		{2, time.Millisecond * 1500},
		{3, time.Second * 3},
		{4, time.Second * 6},
		{5, DefaultMaxBackoff},
		{12, DefaultMaxBackoff},
	}
	for _, tc := range tests {
		if got := client.backoff(tc.retry); got != tc.want {
			t.Errorf("backoff for retry %d: expected %s, got %s", tc.retry, tc.want, got)
		}
	}
}

func TestClient_concurrentUse(t *testing.T) {
	rtFn := func(req *stdhttp.Request) (*stdhttp.Response, error) {
		return testhelper.JSONResponse(200, testBody), nil
	}
	conf := DefaultConfig()
	conf.BreakerFailures = 3
	client, _ := testClient(t, conf, rtFn)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Get(t.Context(), "https://example.com", new(testType), nil, nil); err != nil {
				t.Errorf("concurrent get failed: %s", err)
			}
		}()
	}
	wg.Wait()
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got %v", err)
	}
	if err := sleepContext(t.Context(), 0); err != nil {
		t.Errorf("expected zero delay to return immediately, got %v", err)
	}
}

func TestClient_Get_integration(t *testing.T) {
	testhelper.PerformIntegrationTests(t)
	client := New(logger.NewLogger(slog.LevelDebug, io.Discard), DefaultConfig())
	query := url.Values{}
	query.Set("latitude", "-6.2")
	query.Set("longitude", "106.816")
	query.Set("current", "temperature_2m")

	var target struct {
		Current map[string]any `json:"current"`
	}
	code, err := client.Get(t.Context(), testhelper.TestOnlineAPIURL, &target, query, nil)
	if err != nil {
		t.Fatalf("failed to perform online request: %s", err)
	}
	if code != stdhttp.StatusOK {
		t.Errorf("expected status code %d, got %d", stdhttp.StatusOK, code)
	}
	if len(target.Current) == 0 {
		t.Error("expected current block in response")
	}
}

// testClient returns a client using the given round trip function and a recorder for the
// backoff delays it waited for.
func testClient(t *testing.T, conf Config, fn func(*stdhttp.Request) (*stdhttp.Response, error)) (*Client, *[]time.Duration) {
	t.Helper()
	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	client := New(logger.NewLogger(slog.LevelDebug, io.Discard), conf)
	client.Transport = testhelper.MockRoundTripper{Fn: fn}
	client.sleep = func(_ context.Context, delay time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, delay)
		return nil
	}
	return client, &delays
}
