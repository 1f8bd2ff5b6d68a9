// Package httpclient provides an OTEL-instrumented HTTP client for
// outbound JSON APIs.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute
)

// Config holds client settings.
type Config struct {
	Name           string // label used in metrics
	BaseURL        string
	Timeout        time.Duration
	DefaultHeaders map[string]string
}

// Client is an instrumented HTTP client bound to one base URL.
type Client struct {
	config   Config
	client   *http.Client
	requests metric.Int64Counter
	nameAttr attribute.Set
}

// New creates an instrumented client. Requests propagate trace context
// and record per-connection timings through httptrace.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			KeepAlive: defaultDialKeepAlive,
		}).DialContext,
		MaxConnsPerHost: defaultMaxConnsPerHost,
		IdleConnTimeout: defaultIdleConnTimeout,
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: otelhttp.NewTransport(transport,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}

	requests, err := otel.Meter("httpclient").Int64Counter(
		"http_client_requests_total",
		metric.WithDescription("Total outbound HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:   cfg,
		client:   httpClient,
		requests: requests,
		nameAttr: attribute.NewSet(attribute.String("client", cfg.Name)),
	}, nil
}

// Do executes req and records the request metric.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	for k, v := range c.config.DefaultHeaders {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.client.Do(req.WithContext(ctx))

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.requests.Add(ctx, 1,
		metric.WithAttributeSet(c.nameAttr),
		metric.WithAttributes(attribute.Int("status", status)))

	return resp, err
}

// PostJSON sends body as JSON to path (relative to the base URL) and
// decodes the JSON response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
