package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds every gateway request
const DefaultTimeout = 30 * time.Second

// Transport performs the HTTP exchanges of both flows. Implementations
// return the raw response body; non-2xx statuses and network failures are
// reported as transport errors.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string) ([]byte, error)
	Post(ctx context.Context, url string, data map[string]any, headers map[string]string) ([]byte, error)
}

// HTTPClientConfig represents configuration for HTTP client
type HTTPClientConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	DefaultHeaders     map[string]string
}

// HTTPClient is the default Transport, backed by resty
type HTTPClient struct {
	config *HTTPClientConfig
	client *resty.Client
}

// NewHTTPClient creates a transport with a 30 second timeout and no retries
func NewHTTPClient(config *HTTPClientConfig) *HTTPClient {
	if config == nil {
		config = CreateHTTPClientConfig(0)
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetHeaders(config.DefaultHeaders)

	if config.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &HTTPClient{
		config: config,
		client: client,
	}
}

// Get sends a GET request and returns the response body
func (c *HTTPClient) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(rawURL)
	return c.body(resp, err)
}

// Post sends data as a JSON body when the Content-Type header asks for JSON,
// and as a form-encoded body otherwise.
func (c *HTTPClient) Post(ctx context.Context, rawURL string, data map[string]any, headers map[string]string) ([]byte, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeaders(headers)

	if isJSON(headers) {
		req.SetBody(data)
	} else {
		req.SetFormData(formValues(data))
	}

	resp, err := req.Post(rawURL)
	return c.body(resp, err)
}

func (c *HTTPClient) body(resp *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, NewTransportError(0, "HTTP request failed", err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, NewTransportError(resp.StatusCode(), fmt.Sprintf("HTTP error %d: %s", resp.StatusCode(), truncate(resp.String(), 512)), nil)
	}
	return resp.Body(), nil
}

func isJSON(headers map[string]string) bool {
	for key, value := range headers {
		if strings.EqualFold(key, "Content-Type") && strings.Contains(strings.ToLower(value), "application/json") {
			return true
		}
	}
	return false
}

func formValues(data map[string]any) map[string]string {
	form := make(map[string]string, len(data))
	for key, value := range data {
		if s, ok := FieldValue(value); ok {
			form[key] = s
		}
	}
	return form
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// JoinURL joins a base URL and an endpoint with exactly one slash between them
func JoinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// BuildURL constructs the full URL with query parameters
func BuildURL(base, endpoint string, query [][2]string) string {
	return AppendQuery(JoinURL(base, endpoint), query)
}

// AppendQuery appends query parameters in the order given so the query
// string is deterministic.
func AppendQuery(rawURL string, query [][2]string) string {
	if len(query) == 0 {
		return rawURL
	}

	parts := make([]string, 0, len(query))
	for _, kv := range query {
		parts = append(parts, url.QueryEscape(kv[0])+"="+url.QueryEscape(kv[1]))
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + strings.Join(parts, "&")
}

// CreateHTTPClientConfig creates the standard transport configuration
func CreateHTTPClientConfig(timeout time.Duration) *HTTPClientConfig {
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &HTTPClientConfig{
		Timeout: timeout,
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "goesewa/1.0",
		},
	}
}
