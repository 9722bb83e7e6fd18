package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every hub call
const DefaultTimeout = 10 * time.Second

// ErrTransport marks any network or HTTP level failure talking to the hub
var ErrTransport = errors.New("hub transport failure")

// HTTPError is returned when the hub answers with a non-2xx status
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrTransport) match HTTP errors too
func (e *HTTPError) Unwrap() error {
	return ErrTransport
}

// GetStatusCode returns the HTTP status code
func (e *HTTPError) GetStatusCode() int {
	return e.StatusCode
}

// IsStatus reports whether err is an HTTPError with the given status code
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}

// HTTPClient is a basic HTTP client wrapper
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client. A non-positive timeout falls back
// to DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the URL every request path is appended to
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// DoRequest performs an HTTP request and hands 2xx responses to handler.
// handler may be nil when the response body is not needed.
func (c *HTTPClient) DoRequest(ctx context.Context, method, path string, payload interface{}, handler func(*http.Response) error) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(bodyBytes)),
		}
	}

	if handler == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := handler(resp); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	return nil
}
