package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; buzzquiz/1.0)"
	// DefaultMaxBody caps how much of a response body is read.
	DefaultMaxBody int64 = 10 << 20
)

// ErrUnexpectedStatus is returned for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Response is a fetched document.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type BaseClient struct {
	client  *http.Client
	headers map[string]string
	maxBody int64
}

func NewBaseClient() *BaseClient {
	c := &BaseClient{
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: make(map[string]string),
		maxBody: DefaultMaxBody,
	}
	c.SetHeader("User-Agent", DefaultUserAgent)
	return c
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *BaseClient) SetMaxBody(n int64) {
	c.maxBody = n
}

// MakeRequest performs the request and reads at most maxBody bytes of the
// response.
func (c *BaseClient) MakeRequest(ctx context.Context, method, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d, response: %s", ErrUnexpectedStatus, resp.StatusCode, string(snippet))
	}

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        responseBody,
	}, nil
}

func (c *BaseClient) Get(ctx context.Context, url string) (*Response, error) {
	return c.MakeRequest(ctx, http.MethodGet, url, nil)
}
