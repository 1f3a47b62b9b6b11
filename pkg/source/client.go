package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/phylomorph/pkg/buildinfo"
	perrors "github.com/matzehuels/phylomorph/pkg/errors"
)

const (
	httpTimeout = 30 * time.Second

	// MaxSize bounds a fetched or read source.
	MaxSize = 64 << 20
)

// Client fetches remote tree files.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	delay    time.Duration
}

// NewClient returns a client sending headers with every request. Pass nil
// for none.
func NewClient(headers map[string]string) *Client {
	return &Client{
		http:     &http.Client{Timeout: httpTimeout},
		headers:  headers,
		attempts: 3,
		delay:    time.Second,
	}
}

// Fetch downloads url, retrying transient failures.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := Retry(ctx, c.attempts, c.delay, func() error {
		var err error
		data, err = c.get(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "bad source url %s", url)
	}
	req.Header.Set("User-Agent", "phylomorph/"+buildinfo.Version)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Err: perrors.Wrap(perrors.ErrCodeInvalidInput, err, "fetch %s", url)}
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
	if err != nil {
		return nil, &RetryableError{Err: perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read %s", url)}
	}
	if len(data) > MaxSize {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "%s is larger than %d bytes", url, MaxSize)
	}
	return data, nil
}

// checkStatus turns a non-200 response into an error. Rate limiting and
// server errors are retryable.
func checkStatus(url string, resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return perrors.New(perrors.ErrCodeFileNotFound, "%s: not found", url)
	case code == http.StatusTooManyRequests || code >= 500:
		return &RetryableError{
			Err:   perrors.New(perrors.ErrCodeInvalidInput, "%s: status %d", url, code),
			After: retryAfter(resp.Header),
		}
	default:
		return perrors.Wrap(perrors.ErrCodeInvalidInput, fmt.Errorf("status %d", code), "fetch %s", url)
	}
}
