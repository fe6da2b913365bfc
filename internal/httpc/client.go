// Package httpc provides the shared HTTP client and a file downloader used to
// fetch model files.
package httpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Default timeouts for HTTP operations. Model files are large, so the overall
// request timeout is generous; slow connects still fail fast.
const (
	DefaultTimeout         = 10 * time.Minute
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// ErrStatus is returned by Download for a non-2xx response.
var ErrStatus = errors.New("httpc: unexpected status")

// Client is the shared HTTP client. Use this instead of http.DefaultClient.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Download fetches url into dst. The body is written to a temporary file in
// the same directory and renamed on success, so dst is either complete or
// untouched. It returns the number of bytes written.
func Download(ctx context.Context, c *http.Client, url, dst string) (int64, error) {
	if c == nil {
		c = Client
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("httpc: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return 0, fmt.Errorf("httpc: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s: %s", ErrStatus, url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("httpc: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, fmt.Errorf("httpc: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("httpc: write %s: %w", dst, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return n, fmt.Errorf("httpc: %w", err)
	}
	return n, nil
}
