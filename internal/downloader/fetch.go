package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"imgscraper/pkg/errors"
)

// HTTPFetcher downloads image bodies directly, without a proxy
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// NewHTTPFetcher creates a fetcher. maxBytes <= 0 disables the size guard.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{},
		timeout:   timeout,
		maxBytes:  maxBytes,
		userAgent: userAgent,
	}
}

// Fetch returns the body of a 200 response
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDownload, err, "failed to create request")
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDownload, err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithStatus(errors.ErrorTypeDownload, resp.StatusCode,
			fmt.Sprintf("failed to download image with status code: %d", resp.StatusCode))
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeDownload, err, "failed to read image data")
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, errors.New(errors.ErrorTypeDownload,
			fmt.Sprintf("image exceeds %d bytes", f.maxBytes))
	}
	return data, nil
}
