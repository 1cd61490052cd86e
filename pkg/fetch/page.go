package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/gallery-scraper/pkg/utils"
)

// PageFetcher returns the body of an absolute URL as text.
// Every failure wraps utils.ErrTransport.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// PageClient is the HTTP-backed PageFetcher
type PageClient struct {
	fetcher   HTTPFetcher
	userAgent string
	maxBytes  int64
	log       *logrus.Entry
}

// NewPageClient wraps an HTTPFetcher. Bodies larger than maxBytes fail the fetch;
// maxBytes <= 0 disables the check.
func NewPageClient(fetcher HTTPFetcher, userAgent string, maxBytes int64, log *logrus.Entry) *PageClient {
	return &PageClient{
		fetcher:   fetcher,
		userAgent: userAgent,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// WithUserAgent returns a copy sending a different User-Agent.
func (c *PageClient) WithUserAgent(userAgent string) *PageClient {
	cp := *c
	cp.userAgent = userAgent
	return &cp
}

// FetchPage implements PageFetcher.
func (c *PageClient) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %s: %w", utils.ErrTransport, utils.ErrRequestCreation, pageURL, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		drain(resp)
		return "", fmt.Errorf("%w: %s: %w", utils.ErrTransport, pageURL, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if c.maxBytes > 0 {
		body = io.LimitReader(resp.Body, c.maxBytes+1) // +1 to detect exceeding the limit
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w: %s: %w", utils.ErrTransport, utils.ErrResponseBodyRead, pageURL, err)
	}
	// A cut page would silently lose the links and next control past the cutoff
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return "", fmt.Errorf("%w: %w: page '%s' exceeds max size (more than %d bytes)",
			utils.ErrTransport, utils.ErrResponseBodyRead, pageURL, c.maxBytes)
	}

	c.log.WithFields(logrus.Fields{"url": pageURL, "bytes": len(data)}).Debug("Fetched page")
	return string(data), nil
}
