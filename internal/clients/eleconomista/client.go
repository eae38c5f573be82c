// Package eleconomista fetches pages from the elEconomista markets site.
package eleconomista

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/dividendos/internal/common"
)

const (
	DefaultBaseURL     = "https://www.eleconomista.es"
	DefaultListingPath = "/mercados-cotizaciones/ecodividendo/calendario.php"
	DefaultTimeout     = 30 * time.Second
	DefaultRateLimit   = 1 // requests per second

	maxBodyBytes = 8 << 20
	userAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrUnexpectedStatus is wrapped by Fetch for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client fetches HTML pages with browser-like headers and a shared rate limit.
type Client struct {
	baseURL     string
	listingPath string
	httpClient  *http.Client
	logger      *common.Logger
	limiter     *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the site origin
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithListingPath sets the path of the dividend calendar page
func WithListingPath(path string) ClientOption {
	return func(c *Client) {
		c.listingPath = "/" + strings.TrimLeft(path, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the request rate. Zero or negative disables limiting.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the public site. No credentials are needed.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		listingPath: DefaultListingPath,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the site origin used to resolve relative links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListingURL returns the absolute URL of the dividend calendar.
func (c *Client) ListingURL() string {
	return c.baseURL + c.listingPath
}

// FetchListing returns the dividend calendar page markup.
func (c *Client) FetchListing(ctx context.Context) (string, error) {
	return c.Fetch(ctx, c.ListingURL())
}

// Fetch GETs url and returns the body decoded to UTF-8.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.8,en-US;q=0.5,en;q=0.3")

	c.logger.Debug().Str("url", url).Msg("elEconomista request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Dur("elapsed", elapsed).Msg("elEconomista request failed")
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Str("url", url).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("elEconomista non-2xx response")
		return "", fmt.Errorf("%w %d for %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().Str("url", url).Int("bytes", len(data)).Dur("elapsed", elapsed).Msg("elEconomista response")
	return string(data), nil
}
