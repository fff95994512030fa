package firesource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/burn-scar-detection/internal/domain"
)

const (
	userAgent = "burn-scar-detection/1.0 (fire perimeter monitor)"

	// DefaultCacheTTL is how long fetched geometries are served from cache.
	// Fire perimeters move slowly relative to imagery seasons.
	DefaultCacheTTL = 5 * time.Minute

	maxFetchRetries = 3
)

// Client fetches fire geometries from a remote GeoJSON feed, retrying
// transient failures and caching results for a TTL.
type Client struct {
	url        string
	httpClient *http.Client
	ttl        time.Duration
	logger     *slog.Logger

	mu        sync.Mutex
	cached    []orb.Geometry
	fetchedAt time.Time
}

// NewClient returns a Client for the feed at url. Pass DefaultCacheTTL
// unless the feed updates faster.
func NewClient(url string, timeout, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		ttl:        ttl,
		logger:     logger,
	}
}

// FireGeometries returns cached geometries when fresh, otherwise fetches.
func (c *Client) FireGeometries(ctx context.Context) ([]orb.Geometry, error) {
	c.mu.Lock()
	if c.cached != nil && domain.Now().Sub(c.fetchedAt) < c.ttl {
		geoms := c.cached
		c.mu.Unlock()
		return geoms, nil
	}
	c.mu.Unlock()

	geoms, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = geoms
	c.fetchedAt = domain.Now()
	c.mu.Unlock()
	return geoms, nil
}

// fetch retrieves the feed with exponential backoff on network errors and
// server-side failures. Client-side errors are not retried.
func (c *Client) fetch(ctx context.Context) ([]orb.Geometry, error) {
	var geoms []orb.Geometry
	op := func() error {
		body, err := c.doRequest(ctx)
		if err != nil {
			return err
		}
		parsed, err := parseFeatureCollection(body)
		if err != nil {
			return backoff.Permanent(err)
		}
		geoms = parsed
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("fetch fire feed: %w", err)
	}
	c.logger.Debug("fire feed fetched", "url", c.url, "geometries", len(geoms))
	return geoms, nil
}

func (c *Client) doRequest(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fire feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fire feed status %d", resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fire feed body: %w", err)
	}
	return body, nil
}
