// Package enrich fetches descriptive profile attributes from a people-data
// API. Lookups are rate limited, concurrent lookups for the same person are
// coalesced, and results are memoized for a while.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/okian/versus/internal/domain/model"
	"github.com/okian/versus/pkg/logger"
	"github.com/okian/versus/pkg/metrics"
)

// Client defaults.
const (
	DefaultRatePerSecond = 2.0
	DefaultCacheTTL      = 24 * time.Hour
	DefaultCacheSize     = 4096
	DefaultTimeout       = 5 * time.Second
	enrichPath           = "/person/enrich"
	maxErrorBody         = 512
)

// Sentinel kinds for lookup failures.
var (
	ErrUpstream     = errors.New("enrichment upstream error")
	ErrUnauthorized = errors.New("enrichment api key rejected")
)

// Client talks to the people-data API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	group   singleflight.Group
	cache   *expirable.LRU[string, model.Attributes]
	logger  logger.Logger

	cacheSize int
	cacheTTL  time.Duration
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(DefaultRatePerSecond), 1),
		logger:    logger.Get().Named("enrich"),
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = expirable.NewLRU[string, model.Attributes](c.cacheSize, nil, c.cacheTTL)
	return c
}

// Lookup returns the attributes the provider holds for the job's person. A
// person unknown to the provider yields empty attributes and no error.
func (c *Client) Lookup(ctx context.Context, job model.EnrichJob) (model.Attributes, error) {
	key, params := lookupKey(job)
	if attrs, ok := c.cache.Get(key); ok {
		metrics.RecordEnrichmentCache(true)
		return attrs, nil
	}
	metrics.RecordEnrichmentCache(false)

	v, err, shared := c.group.Do(key, func() (any, error) {
		attrs, err := c.fetch(ctx, params)
		if err != nil {
			return model.Attributes{}, err
		}
		c.cache.Add(key, attrs)
		return attrs, nil
	})
	if err != nil {
		return model.Attributes{}, err
	}
	if shared {
		c.logger.Debug(ctx, "coalesced enrichment lookup", logger.String("key", key))
	}
	return v.(model.Attributes), nil
}

func lookupKey(job model.EnrichJob) (string, url.Values) {
	params := url.Values{}
	if job.LinkedInURL != "" {
		params.Set("linkedin_url", job.LinkedInURL)
		return "linkedin:" + strings.ToLower(strings.TrimRight(job.LinkedInURL, "/")), params
	}
	params.Set("id", job.ProfileID)
	return "id:" + job.ProfileID, params
}

func (c *Client) fetch(ctx context.Context, params url.Values) (model.Attributes, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Attributes{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+enrichPath+"?"+params.Encode(), nil)
	if err != nil {
		return model.Attributes{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Attributes{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.Attributes{}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Attributes{}, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return model.Attributes{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var person personResponse
	if err := json.NewDecoder(resp.Body).Decode(&person); err != nil {
		return model.Attributes{}, fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	return person.attributes(), nil
}
