// Package geocode looks up real road names through the Nominatim
// search API, with caching and rate limiting suitable for its usage
// policy.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrNoResults means the query resolved but nothing detailed enough
// came back.
var ErrNoResults = errors.New("no geocoding results")

// minPlaceRank drops country and region level hits; 18 and above is
// roughly city-block resolution in Nominatim's ranking.
const minPlaceRank = 18

const maxResponseBytes = 1 << 20

// Place is one usable geocoding hit.
type Place struct {
	DisplayName string
	Road        string
	City        string
	Country     string
	PlaceRank   int
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	PlaceRank   int    `json:"place_rank"`
	Address     struct {
		Road    string `json:"road"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		Country string `json:"country"`
	} `json:"address"`
}

// Config tunes the client. Zero values select the defaults.
type Config struct {
	BaseURL       string        `json:"base_url"`
	UserAgent     string        `json:"user_agent"`
	Timeout       time.Duration `json:"timeout"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	MaxResults    int           `json:"max_results"`
	RatePerSecond float64       `json:"rate_per_second"`
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://nominatim.openstreetmap.org/search"
	}
	if c.UserAgent == "" {
		// Nominatim rejects anonymous clients.
		c.UserAgent = "doppel/0.1 (identity variation synthesis)"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.RatePerSecond <= 0 {
		// Nominatim's usage policy: one request per second.
		c.RatePerSecond = 1
	}
}

type cacheEntry struct {
	places  []Place
	expires time.Time
}

// Client rate-limits Nominatim queries (one per second by default),
// caches results per city and country, and collapses concurrent misses
// for the same key into a single upstream request. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxResults int
	ttl        time.Duration
	limiter    *rate.Limiter
	group      singleflight.Group
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		maxResults: cfg.MaxResults,
		ttl:        cfg.CacheTTL,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:     logger,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
}

// Search resolves places for a city and country, most detailed first
// as returned by Nominatim. Results below street-level detail are
// dropped; an empty remainder is ErrNoResults.
func (c *Client) Search(ctx context.Context, city, country string) ([]Place, error) {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)
	key := strings.ToLower(city) + "|" + strings.ToLower(country)
	if places, ok := c.cached(key); ok {
		return places, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if places, ok := c.cached(key); ok {
			return places, nil
		}
		places, err := c.fetch(ctx, city, country)
		if err != nil {
			return nil, err
		}
		c.store(key, places)
		return places, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Place), nil
}

func (c *Client) fetch(ctx context.Context, city, country string) ([]Place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", city+", "+country)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(c.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("geocoding", "city", city, "country", country)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading geocode response: %w", err)
	}
	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decoding geocode response: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		if r.PlaceRank < minPlaceRank {
			continue
		}
		places = append(places, toPlace(r, city, country))
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}
	return places, nil
}

func toPlace(r nominatimResult, city, country string) Place {
	road := r.Address.Road
	if road == "" {
		road = strings.TrimSpace(strings.SplitN(r.DisplayName, ",", 2)[0])
	}
	placeCity := r.Address.City
	if placeCity == "" {
		placeCity = r.Address.Town
	}
	if placeCity == "" {
		placeCity = r.Address.Village
	}
	if placeCity == "" {
		placeCity = city
	}
	placeCountry := r.Address.Country
	if placeCountry == "" {
		placeCountry = country
	}
	return Place{
		DisplayName: r.DisplayName,
		Road:        road,
		City:        placeCity,
		Country:     placeCountry,
		PlaceRank:   r.PlaceRank,
	}
}

func (c *Client) cached(key string) ([]Place, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[key]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.places, true
}

func (c *Client) store(key string, places []Place) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{places: places, expires: c.now().Add(c.ttl)}
}
