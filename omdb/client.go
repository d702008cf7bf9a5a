// Package omdb is a small client for the OMDB movie metadata API.
//
// Every lookup either yields a result or reports it as absent. Transport
// failures, non-2xx statuses, undecodable bodies, OMDB's own "Response":"False"
// answers and per-call timeouts are all reported the same way; the cause is
// logged at debug level and counted, never returned.
package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/ddevcap/movie-catalog/config"
	"github.com/ddevcap/movie-catalog/metrics"
	"github.com/ddevcap/movie-catalog/store"
)

const (
	callSearch  = "search"
	callDetails = "details"

	// maxBody caps how much of a response is read. OMDB answers are a few KB.
	maxBody = 1 << 20

	notAvailable = "N/A"
)

// SearchResult is one hit of a title search.
type SearchResult struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

// Details is the full record of one movie. Plot and Poster are nil when OMDB
// has no value for them.
type Details struct {
	Title  string
	Year   string
	IMDbID string
	Plot   *string
	Poster *string
}

// NewMovie converts d into a catalog entry ready to be inserted.
func (d *Details) NewMovie() store.NewMovie {
	return store.NewMovie{
		Title:  d.Title,
		Year:   d.Year,
		IMDbID: d.IMDbID,
		Plot:   d.Plot,
		Poster: d.Poster,
	}
}

type envelope struct {
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

func (e envelope) found() bool { return strings.EqualFold(e.Response, "True") }

func (e envelope) reason() string { return e.Error }

type searchResponse struct {
	envelope
	Search []SearchResult `json:"Search"`
}

type detailsResponse struct {
	envelope
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Plot   string `json:"Plot"`
	Poster string `json:"Poster"`
}

type answer interface {
	found() bool
	reason() string
}

// Client talks to OMDB. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
	limiter *rate.Limiter
	details *ttlcache.Cache[string, Details]
}

// NewClient builds a client from the OMDB_* settings in cfg and starts the
// detail cache's eviction loop. Call Close when done.
func NewClient(cfg config.Config) *Client {
	limit := rate.Inf
	if cfg.OMDBRateLimit > 0 {
		limit = rate.Limit(cfg.OMDBRateLimit)
	}
	cache := ttlcache.New[string, Details](
		ttlcache.WithTTL[string, Details](cfg.OMDBCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, Details](),
	)
	go cache.Start()

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConnsPerHost: 4,
	}
	return &Client{
		http:    &http.Client{Transport: transport},
		baseURL: cfg.OMDBBaseURL,
		apiKey:  cfg.OMDBAPIKey,
		timeout: cfg.OMDBTimeout,
		limiter: rate.NewLimiter(limit, 1),
		details: cache,
	}
}

// Close stops the detail cache's eviction loop.
func (c *Client) Close() {
	c.details.Stop()
}

// Search returns the movies matching term on the given result page, or false
// when the page is absent.
func (c *Client) Search(ctx context.Context, term string, page int) ([]SearchResult, bool) {
	params := url.Values{}
	params.Set("s", term)
	params.Set("type", "movie")
	params.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if !c.fetch(ctx, callSearch, params, &resp) {
		return nil, false
	}
	return resp.Search, true
}

// Details returns the full record for imdbID, or false when it is absent.
// Present results are cached for OMDB_CACHE_TTL.
func (c *Client) Details(ctx context.Context, imdbID string) (*Details, bool) {
	if item := c.details.Get(imdbID); item != nil {
		metrics.IncOMDBRequest(callDetails, metrics.OutcomeCached)
		d := item.Value()
		return &d, true
	}

	params := url.Values{}
	params.Set("i", imdbID)
	params.Set("plot", "full")

	var resp detailsResponse
	if !c.fetch(ctx, callDetails, params, &resp) {
		return nil, false
	}
	if resp.IMDbID == "" {
		resp.IMDbID = imdbID
	}
	d := Details{
		Title:  resp.Title,
		Year:   resp.Year,
		IMDbID: resp.IMDbID,
		Plot:   optional(resp.Plot),
		Poster: optional(resp.Poster),
	}
	c.details.Set(imdbID, d, ttlcache.DefaultTTL)
	return &d, true
}

// fetch performs one paced, time-bounded GET and decodes the body into out.
// It reports whether OMDB returned a usable answer.
func (c *Client) fetch(ctx context.Context, call string, params url.Values, out answer) bool {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.get(ctx, params, out)
	switch {
	case err == nil && out.found():
		metrics.IncOMDBRequest(call, metrics.OutcomeOK)
		return true
	case err == nil:
		metrics.IncOMDBRequest(call, metrics.OutcomeNotFound)
		slog.Debug("omdb: no result", "call", call, "reason", out.reason())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		metrics.IncOMDBRequest(call, metrics.OutcomeTimeout)
		slog.Debug("omdb: call timed out", "call", call, "timeout", c.timeout)
	default:
		metrics.IncOMDBRequest(call, metrics.OutcomeError)
		slog.Debug("omdb: call failed", "call", call, "error", err)
	}
	return false
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	params.Set("apikey", c.apiKey)
	u := strings.TrimRight(c.baseURL, "/") + "/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the full URL, including the api key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == notAvailable {
		return nil
	}
	return &s
}
