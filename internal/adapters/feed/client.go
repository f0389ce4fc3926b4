// Package feed implements the read-only client for the league standings,
// history and roster feed. All requests drawn through one Client share a
// token bucket and a bounded admission queue, so total outbound throughput
// stays capped no matter how many pipeline stages are fetching.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/fwdcp/ESEADivisions/internal/domain/model"
	"github.com/fwdcp/ESEADivisions/pkg/logger"
	"github.com/fwdcp/ESEADivisions/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultRate        = 1.0 // requests per second
	defaultConcurrency = 10  // simultaneous outstanding requests
	defaultTimeout     = 30 * time.Second
)

// Client fetches feed payloads under shared rate and concurrency limits.
// Construct one Client per process; its configuration is immutable after New.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	admission   *semaphore.Weighted
	concurrency int64
	timeout     time.Duration
	cookies     []*http.Cookie
	logger      logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithRate sets the token refill rate in requests per second. The bucket
// capacity stays 1, so there is no burst beyond it.
func WithRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithConcurrency caps simultaneous outstanding requests.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = int64(n)
		}
	}
}

// WithTimeout bounds a single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCookie adds a cookie sent on every request.
func WithCookie(name, value string) Option {
	return func(c *Client) {
		c.cookies = append(c.cookies, &http.Cookie{Name: name, Value: value})
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Client for the feed rooted at baseURL. The feed wants the
// welcome-page cookie on every call; it is fixed here at construction rather
// than mutated on a shared jar.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		baseURL:     baseURL,
		limiter:     rate.NewLimiter(rate.Limit(defaultRate), 1),
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
		cookies:     []*http.Cookie{{Name: "viewed_welcome_page", Value: "1"}},
		logger:      logger.Get().Named("feed"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.admission = semaphore.NewWeighted(c.concurrency)
	return c
}

// DivisionIndex fetches the division listing.
func (c *Client) DivisionIndex(ctx context.Context) (*DivisionIndex, error) {
	query := url.Values{}
	query.Set("s", "league")
	query.Set("d", "standings")
	query.Set("format", "json")

	var index DivisionIndex
	u, err := c.get(ctx, "division_index", "/index.php", query, &index)
	if err != nil {
		return nil, err
	}
	if index.SelectDivisionID == nil {
		metrics.RecordFetch("division_index", string(KindShape))
		return nil, shapeError(u, "select_division_id")
	}
	metrics.RecordFetch("division_index", "ok")
	return &index, nil
}

// DivisionDetail fetches one division's metadata and standings listing.
func (c *Client) DivisionDetail(ctx context.Context, divisionID int64) (*DivisionDetail, error) {
	query := url.Values{}
	query.Set("s", "league")
	query.Set("d", "standings")
	query.Set("division_id", fmt.Sprintf("%d", divisionID))
	query.Set("format", "json")

	var detail DivisionDetail
	u, err := c.get(ctx, "division_detail", "/index.php", query, &detail)
	if err != nil {
		return nil, err
	}
	switch {
	case detail.Division == nil:
		metrics.RecordFetch("division_detail", string(KindShape))
		return nil, shapeError(u, "division")
	case detail.StemTournaments == nil:
		metrics.RecordFetch("division_detail", string(KindShape))
		return nil, shapeError(u, "stem_tournaments")
	}
	metrics.RecordFetch("division_detail", "ok")
	return &detail, nil
}

// TeamHistory fetches a team's league-tab history for the series, returning
// the whole payload as an opaque snapshot.
func (c *Client) TeamHistory(ctx context.Context, team int64, series int) (model.Snapshot, error) {
	query := url.Values{}
	query.Set("tab", "league")
	query.Set("period[type]", "seasons")
	query.Set("period[season_start]", fmt.Sprintf("%d", series))
	query.Set("format", "json")

	var snapshot model.Snapshot
	if _, err := c.get(ctx, "team_history", fmt.Sprintf("/teams/%d", team), query, &snapshot); err != nil {
		return nil, err
	}
	metrics.RecordFetch("team_history", "ok")
	return snapshot, nil
}

// PlayerHistory fetches a player's alias and team history, returning the
// whole payload as an opaque snapshot.
func (c *Client) PlayerHistory(ctx context.Context, player int64) (model.Snapshot, error) {
	query := url.Values{}
	query.Set("tab", "history")
	query.Set("format", "json")

	var snapshot model.Snapshot
	if _, err := c.get(ctx, "player_history", fmt.Sprintf("/users/%d", player), query, &snapshot); err != nil {
		return nil, err
	}
	metrics.RecordFetch("player_history", "ok")
	return snapshot, nil
}

// get performs an admission-capped, rate-limited GET and decodes the JSON
// body into out. It returns the request URL for error construction.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) (string, error) {
	u := c.baseURL + path + "?" + query.Encode()

	waitStart := time.Now()
	if err := c.admission.Acquire(ctx, 1); err != nil {
		metrics.RecordFetch(endpoint, string(KindTransport))
		return u, transportError(u, err)
	}
	defer c.admission.Release(1)
	metrics.AdmissionAcquired()
	defer metrics.AdmissionReleased()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordFetch(endpoint, string(KindTransport))
		return u, transportError(u, err)
	}
	metrics.RecordRateWait(time.Since(waitStart).Seconds())

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		metrics.RecordFetch(endpoint, string(KindTransport))
		return u, transportError(u, err)
	}
	for _, cookie := range c.cookies {
		req.AddCookie(cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFetch(endpoint, string(KindTransport))
		return u, transportError(u, err)
	}
	defer resp.Body.Close()
	metrics.RecordFetchLatency(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		metrics.RecordFetch(endpoint, string(KindStatus))
		return u, statusError(u, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordFetch(endpoint, string(KindShape))
		return u, &FetchError{Kind: KindShape, URL: u, Field: "body", Err: err}
	}
	c.logger.Debug(ctx, "fetched", logger.String("endpoint", endpoint), logger.String("url", u))
	return u, nil
}
