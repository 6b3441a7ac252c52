package ghsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/derive-tools/derive-census/internal/domain"
)

const (
	// MaxSearchResults is the hard cap of the search API window: only the
	// first 1000 results of any query are retrievable.
	MaxSearchResults = 1000

	// PageSize is the maximum page size accepted by the search endpoint.
	PageSize = 100

	// MaxPages caps pagination; the API never serves beyond page 10 at
	// the maximum page size.
	MaxPages = 10

	// MaxBackoffExponent caps exponential backoff at 2^6 = 64 seconds.
	MaxBackoffExponent = 6

	// InterPageDelay is the pause between consumed pages. The search
	// endpoint has its own budget (~30 req/min) even when authenticated.
	InterPageDelay = 2200 * time.Millisecond

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// UserAgent identifies this tool to the API.
	UserAgent = "derive-census/1.0"

	// smallRepoSizeKB is the reported-size floor below which a repository
	// is considered near-empty and skipped.
	smallRepoSizeKB = 10
)

// Client discovers candidate repositories via the GitHub search API.
type Client struct {
	gh       *gh.Client
	limiter  *RateLimiter
	language string

	// sleepFn and jitterFn are injectable for tests.
	sleepFn  func(context.Context, time.Duration) error
	jitterFn func(time.Duration) time.Duration
}

// NewClient creates a search client. An empty token yields unauthenticated
// requests with much stricter rate limits.
func NewClient(ctx context.Context, token, language string) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	} else {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = DefaultTimeout

	client := gh.NewClient(httpClient)
	client.UserAgent = UserAgent

	return &Client{
		gh:       client,
		limiter:  NewRateLimiter(),
		language: language,
		sleepFn:  sleepContext,
		jitterFn: jitter,
	}
}

// SetBaseURL points the client at a different API base URL (for testing).
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	c.gh.BaseURL = parsed
	return nil
}

// RateLimiter returns the proactive rate limiter.
func (c *Client) RateLimiter() *RateLimiter {
	return c.limiter
}

// Discover returns up to min(limit, 1000) repositories matching the language
// and star criteria, sorted by star count descending. Near-empty repositories
// (reported size at or below 10 KB) are skipped. Pagination stops early when
// the API returns a short page.
func (c *Client) Discover(ctx context.Context, limit, minStars int) ([]domain.Repository, error) {
	desired := min(limit, MaxSearchResults)
	if desired <= 0 {
		return nil, nil
	}

	perPage := min(PageSize, desired)
	maxPages := min((desired+perPage-1)/perPage, MaxPages)
	query := fmt.Sprintf("language:%s stars:>=%d sort:stars size:>%d", c.language, minStars, smallRepoSizeKB)

	slog.Info("Searching repositories", "language", c.language, "limit", desired, "min_stars", minStars)

	repos := make([]domain.Repository, 0, desired)
	page := 1

	for len(repos) < desired && page <= maxPages {
		result, err := c.searchPage(ctx, query, page, perPage)
		if err != nil {
			return nil, err
		}

		items := result.Repositories
		slog.Info("Search page consumed", "page", page, "items", len(items))

		for _, item := range items {
			if len(repos) >= desired {
				break
			}
			if item.GetSize() <= smallRepoSizeKB {
				continue
			}
			repos = append(repos, domain.Repository{
				Name:     item.GetName(),
				FullName: item.GetFullName(),
				CloneURL: item.GetCloneURL(),
				Language: item.GetLanguage(),
				Stars:    item.GetStargazersCount(),
				Size:     item.GetSize(),
			})
		}

		// A short page means the query has no further results.
		if len(items) < perPage {
			break
		}

		page++
		if err := c.sleepFn(ctx, c.jitterFn(InterPageDelay)); err != nil {
			return nil, err
		}
	}

	slog.Info("Discovery complete", "collected", len(repos), "requested", desired)
	return repos, nil
}

// searchPage fetches one result page, retrying throttled requests with
// Retry-After or exponential backoff. The attempt counter is per page.
func (c *Client) searchPage(ctx context.Context, query string, page, perPage int) (*gh.RepositoriesSearchResult, error) {
	opts := &gh.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: gh.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	attempt := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, resp, err := c.gh.Search.Repositories(ctx, query, opts)
		if err == nil {
			c.limiter.UpdateFromResponse(resp.Response)

			// Quota exhausted: sleep through the reset now so the next
			// call doesn't fail outright.
			if resp.Rate.Remaining == 0 {
				wait := time.Until(resp.Rate.Reset.Time)
				if wait > 0 {
					slog.Warn("Rate limit exhausted, sleeping until reset", "wait", wait)
					if serr := c.sleepFn(ctx, c.jitterFn(wait)); serr != nil {
						return nil, serr
					}
				}
			}
			return result, nil
		}

		retryAfter, retryable := classifyRetry(err)
		if !retryable {
			return nil, fatalSearchError(err, page)
		}

		attempt++
		wait := retryAfter
		if wait <= 0 {
			wait = backoffDelay(attempt)
		}
		slog.Warn("Search request throttled, backing off",
			"page", page, "attempt", attempt, "wait", wait)
		if serr := c.sleepFn(ctx, c.jitterFn(wait)); serr != nil {
			return nil, serr
		}
	}
}

// classifyRetry reports whether the error is a throttling response (403/429)
// and any server-provided retry delay.
func classifyRetry(err error) (time.Duration, bool) {
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return *abuseErr.RetryAfter, true
		}
		return 0, true
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return 0, true
	}

	var apiErr *gh.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		code := apiErr.Response.StatusCode
		if code == http.StatusForbidden || code == http.StatusTooManyRequests {
			if ra := apiErr.Response.Header.Get(HeaderRetryAfter); ra != "" {
				if secs, perr := strconv.Atoi(ra); perr == nil {
					return time.Duration(secs) * time.Second, true
				}
			}
			return 0, true
		}
	}

	return 0, false
}

// fatalSearchError converts a non-retryable request error into an APIError
// carrying the status code and response message where available.
func fatalSearchError(err error, page int) error {
	var apiErr *gh.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		reqURL := ""
		if apiErr.Response.Request != nil && apiErr.Response.Request.URL != nil {
			reqURL = apiErr.Response.Request.URL.String()
		}
		return &APIError{
			StatusCode: apiErr.Response.StatusCode,
			Message:    apiErr.Message,
			URL:        reqURL,
		}
	}
	return fmt.Errorf("search page %d: %w", page, err)
}

// backoffDelay returns 2^attempt seconds, capped at 2^MaxBackoffExponent.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<min(attempt, MaxBackoffExponent)) * time.Second
}

// jitter adds a random delay of up to half the base duration.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + rand.N(d/2+1)
}

// sleepContext sleeps for d or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
