// Package wiki talks to the MediaWiki action API with pacing, retry and content caching
package wiki

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ppiankov/wikiedits/internal/cache"
	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/logger"
	"github.com/ppiankov/wikiedits/internal/util"
	"github.com/ppiankov/wikiedits/internal/worker"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUA        = "wikiedits"
	defaultMaxRetry  = 5
	defaultRetryBase = 500 * time.Millisecond
	maxBodyBytes     = 32 << 20
)

// Options configures the Client
type Options struct {
	APIURL    string
	UserAgent string
	Timeout   time.Duration

	// MaxRetries bounds the attempts made while the API answers 429
	MaxRetries int
	RetryBase  time.Duration

	Transport http.RoundTripper
	Limiter   *worker.Limiter
	Cache     cache.Cache
	Robots    *util.RobotsChecker
	Logger    *logger.Logger
}

// Client issues GET requests against one wiki. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *worker.Limiter
	cache   cache.Cache
	robots  *util.RobotsChecker
	log     *logger.Logger

	robotsOnce  sync.Once
	robotsErr   error
	robotsDelay time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	log := o.Logger
	if log == nil {
		log = logger.Named("wiki")
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout, Transport: o.Transport},
		opts:    o,
		limiter: o.Limiter,
		cache:   o.Cache,
		robots:  o.Robots,
		log:     log,
		sleep:   sleepCtx,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

// APIURL returns the endpoint this client talks to
func (c *Client) APIURL() string {
	return c.opts.APIURL
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get sends one API query and returns the body.
// 429 responses are retried with exponential backoff plus up to a second of jitter;
// every other failure is returned at once. The error is always a *perr.Error.
func (c *Client) Get(ctx context.Context, params url.Values) ([]byte, error) {
	if err := c.checkRobots(ctx); err != nil {
		return nil, err
	}

	target := c.opts.APIURL + "?" + params.Encode()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "request cancelled")
		}
		if c.limiter != nil {
			if err := c.limiter.WaitWithDelay(ctx, c.opts.APIURL, c.robotsDelay); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "rate limiter wait")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.log.Warn().Err(err).Str("action", params.Get("action")).Msg("http request failed")
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "http request failed")
		}

		c.log.Debug().
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", time.Since(start)).
			Msg("api response")

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			_ = resp.Body.Close()
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read body")
			}
			if c.limiter != nil {
				c.limiter.Recover(c.opts.APIURL)
			}
			return body, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			_ = drainAndClose(resp.Body)
			if attempt+1 >= c.opts.MaxRetries {
				c.log.Warn().Int("attempts", attempt+1).Msg("rate limited, retry exhausted")
				return nil, perr.Newf(perr.ErrorCodeTooManyRequests, "retry exhausted after %d attempts", attempt+1)
			}
			wait := c.backoff(attempt)
			if retryAfter > wait {
				wait = retryAfter
			}
			if c.limiter != nil {
				c.limiter.Throttle(c.opts.APIURL)
			}
			c.log.Warn().Dur("sleep", wait).Int("attempt", attempt).Msg("rate limited, backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "backoff interrupted")
			}

		default:
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			_ = resp.Body.Close()
			c.log.Warn().Int("status", resp.StatusCode).Str("body", string(tail)).Msg("unexpected status")
			return nil, perr.Unavailablef("unexpected status %d", resp.StatusCode)
		}
	}
}

// backoff is base * 2^attempt plus jitter in [0, 1s)
func (c *Client) backoff(attempt int) time.Duration {
	return c.opts.RetryBase<<uint(attempt) + c.jitter()
}

func (c *Client) checkRobots(ctx context.Context) error {
	if c.robots == nil {
		return nil
	}
	c.robotsOnce.Do(func() {
		allowed, delay, err := c.robots.CanFetch(ctx, c.opts.APIURL)
		switch {
		case err != nil:
			c.robotsErr = perr.Wrap(err, perr.ErrorCodeInvalidArgument, "robots check")
		case !allowed:
			c.robotsErr = perr.Newf(perr.ErrorCodeInvalidArgument, "%s disallowed by robots.txt", c.opts.APIURL)
		default:
			c.robotsDelay = delay
		}
	})
	return c.robotsErr
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func drainAndClose(body io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	return body.Close()
}
