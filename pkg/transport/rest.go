package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/metrics"
	"github.com/marketingops/sfmc-inventory/pkg/ratelimit"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

// TokenSource supplies bearer tokens and accepts invalidation on 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Response is a successful REST call. Data is the parsed JSON body.
type Response struct {
	StatusCode int
	Data       gjson.Result
}

// RestClient calls the tenant REST API with auth, pacing and retries.
type RestClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// NewRestClient creates a REST client. timeout applies per request attempt.
func NewRestClient(baseURL string, tokens TokenSource, limiter *ratelimit.Limiter, timeout time.Duration) *RestClient {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &RestClient{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		logger:  log.WithComponent("rest"),
	}
}

// Get performs a GET against path with optional query parameters.
func (c *RestClient) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

// Post performs a POST with a JSON body.
func (c *RestClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, data)
}

func (c *RestClient) do(ctx context.Context, method, path string, params url.Values, body []byte) (*Response, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var lastErr error
	retried401 := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx, "rest"); err != nil {
			return nil, types.WrapError(types.ErrCanceled, "rate limit wait interrupted", err)
		}

		resp, data, err := c.attempt(ctx, method, u, body)
		c.limiter.Release("rest", err == nil && resp != nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests)

		if err != nil {
			// Network-level failure: retryable.
			if ctx.Err() != nil {
				return nil, types.WrapError(types.ErrCanceled, "request canceled", ctx.Err())
			}
			lastErr = err
			metrics.APIRetriesTotal.WithLabelValues("rest").Inc()
			c.sleep(ctx, backoff(attempt))
			continue
		}

		status := resp.StatusCode
		metrics.APIRequestsTotal.WithLabelValues("rest", strconv.Itoa(status/100*100)).Inc()

		switch {
		case status >= 200 && status < 300:
			if len(data) == 0 {
				return &Response{StatusCode: status, Data: gjson.Result{}}, nil
			}
			if !gjson.ValidBytes(data) {
				return nil, types.NewError(types.ErrParse, fmt.Sprintf("invalid JSON from %s %s", method, path))
			}
			return &Response{StatusCode: status, Data: gjson.ParseBytes(data)}, nil

		case status == http.StatusUnauthorized:
			if retried401 {
				return nil, types.NewError(types.ErrHTTPNonRetryable,
					fmt.Sprintf("unauthorized after token refresh on %s %s", method, path)).
					WithContext("status", "401")
			}
			// One free retry with a fresh token; does not count as an attempt.
			retried401 = true
			c.tokens.Invalidate()
			attempt--
			continue

		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited on %s %s", method, path)
			wait, ok := retryAfter(resp.Header)
			if !ok {
				wait = backoff(attempt)
			}
			c.logger.Warn().Dur("wait", wait).Str("path", path).Msg("throttled by api")
			metrics.APIRetriesTotal.WithLabelValues("rest").Inc()
			c.sleep(ctx, wait)
			continue

		case isRetryableStatus(status):
			lastErr = fmt.Errorf("server error %d on %s %s", status, method, path)
			metrics.APIRetriesTotal.WithLabelValues("rest").Inc()
			c.sleep(ctx, backoff(attempt))
			continue

		default:
			return nil, types.NewError(types.ErrHTTPNonRetryable,
				fmt.Sprintf("%s %s returned %d: %s", method, path, status, excerpt(data))).
				WithContext("status", strconv.Itoa(status))
		}
	}

	if ctx.Err() != nil {
		return nil, types.WrapError(types.ErrCanceled, "request canceled", ctx.Err())
	}
	return nil, types.WrapError(types.ErrHTTPRetryableExhausted,
		fmt.Sprintf("%s %s failed after %d attempts", method, path, maxAttempts), lastErr)
}

// attempt runs one HTTP round trip and drains the body.
func (c *RestClient) attempt(ctx context.Context, method, url string, body []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timer := metrics.NewTimer()
	resp, err := c.client.Do(req)
	timer.ObserveDurationVec(metrics.APIRequestDuration, "rest")
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, data, nil
}

func (c *RestClient) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// GetPaged iterates $page/$pageSize pagination, collecting the array at
// itemsKey from each page. Iteration stops on an empty page, a short page,
// or after maxPages.
func (c *RestClient) GetPaged(ctx context.Context, path string, params url.Values, itemsKey string, pageSize, maxPages int) ([]gjson.Result, int, error) {
	if params == nil {
		params = url.Values{}
	}
	var all []gjson.Result
	pages := 0

	for page := 1; page <= maxPages; page++ {
		params.Set("$page", strconv.Itoa(page))
		params.Set("$pageSize", strconv.Itoa(pageSize))

		resp, err := c.Get(ctx, path, params)
		if err != nil {
			return all, pages, err
		}
		pages++

		items := resp.Data.Get(itemsKey).Array()
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		if len(items) < pageSize {
			break
		}
		if count := resp.Data.Get("count"); count.Exists() && int64(len(all)) >= count.Int() {
			break
		}
	}
	return all, pages, nil
}

func excerpt(data []byte) string {
	const limit = 200
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
