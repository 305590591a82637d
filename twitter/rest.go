package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/time/rate"

	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/metric"
	"github.com/kilroybot/kilroy-face-twitter/pkg/retry"
)

const (
	defaultAPIBaseURL    = "https://api.twitter.com"
	defaultUploadBaseURL = "https://upload.twitter.com"
	defaultHTTPTimeout   = 30 * time.Second

	// maxErrorBody caps how much of an error response is read for
	// diagnostics.
	maxErrorBody = 8 << 10
)

// RestClient implements Client against the HTTP API. Requests are signed
// with OAuth 1.0a, paced by a client-side rate limiter, and retried with
// backoff on transient failures (429, 5xx, network errors). Permanent
// failures (auth, not found, malformed requests) fail immediately.
type RestClient struct {
	api           *http.Client
	plain         *http.Client
	baseURL       string
	uploadBaseURL string
	limiter       *rate.Limiter
	retryConfig   retry.Config
	metrics       *metric.Metrics
	logger        *slog.Logger

	meMu sync.Mutex
	me   *User
}

// RestOption configures a RestClient.
type RestOption func(*RestClient)

// WithBaseURLs overrides the API and upload endpoints. Tests point these at
// local servers.
func WithBaseURLs(api, upload string) RestOption {
	return func(c *RestClient) {
		if api != "" {
			c.baseURL = api
		}
		if upload != "" {
			c.uploadBaseURL = upload
		}
	}
}

// WithClientLogger sets the logger for request-level diagnostics.
func WithClientLogger(logger *slog.Logger) RestOption {
	return func(c *RestClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClientMetrics enables API traffic metrics.
func WithClientMetrics(metrics *metric.Metrics) RestOption {
	return func(c *RestClient) {
		c.metrics = metrics
	}
}

// WithRateLimit overrides the client-side pacing of API calls.
func WithRateLimit(limit rate.Limit, burst int) RestOption {
	return func(c *RestClient) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRetryConfig overrides the backoff policy for transient failures.
func WithRetryConfig(cfg retry.Config) RestOption {
	return func(c *RestClient) {
		c.retryConfig = cfg
	}
}

// NewRestClient builds a client signing requests with the given user
// context.
func NewRestClient(creds Credentials, opts ...RestOption) *RestClient {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	api := config.Client(context.Background(), token)
	api.Timeout = defaultHTTPTimeout

	client := &RestClient{
		api:           api,
		plain:         &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:       defaultAPIBaseURL,
		uploadBaseURL: defaultUploadBaseURL,
		limiter:       rate.NewLimiter(rate.Limit(1), 3),
		retryConfig:   retry.DefaultConfig(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = client.logger.With("component", "twitter-client")
	return client
}

// CreateTweet publishes a draft and returns the created tweet.
func (c *RestClient) CreateTweet(ctx context.Context, draft Draft) (Tweet, error) {
	payload := map[string]any{}
	if draft.Text != "" {
		payload["text"] = draft.Text
	}
	if len(draft.MediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": draft.MediaIDs}
	}
	if len(payload) == 0 {
		return Tweet{}, errors.WrapInvalid(errors.ErrEmptyPost,
			"RestClient", "CreateTweet", "draft validation")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Tweet{}, errors.WrapInvalid(err, "RestClient", "CreateTweet", "draft encoding")
	}

	var out struct {
		Data Tweet `json:"data"`
	}
	err = c.doJSON(ctx, "CreateTweet", "tweets", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/2/tweets", bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &out)
	if err != nil {
		return Tweet{}, err
	}
	return out.Data, nil
}

// GetTweet fetches one tweet by id with the requested field groups.
func (c *RestClient) GetTweet(ctx context.Context, id int64, fields Fields) (Tweet, Includes, error) {
	q := url.Values{}
	fields.Encode(q)

	target := fmt.Sprintf("%s/2/tweets/%d", c.baseURL, id)
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var out struct {
		Data     Tweet    `json:"data"`
		Includes Includes `json:"includes"`
	}
	err := c.doJSON(ctx, "GetTweet", "tweets/lookup", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, &out)
	if err != nil {
		return Tweet{}, Includes{}, err
	}
	return out.Data, out.Includes, nil
}

// GetMe returns the authenticated account. The result is cached for the
// client's lifetime; the account behind a credential set does not change.
func (c *RestClient) GetMe(ctx context.Context) (User, error) {
	c.meMu.Lock()
	if c.me != nil {
		me := *c.me
		c.meMu.Unlock()
		return me, nil
	}
	c.meMu.Unlock()

	var out struct {
		Data User `json:"data"`
	}
	err := c.doJSON(ctx, "GetMe", "users/me", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+"/2/users/me", nil)
	}, &out)
	if err != nil {
		return User{}, err
	}

	c.meMu.Lock()
	c.me = &out.Data
	c.meMu.Unlock()
	return out.Data, nil
}

// HomeTimeline fetches one page of the authenticated account's home
// timeline.
func (c *RestClient) HomeTimeline(ctx context.Context, query TimelineQuery) (Timeline, error) {
	me, err := c.GetMe(ctx)
	if err != nil {
		return Timeline{}, err
	}

	q := url.Values{}
	query.Fields.Encode(q)
	if query.StartTime != nil {
		q.Set("start_time", query.StartTime.UTC().Format(time.RFC3339))
	}
	if query.EndTime != nil {
		q.Set("end_time", query.EndTime.UTC().Format(time.RFC3339))
	}
	if query.PaginationToken != "" {
		q.Set("pagination_token", query.PaginationToken)
	}

	target := fmt.Sprintf("%s/2/users/%d/timelines/reverse_chronological", c.baseURL, me.ID)
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var out struct {
		Data     []Tweet  `json:"data"`
		Includes Includes `json:"includes"`
		Meta     struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	err = c.doJSON(ctx, "HomeTimeline", "timeline", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}, &out)
	if err != nil {
		return Timeline{}, err
	}
	return Timeline{
		Tweets:    out.Data,
		Includes:  out.Includes,
		NextToken: out.Meta.NextToken,
	}, nil
}

// UploadMedia uploads raw bytes through the v1.1 media endpoint and returns
// the media id for use in a Draft.
func (c *RestClient) UploadMedia(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.WrapInvalid(errors.ErrMediaUpload,
			"RestClient", "UploadMedia", "empty media validation")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filename)
	if err == nil {
		_, err = part.Write(data)
	}
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		return "", errors.Wrap(err, "RestClient", "UploadMedia", "multipart encoding")
	}
	raw := body.Bytes()

	var out struct {
		MediaID       int64  `json:"media_id"`
		MediaIDString string `json:"media_id_string"`
	}
	err = c.doJSON(ctx, "UploadMedia", "media/upload", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.uploadBaseURL+"/1.1/media/upload.json", bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	}, &out)
	if err != nil {
		return "", err
	}

	if out.MediaIDString != "" {
		return out.MediaIDString, nil
	}
	return strconv.FormatInt(out.MediaID, 10), nil
}

// DownloadImage fetches the raw bytes behind a media URL. Downloads go
// through an unsigned client; media URLs are public CDN links outside the
// API's rate limits.
func (c *RestClient) DownloadImage(ctx context.Context, rawURL string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.retryConfig, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, retry.NonRetryable(errors.WrapInvalid(err,
				"RestClient", "DownloadImage", "request creation"))
		}

		start := time.Now()
		resp, err := c.plain.Do(req)
		if err != nil {
			c.recordRequest("download", "error", time.Since(start))
			return nil, errors.WrapTransient(err,
				"RestClient", "DownloadImage", "request execution")
		}
		defer resp.Body.Close()
		c.recordRequest("download", strconv.Itoa(resp.StatusCode), time.Since(start))

		if resp.StatusCode != http.StatusOK {
			return nil, c.statusError("DownloadImage", resp.StatusCode,
				fmt.Sprintf("status %d for %s", resp.StatusCode, rawURL))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.WrapTransient(err,
				"RestClient", "DownloadImage", "body read")
		}
		return data, nil
	})
}

// doJSON runs one API call with pacing, retry, and JSON decoding. The build
// function is invoked once per attempt so request bodies are fresh readers.
func (c *RestClient) doJSON(
	ctx context.Context,
	op, endpoint string,
	build func() (*http.Request, error),
	out any,
) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.NonRetryable(errors.Wrap(err, "RestClient", op, "rate limit wait"))
		}

		req, err := build()
		if err != nil {
			return retry.NonRetryable(errors.WrapInvalid(err, "RestClient", op, "request creation"))
		}

		start := time.Now()
		resp, err := c.api.Do(req)
		if err != nil {
			c.recordRequest(endpoint, "error", time.Since(start))
			return errors.WrapTransient(err, "RestClient", op, "request execution")
		}
		defer resp.Body.Close()
		c.recordRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			detail := readAPIMessage(resp.Body)
			if resp.StatusCode == http.StatusTooManyRequests {
				if c.metrics != nil {
					c.metrics.RecordRateLimited()
				}
				c.logger.Warn("rate limited", "endpoint", endpoint)
			}
			return c.statusError(op, resp.StatusCode, detail)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.NonRetryable(errors.WrapInvalid(err, "RestClient", op, "response decoding"))
		}
		return nil
	})
}

// statusError maps an HTTP status to a classified error. Transient statuses
// come back bare so the retry loop picks them up; permanent ones are marked
// non-retryable.
func (c *RestClient) statusError(op string, status int, detail string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return errors.WrapTransient(
			fmt.Errorf("%w: %s", errors.ErrRateLimited, detail),
			"RestClient", op, "rate limit handling")
	case status >= 500:
		return errors.WrapTransient(
			fmt.Errorf("%w: %s", errors.ErrServiceUnavailable, detail),
			"RestClient", op, "server response handling")
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return retry.NonRetryable(errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrUnauthorized, detail),
			"RestClient", op, "authentication"))
	case status == http.StatusNotFound:
		return retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNotFound, detail),
			"RestClient", op, "resource lookup"))
	default:
		return retry.NonRetryable(errors.WrapInvalid(
			fmt.Errorf("unexpected status %d: %s", status, detail),
			"RestClient", op, "response handling"))
	}
}

func (c *RestClient) recordRequest(endpoint, status string, duration time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordAPIRequest(endpoint, status, duration)
	}
	c.logger.Debug("api request",
		"endpoint", endpoint,
		"status", status,
		"duration", duration,
	)
}

type apiErrorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// readAPIMessage extracts a human-readable failure description from an error
// response body.
func readAPIMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}

	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Detail != "":
			return body.Detail
		case body.Title != "":
			return body.Title
		case len(body.Errors) > 0 && body.Errors[0].Message != "":
			return body.Errors[0].Message
		}
	}
	return string(bytes.TrimSpace(raw))
}
