package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"binance-futures-client/internal/logging"
	"binance-futures-client/internal/metrics"
)

// Retry configuration for API calls
const (
	defaultMaxRetries     = 3
	defaultBaseRetryDelay = 500 * time.Millisecond
	maxRetryDelay         = 5 * time.Second
	defaultRecvWindow     = 5000
	defaultTimeout        = 10 * time.Second
)

// Security is the authentication level an endpoint requires
type Security int

const (
	SecurityNone   Security = iota // public market data
	SecurityAPIKey                 // X-MBX-APIKEY header only (listen keys)
	SecuritySigned                 // header + timestamp + HMAC signature
)

// Options configures a Client
type Options struct {
	APIKey         string
	SecretKey      string
	Testnet        bool
	BaseURL        string // overrides Testnet when set
	RecvWindow     int64  // milliseconds
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	HTTPClient     *http.Client
	Limiter        *RateLimiter
	Logger         zerolog.Logger
}

// Client is the signed request executor for the USD-M futures REST API
type Client struct {
	apiKey     string
	secretKey  string
	baseURL    string
	recvWindow int64
	maxRetries int
	retryBase  time.Duration
	httpClient *http.Client
	limiter    *RateLimiter
	logger     zerolog.Logger
	now        func() time.Time
}

// NewClient creates a new Client
func NewClient(opts Options) *Client {
	baseURL := FuturesBaseURL
	if opts.Testnet {
		baseURL = FuturesTestnetURL
	}
	if opts.BaseURL != "" {
		baseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	recvWindow := opts.RecvWindow
	if recvWindow <= 0 {
		recvWindow = defaultRecvWindow
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryBase := opts.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultBaseRetryDelay
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	// Trim any whitespace from keys - critical for signature generation
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		secretKey:  strings.TrimSpace(opts.SecretKey),
		baseURL:    baseURL,
		recvWindow: recvWindow,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		logger:     opts.Logger.With().Str("component", "binance-client").Logger(),
		now:        time.Now,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Limiter returns the attached rate limiter, or nil
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// Call performs one logical API call. Signed calls are timestamped and signed on
// every attempt.
func (c *Client) Call(ctx context.Context, method, path string, params Params, signed bool) (json.RawMessage, error) {
	security := SecurityNone
	if signed {
		security = SecuritySigned
	}
	return c.Do(ctx, method, path, params, security)
}

// Do performs a call at an explicit security level
func (c *Client) Do(ctx context.Context, method, path string, params Params, security Security) (json.RawMessage, error) {
	method = strings.ToUpper(method)
	params = params.Compact()

	if security == SecuritySigned && (c.apiKey == "" || c.secretKey == "") {
		return nil, ErrMissingCredentials
	}
	if security == SecurityAPIKey && c.apiKey == "" {
		return nil, ErrMissingCredentials
	}

	log := logging.BinanceAPIContext(logging.FromContext(ctx, c.logger), method, path, params)
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.APIRequestDuration, method, path)

	attempts := 0
	var body []byte

	operation := func() error {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, path); err != nil {
				if errors.Is(err, ErrCircuitOpen) {
					metrics.RecordCircuitOpen()
				}
				return backoff.Permanent(err)
			}
		}

		resp, err := c.attempt(ctx, method, path, params, security)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		body = resp
		return nil
	}

	notify := func(err error, delay time.Duration) {
		metrics.RecordAPIRetry(path)
		log.Warn().
			Err(err).
			Int("attempt", attempts).
			Int("max_attempts", c.maxRetries+1).
			Dur("retry_in", delay).
			Msg("Request failed, retrying")
	}

	err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify)
	if err == nil {
		metrics.RecordAPIRequest(method, path, "success")
		return body, nil
	}

	var apiErr *APIError
	switch {
	case errors.Is(err, ErrCircuitOpen):
		metrics.RecordAPIRequest(method, path, "blocked")
		return nil, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.RecordAPIRequest(method, path, "canceled")
		return nil, err
	case errors.As(err, &apiErr) && !isRetryable(apiErr.StatusCode, apiErr.Code):
		metrics.RecordAPIRequest(method, path, "api_error")
		metrics.RecordAPIError(path, apiErr.Code)
		return nil, apiErr
	}

	metrics.RecordAPIRequest(method, path, "transport_error")
	log.Error().Err(err).Int("attempts", attempts).Msg("Request failed after retries")
	return nil, &TransportError{Attempts: attempts, Err: err}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.MaxInterval = maxRetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
}

// attempt sends a single HTTP request. Non-retryable API errors are wrapped as
// permanent so the retry loop stops.
func (c *Client) attempt(ctx context.Context, method, path string, params Params, security Security) ([]byte, error) {
	query := c.buildQuery(params, security)
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	sendInBody := method == http.MethodPost || method == http.MethodPut
	if sendInBody && query != "" {
		bodyReader = strings.NewReader(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("error building request: %w", err))
	}
	if !sendInBody {
		req.URL.RawQuery = query
	} else if bodyReader != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if security != SecurityNone {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	c.observeHeaders(resp.Header)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if c.limiter != nil {
			c.limiter.RecordSuccess()
		}
		if len(body) == 0 {
			body = []byte("{}")
		}
		return body, nil
	}

	apiErr := parseAPIError(resp.StatusCode, body)
	if c.limiter != nil {
		c.recordRateLimit(ctx, resp, apiErr)
	}

	if isRetryable(apiErr.StatusCode, apiErr.Code) {
		return nil, apiErr
	}
	return nil, backoff.Permanent(apiErr)
}

// recordRateLimit feeds rate limit answers to the limiter. A 418 or an explicit
// ban deadline opens the circuit; a plain 429 pauses for Retry-After and the
// request is retried.
func (c *Client) recordRateLimit(ctx context.Context, resp *http.Response, apiErr *APIError) {
	banUntil := ParseBanUntilFromError(apiErr.Message)
	switch {
	case resp.StatusCode == http.StatusTeapot || banUntil > 0:
		c.limiter.RecordRateLimitError(ctx, banUntil)
	case resp.StatusCode == http.StatusTooManyRequests || apiErr.Code == ErrCodeTooManyRequests:
		c.limiter.RecordThrottle(ctx, parseRetryAfter(resp.Header.Get("Retry-After"), c.now()))
	}
}

// parseRetryAfter reads a Retry-After value in seconds or as an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func (c *Client) observeHeaders(h http.Header) {
	usedWeight := h.Get("X-MBX-USED-WEIGHT-1M")
	if usedWeight == "" {
		return
	}
	weight, err := strconv.Atoi(usedWeight)
	if err != nil {
		return
	}
	metrics.RecordWeightUsed(weight)
	if c.limiter != nil {
		c.limiter.UpdateFromHeaders(weight)
	}
}

// buildQuery encodes params for the wire, adding timestamp, recvWindow and the
// signature for signed calls
func (c *Client) buildQuery(params Params, security Security) string {
	if security != SecuritySigned {
		return params.encode()
	}

	signed := params.Clone()
	signed["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
	if !signed.Has("recvWindow") {
		signed["recvWindow"] = strconv.FormatInt(c.recvWindow, 10)
	}
	delete(signed, "signature")

	query := signed.encode()
	return query + "&signature=" + c.sign(query)
}

// sign creates HMAC SHA256 signature
func (c *Client) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}
