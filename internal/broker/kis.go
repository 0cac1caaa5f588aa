package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/logging"
	"kis-board/internal/resilience"
	"kis-board/internal/security"
	"kis-board/pkg/utils"
)

const (
	// DefaultBaseURL is the production endpoint of the quote API.
	DefaultBaseURL = "https://openapi.koreainvestment.com:9443"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 15
)

// KISClient is a read-only client for the quote API.
type KISClient struct {
	baseURL    string
	appKey     string
	appSecret  string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
	now        func() time.Time
	loc        *time.Location
	breaker    *resilience.CircuitBreaker
}

// ClientOption configures the KISClient.
type ClientOption func(*KISClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *KISClient) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *KISClient) {
		c.logger = logging.WithComponent(logger, "kis")
	}
}

// WithRateLimit sets a custom rate limit. Zero disables limiting.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *KISClient) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithClock sets the clock used for snapshot query dates.
func WithClock(now func() time.Time) ClientOption {
	return func(c *KISClient) {
		c.now = now
	}
}

// WithLocation sets the timezone of snapshot query dates.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *KISClient) {
		c.loc = loc
	}
}

// WithCircuitBreaker fails calls fast while the upstream keeps failing.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *KISClient) {
		c.breaker = cb
	}
}

// NewCircuitBreaker returns a breaker that trips on transport failures and
// 5xx answers only. Business rejections and malformed bodies mean the
// upstream is alive.
func NewCircuitBreaker(failures int, cooldown time.Duration) *resilience.CircuitBreaker {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = failures
	if cooldown > 0 {
		cfg.Timeout = cooldown
	}
	cfg.Trips = func(err error) bool {
		var apiErr *apperrors.APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode >= 500
		}
		var dataErr *apperrors.DataError
		return !errors.As(err, &dataErr)
	}
	return resilience.NewCircuitBreaker("kis", cfg)
}

// NewKISClient creates a new quote API client.
func NewKISClient(baseURL, appKey, appSecret string, tokens TokenSource, opts ...ClientOption) *KISClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &KISClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		appKey:    appKey,
		appSecret: appSecret,
		tokens:    tokens,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  zerolog.Nop(),
		now:     time.Now,
		loc:     utils.KoreaLocation,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// request describes one upstream GET.
type request struct {
	path     string
	trID     string
	custType bool // chart and index reports require custtype=P
	params   url.Values
}

// envelope carries the business result code present on most responses.
type envelope struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
}

// get performs a GET request and decodes the body into result.
func (c *KISClient) get(ctx context.Context, r request, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	if c.breaker == nil {
		return c.do(ctx, token, r, result)
	}
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, token, r, result)
	})
}

// do sends one authorised request.
func (c *KISClient) do(ctx context.Context, token string, r request, result interface{}) error {
	reqURL := c.baseURL + "/" + r.path
	if len(r.params) > 0 {
		reqURL += "?" + r.params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Headers are rebuilt per call; the token may have rotated.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appKey", c.appKey)
	req.Header.Set("appSecret", c.appSecret)
	req.Header.Set("tr_id", r.trID)
	if r.custType {
		req.Header.Set("custtype", "P")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogAPICall(logging.FromContext(ctx, c.logger), http.MethodGet, r.path, r.trID, time.Since(start), err)
		return fmt.Errorf("%w: %s: %v", apperrors.ErrUpstreamRequest, r.trID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	logging.LogAPICall(logging.FromContext(ctx, c.logger), http.MethodGet, r.path, r.trID, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", apperrors.ErrUpstreamRequest, r.trID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewAPIError(resp.StatusCode, r.trID, r.path, "", security.MaskSensitive(snippet(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperrors.NewDataError(r.trID, r.params.Get(symbolParam(r)), "malformed response body", err)
	}
	if env.RtCd != "" && env.RtCd != "0" {
		return apperrors.NewAPIError(resp.StatusCode, r.trID, r.path, env.MsgCd, env.Msg1)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return apperrors.NewDataError(r.trID, r.params.Get(symbolParam(r)), "unexpected response shape", err)
	}

	return nil
}

// symbolParam names the query parameter that carries the security code.
func symbolParam(r request) string {
	switch r.trID {
	case TrDomesticPrice:
		return "fid_input_iscd"
	case TrForeignPrice:
		return "SYMB"
	default:
		return "FID_INPUT_ISCD"
	}
}

// parseNumber parses a numeric string field. Empty or unparsable values are
// reported as a DataError.
func parseNumber(dataType, symbol, field, value string) (float64, error) {
	v := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if v == "" {
		return 0, apperrors.NewDataError(dataType, symbol, fmt.Sprintf("missing field %s", field), nil)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, apperrors.NewDataError(dataType, symbol, fmt.Sprintf("invalid field %s=%q", field, value), err)
	}
	return f, nil
}
