package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "kis-board/internal/errors"
	"kis-board/internal/logging"
	"kis-board/internal/models"
	"kis-board/internal/security"
)

// TokenManager owns a single cached access credential and reissues it only
// after expiry. It is safe for concurrent use; concurrent callers that find
// the credential expired share one authentication call, and a caller whose
// context ends while waiting for that call returns early.
type TokenManager struct {
	baseURL    string
	appKey     string
	appSecret  string
	httpClient *http.Client
	logger     *security.SafeLogger
	now        func() time.Time

	issuing chan struct{} // one-slot semaphore held across issuance
	mu      sync.Mutex
	cred    models.Credential
}

// TokenOption configures the TokenManager.
type TokenOption func(*TokenManager)

// WithTokenHTTPClient sets a custom HTTP client.
func WithTokenHTTPClient(httpClient *http.Client) TokenOption {
	return func(m *TokenManager) {
		m.httpClient = httpClient
	}
}

// WithTokenClock sets the wall clock used for expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// WithTokenLogger sets a logger.
func WithTokenLogger(logger zerolog.Logger) TokenOption {
	return func(m *TokenManager) {
		m.logger = security.NewSafeLogger(logger).With().
			Str("component", "token").
			Str("appkey", m.appKey).
			Logger()
	}
}

// NewTokenManager creates a token manager for the given app key pair.
func NewTokenManager(baseURL, appKey, appSecret string, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		appKey:     appKey,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     security.NewSafeLogger(zerolog.Nop()),
		now:        time.Now,
		issuing:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type tokenRequest struct {
	GrantType string `json:"grant_type"`
	AppKey    string `json:"appkey"`
	AppSecret string `json:"appsecret"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// Token returns the cached token while it is valid, otherwise issues a new one.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	select {
	case m.issuing <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-m.issuing }()

	// another caller may have issued while we waited
	if token, ok := m.cached(); ok {
		return token, nil
	}

	cred, err := m.issue(ctx, m.now())
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.cred = cred
	m.mu.Unlock()

	m.logger.Info().
		Str("token", cred.Token).
		Time("expires_at", cred.ExpiresAt).
		Msg("Access token issued")

	return cred.Token, nil
}

func (m *TokenManager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred.Valid(m.now()) {
		return m.cred.Token, true
	}
	return "", false
}

// Credential returns a copy of the cached credential, possibly expired or empty.
func (m *TokenManager) Credential() models.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

func (m *TokenManager) issue(ctx context.Context, now time.Time) (models.Credential, error) {
	body, err := json.Marshal(tokenRequest{
		GrantType: "client_credentials",
		AppKey:    m.appKey,
		AppSecret: m.appSecret,
	})
	if err != nil {
		return models.Credential{}, apperrors.NewAuthError(0, "encoding token request", err)
	}

	endpoint := m.baseURL + "/" + pathToken
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Credential{}, apperrors.NewAuthError(0, "creating token request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		logging.LogAPICall(m.logger.Logger(), http.MethodPost, pathToken, "", time.Since(start), err)
		return models.Credential{}, apperrors.NewAuthError(0, "token request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	logging.LogAPICall(m.logger.Logger(), http.MethodPost, pathToken, "", time.Since(start), err)
	if err != nil {
		return models.Credential{}, apperrors.NewAuthError(resp.StatusCode, "reading token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Credential{}, apperrors.NewAuthError(resp.StatusCode, security.MaskSensitive(snippet(raw)), nil)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return models.Credential{}, apperrors.NewAuthError(resp.StatusCode, "malformed token response", err)
	}
	if tr.AccessToken == "" {
		return models.Credential{}, apperrors.NewAuthError(resp.StatusCode, "token response has no access_token", nil)
	}
	seconds, err := tr.ExpiresIn.Float64()
	if err != nil {
		return models.Credential{}, apperrors.NewAuthError(resp.StatusCode, fmt.Sprintf("invalid expires_in %q", tr.ExpiresIn), err)
	}

	return models.Credential{
		Token:     tr.AccessToken,
		ExpiresAt: now.Add(time.Duration(seconds) * time.Second),
	}, nil
}

// snippet bounds an upstream body for error messages.
func snippet(raw []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
