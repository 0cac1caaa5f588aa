package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "kis-board/internal/errors"
)

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTokenServer serves the token endpoint and counts issuances.
func newTokenServer(t *testing.T, expiresIn interface{}) (*httptest.Server, *int64) {
	t.Helper()
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+pathToken || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.GrantType != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		n := atomic.AddInt64(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "token-" + string(rune('a'+n-1)),
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTokenManager_ReusesUntilExpiry(t *testing.T) {
	srv, calls := newTokenServer(t, 86400)
	clock := newFakeClock()
	m := NewTokenManager(srv.URL, "key", "secret", WithTokenClock(clock.Now))
	ctx := context.Background()

	first, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	clock.Advance(23 * time.Hour)
	second, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if first != second {
		t.Errorf("token rotated inside validity window: %q -> %q", first, second)
	}
	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("auth calls = %d, want 1", got)
	}

	// expiry is exclusive: exactly at expiresAt a new token is issued
	clock.Advance(time.Hour)
	third, err := m.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if third == first {
		t.Error("expected a fresh token after expiry")
	}
	if got := atomic.LoadInt64(calls); got != 2 {
		t.Errorf("auth calls = %d, want 2", got)
	}
}

func TestTokenManager_AcceptsStringExpiry(t *testing.T) {
	srv, _ := newTokenServer(t, "3600")
	clock := newFakeClock()
	m := NewTokenManager(srv.URL, "key", "secret", WithTokenClock(clock.Now))

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	want := clock.Now().Add(time.Hour)
	if got := m.Credential().ExpiresAt; !got.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got, want)
	}
}

func TestTokenManager_ConcurrentCallersShareOneIssue(t *testing.T) {
	srv, calls := newTokenServer(t, 86400)
	m := NewTokenManager(srv.URL, "key", "secret")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Token(context.Background()); err != nil {
				t.Errorf("Token() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(calls); got != 1 {
		t.Errorf("auth calls = %d, want 1", got)
	}
}

func TestTokenManager_WaiterHonoursContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "slow-token",
			"expires_in":   86400,
		})
	}))
	defer srv.Close()
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	m := NewTokenManager(srv.URL, "key", "secret")

	first := make(chan error, 1)
	go func() {
		_, err := m.Token(context.Background())
		first <- err
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := m.Token(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waiting Token() error = %v, want DeadlineExceeded", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("waiter blocked for %v", waited)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("issuing Token() error = %v", err)
	}
	token, err := m.Token(context.Background())
	if err != nil || token != "slow-token" {
		t.Errorf("Token() = %q, %v", token, err)
	}
}

func TestTokenManager_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"rejected", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error_code":"EGW00103","appsecret":"topsecretvalue"}`, http.StatusForbidden)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"missing token", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"expires_in":86400}`))
		}},
		{"missing expiry", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"abc"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			m := NewTokenManager(srv.URL, "key", "secret")
			_, err := m.Token(context.Background())
			if !errors.Is(err, apperrors.ErrAuthFailure) {
				t.Fatalf("Token() error = %v, want ErrAuthFailure", err)
			}
			var authErr *apperrors.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("error is not an AuthError: %T", err)
			}
			if cred := m.Credential(); cred.Token != "" {
				t.Errorf("failed issue cached a token: %+v", cred)
			}
		})
	}
}

func TestTokenManager_MasksSecretsInErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `appsecret=topsecretvalue1234`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewTokenManager(srv.URL, "key", "secret").Token(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); strings.Contains(got, "topsecretvalue1234") {
		t.Errorf("secret leaked into error: %s", got)
	}
}

// Property: for any sequence of calls inside the validity window at most one
// authentication call occurs; the first call after expiry adds exactly one.
func TestProperty_TokenReuseWithinWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("one issue per validity window", prop.ForAll(
		func(steps []int) bool {
			srv, calls := newTokenServer(t, 3600)
			clock := newFakeClock()
			m := NewTokenManager(srv.URL, "key", "secret", WithTokenClock(clock.Now))
			ctx := context.Background()

			if _, err := m.Token(ctx); err != nil {
				return false
			}
			// every step is under a minute; keep the total inside the hour
			elapsed := 0
			for _, s := range steps {
				if elapsed+s >= 3600 {
					break
				}
				elapsed += s
				clock.Advance(time.Duration(s) * time.Second)
				if _, err := m.Token(ctx); err != nil {
					return false
				}
			}
			if atomic.LoadInt64(calls) != 1 {
				return false
			}

			clock.Advance(time.Duration(3600-elapsed) * time.Second)
			if _, err := m.Token(ctx); err != nil {
				return false
			}
			if _, err := m.Token(ctx); err != nil {
				return false
			}
			return atomic.LoadInt64(calls) == 2
		},
		gen.SliceOf(gen.IntRange(0, 59)),
	))

	properties.TestingRun(t)
}
