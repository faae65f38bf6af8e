package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	pkgredis "github.com/radarprecios/radarprecios-backend/pkg/redis"
)

// windowStore counts hits per scope and reports half the window remaining.
type windowStore struct {
	hits map[string]int64
	err  error
}

func (s *windowStore) Hit(_ context.Context, scope string, window time.Duration) (pkgredis.Window, error) {
	if s.err != nil {
		return pkgredis.Window{}, s.err
	}
	if s.hits == nil {
		s.hits = map[string]int64{}
	}
	s.hits[scope]++
	return pkgredis.Window{Count: s.hits[scope], ResetIn: window / 2}, nil
}

type loginAttempt struct {
	remote, forwarded, email string
}

func (a loginAttempt) request() *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"`+a.email+`","password":"x"}`))
	req.RemoteAddr = a.remote
	if a.forwarded != "" {
		req.Header.Set("X-Forwarded-For", a.forwarded)
	}
	return req
}

func TestAuthRateLimit(t *testing.T) {
	tests := []struct {
		name       string
		ipLimit    int
		emailLimit int
		attempts   []loginAttempt
		wantCodes  []int
		wantScope  string
		wantHits   int64
	}{
		{
			name:      "under the limit keeps the body readable",
			ipLimit:   2,
			attempts:  []loginAttempt{{remote: "1.2.3.4:5678", email: "ana@radar.test"}},
			wantCodes: []int{http.StatusOK},
			wantScope: "ip:login:1.2.3.4",
			wantHits:  1,
		},
		{
			name:       "email variants share one counter",
			emailLimit: 2,
			attempts: []loginAttempt{
				{remote: "10.0.0.1:1", email: "blocked@radar.test"},
				{remote: "10.0.0.2:1", email: "BLOCKED@radar.test"},
				{remote: "10.0.0.3:1", email: "  Blocked@Radar.Test "},
			},
			wantCodes: []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests},
			wantScope: "email:login:" + hashEmail("blocked@radar.test"),
			wantHits:  3,
		},
		{
			name:    "first forwarded hop is the client",
			ipLimit: 1,
			attempts: []loginAttempt{
				{remote: "10.0.0.9:1", forwarded: "9.9.9.9, 10.0.0.1", email: "a@radar.test"},
				{remote: "10.0.0.9:1", forwarded: "9.9.9.9", email: "b@radar.test"},
			},
			wantCodes: []int{http.StatusOK, http.StatusTooManyRequests},
			wantScope: "ip:login:9.9.9.9",
			wantHits:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &windowStore{}
			policy := NewAuthRateLimitPolicy("login", time.Minute, tt.ipLimit, tt.emailLimit)
			handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				if !strings.Contains(string(body), `"password":"x"`) {
					t.Fatalf("downstream lost the body: %s", body)
				}
				w.WriteHeader(http.StatusOK)
			}))

			for i, attempt := range tt.attempts {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, attempt.request())
				if rec.Code != tt.wantCodes[i] {
					t.Fatalf("attempt %d: expected %d, got %d", i, tt.wantCodes[i], rec.Code)
				}
				if rec.Code != http.StatusTooManyRequests {
					continue
				}
				if got := rec.Header().Get("Retry-After"); got != "30" {
					t.Fatalf("expected Retry-After 30, got %q", got)
				}
				if !strings.Contains(rec.Body.String(), string(pkgerrors.CodeRateLimit)) {
					t.Fatalf("expected rate limit code, got %s", rec.Body.String())
				}
			}
			if got := store.hits[tt.wantScope]; got != tt.wantHits {
				t.Fatalf("expected %d hits on %s, got %v", tt.wantHits, tt.wantScope, store.hits)
			}
		})
	}
}

func TestAuthRateLimitStoreFailure(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 5, 0)
	handler := AuthRateLimit(policy, &windowStore{err: errors.New("redis down")}, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, loginAttempt{remote: "1.2.3.4:1", email: "a@radar.test"}.request())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the counter store fails, got %d", rec.Code)
	}
}

func TestAuthRateLimitPassThrough(t *testing.T) {
	cases := map[string]func(http.Handler) http.Handler{
		"no store":    AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 1, 1), nil, nil),
		"zero limits": AuthRateLimit(NewAuthRateLimitPolicy("login", time.Minute, 0, 0), &windowStore{}, nil),
		"zero window": AuthRateLimit(NewAuthRateLimitPolicy("login", 0, 1, 1), &windowStore{}, nil),
	}
	for name, mw := range cases {
		handler := mw(okHandler())
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, loginAttempt{remote: "1.2.3.4:1", email: "a@radar.test"}.request())
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: expected pass through, got %d", name, rec.Code)
			}
		}
	}
}
