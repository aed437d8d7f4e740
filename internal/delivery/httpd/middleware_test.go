package httpd

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/plagiarism-service/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func actorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(service.ActorFromContext(r.Context())))
	})
}

func TestJWTAuth(t *testing.T) {
	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "prof-1",
		"iss": "auth-service",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "prof-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "x", "iss": "auth-service"}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "x", "iss": "auth-service", "exp": time.Now().Add(-time.Hour).Unix(),
		}), http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "x", "iss": "elsewhere"}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"iss": "auth-service"}), http.StatusUnauthorized, ""},
	}

	handler := JWTAuth(testSecret, "auth-service")(actorEcho())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/r1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantActor != "" && rec.Body.String() != tt.wantActor {
				t.Errorf("actor = %q, want %q", rec.Body.String(), tt.wantActor)
			}
		})
	}
}

func TestHeaderActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ExecutorHeader, "prof-2")
	rec := httptest.NewRecorder()
	HeaderActor(actorEcho()).ServeHTTP(rec, req)

	if rec.Body.String() != "prof-2" {
		t.Errorf("actor = %q, want prof-2", rec.Body.String())
	}
}

func TestRateLimiterPerExecutor(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	handler := HeaderActor(limiter.Middleware(actorEcho()))

	send := func(executor string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(ExecutorHeader, executor)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("a"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, code)
		}
	}
	if code := send("a"); code != http.StatusTooManyRequests {
		t.Errorf("over limit status = %d, want 429", code)
	}
	if code := send("b"); code != http.StatusOK {
		t.Errorf("other executor status = %d, want 200", code)
	}
}

func TestRateLimiterPrunesIdle(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(2 * time.Hour)
	limiter.Allow("b")

	if _, ok := limiter.limiters["a"]; ok {
		t.Error("idle limiter was not pruned")
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
