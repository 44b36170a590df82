package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/labelman/internal/metrics"
	"github.com/hitoshi/labelman/internal/model"
)

// mockTokenValidator はテスト用のトークン検証モック。
type mockTokenValidator struct {
	validateFn func(tokenString string) (string, error)
}

func (m *mockTokenValidator) Validate(tokenString string) (string, error) {
	if m.validateFn != nil {
		return m.validateFn(tokenString)
	}
	return "sub-123", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRouter(validator *mockTokenValidator) http.Handler {
	if validator == nil {
		validator = &mockTokenValidator{}
	}
	reg := prometheus.NewRegistry()
	return NewRouter(&RouterDeps{
		TokenValidator:    validator,
		CORSAllowedOrigin: "http://localhost:3000",
		Logger:            discardLogger(),
		AuthService:       &mockAuthService{},
		LabelService:      &mockLabelService{},
		Metrics:           metrics.NewCollector(reg),
		MetricsGatherer:   reg,
	})
}

// ヘルスチェックが認証なしで応答することを検証
func TestRouter_Health_NoAuthRequired(t *testing.T) {
	router := newTestRouter(nil)

	for _, path := range []string{"/health", "/api/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}

		var body healthResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("%s: failed to decode body: %v", path, err)
		}
		if body.Status != "ok" {
			t.Errorf("%s: status = %q, want ok", path, body.Status)
		}
	}
}

// ログインエンドポイントが認証なしで到達できることを検証
func TestRouter_Login_NoAuthRequired(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google",
		strings.NewReader(`{"credential": "google-credential"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// 保護ルートがBearerトークンなしで401を返すことを検証
func TestRouter_ProtectedRoutes_RequireAuth(t *testing.T) {
	router := newTestRouter(&mockTokenValidator{
		validateFn: func(_ string) (string, error) {
			return "", model.NewTokenInvalidError()
		},
	})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/images/next"},
		{http.MethodPost, "/api/labels"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, http.StatusUnauthorized)
		}
	}
}

// 有効なBearerトークンで保護ルートに到達できることを検証
func TestRouter_ProtectedRoute_WithValidToken(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// /metricsが認証なしでPrometheus形式を返すことを検証
func TestRouter_Metrics_Exposed(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// CORSヘッダーが全ルートに付与されることを検証
func TestRouter_CORSHeadersApplied(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q, want http://localhost:3000", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
