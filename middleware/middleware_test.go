package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/queridometro/config"
	"github.com/cppla/queridometro/usecase"
	"github.com/cppla/queridometro/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(2), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	// burst is max(2/2, 1) = 1
	if do("10.0.0.1") != http.StatusOK {
		t.Fatal("first request limited")
	}
	if do("10.0.0.1") != http.StatusTooManyRequests {
		t.Fatal("second request not limited")
	}
	if do("10.0.0.2") != http.StatusOK {
		t.Fatal("other IP must have its own bucket")
	}
}

func TestAuthAndAdminGates(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "k"})
	r := gin.New()
	r.GET("/me", AuthRequired(nil), func(c *gin.Context) { c.String(http.StatusOK, CurrentName(c)) })
	r.GET("/admin", AuthRequired(nil), AdminRequired([]string{"erica"}), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	erica, _, _ := utils.GenerateToken(1, "Érica", 1, time.Hour)
	ana, _, _ := utils.GenerateToken(2, "Ana", 1, time.Hour)

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"valid", "/me", "Bearer " + ana, http.StatusOK},
		{"admin ok", "/admin", "Bearer " + erica, http.StatusOK},
		{"admin denied", "/admin", "Bearer " + ana, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(tt.path, tt.header); w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
	if w := do("/me", "Bearer "+ana); w.Body.String() != "Ana" {
		t.Fatalf("CurrentName = %q", w.Body.String())
	}
}

// versions is a TokenChecker keyed by name.
type versions map[string]uint

func (v versions) CheckToken(_ context.Context, name string, version uint) error {
	if name == "Davi" {
		return fmt.Errorf("%w: db down", usecase.ErrPersistence)
	}
	if cur, ok := v[name]; !ok || cur != version {
		return errors.New("stale")
	}
	return nil
}

func TestAuthRejectsTokensFromOlderCredentials(t *testing.T) {
	config.Set(config.AppConfig{JWTSecret: "k"})
	r := gin.New()
	r.GET("/me", AuthRequired(versions{"Ana": 2}), func(c *gin.Context) { c.Status(http.StatusOK) })

	current, _, _ := utils.GenerateToken(2, "Ana", 2, time.Hour)
	old, _, _ := utils.GenerateToken(2, "Ana", 1, time.Hour)
	gone, _, _ := utils.GenerateToken(3, "Bruno", 1, time.Hour)
	broken, _, _ := utils.GenerateToken(4, "Davi", 1, time.Hour)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"current version", current, http.StatusOK},
		{"older version", old, http.StatusUnauthorized},
		{"member without credential", gone, http.StatusUnauthorized},
		{"store failure", broken, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}
