package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/models"
	"github.com/talclub-next/internal/service"

	"github.com/gin-gonic/gin"
)

func newMiddlewareTestAuth(t *testing.T) *service.AuthService {
	t.Helper()

	cfg := &config.Config{
		JWT:       config.JWTConfig{SecretKey: "middleware-test-admin-secret-key-0001", ExpireHours: 1},
		MemberJWT: config.JWTConfig{SecretKey: "middleware-test-member-secret-key-0001", ExpireHours: 1},
	}
	return service.NewAuthService(cfg, nil, nil)
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	if generated := strings.TrimSpace(w2.Header().Get(requestIDHeader)); generated == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func TestAdminJWTMiddlewareAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newMiddlewareTestAuth(t)

	admin := &models.Admin{Username: "ops"}
	admin.ID = 3
	token, _, err := auth.GenerateAdminJWT(admin)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	r := gin.New()
	r.Use(AdminJWTMiddleware(auth))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_id": c.GetUint("admin_id")})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d, body %s", w.Code, w.Body.String())
	}
	var resp map[string]uint
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["admin_id"] != 3 {
		t.Fatalf("admin id want 3 got %d", resp["admin_id"])
	}
}

func TestAdminJWTMiddlewareRejectsBadAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := newMiddlewareTestAuth(t)

	r := gin.New()
	r.Use(AdminJWTMiddleware(auth))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "Token abc"},
		{"invalid", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: transport status want 200 got %d", tc.name, w.Code)
		}
		var resp map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: unmarshal response failed: %v", tc.name, err)
		}
		if resp["status_code"] != float64(401) {
			t.Fatalf("%s: business status want 401 got %v", tc.name, resp["status_code"])
		}
	}
}
