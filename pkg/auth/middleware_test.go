package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestServiceAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(ServiceAuthMiddleware("token123"))
	r.GET("/ok", func(c *gin.Context) { c.String(200, "ok") })

	// Missing header
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/ok", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// Invalid header
	w = httptest.NewRecorder()
	req, _ = http.NewRequestWithContext(context.Background(), "GET", "/ok", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// Valid header
	w = httptest.NewRecorder()
	req, _ = http.NewRequestWithContext(context.Background(), "GET", "/ok", nil)
	req.Header.Set("Authorization", "Bearer token123")
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestJWTAuthMiddleware(t *testing.T) {
	secret := []byte("mw-secret")
	r := gin.New()
	r.Use(JWTAuthMiddleware(secret))
	r.GET("/me", func(c *gin.Context) {
		claims := c.MustGet("claims").(*Claims)
		c.String(200, claims.Username)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/me", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	token, err := GenerateJWT("alice", "user", time.Hour, secret)
	if err != nil {
		t.Fatalf("generate jwt: %v", err)
	}
	w = httptest.NewRecorder()
	req, _ = http.NewRequestWithContext(context.Background(), "GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != 200 || w.Body.String() != "alice" {
		t.Fatalf("expected authenticated request, got %d %q", w.Code, w.Body.String())
	}
}

func TestBearerFromRequest(t *testing.T) {
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/ws?token=query-token", nil)
	if got := BearerFromRequest(req); got != "query-token" {
		t.Fatalf("expected query token, got %q", got)
	}

	req, _ = http.NewRequestWithContext(context.Background(), "GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	if got := BearerFromRequest(req); got != "header-token" {
		t.Fatalf("expected header token, got %q", got)
	}

	// Header takes precedence, but a malformed header yields nothing
	req, _ = http.NewRequestWithContext(context.Background(), "GET", "/ws?token=query-token", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := BearerFromRequest(req); got != "" {
		t.Fatalf("expected empty token for malformed header, got %q", got)
	}

	req, _ = http.NewRequestWithContext(context.Background(), "GET", "/ws", nil)
	if got := BearerFromRequest(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}
