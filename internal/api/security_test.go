package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestMiddleware_SecurityHeaders(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	middleware := SecurityHeadersMiddleware(nextHandler)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()

	middleware.ServeHTTP(w, req)

	resp := w.Result()

	headers := []string{
		"Content-Security-Policy",
		"Strict-Transport-Security",
		"X-Frame-Options",
		"X-Content-Type-Options",
		"Referrer-Policy",
	}

	for _, h := range headers {
		if resp.Header.Get(h) == "" {
			t.Errorf("Expected header %s to be set", h)
		}
	}
}

func TestMiddleware_NoHSTSOverPlainHTTP(t *testing.T) {
	middleware := SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	middleware.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Result().Header.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must only be sent over HTTPS")
	}
}

func TestMiddleware_Auth(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash token: %v", err)
	}

	tests := []struct {
		name           string
		token          string
		path           string
		authHeader     string
		expectedStatus int
	}{
		{"No Auth - Non-API Path", "secret-token", "/", "", http.StatusOK},
		{"No Auth - API Path", "secret-token", "/api/objects", "", http.StatusUnauthorized},
		{"Valid Auth - API Path", "secret-token", "/api/objects", "Bearer secret-token", http.StatusOK},
		{"Invalid Auth - API Path", "secret-token", "/api/objects", "Bearer wrong-token", http.StatusUnauthorized},
		{"Wrong Scheme", "secret-token", "/api/objects", "Basic secret-token", http.StatusUnauthorized},
		{"Query Auth - Disabled", "secret-token", "/api/objects?token=secret-token", "", http.StatusUnauthorized},
		{"Auth Disabled", "", "/api/objects", "", http.StatusOK},
		{"Hashed Token - Valid", string(hash), "/api/objects", "Bearer hashed-secret", http.StatusOK},
		{"Hashed Token - Hash Itself", string(hash), "/api/objects", "Bearer " + string(hash), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(tt.token, nextHandler).ServeHTTP(w, req)

			if w.Result().StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Result().StatusCode)
			}
		})
	}
}

func TestIsHashedToken(t *testing.T) {
	if IsHashedToken("plain-token") {
		t.Error("plain token reported as hashed")
	}
	if !IsHashedToken("$2a$10$abcdefghijklmnopqrstuv") {
		t.Error("bcrypt hash not recognized")
	}
}

func TestMiddleware_MetricsKeepsStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	MetricsMiddleware(mux).ServeHTTP(w, httptest.NewRequest("GET", "/api/things/1", nil))

	if w.Result().StatusCode != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, w.Result().StatusCode)
	}
}
