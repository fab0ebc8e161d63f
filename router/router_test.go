package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/contactrelay/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerSettings{MaxPayload: 32},
		Endpoints: []config.EndpointConfig{{Identifier: "a", Domain: "https://a.example"}},
	}
}

func TestNew_StackOrder(t *testing.T) {
	r := New(testConfig(), nil)
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	t.Run("preflight from endpoint domain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://a.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://a.example" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("body limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 33))))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("code = %d, want 413", rec.Code)
		}
	})

	t.Run("panic recovered", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("code = %d, want 500", rec.Code)
		}
	})

	t.Run("not found is json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound || rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("code = %d, Content-Type = %q", rec.Code, rec.Header().Get("Content-Type"))
		}
	})

	t.Run("post reaches handler", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("code = %d, want 200", rec.Code)
		}
	})
}
