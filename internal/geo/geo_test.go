package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voicechat-platform/internal/config"
)

func testService(baseURL, key string) *Service {
	return &Service{
		baseURL: baseURL,
		apiKey:  key,
		httpc:   &http.Client{Timeout: time.Second},
	}
}

func TestLookup_CityAndCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "k" {
			t.Errorf("missing api key in query")
		}
		w.Write([]byte(`{"results":[{"components":{"city":"Lisbon","country":"Portugal"}}]}`))
	}))
	defer srv.Close()

	got := testService(srv.URL, "k").Lookup(context.Background(), 38.72, -9.14)
	if got != "Lisbon, Portugal" {
		t.Fatalf("Lookup = %q", got)
	}
}

func TestLookup_FallbackPaths(t *testing.T) {
	t.Run("disabled without api key", func(t *testing.T) {
		s := NewService(config.GeoConfig{BaseURL: "https://api.example.com"})
		if got := s.Lookup(context.Background(), 1, 1); got != FallbackLocation {
			t.Fatalf("Lookup = %q", got)
		}
	})

	t.Run("non-200 response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		}))
		defer srv.Close()
		if got := testService(srv.URL, "k").Lookup(context.Background(), 1, 1); got != FallbackLocation {
			t.Fatalf("Lookup = %q", got)
		}
	})

	t.Run("empty results", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[]}`))
		}))
		defer srv.Close()
		if got := testService(srv.URL, "k").Lookup(context.Background(), 1, 1); got != FallbackLocation {
			t.Fatalf("Lookup = %q", got)
		}
	})
}
