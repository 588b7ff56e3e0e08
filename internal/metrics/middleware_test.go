package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsDurationAndCount(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/collections/{collection}/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest("POST", "/collections/carousels/search", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	// The path label is the chi route pattern, not the concrete URL, so
	// per-collection URLs do not explode label cardinality.
	pattern := "/collections/{collection}/search"
	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", pattern, "200")); val < 1 {
		t.Errorf("http_requests_total = %f, want >= 1", val)
	}
	if count := testutil.CollectAndCount(httpRequestDuration); count == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
}

func TestMiddleware_RecordsStatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/missing", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if val := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/missing", "404")); val < 1 {
		t.Errorf("http_requests_total for 404 = %f, want >= 1", val)
	}
}
