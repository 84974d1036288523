package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ranitraj/instaLens/internal/logger"
)

func TestRequestLogger_RecordsStatus(t *testing.T) {
	log, logs := logger.NewObserved()
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected 418, got %d", rec.Code)
	}
	if logs.FilterMessageSnippet("/api/stats -> 418").Len() != 1 {
		t.Errorf("Expected one request log entry, got %v", logs.All())
	}
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	log, logs := logger.NewObserved()
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/capture", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if logs.FilterMessageSnippet("Panic serving POST /api/capture").Len() != 1 {
		t.Errorf("Expected panic to be logged, got %v", logs.All())
	}
}
