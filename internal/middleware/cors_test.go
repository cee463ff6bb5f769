package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveCORS(t *testing.T, allowedOrigin, method, origin string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	handler := CORS(allowedOrigin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/sessions", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORS_AllowedOriginEchoed(t *testing.T) {
	rec, reached := serveCORS(t, "http://editor.local", http.MethodGet, "http://editor.local")

	if !reached {
		t.Error("Expected request to reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://editor.local" {
		t.Errorf("Expected origin echoed, got %q", got)
	}
}

func TestCORS_WildcardAllowsAnyOrigin(t *testing.T) {
	rec, _ := serveCORS(t, "*", http.MethodGet, "http://anywhere.test")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://anywhere.test" {
		t.Errorf("Expected origin echoed under wildcard, got %q", got)
	}
}

func TestCORS_OtherOriginGetsNoHeaders(t *testing.T) {
	rec, reached := serveCORS(t, "http://editor.local", http.MethodGet, "http://evil.test")

	if !reached {
		t.Error("Expected request to still reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no CORS headers for disallowed origin, got %q", got)
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	rec, reached := serveCORS(t, "*", http.MethodOptions, "http://editor.local")

	if reached {
		t.Error("Expected preflight to short-circuit before the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
}
