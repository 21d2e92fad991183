package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// okHandler answers 200 "ok" so tests can tell the request got through.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok")) //nolint:errcheck
})

func callWithKey(t *testing.T, h http.Handler, header, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/docs", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_ModeNone_PassesThrough(t *testing.T) {
	h := Middleware("none", "X-API-Key", "secret")(okHandler)
	// No key on the request — should still pass because mode != "apikey".
	rr := callWithKey(t, h, "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_EmptyKey_PassesThrough(t *testing.T) {
	// An empty key means auth was never configured, so nothing is checked.
	h := Middleware("apikey", "X-API-Key", "")(okHandler)
	rr := callWithKey(t, h, "", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestMiddleware_CorrectKey_Passes(t *testing.T) {
	h := Middleware("apikey", "X-API-Key", "supersecret")(okHandler)
	rr := callWithKey(t, h, "X-API-Key", "supersecret")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_WrongKey_Unauthorized(t *testing.T) {
	h := Middleware("apikey", "X-API-Key", "supersecret")(okHandler)
	rr := callWithKey(t, h, "X-API-Key", "wrong")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
}

func TestMiddleware_MissingHeader_Unauthorized(t *testing.T) {
	h := Middleware("apikey", "X-API-Key", "supersecret")(okHandler)
	rr := callWithKey(t, h, "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rr.Code)
	}
}

func TestMiddleware_HeaderNameIsCanonicalized(t *testing.T) {
	// HTTP headers are case-insensitive; configuring "x-api-key" must
	// still match a request sending "X-Api-Key".
	h := Middleware("apikey", "x-api-key", "supersecret")(okHandler)
	rr := callWithKey(t, h, "X-Api-Key", "supersecret")
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}
