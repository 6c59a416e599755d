package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doAuth(t *testing.T, h http.Handler, set func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if set != nil {
		set(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAny_OpenWithoutKeys(t *testing.T) {
	h := RequireAny(Keys{})(okHandler())
	if rec := doAuth(t, h, nil); rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestRequireAny_RejectsMissingKey(t *testing.T) {
	h := RequireAny(Keys{Public: []string{"pub1"}})(okHandler())
	rec := doAuth(t, h, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("body %q is not an error object", rec.Body.String())
	}
}

func TestRequireAny_AcceptsBearerPublicKey(t *testing.T) {
	h := RequireAny(Keys{Public: []string{"pub1"}})(okHandler())
	rec := doAuth(t, h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer pub1")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestRequireAny_AcceptsAdminKeyHeader(t *testing.T) {
	h := RequireAny(Keys{Public: []string{"pub1"}, Admin: []string{"adm1"}})(okHandler())
	rec := doAuth(t, h, func(r *http.Request) {
		r.Header.Set("X-API-Key", "adm1")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestRequireAny_RejectsWrongKey(t *testing.T) {
	h := RequireAny(Keys{Public: []string{"pub1"}})(okHandler())
	rec := doAuth(t, h, func(r *http.Request) {
		r.Header.Set("X-API-Key", "nope")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin_RejectsPublicKey(t *testing.T) {
	keys := Keys{Public: []string{"pub1"}, Admin: []string{"adm1"}}
	h := RequireAdmin(keys)(okHandler())
	rec := doAuth(t, h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer pub1")
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", rec.Code)
	}
}

func TestRequireAdmin_AcceptsAdminKey(t *testing.T) {
	keys := Keys{Admin: []string{"adm1"}}
	h := RequireAdmin(keys)(okHandler())
	rec := doAuth(t, h, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer adm1")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestRequireAdmin_OpenWithoutAdminKeys(t *testing.T) {
	h := RequireAdmin(Keys{Public: []string{"pub1"}})(okHandler())
	if rec := doAuth(t, h, nil); rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

func TestReadAuth_BearerCaseInsensitive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "BEARER abc")
	if got := readAuth(req); got != "abc" {
		t.Fatalf("readAuth = %q, want %q", got, "abc")
	}
}
