package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestNormalizePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"/rooms", "/rooms"},
		{"/rooms/3f0c", "/rooms/:id"},
		{"/rooms/3f0c/messages", "/rooms/:id/messages"},
		{"/rooms/3f0c/ws", "/rooms/:id/ws"},
		{"/find", "/find"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.in); got != tc.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRealIPHeaderPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	r.RemoteAddr = "10.0.0.9:1234"

	if got := RealIP(r); got != "10.0.0.9" {
		t.Fatalf("expected RemoteAddr fallback, got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := RealIP(r); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}

	r.Header.Set("Fly-Client-IP", "198.51.100.2")
	if got := RealIP(r); got != "198.51.100.2" {
		t.Fatalf("expected Fly header to win, got %q", got)
	}
}

func TestIdentityRejectsMissingHeaders(t *testing.T) {
	handlerRan := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
	})

	rec := httptest.NewRecorder()
	Identity(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if handlerRan {
		t.Fatal("handler must not run without identity")
	}
}

func TestIdentityAttachesUser(t *testing.T) {
	userID := uuid.New()

	var gotName string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || user.ID != userID {
			t.Error("user missing from context")
			return
		}
		gotName = user.Name
	})

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("X-User-ID", userID.String())
	req.Header.Set("X-User-Name", "alice")

	rec := httptest.NewRecorder()
	Identity(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotName != "alice" {
		t.Fatalf("expected alice, got %q", gotName)
	}
}

func TestValidateRequestBlocksTraversal(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.URL.Path = "/rooms/../secrets"

	rec := httptest.NewRecorder()
	ValidateRequest(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for traversal path, got %d", rec.Code)
	}
}
