package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/whodeedit/whodeedit/internal/database"
	"github.com/whodeedit/whodeedit/internal/marketplace"
	"github.com/whodeedit/whodeedit/internal/model"
	"github.com/whodeedit/whodeedit/internal/store"
	"github.com/whodeedit/whodeedit/internal/worldid"
)

func setupTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, nil, worldid.NewClient(worldid.Config{}), marketplace.NewClient(marketplace.Config{}), Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	}, logger)
	return srv, srv.Router()
}

func tokenFor(t *testing.T, srv *Server, wallet, role string) string {
	t.Helper()
	u, err := srv.userStore.Create(wallet)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role != model.RoleLister {
		if err := srv.userStore.SetRole(u.ID, role); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}
	token, err := srv.tokens.Issue(u.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestHealthRoute(t *testing.T) {
	_, router := setupTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	_, router := setupTestServer(t)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestNonceRouteIsPublic(t *testing.T) {
	_, router := setupTestServer(t)

	req := httptest.NewRequest("GET", "/api/nonce", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestPublicPropertyReadSkipsAuth(t *testing.T) {
	srv, router := setupTestServer(t)

	u, _ := srv.userStore.Create("0xowner")
	ps := store.NewPropertyStore(srv.db)
	ps.Create(&model.Property{OwnerID: u.ID, PropertyName: "Villa", Location: "Nairobi", PropertyType: "Residential"})

	req := httptest.NewRequest("GET", "/properties/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestAdminRouteRejectsLister(t *testing.T) {
	srv, router := setupTestServer(t)
	token := tokenFor(t, srv, "0xlister", model.RoleLister)

	req := httptest.NewRequest("GET", "/admin/verifications/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminRouteAllowsAdmin(t *testing.T) {
	srv, router := setupTestServer(t)
	token := tokenFor(t, srv, "0xadmin", model.RoleAdmin)

	req := httptest.NewRequest("GET", "/admin/verifications/pending", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestCreatePropertyRoute(t *testing.T) {
	srv, router := setupTestServer(t)
	token := tokenFor(t, srv, "0xlister", model.RoleLister)

	body := strings.NewReader(`{"propertyName":"Villa","location":"Nairobi","propertyType":"Residential","price":100000}`)
	req := httptest.NewRequest("POST", "/properties", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
}

func TestOwnPropertiesRouteIsProtected(t *testing.T) {
	srv, router := setupTestServer(t)
	token := tokenFor(t, srv, "0xlister", model.RoleLister)

	req := httptest.NewRequest("GET", "/properties/user/all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}
