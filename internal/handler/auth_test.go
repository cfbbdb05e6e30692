package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/whodeedit/whodeedit/internal/auth"
	"github.com/whodeedit/whodeedit/internal/database"
	"github.com/whodeedit/whodeedit/internal/store"
	"github.com/whodeedit/whodeedit/internal/worldid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupAuthHandler(t *testing.T) (*AuthHandler, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewAuthHandler(
		store.NewUserStore(db),
		store.NewNonceStore(db),
		store.NewPropertyStore(db),
		auth.NewTokenIssuer("test-secret", time.Hour),
		worldid.NewClient(worldid.Config{}),
		false,
		testLogger(),
	)
	return h, db
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestNonceIssuesSessionCookie(t *testing.T) {
	h, _ := setupAuthHandler(t)

	req := httptest.NewRequest("GET", "/api/nonce", nil)
	rec := httptest.NewRecorder()
	h.Nonce(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body["nonce"]) != 32 {
		t.Errorf("nonce = %q, want 32 chars", body["nonce"])
	}

	c := sessionCookieFrom(t, rec)
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("dev cookie SameSite = %v, want Lax", c.SameSite)
	}
}

func completeSIWE(h *AuthHandler, cookie *http.Cookie, nonce, address, signature string) *httptest.ResponseRecorder {
	body := `{"payload":{"address":"` + address + `","signature":"` + signature + `","message":"msg"},"nonce":"` + nonce + `"}`
	req := httptest.NewRequest("POST", "/api/complete-siwe", strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.CompleteSIWE(rec, req)
	return rec
}

func TestCompleteSIWEHappyPath(t *testing.T) {
	h, _ := setupAuthHandler(t)

	nonceRec := httptest.NewRecorder()
	h.Nonce(nonceRec, httptest.NewRequest("GET", "/api/nonce", nil))
	var issued map[string]string
	json.NewDecoder(nonceRec.Body).Decode(&issued)
	cookie := sessionCookieFrom(t, nonceRec)

	rec := completeSIWE(h, cookie, issued["nonce"], "0xabc", "0xsig")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)
	if body["isValid"] != true {
		t.Errorf("isValid = %v, want true", body["isValid"])
	}

	var gotAddress bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == addressCookie && c.Value == "0xabc" {
			gotAddress = true
		}
	}
	if !gotAddress {
		t.Error("userAddress cookie not set")
	}
}

func TestCompleteSIWENonceIsSingleUse(t *testing.T) {
	h, _ := setupAuthHandler(t)

	nonceRec := httptest.NewRecorder()
	h.Nonce(nonceRec, httptest.NewRequest("GET", "/api/nonce", nil))
	var issued map[string]string
	json.NewDecoder(nonceRec.Body).Decode(&issued)
	cookie := sessionCookieFrom(t, nonceRec)

	if rec := completeSIWE(h, cookie, issued["nonce"], "0xabc", "0xsig"); rec.Code != http.StatusOK {
		t.Fatalf("first attempt status = %d, want %d", rec.Code, http.StatusOK)
	}

	// Replaying the identical payload must fail: the nonce was consumed.
	rec := completeSIWE(h, cookie, issued["nonce"], "0xabc", "0xsig")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("replay status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCompleteSIWEWrongNonce(t *testing.T) {
	h, _ := setupAuthHandler(t)

	nonceRec := httptest.NewRecorder()
	h.Nonce(nonceRec, httptest.NewRequest("GET", "/api/nonce", nil))
	cookie := sessionCookieFrom(t, nonceRec)

	rec := completeSIWE(h, cookie, "not-the-nonce", "0xabc", "0xsig")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCompleteSIWEMissingCookie(t *testing.T) {
	h, _ := setupAuthHandler(t)

	rec := completeSIWE(h, nil, "whatever", "0xabc", "0xsig")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCompleteSIWEExpiredNonce(t *testing.T) {
	h, db := setupAuthHandler(t)

	ns := store.NewNonceStore(db)
	if _, err := ns.Issue("session-1", "stale-nonce", -time.Minute); err != nil {
		t.Fatalf("issue nonce: %v", err)
	}
	cookie := &http.Cookie{Name: sessionCookie, Value: "session-1"}

	rec := completeSIWE(h, cookie, "stale-nonce", "0xabc", "0xsig")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	// The expired row is evicted, so a retry misses instead of expiring.
	stored, err := ns.Get("session-1")
	if err != nil {
		t.Fatalf("get nonce: %v", err)
	}
	if stored != nil {
		t.Error("expired nonce should have been deleted")
	}
}

func TestCompleteSIWEIncompletePayload(t *testing.T) {
	h, _ := setupAuthHandler(t)

	nonceRec := httptest.NewRecorder()
	h.Nonce(nonceRec, httptest.NewRequest("GET", "/api/nonce", nil))
	var issued map[string]string
	json.NewDecoder(nonceRec.Body).Decode(&issued)
	cookie := sessionCookieFrom(t, nonceRec)

	rec := completeSIWE(h, cookie, issued["nonce"], "", "0xsig")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSignInCreatesUser(t *testing.T) {
	h, db := setupAuthHandler(t)

	body := `{"walletAddress":"0xnew"}`
	req := httptest.NewRequest("POST", "/auth/world-id", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Token string `json:"token"`
			User  struct {
				ID              int64  `json:"id"`
				WalletAddress   string `json:"wallet_address"`
				Role            string `json:"role"`
				WorldIDVerified bool   `json:"world_id_verified"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Error("expected a token")
	}
	if resp.Data.User.WalletAddress != "0xnew" {
		t.Errorf("wallet = %q, want 0xnew", resp.Data.User.WalletAddress)
	}
	if resp.Data.User.Role != "lister" {
		t.Errorf("role = %q, want lister", resp.Data.User.Role)
	}
	if !resp.Data.User.WorldIDVerified {
		t.Error("new user should be world id verified")
	}

	us := store.NewUserStore(db)
	u, err := us.GetByWallet("0xnew")
	if err != nil || u == nil {
		t.Fatalf("user not persisted: %v", err)
	}
}

func TestSignInExistingUserKeepsID(t *testing.T) {
	h, db := setupAuthHandler(t)

	us := store.NewUserStore(db)
	created, _ := us.Create("0xrepeat")

	body := `{"walletAddress":"0xrepeat"}`
	req := httptest.NewRequest("POST", "/auth/world-id", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data struct {
			User struct {
				ID int64 `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Data.User.ID != created.ID {
		t.Errorf("user id = %d, want %d", resp.Data.User.ID, created.ID)
	}

	activity, err := us.ListActivity(created.ID)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(activity) != 1 || activity[0].Action != "world_id_verification" {
		t.Errorf("activity = %+v, want one world_id_verification entry", activity)
	}
}

func TestSignInMissingWallet(t *testing.T) {
	h, _ := setupAuthHandler(t)

	req := httptest.NewRequest("POST", "/auth/world-id", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestVerifyProofUnconfigured(t *testing.T) {
	h, _ := setupAuthHandler(t)

	body := `{"payload":{"merkle_root":"0x1","nullifier_hash":"0x2","proof":"0x3","verification_level":"orb"},"action":"verify-human"}`
	req := httptest.NewRequest("POST", "/api/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.VerifyProof(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestVerifyProofMissingAction(t *testing.T) {
	h, _ := setupAuthHandler(t)

	body := `{"payload":{"proof":"0x3"}}`
	req := httptest.NewRequest("POST", "/api/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.VerifyProof(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestMeIncludesPropertyCount(t *testing.T) {
	h, db := setupAuthHandler(t)

	us := store.NewUserStore(db)
	u, _ := us.Create("0xme")
	ps := store.NewPropertyStore(db)
	newTestProperty(t, ps, u.ID)
	newTestProperty(t, ps, u.ID)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID, WalletAddress: u.WalletAddress}))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data struct {
			PropertiesCount int `json:"propertiesCount"`
		} `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Data.PropertiesCount != 2 {
		t.Errorf("propertiesCount = %d, want 2", resp.Data.PropertiesCount)
	}
}

func TestUpdateProfile(t *testing.T) {
	h, db := setupAuthHandler(t)

	us := store.NewUserStore(db)
	u, _ := us.Create("0xprofile")

	name := "Alice"
	body := `{"name":"` + name + `"}`
	req := httptest.NewRequest("PATCH", "/auth/profile", strings.NewReader(body))
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID}))
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	updated, _ := us.GetByID(u.ID)
	if updated.Name != "Alice" {
		t.Errorf("name = %q, want Alice", updated.Name)
	}
}

func TestUpdateProfileNothingToUpdate(t *testing.T) {
	h, db := setupAuthHandler(t)

	us := store.NewUserStore(db)
	u, _ := us.Create("0xprofile")

	req := httptest.NewRequest("PATCH", "/auth/profile", strings.NewReader(`{}`))
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID}))
	rec := httptest.NewRecorder()
	h.UpdateProfile(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
