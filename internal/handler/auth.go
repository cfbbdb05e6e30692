package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/whodeedit/whodeedit/internal/auth"
	"github.com/whodeedit/whodeedit/internal/store"
	"github.com/whodeedit/whodeedit/internal/worldid"
)

const (
	sessionCookie = "sessionId"
	addressCookie = "userAddress"

	nonceTTL     = 15 * time.Minute
	addressTTL   = 7 * 24 * time.Hour
	signInAction = "signin"
)

type AuthHandler struct {
	users      *store.UserStore
	nonces     *store.NonceStore
	properties *store.PropertyStore
	tokens     *auth.TokenIssuer
	verifier   *worldid.Client
	production bool
	logger     *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ns *store.NonceStore, ps *store.PropertyStore, tokens *auth.TokenIssuer, verifier *worldid.Client, production bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:      us,
		nonces:     ns,
		properties: ps,
		tokens:     tokens,
		verifier:   verifier,
		production: production,
		logger:     logger,
	}
}

// setCookie applies the cross-site cookie policy the wallet app needs:
// SameSite=None over HTTPS in production, Lax for local development.
func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	sameSite := http.SameSiteLaxMode
	if h.production {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
	})
}

// Nonce issues a fresh sign-in challenge bound to the session cookie.
func (h *AuthHandler) Nonce(w http.ResponseWriter, r *http.Request) {
	sessionID := ""
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		sessionID = c.Value
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	nonce := store.GenerateNonce()
	if _, err := h.nonces.Issue(sessionID, nonce, nonceTTL); err != nil {
		h.logger.Error("failed to issue nonce", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate nonce")
		return
	}

	h.setCookie(w, sessionCookie, sessionID, nonceTTL)
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

type siwePayload struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

type completeSIWERequest struct {
	Payload siwePayload `json:"payload"`
	Nonce   string      `json:"nonce"`
}

func invalidNonce(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "isValid": false, "message": message})
}

// CompleteSIWE checks a wallet-auth payload against the stored
// challenge. The nonce is single-use: a successful check consumes it.
func (h *AuthHandler) CompleteSIWE(w http.ResponseWriter, r *http.Request) {
	var req completeSIWERequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidNonce(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		invalidNonce(w, http.StatusBadRequest, "invalid nonce")
		return
	}

	stored, err := h.nonces.Get(c.Value)
	if err != nil {
		h.logger.Error("failed to load nonce", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify nonce")
		return
	}
	if stored == nil {
		invalidNonce(w, http.StatusBadRequest, "invalid nonce")
		return
	}
	if stored.Expired(time.Now()) {
		if err := h.nonces.Delete(c.Value); err != nil {
			h.logger.Error("failed to delete expired nonce", "error", err)
		}
		invalidNonce(w, http.StatusUnauthorized, "nonce expired")
		return
	}
	if req.Nonce != stored.Nonce {
		invalidNonce(w, http.StatusBadRequest, "invalid nonce")
		return
	}

	// Consume the challenge so a replay of the same payload fails.
	if err := h.nonces.Delete(c.Value); err != nil {
		h.logger.Error("failed to consume nonce", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify nonce")
		return
	}

	if req.Payload.Address == "" || req.Payload.Signature == "" {
		invalidNonce(w, http.StatusBadRequest, "wallet payload is incomplete")
		return
	}

	h.setCookie(w, addressCookie, req.Payload.Address, addressTTL)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "isValid": true})
}

type verifyProofRequest struct {
	Payload *worldid.Proof `json:"payload"`
	Action  string         `json:"action"`
	Signal  string         `json:"signal"`
}

// VerifyProof relays a World ID proof to the developer portal.
func (h *AuthHandler) VerifyProof(w http.ResponseWriter, r *http.Request) {
	var req verifyProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Payload == nil || req.Action == "" {
		writeError(w, http.StatusBadRequest, "payload and action are required")
		return
	}
	if !h.verifier.Configured() {
		writeError(w, http.StatusInternalServerError, "world id verification is not configured")
		return
	}

	res, err := h.verifier.Verify(r.Context(), *req.Payload, req.Action, req.Signal)
	if err != nil {
		h.logger.Error("world id verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify proof")
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "proof verification failed",
			"detail":  res.Detail,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"nullifierHash": res.NullifierHash,
	})
}

type signInRequest struct {
	WalletAddress string         `json:"walletAddress"`
	WorldIDProof  *worldid.Proof `json:"worldIdProof"`
}

// SignIn finds or creates the user for a wallet address and issues a
// bearer token. A World ID proof, when supplied, must verify.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WalletAddress == "" {
		writeError(w, http.StatusBadRequest, "wallet address is required")
		return
	}

	if req.WorldIDProof != nil && h.verifier.Configured() {
		res, err := h.verifier.Verify(r.Context(), *req.WorldIDProof, signInAction, req.WalletAddress)
		if err != nil {
			h.logger.Error("world id verification failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to verify proof")
			return
		}
		if !res.Success {
			writeError(w, http.StatusUnauthorized, "world id verification failed")
			return
		}
	}

	user, err := h.users.GetByWallet(req.WalletAddress)
	if err != nil {
		h.logger.Error("failed to look up user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	if user == nil {
		user, err = h.users.Create(req.WalletAddress)
		if err != nil {
			h.logger.Error("failed to create user", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to sign in")
			return
		}
	} else {
		if user.IsBanned {
			writeError(w, http.StatusForbidden, "your account has been suspended: "+user.BannedReason)
			return
		}
		user, err = h.users.RecordSignIn(user.ID)
		if err != nil {
			h.logger.Error("failed to record sign-in", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to sign in")
			return
		}
		if err := h.users.AppendActivity(user.ID, "world_id_verification", ""); err != nil {
			h.logger.Error("failed to append activity", "error", err)
		}
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"user":  user,
			"token": token,
		},
	})
}

// Me returns the authenticated user with their property count.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		h.logger.Error("failed to load user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	count, err := h.properties.CountByOwner(userID)
	if err != nil {
		h.logger.Error("failed to count properties", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"user":            user,
			"propertiesCount": count,
		},
	})
}

type updateProfileRequest struct {
	Name         *string `json:"name"`
	ProfileImage *string `json:"profileImage"`
}

// UpdateProfile updates the caller's display name and profile image.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil && req.ProfileImage == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	user, err := h.users.UpdateProfile(auth.UserID(r.Context()), req.Name, req.ProfileImage)
	if err != nil {
		h.logger.Error("failed to update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"user": user},
	})
}
