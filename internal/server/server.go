package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/whodeedit/whodeedit/internal/auth"
	"github.com/whodeedit/whodeedit/internal/handler"
	"github.com/whodeedit/whodeedit/internal/marketplace"
	"github.com/whodeedit/whodeedit/internal/middleware"
	"github.com/whodeedit/whodeedit/internal/storage"
	"github.com/whodeedit/whodeedit/internal/store"
	"github.com/whodeedit/whodeedit/internal/worldid"
)

// Config holds server-level settings.
type Config struct {
	JWTSecret   string
	JWTExpiry   time.Duration
	CORSOrigins []string
	Production  bool
}

type Server struct {
	db            *sql.DB
	authH         *handler.AuthHandler
	uploadH       *handler.UploadHandler
	propertyH     *handler.PropertyHandler
	verificationH *handler.VerificationHandler
	userStore     *store.UserStore
	nonceStore    *store.NonceStore
	tokens        *auth.TokenIssuer
	rateLimiter   *middleware.RateLimiter
	corsOrigins   []string
	logger        *slog.Logger
}

func New(db *sql.DB, storageSvc *storage.Service, verifier *worldid.Client, market *marketplace.Client, cfg Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	nonceStore := store.NewNonceStore(db)
	propertyStore := store.NewPropertyStore(db)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)

	return &Server{
		db:            db,
		authH:         handler.NewAuthHandler(userStore, nonceStore, propertyStore, tokens, verifier, cfg.Production, logger.With("component", "auth")),
		uploadH:       handler.NewUploadHandler(storageSvc, logger.With("component", "upload")),
		propertyH:     handler.NewPropertyHandler(propertyStore, market, logger.With("component", "property")),
		verificationH: handler.NewVerificationHandler(propertyStore, userStore, logger.With("component", "verification")),
		userStore:     userStore,
		nonceStore:    nonceStore,
		tokens:        tokens,
		rateLimiter:   middleware.NewRateLimiter(),
		corsOrigins:   cfg.CORSOrigins,
		logger:        logger,
	}
}

// NonceStore returns the nonce store for cleanup tasks.
func (s *Server) NonceStore() *store.NonceStore {
	return s.nonceStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /api/nonce", s.rateLimitedHandler(s.authH.Nonce))
	outerMux.HandleFunc("POST /api/complete-siwe", s.rateLimitedHandler(s.authH.CompleteSIWE))
	outerMux.HandleFunc("POST /api/verify", s.rateLimitedHandler(s.authH.VerifyProof))
	outerMux.HandleFunc("POST /auth/world-id", s.rateLimitedHandler(s.authH.SignIn))
	outerMux.HandleFunc("GET /properties/{id}", s.propertyH.Get)

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.userStore, s.tokens)
	outerMux.Handle("/", authMiddleware(protectedMux))

	router := middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
	return middleware.CORS(s.corsOrigins)(router)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/me", s.authH.Me)
	mux.HandleFunc("PATCH /auth/profile", s.authH.UpdateProfile)

	mux.HandleFunc("POST /uploads/document", s.uploadH.Document)

	// Listing a property is the one action gated on proof-of-humanity.
	mux.Handle("POST /properties", middleware.RequireWorldID(http.HandlerFunc(s.propertyH.Create)))
	mux.HandleFunc("GET /properties/user/all", s.propertyH.ListMine)
	mux.HandleFunc("PATCH /properties/{id}", s.propertyH.Update)
	mux.HandleFunc("POST /properties/{id}/documents", s.propertyH.AddDocument)
	mux.HandleFunc("GET /properties/{id}/verification", s.propertyH.VerificationStatus)
	mux.HandleFunc("POST /properties/{id}/submit-to-daobitat", s.propertyH.SubmitToMarketplace)

	// Admin routes sit behind a second role gate.
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /admin/verifications/pending", s.verificationH.Pending)
	adminMux.HandleFunc("GET /admin/verifications/status/{status}", s.verificationH.ByStatus)
	adminMux.HandleFunc("GET /admin/verifications/stats", s.verificationH.Stats)
	adminMux.HandleFunc("POST /admin/properties/{id}/verify", s.verificationH.Verify)
	mux.Handle("/admin/", middleware.RequireAdmin(adminMux))
}
