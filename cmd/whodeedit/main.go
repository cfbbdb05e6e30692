package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/whodeedit/whodeedit/internal/database"
	"github.com/whodeedit/whodeedit/internal/logging"
	"github.com/whodeedit/whodeedit/internal/marketplace"
	"github.com/whodeedit/whodeedit/internal/server"
	"github.com/whodeedit/whodeedit/internal/storage"
	"github.com/whodeedit/whodeedit/internal/worldid"
)

func main() {
	// Optional for local development; env vars win in deployment.
	godotenv.Load(".env.local")

	logger := logging.Setup(os.Getenv("WHODEEDIT_LOG_LEVEL"))

	port := os.Getenv("WHODEEDIT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("WHODEEDIT_DB_PATH")
	if dbPath == "" {
		dbPath = "whodeedit.db"
	}

	jwtSecret := os.Getenv("WHODEEDIT_JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("WHODEEDIT_JWT_SECRET is required")
	}

	jwtExpiry := 7 * 24 * time.Hour
	if raw := os.Getenv("WHODEEDIT_JWT_EXPIRY"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("invalid WHODEEDIT_JWT_EXPIRY: %v", err)
		}
		jwtExpiry = d
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	storageCfg := storage.Config{
		Endpoint:  os.Getenv("WHODEEDIT_S3_ENDPOINT"),
		Bucket:    os.Getenv("WHODEEDIT_S3_BUCKET"),
		Region:    os.Getenv("WHODEEDIT_S3_REGION"),
		AccessKey: os.Getenv("WHODEEDIT_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("WHODEEDIT_S3_SECRET_KEY"),
	}
	var storageSvc *storage.Service
	if storageCfg.Configured() {
		storageSvc, err = storage.New(storageCfg)
		if err != nil {
			log.Fatalf("failed to build storage service: %v", err)
		}
	} else {
		logger.Warn("document storage not configured, upload routes will fail")
	}

	verifier := worldid.NewClient(worldid.Config{
		AppID:     os.Getenv("WORLD_APP_ID"),
		VerifyURL: os.Getenv("WORLD_VERIFY_URL"),
	})
	if !verifier.Configured() {
		logger.Warn("world id verification not configured, proof checks will fail")
	}

	market := marketplace.NewClient(marketplace.Config{
		BaseURL: os.Getenv("DAOBITAT_API_URL"),
		APIKey:  os.Getenv("DAOBITAT_API_KEY"),
	})
	if !market.Configured() {
		logger.Warn("marketplace not configured, listing submission will fail")
	}

	var corsOrigins []string
	for _, o := range strings.Split(os.Getenv("WHODEEDIT_CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}

	srv := server.New(db, storageSvc, verifier, market, server.Config{
		JWTSecret:   jwtSecret,
		JWTExpiry:   jwtExpiry,
		CORSOrigins: corsOrigins,
		Production:  os.Getenv("WHODEEDIT_ENV") == "production",
	}, logger)

	// Expired nonces and stale rate-limit entries are swept in the
	// background so the tables stay small.
	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	defer cancelJanitor()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.NonceStore().DeleteExpired(); err != nil {
					logger.Error("nonce cleanup failed", "error", err)
				} else if n > 0 {
					logger.Debug("swept expired nonces", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-janitorCtx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("WhoDeedIt running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
