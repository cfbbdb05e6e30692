package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/whodeedit/whodeedit/internal/model"
)

// NonceStore persists login challenges keyed by session identifier.
// Keeping these in the database rather than a process-local map keeps
// the handshake correct when more than one instance shares the volume.
type NonceStore struct {
	db *sql.DB
}

func NewNonceStore(db *sql.DB) *NonceStore {
	return &NonceStore{db: db}
}

func scanNonce(scanner interface{ Scan(...any) error }) (*model.Nonce, error) {
	var n model.Nonce
	err := scanner.Scan(&n.SessionID, &n.Nonce, &n.ExpiresAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

const nonceCols = `session_id, nonce, expires_at, created_at`

// GenerateNonce returns a fresh random challenge token.
func GenerateNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Issue stores a new nonce for the session with the given TTL,
// replacing any previous challenge for that session.
func (s *NonceStore) Issue(sessionID, nonce string, ttl time.Duration) (*model.Nonce, error) {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := s.db.Exec(
		`INSERT INTO nonces (session_id, nonce, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET nonce = excluded.nonce, expires_at = excluded.expires_at, created_at = datetime('now')`,
		sessionID, nonce, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert nonce: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+nonceCols+` FROM nonces WHERE session_id = ?`, sessionID)
	return scanNonce(row)
}

// Get returns the stored nonce for a session, or nil if none exists.
// Expiry is not filtered here so callers can distinguish a missing
// challenge from an expired one.
func (s *NonceStore) Get(sessionID string) (*model.Nonce, error) {
	row := s.db.QueryRow(`SELECT `+nonceCols+` FROM nonces WHERE session_id = ?`, sessionID)
	n, err := scanNonce(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	return n, nil
}

// Delete removes the nonce for a session. Used both to consume a
// challenge on successful completion and to evict an expired one.
func (s *NonceStore) Delete(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM nonces WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete nonce: %w", err)
	}
	return nil
}

func (s *NonceStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM nonces WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired nonces: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
