package model

import "time"

// Nonce binds a login challenge to a session cookie. One row per
// session; re-issuing replaces the previous challenge.
type Nonce struct {
	SessionID string    `json:"session_id"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the nonce is past its expiry at the given time.
func (n *Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}
