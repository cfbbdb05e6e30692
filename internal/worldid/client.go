// Package worldid verifies World ID zero-knowledge proofs against the
// World Developer Portal cloud verification endpoint.
package worldid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config holds World ID verification settings.
type Config struct {
	AppID     string
	VerifyURL string
}

// Proof is the zero-knowledge proof payload forwarded by the client app.
type Proof struct {
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
}

// Result is the portal's verification outcome.
type Result struct {
	Success       bool
	NullifierHash string
	Detail        string
}

type verifyRequest struct {
	MerkleRoot        string `json:"merkle_root"`
	NullifierHash     string `json:"nullifier_hash"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
	Signal            string `json:"signal,omitempty"`
}

type verifyResponse struct {
	Success       bool   `json:"success"`
	NullifierHash string `json:"nullifier_hash,omitempty"`
	Code          string `json:"code,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// Client talks to the World Developer Portal.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a World ID verification client.
func NewClient(cfg Config) *Client {
	if cfg.VerifyURL == "" && cfg.AppID != "" {
		cfg.VerifyURL = "https://developer.worldcoin.org/api/v2/verify/" + cfg.AppID
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether an app ID is set. When not configured the
// server rejects proof verification rather than faking success.
func (c *Client) Configured() bool {
	return c.cfg.AppID != ""
}

// Verify forwards a proof to the portal. A failed proof returns a Result
// with Success false and no error; errors are reserved for transport and
// configuration problems.
func (c *Client) Verify(ctx context.Context, proof Proof, action, signal string) (*Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("world id verification is not configured")
	}

	body, err := json.Marshal(verifyRequest{
		MerkleRoot:        proof.MerkleRoot,
		NullifierHash:     proof.NullifierHash,
		Proof:             proof.Proof,
		VerificationLevel: proof.VerificationLevel,
		Action:            action,
		Signal:            signal,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.VerifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The portal answers proof rejections with a non-2xx status and an
	// error code. Treat those as a clean failure, not a transport error.
	if resp.StatusCode != http.StatusOK {
		detail := vr.Detail
		if detail == "" {
			detail = fmt.Sprintf("verification failed with status %d", resp.StatusCode)
		}
		return &Result{Success: false, Detail: detail}, nil
	}

	return &Result{
		Success:       vr.Success,
		NullifierHash: vr.NullifierHash,
		Detail:        vr.Detail,
	}, nil
}
