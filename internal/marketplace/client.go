// Package marketplace submits verified properties to the Daobitat
// listing API.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config holds marketplace API settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// ListingDocument is a verified document reference attached to a listing.
type ListingDocument struct {
	DocumentType string `json:"documentType"`
	FileName     string `json:"fileName"`
	FileURL      string `json:"fileUrl"`
}

// Listing is the payload sent to the marketplace for a verified property.
type Listing struct {
	PropertyName       string            `json:"propertyName"`
	Location           string            `json:"location"`
	StreetAddress      string            `json:"streetAddress"`
	Latitude           float64           `json:"latitude"`
	Longitude          float64           `json:"longitude"`
	PropertyType       string            `json:"propertyType"`
	SpecificType       string            `json:"specificType"`
	Price              float64           `json:"price"`
	Space              float64           `json:"space"`
	Bedrooms           *int              `json:"bedrooms,omitempty"`
	Bathrooms          *int              `json:"bathrooms,omitempty"`
	Images             []string          `json:"images"`
	OwnerWallet        string            `json:"ownerWallet"`
	VerificationMethod string            `json:"verificationMethod"`
	Documents          []ListingDocument `json:"documents"`
}

type createResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    struct {
		ListingID string `json:"listingId"`
	} `json:"data"`
}

// Client talks to the Daobitat marketplace API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a marketplace client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != ""
}

// CreateListing submits a listing and returns the marketplace listing id.
// A single attempt is made; callers decide whether to surface the failure.
func (c *Client) CreateListing(ctx context.Context, listing Listing) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("marketplace is not configured")
	}

	body, err := json.Marshal(listing)
	if err != nil {
		return "", fmt.Errorf("marshal listing: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/properties", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var cr createResponse
		if json.NewDecoder(resp.Body).Decode(&cr) == nil && cr.Message != "" {
			return "", fmt.Errorf("marketplace rejected listing: %s", cr.Message)
		}
		return "", fmt.Errorf("marketplace returned status %d", resp.StatusCode)
	}

	var cr createResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Data.ListingID == "" {
		return "", fmt.Errorf("marketplace response missing listing id")
	}
	return cr.Data.ListingID, nil
}
