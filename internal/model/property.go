package model

import "time"

// Verification states for a property.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusRejected = "rejected"
)

// Property types accepted at creation.
var PropertyTypes = map[string]bool{
	"Residential":                 true,
	"Commercial":                  true,
	"Land":                        true,
	"Special-purpose":             true,
	"Vacation/Short-term rentals": true,
}

type Property struct {
	ID                   int64      `json:"id"`
	OwnerID              int64      `json:"owner_id"`
	PropertyName         string     `json:"property_name"`
	Location             string     `json:"location"`
	StreetAddress        string     `json:"street_address"`
	Lat                  float64    `json:"lat"`
	Lng                  float64    `json:"lng"`
	PropertyType         string     `json:"property_type"`
	SpecificType         string     `json:"specific_type"`
	Price                float64    `json:"price"`
	Space                float64    `json:"space"`
	Bedrooms             *int       `json:"bedrooms"`
	Bathrooms            *int       `json:"bathrooms"`
	Images               []string   `json:"images"`
	VerificationStatus   string     `json:"verification_status"`
	VerificationNotes    string     `json:"verification_notes,omitempty"`
	ListedOnMarketplace  bool       `json:"listed_on_marketplace"`
	MarketplaceListingID string     `json:"marketplace_listing_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Populated by store reads that join related rows.
	Documents []Document    `json:"documents,omitempty"`
	Owner     *OwnerSummary `json:"owner,omitempty"`
}

type Document struct {
	ID         int64      `json:"id"`
	PropertyID int64      `json:"property_id"`
	Name       string     `json:"name"`
	DocType    string     `json:"doc_type"`
	URL        string     `json:"url"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OwnerSummary is the public slice of a user attached to property reads.
type OwnerSummary struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	WalletAddress   string `json:"wallet_address"`
	ProfileImage    string `json:"profile_image"`
	WorldIDVerified bool   `json:"world_id_verified"`
}

// VerificationStats is the admin dashboard aggregate.
type VerificationStats struct {
	Pending             int `json:"pending"`
	Verified            int `json:"verified"`
	Rejected            int `json:"rejected"`
	Listed              int `json:"listed"`
	Total               int `json:"total"`
	TotalDocuments      int `json:"total_documents"`
	VerifiedDocuments   int `json:"verified_documents"`
	RecentVerifications int `json:"recent_verifications"`
}
