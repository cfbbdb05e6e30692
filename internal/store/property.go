package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/whodeedit/whodeedit/internal/model"
)

type PropertyStore struct {
	db *sql.DB
}

func NewPropertyStore(db *sql.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

func scanProperty(scanner interface{ Scan(...any) error }) (*model.Property, error) {
	var p model.Property
	var bedrooms, bathrooms sql.NullInt64
	var images string

	err := scanner.Scan(
		&p.ID, &p.OwnerID, &p.PropertyName, &p.Location, &p.StreetAddress,
		&p.Lat, &p.Lng, &p.PropertyType, &p.SpecificType, &p.Price, &p.Space,
		&bedrooms, &bathrooms, &images, &p.VerificationStatus,
		&p.VerificationNotes, &p.ListedOnMarketplace, &p.MarketplaceListingID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bedrooms.Valid {
		v := int(bedrooms.Int64)
		p.Bedrooms = &v
	}
	if bathrooms.Valid {
		v := int(bathrooms.Int64)
		p.Bathrooms = &v
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		p.Images = nil
	}
	return &p, nil
}

const propertyCols = `id, owner_id, property_name, location, street_address, lat, lng, property_type, specific_type, price, space, bedrooms, bathrooms, images, verification_status, verification_notes, listed_on_marketplace, marketplace_listing_id, created_at, updated_at`

// Create inserts a new property owned by p.OwnerID. The verification
// status always starts out pending regardless of the input.
func (s *PropertyStore) Create(p *model.Property) (*model.Property, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}

	var bedrooms, bathrooms sql.NullInt64
	if p.Bedrooms != nil {
		bedrooms = sql.NullInt64{Int64: int64(*p.Bedrooms), Valid: true}
	}
	if p.Bathrooms != nil {
		bathrooms = sql.NullInt64{Int64: int64(*p.Bathrooms), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO properties (owner_id, property_name, location, street_address, lat, lng, property_type, specific_type, price, space, bedrooms, bathrooms, images)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.PropertyName, p.Location, p.StreetAddress, p.Lat, p.Lng,
		p.PropertyType, p.SpecificType, p.Price, p.Space, bedrooms, bathrooms, string(images),
	)
	if err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the property with its documents, or nil if not found.
func (s *PropertyStore) GetByID(id int64) (*model.Property, error) {
	row := s.db.QueryRow(`SELECT `+propertyCols+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if p.Documents, err = s.listDocuments(p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// GetOwned returns the property only if it belongs to ownerID.
func (s *PropertyStore) GetOwned(id, ownerID int64) (*model.Property, error) {
	p, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.OwnerID != ownerID {
		return nil, nil
	}
	return p, nil
}

// AttachOwner populates p.Owner with the public owner summary.
func (s *PropertyStore) AttachOwner(p *model.Property) error {
	row := s.db.QueryRow(
		`SELECT id, name, wallet_address, profile_image, world_id_verified FROM users WHERE id = ?`,
		p.OwnerID,
	)
	var o model.OwnerSummary
	err := row.Scan(&o.ID, &o.Name, &o.WalletAddress, &o.ProfileImage, &o.WorldIDVerified)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("attach owner: %w", err)
	}
	p.Owner = &o
	return nil
}

// ListByOwner returns all properties owned by a user, newest first.
func (s *PropertyStore) ListByOwner(ownerID int64) ([]model.Property, error) {
	return s.list(`SELECT `+propertyCols+` FROM properties WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
}

// ListByStatus returns properties in a verification state. Pending
// reviews are served oldest first; other statuses newest first.
func (s *PropertyStore) ListByStatus(status string) ([]model.Property, error) {
	order := `ORDER BY updated_at DESC, id DESC`
	if status == model.StatusPending {
		order = `ORDER BY created_at ASC, id ASC`
	}
	return s.list(`SELECT `+propertyCols+` FROM properties WHERE verification_status = ? `+order, status)
}

func (s *PropertyStore) list(query string, args ...any) ([]model.Property, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		props = append(props, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range props {
		if props[i].Documents, err = s.listDocuments(props[i].ID); err != nil {
			return nil, err
		}
	}
	return props, nil
}

// UpdateDetails overwrites the owner-editable fields. Ownership,
// verification state and marketplace listing fields are never touched
// through this path.
func (s *PropertyStore) UpdateDetails(p *model.Property) (*model.Property, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}

	var bedrooms, bathrooms sql.NullInt64
	if p.Bedrooms != nil {
		bedrooms = sql.NullInt64{Int64: int64(*p.Bedrooms), Valid: true}
	}
	if p.Bathrooms != nil {
		bathrooms = sql.NullInt64{Int64: int64(*p.Bathrooms), Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE properties SET property_name = ?, location = ?, street_address = ?, lat = ?, lng = ?,
		        property_type = ?, specific_type = ?, price = ?, space = ?, bedrooms = ?, bathrooms = ?,
		        images = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		p.PropertyName, p.Location, p.StreetAddress, p.Lat, p.Lng,
		p.PropertyType, p.SpecificType, p.Price, p.Space, bedrooms, bathrooms,
		string(images), p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update property: %w", err)
	}
	return s.GetByID(p.ID)
}

// AddDocument attaches an unverified document to a property.
func (s *PropertyStore) AddDocument(propertyID int64, name, docType, url string) (*model.Document, error) {
	result, err := s.db.Exec(
		`INSERT INTO documents (property_id, name, doc_type, url) VALUES (?, ?, ?, ?)`,
		propertyID, name, docType, url,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	// A new unverified document invalidates a prior verified status.
	if err := s.recomputeStatus(propertyID, ""); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(
		`SELECT id, property_id, name, doc_type, url, verified, verified_at, created_at FROM documents WHERE id = ?`, id,
	)
	return scanDocument(row)
}

func scanDocument(scanner interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	var verifiedAt sql.NullTime
	err := scanner.Scan(&d.ID, &d.PropertyID, &d.Name, &d.DocType, &d.URL, &d.Verified, &verifiedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		d.VerifiedAt = &verifiedAt.Time
	}
	return &d, nil
}

func (s *PropertyStore) listDocuments(propertyID int64) ([]model.Document, error) {
	rows, err := s.db.Query(
		`SELECT id, property_id, name, doc_type, url, verified, verified_at, created_at FROM documents WHERE property_id = ? ORDER BY id ASC`,
		propertyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// ApplyVerification performs an admin verify/reject transition.
//
// When documentIDs is non-empty only those documents are touched;
// otherwise the action applies to every document on the property. The
// property status is then recomputed from the documents: all verified
// means verified, a whole-property reject means rejected, anything
// partial falls back to pending. Reverifying a subset of a previously
// verified or rejected property therefore returns it to pending.
func (s *PropertyStore) ApplyVerification(propertyID int64, action, notes string, documentIDs []int64) (*model.Property, error) {
	p, err := s.GetByID(propertyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	verified := action == "verify"
	if len(documentIDs) > 0 {
		for _, docID := range documentIDs {
			if err := s.setDocumentVerified(propertyID, docID, verified); err != nil {
				return nil, err
			}
		}
	} else {
		if verified {
			_, err = s.db.Exec(
				`UPDATE documents SET verified = 1, verified_at = datetime('now') WHERE property_id = ?`,
				propertyID,
			)
		} else {
			_, err = s.db.Exec(
				`UPDATE documents SET verified = 0, verified_at = NULL WHERE property_id = ?`,
				propertyID,
			)
		}
		if err != nil {
			return nil, fmt.Errorf("update documents: %w", err)
		}
	}

	if notes != "" {
		if _, err := s.db.Exec(
			`UPDATE properties SET verification_notes = ?, updated_at = datetime('now') WHERE id = ?`,
			notes, propertyID,
		); err != nil {
			return nil, fmt.Errorf("update notes: %w", err)
		}
	}

	// A reject that names no documents condemns the whole property.
	finalOnFullReject := ""
	if !verified && len(documentIDs) == 0 {
		finalOnFullReject = model.StatusRejected
	}
	if err := s.recomputeStatus(propertyID, finalOnFullReject); err != nil {
		return nil, err
	}

	return s.GetByID(propertyID)
}

func (s *PropertyStore) setDocumentVerified(propertyID, docID int64, verified bool) error {
	var err error
	if verified {
		_, err = s.db.Exec(
			`UPDATE documents SET verified = 1, verified_at = datetime('now') WHERE id = ? AND property_id = ?`,
			docID, propertyID,
		)
	} else {
		_, err = s.db.Exec(
			`UPDATE documents SET verified = 0, verified_at = NULL WHERE id = ? AND property_id = ?`,
			docID, propertyID,
		)
	}
	if err != nil {
		return fmt.Errorf("set document verified: %w", err)
	}
	return nil
}

// recomputeStatus derives verification_status from the document rows.
// fallback overrides the pending default when no document remains
// verified (used for whole-property rejects).
func (s *PropertyStore) recomputeStatus(propertyID int64, fallback string) error {
	var total, verified int
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(verified), 0) FROM documents WHERE property_id = ?`,
		propertyID,
	).Scan(&total, &verified)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}

	status := model.StatusPending
	switch {
	case total > 0 && verified == total:
		status = model.StatusVerified
	case fallback != "":
		status = fallback
	}

	_, err = s.db.Exec(
		`UPDATE properties SET verification_status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, propertyID,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// MarkListed records a successful marketplace submission.
func (s *PropertyStore) MarkListed(propertyID int64, listingID string) error {
	_, err := s.db.Exec(
		`UPDATE properties SET listed_on_marketplace = 1, marketplace_listing_id = ?, updated_at = datetime('now') WHERE id = ?`,
		listingID, propertyID,
	)
	if err != nil {
		return fmt.Errorf("mark listed: %w", err)
	}
	return nil
}

// CountByOwner returns how many properties a user owns.
func (s *PropertyStore) CountByOwner(ownerID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM properties WHERE owner_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count properties: %w", err)
	}
	return n, nil
}

// Stats aggregates counts for the admin dashboard.
func (s *PropertyStore) Stats() (*model.VerificationStats, error) {
	var st model.VerificationStats

	err := s.db.QueryRow(
		`SELECT
			COALESCE(SUM(verification_status = 'pending'), 0),
			COALESCE(SUM(verification_status = 'verified'), 0),
			COALESCE(SUM(verification_status = 'rejected'), 0),
			COALESCE(SUM(listed_on_marketplace), 0),
			COUNT(*)
		 FROM properties`,
	).Scan(&st.Pending, &st.Verified, &st.Rejected, &st.Listed, &st.Total)
	if err != nil {
		return nil, fmt.Errorf("property stats: %w", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(verified), 0) FROM documents`,
	).Scan(&st.TotalDocuments, &st.VerifiedDocuments)
	if err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM properties WHERE verification_status = 'verified' AND updated_at >= datetime('now', '-7 days')`,
	).Scan(&st.RecentVerifications)
	if err != nil {
		return nil, fmt.Errorf("recent verifications: %w", err)
	}

	return &st, nil
}
