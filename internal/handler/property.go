package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/whodeedit/whodeedit/internal/auth"
	"github.com/whodeedit/whodeedit/internal/marketplace"
	"github.com/whodeedit/whodeedit/internal/model"
	"github.com/whodeedit/whodeedit/internal/store"
)

type PropertyHandler struct {
	properties  *store.PropertyStore
	marketplace *marketplace.Client
	logger      *slog.Logger
}

func NewPropertyHandler(ps *store.PropertyStore, mc *marketplace.Client, logger *slog.Logger) *PropertyHandler {
	return &PropertyHandler{properties: ps, marketplace: mc, logger: logger}
}

type propertyRequest struct {
	PropertyName  string   `json:"propertyName"`
	Location      string   `json:"location"`
	StreetAddress string   `json:"streetAddress"`
	Lat           float64  `json:"lat"`
	Lng           float64  `json:"lng"`
	PropertyType  string   `json:"propertyType"`
	SpecificType  string   `json:"specificType"`
	Price         float64  `json:"price"`
	Space         float64  `json:"space"`
	Bedrooms      *int     `json:"bedrooms"`
	Bathrooms     *int     `json:"bathrooms"`
	Images        []string `json:"images"`
}

func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req propertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.PropertyName = strings.TrimSpace(req.PropertyName)
	req.Location = strings.TrimSpace(req.Location)
	if req.PropertyName == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "propertyName and location are required")
		return
	}
	if !model.PropertyTypes[req.PropertyType] {
		writeError(w, http.StatusBadRequest, "invalid property type")
		return
	}

	p := &model.Property{
		OwnerID:       auth.UserID(r.Context()),
		PropertyName:  req.PropertyName,
		Location:      req.Location,
		StreetAddress: req.StreetAddress,
		Lat:           req.Lat,
		Lng:           req.Lng,
		PropertyType:  req.PropertyType,
		SpecificType:  req.SpecificType,
		Price:         req.Price,
		Space:         req.Space,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		Images:        req.Images,
	}

	created, err := h.properties.Create(p)
	if err != nil {
		h.logger.Error("failed to create property", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create property")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success",
		"data":   map[string]any{"property": created},
	})
}

// Get is the public property read. The owner summary is attached so
// marketplace visitors can see who listed it.
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	p, err := h.properties.GetByID(id)
	if err != nil {
		h.logger.Error("failed to load property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	if err := h.properties.AttachOwner(p); err != nil {
		h.logger.Error("failed to attach owner", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"property": p},
	})
}

type propertyUpdateRequest struct {
	PropertyName  *string   `json:"propertyName"`
	Location      *string   `json:"location"`
	StreetAddress *string   `json:"streetAddress"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
	PropertyType  *string   `json:"propertyType"`
	SpecificType  *string   `json:"specificType"`
	Price         *float64  `json:"price"`
	Space         *float64  `json:"space"`
	Bedrooms      *int      `json:"bedrooms"`
	Bathrooms     *int      `json:"bathrooms"`
	Images        *[]string `json:"images"`
}

// Update edits owner-editable fields. Ownership, verification state and
// marketplace listing state are never reachable from this path.
func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	p, err := h.properties.GetOwned(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to load property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	var req propertyUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PropertyName != nil {
		p.PropertyName = strings.TrimSpace(*req.PropertyName)
	}
	if req.Location != nil {
		p.Location = strings.TrimSpace(*req.Location)
	}
	if req.StreetAddress != nil {
		p.StreetAddress = *req.StreetAddress
	}
	if req.Lat != nil {
		p.Lat = *req.Lat
	}
	if req.Lng != nil {
		p.Lng = *req.Lng
	}
	if req.PropertyType != nil {
		if !model.PropertyTypes[*req.PropertyType] {
			writeError(w, http.StatusBadRequest, "invalid property type")
			return
		}
		p.PropertyType = *req.PropertyType
	}
	if req.SpecificType != nil {
		p.SpecificType = *req.SpecificType
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Space != nil {
		p.Space = *req.Space
	}
	if req.Bedrooms != nil {
		p.Bedrooms = req.Bedrooms
	}
	if req.Bathrooms != nil {
		p.Bathrooms = req.Bathrooms
	}
	if req.Images != nil {
		p.Images = *req.Images
	}
	if p.PropertyName == "" || p.Location == "" {
		writeError(w, http.StatusBadRequest, "propertyName and location are required")
		return
	}

	updated, err := h.properties.UpdateDetails(p)
	if err != nil {
		h.logger.Error("failed to update property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to update property")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"property": updated},
	})
}

// ListMine returns the caller's properties, newest first.
func (h *PropertyHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	properties, err := h.properties.ListByOwner(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to list properties", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list properties")
		return
	}
	if properties == nil {
		properties = []model.Property{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"properties": properties},
	})
}

type addDocumentRequest struct {
	Name         string `json:"name"`
	DocumentType string `json:"documentType"`
	URL          string `json:"url"`
}

// AddDocument attaches an uploaded document record to an owned property.
func (h *PropertyHandler) AddDocument(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	p, err := h.properties.GetOwned(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to load property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	var req addDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}
	if req.DocumentType == "" {
		req.DocumentType = "other"
	}

	doc, err := h.properties.AddDocument(id, req.Name, req.DocumentType, req.URL)
	if err != nil {
		h.logger.Error("failed to add document", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to add document")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "success",
		"data":   map[string]any{"document": doc},
	})
}

// VerificationStatus returns the owner's view of a property's
// verification progress.
func (h *PropertyHandler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	p, err := h.properties.GetOwned(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to load property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"verificationStatus":   p.VerificationStatus,
			"verificationNotes":    p.VerificationNotes,
			"documents":            p.Documents,
			"listedOnMarketplace":  p.ListedOnMarketplace,
			"marketplaceListingId": p.MarketplaceListingID,
		},
	})
}

// SubmitToMarketplace lists a verified property on the Daobitat
// marketplace. Each property is submitted at most once; the listed flag
// is checked before any upstream call is made.
func (h *PropertyHandler) SubmitToMarketplace(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	p, err := h.properties.GetOwned(id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to load property", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to load property")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	if p.VerificationStatus != model.StatusVerified {
		writeError(w, http.StatusForbidden, "property must be verified before listing")
		return
	}
	if p.ListedOnMarketplace {
		writeError(w, http.StatusBadRequest, "property is already listed on the marketplace")
		return
	}

	var docs []marketplace.ListingDocument
	for _, d := range p.Documents {
		if !d.Verified {
			continue
		}
		docs = append(docs, marketplace.ListingDocument{
			DocumentType: d.DocType,
			FileName:     d.Name,
			FileURL:      d.URL,
		})
	}

	listingID, err := h.marketplace.CreateListing(r.Context(), marketplace.Listing{
		PropertyName:       p.PropertyName,
		Location:           p.Location,
		StreetAddress:      p.StreetAddress,
		Latitude:           p.Lat,
		Longitude:          p.Lng,
		PropertyType:       p.PropertyType,
		SpecificType:       p.SpecificType,
		Price:              p.Price,
		Space:              p.Space,
		Bedrooms:           p.Bedrooms,
		Bathrooms:          p.Bathrooms,
		Images:             p.Images,
		OwnerWallet:        auth.WalletAddress(r.Context()),
		VerificationMethod: "WhoDeedIt",
		Documents:          docs,
	})
	if err != nil {
		h.logger.Error("marketplace submission failed", "error", err, "property_id", id)
		writeError(w, http.StatusInternalServerError, "failed to submit to marketplace: "+err.Error())
		return
	}

	if err := h.properties.MarkListed(id, listingID); err != nil {
		h.logger.Error("failed to mark property listed", "error", err, "property_id", id, "listing_id", listingID)
		writeError(w, http.StatusInternalServerError, "failed to record marketplace listing")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"listingId":  listingID,
			"propertyId": id,
		},
	})
}
