package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/whodeedit/whodeedit/internal/storage"
)

type UploadHandler struct {
	storage *storage.Service
	logger  *slog.Logger
}

func NewUploadHandler(s *storage.Service, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{storage: s, logger: logger}
}

type documentUploadRequest struct {
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	PropertyID   string `json:"propertyId"`
	DocumentType string `json:"documentType"`
}

// Document hands the client a presigned upload URL plus the read URL the
// stored document will be reachable at.
func (h *UploadHandler) Document(w http.ResponseWriter, r *http.Request) {
	var req documentUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileName == "" || req.FileType == "" || req.PropertyID == "" || req.DocumentType == "" {
		writeError(w, http.StatusBadRequest, "fileName, fileType, propertyId and documentType are required")
		return
	}
	if h.storage == nil {
		writeError(w, http.StatusInternalServerError, "document storage is not configured")
		return
	}

	urls, err := h.storage.PresignDocument(r.Context(), req.FileName, req.FileType, req.PropertyID, req.DocumentType)
	if err != nil {
		h.logger.Error("failed to presign upload", "error", err, "property_id", req.PropertyID)
		writeError(w, http.StatusInternalServerError, "failed to generate upload url: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"signedUrl":    urls.UploadURL,
			"fileUrl":      urls.ReadURL,
			"fileName":     urls.ObjectKey,
			"documentType": req.DocumentType,
			"propertyId":   req.PropertyID,
		},
	})
}
