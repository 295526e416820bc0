package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

var allowedDocumentTypes = map[string]bool{
	"pitch_deck": true,
	"ppm":        true,
	"ddq":        true,
	"other":      true,
}

var allowedDocumentExtensions = map[string]string{
	".pdf":  "application/pdf",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// documentResponse wraps a stored document with its public URL.
type documentResponse struct {
	*models.FundDocument
	URL string `json:"url"`
}

// UploadFundDocument stores a document for a fund owned by the
// authenticated agent.
func (h *Handler) UploadFundDocument(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		h.Error(w, http.StatusServiceUnavailable, "document storage is not configured")
		return
	}

	user := middleware.GetUserFromContext(r.Context())

	fundID, err := uuid.Parse(chi.URLParam(r, "fundID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid fund ID format")
		return
	}

	fund, err := h.store.GetFund(r.Context(), fundID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if fund == nil {
		h.Error(w, http.StatusNotFound, "fund not found")
		return
	}

	agent, err := h.store.GetAgentByUserID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if agent == nil || agent.ID != fund.UploadedByAgentID {
		h.Error(w, http.StatusForbidden, "you do not own this fund")
		return
	}

	if err := r.ParseMultipartForm(h.cfg.StorageMaxBytes); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	docType := r.FormValue("document_type")
	if !allowedDocumentTypes[docType] {
		h.Error(w, http.StatusBadRequest, "document_type must be one of: pitch_deck, ppm, ddq, other")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.cfg.StorageMaxBytes {
		h.Error(w, http.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedDocumentExtensions[ext]
	if !ok {
		h.Error(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	key := fmt.Sprintf("funds/%s/%s%s", fundID, ulid.Make(), ext)
	if err := h.objects.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("document upload failed")
		h.Error(w, http.StatusServiceUnavailable, "failed to store document")
		return
	}

	doc := &models.FundDocument{
		FundID:       fundID,
		ObjectKey:    key,
		FileName:     filepath.Base(header.Filename),
		SizeBytes:    header.Size,
		DocumentType: docType,
	}
	created, err := h.store.CreateFundDocument(r.Context(), doc)
	if err != nil {
		// Orphaned objects are cleaned up by the bucket lifecycle, but
		// try to remove eagerly.
		if rmErr := h.objects.Remove(r.Context(), key); rmErr != nil {
			h.logger.Warn().Err(rmErr).Str("key", key).Msg("failed to remove orphaned object")
		}
		h.Error(w, http.StatusInternalServerError, "failed to record document")
		return
	}

	metrics.DocumentsUploaded.Inc()
	h.JSON(w, http.StatusCreated, documentResponse{FundDocument: created, URL: h.objects.PublicURL(key)})
}

// ListFundDocuments returns the documents attached to a fund.
func (h *Handler) ListFundDocuments(w http.ResponseWriter, r *http.Request) {
	fundID, err := uuid.Parse(chi.URLParam(r, "fundID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid fund ID format")
		return
	}

	fund, err := h.store.GetFund(r.Context(), fundID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if fund == nil {
		h.Error(w, http.StatusNotFound, "fund not found")
		return
	}

	docs, err := h.store.ListFundDocuments(r.Context(), fundID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		url := ""
		if h.objects != nil {
			url = h.objects.PublicURL(docs[i].ObjectKey)
		}
		out = append(out, documentResponse{FundDocument: &docs[i], URL: url})
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"documents": out})
}

// DeleteFundDocument removes a document from a fund owned by the
// authenticated agent.
func (h *Handler) DeleteFundDocument(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid document ID format")
		return
	}

	doc, err := h.store.GetFundDocument(r.Context(), docID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if doc == nil {
		h.Error(w, http.StatusNotFound, "document not found")
		return
	}

	fund, err := h.store.GetFund(r.Context(), doc.FundID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	agent, err := h.store.GetAgentByUserID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if agent == nil || fund == nil || agent.ID != fund.UploadedByAgentID {
		h.Error(w, http.StatusForbidden, "you do not own this fund")
		return
	}

	if err := h.store.DeleteFundDocument(r.Context(), docID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	if h.objects != nil {
		if err := h.objects.Remove(r.Context(), doc.ObjectKey); err != nil {
			h.logger.Warn().Err(err).Str("key", doc.ObjectKey).Msg("failed to remove stored object")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
