package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// CreateFundRequest represents a fund listing submission.
type CreateFundRequest struct {
	Name              string `json:"name"`
	Size              string `json:"size"`
	MinimumInvestment string `json:"minimum_investment"`
	Strategy          string `json:"strategy"`
	SectorFocus       string `json:"sector_focus"`
	Geography         string `json:"geography"`
	IRR               string `json:"irr,omitempty"`
	MOIC              string `json:"moic,omitempty"`
	FeeTerms          string `json:"fee_terms,omitempty"`
}

// CreateFund handles fund listing creation by the authenticated agent.
func (h *Handler) CreateFund(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	agent, err := h.store.GetAgentByUserID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if agent == nil {
		h.Error(w, http.StatusForbidden, "agent profile not found")
		return
	}

	var req CreateFundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	size, err := decimal.NewFromString(req.Size)
	if err != nil || size.IsNegative() {
		h.Error(w, http.StatusBadRequest, "size must be a non-negative decimal")
		return
	}
	minimum, err := decimal.NewFromString(req.MinimumInvestment)
	if err != nil || minimum.IsNegative() {
		h.Error(w, http.StatusBadRequest, "minimum_investment must be a non-negative decimal")
		return
	}

	fund := &models.Fund{
		UploadedByAgentID: agent.ID,
		Name:              sanitizeName(req.Name),
		Size:              size,
		MinimumInvestment: minimum,
		Strategy:          req.Strategy,
		SectorFocus:       req.SectorFocus,
		Geography:         req.Geography,
		FeeTerms:          req.FeeTerms,
	}

	if req.IRR != "" {
		irr, err := decimal.NewFromString(req.IRR)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "irr must be a decimal")
			return
		}
		fund.IRR = &irr
	}
	if req.MOIC != "" {
		moic, err := decimal.NewFromString(req.MOIC)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "moic must be a decimal")
			return
		}
		fund.MOIC = &moic
	}

	created, err := h.store.CreateFund(r.Context(), fund)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create fund")
		return
	}

	metrics.FundsCreated.Inc()
	h.JSON(w, http.StatusCreated, created)
}

// ListFunds returns fund listings matching the query filters.
func (h *Handler) ListFunds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.FundFilter{
		Strategy:    q.Get("strategy"),
		SectorFocus: q.Get("sector_focus"),
		Geography:   q.Get("geography"),
		Limit:       50,
	}

	if raw := q.Get("agent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid agent ID format")
			return
		}
		filter.AgentID = &id
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			h.Error(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.Error(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		filter.Offset = n
	}

	funds, total, err := h.store.ListFunds(r.Context(), filter)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list funds")
		return
	}
	if funds == nil {
		funds = []models.Fund{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"funds": funds, "total": total})
}

// fundResponse is a fund listing with its attached documents.
type fundResponse struct {
	*models.Fund
	Documents []documentResponse `json:"documents"`
}

// GetFund returns a single fund listing with its documents.
func (h *Handler) GetFund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "fundID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid fund ID format")
		return
	}

	fund, err := h.store.GetFund(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if fund == nil {
		h.Error(w, http.StatusNotFound, "fund not found")
		return
	}

	docs, err := h.store.ListFundDocuments(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
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

	h.JSON(w, http.StatusOK, fundResponse{Fund: fund, Documents: out})
}

// DeleteFund removes a fund listing owned by the authenticated agent.
func (h *Handler) DeleteFund(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "fundID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid fund ID format")
		return
	}

	fund, err := h.store.GetFund(r.Context(), id)
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

	if err := h.store.DeleteFund(r.Context(), id); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete fund")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
