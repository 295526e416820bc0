package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
)

// ExpressInterestRequest identifies the fund an investor is interested in.
type ExpressInterestRequest struct {
	FundID string `json:"fund_id"`
}

// ExpressInterest records the authenticated investor's interest in a fund.
func (h *Handler) ExpressInterest(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	investor, err := h.store.GetInvestorByUserID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if investor == nil {
		h.Error(w, http.StatusForbidden, "investor profile not found")
		return
	}

	var req ExpressInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fundID, err := uuid.Parse(req.FundID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid fund ID format")
		return
	}

	interest, err := h.interests.Add(r.Context(), investor.ID, fundID)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, interest)
}

// WithdrawInterest removes an interest owned by the authenticated investor.
func (h *Handler) WithdrawInterest(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	investor, err := h.store.GetInvestorByUserID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if investor == nil {
		h.Error(w, http.StatusForbidden, "investor profile not found")
		return
	}

	interestID, err := uuid.Parse(chi.URLParam(r, "interestID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid interest ID format")
		return
	}

	if err := h.interests.Remove(r.Context(), interestID, investor.ID); err != nil {
		h.Fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMyInterests returns the authenticated investor's interests with fund
// and agent context.
func (h *Handler) ListMyInterests(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	investor, err := h.store.GetInvestorByUserID(r.Context(), user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if investor == nil {
		h.Error(w, http.StatusForbidden, "investor profile not found")
		return
	}

	interests, err := h.interests.ListForInvestor(r.Context(), investor.ID)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"interests": interests})
}

// ListReceivedInterests returns interests expressed in the authenticated
// agent's funds.
func (h *Handler) ListReceivedInterests(w http.ResponseWriter, r *http.Request) {
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

	interests, err := h.interests.ListForAgent(r.Context(), agent.ID)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"interests": interests})
}
