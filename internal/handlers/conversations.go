package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// ResolveConversationRequest identifies the counterparty to talk to.
// Investors pass agent_id; agents pass investor_id.
type ResolveConversationRequest struct {
	AgentID    string `json:"agent_id,omitempty"`
	InvestorID string `json:"investor_id,omitempty"`
}

// ResolveConversation finds or creates the conversation between the
// authenticated user and the named counterparty.
func (h *Handler) ResolveConversation(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	var req ResolveConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var investorID, agentID uuid.UUID
	switch user.Role {
	case models.RoleInvestor:
		investor, err := h.store.GetInvestorByUserID(r.Context(), user.ID)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "database error")
			return
		}
		if investor == nil {
			h.Error(w, http.StatusForbidden, "investor profile not found")
			return
		}
		investorID = investor.ID
		agentID, err = uuid.Parse(req.AgentID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid agent ID format")
			return
		}
	case models.RoleAgent:
		agent, err := h.store.GetAgentByUserID(r.Context(), user.ID)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "database error")
			return
		}
		if agent == nil {
			h.Error(w, http.StatusForbidden, "agent profile not found")
			return
		}
		agentID = agent.ID
		investorID, err = uuid.Parse(req.InvestorID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid investor ID format")
			return
		}
	default:
		h.Error(w, http.StatusForbidden, "only agents and investors can start conversations")
		return
	}

	conv, err := h.messaging.Resolve(r.Context(), investorID, agentID)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, conv)
}

// ListConversations returns the authenticated user's conversations with
// unread counts, most urgent first.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	summary, err := h.messaging.ComputeUnread(r.Context(), user.ID, user.Role)
	if err != nil {
		h.Fail(w, err)
		return
	}

	metrics.UnreadRecomputes.WithLabelValues("list").Inc()
	h.JSON(w, http.StatusOK, summary)
}

// ListMessages returns a page of messages in a conversation, newest first,
// and marks the conversation read for the caller.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			h.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
			return
		}
	}

	msgs, err := h.messaging.OpenConversation(r.Context(), convID, user.ID, user.Role, limit, before)
	if err != nil {
		h.Fail(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// SendMessageRequest carries the message body.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage appends a message to a conversation the authenticated user
// participates in.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid conversation ID format")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.messaging.SendMessage(r.Context(), convID, user.ID, user.Role, req.Content)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}
