// Package messaging implements the conversation core: find-or-create
// resolution of the unique investor/agent channel, message exchange, read
// marking, and unread aggregation.
package messaging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/apperr"
	"github.com/hughes7370/fundconnectv3-sub001/internal/bus"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

// Service wires the conversation operations over the data store and the
// event bus. All dependencies are injected; there is no ambient client.
type Service struct {
	store  store.DataStore
	bus    bus.Bus
	logger zerolog.Logger

	// messageWindow bounds the preview page fetched per conversation.
	messageWindow int
}

// NewService creates a messaging service.
func NewService(ds store.DataStore, b bus.Bus, logger zerolog.Logger, messageWindow int) *Service {
	if messageWindow <= 0 {
		messageWindow = 50
	}
	return &Service{store: ds, bus: b, logger: logger, messageWindow: messageWindow}
}

// profileID maps a user to their role profile id, verifying the profile
// exists.
func (s *Service) profileID(ctx context.Context, userID uuid.UUID, role models.Role) (uuid.UUID, error) {
	switch role {
	case models.RoleInvestor:
		inv, err := s.store.GetInvestorByUserID(ctx, userID)
		if err != nil {
			return uuid.Nil, apperr.Unavailable("failed to load investor profile", err)
		}
		if inv == nil {
			return uuid.Nil, apperr.NotFound("investor profile not found")
		}
		return inv.ID, nil
	case models.RoleAgent:
		agent, err := s.store.GetAgentByUserID(ctx, userID)
		if err != nil {
			return uuid.Nil, apperr.Unavailable("failed to load agent profile", err)
		}
		if agent == nil {
			return uuid.Nil, apperr.NotFound("agent profile not found")
		}
		return agent.ID, nil
	default:
		return uuid.Nil, apperr.Forbidden("role cannot participate in conversations")
	}
}

// requireParticipant checks that the user's role profile owns one side of the
// conversation.
func (s *Service) requireParticipant(ctx context.Context, conv *models.Conversation, userID uuid.UUID, role models.Role) error {
	pid, err := s.profileID(ctx, userID, role)
	if err != nil {
		return err
	}

	switch role {
	case models.RoleInvestor:
		if conv.InvestorID != pid {
			return apperr.Forbidden("not a participant in this conversation")
		}
	case models.RoleAgent:
		if conv.AgentID != pid {
			return apperr.Forbidden("not a participant in this conversation")
		}
	}
	return nil
}
