package messaging

import (
	"context"

	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/apperr"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// Resolve finds or creates the single conversation for an (investor, agent)
// pair and returns it.
//
// The read-then-write race between two near-simultaneous resolves is closed
// by the store's unique (investor_id, agent_id) constraint: the losing insert
// affects no rows and this method re-selects the winner, so concurrent calls
// for the same pair always converge on one conversation id. If duplicate rows
// predate the constraint, the earliest-created row wins.
func (s *Service) Resolve(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error) {
	if investorID == uuid.Nil {
		return nil, apperr.InvalidArg("investor id is required")
	}
	if agentID == uuid.Nil {
		return nil, apperr.InvalidArg("agent id is required")
	}

	investor, err := s.store.GetInvestorByID(ctx, investorID)
	if err != nil {
		return nil, apperr.Unavailable("failed to load investor", err)
	}
	if investor == nil {
		return nil, apperr.NotFound("investor not found")
	}

	agent, err := s.store.GetAgentByID(ctx, agentID)
	if err != nil {
		return nil, apperr.Unavailable("failed to load agent", err)
	}
	if agent == nil {
		return nil, apperr.NotFound("agent not found")
	}

	existing, err := s.store.GetConversationByPair(ctx, investorID, agentID)
	if err != nil {
		return nil, apperr.Unavailable("failed to look up conversation", err)
	}
	if existing != nil {
		return existing, nil
	}

	created, err := s.store.CreateConversationIfAbsent(ctx, investorID, agentID)
	if err != nil {
		return nil, apperr.Unavailable("failed to create conversation", err)
	}
	if created != nil {
		metrics.ConversationsCreated.Inc()
		return created, nil
	}

	// Lost the insert race; the winner's row exists now.
	winner, err := s.store.GetConversationByPair(ctx, investorID, agentID)
	if err != nil {
		return nil, apperr.Unavailable("failed to look up conversation", err)
	}
	if winner == nil {
		return nil, apperr.Internal("conversation vanished after conflicting insert")
	}
	return winner, nil
}
