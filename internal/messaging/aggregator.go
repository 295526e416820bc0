package messaging

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/apperr"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// ComputeUnread aggregates per-conversation and total unread counts for one
// user acting in one role.
//
// Unread is an indexed range count against the caller's last_read mark, not a
// fetch-then-filter over a bounded window, so deep backlogs report exactly.
// Self-authored messages never count, and a conversation whose newest message
// is the caller's own reports zero. Conversations with no messages are
// excluded. A failure on one conversation is logged and that conversation
// skipped; a failure listing conversations aborts the whole computation.
func (s *Service) ComputeUnread(ctx context.Context, userID uuid.UUID, role models.Role) (*models.UnreadSummary, error) {
	pid, err := s.profileID(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	convs, err := s.store.ListConversations(ctx, role, pid)
	if err != nil {
		return nil, apperr.Unavailable("failed to list conversations", err)
	}

	summary := &models.UnreadSummary{Conversations: []models.ConversationSummary{}}

	for i := range convs {
		conv := &convs[i]

		last, err := s.store.GetLastMessage(ctx, conv.ID)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("conversation_id", conv.ID.String()).
				Msg("skipping conversation: last message fetch failed")
			continue
		}
		if last == nil {
			continue
		}

		unread := 0
		if last.SenderID != userID {
			unread, err = s.store.CountUnread(ctx, conv.ID, userID, conv.LastReadFor(role))
			if err != nil {
				s.logger.Warn().Err(err).
					Str("conversation_id", conv.ID.String()).
					Msg("skipping conversation: unread count failed")
				continue
			}
		}

		summary.Conversations = append(summary.Conversations, models.ConversationSummary{
			ID:                   conv.ID,
			OtherParticipantName: s.otherParticipantName(ctx, conv, role),
			LastMessage:          last.Content,
			LastMessageAt:        last.CreatedAt,
			UnreadCount:          unread,
		})
		summary.TotalUnread += unread
	}

	sort.SliceStable(summary.Conversations, func(i, j int) bool {
		a, b := summary.Conversations[i], summary.Conversations[j]
		if a.UnreadCount != b.UnreadCount {
			return a.UnreadCount > b.UnreadCount
		}
		return a.LastMessageAt.After(b.LastMessageAt)
	})

	return summary, nil
}

// otherParticipantName resolves the display name of the conversation's other
// side, falling back to the generic role label when the profile join is
// missing or malformed.
func (s *Service) otherParticipantName(ctx context.Context, conv *models.Conversation, role models.Role) string {
	if role == models.RoleInvestor {
		agent, err := s.store.GetAgentByID(ctx, conv.AgentID)
		if err != nil || agent == nil || agent.Name == "" {
			return "Agent"
		}
		return agent.Name
	}

	investor, err := s.store.GetInvestorByID(ctx, conv.InvestorID)
	if err != nil || investor == nil || investor.Name == "" {
		return "Investor"
	}
	return investor.Name
}
