package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/apperr"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// maxMessageBytes caps a single message body.
const maxMessageBytes = 4096

// SendMessage inserts an immutable message into a conversation the sender
// participates in, then publishes a MessageEvent on the bus. Publishing is
// best effort: the message is durable once inserted, and a lost event only
// delays the badge until the next full aggregation.
func (s *Service) SendMessage(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID, role models.Role, content string) (*models.Message, error) {
	if content == "" {
		return nil, apperr.InvalidArg("content is required")
	}
	if len(content) > maxMessageBytes {
		return nil, apperr.InvalidArg("content too long (max 4096 bytes)")
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Unavailable("failed to load conversation", err)
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation not found")
	}

	if err := s.requireParticipant(ctx, conv, userID, role); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Unavailable("failed to store message", err)
	}
	metrics.MessagesSent.Inc()

	s.publishMessageEvent(ctx, conv, msg)

	return msg, nil
}

func (s *Service) publishMessageEvent(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	investor, err := s.store.GetInvestorByID(ctx, conv.InvestorID)
	if err != nil || investor == nil {
		s.logger.Warn().Err(err).
			Str("conversation_id", conv.ID.String()).
			Msg("skipping message event: investor profile unavailable")
		return
	}
	agent, err := s.store.GetAgentByID(ctx, conv.AgentID)
	if err != nil || agent == nil {
		s.logger.Warn().Err(err).
			Str("conversation_id", conv.ID.String()).
			Msg("skipping message event: agent profile unavailable")
		return
	}

	ev := models.MessageEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		SenderID:       msg.SenderID,
		InvestorUserID: investor.UserID,
		AgentUserID:    agent.UserID,
		CreatedAt:      msg.CreatedAt,
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("message_id", msg.ID).
			Msg("failed to publish message event")
	}
}

// OpenConversation marks the caller's side of the conversation read, then
// returns the newest page of messages. The read mark is persisted before the
// page is returned so an interrupted open still clears the badge.
func (s *Service) OpenConversation(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID, role models.Role, limit int, before time.Time) ([]models.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Unavailable("failed to load conversation", err)
	}
	if conv == nil {
		return nil, apperr.NotFound("conversation not found")
	}

	if err := s.requireParticipant(ctx, conv, userID, role); err != nil {
		return nil, err
	}

	if err := s.store.UpdateLastRead(ctx, conversationID, role, time.Now().UTC()); err != nil {
		return nil, apperr.Unavailable("failed to mark conversation read", err)
	}

	if limit <= 0 || limit > s.messageWindow {
		limit = s.messageWindow
	}

	msgs, err := s.store.ListMessages(ctx, conversationID, limit, before)
	if err != nil {
		return nil, apperr.Unavailable("failed to fetch messages", err)
	}
	return msgs, nil
}
