package models

import (
	"time"

	"github.com/google/uuid"
)

// Message belongs to exactly one conversation. Immutable once created; never
// updated, only inserted. IDs are ULIDs so lexical order matches insert order
// and gives a stable tiebreak for same-timestamp messages.
type Message struct {
	ID             string    `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessageEvent is published on the event bus after a message insert.
type MessageEvent struct {
	MessageID      string    `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	InvestorUserID uuid.UUID `json:"investor_user_id"`
	AgentUserID    uuid.UUID `json:"agent_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}
