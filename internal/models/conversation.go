package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the unique messaging channel between one investor and one
// agent. At most one row exists per (investor, agent) pair; the store enforces
// this with a unique constraint.
//
// InvestorLastRead and AgentLastRead are per-participant high-water marks,
// each mutable only by its owning participant.
type Conversation struct {
	ID               uuid.UUID  `json:"id"`
	InvestorID       uuid.UUID  `json:"investor_id"`
	AgentID          uuid.UUID  `json:"agent_id"`
	CreatedAt        time.Time  `json:"created_at"`
	InvestorLastRead *time.Time `json:"investor_last_read,omitempty"`
	AgentLastRead    *time.Time `json:"agent_last_read,omitempty"`
}

// LastReadFor returns the read high-water mark for the given role.
func (c *Conversation) LastReadFor(role Role) *time.Time {
	if role == RoleAgent {
		return c.AgentLastRead
	}
	return c.InvestorLastRead
}

// ConversationSummary is one entry of an unread computation.
type ConversationSummary struct {
	ID                   uuid.UUID `json:"id"`
	OtherParticipantName string    `json:"other_participant_name"`
	LastMessage          string    `json:"last_message"`
	LastMessageAt        time.Time `json:"last_message_at"`
	UnreadCount          int       `json:"unread_count"`
}

// UnreadSummary is the full output of the unread aggregator for one user,
// sorted by unread count desc, then last message timestamp desc.
type UnreadSummary struct {
	TotalUnread   int                   `json:"total_unread"`
	Conversations []ConversationSummary `json:"conversations"`
}
