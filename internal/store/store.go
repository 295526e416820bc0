package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// DataStore defines the interface for persistent storage of users, funds,
// interests, conversations and messages. Both PostgresStore and SQLiteStore
// implement this interface.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error

	// Profile operations
	CreateAgent(ctx context.Context, userID uuid.UUID, name, firmName string) (*models.Agent, error)
	GetAgentByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	GetAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error)
	CreateInvestor(ctx context.Context, userID uuid.UUID, name string, introducingAgent *uuid.UUID) (*models.Investor, error)
	GetInvestorByID(ctx context.Context, id uuid.UUID) (*models.Investor, error)
	GetInvestorByUserID(ctx context.Context, userID uuid.UUID) (*models.Investor, error)

	// Fund operations
	CreateFund(ctx context.Context, fund *models.Fund) (*models.Fund, error)
	GetFund(ctx context.Context, id uuid.UUID) (*models.Fund, error)
	ListFunds(ctx context.Context, filter models.FundFilter) ([]models.Fund, int, error)
	DeleteFund(ctx context.Context, id uuid.UUID) error

	// Fund document operations
	CreateFundDocument(ctx context.Context, doc *models.FundDocument) (*models.FundDocument, error)
	ListFundDocuments(ctx context.Context, fundID uuid.UUID) ([]models.FundDocument, error)
	GetFundDocument(ctx context.Context, id uuid.UUID) (*models.FundDocument, error)
	DeleteFundDocument(ctx context.Context, id uuid.UUID) error

	// Interest operations
	CreateInterest(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error)
	// CreateInterestIfAbsent inserts unless an interest for the same
	// (investor, fund) pair already exists; returns nil, nil on a duplicate.
	// Under the reject-duplicates schema the pair carries a unique index, so
	// concurrent calls cannot both insert.
	CreateInterestIfAbsent(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error)
	GetInterest(ctx context.Context, id uuid.UUID) (*models.Interest, error)
	DeleteInterest(ctx context.Context, id uuid.UUID) error
	ListInvestorInterests(ctx context.Context, investorID uuid.UUID) ([]models.InvestorInterest, error)
	ListAgentInterests(ctx context.Context, agentID uuid.UUID) ([]models.AgentInterest, error)

	// Conversation operations. CreateConversationIfAbsent relies on the
	// unique (investor_id, agent_id) constraint: on conflict it returns
	// nil, nil and the caller re-selects, closing the find-or-create race.
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationByPair(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error)
	CreateConversationIfAbsent(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, role models.Role, participantID uuid.UUID) ([]models.Conversation, error)
	// UpdateLastRead moves the read high-water mark for one participant's
	// side only. Single-writer per field.
	UpdateLastRead(ctx context.Context, conversationID uuid.UUID, role models.Role, readAt time.Time) error

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int, before time.Time) ([]models.Message, error)
	GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error)
	// CountUnread counts messages newer than after (all messages when after
	// is nil) not sent by userID. Indexed range count, not fetch-then-filter.
	CountUnread(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID, after *time.Time) (int, error)
}
