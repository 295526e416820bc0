package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool

	allowDuplicateInterests bool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool and
// ensures the schema exists. The duplicate-interest policy shapes the schema:
// under the reject policy the (investor, fund) pair carries a unique index so
// concurrent inserts cannot both land.
func NewPostgresStore(ctx context.Context, databaseURL string, allowDuplicateInterests bool) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool, allowDuplicateInterests: allowDuplicateInterests}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS agents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		firm_name TEXT NOT NULL DEFAULT '',
		verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS investors (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		introducing_agent_id UUID REFERENCES agents(id),
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS funds (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		uploaded_by_agent_id UUID NOT NULL REFERENCES agents(id),
		name TEXT NOT NULL,
		size NUMERIC NOT NULL DEFAULT 0,
		minimum_investment NUMERIC NOT NULL DEFAULT 0,
		strategy TEXT NOT NULL DEFAULT '',
		sector_focus TEXT NOT NULL DEFAULT '',
		geography TEXT NOT NULL DEFAULT '',
		irr NUMERIC,
		moic NUMERIC,
		fee_terms TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS fund_documents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		fund_id UUID NOT NULL REFERENCES funds(id) ON DELETE CASCADE,
		document_type TEXT NOT NULL DEFAULT '',
		object_key TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS interests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		investor_id UUID NOT NULL REFERENCES investors(id) ON DELETE CASCADE,
		fund_id UUID NOT NULL REFERENCES funds(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		investor_id UUID NOT NULL REFERENCES investors(id),
		agent_id UUID NOT NULL REFERENCES agents(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		investor_last_read TIMESTAMPTZ,
		agent_last_read TIMESTAMPTZ,
		UNIQUE (investor_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id UUID NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_funds_agent ON funds(uploaded_by_agent_id);
	CREATE INDEX IF NOT EXISTS idx_interests_fund ON interests(fund_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conv_time ON messages(conversation_id, created_at);
	`

	pairIndex := `CREATE UNIQUE INDEX IF NOT EXISTS uq_interests_pair ON interests(investor_id, fund_id);`
	if s.allowDuplicateInterests {
		pairIndex = `CREATE INDEX IF NOT EXISTS idx_interests_pair ON interests(investor_id, fund_id);`
	}

	_, err := s.pool.Exec(ctx, schema+pairIndex)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.pool.Ping(ctx)
	if err == nil {
		metrics.PostgresLatency.Observe(time.Since(start).Seconds())
	}
	return err
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, role, email_verified, created_at, updated_at
	`, email, passwordHash, string(role)).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, email_verified, created_at, updated_at
		FROM users `+where, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// MarkEmailVerified sets the email_verified flag.
func (s *PostgresStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

// CreateAgent creates an agent profile for a user.
func (s *PostgresStore) CreateAgent(ctx context.Context, userID uuid.UUID, name, firmName string) (*models.Agent, error) {
	agent := &models.Agent{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO agents (user_id, name, firm_name)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, firm_name, verified, created_at
	`, userID, name, firmName).Scan(
		&agent.ID,
		&agent.UserID,
		&agent.Name,
		&agent.FirmName,
		&agent.Verified,
		&agent.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// GetAgentByID retrieves an agent profile by ID.
func (s *PostgresStore) GetAgentByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return s.getAgent(ctx, `WHERE id = $1`, id)
}

// GetAgentByUserID retrieves the agent profile attached to a user.
func (s *PostgresStore) GetAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error) {
	return s.getAgent(ctx, `WHERE user_id = $1`, userID)
}

func (s *PostgresStore) getAgent(ctx context.Context, where string, arg any) (*models.Agent, error) {
	agent := &models.Agent{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, firm_name, verified, created_at
		FROM agents `+where, arg).Scan(
		&agent.ID,
		&agent.UserID,
		&agent.Name,
		&agent.FirmName,
		&agent.Verified,
		&agent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return agent, nil
}

// CreateInvestor creates an investor profile for a user.
func (s *PostgresStore) CreateInvestor(ctx context.Context, userID uuid.UUID, name string, introducingAgent *uuid.UUID) (*models.Investor, error) {
	inv := &models.Investor{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO investors (user_id, name, introducing_agent_id)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, introducing_agent_id, approved, created_at
	`, userID, name, introducingAgent).Scan(
		&inv.ID,
		&inv.UserID,
		&inv.Name,
		&inv.IntroducingAgent,
		&inv.Approved,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInvestorByID retrieves an investor profile by ID.
func (s *PostgresStore) GetInvestorByID(ctx context.Context, id uuid.UUID) (*models.Investor, error) {
	return s.getInvestor(ctx, `WHERE id = $1`, id)
}

// GetInvestorByUserID retrieves the investor profile attached to a user.
func (s *PostgresStore) GetInvestorByUserID(ctx context.Context, userID uuid.UUID) (*models.Investor, error) {
	return s.getInvestor(ctx, `WHERE user_id = $1`, userID)
}

func (s *PostgresStore) getInvestor(ctx context.Context, where string, arg any) (*models.Investor, error) {
	inv := &models.Investor{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, introducing_agent_id, approved, created_at
		FROM investors `+where, arg).Scan(
		&inv.ID,
		&inv.UserID,
		&inv.Name,
		&inv.IntroducingAgent,
		&inv.Approved,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

// CreateFund creates a new fund record.
func (s *PostgresStore) CreateFund(ctx context.Context, fund *models.Fund) (*models.Fund, error) {
	var irr, moic decimal.NullDecimal
	if fund.IRR != nil {
		irr = decimal.NullDecimal{Decimal: *fund.IRR, Valid: true}
	}
	if fund.MOIC != nil {
		moic = decimal.NullDecimal{Decimal: *fund.MOIC, Valid: true}
	}

	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO funds (uploaded_by_agent_id, name, size, minimum_investment, strategy, sector_focus, geography, irr, moic, fee_terms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, fund.UploadedByAgentID, fund.Name, fund.Size, fund.MinimumInvestment,
		fund.Strategy, fund.SectorFocus, fund.Geography, irr, moic, fund.FeeTerms,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	return s.GetFund(ctx, id)
}

func scanFund(row pgx.Row) (*models.Fund, error) {
	fund := &models.Fund{}
	var irr, moic decimal.NullDecimal
	err := row.Scan(
		&fund.ID,
		&fund.UploadedByAgentID,
		&fund.Name,
		&fund.Size,
		&fund.MinimumInvestment,
		&fund.Strategy,
		&fund.SectorFocus,
		&fund.Geography,
		&irr,
		&moic,
		&fund.FeeTerms,
		&fund.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if irr.Valid {
		fund.IRR = &irr.Decimal
	}
	if moic.Valid {
		fund.MOIC = &moic.Decimal
	}
	return fund, nil
}

const fundColumns = `id, uploaded_by_agent_id, name, size, minimum_investment, strategy, sector_focus, geography, irr, moic, fee_terms, created_at`

// GetFund retrieves a fund by ID.
func (s *PostgresStore) GetFund(ctx context.Context, id uuid.UUID) (*models.Fund, error) {
	fund, err := scanFund(s.pool.QueryRow(ctx,
		`SELECT `+fundColumns+` FROM funds WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fund, nil
}

// ListFunds retrieves funds matching the filter, newest first.
func (s *PostgresStore) ListFunds(ctx context.Context, filter models.FundFilter) ([]models.Fund, int, error) {
	where := `WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Strategy != "" {
		where += ` AND strategy = ` + arg(filter.Strategy)
	}
	if filter.SectorFocus != "" {
		where += ` AND sector_focus = ` + arg(filter.SectorFocus)
	}
	if filter.Geography != "" {
		where += ` AND geography = ` + arg(filter.Geography)
	}
	if filter.AgentID != nil {
		where += ` AND uploaded_by_agent_id = ` + arg(*filter.AgentID)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM funds `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + fundColumns + ` FROM funds ` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var funds []models.Fund
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, 0, err
		}
		funds = append(funds, *fund)
	}
	return funds, total, rows.Err()
}

// DeleteFund removes a fund and, via cascade, its documents and interests.
func (s *PostgresStore) DeleteFund(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM funds WHERE id = $1`, id)
	return err
}

// CreateFundDocument records an uploaded document.
func (s *PostgresStore) CreateFundDocument(ctx context.Context, doc *models.FundDocument) (*models.FundDocument, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO fund_documents (fund_id, document_type, object_key, file_name, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, doc.FundID, doc.DocumentType, doc.ObjectKey, doc.FileName, doc.SizeBytes).
		Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListFundDocuments retrieves all documents for a fund.
func (s *PostgresStore) ListFundDocuments(ctx context.Context, fundID uuid.UUID) ([]models.FundDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, fund_id, document_type, object_key, file_name, size_bytes, created_at
		FROM fund_documents WHERE fund_id = $1 ORDER BY created_at
	`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.FundDocument
	for rows.Next() {
		var doc models.FundDocument
		if err := rows.Scan(&doc.ID, &doc.FundID, &doc.DocumentType, &doc.ObjectKey, &doc.FileName, &doc.SizeBytes, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// GetFundDocument retrieves a document by ID.
func (s *PostgresStore) GetFundDocument(ctx context.Context, id uuid.UUID) (*models.FundDocument, error) {
	doc := &models.FundDocument{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, fund_id, document_type, object_key, file_name, size_bytes, created_at
		FROM fund_documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.FundID, &doc.DocumentType, &doc.ObjectKey, &doc.FileName, &doc.SizeBytes, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

// DeleteFundDocument removes a document record.
func (s *PostgresStore) DeleteFundDocument(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM fund_documents WHERE id = $1`, id)
	return err
}

// CreateInterest records an interest row unconditionally.
func (s *PostgresStore) CreateInterest(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error) {
	interest := &models.Interest{InvestorID: investorID, FundID: fundID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO interests (investor_id, fund_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, investorID, fundID).Scan(&interest.ID, &interest.CreatedAt)
	if err != nil {
		return nil, err
	}
	return interest, nil
}

// CreateInterestIfAbsent inserts unless the (investor, fund) pair already has
// an interest; returns nil, nil on a duplicate. The guard query handles
// committed rows; the unique pair index closes the concurrent window, with
// ON CONFLICT swallowing the losing insert instead of surfacing an error.
func (s *PostgresStore) CreateInterestIfAbsent(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error) {
	interest := &models.Interest{InvestorID: investorID, FundID: fundID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO interests (investor_id, fund_id)
		SELECT $1, $2
		WHERE NOT EXISTS (
			SELECT 1 FROM interests WHERE investor_id = $1 AND fund_id = $2
		)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at
	`, investorID, fundID).Scan(&interest.ID, &interest.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return interest, nil
}

// GetInterest retrieves an interest by ID.
func (s *PostgresStore) GetInterest(ctx context.Context, id uuid.UUID) (*models.Interest, error) {
	interest := &models.Interest{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, investor_id, fund_id, created_at FROM interests WHERE id = $1
	`, id).Scan(&interest.ID, &interest.InvestorID, &interest.FundID, &interest.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return interest, nil
}

// DeleteInterest removes an interest by ID.
func (s *PostgresStore) DeleteInterest(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM interests WHERE id = $1`, id)
	return err
}

// ListInvestorInterests retrieves an investor's interests joined to fund and
// uploading agent for display.
func (s *PostgresStore) ListInvestorInterests(ctx context.Context, investorID uuid.UUID) ([]models.InvestorInterest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.investor_id, i.fund_id, i.created_at, f.name, a.name, a.firm_name
		FROM interests i
		JOIN funds f ON f.id = i.fund_id
		JOIN agents a ON a.id = f.uploaded_by_agent_id
		WHERE i.investor_id = $1
		ORDER BY i.created_at DESC
	`, investorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InvestorInterest
	for rows.Next() {
		var ii models.InvestorInterest
		if err := rows.Scan(&ii.ID, &ii.InvestorID, &ii.FundID, &ii.CreatedAt, &ii.FundName, &ii.AgentName, &ii.FirmName); err != nil {
			return nil, err
		}
		out = append(out, ii)
	}
	return out, rows.Err()
}

// ListAgentInterests retrieves interests in the agent's funds joined to the
// investor profile.
func (s *PostgresStore) ListAgentInterests(ctx context.Context, agentID uuid.UUID) ([]models.AgentInterest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.investor_id, i.fund_id, i.created_at, f.name, inv.name
		FROM interests i
		JOIN funds f ON f.id = i.fund_id
		JOIN investors inv ON inv.id = i.investor_id
		WHERE f.uploaded_by_agent_id = $1
		ORDER BY i.created_at DESC
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgentInterest
	for rows.Next() {
		var ai models.AgentInterest
		if err := rows.Scan(&ai.ID, &ai.InvestorID, &ai.FundID, &ai.CreatedAt, &ai.FundName, &ai.InvestorName); err != nil {
			return nil, err
		}
		out = append(out, ai)
	}
	return out, rows.Err()
}

const conversationColumns = `id, investor_id, agent_id, created_at, investor_last_read, agent_last_read`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.ID, &c.InvestorID, &c.AgentID, &c.CreatedAt, &c.InvestorLastRead, &c.AgentLastRead)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// GetConversationByPair retrieves the conversation for an (investor, agent)
// pair. Earliest-created wins if duplicates predate the unique constraint.
func (s *PostgresStore) GetConversationByPair(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE investor_id = $1 AND agent_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, investorID, agentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// CreateConversationIfAbsent inserts a conversation for the pair; on a unique
// constraint conflict it returns nil, nil so the caller re-selects.
func (s *PostgresStore) CreateConversationIfAbsent(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (investor_id, agent_id)
		VALUES ($1, $2)
		ON CONFLICT (investor_id, agent_id) DO NOTHING
		RETURNING `+conversationColumns+`
	`, investorID, agentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListConversations retrieves all conversations where the given role's column
// matches participantID, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, role models.Role, participantID uuid.UUID) ([]models.Conversation, error) {
	column := "investor_id"
	if role == models.RoleAgent {
		column = "agent_id"
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE `+column+` = $1 ORDER BY created_at DESC`,
		participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateLastRead moves the read high-water mark for one participant's side.
func (s *PostgresStore) UpdateLastRead(ctx context.Context, conversationID uuid.UUID, role models.Role, readAt time.Time) error {
	column := "investor_last_read"
	if role == models.RoleAgent {
		column = "agent_last_read"
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE conversations SET `+column+` = $2 WHERE id = $1`,
		conversationID, readAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CreateMessage inserts an immutable message. ID and timestamp are assigned
// here if unset.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt)
	return err
}

// ListMessages retrieves messages newest first, optionally before a timestamp.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int, before time.Time) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages WHERE conversation_id = $1`
	args := []any{conversationID}
	if !before.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, before)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetLastMessage retrieves the newest message in a conversation, or nil.
func (s *PostgresStore) GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	m := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID).Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// CountUnread counts messages newer than after (all when after is nil) not
// sent by userID.
func (s *PostgresStore) CountUnread(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID, after *time.Time) (int, error) {
	var count int
	var err error
	if after == nil {
		err = s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = $1 AND sender_id <> $2
		`, conversationID, userID).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = $1 AND sender_id <> $2 AND created_at > $3
		`, conversationID, userID, *after).Scan(&count)
	}
	return count, err
}
