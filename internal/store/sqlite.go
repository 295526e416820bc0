package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// SQLiteStore handles SQLite database operations. It implements the same
// DataStore interface as PostgresStore and backs development setups and the
// test suite.
type SQLiteStore struct {
	db *sql.DB

	allowDuplicateInterests bool
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/fundconnect.db".
// The duplicate-interest policy shapes the schema: under the reject policy
// the (investor, fund) pair carries a unique index.
func NewSQLiteStore(ctx context.Context, dbPath string, allowDuplicateInterests bool) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/fundconnect.db"
	}

	// In-memory and URI paths need no directory
	if !strings.HasPrefix(dbPath, "file:") && dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// Serialized access keeps the find-or-create upserts atomic under
	// concurrent resolve calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, allowDuplicateInterests: allowDuplicateInterests}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		email_verified INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		user_id TEXT UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		firm_name TEXT NOT NULL DEFAULT '',
		verified INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS investors (
		id TEXT PRIMARY KEY,
		user_id TEXT UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL DEFAULT '',
		introducing_agent_id TEXT REFERENCES agents(id),
		approved INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS funds (
		id TEXT PRIMARY KEY,
		uploaded_by_agent_id TEXT NOT NULL REFERENCES agents(id),
		name TEXT NOT NULL,
		size TEXT NOT NULL DEFAULT '0',
		minimum_investment TEXT NOT NULL DEFAULT '0',
		strategy TEXT NOT NULL DEFAULT '',
		sector_focus TEXT NOT NULL DEFAULT '',
		geography TEXT NOT NULL DEFAULT '',
		irr TEXT,
		moic TEXT,
		fee_terms TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fund_documents (
		id TEXT PRIMARY KEY,
		fund_id TEXT NOT NULL REFERENCES funds(id) ON DELETE CASCADE,
		document_type TEXT NOT NULL DEFAULT '',
		object_key TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interests (
		id TEXT PRIMARY KEY,
		investor_id TEXT NOT NULL REFERENCES investors(id) ON DELETE CASCADE,
		fund_id TEXT NOT NULL REFERENCES funds(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		investor_id TEXT NOT NULL REFERENCES investors(id),
		agent_id TEXT NOT NULL REFERENCES agents(id),
		created_at DATETIME NOT NULL,
		investor_last_read DATETIME,
		agent_last_read DATETIME,
		UNIQUE (investor_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_funds_agent ON funds(uploaded_by_agent_id);
	CREATE INDEX IF NOT EXISTS idx_interests_fund ON interests(fund_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conv_time ON messages(conversation_id, created_at);
	`

	pairIndex := `CREATE UNIQUE INDEX IF NOT EXISTS uq_interests_pair ON interests(investor_id, fund_id);`
	if s.allowDuplicateInterests {
		pairIndex = `CREATE INDEX IF NOT EXISTS idx_interests_pair ON interests(investor_id, fund_id);`
	}

	_, err := s.db.ExecContext(ctx, schema+pairIndex)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, role, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, id.String(), email, passwordHash, string(role), now, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, email_verified, created_at, updated_at
		FROM users `+where, arg).Scan(
		&idStr,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id.String())
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

// MarkEmailVerified sets the email_verified flag.
func (s *SQLiteStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id.String())
	return err
}

// CreateAgent creates an agent profile for a user.
func (s *SQLiteStore) CreateAgent(ctx context.Context, userID uuid.UUID, name, firmName string) (*models.Agent, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (id, user_id, name, firm_name, verified, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, id.String(), userID.String(), name, firmName, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return s.GetAgentByID(ctx, id)
}

func (s *SQLiteStore) getAgent(ctx context.Context, where string, arg any) (*models.Agent, error) {
	agent := &models.Agent{}
	var idStr, userStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, firm_name, verified, created_at
		FROM agents `+where, arg).Scan(
		&idStr,
		&userStr,
		&agent.Name,
		&agent.FirmName,
		&agent.Verified,
		&agent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	agent.ID = uuid.MustParse(idStr)
	agent.UserID = uuid.MustParse(userStr)
	return agent, nil
}

// GetAgentByID retrieves an agent profile by ID.
func (s *SQLiteStore) GetAgentByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	return s.getAgent(ctx, `WHERE id = ?`, id.String())
}

// GetAgentByUserID retrieves the agent profile attached to a user.
func (s *SQLiteStore) GetAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error) {
	return s.getAgent(ctx, `WHERE user_id = ?`, userID.String())
}

// CreateInvestor creates an investor profile for a user.
func (s *SQLiteStore) CreateInvestor(ctx context.Context, userID uuid.UUID, name string, introducingAgent *uuid.UUID) (*models.Investor, error) {
	id := uuid.New()
	var intro *string
	if introducingAgent != nil {
		v := introducingAgent.String()
		intro = &v
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investors (id, user_id, name, introducing_agent_id, approved, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, id.String(), userID.String(), name, intro, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return s.GetInvestorByID(ctx, id)
}

func (s *SQLiteStore) getInvestor(ctx context.Context, where string, arg any) (*models.Investor, error) {
	inv := &models.Investor{}
	var idStr, userStr string
	var intro *string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, introducing_agent_id, approved, created_at
		FROM investors `+where, arg).Scan(
		&idStr,
		&userStr,
		&inv.Name,
		&intro,
		&inv.Approved,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	inv.ID = uuid.MustParse(idStr)
	inv.UserID = uuid.MustParse(userStr)
	if intro != nil {
		v := uuid.MustParse(*intro)
		inv.IntroducingAgent = &v
	}
	return inv, nil
}

// GetInvestorByID retrieves an investor profile by ID.
func (s *SQLiteStore) GetInvestorByID(ctx context.Context, id uuid.UUID) (*models.Investor, error) {
	return s.getInvestor(ctx, `WHERE id = ?`, id.String())
}

// GetInvestorByUserID retrieves the investor profile attached to a user.
func (s *SQLiteStore) GetInvestorByUserID(ctx context.Context, userID uuid.UUID) (*models.Investor, error) {
	return s.getInvestor(ctx, `WHERE user_id = ?`, userID.String())
}

// CreateFund creates a new fund record.
func (s *SQLiteStore) CreateFund(ctx context.Context, fund *models.Fund) (*models.Fund, error) {
	id := uuid.New()
	var irr, moic *string
	if fund.IRR != nil {
		v := fund.IRR.String()
		irr = &v
	}
	if fund.MOIC != nil {
		v := fund.MOIC.String()
		moic = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funds (id, uploaded_by_agent_id, name, size, minimum_investment, strategy, sector_focus, geography, irr, moic, fee_terms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id.String(), fund.UploadedByAgentID.String(), fund.Name,
		fund.Size.String(), fund.MinimumInvestment.String(),
		fund.Strategy, fund.SectorFocus, fund.Geography,
		irr, moic, fund.FeeTerms, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return s.GetFund(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteFund(row rowScanner) (*models.Fund, error) {
	fund := &models.Fund{}
	var idStr, agentStr, size, minInv string
	var irr, moic *string
	err := row.Scan(
		&idStr,
		&agentStr,
		&fund.Name,
		&size,
		&minInv,
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
	fund.ID = uuid.MustParse(idStr)
	fund.UploadedByAgentID = uuid.MustParse(agentStr)
	if fund.Size, err = decimal.NewFromString(size); err != nil {
		return nil, err
	}
	if fund.MinimumInvestment, err = decimal.NewFromString(minInv); err != nil {
		return nil, err
	}
	if irr != nil {
		d, err := decimal.NewFromString(*irr)
		if err != nil {
			return nil, err
		}
		fund.IRR = &d
	}
	if moic != nil {
		d, err := decimal.NewFromString(*moic)
		if err != nil {
			return nil, err
		}
		fund.MOIC = &d
	}
	return fund, nil
}

// GetFund retrieves a fund by ID.
func (s *SQLiteStore) GetFund(ctx context.Context, id uuid.UUID) (*models.Fund, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fundColumns+` FROM funds WHERE id = ?`, id.String())
	fund, err := scanSQLiteFund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return fund, nil
}

// ListFunds retrieves funds matching the filter, newest first.
func (s *SQLiteStore) ListFunds(ctx context.Context, filter models.FundFilter) ([]models.Fund, int, error) {
	where := `WHERE 1=1`
	args := []any{}

	if filter.Strategy != "" {
		where += ` AND strategy = ?`
		args = append(args, filter.Strategy)
	}
	if filter.SectorFocus != "" {
		where += ` AND sector_focus = ?`
		args = append(args, filter.SectorFocus)
	}
	if filter.Geography != "" {
		where += ` AND geography = ?`
		args = append(args, filter.Geography)
	}
	if filter.AgentID != nil {
		where += ` AND uploaded_by_agent_id = ?`
		args = append(args, filter.AgentID.String())
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM funds `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM funds %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		fundColumns, where, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var funds []models.Fund
	for rows.Next() {
		fund, err := scanSQLiteFund(rows)
		if err != nil {
			return nil, 0, err
		}
		funds = append(funds, *fund)
	}
	return funds, total, rows.Err()
}

// DeleteFund removes a fund and, via cascade, its documents and interests.
func (s *SQLiteStore) DeleteFund(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM funds WHERE id = ?`, id.String())
	return err
}

// CreateFundDocument records an uploaded document.
func (s *SQLiteStore) CreateFundDocument(ctx context.Context, doc *models.FundDocument) (*models.FundDocument, error) {
	doc.ID = uuid.New()
	doc.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fund_documents (id, fund_id, document_type, object_key, file_name, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, doc.ID.String(), doc.FundID.String(), doc.DocumentType, doc.ObjectKey, doc.FileName, doc.SizeBytes, doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func scanSQLiteDocument(row rowScanner) (*models.FundDocument, error) {
	doc := &models.FundDocument{}
	var idStr, fundStr string
	err := row.Scan(&idStr, &fundStr, &doc.DocumentType, &doc.ObjectKey, &doc.FileName, &doc.SizeBytes, &doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	doc.ID = uuid.MustParse(idStr)
	doc.FundID = uuid.MustParse(fundStr)
	return doc, nil
}

// ListFundDocuments retrieves all documents for a fund.
func (s *SQLiteStore) ListFundDocuments(ctx context.Context, fundID uuid.UUID) ([]models.FundDocument, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fund_id, document_type, object_key, file_name, size_bytes, created_at
		FROM fund_documents WHERE fund_id = ? ORDER BY created_at
	`, fundID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.FundDocument
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// GetFundDocument retrieves a document by ID.
func (s *SQLiteStore) GetFundDocument(ctx context.Context, id uuid.UUID) (*models.FundDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fund_id, document_type, object_key, file_name, size_bytes, created_at
		FROM fund_documents WHERE id = ?
	`, id.String())
	doc, err := scanSQLiteDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

// DeleteFundDocument removes a document record.
func (s *SQLiteStore) DeleteFundDocument(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM fund_documents WHERE id = ?`, id.String())
	return err
}

// CreateInterest records an interest row unconditionally.
func (s *SQLiteStore) CreateInterest(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error) {
	interest := &models.Interest{
		ID:         uuid.New(),
		InvestorID: investorID,
		FundID:     fundID,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interests (id, investor_id, fund_id, created_at)
		VALUES (?, ?, ?, ?)
	`, interest.ID.String(), investorID.String(), fundID.String(), interest.CreatedAt)
	if err != nil {
		return nil, err
	}
	return interest, nil
}

// CreateInterestIfAbsent inserts unless the (investor, fund) pair already has
// an interest; returns nil, nil on a duplicate. The guard query handles
// committed rows; the unique pair index closes the concurrent window, with
// OR IGNORE swallowing the losing insert instead of surfacing an error.
func (s *SQLiteStore) CreateInterestIfAbsent(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error) {
	interest := &models.Interest{
		ID:         uuid.New(),
		InvestorID: investorID,
		FundID:     fundID,
		CreatedAt:  time.Now().UTC(),
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO interests (id, investor_id, fund_id, created_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM interests WHERE investor_id = ? AND fund_id = ?
		)
	`, interest.ID.String(), investorID.String(), fundID.String(), interest.CreatedAt,
		investorID.String(), fundID.String())
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return interest, nil
}

// GetInterest retrieves an interest by ID.
func (s *SQLiteStore) GetInterest(ctx context.Context, id uuid.UUID) (*models.Interest, error) {
	interest := &models.Interest{}
	var idStr, invStr, fundStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, investor_id, fund_id, created_at FROM interests WHERE id = ?
	`, id.String()).Scan(&idStr, &invStr, &fundStr, &interest.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	interest.ID = uuid.MustParse(idStr)
	interest.InvestorID = uuid.MustParse(invStr)
	interest.FundID = uuid.MustParse(fundStr)
	return interest, nil
}

// DeleteInterest removes an interest by ID.
func (s *SQLiteStore) DeleteInterest(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interests WHERE id = ?`, id.String())
	return err
}

// ListInvestorInterests retrieves an investor's interests joined to fund and
// uploading agent for display.
func (s *SQLiteStore) ListInvestorInterests(ctx context.Context, investorID uuid.UUID) ([]models.InvestorInterest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.investor_id, i.fund_id, i.created_at, f.name, a.name, a.firm_name
		FROM interests i
		JOIN funds f ON f.id = i.fund_id
		JOIN agents a ON a.id = f.uploaded_by_agent_id
		WHERE i.investor_id = ?
		ORDER BY i.created_at DESC
	`, investorID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InvestorInterest
	for rows.Next() {
		var ii models.InvestorInterest
		var idStr, invStr, fundStr string
		if err := rows.Scan(&idStr, &invStr, &fundStr, &ii.CreatedAt, &ii.FundName, &ii.AgentName, &ii.FirmName); err != nil {
			return nil, err
		}
		ii.ID = uuid.MustParse(idStr)
		ii.InvestorID = uuid.MustParse(invStr)
		ii.FundID = uuid.MustParse(fundStr)
		out = append(out, ii)
	}
	return out, rows.Err()
}

// ListAgentInterests retrieves interests in the agent's funds joined to the
// investor profile.
func (s *SQLiteStore) ListAgentInterests(ctx context.Context, agentID uuid.UUID) ([]models.AgentInterest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.investor_id, i.fund_id, i.created_at, f.name, inv.name
		FROM interests i
		JOIN funds f ON f.id = i.fund_id
		JOIN investors inv ON inv.id = i.investor_id
		WHERE f.uploaded_by_agent_id = ?
		ORDER BY i.created_at DESC
	`, agentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AgentInterest
	for rows.Next() {
		var ai models.AgentInterest
		var idStr, invStr, fundStr string
		if err := rows.Scan(&idStr, &invStr, &fundStr, &ai.CreatedAt, &ai.FundName, &ai.InvestorName); err != nil {
			return nil, err
		}
		ai.ID = uuid.MustParse(idStr)
		ai.InvestorID = uuid.MustParse(invStr)
		ai.FundID = uuid.MustParse(fundStr)
		out = append(out, ai)
	}
	return out, rows.Err()
}

func scanSQLiteConversation(row rowScanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	var idStr, invStr, agentStr string
	err := row.Scan(&idStr, &invStr, &agentStr, &c.CreatedAt, &c.InvestorLastRead, &c.AgentLastRead)
	if err != nil {
		return nil, err
	}
	c.ID = uuid.MustParse(idStr)
	c.InvestorID = uuid.MustParse(invStr)
	c.AgentID = uuid.MustParse(agentStr)
	return c, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id.String())
	c, err := scanSQLiteConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// GetConversationByPair retrieves the conversation for an (investor, agent)
// pair. Earliest-created wins if duplicates predate the unique constraint.
func (s *SQLiteStore) GetConversationByPair(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE investor_id = ? AND agent_id = ?
		ORDER BY created_at ASC
		LIMIT 1
	`, investorID.String(), agentID.String())
	c, err := scanSQLiteConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// CreateConversationIfAbsent inserts a conversation for the pair; on a unique
// constraint conflict it returns nil, nil so the caller re-selects.
func (s *SQLiteStore) CreateConversationIfAbsent(ctx context.Context, investorID, agentID uuid.UUID) (*models.Conversation, error) {
	id := uuid.New()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, investor_id, agent_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (investor_id, agent_id) DO NOTHING
	`, id.String(), investorID.String(), agentID.String(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetConversation(ctx, id)
}

// ListConversations retrieves all conversations where the given role's column
// matches participantID, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, role models.Role, participantID uuid.UUID) ([]models.Conversation, error) {
	column := "investor_id"
	if role == models.RoleAgent {
		column = "agent_id"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE `+column+` = ? ORDER BY created_at DESC`,
		participantID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		c, err := scanSQLiteConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateLastRead moves the read high-water mark for one participant's side.
func (s *SQLiteStore) UpdateLastRead(ctx context.Context, conversationID uuid.UUID, role models.Role, readAt time.Time) error {
	column := "investor_last_read"
	if role == models.RoleAgent {
		column = "agent_last_read"
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET `+column+` = ? WHERE id = ?`,
		readAt.UTC(), conversationID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateMessage inserts an immutable message. ID and timestamp are assigned
// here if unset.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID.String(), msg.SenderID.String(), msg.Content, msg.CreatedAt.UTC())
	return err
}

func scanSQLiteMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var convStr, senderStr string
	err := row.Scan(&m.ID, &convStr, &senderStr, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ConversationID = uuid.MustParse(convStr)
	m.SenderID = uuid.MustParse(senderStr)
	return m, nil
}

// ListMessages retrieves messages newest first, optionally before a timestamp.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int, before time.Time) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages WHERE conversation_id = ?`
	args := []any{conversationID.String()}
	if !before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, before.UTC())
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		m, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// GetLastMessage retrieves the newest message in a conversation, or nil.
func (s *SQLiteStore) GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, conversationID.String())
	m, err := scanSQLiteMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// CountUnread counts messages newer than after (all when after is nil) not
// sent by userID.
func (s *SQLiteStore) CountUnread(ctx context.Context, conversationID uuid.UUID, userID uuid.UUID, after *time.Time) (int, error) {
	var count int
	var err error
	if after == nil {
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = ? AND sender_id <> ?
		`, conversationID.String(), userID.String()).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM messages
			WHERE conversation_id = ? AND sender_id <> ? AND created_at > ?
		`, conversationID.String(), userID.String(), after.UTC()).Scan(&count)
	}
	return count, err
}
