package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ds, err := NewSQLiteStore(context.Background(), ":memory:", false)
	require.NoError(t, err)
	t.Cleanup(ds.Close)
	return ds
}

func seedPair(t *testing.T, ds *SQLiteStore) (*models.Investor, *models.Agent) {
	t.Helper()
	ctx := context.Background()

	investorUser, err := ds.CreateUser(ctx, "alice@example.com", "hash", models.RoleInvestor)
	require.NoError(t, err)
	investor, err := ds.CreateInvestor(ctx, investorUser.ID, "Alice", nil)
	require.NoError(t, err)

	agentUser, err := ds.CreateUser(ctx, "bob@example.com", "hash", models.RoleAgent)
	require.NoError(t, err)
	agent, err := ds.CreateAgent(ctx, agentUser.ID, "Bob", "Bob Capital")
	require.NoError(t, err)

	return investor, agent
}

func TestUserRoundTrip(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()

	created, err := ds.CreateUser(ctx, "alice@example.com", "hash", models.RoleInvestor)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.EmailVerified)

	byEmail, err := ds.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, models.RoleInvestor, byEmail.Role)

	missing, err := ds.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, ds.MarkEmailVerified(ctx, created.ID))
	verified, err := ds.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
}

func TestConversationUpsert(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	investor, agent := seedPair(t, ds)

	t.Run("first insert wins", func(t *testing.T) {
		conv, err := ds.CreateConversationIfAbsent(ctx, investor.ID, agent.ID)
		require.NoError(t, err)
		require.NotNil(t, conv)
		assert.Equal(t, investor.ID, conv.InvestorID)
		assert.Equal(t, agent.ID, conv.AgentID)
	})

	t.Run("second insert returns nil for the caller to re-select", func(t *testing.T) {
		dup, err := ds.CreateConversationIfAbsent(ctx, investor.ID, agent.ID)
		require.NoError(t, err)
		assert.Nil(t, dup)

		existing, err := ds.GetConversationByPair(ctx, investor.ID, agent.ID)
		require.NoError(t, err)
		require.NotNil(t, existing)
	})

	t.Run("listed for both sides", func(t *testing.T) {
		forInvestor, err := ds.ListConversations(ctx, models.RoleInvestor, investor.ID)
		require.NoError(t, err)
		assert.Len(t, forInvestor, 1)

		forAgent, err := ds.ListConversations(ctx, models.RoleAgent, agent.ID)
		require.NoError(t, err)
		assert.Len(t, forAgent, 1)
	})
}

func TestUpdateLastRead(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	investor, agent := seedPair(t, ds)

	conv, err := ds.CreateConversationIfAbsent(ctx, investor.ID, agent.ID)
	require.NoError(t, err)

	readAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, ds.UpdateLastRead(ctx, conv.ID, models.RoleInvestor, readAt))

	got, err := ds.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InvestorLastRead)
	assert.WithinDuration(t, readAt, *got.InvestorLastRead, time.Second)
	// The agent's mark is untouched; each side owns its own field.
	assert.Nil(t, got.AgentLastRead)

	err = ds.UpdateLastRead(ctx, uuid.New(), models.RoleInvestor, readAt)
	assert.Error(t, err)
}

func TestMessageOrderingAndCounts(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	investor, agent := seedPair(t, ds)

	conv, err := ds.CreateConversationIfAbsent(ctx, investor.ID, agent.ID)
	require.NoError(t, err)

	investorUser, err := ds.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	agentUser, err := ds.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)

	base := time.Now().UTC().Add(-time.Hour)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	for i, m := range []struct {
		sender  uuid.UUID
		content string
		min     int
	}{
		{agentUser.ID, "from agent 1", 0},
		{investorUser.ID, "from investor", 1},
		{agentUser.ID, "from agent 2", 2},
		{agentUser.ID, "from agent 3", 3},
	} {
		msg := &models.Message{ConversationID: conv.ID, SenderID: m.sender, Content: m.content, CreatedAt: at(m.min)}
		require.NoError(t, ds.CreateMessage(ctx, msg), "message %d", i)
	}

	t.Run("newest first with before cursor", func(t *testing.T) {
		page, err := ds.ListMessages(ctx, conv.ID, 2, time.Time{})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "from agent 3", page[0].Content)
		assert.Equal(t, "from agent 2", page[1].Content)

		older, err := ds.ListMessages(ctx, conv.ID, 10, page[1].CreatedAt)
		require.NoError(t, err)
		require.Len(t, older, 2)
		assert.Equal(t, "from investor", older[0].Content)
	})

	t.Run("last message", func(t *testing.T) {
		last, err := ds.GetLastMessage(ctx, conv.ID)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, "from agent 3", last.Content)

		empty, err := ds.GetLastMessage(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, empty)
	})

	t.Run("unread excludes own and read messages", func(t *testing.T) {
		all, err := ds.CountUnread(ctx, conv.ID, investorUser.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, all, "three agent messages, own message excluded")

		// The mark sits between "from agent 1" and the later two. Strictly
		// newer messages count.
		mark := at(1)
		unread, err := ds.CountUnread(ctx, conv.ID, investorUser.ID, &mark)
		require.NoError(t, err)
		assert.Equal(t, 2, unread)
	})
}

func TestInterestIfAbsent(t *testing.T) {
	ctx := context.Background()

	seedFund := func(t *testing.T, ds *SQLiteStore) (*models.Investor, *models.Fund) {
		t.Helper()
		investor, agent := seedPair(t, ds)
		fund, err := ds.CreateFund(ctx, &models.Fund{
			UploadedByAgentID: agent.ID,
			Name:              "Fund A",
			Size:              decimal.NewFromInt(1000),
			MinimumInvestment: decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		return investor, fund
	}

	t.Run("second insert for the pair returns nil", func(t *testing.T) {
		ds := newTestStore(t)
		investor, fund := seedFund(t, ds)

		first, err := ds.CreateInterestIfAbsent(ctx, investor.ID, fund.ID)
		require.NoError(t, err)
		require.NotNil(t, first)

		dup, err := ds.CreateInterestIfAbsent(ctx, investor.ID, fund.ID)
		require.NoError(t, err)
		assert.Nil(t, dup)
	})

	t.Run("unique index backs the guard query", func(t *testing.T) {
		ds := newTestStore(t)
		investor, fund := seedFund(t, ds)

		_, err := ds.CreateInterest(ctx, investor.ID, fund.ID)
		require.NoError(t, err)

		// A write that bypasses the guard still cannot land a second row
		// for the pair.
		_, err = ds.CreateInterest(ctx, investor.ID, fund.ID)
		assert.Error(t, err)
	})

	t.Run("concurrent inserts land exactly one row", func(t *testing.T) {
		ds := newTestStore(t)
		investor, fund := seedFund(t, ds)

		const writers = 8
		created := make(chan *models.Interest, writers)
		errs := make(chan error, writers)

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				interest, err := ds.CreateInterestIfAbsent(ctx, investor.ID, fund.ID)
				created <- interest
				errs <- err
			}()
		}
		wg.Wait()
		close(created)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		wins := 0
		for interest := range created {
			if interest != nil {
				wins++
			}
		}
		assert.Equal(t, 1, wins)

		list, err := ds.ListInvestorInterests(ctx, investor.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("duplicate rows allowed when the schema permits them", func(t *testing.T) {
		ds, err := NewSQLiteStore(ctx, ":memory:", true)
		require.NoError(t, err)
		t.Cleanup(ds.Close)
		investor, fund := seedFund(t, ds)

		first, err := ds.CreateInterest(ctx, investor.ID, fund.ID)
		require.NoError(t, err)
		second, err := ds.CreateInterest(ctx, investor.ID, fund.ID)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestFundFilters(t *testing.T) {
	ds := newTestStore(t)
	ctx := context.Background()
	_, agent := seedPair(t, ds)

	mk := func(name, strategy, geo string) {
		_, err := ds.CreateFund(ctx, &models.Fund{
			UploadedByAgentID: agent.ID,
			Name:              name,
			Size:              decimal.NewFromInt(1000),
			MinimumInvestment: decimal.NewFromInt(10),
			Strategy:          strategy,
			Geography:         geo,
		})
		require.NoError(t, err)
	}
	mk("Alpha", "growth", "US")
	mk("Beta", "growth", "EU")
	mk("Gamma", "credit", "US")

	t.Run("by strategy", func(t *testing.T) {
		funds, total, err := ds.ListFunds(ctx, models.FundFilter{Strategy: "growth", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, funds, 2)
	})

	t.Run("by strategy and geography", func(t *testing.T) {
		funds, total, err := ds.ListFunds(ctx, models.FundFilter{Strategy: "growth", Geography: "US", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, funds, 1)
		assert.Equal(t, "Alpha", funds[0].Name)
	})

	t.Run("pagination keeps the total", func(t *testing.T) {
		funds, total, err := ds.ListFunds(ctx, models.FundFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Len(t, funds, 2)
	})

	t.Run("decimal fields round trip", func(t *testing.T) {
		irr := decimal.RequireFromString("18.5")
		fund, err := ds.CreateFund(ctx, &models.Fund{
			UploadedByAgentID: agent.ID,
			Name:              "Delta",
			Size:              decimal.RequireFromString("250000000.50"),
			MinimumInvestment: decimal.NewFromInt(500000),
			IRR:               &irr,
		})
		require.NoError(t, err)

		got, err := ds.GetFund(ctx, fund.ID)
		require.NoError(t, err)
		assert.True(t, got.Size.Equal(decimal.RequireFromString("250000000.50")))
		require.NotNil(t, got.IRR)
		assert.True(t, got.IRR.Equal(irr))
		assert.Nil(t, got.MOIC)
	})
}
