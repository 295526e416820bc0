package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hughes7370/fundconnectv3-sub001/internal/bus"
	"github.com/hughes7370/fundconnectv3-sub001/internal/messaging"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

type hubFixture struct {
	store *store.SQLiteStore
	bus   *bus.MemoryBus
	svc   *messaging.Service
	hub   *Hub

	investorUser *models.User
	agentUser    *models.User
	investor     *models.Investor
	agent        *models.Agent
	conv         *models.Conversation
}

func newHubFixture(t *testing.T, debounce time.Duration) *hubFixture {
	t.Helper()
	ctx := context.Background()

	ds, err := store.NewSQLiteStore(ctx, ":memory:", false)
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	b := bus.NewMemoryBus()
	svc := messaging.NewService(ds, b, zerolog.Nop(), 50)

	f := &hubFixture{
		store: ds,
		bus:   b,
		svc:   svc,
		hub:   NewHub(b, svc, zerolog.Nop(), debounce),
	}

	f.investorUser, err = ds.CreateUser(ctx, "alice@example.com", "hash", models.RoleInvestor)
	require.NoError(t, err)
	f.investor, err = ds.CreateInvestor(ctx, f.investorUser.ID, "Alice", nil)
	require.NoError(t, err)

	f.agentUser, err = ds.CreateUser(ctx, "bob@example.com", "hash", models.RoleAgent)
	require.NoError(t, err)
	f.agent, err = ds.CreateAgent(ctx, f.agentUser.ID, "Bob", "Bob Capital")
	require.NoError(t, err)

	f.conv, err = svc.Resolve(ctx, f.investor.ID, f.agent.ID)
	require.NoError(t, err)

	return f
}

// pushCollector records summaries pushed by a Stream under test.
type pushCollector struct {
	mu        sync.Mutex
	summaries []*models.UnreadSummary
	notify    chan struct{}
}

func newPushCollector() *pushCollector {
	return &pushCollector{notify: make(chan struct{}, 64)}
}

func (c *pushCollector) push(s *models.UnreadSummary) error {
	c.mu.Lock()
	c.summaries = append(c.summaries, s)
	c.mu.Unlock()
	c.notify <- struct{}{}
	return nil
}

func (c *pushCollector) wait(t *testing.T) *models.UnreadSummary {
	t.Helper()
	select {
	case <-c.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a push")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaries[len(c.summaries)-1]
}

func (c *pushCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.summaries)
}

func TestStreamInitialPush(t *testing.T) {
	f := newHubFixture(t, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := newPushCollector()
	done := make(chan error, 1)
	go func() {
		done <- f.hub.Stream(ctx, f.investorUser.ID, models.RoleInvestor, collector.push)
	}()

	first := collector.wait(t)
	assert.Equal(t, 0, first.TotalUnread)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestStreamPushesOnCounterpartyMessage(t *testing.T) {
	f := newHubFixture(t, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := newPushCollector()
	go func() {
		f.hub.Stream(ctx, f.investorUser.ID, models.RoleInvestor, collector.push)
	}()
	collector.wait(t) // initial push

	_, err := f.svc.SendMessage(ctx, f.conv.ID, f.agentUser.ID, models.RoleAgent, "hello")
	require.NoError(t, err)

	summary := collector.wait(t)
	assert.Equal(t, 1, summary.TotalUnread)
	require.Len(t, summary.Conversations, 1)
	assert.Equal(t, "Bob", summary.Conversations[0].OtherParticipantName)
}

func TestStreamSkipsOwnMessages(t *testing.T) {
	f := newHubFixture(t, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := newPushCollector()
	go func() {
		f.hub.Stream(ctx, f.investorUser.ID, models.RoleInvestor, collector.push)
	}()
	collector.wait(t) // initial push

	_, err := f.svc.SendMessage(ctx, f.conv.ID, f.investorUser.ID, models.RoleInvestor, "my own")
	require.NoError(t, err)

	// Give the hub time to (incorrectly) react.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, collector.count(), "own messages must not trigger a push")
}

func TestStreamDebouncesBursts(t *testing.T) {
	f := newHubFixture(t, 150*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	collector := newPushCollector()
	go func() {
		f.hub.Stream(ctx, f.investorUser.ID, models.RoleInvestor, collector.push)
	}()
	collector.wait(t) // initial push

	for i := 0; i < 5; i++ {
		_, err := f.svc.SendMessage(ctx, f.conv.ID, f.agentUser.ID, models.RoleAgent, "burst")
		require.NoError(t, err)
	}

	summary := collector.wait(t)
	assert.Equal(t, 5, summary.TotalUnread, "the coalesced recompute sees the whole burst")

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 2, collector.count(), "a burst collapses into one push")
}

func TestStreamLabelsRecomputeTrigger(t *testing.T) {
	f := newHubFixture(t, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connect := metrics.UnreadRecomputes.WithLabelValues("connect")
	event := metrics.UnreadRecomputes.WithLabelValues("event")
	connectBefore := testutil.ToFloat64(connect)
	eventBefore := testutil.ToFloat64(event)

	collector := newPushCollector()
	go func() {
		f.hub.Stream(ctx, f.investorUser.ID, models.RoleInvestor, collector.push)
	}()
	collector.wait(t) // initial push

	assert.Equal(t, connectBefore+1, testutil.ToFloat64(connect))
	assert.Equal(t, eventBefore, testutil.ToFloat64(event))

	_, err := f.svc.SendMessage(ctx, f.conv.ID, f.agentUser.ID, models.RoleAgent, "hello")
	require.NoError(t, err)
	collector.wait(t)

	assert.Equal(t, connectBefore+1, testutil.ToFloat64(connect))
	assert.Equal(t, eventBefore+1, testutil.ToFloat64(event))
}

func TestStreamStopsOnPushFailure(t *testing.T) {
	f := newHubFixture(t, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("connection gone")
	done := make(chan error, 1)
	go func() {
		done <- f.hub.Stream(ctx, f.investorUser.ID, models.RoleInvestor, func(*models.UnreadSummary) error {
			return boom
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop when push failed")
	}
}
