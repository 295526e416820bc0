package bus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

func TestMemoryBusFanOut(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	investorUser := uuid.New()
	agentUser := uuid.New()

	investorCh, err := b.Subscribe(ctx, investorUser)
	require.NoError(t, err)
	agentCh, err := b.Subscribe(ctx, agentUser)
	require.NoError(t, err)

	ev := models.MessageEvent{
		MessageID:      "01JX",
		ConversationID: uuid.New(),
		SenderID:       investorUser,
		InvestorUserID: investorUser,
		AgentUserID:    agentUser,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, b.Publish(ctx, ev))

	for name, ch := range map[string]<-chan models.MessageEvent{"investor": investorCh, "agent": agentCh} {
		select {
		case got := <-ch:
			assert.Equal(t, ev.MessageID, got.MessageID, name)
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber did not receive the event", name)
		}
	}
}

func TestMemoryBusUnrelatedUser(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bystander, err := b.Subscribe(ctx, uuid.New())
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, models.MessageEvent{
		MessageID:      "01JX",
		InvestorUserID: uuid.New(),
		AgentUserID:    uuid.New(),
	}))

	select {
	case ev := <-bystander:
		t.Fatalf("bystander received %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusSubscriptionClosesOnCancel(t *testing.T) {
	b := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	userID := uuid.New()
	ch, err := b.Subscribe(ctx, userID)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must close after cancel")
	case <-time.After(time.Second):
		t.Fatal("channel did not close after cancel")
	}

	// Publishing after teardown must not panic or deliver.
	require.NoError(t, b.Publish(context.Background(), models.MessageEvent{
		InvestorUserID: userID,
		AgentUserID:    uuid.New(),
	}))
}
