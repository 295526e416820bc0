// Package notify is the notification surface: it turns message-insert events
// into pushed unread summaries for connected users.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/bus"
	"github.com/hughes7370/fundconnectv3-sub001/internal/messaging"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

// Hub streams unread summaries to subscribers of the event bus.
type Hub struct {
	bus      bus.Bus
	svc      *messaging.Service
	logger   zerolog.Logger
	debounce time.Duration
}

// NewHub creates a notification hub.
func NewHub(b bus.Bus, svc *messaging.Service, logger zerolog.Logger, debounce time.Duration) *Hub {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Hub{bus: b, svc: svc, logger: logger, debounce: debounce}
}

// Stream pushes unread summaries for one user until ctx is canceled or push
// fails. An initial summary is pushed on connect; after that, message events
// not authored by the user schedule a recompute. Recomputes are coalesced
// behind a debounce window so a burst of inserts costs one aggregation, and
// cancellation tears down the bus subscription before Stream returns, so
// nothing touches the connection after disposal.
func (h *Hub) Stream(ctx context.Context, userID uuid.UUID, role models.Role, push func(*models.UnreadSummary) error) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := h.bus.Subscribe(subCtx, userID)
	if err != nil {
		return err
	}

	if err := h.recomputeAndPush(subCtx, userID, role, "connect", push); err != nil {
		return err
	}

	var timer *time.Timer
	var pending <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.SenderID == userID {
				continue
			}
			if pending == nil {
				timer = time.NewTimer(h.debounce)
				pending = timer.C
			}

		case <-pending:
			pending = nil
			if err := h.recomputeAndPush(subCtx, userID, role, "event", push); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) recomputeAndPush(ctx context.Context, userID uuid.UUID, role models.Role, trigger string, push func(*models.UnreadSummary) error) error {
	summary, err := h.svc.ComputeUnread(ctx, userID, role)
	if err != nil {
		h.logger.Error().Err(err).
			Str("user_id", userID.String()).
			Msg("unread recompute failed")
		return err
	}
	metrics.UnreadRecomputes.WithLabelValues(trigger).Inc()

	if err := push(summary); err != nil {
		return err
	}
	metrics.NotifyPushes.Inc()
	return nil
}
