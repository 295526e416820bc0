package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
)

const notifyWriteTimeout = 10 * time.Second

var notifyUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Auth happens before the upgrade; cross-origin browser clients are
	// expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamNotifications upgrades to a websocket and pushes unread summaries
// whenever a message lands in one of the caller's conversations.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())

	conn, err := notifyUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.NotifyConnections.Inc()
	defer metrics.NotifyConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends application data; the read loop exists to
	// observe close frames and tear the stream down.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	push := func(summary *models.UnreadSummary) error {
		conn.SetWriteDeadline(time.Now().Add(notifyWriteTimeout))
		return conn.WriteJSON(summary)
	}

	if err := h.notify.Stream(ctx, user.ID, user.Role, push); err != nil {
		h.logger.Debug().Err(err).Stringer("user_id", user.ID).Msg("notification stream closed")
	}

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(notifyWriteTimeout))
}
