package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api"
	"github.com/hughes7370/fundconnectv3-sub001/internal/bus"
	"github.com/hughes7370/fundconnectv3-sub001/internal/config"
	"github.com/hughes7370/fundconnectv3-sub001/internal/handlers"
	"github.com/hughes7370/fundconnectv3-sub001/internal/interest"
	"github.com/hughes7370/fundconnectv3-sub001/internal/messaging"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/notify"
	"github.com/hughes7370/fundconnectv3-sub001/internal/session"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

type testServer struct {
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Port:            "0",
		Env:             "test",
		JWTSecret:       "test-secret",
		SessionTTL:      time.Hour,
		MessageWindow:   50,
		NotifyDebounce:  10 * time.Millisecond,
		StorageMaxBytes: 1 << 20,
	}

	ds, err := store.NewSQLiteStore(ctx, ":memory:", false)
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	sessions := session.NewMemoryStore()
	eventBus := bus.NewMemoryBus()
	logger := zerolog.Nop()

	svc := messaging.NewService(ds, eventBus, logger, cfg.MessageWindow)
	ledger := interest.NewLedger(ds, logger, cfg.AllowDuplicateInterests)
	hub := notify.NewHub(eventBus, svc, logger, cfg.NotifyDebounce)

	h := handlers.NewHandler(ds, nil, sessions, svc, ledger, hub, nil, cfg, logger)
	router := api.NewRouter(cfg, logger, h, ds, nil, sessions)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv}
}

// do issues a JSON request and decodes the response body into a map.
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp.StatusCode, decoded
}

func (ts *testServer) register(t *testing.T, email string, role models.Role, name string) (token string, user map[string]interface{}) {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/auth/register", "", map[string]interface{}{
		"email":     email,
		"password":  "correct horse",
		"role":      role,
		"name":      name,
		"firm_name": name + " Capital",
	})
	require.Equal(t, http.StatusCreated, status, "register %s: %v", email, body)
	return body["token"].(string), body["user"].(map[string]interface{})
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	token, user := ts.register(t, "alice@example.com", models.RoleInvestor, "Alice")
	assert.Equal(t, "investor", user["role"])
	assert.NotContains(t, user, "password_hash")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/auth/register", "", map[string]interface{}{
			"email": "alice@example.com", "password": "correct horse", "role": "investor", "name": "Alice 2",
		})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("session echo", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/auth/session", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, user["id"], body["user"].(map[string]interface{})["id"])
	})

	t.Run("login", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
			"email": "alice@example.com", "password": "correct horse",
		})
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["token"])

		status, _ = ts.do(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
			"email": "alice@example.com", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("logout invalidates the token", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/auth/login", "", map[string]interface{}{
			"email": "alice@example.com", "password": "correct horse",
		})
		require.Equal(t, http.StatusOK, status)
		tok := body["token"].(string)

		status, _ = ts.do(t, http.MethodPost, "/auth/logout", tok, nil)
		assert.Equal(t, http.StatusNoContent, status)

		status, _ = ts.do(t, http.MethodGet, "/auth/session", tok, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("protected routes reject anonymous callers", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, "/conversations", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("email verification round trip", func(t *testing.T) {
		status, body := ts.do(t, http.MethodPost, "/auth/resend-verification", token, nil)
		require.Equal(t, http.StatusOK, status)
		verifyToken := body["verification_token"].(string)

		status, _ = ts.do(t, http.MethodGet, "/auth/verify?token="+verifyToken, "", nil)
		assert.Equal(t, http.StatusOK, status)

		status, body = ts.do(t, http.MethodGet, "/auth/session", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["user"].(map[string]interface{})["email_verified"])

		status, _ = ts.do(t, http.MethodGet, "/auth/verify?token=garbage", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestFundLifecycle(t *testing.T) {
	ts := newTestServer(t)

	agentToken, _ := ts.register(t, "bob@example.com", models.RoleAgent, "Bob")
	investorToken, _ := ts.register(t, "alice@example.com", models.RoleInvestor, "Alice")

	status, fund := ts.do(t, http.MethodPost, "/funds", agentToken, map[string]interface{}{
		"name":               "Growth Fund I",
		"size":               "100000000",
		"minimum_investment": "1000000",
		"strategy":           "growth",
		"geography":          "US",
		"irr":                "18.5",
	})
	require.Equal(t, http.StatusCreated, status, "%v", fund)
	fundID := fund["id"].(string)

	t.Run("investors cannot create funds", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/funds", investorToken, map[string]interface{}{
			"name": "Nope", "size": "1", "minimum_investment": "1",
		})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("bad decimals are rejected", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/funds", agentToken, map[string]interface{}{
			"name": "Bad", "size": "lots", "minimum_investment": "1",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("public listing and filters", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/funds?strategy=growth", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["total"])

		status, body = ts.do(t, http.MethodGet, "/funds?strategy=credit", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), body["total"])
	})

	t.Run("get by id", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/funds/"+fundID, "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Growth Fund I", body["name"])
		assert.Equal(t, "18.5", body["irr"])

		docs, ok := body["documents"].([]interface{})
		require.True(t, ok, "expected a documents array")
		assert.Empty(t, docs)
	})

	t.Run("delete requires ownership", func(t *testing.T) {
		otherToken, _ := ts.register(t, "eve@example.com", models.RoleAgent, "Eve")
		status, _ := ts.do(t, http.MethodDelete, "/funds/"+fundID, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = ts.do(t, http.MethodDelete, "/funds/"+fundID, agentToken, nil)
		assert.Equal(t, http.StatusNoContent, status)

		status, _ = ts.do(t, http.MethodGet, "/funds/"+fundID, "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestInterestEndpoints(t *testing.T) {
	ts := newTestServer(t)

	agentToken, _ := ts.register(t, "bob@example.com", models.RoleAgent, "Bob")
	investorToken, _ := ts.register(t, "alice@example.com", models.RoleInvestor, "Alice")

	status, fund := ts.do(t, http.MethodPost, "/funds", agentToken, map[string]interface{}{
		"name": "Growth Fund I", "size": "1000", "minimum_investment": "10",
	})
	require.Equal(t, http.StatusCreated, status)
	fundID := fund["id"].(string)

	status, created := ts.do(t, http.MethodPost, "/interests", investorToken, map[string]interface{}{"fund_id": fundID})
	require.Equal(t, http.StatusCreated, status, "%v", created)
	interestID := created["id"].(string)

	t.Run("duplicates conflict", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/interests", investorToken, map[string]interface{}{"fund_id": fundID})
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("agents see received interests", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/interests/received", agentToken, nil)
		require.Equal(t, http.StatusOK, status)
		list := body["interests"].([]interface{})
		require.Len(t, list, 1)
		entry := list[0].(map[string]interface{})
		assert.Equal(t, "Growth Fund I", entry["fund_name"])
		assert.Equal(t, "Alice", entry["investor_name"])
	})

	t.Run("agents cannot express interest", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/interests", agentToken, map[string]interface{}{"fund_id": fundID})
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("withdraw", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodDelete, "/interests/"+interestID, investorToken, nil)
		assert.Equal(t, http.StatusNoContent, status)

		status, body := ts.do(t, http.MethodGet, "/interests", investorToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, body["interests"])
	})
}

func TestConversationEndpoints(t *testing.T) {
	ts := newTestServer(t)

	agentToken, _ := ts.register(t, "bob@example.com", models.RoleAgent, "Bob")
	investorToken, _ := ts.register(t, "alice@example.com", models.RoleInvestor, "Alice")

	// The investor discovers the agent through a fund listing.
	status, fund := ts.do(t, http.MethodPost, "/funds", agentToken, map[string]interface{}{
		"name": "Growth Fund I", "size": "1000", "minimum_investment": "10",
	})
	require.Equal(t, http.StatusCreated, status)
	agentProfileID := fund["uploaded_by_agent_id"].(string)

	status, conv := ts.do(t, http.MethodPost, "/conversations", investorToken, map[string]interface{}{
		"agent_id": agentProfileID,
	})
	require.Equal(t, http.StatusOK, status, "%v", conv)
	convID := conv["id"].(string)

	t.Run("resolving again returns the same conversation", func(t *testing.T) {
		status, again := ts.do(t, http.MethodPost, "/conversations", investorToken, map[string]interface{}{
			"agent_id": agentProfileID,
		})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, convID, again["id"])
	})

	t.Run("message exchange drives unread counts", func(t *testing.T) {
		status, msg := ts.do(t, http.MethodPost, "/conversations/"+convID+"/messages", investorToken,
			map[string]interface{}{"content": "Interested in Fund I"})
		require.Equal(t, http.StatusCreated, status, "%v", msg)
		assert.NotEmpty(t, msg["id"])

		// The sender sees nothing unread.
		status, body := ts.do(t, http.MethodGet, "/conversations", investorToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), body["total_unread"])

		// The agent sees one unread from Alice.
		status, body = ts.do(t, http.MethodGet, "/conversations", agentToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(1), body["total_unread"])
		convs := body["conversations"].([]interface{})
		require.Len(t, convs, 1)
		entry := convs[0].(map[string]interface{})
		assert.Equal(t, "Alice", entry["other_participant_name"])
		assert.Equal(t, "Interested in Fund I", entry["last_message"])

		// Opening the conversation marks it read.
		status, page := ts.do(t, http.MethodGet, "/conversations/"+convID+"/messages", agentToken, nil)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, page["messages"].([]interface{}), 1)

		status, body = ts.do(t, http.MethodGet, "/conversations", agentToken, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(0), body["total_unread"])
	})

	t.Run("outsiders cannot read the thread", func(t *testing.T) {
		eveToken, _ := ts.register(t, "eve@example.com", models.RoleAgent, "Eve")
		status, _ := ts.do(t, http.MethodGet, "/conversations/"+convID+"/messages", eveToken, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("oversized messages are rejected", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodPost, "/conversations/"+convID+"/messages", investorToken,
			map[string]interface{}{"content": strings.Repeat("a", 5000)})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestNotificationStream(t *testing.T) {
	ts := newTestServer(t)

	agentToken, _ := ts.register(t, "bob@example.com", models.RoleAgent, "Bob")
	investorToken, _ := ts.register(t, "alice@example.com", models.RoleInvestor, "Alice")

	status, fund := ts.do(t, http.MethodPost, "/funds", agentToken, map[string]interface{}{
		"name": "Growth Fund I", "size": "1000", "minimum_investment": "10",
	})
	require.Equal(t, http.StatusCreated, status)

	status, conv := ts.do(t, http.MethodPost, "/conversations", investorToken, map[string]interface{}{
		"agent_id": fund["uploaded_by_agent_id"].(string),
	})
	require.Equal(t, http.StatusOK, status)
	convID := conv["id"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/notifications"
	header := http.Header{"Authorization": []string{"Bearer " + agentToken}}
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer ws.Close()

	readSummary := func() models.UnreadSummary {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(3 * time.Second))
		var summary models.UnreadSummary
		require.NoError(t, ws.ReadJSON(&summary))
		return summary
	}

	initial := readSummary()
	assert.Equal(t, 0, initial.TotalUnread)

	status, _ = ts.do(t, http.MethodPost, "/conversations/"+convID+"/messages", investorToken,
		map[string]interface{}{"content": "ping"})
	require.Equal(t, http.StatusCreated, status)

	update := readSummary()
	assert.Equal(t, 1, update.TotalUnread)
	require.Len(t, update.Conversations, 1)
	assert.Equal(t, "Alice", update.Conversations[0].OtherParticipantName)
}

func TestHealthAndStorageCheck(t *testing.T) {
	ts := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]interface{})
		assert.Equal(t, "pass", checks["database"].(map[string]interface{})["status"])
	})

	t.Run("storage check without configured storage", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/api/storage/check", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "object storage is not configured", body["message"])
	})

	t.Run("unknown routes are 404", func(t *testing.T) {
		status, _ := ts.do(t, http.MethodGet, fmt.Sprintf("/nope/%d", time.Now().Unix()), "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}
