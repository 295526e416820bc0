package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/apperr"
	"github.com/hughes7370/fundconnectv3-sub001/internal/config"
	"github.com/hughes7370/fundconnectv3-sub001/internal/interest"
	"github.com/hughes7370/fundconnectv3-sub001/internal/messaging"
	"github.com/hughes7370/fundconnectv3-sub001/internal/notify"
	"github.com/hughes7370/fundconnectv3-sub001/internal/session"
	"github.com/hughes7370/fundconnectv3-sub001/internal/storage"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers. Everything is
// injected; no package-level state.
type Handler struct {
	store     store.DataStore
	redis     *store.RedisStore
	sessions  session.Store
	messaging *messaging.Service
	interests *interest.Ledger
	notify    *notify.Hub
	objects   storage.ObjectStore
	cfg       *config.Config
	logger    zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. redis and
// objects may be nil when those backends are not configured.
func NewHandler(
	ds store.DataStore,
	redis *store.RedisStore,
	sessions session.Store,
	msg *messaging.Service,
	ledger *interest.Ledger,
	hub *notify.Hub,
	objects storage.ObjectStore,
	cfg *config.Config,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		store:     ds,
		redis:     redis,
		sessions:  sessions,
		messaging: msg,
		interests: ledger,
		notify:    hub,
		objects:   objects,
		cfg:       cfg,
		logger:    logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps an application error onto the HTTP taxonomy and sends it. The
// raw message text is surfaced to the caller; the cause stays in the logs.
func (h *Handler) Fail(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}

	message := err.Error()
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		message = ae.Message
	}
	h.Error(w, status, message)
}

// sanitizeName trims and limits name to 100 characters, removing control
// characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	if len(name) > 100 {
		name = name[:100]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
