package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hughes7370/fundconnectv3-sub001/internal/api/middleware"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/session"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
	Name     string      `json:"name"`
	// FirmName applies to agents; IntroducingAgentID optionally applies
	// to investors.
	FirmName           string `json:"firm_name,omitempty"`
	IntroducingAgentID string `json:"introducing_agent_id,omitempty"`
}

// SessionResponse represents an authenticated session.
type SessionResponse struct {
	Token string       `json:"token,omitempty"`
	User  *models.User `json:"user"`
}

// Register handles account creation for agents and investors.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 8 {
		h.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Role != models.RoleAgent && req.Role != models.RoleInvestor {
		h.Error(w, http.StatusBadRequest, "role must be agent or investor")
		return
	}

	existing, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if existing != nil {
		h.Error(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Email, string(hash), req.Role)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	name := sanitizeName(req.Name)
	switch req.Role {
	case models.RoleAgent:
		if _, err := h.store.CreateAgent(r.Context(), user.ID, name, sanitizeName(req.FirmName)); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to create agent profile")
			return
		}
	case models.RoleInvestor:
		var intro *uuid.UUID
		if req.IntroducingAgentID != "" {
			id, err := uuid.Parse(req.IntroducingAgentID)
			if err != nil {
				h.Error(w, http.StatusBadRequest, "invalid introducing agent ID format")
				return
			}
			agent, err := h.store.GetAgentByID(r.Context(), id)
			if err != nil {
				h.Error(w, http.StatusInternalServerError, "database error")
				return
			}
			if agent == nil {
				h.Error(w, http.StatusNotFound, "introducing agent not found")
				return
			}
			intro = &id
		}
		if _, err := h.store.CreateInvestor(r.Context(), user.ID, name, intro); err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to create investor profile")
			return
		}
	}

	metrics.UsersRegistered.WithLabelValues(string(req.Role)).Inc()

	sess, err := h.createSession(r, user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.JSON(w, http.StatusCreated, SessionResponse{Token: sess.Token, User: user})
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles credential sign-in and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.createSession(r, user)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.JSON(w, http.StatusOK, SessionResponse{Token: sess.Token, User: user})
}

func (h *Handler) createSession(r *http.Request, user *models.User) (*session.Session, error) {
	token, err := session.NewToken()
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		Token:     token,
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.sessions.Set(r.Context(), sess, h.cfg.SessionTTL); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSessionFromContext(r.Context())
	if sess == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.sessions.Remove(r.Context(), sess.Token); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to destroy session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Session returns the current user for an active session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.JSON(w, http.StatusOK, SessionResponse{User: user})
}

type verificationClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// ResendVerification issues a fresh email-verification token. Delivery is
// out of band; the token is returned directly so clients can hand it to the
// mail pipeline.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if user.EmailVerified {
		h.Error(w, http.StatusConflict, "email already verified")
		return
	}

	claims := verificationClaims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   "email-verification",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to sign verification token")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"verification_token": token})
}

// Verify consumes an email-verification token and marks the account
// verified.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		h.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	var claims verificationClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		h.Error(w, http.StatusUnauthorized, "invalid or expired verification token")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid verification token")
		return
	}

	if err := h.store.MarkEmailVerified(r.Context(), userID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to mark email verified")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"verified": true})
}
