package models

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies a user account.
type Role string

const (
	RoleAgent    Role = "agent"
	RoleInvestor Role = "investor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one of the known account roles.
func (r Role) Valid() bool {
	return r == RoleAgent || r == RoleInvestor || r == RoleAdmin
}

// User represents an account held by the identity layer.
// Profile data lives on Agent or Investor, keyed by UserID.
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Agent is the placement-agent profile attached 1:1 to a User with role=agent.
type Agent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	FirmName  string    `json:"firm_name"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Investor is the investor profile attached 1:1 to a User with role=investor.
type Investor struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Name             string     `json:"name"`
	IntroducingAgent *uuid.UUID `json:"introducing_agent_id,omitempty"`
	Approved         bool       `json:"approved"`
	CreatedAt        time.Time  `json:"created_at"`
}
