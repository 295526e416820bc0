package models

import (
	"time"

	"github.com/google/uuid"
)

// Interest records that an investor wants to engage with a fund.
// Jointly owned: visible to the investor and to the fund's uploading agent.
type Interest struct {
	ID         uuid.UUID `json:"id"`
	InvestorID uuid.UUID `json:"investor_id"`
	FundID     uuid.UUID `json:"fund_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// InvestorInterest is the investor-facing read model: the interest joined to
// the fund and the fund's uploading agent for display.
type InvestorInterest struct {
	Interest
	FundName  string `json:"fund_name"`
	AgentName string `json:"agent_name"`
	FirmName  string `json:"firm_name"`
}

// AgentInterest is the agent-facing read model: an interest in one of the
// agent's funds, joined to the investor profile.
type AgentInterest struct {
	Interest
	FundName     string `json:"fund_name"`
	InvestorName string `json:"investor_name"`
}
