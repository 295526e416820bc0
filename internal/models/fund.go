package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fund is a deal record owned by exactly one agent.
type Fund struct {
	ID                uuid.UUID        `json:"id"`
	UploadedByAgentID uuid.UUID        `json:"uploaded_by_agent_id"`
	Name              string           `json:"name"`
	Size              decimal.Decimal  `json:"size"`
	MinimumInvestment decimal.Decimal  `json:"minimum_investment"`
	Strategy          string           `json:"strategy"`
	SectorFocus       string           `json:"sector_focus"`
	Geography         string           `json:"geography"`
	IRR               *decimal.Decimal `json:"irr,omitempty"`
	MOIC              *decimal.Decimal `json:"moic,omitempty"`
	FeeTerms          string           `json:"fee_terms"`
	CreatedAt         time.Time        `json:"created_at"`
}

// FundDocument is a stored file attached to a fund.
type FundDocument struct {
	ID           uuid.UUID `json:"id"`
	FundID       uuid.UUID `json:"fund_id"`
	DocumentType string    `json:"document_type"`
	ObjectKey    string    `json:"object_key"`
	FileName     string    `json:"file_name"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// FundFilter narrows fund listings. Zero-value fields are ignored.
type FundFilter struct {
	Strategy    string
	SectorFocus string
	Geography   string
	AgentID     *uuid.UUID
	Limit       int
	Offset      int
}
