// Package interest implements the interest ledger: recording and withdrawing
// an investor's expressed interest in a fund, and the two read paths (agent
// side filtered by fund ownership, investor side joined for display).
package interest

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hughes7370/fundconnectv3-sub001/internal/apperr"
	"github.com/hughes7370/fundconnectv3-sub001/internal/metrics"
	"github.com/hughes7370/fundconnectv3-sub001/internal/models"
	"github.com/hughes7370/fundconnectv3-sub001/internal/store"
)

// Ledger records and removes interests. Whether a second interest for the
// same (investor, fund) pair is tolerated is an explicit configuration
// choice, not an accident of the write path.
type Ledger struct {
	store           store.DataStore
	logger          zerolog.Logger
	allowDuplicates bool
}

// NewLedger creates an interest ledger.
func NewLedger(ds store.DataStore, logger zerolog.Logger, allowDuplicates bool) *Ledger {
	return &Ledger{store: ds, logger: logger, allowDuplicates: allowDuplicates}
}

// Add records an investor's interest in a fund with the current timestamp.
// Under the reject-duplicates policy a second interest for the same pair
// returns AlreadyExists.
func (l *Ledger) Add(ctx context.Context, investorID, fundID uuid.UUID) (*models.Interest, error) {
	fund, err := l.store.GetFund(ctx, fundID)
	if err != nil {
		return nil, apperr.Unavailable("failed to load fund", err)
	}
	if fund == nil {
		return nil, apperr.NotFound("fund not found")
	}

	if l.allowDuplicates {
		interest, err := l.store.CreateInterest(ctx, investorID, fundID)
		if err != nil {
			return nil, apperr.Unavailable("failed to record interest", err)
		}
		metrics.InterestsExpressed.Inc()
		return interest, nil
	}

	interest, err := l.store.CreateInterestIfAbsent(ctx, investorID, fundID)
	if err != nil {
		return nil, apperr.Unavailable("failed to record interest", err)
	}
	if interest == nil {
		return nil, apperr.AlreadyExists("interest already expressed for this fund")
	}
	metrics.InterestsExpressed.Inc()
	return interest, nil
}

// Remove withdraws an interest by id. Only the owning investor may remove it.
func (l *Ledger) Remove(ctx context.Context, interestID, investorID uuid.UUID) error {
	interest, err := l.store.GetInterest(ctx, interestID)
	if err != nil {
		return apperr.Unavailable("failed to load interest", err)
	}
	if interest == nil {
		return apperr.NotFound("interest not found")
	}
	if interest.InvestorID != investorID {
		return apperr.Forbidden("interest belongs to another investor")
	}

	if err := l.store.DeleteInterest(ctx, interestID); err != nil {
		return apperr.Unavailable("failed to remove interest", err)
	}
	metrics.InterestsWithdrawn.Inc()
	return nil
}

// ListForInvestor returns the investor's interests joined to fund and agent.
func (l *Ledger) ListForInvestor(ctx context.Context, investorID uuid.UUID) ([]models.InvestorInterest, error) {
	out, err := l.store.ListInvestorInterests(ctx, investorID)
	if err != nil {
		return nil, apperr.Unavailable("failed to list interests", err)
	}
	if out == nil {
		out = []models.InvestorInterest{}
	}
	return out, nil
}

// ListForAgent returns interests in the agent's funds joined to investors.
func (l *Ledger) ListForAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentInterest, error) {
	out, err := l.store.ListAgentInterests(ctx, agentID)
	if err != nil {
		return nil, apperr.Unavailable("failed to list interests", err)
	}
	if out == nil {
		out = []models.AgentInterest{}
	}
	return out, nil
}
