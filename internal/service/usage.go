// Package service contains the business logic layer.
//
// This file implements the usage store: the only code that persists daily
// analysis counters. The policy that reads them lives in domain.Evaluate.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/chartwise/internal/clock"
	"github.com/DukeRupert/chartwise/internal/domain"
	"github.com/DukeRupert/chartwise/internal/metrics"
	"github.com/DukeRupert/chartwise/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService reads and writes a user's daily analysis counter.
type UsageService interface {
	// CheckAndMaybeReset loads the account and, if its counter belongs to an
	// earlier day, resets it to zero for today. Calling it twice with the same
	// day is a no-op the second time.
	// Returns domain.ENOTFOUND for an unknown user and domain.EUNAVAILABLE
	// when storage fails.
	CheckAndMaybeReset(ctx context.Context, userID uuid.UUID, today clock.Day) (*domain.UsageAccount, error)

	// RecordUsage counts one metered action for today. It does not check
	// the limit; callers evaluate entitlement first.
	RecordUsage(ctx context.Context, userID uuid.UUID) (*domain.UsageAccount, error)

	// Entitle resets a stale counter and evaluates the account against today.
	// A denial is returned as Entitlement.Allowed == false, not as an error.
	Entitle(ctx context.Context, userID uuid.UUID) (domain.Entitlement, error)
}

// UsageRepository is the subset of repository.Queries the usage store needs.
type UsageRepository interface {
	GetUsageAccount(ctx context.Context, id uuid.UUID) (repository.GetUsageAccountRow, error)
	ResetUsageIfStale(ctx context.Context, arg repository.ResetUsageIfStaleParams) (repository.ResetUsageIfStaleRow, error)
	IncrementUsage(ctx context.Context, arg repository.IncrementUsageParams) (repository.IncrementUsageRow, error)
}

var _ UsageRepository = (*repository.Queries)(nil)

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	repo   UsageRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(repo UsageRepository, clk clock.Clock, logger *slog.Logger) UsageService {
	return &usageService{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

// CheckAndMaybeReset issues a single conditional UPDATE that only matches a
// stale row, so concurrent callers on the same day cannot wipe increments
// made after the first reset.
func (s *usageService) CheckAndMaybeReset(ctx context.Context, userID uuid.UUID, today clock.Day) (*domain.UsageAccount, error) {
	const op = "UsageService.CheckAndMaybeReset"

	row, err := s.repo.ResetUsageIfStale(ctx, repository.ResetUsageIfStaleParams{
		ID:    userID,
		Today: int32(today),
	})
	if err == nil {
		metrics.UsageReset()
		s.logger.Debug("usage counter reset", "user_id", userID, "day", today)
		return toUsageAccount(row.ID, row.SubscriptionTier, row.SubscriptionStatus, row.AnalysesUsed, row.LastResetDay), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		metrics.UsageStoreFailed("reset")
		return nil, domain.Unavailable(err, op, "Failed to reset usage")
	}

	// Nothing to reset: already on today, or no such user.
	acct, err := s.repo.GetUsageAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		metrics.UsageStoreFailed("load")
		return nil, domain.Unavailable(err, op, "Failed to load usage")
	}

	return toUsageAccount(acct.ID, acct.SubscriptionTier, acct.SubscriptionStatus, acct.AnalysesUsed, acct.LastResetDay), nil
}

func (s *usageService) RecordUsage(ctx context.Context, userID uuid.UUID) (*domain.UsageAccount, error) {
	const op = "UsageService.RecordUsage"

	today := s.clock.Today()
	row, err := s.repo.IncrementUsage(ctx, repository.IncrementUsageParams{
		ID:    userID,
		Today: int32(today),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		metrics.UsageStoreFailed("record")
		return nil, domain.Unavailable(err, op, "Failed to record usage")
	}

	acct := toUsageAccount(row.ID, row.SubscriptionTier, row.SubscriptionStatus, row.AnalysesUsed, row.LastResetDay)
	metrics.UsageCounted(acct.IsPremium)
	s.logger.Debug("usage recorded", "user_id", userID, "day", today, "used", acct.AnalysesUsed)

	return acct, nil
}

func (s *usageService) Entitle(ctx context.Context, userID uuid.UUID) (domain.Entitlement, error) {
	today := s.clock.Today()

	acct, err := s.CheckAndMaybeReset(ctx, userID, today)
	if err != nil {
		return domain.Entitlement{}, err
	}

	e := acct.Evaluate(today)
	metrics.EntitlementEvaluated(acct.IsPremium, e.Allowed)

	return e, nil
}

func toUsageAccount(id uuid.UUID, tier, status string, used, lastReset int32) *domain.UsageAccount {
	return &domain.UsageAccount{
		UserID:       id,
		IsPremium:    domain.IsPremium(domain.SubscriptionTier(tier), domain.SubscriptionStatus(status)),
		AnalysesUsed: int(used),
		LastResetDay: clock.Day(lastReset),
	}
}
