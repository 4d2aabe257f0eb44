// Package service contains the business logic layer.
//
// This file implements the quota service for enforcing per-user daily caps
// on paid actions.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/quota"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines operations for consuming daily quotas.
type QuotaService interface {
	// ConsumeDaily records one use of the named quota for userID.
	// Returns the remaining uses for today on success.
	// Returns domain.EFORBIDDEN with detail as its message when the cap is reached.
	ConsumeDaily(ctx context.Context, userID uuid.UUID, name domain.QuotaName, maxDailyActions int, detail string) (int, error)

	// UsedToday returns how many times the named quota was consumed today.
	UsedToday(ctx context.Context, userID uuid.UUID, name domain.QuotaName) (int, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	counter *quota.Counter
	logger  *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(counter *quota.Counter, logger *slog.Logger) QuotaService {
	return &quotaService{
		counter: counter,
		logger:  logger,
	}
}

// ConsumeDaily consumes one unit of the daily quota.
func (s *quotaService) ConsumeDaily(ctx context.Context, userID uuid.UUID, name domain.QuotaName, maxDailyActions int, detail string) (int, error) {
	const op = "quota.consume_daily"

	remaining, err := s.counter.Consume(ctx, userID, string(name), maxDailyActions)
	switch {
	case err == nil:
		metrics.QuotaDecisions.WithLabelValues(string(name), "granted").Inc()
		return remaining, nil
	case errors.Is(err, quota.ErrExceeded):
		metrics.QuotaDecisions.WithLabelValues(string(name), "exceeded").Inc()
		s.logger.Info("daily quota exceeded",
			"user_id", userID,
			"quota", name,
			"limit", maxDailyActions,
		)
		return 0, domain.QuotaExceeded(err, op, detail)
	case errors.Is(err, quota.ErrInvalidLimit):
		metrics.QuotaDecisions.WithLabelValues(string(name), "error").Inc()
		return 0, domain.Internal(err, op, "quota limit is misconfigured")
	default:
		metrics.QuotaDecisions.WithLabelValues(string(name), "error").Inc()
		return 0, domain.Internal(err, op, "failed to consume quota")
	}
}

// UsedToday returns today's usage for the quota.
func (s *quotaService) UsedToday(ctx context.Context, userID uuid.UUID, name domain.QuotaName) (int, error) {
	const op = "quota.used_today"

	n, err := s.counter.Used(ctx, userID, string(name))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to read quota usage")
	}
	return n, nil
}
