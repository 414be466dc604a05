package ai

import (
	"context"
	"errors"
	"time"

	"github.com/jiralite/api/internal/apperr"
	"github.com/jiralite/api/internal/domain"
	"github.com/jiralite/api/internal/repository"
)

// Per-user AI request ceilings.
const (
	maxPerMinute = 10
	maxPerDay    = 100
)

// Limiter enforces per-user fixed-window AI quotas. The check and the later
// increment are separate statements, so concurrent requests near the ceiling
// can land a few counts over; each window increment itself is an atomic
// upsert, so counts are never lost.
type Limiter struct {
	repo repository.RateLimitRepository
	now  func() time.Time
}

// NewLimiter constructs a Limiter on the wall clock.
func NewLimiter(repo repository.RateLimitRepository) Limiter {
	return Limiter{repo: repo, now: time.Now}
}

func minuteStart(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute)
}

func dayStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (l Limiter) windowCount(ctx context.Context, userID, kind string, start time.Time) (int, error) {
	window, err := l.repo.GetRateWindow(ctx, userID, kind, start)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return window.RequestCount, nil
}

// Check rejects the request if either window is already at its ceiling.
func (l Limiter) Check(ctx context.Context, userID string) error {
	now := l.now()

	count, err := l.windowCount(ctx, userID, domain.WindowMinute, minuteStart(now))
	if err != nil {
		return err
	}
	if count >= maxPerMinute {
		return apperr.RateLimited("Rate limit exceeded: 10 requests per minute. Please try again later.")
	}

	count, err = l.windowCount(ctx, userID, domain.WindowDay, dayStart(now))
	if err != nil {
		return err
	}
	if count >= maxPerDay {
		return apperr.RateLimited("Rate limit exceeded: 100 requests per day. Please try again tomorrow.")
	}
	return nil
}

// Increment records one served request against both windows.
func (l Limiter) Increment(ctx context.Context, userID string) error {
	now := l.now()
	if err := l.repo.IncrementRateWindow(ctx, userID, domain.WindowMinute, minuteStart(now)); err != nil {
		return err
	}
	return l.repo.IncrementRateWindow(ctx, userID, domain.WindowDay, dayStart(now))
}
