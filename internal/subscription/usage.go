// Package subscription tracks lesson usage volume and enforces tier
// limits (the free tier allows a fixed number of lessons per day).
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/store"
)

// FreeDailyLessonLimit is the number of lessons a free-tier learner can
// complete per calendar day
const FreeDailyLessonLimit = 3

// ErrDailyLimitReached means the tier's daily lesson allowance is used up
var ErrDailyLimitReached = errors.New("daily lesson limit reached")

const (
	usageKeyPrefix = "usage:"
	dayFormat      = "2006-01-02"
	monthFormat    = "2006-01"
)

// Service reads and mutates per-learner usage stats
type Service struct {
	store store.Store
	locks *store.KeyMutex
}

// NewService creates a usage service
func NewService(s store.Store, locks *store.KeyMutex) *Service {
	return &Service{store: s, locks: locks}
}

func usageKey(userID string) string {
	return usageKeyPrefix + userID
}

// Get returns the learner's usage stats with stale day/month counters
// already rolled over to the current period
func (s *Service) Get(ctx context.Context, userID string, now time.Time) (*models.UsageStats, error) {
	var stats models.UsageStats
	err := store.GetJSON(ctx, s.store, usageKey(userID), &stats)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load usage stats: %w", err)
	}

	rollover(&stats, now)
	return &stats, nil
}

// CheckLessonAllowance returns ErrDailyLimitReached when the tier's daily
// allowance is exhausted. Premium tiers are unlimited.
func (s *Service) CheckLessonAllowance(ctx context.Context, userID string, tier models.SubscriptionTier, now time.Time) error {
	if tier != models.TierFree {
		return nil
	}

	stats, err := s.Get(ctx, userID, now)
	if err != nil {
		return err
	}

	if stats.LessonsToday >= FreeDailyLessonLimit {
		return ErrDailyLimitReached
	}
	return nil
}

// RecordLesson increments the daily and monthly lesson counters
func (s *Service) RecordLesson(ctx context.Context, userID string, now time.Time) (*models.UsageStats, error) {
	return s.update(ctx, userID, now, func(stats *models.UsageStats) {
		stats.LessonsToday++
		stats.LessonsThisMonth++
	})
}

// RecordCertificate increments the earned-certificates counter
func (s *Service) RecordCertificate(ctx context.Context, userID string, now time.Time) (*models.UsageStats, error) {
	return s.update(ctx, userID, now, func(stats *models.UsageStats) {
		stats.CertificatesEarned++
	})
}

func (s *Service) update(ctx context.Context, userID string, now time.Time, mutate func(*models.UsageStats)) (*models.UsageStats, error) {
	key := usageKey(userID)
	unlock := s.locks.Lock(key)
	defer unlock()

	stats, err := s.Get(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	mutate(stats)

	if err := store.SetJSON(ctx, s.store, key, stats); err != nil {
		return nil, fmt.Errorf("failed to save usage stats: %w", err)
	}
	return stats, nil
}

// RolloverStale resets daily/monthly counters of all stored usage records
// whose period stamps are in the past. Called by the background worker so
// stored stats don't report yesterday's volume as today's.
func (s *Service) RolloverStale(ctx context.Context, now time.Time) (int, error) {
	keys, err := s.store.Keys(ctx, usageKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to scan usage keys: %w", err)
	}

	reset := 0
	for _, key := range keys {
		userID := strings.TrimPrefix(key, usageKeyPrefix)

		unlock := s.locks.Lock(key)

		var stats models.UsageStats
		if err := store.GetJSON(ctx, s.store, key, &stats); err != nil {
			unlock()
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			slog.Error("failed to load usage stats for rollover", "user_id", userID, "error", err)
			continue
		}

		if !rollover(&stats, now) {
			unlock()
			continue
		}

		if err := store.SetJSON(ctx, s.store, key, &stats); err != nil {
			unlock()
			slog.Error("failed to save rolled-over usage stats", "user_id", userID, "error", err)
			continue
		}

		unlock()
		reset++
	}

	return reset, nil
}

// rollover zeroes counters whose period stamp is stale. Returns true when
// anything changed.
func rollover(stats *models.UsageStats, now time.Time) bool {
	day := now.Format(dayFormat)
	month := now.Format(monthFormat)

	changed := false
	if stats.Day != day {
		stats.Day = day
		stats.LessonsToday = 0
		changed = true
	}
	if stats.Month != month {
		stats.Month = month
		stats.LessonsThisMonth = 0
		changed = true
	}
	return changed
}
