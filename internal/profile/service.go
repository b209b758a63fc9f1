// Package profile manages the per-learner account state: SkillCoin
// balance, lesson counters and streaks.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/store"
)

// ErrInsufficientCoins means a debit would take the balance below zero
var ErrInsufficientCoins = errors.New("insufficient skill coins")

// StartingCoins is the balance a fresh profile begins with
const StartingCoins = 100

const dayFormat = "2006-01-02"

// Service reads and mutates learner profiles in the key-value store.
// Every mutation is a serialized read-modify-write per profile key.
type Service struct {
	store store.Store
	locks *store.KeyMutex
}

// NewService creates a profile service
func NewService(s store.Store, locks *store.KeyMutex) *Service {
	return &Service{store: s, locks: locks}
}

func profileKey(userID string) string {
	return "profile:" + userID
}

// Get returns the learner's profile, creating the default in memory when
// none is stored yet. Storage I/O failures propagate; they are never
// treated as "no profile".
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := store.GetJSON(ctx, s.store, profileKey(userID), &p)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return defaultProfile(userID), nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

// Credit adds amount to the learner's SkillCoin balance
func (s *Service) Credit(ctx context.Context, userID string, amount int) (*models.Profile, error) {
	return s.adjust(ctx, userID, amount)
}

// Debit subtracts amount from the balance. Fails with
// ErrInsufficientCoins when the balance does not cover it.
func (s *Service) Debit(ctx context.Context, userID string, amount int) (*models.Profile, error) {
	return s.adjust(ctx, userID, -amount)
}

func (s *Service) adjust(ctx context.Context, userID string, delta int) (*models.Profile, error) {
	key := profileKey(userID)
	unlock := s.locks.Lock(key)
	defer unlock()

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if p.SkillCoins+delta < 0 {
		return nil, ErrInsufficientCoins
	}
	p.SkillCoins += delta

	if err := store.SetJSON(ctx, s.store, key, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	slog.Debug("skill coins adjusted", "user_id", userID, "delta", delta, "balance", p.SkillCoins)

	return p, nil
}

// RecordLesson bumps the lesson counter and maintains the daily streak:
// a lesson on the day after the previous one extends the streak, a gap
// resets it to 1, a second lesson the same day leaves it unchanged.
func (s *Service) RecordLesson(ctx context.Context, userID string, now time.Time) (*models.Profile, error) {
	key := profileKey(userID)
	unlock := s.locks.Lock(key)
	defer unlock()

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	day := now.Format(dayFormat)
	yesterday := now.AddDate(0, 0, -1).Format(dayFormat)

	p.LessonsCompleted++
	switch p.LastLessonDay {
	case day:
		// already counted toward the streak today
	case yesterday:
		p.Streak++
	default:
		p.Streak = 1
	}
	p.LastLessonDay = day

	if err := store.SetJSON(ctx, s.store, key, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	return p, nil
}

func defaultProfile(userID string) *models.Profile {
	return &models.Profile{
		UserID:     userID,
		SkillCoins: StartingCoins,
		Tier:       models.TierFree,
	}
}
