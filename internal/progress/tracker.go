// Package progress implements the track-completion tracker: it records
// lesson completions per (learner, track), detects track completion and
// drives certificate issuance plus the completion bonus exactly once.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/skillcoin/learn-engine/internal/catalog"
	"github.com/skillcoin/learn-engine/internal/certificate"
	"github.com/skillcoin/learn-engine/internal/matching"
	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/profile"
	"github.com/skillcoin/learn-engine/internal/store"
	"github.com/skillcoin/learn-engine/internal/subscription"
)

// Common errors
var (
	ErrUnknownTrack  = errors.New("unknown track")
	ErrUnknownLesson = errors.New("unknown lesson")
)

// TrackCompletionBonus is the SkillCoin award for completing a whole track
const TrackCompletionBonus = 100

const progressKeyPrefix = "progress:"

// Tracker coordinates progress persistence, certificate issuance and
// coin awards
type Tracker struct {
	store    store.Store
	locks    *store.KeyMutex
	catalog  *catalog.Catalog
	certs    *certificate.Issuer
	profiles *profile.Service
	usage    *subscription.Service
	now      func() time.Time
}

// NewTracker creates a progress tracker
func NewTracker(
	s store.Store,
	locks *store.KeyMutex,
	cat *catalog.Catalog,
	certs *certificate.Issuer,
	profiles *profile.Service,
	usage *subscription.Service,
) *Tracker {
	return &Tracker{
		store:    s,
		locks:    locks,
		catalog:  cat,
		certs:    certs,
		profiles: profiles,
		usage:    usage,
		now:      time.Now,
	}
}

// Result reports the outcome of a lesson completion call
type Result struct {
	TrackComplete   bool                  `json:"track_complete"`
	AlreadyRecorded bool                  `json:"already_recorded"`
	Progress        *models.TrackProgress `json:"progress"`
	Certificate     *models.Certificate   `json:"certificate,omitempty"`
	CoinsAwarded    int                   `json:"coins_awarded"`
}

// RecordLessonCompletion records one finished lesson for a learner.
//
// The call is idempotent per lesson: a lesson already present in the
// progress record adds nothing and can never re-trigger completion. The
// read-modify-write of the progress record is serialized per learner, so
// overlapping calls cannot lose updates.
//
// Rewards follow the persisted state: the progress write happens first,
// and only on success are the certificate issued and coins credited. A
// storage failure propagates without any partial reward.
func (t *Tracker) RecordLessonCompletion(ctx context.Context, userID, userName, trackID, lessonID string, score, timeSpentSeconds int) (*Result, error) {
	track := t.catalog.GetTrack(trackID)
	if track == nil {
		return nil, ErrUnknownTrack
	}

	lesson := t.catalog.GetLesson(lessonID)
	if lesson == nil || lesson.TrackID != trackID {
		return nil, ErrUnknownLesson
	}

	key := progressKeyPrefix + userID
	unlock := t.locks.Lock(key)
	defer unlock()

	all, err := t.loadAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	tp, ok := all[trackID]
	if !ok {
		tp = &models.TrackProgress{TrackID: trackID}
		all[trackID] = tp
	}

	already := tp.HasLesson(lessonID)
	if !already {
		tp.CompletedLessons = append(tp.CompletedLessons, lessonID)
		tp.TotalScore += score
		tp.TotalTimeSpent += timeSpentSeconds
	}

	totalLessons := track.LessonCount()
	justCompleted := !already && len(tp.CompletedLessons) == totalLessons

	// Persist before any reward. Written even on the duplicate no-op so
	// storage stays consistent with what the caller observed.
	if err := store.SetJSON(ctx, t.store, key, all); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	result := &Result{
		TrackComplete:   len(tp.CompletedLessons) == totalLessons,
		AlreadyRecorded: already,
		Progress:        tp,
	}

	if already {
		return result, nil
	}

	if _, err := t.profiles.RecordLesson(ctx, userID, t.now()); err != nil {
		return nil, err
	}
	if _, err := t.usage.RecordLesson(ctx, userID, t.now()); err != nil {
		return nil, err
	}
	if lesson.Reward > 0 {
		if _, err := t.profiles.Credit(ctx, userID, lesson.Reward); err != nil {
			return nil, err
		}
		result.CoinsAwarded += lesson.Reward
	}

	if justCompleted {
		cert, err := t.completeTrack(ctx, userID, userName, track, tp)
		if err != nil {
			return nil, err
		}
		result.Certificate = cert
		result.CoinsAwarded += TrackCompletionBonus
	}

	slog.Info("lesson completion recorded",
		"user_id", userID,
		"track_id", trackID,
		"lesson_id", lessonID,
		"completed", len(tp.CompletedLessons),
		"total", totalLessons,
		"track_complete", result.TrackComplete,
	)

	return result, nil
}

// completeTrack runs the completion transition: certificate issuance and
// the completion bonus
func (t *Tracker) completeTrack(ctx context.Context, userID, userName string, track *models.SkillTrack, tp *models.TrackProgress) (*models.Certificate, error) {
	finalScore := int(math.Round(float64(tp.TotalScore) / float64(len(tp.CompletedLessons))))

	cert, err := t.certs.Issue(ctx, certificate.IssueParams{
		UserID:           userID,
		UserName:         userName,
		SkillTrackID:     track.ID,
		SkillTrackTitle:  t.catalog.TrackTitle(track.ID),
		LessonsCompleted: len(tp.CompletedLessons),
		TotalLessons:     track.LessonCount(),
		FinalScore:       finalScore,
		TimeSpent:        tp.TotalTimeSpent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}

	if _, err := t.profiles.Credit(ctx, userID, TrackCompletionBonus); err != nil {
		return nil, fmt.Errorf("failed to credit completion bonus: %w", err)
	}

	if _, err := t.usage.RecordCertificate(ctx, userID, t.now()); err != nil {
		return nil, err
	}

	slog.Info("track completed",
		"user_id", userID,
		"track_id", track.ID,
		"final_score", finalScore,
		"certificate_id", cert.ID,
	)

	return cert, nil
}

// GetProgress returns all of a learner's per-track progress records
func (t *Tracker) GetProgress(ctx context.Context, userID string) (map[string]*models.TrackProgress, error) {
	return t.loadAll(ctx, userID)
}

// GetTrackProgress returns a learner's progress for one track, or nil
// when the track has not been started
func (t *Tracker) GetTrackProgress(ctx context.Context, userID, trackID string) (*models.TrackProgress, error) {
	all, err := t.loadAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return all[trackID], nil
}

// Skills derives the learner's acquired skill set from their progress
func (t *Tracker) Skills(ctx context.Context, userID string) ([]string, error) {
	all, err := t.loadAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	return matching.SkillSet(all, t.catalog), nil
}

// loadAll reads the learner's progress map; an absent key is an empty map
func (t *Tracker) loadAll(ctx context.Context, userID string) (map[string]*models.TrackProgress, error) {
	all := make(map[string]*models.TrackProgress)
	err := store.GetJSON(ctx, t.store, progressKeyPrefix+userID, &all)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return all, nil
}
