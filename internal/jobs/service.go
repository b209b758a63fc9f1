// Package jobs serves the job board: filtering and ranking catalog
// postings against a learner's skills, and recording paid applications.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillcoin/learn-engine/internal/catalog"
	"github.com/skillcoin/learn-engine/internal/matching"
	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/profile"
	"github.com/skillcoin/learn-engine/internal/store"
)

// Common errors
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrAlreadyApplied = errors.New("already applied to this job")
)

// applicationsKey is the storage key of the flat application list
const applicationsKey = "applications"

// Service queries the job catalog and manages applications
type Service struct {
	store    store.Store
	locks    *store.KeyMutex
	catalog  *catalog.Catalog
	profiles *profile.Service
}

// NewService creates a jobs service
func NewService(s store.Store, locks *store.KeyMutex, cat *catalog.Catalog, profiles *profile.Service) *Service {
	return &Service{
		store:    s,
		locks:    locks,
		catalog:  cat,
		profiles: profiles,
	}
}

// List returns catalog jobs matching the filters, ranked by descending
// skill-match score (stable on ties)
func (s *Service) List(filters models.JobFilters, learnerSkills []string) []matching.RankedJob {
	return matching.Rank(Filter(s.catalog.ListJobs(), filters), learnerSkills)
}

// Get returns a job posting by ID
func (s *Service) Get(jobID string) (*models.JobPosting, error) {
	job := s.catalog.GetJob(jobID)
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Apply records a job application, deducting the job's application cost
// from the learner's SkillCoin balance. The skill-match score is frozen
// into the application at apply time.
func (s *Service) Apply(ctx context.Context, jobID, userID, coverLetter string, learnerSkills []string) (*models.JobApplication, error) {
	job := s.catalog.GetJob(jobID)
	if job == nil {
		return nil, ErrJobNotFound
	}

	unlock := s.locks.Lock(applicationsKey)
	defer unlock()

	apps, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range apps {
		if a.JobID == jobID && a.UserID == userID {
			return nil, ErrAlreadyApplied
		}
	}

	if job.ApplicationCost > 0 {
		if _, err := s.profiles.Debit(ctx, userID, job.ApplicationCost); err != nil {
			return nil, err
		}
	}

	app := &models.JobApplication{
		ID:              uuid.New().String(),
		JobID:           jobID,
		UserID:          userID,
		AppliedDate:     time.Now().UTC(),
		Status:          models.ApplicationPending,
		CoverLetter:     coverLetter,
		SkillMatchScore: matching.Score(job, learnerSkills),
	}

	apps = append(apps, app)

	if err := store.SetJSON(ctx, s.store, applicationsKey, apps); err != nil {
		// The cost was already taken; put it back rather than charging
		// for an application that was never recorded
		if _, refundErr := s.profiles.Credit(ctx, userID, job.ApplicationCost); refundErr != nil {
			slog.Error("failed to refund application cost",
				"user_id", userID,
				"job_id", jobID,
				"amount", job.ApplicationCost,
				"error", refundErr,
			)
		}
		return nil, fmt.Errorf("failed to save application: %w", err)
	}

	slog.Info("job application recorded",
		"application_id", app.ID,
		"job_id", jobID,
		"user_id", userID,
		"match_score", app.SkillMatchScore,
	)

	return app, nil
}

// HasApplied reports whether the learner already applied to the job
func (s *Service) HasApplied(ctx context.Context, jobID, userID string) (bool, error) {
	apps, err := s.loadAll(ctx)
	if err != nil {
		return false, err
	}

	for _, a := range apps {
		if a.JobID == jobID && a.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ListApplications returns all of a learner's applications
func (s *Service) ListApplications(ctx context.Context, userID string) ([]*models.JobApplication, error) {
	apps, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.JobApplication, 0)
	for _, a := range apps {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *Service) loadAll(ctx context.Context) ([]*models.JobApplication, error) {
	var apps []*models.JobApplication
	if err := store.GetJSON(ctx, s.store, applicationsKey, &apps); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load applications: %w", err)
	}
	return apps, nil
}

// Filter returns the postings that pass every set filter. Unset filter
// fields match everything.
func Filter(jobs []*models.JobPosting, f models.JobFilters) []*models.JobPosting {
	result := make([]*models.JobPosting, 0, len(jobs))
	for _, job := range jobs {
		if matchesFilters(job, f) {
			result = append(result, job)
		}
	}
	return result
}

func matchesFilters(job *models.JobPosting, f models.JobFilters) bool {
	if f.Location != "" && !strings.Contains(strings.ToLower(job.Location), strings.ToLower(f.Location)) {
		return false
	}

	if len(f.LocationTypes) > 0 && !contains(f.LocationTypes, job.LocationType) {
		return false
	}

	// Salary filters match on range overlap
	if f.SalaryMin > 0 && job.SalaryMax < f.SalaryMin {
		return false
	}
	if f.SalaryMax > 0 && job.SalaryMin > f.SalaryMax {
		return false
	}

	if len(f.ExperienceLevel) > 0 && !contains(f.ExperienceLevel, job.ExperienceLevel) {
		return false
	}

	if len(f.Skills) > 0 && !hasAnySkill(job, f.Skills) {
		return false
	}

	if len(f.Industries) > 0 && !contains(f.Industries, job.Industry) {
		return false
	}

	if len(f.CompanySizes) > 0 && !contains(f.CompanySizes, job.CompanySize) {
		return false
	}

	if f.IsPartnership != nil && job.IsPartnership != *f.IsPartnership {
		return false
	}

	return true
}

func hasAnySkill(job *models.JobPosting, skills []string) bool {
	for _, skill := range skills {
		if contains(job.RequiredSkills, skill) || contains(job.PreferredSkills, skill) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
