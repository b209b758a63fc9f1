package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skillcoin/learn-engine/internal/jobs"
	"github.com/skillcoin/learn-engine/internal/matching"
	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/profile"
)

// handleListJobs returns catalog jobs filtered by query parameters and
// ranked by the learner's skill-match score
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	skills, err := s.tracker.Skills(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to derive skills", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to derive skills")
		return
	}

	ranked := s.jobs.List(jobFiltersFromQuery(r), skills)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  ranked,
		"total": len(ranked),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	job, err := s.jobs.Get(jobID)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}

	skills, err := s.tracker.Skills(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to derive skills", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to derive skills")
		return
	}

	applied, err := s.jobs.HasApplied(r.Context(), jobID, session.UserID)
	if err != nil {
		slog.Error("failed to check application", "error", err, "job_id", jobID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to check application")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job":         job,
		"match_score": matching.Score(job, skills),
		"breakdown":   matching.Breakdown(job, skills),
		"has_applied": applied,
	})
}

type applyRequest struct {
	CoverLetter string `json:"cover_letter,omitempty"`
}

func (s *Server) handleApplyToJob(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	var req applyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	skills, err := s.tracker.Skills(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to derive skills", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to derive skills")
		return
	}

	app, err := s.jobs.Apply(r.Context(), jobID, session.UserID, req.CoverLetter, skills)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			respondError(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, jobs.ErrAlreadyApplied):
			respondError(w, http.StatusConflict, "already_applied", "already applied to this job")
		case errors.Is(err, profile.ErrInsufficientCoins):
			respondError(w, http.StatusPaymentRequired, "insufficient_coins", "not enough SkillCoins for the application cost")
		default:
			slog.Error("failed to apply to job", "error", err, "job_id", jobID, "user_id", session.UserID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to apply")
		}
		return
	}

	respondJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	apps, err := s.jobs.ListApplications(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to list applications", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list applications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"applications": apps,
		"total":        len(apps),
	})
}

// jobFiltersFromQuery parses job board filters from query parameters.
// List-valued filters are comma-separated.
func jobFiltersFromQuery(r *http.Request) models.JobFilters {
	q := r.URL.Query()

	filters := models.JobFilters{
		Location:        q.Get("location"),
		LocationTypes:   splitList(q.Get("location_type")),
		ExperienceLevel: splitList(q.Get("experience_level")),
		Skills:          splitList(q.Get("skills")),
		Industries:      splitList(q.Get("industry")),
		CompanySizes:    splitList(q.Get("company_size")),
	}

	if v := q.Get("salary_min"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.SalaryMin = n
		}
	}
	if v := q.Get("salary_max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.SalaryMax = n
		}
	}
	if v := q.Get("partnership"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filters.IsPartnership = &b
		}
	}

	return filters
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
