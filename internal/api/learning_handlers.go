package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillcoin/learn-engine/internal/certificate"
	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/progress"
	"github.com/skillcoin/learn-engine/internal/subscription"
)

// Track handlers

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks := s.catalog.ListTracks()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": tracks,
		"total":  len(tracks),
	})
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	track := s.catalog.GetTrack(id)
	if track == nil {
		respondError(w, http.StatusNotFound, "not_found", "track not found")
		return
	}
	respondJSON(w, http.StatusOK, track)
}

func (s *Server) handleListTrackLessons(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	track := s.catalog.GetTrack(id)
	if track == nil {
		respondError(w, http.StatusNotFound, "not_found", "track not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"lessons": track.Lessons,
		"total":   len(track.Lessons),
	})
}

// Lesson completion

type completeLessonRequest struct {
	Score            int `json:"score"`
	TimeSpentSeconds int `json:"time_spent_seconds"`
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	lessonID := chi.URLParam(r, "id")
	lesson := s.catalog.GetLesson(lessonID)
	if lesson == nil {
		respondError(w, http.StatusNotFound, "not_found", "lesson not found")
		return
	}

	var req completeLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Score < 0 || req.Score > 100 {
		respondError(w, http.StatusBadRequest, "validation_error", "score must be between 0 and 100")
		return
	}
	if req.TimeSpentSeconds < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "time_spent_seconds cannot be negative")
		return
	}

	// Tier gate before recording anything
	prof, err := s.profiles.Get(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to load profile", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load profile")
		return
	}

	if err := s.usage.CheckLessonAllowance(r.Context(), session.UserID, prof.Tier, time.Now()); err != nil {
		if errors.Is(err, subscription.ErrDailyLimitReached) {
			respondError(w, http.StatusForbidden, "daily_limit_reached", "free tier daily lesson limit reached")
			return
		}
		slog.Error("failed to check lesson allowance", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to check allowance")
		return
	}

	result, err := s.tracker.RecordLessonCompletion(
		r.Context(),
		session.UserID,
		session.UserName,
		lesson.TrackID,
		lessonID,
		req.Score,
		req.TimeSpentSeconds,
	)
	if err != nil {
		if errors.Is(err, progress.ErrUnknownTrack) || errors.Is(err, progress.ErrUnknownLesson) {
			respondError(w, http.StatusNotFound, "not_found", "lesson not found")
			return
		}
		slog.Error("failed to record lesson completion",
			"error", err,
			"user_id", session.UserID,
			"lesson_id", lessonID,
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to record completion")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	all, err := s.tracker.GetProgress(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to load progress", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load progress")
		return
	}

	type trackProgress struct {
		*models.TrackProgress
		State        models.TrackState `json:"state"`
		TotalLessons int               `json:"total_lessons"`
	}

	result := make(map[string]trackProgress, len(all))
	for trackID, p := range all {
		total := s.catalog.TrackLessonCount(trackID)
		result[trackID] = trackProgress{
			TrackProgress: p,
			State:         p.State(total),
			TotalLessons:  total,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"progress": result,
	})
}

// Certificate handlers

func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	certs, err := s.issuer.ListByUser(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to list certificates", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list certificates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"certificates": certs,
		"total":        len(certs),
	})
}

// handleVerifyCertificate is the public verification endpoint. Incoming
// IDs are upper-cased here so stored IDs only ever need exact matching.
func (s *Server) handleVerifyCertificate(w http.ResponseWriter, r *http.Request) {
	verificationID := strings.ToUpper(chi.URLParam(r, "verificationId"))

	cert, err := s.issuer.Verify(r.Context(), verificationID)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "certificate not found")
			return
		}
		slog.Error("failed to verify certificate", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to verify certificate")
		return
	}

	respondJSON(w, http.StatusOK, cert)
}

func (s *Server) handleMintNFT(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	certID := chi.URLParam(r, "id")

	if !s.ownsCertificate(w, r, certID, session.UserID) {
		return
	}

	tokenID, err := s.issuer.Mint(r.Context(), certID)
	if err != nil {
		switch {
		case errors.Is(err, certificate.ErrNotFound):
			respondError(w, http.StatusNotFound, "not_found", "certificate not found")
		case errors.Is(err, certificate.ErrAlreadyMinted):
			respondError(w, http.StatusConflict, "already_minted", "certificate already has an NFT token")
		default:
			slog.Error("failed to mint nft", "error", err, "certificate_id", certID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to mint")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"token_id": tokenID,
	})
}

// ownsCertificate rejects minting someone else's certificate. Writes the
// error response itself and reports whether to continue.
func (s *Server) ownsCertificate(w http.ResponseWriter, r *http.Request, certID, userID string) bool {
	cert, err := s.issuer.Get(r.Context(), certID)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "certificate not found")
			return false
		}
		slog.Error("failed to load certificate", "error", err, "certificate_id", certID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load certificate")
		return false
	}

	if cert.UserID != userID {
		respondError(w, http.StatusForbidden, "forbidden", "certificate belongs to another user")
		return false
	}

	return true
}
