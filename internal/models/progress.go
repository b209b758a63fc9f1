package models

// TrackState represents the completion state of a (learner, track) pair
type TrackState string

const (
	TrackNotStarted TrackState = "not_started"
	TrackInProgress TrackState = "in_progress"
	TrackComplete   TrackState = "complete"
)

// TrackProgress accumulates lesson completions for one learner on one track.
// Created on the first lesson completion, mutated by appending lesson IDs,
// never deleted.
type TrackProgress struct {
	TrackID          string   `json:"track_id"`
	CompletedLessons []string `json:"completed_lessons"`
	TotalScore       int      `json:"total_score"`
	TotalTimeSpent   int      `json:"total_time_spent"` // seconds
}

// HasLesson reports whether the lesson is already recorded
func (p *TrackProgress) HasLesson(lessonID string) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// State derives the track state given the total lesson count of the track
func (p *TrackProgress) State(totalLessons int) TrackState {
	switch {
	case p == nil || len(p.CompletedLessons) == 0:
		return TrackNotStarted
	case totalLessons > 0 && len(p.CompletedLessons) >= totalLessons:
		return TrackComplete
	default:
		return TrackInProgress
	}
}
