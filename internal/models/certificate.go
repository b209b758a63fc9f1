package models

import "time"

// Certificate attests completion of a skill track. Issued exactly once per
// (learner, track); immutable except for the NFT token attached by a later
// mint step.
type Certificate struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	SkillTrackID     string    `json:"skill_track_id"`
	SkillTrackTitle  string    `json:"skill_track_title"`
	CompletionDate   time.Time `json:"completion_date"`
	VerificationID   string    `json:"verification_id"` // e.g. "AB3D-9F2K-QX7M"
	BlockchainHash   string    `json:"blockchain_hash"` // "0x" + 64 hex chars, simulated
	ShareableLink    string    `json:"shareable_link"`
	LessonsCompleted int       `json:"lessons_completed"`
	TotalLessons     int       `json:"total_lessons"`
	FinalScore       int       `json:"final_score"` // rounded average of per-lesson scores
	TimeSpent        int       `json:"time_spent"`  // seconds
	NFTTokenID       string    `json:"nft_token_id,omitempty"`
}

// Minted reports whether an NFT token has already been attached
func (c *Certificate) Minted() bool {
	return c.NFTTokenID != ""
}
