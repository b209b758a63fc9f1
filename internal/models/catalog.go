package models

// SkillTrack represents a named curriculum of lessons.
// Completing every lesson in a track completes the track.
type SkillTrack struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Skill       string   `yaml:"skill" json:"skill"` // display name contributed to the learner's skill set
	Description string   `yaml:"description" json:"description,omitempty"`
	Lessons     []Lesson `yaml:"lessons" json:"lessons"`
}

// LessonCount returns the number of lessons in the track
func (t *SkillTrack) LessonCount() int {
	return len(t.Lessons)
}

// Lesson represents a single lesson within a skill track
type Lesson struct {
	ID              string `yaml:"id" json:"id"`
	TrackID         string `yaml:"-" json:"track_id"`
	Title           string `yaml:"title" json:"title"`
	DurationMinutes int    `yaml:"duration_minutes" json:"duration_minutes"`
	Reward          int    `yaml:"reward" json:"reward"` // SkillCoins awarded on completion
	Objective       string `yaml:"objective" json:"objective,omitempty"`
}
