package models

import "time"

// JobPosting represents a job from the static catalog. Immutable at runtime.
type JobPosting struct {
	ID              string   `yaml:"id" json:"id"`
	Title           string   `yaml:"title" json:"title"`
	Company         string   `yaml:"company" json:"company"`
	Location        string   `yaml:"location" json:"location"`
	LocationType    string   `yaml:"location_type" json:"location_type"` // remote | hybrid | onsite
	SalaryMin       int      `yaml:"salary_min" json:"salary_min"`
	SalaryMax       int      `yaml:"salary_max" json:"salary_max"`
	Currency        string   `yaml:"currency" json:"currency"`
	RequiredSkills  []string `yaml:"required_skills" json:"required_skills"`
	PreferredSkills []string `yaml:"preferred_skills" json:"preferred_skills,omitempty"`
	ExperienceLevel string   `yaml:"experience_level" json:"experience_level"` // entry | mid | senior
	Description     string   `yaml:"description" json:"description,omitempty"`
	ApplicationCost int      `yaml:"application_cost" json:"application_cost"` // SkillCoins
	PostedDate      string   `yaml:"posted_date" json:"posted_date,omitempty"`
	IsPartnership   bool     `yaml:"is_partnership" json:"is_partnership"`
	CompanySize     string   `yaml:"company_size" json:"company_size,omitempty"`
	Industry        string   `yaml:"industry" json:"industry,omitempty"`
	Tags            []string `yaml:"tags" json:"tags,omitempty"`
}

// ApplicationStatus represents the state of a job application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationReviewed ApplicationStatus = "reviewed"
	ApplicationRejected ApplicationStatus = "rejected"
)

// JobApplication records that a learner applied to a job posting
type JobApplication struct {
	ID              string            `json:"id"`
	JobID           string            `json:"job_id"`
	UserID          string            `json:"user_id"`
	AppliedDate     time.Time         `json:"applied_date"`
	Status          ApplicationStatus `json:"status"`
	CoverLetter     string            `json:"cover_letter,omitempty"`
	SkillMatchScore int               `json:"skill_match_score"`
}

// JobFilters defines filters for listing job postings
type JobFilters struct {
	Location        string
	LocationTypes   []string
	SalaryMin       int
	SalaryMax       int
	ExperienceLevel []string
	Skills          []string
	Industries      []string
	CompanySizes    []string
	IsPartnership   *bool
}
