// Package matching computes skill-match scores between a learner's
// acquired skills and a job posting's skill demands. Pure functions, no
// side effects.
package matching

import (
	"math"
	"sort"

	"github.com/skillcoin/learn-engine/internal/models"
)

// Weights for the two skill lists. Required skills dominate the score.
const (
	requiredWeight  = 0.7
	preferredWeight = 0.3
)

// Score returns an integer match percentage in [0,100] expressing how well
// the learner's skills satisfy the job's required and preferred skill
// lists. The catalog guarantees required skills are non-empty; a violation
// returns 0 rather than dividing by zero.
func Score(job *models.JobPosting, learnerSkills []string) int {
	if job == nil || len(job.RequiredSkills) == 0 {
		return 0
	}

	skills := toSet(learnerSkills)

	requiredRatio := matchRatio(job.RequiredSkills, skills)

	preferredRatio := 0.0
	if len(job.PreferredSkills) > 0 {
		preferredRatio = matchRatio(job.PreferredSkills, skills)
	}

	weighted := requiredRatio*requiredWeight + preferredRatio*preferredWeight
	return int(math.Round(weighted * 100))
}

// SkillCheck reports whether one demanded skill is present in the
// learner's set. Used to render per-skill checklists next to the scalar
// score.
type SkillCheck struct {
	Skill    string `json:"skill"`
	Required bool   `json:"required"`
	Acquired bool   `json:"acquired"`
}

// Breakdown returns the per-skill checklist for a job, required skills
// first, preserving catalog order.
func Breakdown(job *models.JobPosting, learnerSkills []string) []SkillCheck {
	if job == nil {
		return nil
	}

	skills := toSet(learnerSkills)

	checks := make([]SkillCheck, 0, len(job.RequiredSkills)+len(job.PreferredSkills))
	for _, s := range job.RequiredSkills {
		checks = append(checks, SkillCheck{Skill: s, Required: true, Acquired: skills[s]})
	}
	for _, s := range job.PreferredSkills {
		checks = append(checks, SkillCheck{Skill: s, Required: false, Acquired: skills[s]})
	}
	return checks
}

// RankedJob pairs a job posting with its match score
type RankedJob struct {
	Job   *models.JobPosting `json:"job"`
	Score int                `json:"score"`
}

// Rank orders jobs by descending match score. The sort is stable: jobs
// with equal scores keep their original relative order.
func Rank(jobs []*models.JobPosting, learnerSkills []string) []RankedJob {
	ranked := make([]RankedJob, len(jobs))
	for i, job := range jobs {
		ranked[i] = RankedJob{Job: job, Score: Score(job, learnerSkills)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

func matchRatio(demanded []string, acquired map[string]bool) float64 {
	matches := 0
	for _, s := range demanded {
		if acquired[s] {
			matches++
		}
	}
	return float64(matches) / float64(len(demanded))
}

func toSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		set[s] = true
	}
	return set
}
