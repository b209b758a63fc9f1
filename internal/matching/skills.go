package matching

import (
	"sort"

	"github.com/skillcoin/learn-engine/internal/catalog"
	"github.com/skillcoin/learn-engine/internal/models"
)

// SkillSet derives a learner's acquired skills from their per-track
// progress: every track with at least one completed lesson contributes its
// skill display name. Set semantics, deterministic order, tracks unknown
// to the catalog are skipped.
func SkillSet(progress map[string]*models.TrackProgress, cat *catalog.Catalog) []string {
	trackIDs := make([]string, 0, len(progress))
	for id := range progress {
		trackIDs = append(trackIDs, id)
	}
	sort.Strings(trackIDs)

	seen := make(map[string]bool)
	var skills []string

	for _, trackID := range trackIDs {
		p := progress[trackID]
		if p == nil || len(p.CompletedLessons) == 0 {
			continue
		}

		skill, ok := cat.SkillName(trackID)
		if !ok || seen[skill] {
			continue
		}

		seen[skill] = true
		skills = append(skills, skill)
	}

	return skills
}
