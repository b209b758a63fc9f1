package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/skillcoin/learn-engine/internal/models"
)

// UnknownSkillTitle is the display title used for track IDs that have no
// catalog entry.
const UnknownSkillTitle = "Unknown Skill"

// Catalog holds the static skill-track and job-posting datasets, loaded
// from YAML at startup. Read-only after loading, safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	tracks     map[string]*models.SkillTrack
	trackOrder []string
	lessons    map[string]*models.Lesson
	jobs       []*models.JobPosting
	jobsByID   map[string]*models.JobPosting
}

// New creates an empty catalog
func New() *Catalog {
	return &Catalog{
		tracks:   make(map[string]*models.SkillTrack),
		lessons:  make(map[string]*models.Lesson),
		jobsByID: make(map[string]*models.JobPosting),
	}
}

// LoadFromDir loads all track and job YAML files from a catalog directory.
// Expected layout: <dir>/tracks/*.yaml (one track per file) and
// <dir>/jobs/*.yaml (a list of postings per file).
func (c *Catalog) LoadFromDir(dir string) error {
	slog.Info("loading catalog from directory", "dir", dir)

	trackFiles, err := globYAML(filepath.Join(dir, "tracks"))
	if err != nil {
		return fmt.Errorf("failed to list track files: %w", err)
	}

	for _, file := range trackFiles {
		if err := c.LoadTrackFile(file); err != nil {
			slog.Warn("failed to load track", "file", file, "error", err)
			continue
		}
	}

	jobFiles, err := globYAML(filepath.Join(dir, "jobs"))
	if err != nil {
		return fmt.Errorf("failed to list job files: %w", err)
	}

	for _, file := range jobFiles {
		if err := c.LoadJobsFile(file); err != nil {
			slog.Warn("failed to load jobs", "file", file, "error", err)
			continue
		}
	}

	slog.Info("catalog loaded",
		"tracks", len(c.trackOrder),
		"lessons", len(c.lessons),
		"jobs", len(c.jobs),
	)

	return nil
}

func globYAML(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

// LoadTrackFile loads a single skill track from a YAML file
func (c *Catalog) LoadTrackFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var track models.SkillTrack
	if err := yaml.Unmarshal(data, &track); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if track.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if track.Title == "" {
		return fmt.Errorf("track title is required")
	}
	if len(track.Lessons) == 0 {
		return fmt.Errorf("track %q has no lessons", track.ID)
	}
	// Tracks without an explicit skill name contribute their title
	if track.Skill == "" {
		track.Skill = track.Title
	}

	c.AddTrack(&track)

	slog.Info("track loaded", "id", track.ID, "lessons", len(track.Lessons))
	return nil
}

// LoadJobsFile loads job postings from a YAML file
func (c *Catalog) LoadJobsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var jf jobsFile
	if err := yaml.Unmarshal(data, &jf); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range jf.Jobs {
		job := &jf.Jobs[i]
		if job.ID == "" {
			return fmt.Errorf("job posting without id in %s", path)
		}
		if len(job.RequiredSkills) == 0 {
			return fmt.Errorf("job %q has no required skills", job.ID)
		}
		c.AddJob(job)
	}

	slog.Info("jobs loaded", "file", filepath.Base(path), "count", len(jf.Jobs))
	return nil
}

// AddTrack programmatically registers a track. Replaces any existing track
// with the same ID.
func (c *Catalog) AddTrack(track *models.SkillTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tracks[track.ID]; !exists {
		c.trackOrder = append(c.trackOrder, track.ID)
	}
	c.tracks[track.ID] = track

	for i := range track.Lessons {
		lesson := &track.Lessons[i]
		lesson.TrackID = track.ID
		c.lessons[lesson.ID] = lesson
	}
}

// AddJob programmatically registers a job posting
func (c *Catalog) AddJob(job *models.JobPosting) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.jobsByID[job.ID]; !exists {
		c.jobs = append(c.jobs, job)
	}
	c.jobsByID[job.ID] = job
}

// GetTrack returns a track by ID, or nil when unknown
func (c *Catalog) GetTrack(id string) *models.SkillTrack {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tracks[id]
}

// ListTracks returns all tracks in load order
func (c *Catalog) ListTracks() []*models.SkillTrack {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*models.SkillTrack, 0, len(c.trackOrder))
	for _, id := range c.trackOrder {
		result = append(result, c.tracks[id])
	}
	return result
}

// TrackLessonCount returns the number of lessons in a track, 0 when unknown
func (c *Catalog) TrackLessonCount(trackID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	track, ok := c.tracks[trackID]
	if !ok {
		return 0
	}
	return track.LessonCount()
}

// TrackTitle returns the display title for a track. Unknown track IDs fall
// back to a generic label rather than failing.
func (c *Catalog) TrackTitle(trackID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	track, ok := c.tracks[trackID]
	if !ok {
		return UnknownSkillTitle
	}
	return track.Title
}

// SkillName returns the skill display name a track contributes to a
// learner's skill set. The second return is false for unknown tracks.
func (c *Catalog) SkillName(trackID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	track, ok := c.tracks[trackID]
	if !ok {
		return "", false
	}
	return track.Skill, true
}

// GetLesson returns a lesson by ID, or nil when unknown
func (c *Catalog) GetLesson(id string) *models.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lessons[id]
}

// ListJobs returns all job postings in load order
func (c *Catalog) ListJobs() []*models.JobPosting {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*models.JobPosting, len(c.jobs))
	copy(result, c.jobs)
	return result
}

// GetJob returns a job posting by ID, or nil when unknown
func (c *Catalog) GetJob(id string) *models.JobPosting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobsByID[id]
}

// jobsFile represents the YAML structure of a job postings file
type jobsFile struct {
	Jobs []models.JobPosting `yaml:"jobs"`
}
