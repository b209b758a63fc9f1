package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/skillcoin/learn-engine/internal/models"
)

func TestLoadFromDir(t *testing.T) {
	// Use the actual catalog directory
	catalogDir := filepath.Join("..", "..", "catalog")

	// Check it exists
	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		t.Skip("catalog directory not found, skipping")
	}

	cat := New()
	if err := cat.LoadFromDir(catalogDir); err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}

	tracks := cat.ListTracks()
	if len(tracks) < 4 {
		t.Errorf("expected at least 4 tracks, got %d", len(tracks))
	}

	python := cat.GetTrack("python-programming")
	if python == nil {
		t.Fatal("python-programming track not found")
	}
	if python.Skill != "Python Programming" {
		t.Errorf("expected skill 'Python Programming', got '%s'", python.Skill)
	}
	if python.LessonCount() != 3 {
		t.Errorf("expected 3 python lessons, got %d", python.LessonCount())
	}

	lesson := cat.GetLesson("python-basics-1")
	if lesson == nil {
		t.Fatal("python-basics-1 lesson not found")
	}
	if lesson.TrackID != "python-programming" {
		t.Errorf("lesson track id = %s, want python-programming", lesson.TrackID)
	}
	if lesson.Reward != 15 {
		t.Errorf("expected reward 15, got %d", lesson.Reward)
	}

	jobs := cat.ListJobs()
	if len(jobs) < 5 {
		t.Errorf("expected at least 5 jobs, got %d", len(jobs))
	}

	job := cat.GetJob("job-1")
	if job == nil {
		t.Fatal("job-1 not found")
	}
	if job.Title != "Python Developer" {
		t.Errorf("unexpected job title: %s", job.Title)
	}
	if len(job.RequiredSkills) == 0 {
		t.Error("job-1 has no required skills")
	}
	if job.ApplicationCost != 25 {
		t.Errorf("expected application cost 25, got %d", job.ApplicationCost)
	}

	// Log summary
	t.Logf("Tracks: %d, Jobs: %d", len(tracks), len(jobs))
	for _, tr := range tracks {
		t.Logf("  %s (%s): %d lessons", tr.ID, tr.Skill, tr.LessonCount())
	}
}

func TestAddTrack(t *testing.T) {
	cat := New()

	cat.AddTrack(&models.SkillTrack{
		ID:    "t1",
		Title: "Track One",
		Skill: "Skill One",
		Lessons: []models.Lesson{
			{ID: "l1", Title: "Lesson"},
		},
	})

	// Lessons pick up their owning track's ID
	lesson := cat.GetLesson("l1")
	if lesson == nil {
		t.Fatal("lesson not registered")
	}
	if lesson.TrackID != "t1" {
		t.Errorf("lesson track id = %s, want t1", lesson.TrackID)
	}

	if got := cat.TrackLessonCount("t1"); got != 1 {
		t.Errorf("lesson count = %d, want 1", got)
	}
	if got := cat.TrackTitle("t1"); got != "Track One" {
		t.Errorf("track title = %s", got)
	}
	if got := cat.TrackTitle("missing"); got != UnknownSkillTitle {
		t.Errorf("unknown track title = %s, want %s", got, UnknownSkillTitle)
	}

	skill, ok := cat.SkillName("t1")
	if !ok || skill != "Skill One" {
		t.Errorf("SkillName = %s/%v", skill, ok)
	}
	if _, ok := cat.SkillName("missing"); ok {
		t.Error("SkillName reported an unknown track as known")
	}
}

func TestAddTrackReplacesByID(t *testing.T) {
	cat := New()

	cat.AddTrack(&models.SkillTrack{ID: "t1", Title: "Old", Lessons: []models.Lesson{{ID: "l1"}}})
	cat.AddTrack(&models.SkillTrack{ID: "t1", Title: "New", Lessons: []models.Lesson{{ID: "l1"}}})

	if len(cat.ListTracks()) != 1 {
		t.Errorf("expected 1 track after replace, got %d", len(cat.ListTracks()))
	}
	if got := cat.TrackTitle("t1"); got != "New" {
		t.Errorf("track title = %s, want New", got)
	}
}
