package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/skillcoin/learn-engine/internal/auth"
	"github.com/skillcoin/learn-engine/internal/catalog"
	"github.com/skillcoin/learn-engine/internal/certificate"
	"github.com/skillcoin/learn-engine/internal/config"
	"github.com/skillcoin/learn-engine/internal/jobs"
	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/profile"
	"github.com/skillcoin/learn-engine/internal/progress"
	"github.com/skillcoin/learn-engine/internal/store"
	"github.com/skillcoin/learn-engine/internal/subscription"
)

// memoryUsers is an in-memory UserRepository for handler tests
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryUsers) Insert(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *memoryUsers) Update(ctx context.Context, u *models.User) error { return m.Insert(ctx, u) }

func (m *memoryUsers) Ping(ctx context.Context) error { return nil }

func (m *memoryUsers) Close() error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat := catalog.New()
	cat.AddTrack(&models.SkillTrack{
		ID:    "python-programming",
		Title: "Python Programming",
		Skill: "Python Programming",
		Lessons: []models.Lesson{
			{ID: "python-basics-1", Title: "Python Fundamentals", Reward: 15},
			{ID: "python-control-flow", Title: "Control Flow", Reward: 20},
		},
	})
	cat.AddTrack(&models.SkillTrack{
		ID:    "excel-mastery",
		Title: "Excel Mastery",
		Skill: "Excel Mastery",
		Lessons: []models.Lesson{
			{ID: "excel-basics", Title: "Excel Fundamentals", Reward: 12},
			{ID: "excel-formulas", Title: "Formulas and Functions", Reward: 18},
		},
	})
	cat.AddJob(&models.JobPosting{
		ID:              "job-1",
		Title:           "Python Developer",
		RequiredSkills:  []string{"Python Programming"},
		PreferredSkills: []string{"SQL"},
		ApplicationCost: 25,
	})

	mem := store.NewMemoryStore()
	locks := store.NewKeyMutex()
	users := &memoryUsers{users: make(map[string]*models.User)}

	authSvc := auth.NewService(users, mem, auth.Config{})
	profiles := profile.NewService(mem, locks)
	usage := subscription.NewService(mem, locks)
	issuer := certificate.NewIssuer(mem, locks, nil, certificate.Config{MintDelay: 0})
	tracker := progress.NewTracker(mem, locks, cat, issuer, profiles, usage)
	jobBoard := jobs.NewService(mem, locks, cat, profiles)

	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8080}, Deps{
		Auth:     authSvc,
		Tracker:  tracker,
		Issuer:   issuer,
		Jobs:     jobBoard,
		Profiles: profiles,
		Usage:    usage,
		Catalog:  cat,
		Store:    mem,
		Users:    users,
	})

	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, env
}

func loginTestUser(t *testing.T, ts *httptest.Server) string {
	t.Helper()

	status, _ := doRequest(t, ts, "POST", "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"name":     "Ada",
		"password": "correct-horse",
	})
	if status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}

	status, env := doRequest(t, ts, "POST", "/api/v1/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	if status != http.StatusOK {
		t.Fatalf("login returned %d", status)
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("empty token")
	}
	return login.Token
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		status, env := doRequest(t, ts, "GET", path, "", nil)
		if status != http.StatusOK {
			t.Errorf("%s returned %d", path, status)
		}
		if !env.Success {
			t.Errorf("%s not successful", path)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	status, env := doRequest(t, ts, "GET", "/api/v1/tracks", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("unauthenticated request returned %d, want 401", status)
	}
	if env.Error == nil || env.Error.Code != "missing_token" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}

	status, _ = doRequest(t, ts, "GET", "/api/v1/tracks", "bogus-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("bogus token returned %d, want 401", status)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	status, _ := doRequest(t, ts, "POST", "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"name":     "Ada",
		"password": "short",
	})
	if status != http.StatusBadRequest {
		t.Errorf("short password returned %d, want 400", status)
	}

	token := loginTestUser(t, ts)
	_ = token

	// Same email again
	status, env := doRequest(t, ts, "POST", "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"name":     "Other",
		"password": "long-enough",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate email returned %d, want 409", status)
	}
	if env.Error == nil || env.Error.Code != "email_taken" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}
}

func TestCompleteLessonFlow(t *testing.T) {
	ts := newTestServer(t)
	token := loginTestUser(t, ts)

	// Complete the whole two-lesson track
	status, _ := doRequest(t, ts, "POST", "/api/v1/lessons/python-basics-1/complete", token, map[string]int{
		"score":              85,
		"time_spent_seconds": 300,
	})
	if status != http.StatusOK {
		t.Fatalf("first completion returned %d", status)
	}

	status, env := doRequest(t, ts, "POST", "/api/v1/lessons/python-control-flow/complete", token, map[string]int{
		"score":              95,
		"time_spent_seconds": 290,
	})
	if status != http.StatusOK {
		t.Fatalf("second completion returned %d", status)
	}

	var result struct {
		TrackComplete bool                `json:"track_complete"`
		Certificate   *models.Certificate `json:"certificate"`
		CoinsAwarded  int                 `json:"coins_awarded"`
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.TrackComplete {
		t.Error("track not complete after both lessons")
	}
	if result.Certificate == nil {
		t.Fatal("no certificate in completion response")
	}
	if result.Certificate.FinalScore != 90 {
		t.Errorf("final score = %d, want 90", result.Certificate.FinalScore)
	}
	if result.CoinsAwarded != 20+progress.TrackCompletionBonus {
		t.Errorf("coins awarded = %d, want %d", result.CoinsAwarded, 20+progress.TrackCompletionBonus)
	}

	// Public verification with a lower-cased id still resolves
	verifyID := strings.ToLower(result.Certificate.VerificationID)
	status, env = doRequest(t, ts, "GET", "/api/v1/certificates/verify/"+verifyID, "", nil)
	if status != http.StatusOK {
		t.Fatalf("verify returned %d", status)
	}

	var cert models.Certificate
	if err := json.Unmarshal(env.Data, &cert); err != nil {
		t.Fatalf("decode certificate: %v", err)
	}
	if cert.ID != result.Certificate.ID {
		t.Errorf("verified certificate %s, want %s", cert.ID, result.Certificate.ID)
	}

	// Progress reflects the completed track
	status, env = doRequest(t, ts, "GET", "/api/v1/progress", token, nil)
	if status != http.StatusOK {
		t.Fatalf("progress returned %d", status)
	}
	var prog struct {
		Progress map[string]struct {
			State        models.TrackState `json:"state"`
			TotalLessons int               `json:"total_lessons"`
		} `json:"progress"`
	}
	if err := json.Unmarshal(env.Data, &prog); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if got := prog.Progress["python-programming"].State; got != models.TrackComplete {
		t.Errorf("track state = %s, want complete", got)
	}
}

func TestCompleteLessonValidation(t *testing.T) {
	ts := newTestServer(t)
	token := loginTestUser(t, ts)

	status, _ := doRequest(t, ts, "POST", "/api/v1/lessons/python-basics-1/complete", token, map[string]int{
		"score": 150,
	})
	if status != http.StatusBadRequest {
		t.Errorf("score 150 returned %d, want 400", status)
	}

	status, _ = doRequest(t, ts, "POST", "/api/v1/lessons/no-such-lesson/complete", token, map[string]int{
		"score": 80,
	})
	if status != http.StatusNotFound {
		t.Errorf("unknown lesson returned %d, want 404", status)
	}
}

func TestDailyLimit(t *testing.T) {
	ts := newTestServer(t)
	token := loginTestUser(t, ts)

	// Three distinct lessons exhaust the free-tier allowance; duplicates
	// would not count
	lessons := []string{"python-basics-1", "python-control-flow", "excel-basics"}
	for _, id := range lessons {
		status, _ := doRequest(t, ts, "POST", fmt.Sprintf("/api/v1/lessons/%s/complete", id), token, map[string]int{
			"score": 80,
		})
		if status != http.StatusOK {
			t.Fatalf("completion of %s returned %d", id, status)
		}
	}

	status, env := doRequest(t, ts, "POST", "/api/v1/lessons/python-basics-1/complete", token, map[string]int{
		"score": 80,
	})
	if status != http.StatusForbidden {
		t.Fatalf("over-limit completion returned %d, want 403", status)
	}
	if env.Error == nil || env.Error.Code != "daily_limit_reached" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}
}

func TestMintFlow(t *testing.T) {
	ts := newTestServer(t)
	token := loginTestUser(t, ts)

	for _, id := range []string{"python-basics-1", "python-control-flow"} {
		status, _ := doRequest(t, ts, "POST", fmt.Sprintf("/api/v1/lessons/%s/complete", id), token, map[string]int{
			"score": 90,
		})
		if status != http.StatusOK {
			t.Fatalf("completion returned %d", status)
		}
	}

	status, env := doRequest(t, ts, "GET", "/api/v1/certificates", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list certificates returned %d", status)
	}
	var list struct {
		Certificates []*models.Certificate `json:"certificates"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode certificates: %v", err)
	}
	if len(list.Certificates) != 1 {
		t.Fatalf("expected 1 certificate, got %d", len(list.Certificates))
	}
	certID := list.Certificates[0].ID

	status, env = doRequest(t, ts, "POST", "/api/v1/certificates/"+certID+"/mint", token, nil)
	if status != http.StatusOK {
		t.Fatalf("mint returned %d", status)
	}
	var mint struct {
		TokenID string `json:"token_id"`
	}
	if err := json.Unmarshal(env.Data, &mint); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mint.TokenID == "" {
		t.Error("empty token id")
	}

	// Second mint conflicts
	status, env = doRequest(t, ts, "POST", "/api/v1/certificates/"+certID+"/mint", token, nil)
	if status != http.StatusConflict {
		t.Errorf("second mint returned %d, want 409", status)
	}
	if env.Error == nil || env.Error.Code != "already_minted" {
		t.Errorf("unexpected error payload: %+v", env.Error)
	}
}

func TestJobsFlow(t *testing.T) {
	ts := newTestServer(t)
	token := loginTestUser(t, ts)

	// Acquire the Python skill
	status, _ := doRequest(t, ts, "POST", "/api/v1/lessons/python-basics-1/complete", token, map[string]int{
		"score": 90,
	})
	if status != http.StatusOK {
		t.Fatalf("completion returned %d", status)
	}

	status, env := doRequest(t, ts, "GET", "/api/v1/jobs", token, nil)
	if status != http.StatusOK {
		t.Fatalf("list jobs returned %d", status)
	}
	var jobList struct {
		Jobs []struct {
			Job   *models.JobPosting `json:"job"`
			Score int                `json:"score"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(env.Data, &jobList); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(jobList.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobList.Jobs))
	}
	// Full required, no preferred: 70
	if jobList.Jobs[0].Score != 70 {
		t.Errorf("match score = %d, want 70", jobList.Jobs[0].Score)
	}

	status, env = doRequest(t, ts, "POST", "/api/v1/jobs/job-1/apply", token, map[string]string{
		"cover_letter": "I finished the Python track.",
	})
	if status != http.StatusCreated {
		t.Fatalf("apply returned %d", status)
	}
	var app models.JobApplication
	if err := json.Unmarshal(env.Data, &app); err != nil {
		t.Fatalf("decode application: %v", err)
	}
	if app.SkillMatchScore != 70 {
		t.Errorf("frozen match score = %d, want 70", app.SkillMatchScore)
	}

	status, _ = doRequest(t, ts, "POST", "/api/v1/jobs/job-1/apply", token, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate apply returned %d, want 409", status)
	}
}

func TestMeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := loginTestUser(t, ts)

	status, env := doRequest(t, ts, "GET", "/api/v1/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me returned %d", status)
	}

	var me struct {
		Name    string          `json:"name"`
		Profile *models.Profile `json:"profile"`
		Skills  []string        `json:"skills"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Name != "Ada" {
		t.Errorf("name = %s", me.Name)
	}
	if me.Profile == nil || me.Profile.SkillCoins != profile.StartingCoins {
		t.Errorf("unexpected profile: %+v", me.Profile)
	}
	if len(me.Skills) != 0 {
		t.Errorf("fresh user has skills: %v", me.Skills)
	}
}
