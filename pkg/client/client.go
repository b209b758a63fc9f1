// Package client is a Go SDK for the learn-engine API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skillcoin/learn-engine/internal/matching"
	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/progress"
)

// Client is a Go SDK for the learn-engine API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithToken sets the bearer token for authenticated calls
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new learn-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetToken replaces the bearer token, e.g. after Login
func (c *Client) SetToken(token string) {
	c.token = token
}

// LoginResult is the response of a successful login
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	req := map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}

	var user models.User
	if err := c.post(ctx, "/api/v1/auth/register", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates and stores the session token on the client
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req := map[string]string{
		"email":    email,
		"password": password,
	}

	var result LoginResult
	if err := c.post(ctx, "/api/v1/auth/login", req, &result); err != nil {
		return nil, err
	}

	c.token = result.Token
	return &result, nil
}

// Logout closes the current session
func (c *Client) Logout(ctx context.Context) error {
	if err := c.post(ctx, "/api/v1/auth/logout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// Me holds the learner overview returned by the /me endpoint
type Me struct {
	UserID  string             `json:"user_id"`
	Name    string             `json:"name"`
	Role    models.Role        `json:"role"`
	Profile *models.Profile    `json:"profile"`
	Usage   *models.UsageStats `json:"usage"`
	Skills  []string           `json:"skills"`
}

// GetMe retrieves the learner's profile, usage stats and skills
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.get(ctx, "/api/v1/me", &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListTracks retrieves all skill tracks
func (c *Client) ListTracks(ctx context.Context) ([]*models.SkillTrack, error) {
	var result struct {
		Tracks []*models.SkillTrack `json:"tracks"`
		Total  int                  `json:"total"`
	}
	if err := c.get(ctx, "/api/v1/tracks", &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// GetTrack retrieves a skill track by ID
func (c *Client) GetTrack(ctx context.Context, id string) (*models.SkillTrack, error) {
	var track models.SkillTrack
	if err := c.get(ctx, "/api/v1/tracks/"+url.PathEscape(id), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// CompleteLesson records a finished lesson and returns the outcome,
// including the certificate when the lesson completed its track
func (c *Client) CompleteLesson(ctx context.Context, lessonID string, score, timeSpentSeconds int) (*progress.Result, error) {
	req := map[string]int{
		"score":              score,
		"time_spent_seconds": timeSpentSeconds,
	}

	var result progress.Result
	path := fmt.Sprintf("/api/v1/lessons/%s/complete", url.PathEscape(lessonID))
	if err := c.post(ctx, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// TrackProgress is one track's progress as reported by the API
type TrackProgress struct {
	models.TrackProgress
	State        models.TrackState `json:"state"`
	TotalLessons int               `json:"total_lessons"`
}

// GetProgress retrieves per-track progress for the learner
func (c *Client) GetProgress(ctx context.Context) (map[string]TrackProgress, error) {
	var result struct {
		Progress map[string]TrackProgress `json:"progress"`
	}
	if err := c.get(ctx, "/api/v1/progress", &result); err != nil {
		return nil, err
	}
	return result.Progress, nil
}

// ListCertificates retrieves the learner's certificates
func (c *Client) ListCertificates(ctx context.Context) ([]*models.Certificate, error) {
	var result struct {
		Certificates []*models.Certificate `json:"certificates"`
		Total        int                   `json:"total"`
	}
	if err := c.get(ctx, "/api/v1/certificates", &result); err != nil {
		return nil, err
	}
	return result.Certificates, nil
}

// VerifyCertificate looks up a certificate by its public verification ID.
// No authentication is needed.
func (c *Client) VerifyCertificate(ctx context.Context, verificationID string) (*models.Certificate, error) {
	var cert models.Certificate
	path := "/api/v1/certificates/verify/" + url.PathEscape(verificationID)
	if err := c.get(ctx, path, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// MintNFT mints the NFT token for a certificate and returns the token ID
func (c *Client) MintNFT(ctx context.Context, certificateID string) (string, error) {
	var result struct {
		TokenID string `json:"token_id"`
	}
	path := fmt.Sprintf("/api/v1/certificates/%s/mint", url.PathEscape(certificateID))
	if err := c.post(ctx, path, nil, &result); err != nil {
		return "", err
	}
	return result.TokenID, nil
}

// JobListOptions contains filters for listing jobs
type JobListOptions struct {
	Location        string
	LocationTypes   []string
	SalaryMin       int
	SalaryMax       int
	ExperienceLevel []string
	Skills          []string
	Industries      []string
	CompanySizes    []string
}

// ListJobs retrieves job postings ranked by skill-match score
func (c *Client) ListJobs(ctx context.Context, opts JobListOptions) ([]*matching.RankedJob, error) {
	q := url.Values{}
	if opts.Location != "" {
		q.Set("location", opts.Location)
	}
	if len(opts.LocationTypes) > 0 {
		q.Set("location_type", strings.Join(opts.LocationTypes, ","))
	}
	if opts.SalaryMin > 0 {
		q.Set("salary_min", fmt.Sprintf("%d", opts.SalaryMin))
	}
	if opts.SalaryMax > 0 {
		q.Set("salary_max", fmt.Sprintf("%d", opts.SalaryMax))
	}
	if len(opts.ExperienceLevel) > 0 {
		q.Set("experience_level", strings.Join(opts.ExperienceLevel, ","))
	}
	if len(opts.Skills) > 0 {
		q.Set("skills", strings.Join(opts.Skills, ","))
	}
	if len(opts.Industries) > 0 {
		q.Set("industry", strings.Join(opts.Industries, ","))
	}
	if len(opts.CompanySizes) > 0 {
		q.Set("company_size", strings.Join(opts.CompanySizes, ","))
	}

	path := "/api/v1/jobs"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result struct {
		Jobs  []*matching.RankedJob `json:"jobs"`
		Total int                   `json:"total"`
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// JobDetail is one job posting with the learner's match data
type JobDetail struct {
	Job        *models.JobPosting    `json:"job"`
	MatchScore int                   `json:"match_score"`
	Breakdown  []matching.SkillCheck `json:"breakdown"`
	HasApplied bool                  `json:"has_applied"`
}

// GetJob retrieves a job posting with match score and breakdown
func (c *Client) GetJob(ctx context.Context, id string) (*JobDetail, error) {
	var detail JobDetail
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(id), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Apply submits an application to a job posting
func (c *Client) Apply(ctx context.Context, jobID, coverLetter string) (*models.JobApplication, error) {
	req := map[string]string{}
	if coverLetter != "" {
		req["cover_letter"] = coverLetter
	}

	var app models.JobApplication
	path := fmt.Sprintf("/api/v1/jobs/%s/apply", url.PathEscape(jobID))
	if err := c.post(ctx, path, req, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

// ListApplications retrieves the learner's job applications
func (c *Client) ListApplications(ctx context.Context) ([]*models.JobApplication, error) {
	var result struct {
		Applications []*models.JobApplication `json:"applications"`
		Total        int                      `json:"total"`
	}
	if err := c.get(ctx, "/api/v1/applications", &result); err != nil {
		return nil, err
	}
	return result.Applications, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// get performs a GET request and decodes the envelope's data field
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

// post performs a POST request with a JSON body and decodes the
// envelope's data field
func (c *Client) post(ctx context.Context, path string, req, out interface{}) error {
	var body io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, "POST", path, body)
	if err != nil {
		return err
	}
	return decodeEnvelope(resp, out)
}

// decodeEnvelope unwraps the API's {success, data, error} envelope
func decodeEnvelope(resp []byte, out interface{}) error {
	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success {
		if result.Error != nil {
			return fmt.Errorf("API error: %s - %s", result.Error.Code, result.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
