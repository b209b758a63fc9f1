// Package certificate issues and verifies track-completion certificates,
// including the simulated NFT minting step.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skillcoin/learn-engine/internal/models"
	"github.com/skillcoin/learn-engine/internal/store"
)

// Common errors
var (
	ErrNotFound      = errors.New("certificate not found")
	ErrAlreadyMinted = errors.New("certificate already minted")
)

// certificatesKey is the storage key of the flat certificate list. All
// certificates live in one record; issuance is a serialized
// read-modify-write of the whole list.
const certificatesKey = "certificates"

// Config holds issuer settings
type Config struct {
	// VerifyBaseURL is the public base of shareable verification links,
	// e.g. "https://skillcoin.app"
	VerifyBaseURL string

	// MintDelay is the total artificial wait simulating the blockchain
	// transaction. Zero disables the delay (tests).
	MintDelay time.Duration
}

// Issuer mints, stores, verifies and NFT-attaches certificates
type Issuer struct {
	store store.Store
	locks *store.KeyMutex
	ids   IDSource
	cfg   Config
}

// NewIssuer creates a certificate issuer
func NewIssuer(s store.Store, locks *store.KeyMutex, ids IDSource, cfg Config) *Issuer {
	if ids == nil {
		ids = RandomIDSource{}
	}
	if cfg.VerifyBaseURL == "" {
		cfg.VerifyBaseURL = "https://skillcoin.app"
	}

	return &Issuer{
		store: s,
		locks: locks,
		ids:   ids,
		cfg:   cfg,
	}
}

// IssueParams carries everything a new certificate attests
type IssueParams struct {
	UserID           string
	UserName         string
	SkillTrackID     string
	SkillTrackTitle  string
	LessonsCompleted int
	TotalLessons     int
	FinalScore       int
	TimeSpent        int
}

// Issue creates a certificate with generated identifiers and appends it to
// the persisted certificate list
func (i *Issuer) Issue(ctx context.Context, p IssueParams) (*models.Certificate, error) {
	certID := i.ids.CertificateID()

	cert := &models.Certificate{
		ID:               certID,
		UserID:           p.UserID,
		UserName:         p.UserName,
		SkillTrackID:     p.SkillTrackID,
		SkillTrackTitle:  p.SkillTrackTitle,
		CompletionDate:   time.Now().UTC(),
		VerificationID:   i.ids.VerificationID(),
		BlockchainHash:   i.ids.BlockchainHash(),
		ShareableLink:    fmt.Sprintf("%s/verify/%s", i.cfg.VerifyBaseURL, certID),
		LessonsCompleted: p.LessonsCompleted,
		TotalLessons:     p.TotalLessons,
		FinalScore:       p.FinalScore,
		TimeSpent:        p.TimeSpent,
	}

	unlock := i.locks.Lock(certificatesKey)
	defer unlock()

	certs, err := i.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	certs = append(certs, cert)

	if err := store.SetJSON(ctx, i.store, certificatesKey, certs); err != nil {
		return nil, fmt.Errorf("failed to save certificate: %w", err)
	}

	slog.Info("certificate issued",
		"certificate_id", cert.ID,
		"user_id", p.UserID,
		"track_id", p.SkillTrackID,
		"final_score", p.FinalScore,
	)

	return cert, nil
}

// Get returns a certificate by its id
func (i *Issuer) Get(ctx context.Context, certID string) (*models.Certificate, error) {
	certs, err := i.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range certs {
		if c.ID == certID {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// ListByUser returns all certificates issued to a learner
func (i *Issuer) ListByUser(ctx context.Context, userID string) ([]*models.Certificate, error) {
	certs, err := i.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Certificate, 0)
	for _, c := range certs {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

// Verify looks up a certificate by its verification ID. Exact match only:
// verification IDs are generated uppercase and the caller is expected to
// upper-case user input before calling.
func (i *Issuer) Verify(ctx context.Context, verificationID string) (*models.Certificate, error) {
	certs, err := i.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range certs {
		if c.VerificationID == verificationID {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// MintStage is emitted while a simulated mint is in flight
type MintStage string

const (
	StagePreparing  MintStage = "preparing"
	StageSubmitting MintStage = "submitting"
	StageConfirming MintStage = "confirming"
	StageMinted     MintStage = "minted"
)

var mintStages = []MintStage{StagePreparing, StageSubmitting, StageConfirming}

// Mint simulates minting an NFT for a certificate and attaches the token
// id. At most one token per certificate: a second call returns
// ErrAlreadyMinted and leaves the stored token untouched.
func (i *Issuer) Mint(ctx context.Context, certID string) (string, error) {
	return i.MintWithProgress(ctx, certID, nil)
}

// MintWithProgress is Mint with a stage callback for progress streaming.
// The callback runs on the calling goroutine for each in-flight stage;
// StageMinted is left to the caller, who also has the token id.
func (i *Issuer) MintWithProgress(ctx context.Context, certID string, progress func(MintStage)) (string, error) {
	// Fail fast before the artificial delay
	cert, err := i.Get(ctx, certID)
	if err != nil {
		return "", err
	}
	if cert.Minted() {
		return "", ErrAlreadyMinted
	}

	// Simulated blockchain transaction: no real chain is involved, the
	// wait just makes the flow observable
	stageDelay := i.cfg.MintDelay / time.Duration(len(mintStages))
	for _, stage := range mintStages {
		if progress != nil {
			progress(stage)
		}
		if stageDelay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(stageDelay):
			}
		}
	}

	tokenID := i.ids.NFTTokenID()

	unlock := i.locks.Lock(certificatesKey)
	defer unlock()

	certs, err := i.loadAll(ctx)
	if err != nil {
		return "", err
	}

	attached := false
	for _, c := range certs {
		if c.ID != certID {
			continue
		}
		// Re-check under the lock: a concurrent mint may have won
		if c.Minted() {
			return "", ErrAlreadyMinted
		}
		c.NFTTokenID = tokenID
		attached = true
		break
	}

	if !attached {
		return "", ErrNotFound
	}

	if err := store.SetJSON(ctx, i.store, certificatesKey, certs); err != nil {
		return "", fmt.Errorf("failed to save minted certificate: %w", err)
	}

	slog.Info("nft minted", "certificate_id", certID, "token_id", tokenID)

	return tokenID, nil
}

// loadAll reads the full certificate list; an absent key is an empty list
func (i *Issuer) loadAll(ctx context.Context) ([]*models.Certificate, error) {
	var certs []*models.Certificate
	if err := store.GetJSON(ctx, i.store, certificatesKey, &certs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load certificates: %w", err)
	}
	return certs, nil
}
