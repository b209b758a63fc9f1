package certificate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/skillcoin/learn-engine/internal/store"
)

// stubIDs hands out sequential deterministic identifiers
type stubIDs struct {
	n int
}

func (s *stubIDs) CertificateID() string {
	s.n++
	return fmt.Sprintf("cert_%d", s.n)
}

func (s *stubIDs) VerificationID() string {
	return fmt.Sprintf("TEST-000%d-TEST", s.n)
}

func (s *stubIDs) BlockchainHash() string {
	return "0x" + fmt.Sprintf("%064d", s.n)
}

func (s *stubIDs) NFTTokenID() string {
	return fmt.Sprintf("NFT_%d", s.n)
}

func newTestIssuer(t *testing.T) (*Issuer, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	issuer := NewIssuer(mem, store.NewKeyMutex(), &stubIDs{}, Config{
		VerifyBaseURL: "https://skillcoin.app",
		MintDelay:     0,
	})
	return issuer, mem
}

func issueOne(t *testing.T, issuer *Issuer) string {
	t.Helper()
	cert, err := issuer.Issue(context.Background(), IssueParams{
		UserID:           "u1",
		UserName:         "Ada",
		SkillTrackID:     "python-programming",
		SkillTrackTitle:  "Python Programming",
		LessonsCompleted: 3,
		TotalLessons:     3,
		FinalScore:       90,
		TimeSpent:        890,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return cert.ID
}

func TestIssue(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	cert, err := issuer.Issue(context.Background(), IssueParams{
		UserID:           "u1",
		UserName:         "Ada",
		SkillTrackID:     "python-programming",
		SkillTrackTitle:  "Python Programming",
		LessonsCompleted: 3,
		TotalLessons:     3,
		FinalScore:       90,
		TimeSpent:        890,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if cert.ID != "cert_1" {
		t.Errorf("unexpected id: %s", cert.ID)
	}
	if cert.ShareableLink != "https://skillcoin.app/verify/cert_1" {
		t.Errorf("unexpected shareable link: %s", cert.ShareableLink)
	}
	if cert.FinalScore != 90 || cert.TimeSpent != 890 {
		t.Errorf("params not carried over: %+v", cert)
	}
	if cert.Minted() {
		t.Error("fresh certificate must not be minted")
	}
	if cert.CompletionDate.IsZero() {
		t.Error("completion date not set")
	}
}

func TestGetAndListByUser(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	id := issueOne(t, issuer)
	issueOne(t, issuer)

	got, err := issuer.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("Get returned %s, want %s", got.ID, id)
	}

	if _, err := issuer.Get(ctx, "cert_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	certs, err := issuer.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(certs) != 2 {
		t.Errorf("expected 2 certificates, got %d", len(certs))
	}

	other, err := issuer.ListByUser(ctx, "someone-else")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no certificates for another user, got %d", len(other))
	}
}

func TestVerify(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	issueOne(t, issuer)

	cert, err := issuer.Verify(ctx, "TEST-0001-TEST")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if cert.UserName != "Ada" {
		t.Errorf("unexpected certificate: %+v", cert)
	}

	if _, err := issuer.Verify(ctx, "NOPE-NOPE-NOPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown verification id, got %v", err)
	}
}

func TestMint(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	id := issueOne(t, issuer)

	var stages []MintStage
	tokenID, err := issuer.MintWithProgress(ctx, id, func(stage MintStage) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if tokenID == "" {
		t.Fatal("empty token id")
	}

	wantStages := []MintStage{StagePreparing, StageSubmitting, StageConfirming}
	if len(stages) != len(wantStages) {
		t.Fatalf("expected %d stages, got %d: %v", len(wantStages), len(stages), stages)
	}
	for i, w := range wantStages {
		if stages[i] != w {
			t.Errorf("stage %d = %s, want %s", i, stages[i], w)
		}
	}

	// Token survives a reload
	cert, err := issuer.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cert.NFTTokenID != tokenID {
		t.Errorf("stored token %s, want %s", cert.NFTTokenID, tokenID)
	}
}

func TestMintIdempotent(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()

	id := issueOne(t, issuer)

	first, err := issuer.Mint(ctx, id)
	if err != nil {
		t.Fatalf("first Mint failed: %v", err)
	}

	if _, err := issuer.Mint(ctx, id); !errors.Is(err, ErrAlreadyMinted) {
		t.Fatalf("expected ErrAlreadyMinted, got %v", err)
	}

	// Stored token untouched by the failed second mint
	cert, err := issuer.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cert.NFTTokenID != first {
		t.Errorf("token changed from %s to %s", first, cert.NFTTokenID)
	}
}

func TestMintUnknownCertificate(t *testing.T) {
	issuer, _ := newTestIssuer(t)

	if _, err := issuer.Mint(context.Background(), "cert_missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIssuePropagatesStorageFailure(t *testing.T) {
	issuer, mem := newTestIssuer(t)

	ioErr := errors.New("redis down")
	mem.FailNext(ioErr)

	_, err := issuer.Issue(context.Background(), IssueParams{UserID: "u1"})
	if !errors.Is(err, ioErr) {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestRandomIDSourceFormats(t *testing.T) {
	ids := RandomIDSource{}

	certRe := regexp.MustCompile(`^cert_\d+_[a-z0-9]{9}$`)
	if got := ids.CertificateID(); !certRe.MatchString(got) {
		t.Errorf("certificate id %q does not match %s", got, certRe)
	}

	verifyRe := regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
	if got := ids.VerificationID(); !verifyRe.MatchString(got) {
		t.Errorf("verification id %q does not match %s", got, verifyRe)
	}

	hashRe := regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	if got := ids.BlockchainHash(); !hashRe.MatchString(got) {
		t.Errorf("blockchain hash %q does not match %s", got, hashRe)
	}

	tokenRe := regexp.MustCompile(`^NFT_\d+_[a-z0-9]{6}$`)
	if got := ids.NFTTokenID(); !tokenRe.MatchString(got) {
		t.Errorf("nft token id %q does not match %s", got, tokenRe)
	}
}

func TestRandomVerificationIDsDiffer(t *testing.T) {
	ids := RandomIDSource{}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		v := ids.VerificationID()
		if seen[v] {
			t.Fatalf("verification id %q repeated", v)
		}
		seen[v] = true
	}
}
