package certificate

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// IDSource produces the identifiers embedded in certificates. Injectable
// so tests can supply deterministic values instead of timestamp+random.
type IDSource interface {
	CertificateID() string
	VerificationID() string
	BlockchainHash() string
	NFTTokenID() string
}

const (
	verificationChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	hexChars          = "0123456789abcdef"
	suffixChars       = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// RandomIDSource generates identifiers from the current time plus a random
// suffix. Collision probability is negligible at this application's scale;
// the generator does not special-case collisions away.
type RandomIDSource struct{}

// CertificateID returns an id like "cert_1718000000000_x7k2p9qmd"
func (RandomIDSource) CertificateID() string {
	return fmt.Sprintf("cert_%d_%s", time.Now().UnixMilli(), randomString(9, suffixChars))
}

// VerificationID returns a human-shareable id like "AB3D-9F2K-QX7M":
// 12 uppercase alphanumerics in 4-character dash-separated groups.
func (RandomIDSource) VerificationID() string {
	raw := randomString(12, verificationChars)

	groups := make([]string, 0, 3)
	for i := 0; i < len(raw); i += 4 {
		groups = append(groups, raw[i:i+4])
	}
	return strings.Join(groups, "-")
}

// BlockchainHash returns a simulated chain commitment: "0x" + 64 hex chars
func (RandomIDSource) BlockchainHash() string {
	return "0x" + randomString(64, hexChars)
}

// NFTTokenID returns a token id like "NFT_1718000000000_k2p9qm"
func (RandomIDSource) NFTTokenID() string {
	return fmt.Sprintf("NFT_%d_%s", time.Now().UnixMilli(), randomString(6, suffixChars))
}

// randomString draws n characters from charset using crypto/rand
func randomString(n int, charset string) string {
	max := big.NewInt(int64(len(charset)))

	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is
			// broken; nothing sensible to do but panic
			panic(fmt.Sprintf("certificate: random source failed: %v", err))
		}
		b.WriteByte(charset[idx.Int64()])
	}
	return b.String()
}
