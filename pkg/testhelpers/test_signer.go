package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auction-live/pkg/auth"
)

// TestIssuer is the issuer used by NewTestSigner
const TestIssuer = "auction-live-test"

// NewTestSigner creates a signer backed by a fresh RSA key pair
func NewTestSigner(t *testing.T) *auth.Signer {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	signer, err := auth.NewSigner(privPEM, pubPEM, TestIssuer)
	require.NoError(t, err)
	return signer
}

// NewTestToken issues an access token for userID
func NewTestToken(t *testing.T, signer *auth.Signer, userID uuid.UUID, name string) string {
	t.Helper()
	token, _, err := signer.GenerateToken(userID, name, nil)
	require.NoError(t, err)
	return token
}
