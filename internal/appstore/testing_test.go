package appstore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testBundleID   = "com.example.tenantly"
	testAppAppleID = int64(1234567890)
)

// testPKI is a throwaway root -> intermediate -> leaf chain shaped like
// Apple's receipt signing chain.
type testPKI struct {
	rootDER []byte
	x5c     []string
	leafKey *ecdsa.PrivateKey
}

func newTestPKI(t *testing.T) *testPKI {
	return newTestPKIWithMarkers(t, true)
}

func newTestPKIWithMarkers(t *testing.T, markers bool) *testPKI {
	t.Helper()
	now := time.Now()

	rootKey := mustKey(t)
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Root CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	rootDER := mustCreate(t, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	root, err := x509.ParseCertificate(rootDER)
	require.NoError(t, err)

	interKey := mustKey(t)
	interTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "Test WWDR Intermediate"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	leafKey := mustKey(t)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "Test Receipt Signing"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if markers {
		null := []byte{0x05, 0x00}
		interTmpl.ExtraExtensions = []pkix.Extension{{Id: oidIntermediateMarker, Value: null}}
		leafTmpl.ExtraExtensions = []pkix.Extension{{Id: oidLeafMarker, Value: null}}
	}

	interDER := mustCreate(t, interTmpl, root, &interKey.PublicKey, rootKey)
	inter, err := x509.ParseCertificate(interDER)
	require.NoError(t, err)
	leafDER := mustCreate(t, leafTmpl, inter, &leafKey.PublicKey, interKey)

	return &testPKI{
		rootDER: rootDER,
		x5c: []string{
			base64.StdEncoding.EncodeToString(leafDER),
			base64.StdEncoding.EncodeToString(interDER),
			base64.StdEncoding.EncodeToString(rootDER),
		},
		leafKey: leafKey,
	}
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func mustCreate(t *testing.T, tmpl, parent *x509.Certificate, pub *ecdsa.PublicKey, signer *ecdsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, signer)
	require.NoError(t, err)
	return der
}

// sign produces a compact JWS over claims with the given x5c header.
func (p *testPKI) sign(t *testing.T, claims any) string {
	return p.signWithChain(t, claims, p.x5c)
}

func (p *testPKI) signWithChain(t *testing.T, claims any, x5c []string) string {
	t.Helper()
	header, err := json.Marshal(map[string]any{"alg": "ES256", "x5c": x5c})
	require.NoError(t, err)
	body, err := json.Marshal(claims)
	require.NoError(t, err)

	input := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(body)
	sig, err := jwt.SigningMethodES256.Sign(input, p.leafKey)
	require.NoError(t, err)
	return input + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func newVerifier(t *testing.T, pki *testPKI, env Environment) *SignedDataVerifier {
	t.Helper()
	v, err := NewSignedDataVerifier([][]byte{pki.rootDER}, env, testBundleID, testAppAppleID)
	require.NoError(t, err)
	return v
}

func transactionClaims(env Environment) TransactionPayload {
	return TransactionPayload{
		TransactionID:         "2000000123456789",
		OriginalTransactionID: "2000000123456789",
		BundleID:              testBundleID,
		ProductID:             "com.example.tenantly.monthly",
		ExpiresDate:           time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		AppAccountToken:       "6f1d8c5e-9a1b-4c2d-8e3f-0a1b2c3d4e5f",
		Type:                  "Auto-Renewable Subscription",
		Environment:           env,
	}
}

func notificationClaims(env Environment, notificationType, signedTx string) NotificationPayload {
	return NotificationPayload{
		NotificationType: notificationType,
		NotificationUUID: "c1e5a4b2-0000-4000-8000-000000000001",
		Version:          "2.0",
		Data: &NotificationData{
			Environment:           env,
			AppAppleID:            testAppAppleID,
			BundleID:              testBundleID,
			SignedTransactionInfo: signedTx,
		},
	}
}

func tamper(signed string) string {
	parts := strings.Split(signed, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	return parts[0] + "." + parts[1] + "." + string(sig)
}
