package appstore

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Apple marks its receipt signing certificates with these extensions.
var (
	oidLeafMarker         = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 11, 1}
	oidIntermediateMarker = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 6, 2, 1}
)

// SignedDataVerifier verifies payloads signed for a single environment.
type SignedDataVerifier struct {
	roots       *x509.CertPool
	environment Environment
	bundleID    string
	appAppleID  int64
	now         func() time.Time
	parser      *jwt.Parser
}

// NewSignedDataVerifier creates a verifier trusting the given DER-encoded
// root certificates. appAppleID is required for production.
func NewSignedDataVerifier(rootCerts [][]byte, environment Environment, bundleID string, appAppleID int64) (*SignedDataVerifier, error) {
	if environment != EnvironmentProduction && environment != EnvironmentSandbox {
		return nil, fmt.Errorf("unsupported environment %q", environment)
	}
	if environment == EnvironmentProduction && appAppleID == 0 {
		return nil, errors.New("app apple id is required for the production environment")
	}
	if bundleID == "" {
		return nil, errors.New("bundle id is required")
	}
	if len(rootCerts) == 0 {
		return nil, errors.New("at least one root certificate is required")
	}

	pool := x509.NewCertPool()
	for i, der := range rootCerts {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse root certificate %d: %w", i, err)
		}
		pool.AddCert(cert)
	}

	return &SignedDataVerifier{
		roots:       pool,
		environment: environment,
		bundleID:    bundleID,
		appAppleID:  appAppleID,
		now:         time.Now,
		parser:      jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}), jwt.WithoutClaimsValidation()),
	}, nil
}

// Environment returns the environment this verifier trusts.
func (v *SignedDataVerifier) Environment() Environment {
	return v.environment
}

// VerifyNotification verifies a signedPayload from an App Store Server Notification.
func (v *SignedDataVerifier) VerifyNotification(signed string) (*NotificationPayload, error) {
	var p NotificationPayload
	if err := v.decode(signed, &p); err != nil {
		return nil, err
	}

	app := p.app()
	if app == nil {
		return nil, v.fail(StatusInvalidAppIdentifier, errors.New("notification has no app data"))
	}
	if app.BundleID != v.bundleID {
		return nil, v.fail(StatusInvalidAppIdentifier, fmt.Errorf("bundle id %q", app.BundleID))
	}
	if v.environment == EnvironmentProduction && app.AppAppleID != v.appAppleID {
		return nil, v.fail(StatusInvalidAppIdentifier, fmt.Errorf("app apple id %d", app.AppAppleID))
	}
	if app.Environment != v.environment {
		return nil, v.fail(StatusInvalidEnvironment, fmt.Errorf("payload environment %q", app.Environment))
	}
	return &p, nil
}

// VerifyTransaction verifies a signed transaction (JWSTransaction).
func (v *SignedDataVerifier) VerifyTransaction(signed string) (*TransactionPayload, error) {
	var p TransactionPayload
	if err := v.decode(signed, &p); err != nil {
		return nil, err
	}

	if p.BundleID != v.bundleID {
		return nil, v.fail(StatusInvalidAppIdentifier, fmt.Errorf("bundle id %q", p.BundleID))
	}
	if p.Environment != v.environment {
		return nil, v.fail(StatusInvalidEnvironment, fmt.Errorf("payload environment %q", p.Environment))
	}
	return &p, nil
}

type jwsHeader struct {
	Alg string   `json:"alg"`
	X5C []string `json:"x5c"`
}

// decode checks the x5c chain and signature of signed, then unmarshals its
// claims into dst.
func (v *SignedDataVerifier) decode(signed string, dst any) error {
	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		return malformed("expected 3 segments, got %d", len(parts))
	}

	rawHeader, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return malformed("header: %v", err)
	}
	var header jwsHeader
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return malformed("header: %v", err)
	}
	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return malformed("claims: %v", err)
	}
	if !json.Valid(claims) {
		return malformed("claims are not JSON")
	}

	if len(header.X5C) != 3 {
		return v.fail(StatusInvalidChainLength, fmt.Errorf("x5c has %d certificates", len(header.X5C)))
	}

	leaf, err := v.verifyChain(header.X5C)
	if err != nil {
		return err
	}

	key, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return v.fail(StatusInvalidCertificate, errors.New("leaf key is not ECDSA"))
	}

	if _, err := v.parser.Parse(signed, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		return v.fail(StatusVerificationFailure, err)
	}

	if err := json.Unmarshal(claims, dst); err != nil {
		return malformed("claims: %v", err)
	}
	return nil
}

// verifyChain validates leaf -> intermediate -> trusted root and returns the leaf.
func (v *SignedDataVerifier) verifyChain(x5c []string) (*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, 2)
	for _, enc := range x5c[:2] {
		der, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, v.fail(StatusInvalidCertificate, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, v.fail(StatusInvalidCertificate, err)
		}
		certs = append(certs, cert)
	}
	leaf, intermediate := certs[0], certs[1]

	if !hasExtension(leaf, oidLeafMarker) {
		return nil, v.fail(StatusInvalidCertificate, errors.New("leaf certificate is missing the receipt signing marker"))
	}
	if !hasExtension(intermediate, oidIntermediateMarker) {
		return nil, v.fail(StatusInvalidCertificate, errors.New("intermediate certificate is missing the WWDR marker"))
	}

	intermediates := x509.NewCertPool()
	intermediates.AddCert(intermediate)

	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   v.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, v.fail(StatusVerificationFailure, err)
	}
	return leaf, nil
}

func (v *SignedDataVerifier) fail(status VerificationStatus, err error) error {
	return &VerificationError{Status: status, Environment: v.environment, Err: err}
}

func hasExtension(cert *x509.Certificate, oid asn1.ObjectIdentifier) bool {
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oid) {
			return true
		}
	}
	return false
}

// LoadRootCertificates reads DER or PEM certificates from paths.
func LoadRootCertificates(paths []string) ([][]byte, error) {
	var out [][]byte
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read root certificate %s: %w", path, err)
		}

		rest, found := data, false
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			found = true
			if block.Type == "CERTIFICATE" {
				out = append(out, block.Bytes)
			}
		}
		if !found {
			out = append(out, data)
		}
	}
	return out, nil
}
