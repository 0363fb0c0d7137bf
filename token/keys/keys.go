// Package keys handles the RSA key material behind token signing and
// verification: PEM parsing helpers and a cached source for the
// platform's published signing certificates.
package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// JWT signing algorithm accepted by the platform.
const RS256 = "RS256"

// ParseRSAPrivateKeyFromPEM loads an RSA private key from PEM data.
// Service-account key files carry PKCS#8 blocks; PKCS#1 is accepted for
// keys generated by older tooling.
func ParseRSAPrivateKeyFromPEM(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
	}
	return rsaKey, nil
}

// ParseRSAPublicKeyFromCertPEM extracts the RSA public key from a
// PEM-encoded X.509 certificate, the format served by the key-set endpoint.
func ParseRSAPublicKeyFromCertPEM(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	pubKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate public key is not RSA")
	}
	return pubKey, nil
}
