package credentials

import (
	"crypto/rsa"
	"encoding/json"
	"os"

	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/identitykit/identitykit-go/token/keys"
)

// Certificate is the parsed secret material of a service-account key
// file. It is parsed once at construction and never mutated.
type Certificate struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  *rsa.PrivateKey
}

// keyFile mirrors the service-account key file JSON. Snake-case is the
// canonical spelling; the camelCase aliases are accepted because several
// console export paths have emitted them over the years.
type keyFile struct {
	Type string `json:"type"`

	ProjectID    string `json:"project_id"`
	ProjectIDAlt string `json:"projectId"`

	PrivateKey    string `json:"private_key"`
	PrivateKeyAlt string `json:"privateKey"`

	ClientEmail    string `json:"client_email"`
	ClientEmailAlt string `json:"clientEmail"`
}

// NewCertificate parses a service-account key file from JSON bytes.
func NewCertificate(data []byte) (*Certificate, error) {
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, ikerrors.NewInvalidCredential("failed to parse certificate key file: %v", err)
	}

	privateKeyPEM, err := exactlyOne("private_key", kf.PrivateKey, "privateKey", kf.PrivateKeyAlt)
	if err != nil {
		return nil, err
	}
	clientEmail, err := exactlyOne("client_email", kf.ClientEmail, "clientEmail", kf.ClientEmailAlt)
	if err != nil {
		return nil, err
	}

	privateKey, err := keys.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, ikerrors.NewInvalidCredential("failed to parse private key: %v", err)
	}

	// project_id is not required here; the App may supply it separately.
	projectID := kf.ProjectID
	if projectID == "" {
		projectID = kf.ProjectIDAlt
	}

	return &Certificate{
		ProjectID:   projectID,
		ClientEmail: clientEmail,
		PrivateKey:  privateKey,
	}, nil
}

// NewCertificateFromFile reads and parses a service-account key file.
func NewCertificateFromFile(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ikerrors.NewInvalidCredential("failed to parse certificate key file %q: %v", path, err)
	}
	return NewCertificate(data)
}

// exactlyOne enforces that precisely one spelling of a key-file field is
// present and non-empty.
func exactlyOne(name, value, altName, altValue string) (string, error) {
	switch {
	case value != "" && altValue != "":
		return "", ikerrors.NewInvalidCredential("certificate key file must not contain both %q and %q", name, altName)
	case value != "":
		return value, nil
	case altValue != "":
		return altValue, nil
	default:
		return "", ikerrors.NewInvalidCredential("certificate key file must contain a non-empty %q field", name)
	}
}
