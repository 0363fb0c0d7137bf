package credentials_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/identitykit/identitykit-go/credentials"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/stretchr/testify/require"
)

func testPrivateKeyPEM(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return string(pemData), key
}

func keyFileJSON(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(fields)
	require.NoError(t, err)
	return data
}

func TestNewCertificate(t *testing.T) {
	pemKey, _ := testPrivateKeyPEM(t)

	t.Run("snake_case fields", func(t *testing.T) {
		cert, err := credentials.NewCertificate(keyFileJSON(t, map[string]any{
			"type":         "service_account",
			"project_id":   "demo-project",
			"private_key":  pemKey,
			"client_email": "sdk@demo-project.identitykit.io",
		}))
		require.NoError(t, err)
		require.Equal(t, "demo-project", cert.ProjectID)
		require.Equal(t, "sdk@demo-project.identitykit.io", cert.ClientEmail)
		require.NotNil(t, cert.PrivateKey)
	})

	t.Run("camelCase aliases", func(t *testing.T) {
		cert, err := credentials.NewCertificate(keyFileJSON(t, map[string]any{
			"projectId":   "demo-project",
			"privateKey":  pemKey,
			"clientEmail": "sdk@demo-project.identitykit.io",
		}))
		require.NoError(t, err)
		require.Equal(t, "demo-project", cert.ProjectID)
		require.Equal(t, "sdk@demo-project.identitykit.io", cert.ClientEmail)
	})

	t.Run("missing private key", func(t *testing.T) {
		_, err := credentials.NewCertificate(keyFileJSON(t, map[string]any{
			"client_email": "sdk@demo-project.identitykit.io",
		}))
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "private_key")
	})

	t.Run("missing client email", func(t *testing.T) {
		_, err := credentials.NewCertificate(keyFileJSON(t, map[string]any{
			"private_key": pemKey,
		}))
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "client_email")
	})

	t.Run("both spellings present", func(t *testing.T) {
		_, err := credentials.NewCertificate(keyFileJSON(t, map[string]any{
			"private_key":  pemKey,
			"privateKey":   pemKey,
			"client_email": "sdk@demo-project.identitykit.io",
		}))
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "both")
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := credentials.NewCertificate([]byte("{not json"))
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "failed to parse")
	})

	t.Run("unparseable private key", func(t *testing.T) {
		_, err := credentials.NewCertificate(keyFileJSON(t, map[string]any{
			"private_key":  "not a pem block",
			"client_email": "sdk@demo-project.identitykit.io",
		}))
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "failed to parse private key")
	})
}

func TestNewCertificateFromFile(t *testing.T) {
	pemKey, _ := testPrivateKeyPEM(t)

	t.Run("reads a key file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, keyFileJSON(t, map[string]any{
			"project_id":   "demo-project",
			"private_key":  pemKey,
			"client_email": "sdk@demo-project.identitykit.io",
		}), 0o600))

		cert, err := credentials.NewCertificateFromFile(path)
		require.NoError(t, err)
		require.Equal(t, "demo-project", cert.ProjectID)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := credentials.NewCertificateFromFile(filepath.Join(t.TempDir(), "absent.json"))
		var invalid *ikerrors.InvalidCredentialError
		require.ErrorAs(t, err, &invalid)
		require.Contains(t, invalid.Message, "failed to parse")
	})
}
