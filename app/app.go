// Package app wires a credential into a configured SDK instance and
// exposes the platform services through an explicit registry.
package app

import (
	"sync"

	"github.com/identitykit/identitykit-go/auth"
	"github.com/identitykit/identitykit-go/credentials"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/identitykit/identitykit-go/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Options configures an App. Exactly one of KeyFile, Certificate or
// Credential must be set; there is no shape-sniffing of a loose bag of
// fields.
type Options struct {
	// KeyFile is a path to a service-account key file.
	KeyFile string
	// Certificate is an already-parsed service-account certificate.
	Certificate *credentials.Certificate
	// Credential is any caller-supplied credential implementation.
	Credential credentials.Credential

	// ProjectID overrides the project ID carried by the certificate.
	// Required when the credential exposes no certificate and identity
	// tokens must be verified.
	ProjectID string

	// Logger is shared by every component the App constructs.
	Logger zerolog.Logger
}

// App owns one credential and token-manager pair for its lifetime.
type App struct {
	projectID  string
	credential credentials.Credential
	tokens     *token.Manager
	logger     zerolog.Logger

	mu       sync.Mutex
	services map[string]any
	deleted  bool
}

// Initialize validates the options, resolves the credential variant and
// creates the App.
func Initialize(opts Options) (*App, error) {
	sources := 0
	if opts.KeyFile != "" {
		sources++
	}
	if opts.Certificate != nil {
		sources++
	}
	if opts.Credential != nil {
		sources++
	}
	if sources != 1 {
		return nil, ikerrors.NewInvalidCredential("options must set exactly one of KeyFile, Certificate or Credential")
	}

	credential := opts.Credential
	projectID := opts.ProjectID
	switch {
	case opts.KeyFile != "":
		cert, err := credentials.NewCertificateFromFile(opts.KeyFile)
		if err != nil {
			return nil, err
		}
		credential, err = credentials.NewCertificateCredential(cert, credentials.WithLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
	case opts.Certificate != nil:
		var err error
		credential, err = credentials.NewCertificateCredential(opts.Certificate, credentials.WithLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
	}
	if projectID == "" {
		if cert := credentials.CertificateFrom(credential); cert != nil {
			projectID = cert.ProjectID
		}
	}

	return &App{
		projectID:  projectID,
		credential: credential,
		tokens:     token.New(credential, token.WithLogger(opts.Logger)),
		logger:     opts.Logger,
		services:   make(map[string]any),
	}, nil
}

// ProjectID returns the project this App acts on.
func (a *App) ProjectID() string {
	return a.projectID
}

// Credential returns the App's credential.
func (a *App) Credential() credentials.Credential {
	return a.credential
}

// Tokens returns the App's token manager.
func (a *App) Tokens() *token.Manager {
	return a.tokens
}

// Auth returns the App's auth service, constructing it on first use.
func (a *App) Auth() (*auth.Service, error) {
	instance, err := a.service(authServiceName)
	if err != nil {
		return nil, err
	}
	return instance.(*auth.Service), nil
}

// Delete tears the App down. Constructed services are released; an
// in-flight token refresh is left to settle on its own.
func (a *App) Delete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = true
	a.services = nil
}

// service resolves a named service through the registry, memoizing the
// constructed instance.
func (a *App) service(name string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deleted {
		return nil, errors.New("[App.service] app has been deleted")
	}
	if instance, ok := a.services[name]; ok {
		return instance, nil
	}

	constructor, ok := serviceRegistry[name]
	if !ok {
		return nil, errors.Errorf("[App.service] unknown service %q", name)
	}
	instance, err := constructor(a)
	if err != nil {
		return nil, err
	}
	a.services[name] = instance
	return instance, nil
}
