// Package auth is the public facade of the SDK: custom-token minting,
// identity-token verification, and user-record management over the
// remote user API.
package auth

import (
	"context"
	stderrors "errors"

	"github.com/identitykit/identitykit-go/credentials"
	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/identitykit/identitykit-go/token"
	tokenjwt "github.com/identitykit/identitykit-go/token/jwt"
	"github.com/identitykit/identitykit-go/token/keys"
	"github.com/identitykit/identitykit-go/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RequestHandler is the narrow collaborator interface over the remote
// user-management API. Implementations return the raw JSON object for a
// single account, and ikerrors.ErrUserNotFound when no account matches.
type RequestHandler interface {
	GetAccountInfoByUID(ctx context.Context, uid string) (map[string]any, error)
	GetAccountInfoByEmail(ctx context.Context, email string) (map[string]any, error)
	CreateNewAccount(ctx context.Context, properties map[string]any) (string, error)
	UpdateExistingAccount(ctx context.Context, uid string, properties map[string]any) (string, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// Service composes the credential, token manager, signed-token engine
// and request handler into the SDK's public operations.
type Service struct {
	credential credentials.Credential
	tokens     *token.Manager
	handler    RequestHandler
	validator  *Validator
	logger     zerolog.Logger

	projectID string
	keySource keys.Source

	creator     *tokenjwt.Creator
	creatorErr  error
	verifier    *tokenjwt.Verifier
	verifierErr error
}

// ServiceOption modifies a Service before the token engine is assembled.
type ServiceOption func(*Service)

// WithProjectID overrides the project ID inferred from the credential's
// certificate.
func WithProjectID(projectID string) ServiceOption {
	return func(s *Service) {
		s.projectID = projectID
	}
}

// WithKeySource overrides the public-key source used for verification.
func WithKeySource(source keys.Source) ServiceOption {
	return func(s *Service) {
		s.keySource = source
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the facade. The signed-token engine is assembled
// eagerly; operations that need a missing capability fail when called,
// not here, so a metadata-credential app can still manage users.
func NewService(credential credentials.Credential, tokens *token.Manager, handler RequestHandler, options ...ServiceOption) (*Service, error) {
	if credential == nil {
		return nil, errors.New("[NewService] credential is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if handler == nil {
		return nil, errors.New("[NewService] request handler is required")
	}

	s := &Service{
		credential: credential,
		tokens:     tokens,
		handler:    handler,
		validator:  NewValidator(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	cert := credentials.CertificateFrom(credential)
	if s.projectID == "" && cert != nil {
		s.projectID = cert.ProjectID
	}
	if s.keySource == nil {
		s.keySource = keys.NewHTTPSource(config.DefaultEndpoints().KeySetURL, keys.WithLogger(s.logger))
	}

	s.creator, s.creatorErr = tokenjwt.NewCreator(cert)
	s.verifier, s.verifierErr = tokenjwt.NewVerifier(s.projectID, s.keySource)
	return s, nil
}

// CreateCustomToken mints a signed custom token for uid.
func (s *Service) CreateCustomToken(uid string) (string, error) {
	return s.CreateCustomTokenWithClaims(uid, nil)
}

// CreateCustomTokenWithClaims mints a signed custom token carrying
// developer claims.
func (s *Service) CreateCustomTokenWithClaims(uid string, developerClaims map[string]any) (string, error) {
	if s.creatorErr != nil {
		return "", s.creatorErr
	}
	return s.creator.CreateCustomToken(uid, developerClaims)
}

// VerifyIDToken verifies an inbound identity token and returns its
// decoded claims. The returned IDToken's UID is the verified subject.
func (s *Service) VerifyIDToken(ctx context.Context, idToken string) (*tokenjwt.IDToken, error) {
	if s.verifierErr != nil {
		return nil, s.verifierErr
	}
	return s.verifier.VerifyIDToken(ctx, idToken)
}

// GetUser fetches a user record by uid.
func (s *Service) GetUser(ctx context.Context, uid string) (*users.UserRecord, error) {
	if err := s.validator.ValidateUID(uid); err != nil {
		return nil, err
	}
	raw, err := s.handler.GetAccountInfoByUID(ctx, uid)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.GetUser] account lookup")
	}
	return s.parseRecord(raw)
}

// GetUserByEmail fetches a user record by email address.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*users.UserRecord, error) {
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, err
	}
	raw, err := s.handler.GetAccountInfoByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.GetUserByEmail] account lookup")
	}
	return s.parseRecord(raw)
}

// CreateUser creates a user record and returns the canonical record as
// the backend stored it. A not-found on the immediate re-fetch means the
// backend acknowledged a record it cannot serve, which is reported as an
// internal inconsistency rather than a not-found.
func (s *Service) CreateUser(ctx context.Context, user *users.UserToCreate) (*users.UserRecord, error) {
	props := map[string]any{}
	if user != nil {
		props = user.Properties()
	}
	if err := s.validator.validateProperties(props); err != nil {
		return nil, err
	}

	uid, err := s.handler.CreateNewAccount(ctx, props)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.CreateUser] create account")
	}
	s.logger.Debug().Str("uid", uid).Msg("created user record")

	record, err := s.GetUser(ctx, uid)
	if stderrors.Is(err, ikerrors.ErrUserNotFound) {
		return nil, &ikerrors.InternalError{Message: "unable to create the user record", Cause: err}
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateUser applies changes to an existing record and returns the
// canonical record.
func (s *Service) UpdateUser(ctx context.Context, uid string, user *users.UserToUpdate) (*users.UserRecord, error) {
	if err := s.validator.ValidateUID(uid); err != nil {
		return nil, err
	}
	props := map[string]any{}
	if user != nil {
		props = user.Properties()
	}
	if err := s.validator.validateProperties(props); err != nil {
		return nil, err
	}

	updatedUID, err := s.handler.UpdateExistingAccount(ctx, uid, props)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.UpdateUser] update account")
	}

	record, err := s.GetUser(ctx, updatedUID)
	if stderrors.Is(err, ikerrors.ErrUserNotFound) {
		return nil, &ikerrors.InternalError{Message: "unable to update the user record", Cause: err}
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteUser removes a user record.
func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	if err := s.validator.ValidateUID(uid); err != nil {
		return err
	}
	if err := s.handler.DeleteAccount(ctx, uid); err != nil {
		return errors.Wrap(err, "[Service.DeleteUser] delete account")
	}
	s.logger.Debug().Str("uid", uid).Msg("deleted user record")
	return nil
}

func (s *Service) parseRecord(raw map[string]any) (*users.UserRecord, error) {
	record, err := users.ParseUserRecord(raw)
	if err != nil {
		return nil, &ikerrors.InternalError{Message: "malformed account info response", Cause: err}
	}
	return record, nil
}
