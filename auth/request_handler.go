package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/identitykit/identitykit-go/internal/config"
	ikerrors "github.com/identitykit/identitykit-go/internal/errors"
	"github.com/identitykit/identitykit-go/token"
	"github.com/rs/zerolog"
)

// serverErrors maps backend error codes onto the taxonomy. Unknown codes
// fall through to InternalError.
var serverErrors = map[string]error{
	"USER_NOT_FOUND":          ikerrors.ErrUserNotFound,
	"EMAIL_NOT_FOUND":         ikerrors.ErrUserNotFound,
	"EMAIL_EXISTS":            ikerrors.ErrEmailExists,
	"DUPLICATE_LOCAL_ID":      ikerrors.ErrUIDExists,
	"INSUFFICIENT_PERMISSION": ikerrors.ErrInsufficientPermission,
}

// apiRequestHandler implements RequestHandler over the platform user API
// using bearer tokens from the token manager.
type apiRequestHandler struct {
	baseURL    string
	projectID  string
	tokens     *token.Manager
	httpClient *http.Client
	logger     zerolog.Logger
}

// RequestHandlerOption modifies the HTTP request handler.
type RequestHandlerOption func(*apiRequestHandler)

// WithBaseURL overrides the user API base URL.
func WithBaseURL(baseURL string) RequestHandlerOption {
	return func(h *apiRequestHandler) {
		h.baseURL = baseURL
	}
}

// WithRequestHTTPClient sets the HTTP client.
func WithRequestHTTPClient(client *http.Client) RequestHandlerOption {
	return func(h *apiRequestHandler) {
		h.httpClient = client
	}
}

// WithRequestLogger sets the logger.
func WithRequestLogger(logger zerolog.Logger) RequestHandlerOption {
	return func(h *apiRequestHandler) {
		h.logger = logger
	}
}

// NewAPIRequestHandler creates the production RequestHandler for a project.
func NewAPIRequestHandler(tokens *token.Manager, projectID string, options ...RequestHandlerOption) RequestHandler {
	h := &apiRequestHandler{
		baseURL:    config.DefaultEndpoints().UserAPIBaseURL,
		projectID:  projectID,
		tokens:     tokens,
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *apiRequestHandler) GetAccountInfoByUID(ctx context.Context, uid string) (map[string]any, error) {
	return h.lookup(ctx, map[string]any{"localId": []string{uid}})
}

func (h *apiRequestHandler) GetAccountInfoByEmail(ctx context.Context, email string) (map[string]any, error) {
	return h.lookup(ctx, map[string]any{"email": []string{email}})
}

func (h *apiRequestHandler) CreateNewAccount(ctx context.Context, properties map[string]any) (string, error) {
	response, err := h.post(ctx, "/accounts", properties)
	if err != nil {
		return "", err
	}
	uid, _ := response["localId"].(string)
	if uid == "" {
		return "", &ikerrors.InternalError{Message: "create account response has no localId"}
	}
	return uid, nil
}

func (h *apiRequestHandler) UpdateExistingAccount(ctx context.Context, uid string, properties map[string]any) (string, error) {
	payload := make(map[string]any, len(properties)+1)
	for k, v := range properties {
		payload[k] = v
	}
	payload["localId"] = uid

	response, err := h.post(ctx, "/accounts:update", payload)
	if err != nil {
		return "", err
	}
	updatedUID, _ := response["localId"].(string)
	if updatedUID == "" {
		return "", &ikerrors.InternalError{Message: "update account response has no localId"}
	}
	return updatedUID, nil
}

func (h *apiRequestHandler) DeleteAccount(ctx context.Context, uid string) error {
	_, err := h.post(ctx, "/accounts:delete", map[string]any{"localId": uid})
	return err
}

func (h *apiRequestHandler) lookup(ctx context.Context, query map[string]any) (map[string]any, error) {
	response, err := h.post(ctx, "/accounts:lookup", query)
	if err != nil {
		return nil, err
	}

	accounts, _ := response["users"].([]any)
	if len(accounts) == 0 {
		return nil, ikerrors.ErrUserNotFound
	}
	account, ok := accounts[0].(map[string]any)
	if !ok {
		return nil, &ikerrors.InternalError{Message: "account lookup returned a malformed user entry"}
	}
	return account, nil
}

func (h *apiRequestHandler) post(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	cached, err := h.tokens.GetToken(ctx, false)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ikerrors.InternalError{Message: "failed to encode request payload", Cause: err}
	}

	url := h.baseURL + "/projects/" + h.projectID + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ikerrors.InternalError{Message: "failed to build user API request", Cause: err}
	}

	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cached.AccessToken)
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, &ikerrors.CredentialError{Op: "user API", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ikerrors.InternalError{Message: "failed to read user API response", Cause: err}
	}

	h.logger.Debug().
		Str("request_id", requestID).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("user API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mapServerError(responseBody, resp.StatusCode)
	}

	var response map[string]any
	if len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, &response); err != nil {
			return nil, &ikerrors.InternalError{Message: "failed to decode user API response", Cause: err}
		}
	}
	return response, nil
}

// mapServerError translates a backend error body into the taxonomy.
func mapServerError(body []byte, status int) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if mapped, ok := serverErrors[envelope.Error.Message]; ok {
			return mapped
		}
		if envelope.Error.Message != "" {
			return &ikerrors.InternalError{Message: "user API error: " + envelope.Error.Message}
		}
	}
	return &ikerrors.InternalError{Message: "user API returned status " + http.StatusText(status)}
}
