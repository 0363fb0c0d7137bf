package app

import (
	"github.com/identitykit/identitykit-go/auth"
)

const authServiceName = "auth"

// serviceRegistry maps service names to their constructors. Services are
// registered here once instead of being attached to the App dynamically,
// so the full service surface is visible in one place.
var serviceRegistry = map[string]func(*App) (any, error){
	authServiceName: newAuthService,
}

func newAuthService(a *App) (any, error) {
	handler := auth.NewAPIRequestHandler(a.tokens, a.projectID, auth.WithRequestLogger(a.logger))
	return auth.NewService(
		a.credential,
		a.tokens,
		handler,
		auth.WithProjectID(a.projectID),
		auth.WithLogger(a.logger),
	)
}
