// Command identitykit is a developer utility that mints a custom token
// from a service-account key file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/identitykit/identitykit-go/app"
	"github.com/rs/zerolog"
)

func main() {
	keyFile := flag.String("key", "", "path to a service-account key file")
	uid := flag.String("uid", "", "user identifier to mint a custom token for")
	claimsJSON := flag.String("claims", "", "optional developer claims as a JSON object")
	quiet := flag.Bool("quiet", false, "suppress the banner and logging")
	flag.Parse()

	logger := zerolog.Nop()
	if !*quiet {
		figure.NewFigure("identitykit", "", true).Print()
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	if err := run(logger, *keyFile, *uid, *claimsJSON); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger zerolog.Logger, keyFile, uid, claimsJSON string) error {
	if keyFile == "" {
		return fmt.Errorf("-key is required")
	}
	if uid == "" {
		return fmt.Errorf("-uid is required")
	}

	var claims map[string]any
	if claimsJSON != "" {
		if err := json.Unmarshal([]byte(claimsJSON), &claims); err != nil {
			return fmt.Errorf("-claims must be a JSON object: %w", err)
		}
	}

	a, err := app.Initialize(app.Options{KeyFile: keyFile, Logger: logger})
	if err != nil {
		return err
	}
	defer a.Delete()

	authService, err := a.Auth()
	if err != nil {
		return err
	}

	token, err := authService.CreateCustomTokenWithClaims(uid, claims)
	if err != nil {
		return err
	}

	logger.Info().Str("uid", uid).Str("project", a.ProjectID()).Msg("minted custom token")
	fmt.Println(token)
	return nil
}
