package speech

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/asadbey/turtlebot3-automation/internal/config"
)

// googleClientOptions builds the client options for a Google API
// service. When GOOGLE_APPLICATION_CREDENTIALS points at a service
// account file it is read and validated here, so a bad file fails at
// construction rather than on the first request; otherwise application
// default credentials apply.
func googleClientOptions(ctx context.Context, scope string) ([]option.ClientOption, error) {
	opts := []option.ClientOption{option.WithScopes(scope)}

	path := config.CredentialsFile()
	if path == "" {
		return opts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return append(opts, option.WithCredentials(creds)), nil
}
