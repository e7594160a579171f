package config

import "os"

// BridgeURL returns the rosbridge URL from the TB3_BRIDGE_URL env var.
// Falls back to the provided default if not set.
func BridgeURL(defaultURL string) string {
	if url := os.Getenv("TB3_BRIDGE_URL"); url != "" {
		return url
	}
	return defaultURL
}

// CredentialsFile returns the Google credentials path from
// GOOGLE_APPLICATION_CREDENTIALS, or "" when not set.
func CredentialsFile() string {
	return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
}
