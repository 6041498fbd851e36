// internal/infra/config/config.go
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the process-wide environment settings.
type Config struct {
	Port string

	// GCP / Firebase
	ProjectID                string
	FirestoreCredentialsFile string

	// Identity Toolkit web API key: either set directly or resolved from
	// Secret Manager at boot when only the secret name is provided.
	WebAPIKey           string
	WebAPIKeySecretName string

	// OAuth callback URL registered with the federated provider.
	AuthContinueURI string

	// Local persistence slot (browser-localStorage equivalent).
	LocalStatePath string

	// Allowed CORS origin for the storefront frontend.
	AllowedOrigin string
}

// Load reads the environment (an optional .env first) and returns the config.
func Load() *Config {
	// Best-effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getenvDefault("PORT", "8080"),
		ProjectID:                getenvDefault("GCP_PROJECT_ID", ""),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		WebAPIKey:                os.Getenv("WEB_API_KEY"),
		WebAPIKeySecretName:      getenvDefault("WEB_API_KEY_SECRET", "storefront-web-api-key"),
		AuthContinueURI:          os.Getenv("AUTH_CONTINUE_URI"),
		LocalStatePath:           getenvDefault("LOCAL_STATE_PATH", "storefront-state.json"),
		AllowedOrigin:            getenvDefault("ALLOWED_ORIGIN", "*"),
	}

	return cfg
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
