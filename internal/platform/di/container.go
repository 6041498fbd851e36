// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	httpin "storefront/internal/adapters/in/http"
	"storefront/internal/adapters/in/http/handler"
	fsrepo "storefront/internal/adapters/out/firestore"
	"storefront/internal/adapters/out/identity"
	"storefront/internal/adapters/out/localstore"
	"storefront/internal/infra/config"
	firebaseinfra "storefront/internal/infra/firebase"
	firestoreinfra "storefront/internal/infra/firestore"
	"storefront/internal/infra/secrets"
)

// Container is the bundle of dependencies main.go needs. The goal is to keep
// main.go as thin as possible.
type Container struct {
	// Router is the fully wired HTTP surface.
	Router http.Handler

	// GoogleFlow is exposed so embedders can start redirect flows directly.
	GoogleFlow *identity.GoogleWebFlow

	fs        *firestoreinfra.ClientWrapper
	cleanupFn []func()
}

// Close releases the container's resources. Safe to call once at shutdown.
func (c *Container) Close() {
	if c.fs != nil {
		_ = c.fs.Close()
	}
	for _, fn := range c.cleanupFn {
		fn()
	}
}

// Build initializes external clients, repositories, handlers and the router.
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	// ------------------------------------------------------------
	// 1. external resources (Firestore / Firebase Auth / Identity Toolkit / KV)
	// ------------------------------------------------------------

	fs, err := firestoreinfra.NewClient(ctx, cfg.ProjectID, cfg.FirestoreCredentialsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("init firestore: %w", err)
	}
	if pingErr := fs.Ping(ctx); pingErr != nil {
		log.Printf("[di] WARN: firestore ping failed: %v", pingErr)
	}

	authClient, err := firebaseinfra.NewAuthClient(ctx, cfg.ProjectID, cfg.FirestoreCredentialsFile)
	if err != nil {
		_ = fs.Close()
		return nil, nil, fmt.Errorf("init firebase auth: %w", err)
	}

	toolkit, err := newToolkitService(ctx, cfg)
	if err != nil {
		// Password/federated sign-in degrades; token-verified routes still work.
		log.Printf("[di] WARN: identity toolkit unavailable: %v", err)
		toolkit = nil
	}

	kv, err := localstore.Open(cfg.LocalStatePath)
	if err != nil {
		_ = fs.Close()
		return nil, nil, fmt.Errorf("open local state: %w", err)
	}

	// ------------------------------------------------------------
	// 2. outbound adapters
	// ------------------------------------------------------------

	cartRepo := fsrepo.NewCartLineRepositoryFS(fs.Client)
	profileRepo := fsrepo.NewProfileRepositoryFS(fs.Client)

	provider := identity.NewFirebaseProvider(authClient, toolkit, kv)
	googleFlow := identity.NewGoogleWebFlow(toolkit, kv, cfg.AuthContinueURI)

	// ------------------------------------------------------------
	// 3. inbound HTTP handlers + router
	// ------------------------------------------------------------

	cartHandler := handler.NewCartHandler(cartRepo)
	profileHandler := handler.NewProfileHandler(profileRepo, profileRepo, provider, cartRepo)
	callbackHandler := handler.NewAuthCallbackHandler(googleFlow)

	router := httpin.NewRouter(httpin.RouterDeps{
		FirebaseAuth:  authClient,
		Cart:          cartHandler,
		Profile:       profileHandler,
		AuthCallback:  callbackHandler,
		AllowedOrigin: cfg.AllowedOrigin,
	})

	container := &Container{
		Router:     router,
		GoogleFlow: googleFlow,
		fs:         fs,
	}

	cleanup := func() {
		container.Close()
	}
	return container, cleanup, nil
}

// newToolkitService builds the Identity Toolkit client from the configured web
// API key, loading the key from Secret Manager when it is not set directly.
func newToolkitService(ctx context.Context, cfg *config.Config) (*identitytoolkit.Service, error) {
	apiKey := strings.TrimSpace(cfg.WebAPIKey)
	if apiKey == "" && cfg.WebAPIKeySecretName != "" {
		loaded, err := secrets.LoadWebAPIKey(ctx, cfg.ProjectID, cfg.WebAPIKeySecretName, "latest")
		if err != nil {
			return nil, err
		}
		apiKey = loaded
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no web API key configured")
	}

	svc, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("identitytoolkit init: %w", err)
	}
	return svc, nil
}
