// internal/platform/di/client_core.go
package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	fsrepo "storefront/internal/adapters/out/firestore"
	"storefront/internal/adapters/out/identity"
	"storefront/internal/adapters/out/localstore"
	cartapp "storefront/internal/application/cart"
	"storefront/internal/application/session"
	"storefront/internal/infra/config"
	firebaseinfra "storefront/internal/infra/firebase"
	firestoreinfra "storefront/internal/infra/firestore"
)

// ClientCore is the embeddable storefront core: session manager plus cart
// facade over shared adapters. Used by non-server embedders (kiosk shells,
// integration harnesses); the HTTP container above serves the web frontend.
type ClientCore struct {
	Session *session.Manager
	Cart    *cartapp.Service

	fs *firestoreinfra.ClientWrapper
}

// Close releases the core's resources after Cart is closed.
func (c *ClientCore) Close() {
	if c.Cart != nil {
		c.Cart.Close()
	}
	if c.fs != nil {
		_ = c.fs.Close()
	}
}

// BuildClientCore wires the session manager and cart facade.
// env describes the embedding runtime and decides popup-vs-redirect policy.
func BuildClientCore(ctx context.Context, cfg *config.Config, env session.Environment, logger *zap.Logger) (*ClientCore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fs, err := firestoreinfra.NewClient(ctx, cfg.ProjectID, cfg.FirestoreCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}

	authClient, err := firebaseinfra.NewAuthClient(ctx, cfg.ProjectID, cfg.FirestoreCredentialsFile)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}

	toolkit, err := newToolkitService(ctx, cfg)
	if err != nil {
		_ = fs.Close()
		return nil, err
	}

	kv, err := localstore.Open(cfg.LocalStatePath)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("open local state: %w", err)
	}

	cartRepo := fsrepo.NewCartLineRepositoryFS(fs.Client)
	profileRepo := fsrepo.NewProfileRepositoryFS(fs.Client)
	provider := identity.NewFirebaseProvider(authClient, toolkit, kv)
	googleFlow := identity.NewGoogleWebFlow(toolkit, kv, cfg.AuthContinueURI)

	mgr := session.NewManager(provider, googleFlow, env, kv, profileRepo, cartRepo, logger)
	if err := mgr.Init(ctx); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("session init: %w", err)
	}

	svc := cartapp.NewService(localstore.NewCartStore(kv), cartRepo, mgr, logger)
	if err := svc.Init(ctx); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("cart init: %w", err)
	}

	return &ClientCore{Session: mgr, Cart: svc, fs: fs}, nil
}
