// internal/adapters/in/http/router.go
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/adapters/in/http/handler"
	mw "storefront/internal/adapters/in/http/middleware"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	FirebaseAuth *mw.FirebaseAuthClient

	Cart         *handler.CartHandler
	Profile      *handler.ProfileHandler
	AuthCallback *handler.AuthCallbackHandler

	// AllowedOrigin is the storefront frontend origin for CORS.
	AllowedOrigin string
}

// NewRouter wires middleware and routes.
// Chain order matters: Recover outermost so a panic still gets CORS headers
// stripped correctly, CORS next so even auth failures answer preflight.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Recover)
	r.Use(mw.CORS(deps.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// provider callback; completes before any token exists, so unauthenticated
	if deps.AuthCallback != nil {
		r.Get("/auth/callback", deps.AuthCallback.Callback)
	}

	// token-protected surface
	auth := &mw.UserAuthMiddleware{FirebaseAuth: deps.FirebaseAuth}
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Handler)

		if deps.Cart != nil {
			pr.Get("/cart", deps.Cart.Get)
			pr.Delete("/cart", deps.Cart.Clear)
			pr.Post("/cart/items", deps.Cart.AddItem)
			pr.Post("/cart/items/{lineKey}/increment", deps.Cart.Increment)
			pr.Post("/cart/items/{lineKey}/decrement", deps.Cart.Decrement)
			pr.Delete("/cart/items/{lineKey}", deps.Cart.RemoveItem)
		}

		if deps.Profile != nil {
			pr.Get("/me/profile", deps.Profile.Get)
			pr.Patch("/me/profile", deps.Profile.Patch)
			pr.Delete("/me", deps.Profile.Delete)
		}
	})

	return r
}
