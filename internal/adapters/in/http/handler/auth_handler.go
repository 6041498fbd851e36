// internal/adapters/in/http/handler/auth_handler.go
package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"storefront/internal/application/session"
)

// redirectCompleter finishes a federated redirect round-trip.
type redirectCompleter interface {
	CompleteRedirect(ctx context.Context, requestURI string) (*session.Account, error)
}

// AuthCallbackHandler receives the provider callback after a redirect sign-in.
// Mount: GET /auth/callback
//
// The verified account is parked by the flow adapter and consumed by the
// session layer on its next startup check; the response here only tells the
// embedder where to go next.
type AuthCallbackHandler struct {
	flow redirectCompleter
}

func NewAuthCallbackHandler(flow redirectCompleter) *AuthCallbackHandler {
	return &AuthCallbackHandler{flow: flow}
}

func (h *AuthCallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.flow == nil {
		writeErr(w, http.StatusServiceUnavailable, "auth callback not configured")
		return
	}

	acct, err := h.flow.CompleteRedirect(r.Context(), r.URL.RequestURI())
	if err != nil {
		log.Printf("[auth] redirect completion failed: %v", err)
		writeErr(w, http.StatusUnauthorized, "sign-in could not be completed")
		return
	}

	if returnTo := strings.TrimSpace(r.URL.Query().Get("returnTo")); returnTo != "" && strings.HasPrefix(returnTo, "/") {
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uid":         acct.UID,
		"email":       acct.Email,
		"displayName": acct.DisplayName,
	})
}
