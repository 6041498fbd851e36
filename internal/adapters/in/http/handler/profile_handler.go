// internal/adapters/in/http/handler/profile_handler.go
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	mw "storefront/internal/adapters/in/http/middleware"
	"storefront/internal/application/session"
	udom "storefront/internal/domain/user"
)

// profileReader is the read slice of the profile repository.
type profileReader interface {
	Get(ctx context.Context, uid string) (*udom.Profile, error)
}

// ProfileHandler serves the signed-in user's profile and account deletion.
// Mount (router side):
// - GET    /me/profile
// - PATCH  /me/profile
// - DELETE /me
type ProfileHandler struct {
	profiles session.ProfileStore
	reader   profileReader
	identity session.IdentityProvider
	carts    session.CartWiper
}

func NewProfileHandler(
	profiles session.ProfileStore,
	reader profileReader,
	identity session.IdentityProvider,
	carts session.CartWiper,
) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		reader:   reader,
		identity: identity,
		carts:    carts,
	}
}

// Get returns the profile document; a missing document answers 404 so the
// frontend can fall back to token claims.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p, err := h.reader.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, udom.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "profile not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Patch merge-writes only the supplied fields. A non-empty name is also pushed
// to the identity provider's display name, best-effort.
func (h *ProfileHandler) Patch(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch udom.Patch
	if err := readJSON(r, &patch); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	patch.Name = trimPtr(patch.Name)
	patch.Email = trimPtr(patch.Email)
	patch.Phone = trimPtr(patch.Phone)
	patch.Address = trimPtr(patch.Address)

	if err := h.profiles.Update(r.Context(), uid, patch.Fields(time.Now().UTC())); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	if patch.WantsDisplayNameUpdate() && h.identity != nil {
		if err := h.identity.UpdateDisplayName(r.Context(), uid, *patch.Name); err != nil {
			// Document is updated; the provider display name lags until next write.
			log.Printf("[profile] display name sync failed uid=%s: %v", maskUID(uid), err)
		}
	}

	p, err := h.reader.Get(r.Context(), uid)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Delete removes the account's stored data and the identity itself.
// Order matters: cart first, then profile, then the provider account. A recent
// ID token is already required by the auth middleware; clients should re-verify
// credentials before calling.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx := r.Context()

	if h.carts != nil {
		if err := h.carts.Clear(ctx, uid); err != nil {
			writeErr(w, http.StatusInternalServerError, "cart cleanup failed: "+err.Error())
			return
		}
	}
	if err := h.profiles.Delete(ctx, uid); err != nil {
		writeErr(w, http.StatusInternalServerError, "profile cleanup failed: "+err.Error())
		return
	}
	if err := h.identity.DeleteIdentity(ctx, uid); err != nil {
		writeErr(w, http.StatusInternalServerError, "identity deletion failed: "+err.Error())
		return
	}

	log.Printf("[profile] account deleted uid=%s", maskUID(uid))
	w.WriteHeader(http.StatusNoContent)
}
