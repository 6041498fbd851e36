// internal/application/session/ports.go
package session

import (
	"context"
	"errors"
)

// Sentinel errors for the session layer.
// Adapters map provider-specific failures onto these so callers can branch
// without knowing the concrete backend.
var (
	// ErrCredential covers bad/duplicate/weak credentials at sign-up or login.
	// Surfaced as a generic message; never retried automatically.
	ErrCredential = errors.New("session: invalid credential")

	// ErrPopupUnavailable means the popup path is blocked/closed/unsupported.
	// Recovered automatically by escalating to redirect.
	ErrPopupUnavailable = errors.New("session: popup unavailable")

	// ErrReauthRequired means the session is too stale for a sensitive operation.
	ErrReauthRequired = errors.New("session: reauthentication required")

	// ErrNotSignedIn is returned by operations that require an authenticated identity.
	ErrNotSignedIn = errors.New("session: not signed in")

	// ErrUnsupportedProvider is returned when re-authentication is requested for a
	// provider this manager cannot re-authenticate.
	ErrUnsupportedProvider = errors.New("session: unsupported provider")
)

// Account is the identity provider's view of a signed-in user.
type Account struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	ProviderID  string
}

// PersistenceMode selects where the provider session is persisted.
type PersistenceMode int

const (
	PersistenceLocal PersistenceMode = iota
	PersistenceSession
	PersistenceMemory
)

// IdentityProvider is the password/account capability of the identity backend.
type IdentityProvider interface {
	// CreateAccount fails with ErrCredential on duplicate email / weak password.
	CreateAccount(ctx context.Context, email, password string) (*Account, error)

	// SignInWithPassword fails with ErrCredential on invalid credentials,
	// without distinguishing which field was wrong.
	SignInWithPassword(ctx context.Context, email, password string) (*Account, error)

	// ReauthenticateWithPassword re-verifies the password for an existing session.
	ReauthenticateWithPassword(ctx context.Context, email, password string) error

	UpdateDisplayName(ctx context.Context, uid, name string) error
	DeleteIdentity(ctx context.Context, uid string) error
	SignOut(ctx context.Context, uid string) error

	// SetPersistence fails when the requested mode's backing storage is
	// unavailable; callers fall through to the next weaker mode.
	SetPersistence(mode PersistenceMode) error
}

// RedirectHint is persisted before a redirect navigation so the page can route
// the user back after the provider round-trip.
type RedirectHint struct {
	ReturnTo string `json:"returnTo"`
	Nonce    string `json:"nonce"`
}

// FederatedAuthenticator is the popup/redirect capability of the identity backend.
//
// Redirect-style calls return the URL the embedder must navigate to; completion
// arrives later through PendingRedirectResult after the provider sends the user
// back.
type FederatedAuthenticator interface {
	// SignInPopup fails with ErrPopupUnavailable when no in-page popup can be
	// opened in the current environment.
	SignInPopup(ctx context.Context) (*Account, error)

	SignInRedirect(ctx context.Context, hint RedirectHint) (authURL string, err error)

	// ReauthenticatePopup verifies the federated credential belongs to uid.
	ReauthenticatePopup(ctx context.Context, uid string) error

	ReauthenticateRedirect(ctx context.Context, uid string, hint RedirectHint) (authURL string, err error)

	// PendingRedirectResult returns (nil, nil) when no redirect round-trip is
	// pending. It is checked once at startup.
	PendingRedirectResult(ctx context.Context) (*Account, error)
}

// Environment reports properties of the embedding runtime that decide the
// popup-vs-redirect policy.
type Environment interface {
	RestrictedOS() bool
	StandaloneApp() bool
	EmbeddedBrowser() bool
}

// KV is the durable per-installation key/value slot (browser localStorage
// equivalent). Synchronous, string-valued.
type KV interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// ProfileStore owns the users/{uid} profile document.
type ProfileStore interface {
	// Ensure merge-writes the profile for acct, creating createdAt only when the
	// document does not exist and always refreshing updatedAt. extra carries
	// optional phone/address captured at sign-up.
	Ensure(ctx context.Context, acct Account, extra map[string]string) error

	// Update merge-writes only the supplied fields.
	Update(ctx context.Context, uid string, fields map[string]any) error

	Delete(ctx context.Context, uid string) error
}

// CartWiper removes every cart document for a uid. Used by account deletion.
type CartWiper interface {
	Clear(ctx context.Context, uid string) error
}
