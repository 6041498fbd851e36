// internal/application/session/identity.go
package session

import "strings"

// Identity is the current account identity driving the storefront.
// A zero UID means Anonymous (cart lives in local storage); a non-empty UID means
// Authenticated (cart lives remotely under that uid).
type Identity struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PhotoURL   string `json:"photoURL"`
	ProviderID string `json:"providerId"`
}

// Anonymous is the identity before sign-in and after sign-out.
var Anonymous = Identity{}

func (i Identity) IsAnonymous() bool {
	return strings.TrimSpace(i.UID) == ""
}

// SignInState tracks the ephemeral sub-state of a federated sign-in attempt.
type SignInState int

const (
	StateIdle SignInState = iota
	StatePopupAttempt
	StateFallbackToRedirect
	StateRedirectResultPending
	StateSettled
)

func (s SignInState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePopupAttempt:
		return "popup-attempt"
	case StateFallbackToRedirect:
		return "fallback-to-redirect"
	case StateRedirectResultPending:
		return "redirect-result-pending"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}
