// internal/adapters/out/identity/google_web_flow.go
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	identitytoolkit "google.golang.org/api/identitytoolkit/v3"

	"storefront/internal/application/session"
)

const (
	redirectSessionKey = "__AUTH_REDIRECT_SESSION__"
	pendingResultKey   = "__AUTH_PENDING_RESULT__"
)

// redirectSession is the state persisted across a redirect round-trip.
// ExpectedUID is set for re-authentication flows; completion with a different
// account is rejected.
type redirectSession struct {
	SessionID   string `json:"sessionId"`
	Nonce       string `json:"nonce"`
	ExpectedUID string `json:"expectedUid,omitempty"`
}

// GoogleWebFlow implements the federated (popup/redirect) capability against
// the Identity Toolkit provider flow.
//
// "Popup" needs an embedder that can open a window and hand back the provider
// callback; headless environments leave PopupOpener nil, which reports
// ErrPopupUnavailable and lets the session manager escalate to redirect.
type GoogleWebFlow struct {
	Toolkit *identitytoolkit.Service
	State   session.KV

	// ContinueURI is the callback URL registered with the provider.
	ContinueURI string

	// PopupOpener opens authURL in a popup-like surface and returns the full
	// callback request URI once the provider round-trip completes in-page.
	PopupOpener func(ctx context.Context, authURL string) (requestURI string, err error)
}

func NewGoogleWebFlow(toolkit *identitytoolkit.Service, state session.KV, continueURI string) *GoogleWebFlow {
	return &GoogleWebFlow{Toolkit: toolkit, State: state, ContinueURI: continueURI}
}

func (g *GoogleWebFlow) createAuthURI(ctx context.Context) (*identitytoolkit.CreateAuthUriResponse, error) {
	if g == nil || g.Toolkit == nil {
		return nil, errors.New("identity: toolkit service is nil")
	}

	resp, err := g.Toolkit.Relyingparty.CreateAuthUri(&identitytoolkit.IdentitytoolkitRelyingpartyCreateAuthUriRequest{
		ProviderId:  "google.com",
		ContinueUri: g.ContinueURI,
		// Same account chooser the web app requests.
		CustomParameter: map[string]string{"prompt": "select_account"},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("identity: create auth uri: %w", err)
	}
	return resp, nil
}

func (g *GoogleWebFlow) verifyAssertion(ctx context.Context, requestURI, sessionID string) (*session.Account, error) {
	resp, err := g.Toolkit.Relyingparty.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		RequestUri:        requestURI,
		SessionId:         sessionID,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("identity: verify assertion: %w", err)
	}

	return &session.Account{
		UID:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoUrl,
		ProviderID:  "google.com",
	}, nil
}

// SignInPopup completes the provider flow in-page when an opener is available.
func (g *GoogleWebFlow) SignInPopup(ctx context.Context) (*session.Account, error) {
	if g == nil || g.PopupOpener == nil {
		return nil, fmt.Errorf("%w: no popup surface in this environment", session.ErrPopupUnavailable)
	}

	auth, err := g.createAuthURI(ctx)
	if err != nil {
		return nil, err
	}

	requestURI, err := g.PopupOpener(ctx, auth.AuthUri)
	if err != nil {
		// Blocked or closed by the user; the caller escalates to redirect.
		return nil, fmt.Errorf("%w: %v", session.ErrPopupUnavailable, err)
	}

	return g.verifyAssertion(ctx, requestURI, auth.SessionId)
}

// SignInRedirect prepares the redirect flow and returns the URL to navigate to.
func (g *GoogleWebFlow) SignInRedirect(ctx context.Context, hint session.RedirectHint) (string, error) {
	return g.startRedirect(ctx, hint, "")
}

// ReauthenticatePopup verifies that the federated credential belongs to uid.
func (g *GoogleWebFlow) ReauthenticatePopup(ctx context.Context, uid string) error {
	acct, err := g.SignInPopup(ctx)
	if err != nil {
		return err
	}
	if acct.UID != strings.TrimSpace(uid) {
		return fmt.Errorf("%w: federated account does not match the signed-in user", session.ErrReauthRequired)
	}
	return nil
}

// ReauthenticateRedirect prepares a redirect round-trip whose completion must
// carry uid's account.
func (g *GoogleWebFlow) ReauthenticateRedirect(ctx context.Context, uid string, hint session.RedirectHint) (string, error) {
	return g.startRedirect(ctx, hint, strings.TrimSpace(uid))
}

func (g *GoogleWebFlow) startRedirect(ctx context.Context, hint session.RedirectHint, expectedUID string) (string, error) {
	if g == nil || g.State == nil {
		return "", errors.New("identity: state store is nil")
	}

	auth, err := g.createAuthURI(ctx)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(redirectSession{
		SessionID:   auth.SessionId,
		Nonce:       hint.Nonce,
		ExpectedUID: expectedUID,
	})
	if err != nil {
		return "", fmt.Errorf("identity: encode redirect session: %w", err)
	}
	if err := g.State.SetItem(redirectSessionKey, string(raw)); err != nil {
		return "", fmt.Errorf("identity: persist redirect session: %w", err)
	}

	return auth.AuthUri, nil
}

// CompleteRedirect is invoked by the callback endpoint when the provider sends
// the user back. The verified account is parked as the pending redirect result
// and picked up by the session manager's startup check.
func (g *GoogleWebFlow) CompleteRedirect(ctx context.Context, requestURI string) (*session.Account, error) {
	if g == nil || g.State == nil {
		return nil, errors.New("identity: state store is nil")
	}

	raw, ok := g.State.GetItem(redirectSessionKey)
	if !ok {
		return nil, errors.New("identity: no redirect in progress")
	}
	_ = g.State.RemoveItem(redirectSessionKey)

	var rs redirectSession
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, fmt.Errorf("identity: decode redirect session: %w", err)
	}

	acct, err := g.verifyAssertion(ctx, requestURI, rs.SessionID)
	if err != nil {
		return nil, err
	}

	if rs.ExpectedUID != "" && acct.UID != rs.ExpectedUID {
		return nil, fmt.Errorf("%w: redirect completed with a different account", session.ErrReauthRequired)
	}

	if encoded, err := json.Marshal(acct); err == nil {
		if err := g.State.SetItem(pendingResultKey, string(encoded)); err != nil {
			return nil, fmt.Errorf("identity: persist pending result: %w", err)
		}
	}
	return acct, nil
}

// PendingRedirectResult pops the parked account, if any. It is consumed exactly
// once; an abandoned round-trip simply leaves nothing to consume.
func (g *GoogleWebFlow) PendingRedirectResult(ctx context.Context) (*session.Account, error) {
	if g == nil || g.State == nil {
		return nil, nil
	}

	raw, ok := g.State.GetItem(pendingResultKey)
	if !ok {
		return nil, nil
	}
	_ = g.State.RemoveItem(pendingResultKey)

	var acct session.Account
	if err := json.Unmarshal([]byte(raw), &acct); err != nil {
		return nil, fmt.Errorf("identity: decode pending result: %w", err)
	}
	return &acct, nil
}
