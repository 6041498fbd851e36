// internal/adapters/out/identity/firebase_provider.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"

	"storefront/internal/application/session"
)

const persistenceProbeKey = "__PERSISTENCE_PROBE__"

// FirebaseProvider implements the password/account half of the identity
// capability: account management through the Firebase Admin SDK, password
// verification through the Identity Toolkit API (the Admin SDK cannot check
// passwords).
type FirebaseProvider struct {
	Auth    *fbauth.Client
	Toolkit *identitytoolkit.Service

	// State backs the durable persistence mode; nil means only session/memory
	// persistence is available.
	State session.KV
}

func NewFirebaseProvider(auth *fbauth.Client, toolkit *identitytoolkit.Service, state session.KV) *FirebaseProvider {
	return &FirebaseProvider{Auth: auth, Toolkit: toolkit, State: state}
}

// CreateAccount creates a password credential.
// Duplicate email and weak password both come back as ErrCredential.
func (p *FirebaseProvider) CreateAccount(ctx context.Context, email, password string) (*session.Account, error) {
	if p == nil || p.Auth == nil {
		return nil, errors.New("identity: auth client is nil")
	}

	params := (&fbauth.UserToCreate{}).Email(strings.TrimSpace(email)).Password(password)
	u, err := p.Auth.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return nil, fmt.Errorf("%w: email already in use", session.ErrCredential)
		}
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			return nil, fmt.Errorf("%w: weak password", session.ErrCredential)
		}
		return nil, fmt.Errorf("identity: create account: %w", err)
	}

	return &session.Account{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		ProviderID:  "password",
	}, nil
}

// SignInWithPassword verifies the credential via Identity Toolkit.
// Any rejected credential maps to ErrCredential without revealing which field
// was wrong.
func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*session.Account, error) {
	if p == nil || p.Toolkit == nil {
		return nil, errors.New("identity: toolkit service is nil")
	}

	resp, err := p.Toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", session.ErrCredential)
	}

	return &session.Account{
		UID:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		PhotoURL:    resp.PhotoUrl,
		ProviderID:  "password",
	}, nil
}

// ReauthenticateWithPassword re-verifies the password for a sensitive action.
func (p *FirebaseProvider) ReauthenticateWithPassword(ctx context.Context, email, password string) error {
	_, err := p.SignInWithPassword(ctx, email, password)
	return err
}

func (p *FirebaseProvider) UpdateDisplayName(ctx context.Context, uid, name string) error {
	if p == nil || p.Auth == nil {
		return errors.New("identity: auth client is nil")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return errors.New("identity: uid is empty")
	}

	_, err := p.Auth.UpdateUser(ctx, uid, (&fbauth.UserToUpdate{}).DisplayName(strings.TrimSpace(name)))
	if err != nil {
		return fmt.Errorf("identity: update display name: %w", err)
	}
	return nil
}

func (p *FirebaseProvider) DeleteIdentity(ctx context.Context, uid string) error {
	if p == nil || p.Auth == nil {
		return errors.New("identity: auth client is nil")
	}
	if err := p.Auth.DeleteUser(ctx, strings.TrimSpace(uid)); err != nil {
		return fmt.Errorf("identity: delete user: %w", err)
	}
	return nil
}

// SignOut revokes the user's refresh tokens, the server-side equivalent of
// ending the session.
func (p *FirebaseProvider) SignOut(ctx context.Context, uid string) error {
	if p == nil || p.Auth == nil {
		return errors.New("identity: auth client is nil")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil
	}
	return p.Auth.RevokeRefreshTokens(ctx, uid)
}

// SetPersistence fails for the durable mode when no writable state store is
// available (the iOS-private-mode case), so callers can fall through to the
// next weaker mode. Session and memory persistence always succeed.
func (p *FirebaseProvider) SetPersistence(mode session.PersistenceMode) error {
	if mode != session.PersistenceLocal {
		return nil
	}
	if p == nil || p.State == nil {
		return errors.New("identity: no durable state store")
	}
	if err := p.State.SetItem(persistenceProbeKey, "1"); err != nil {
		return fmt.Errorf("identity: durable storage unavailable: %w", err)
	}
	return p.State.RemoveItem(persistenceProbeKey)
}
