// internal/application/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	udom "storefront/internal/domain/user"
)

const (
	// pendingDeleteKey marks an account deletion that had to wait for a
	// redirect-based re-authentication round-trip. Consumed exactly once on the
	// next identity establishment, then cleared whether deletion succeeded or not.
	pendingDeleteKey = "__PENDING_DELETE_ACCOUNT__"

	// redirectHintKey persists the "return to" hint before a redirect navigation.
	redirectHintKey = "__AUTH_REDIRECT_RETURN__"
)

const (
	providerPassword = "password"
	providerGoogle   = "google.com"
)

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SignUpInput is the profile captured by the sign-up form.
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// Manager owns the identity lifecycle: sign-up/sign-in/sign-out, the
// popup→redirect escalation policy, account deletion with deferred completion,
// and the identity change feed the cart facade observes.
//
// Constructed once at application start and passed by reference; Init/Close
// bound its lifecycle, there is no ambient global state.
type Manager struct {
	provider  IdentityProvider
	federated FederatedAuthenticator
	env       Environment
	kv        KV
	profiles  ProfileStore
	carts     CartWiper
	clock     Clock
	log       *zap.Logger

	mu            sync.Mutex
	current       Identity
	state         SignInState
	deleteHandled bool
	observers     map[int]func(Identity)
	nextObserver  int
	persistence   PersistenceMode
}

func NewManager(
	provider IdentityProvider,
	federated FederatedAuthenticator,
	env Environment,
	kv KV,
	profiles ProfileStore,
	carts CartWiper,
	log *zap.Logger,
) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		provider:  provider,
		federated: federated,
		env:       env,
		kv:        kv,
		profiles:  profiles,
		carts:     carts,
		clock:     systemClock{},
		log:       log,
		current:   Anonymous,
		state:     StateIdle,
		observers: map[int]func(Identity){},
	}
}

// WithClock replaces the clock (tests).
func (m *Manager) WithClock(clock Clock) *Manager {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// Init runs the one-time startup checks: a pending redirect result (sign-in or
// reauth that left the page) is consumed here and, when it carries a user, the
// profile document is ensured and the identity established.
func (m *Manager) Init(ctx context.Context) error {
	if m.provider == nil || m.kv == nil || m.profiles == nil {
		return errors.New("session: manager is not fully configured")
	}

	if m.federated == nil {
		return nil
	}

	acct, err := m.federated.PendingRedirectResult(ctx)
	if err != nil {
		// An abandoned round-trip must not wedge startup.
		m.log.Warn("pending redirect result failed", zap.Error(err))
		return nil
	}
	if acct == nil {
		return nil
	}

	m.setState(StateSettled)
	if err := m.profiles.Ensure(ctx, *acct, nil); err != nil {
		m.log.Warn("ensure profile after redirect failed", zap.Error(err))
	}
	m.establishIdentity(ctx, identityOf(*acct))
	return nil
}

// Close drops all observers. In-flight operations finishing later will find no
// one to notify.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = map[int]func(Identity){}
}

// Current returns the identity as of now.
func (m *Manager) Current() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State returns the federated sign-in sub-state (observability/tests).
func (m *Manager) State() SignInState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnIdentityChange registers fn for identity transitions and returns an
// unsubscribe func. fn is invoked only on actual transitions, not on re-delivery
// of the same identity.
func (m *Manager) OnIdentityChange(fn func(Identity)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextObserver
	m.nextObserver++
	m.observers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

// SignUp creates a credential, sets the display name, ensures the profile
// document and establishes the new identity.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) (Identity, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return Anonymous, fmt.Errorf("%w: email and password are required", ErrCredential)
	}

	acct, err := m.provider.CreateAccount(ctx, email, in.Password)
	if err != nil {
		return Anonymous, err
	}

	name := strings.TrimSpace(in.Name)
	if name != "" {
		if err := m.provider.UpdateDisplayName(ctx, acct.UID, name); err != nil {
			return Anonymous, err
		}
		acct.DisplayName = name
	}

	extra := map[string]string{}
	if v := strings.TrimSpace(in.Phone); v != "" {
		extra["phone"] = v
	}
	if v := strings.TrimSpace(in.Address); v != "" {
		extra["address"] = v
	}
	if err := m.profiles.Ensure(ctx, *acct, extra); err != nil {
		return Anonymous, err
	}

	id := identityOf(*acct)
	m.establishIdentity(ctx, id)
	return id, nil
}

// LogIn signs in with email/password. Invalid credentials come back as
// ErrCredential without revealing which field was wrong.
func (m *Manager) LogIn(ctx context.Context, email, password string) (Identity, error) {
	acct, err := m.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Anonymous, err
	}

	id := identityOf(*acct)
	m.establishIdentity(ctx, id)
	return id, nil
}

// LogOut returns the session to Anonymous.
func (m *Manager) LogOut(ctx context.Context) {
	cur := m.Current()
	if !cur.IsAnonymous() {
		if err := m.provider.SignOut(ctx, cur.UID); err != nil {
			m.log.Warn("provider sign-out failed", zap.Error(err))
		}
	}
	m.setState(StateIdle)
	m.establishIdentity(ctx, Anonymous)
}

// SignInWithGoogle runs the popup→redirect protocol.
//
// The returned redirectURL is empty when the attempt settled in-page; otherwise
// the embedder must navigate to it and the result arrives through Init on the
// next start (returnTo is persisted so the caller can be routed back).
func (m *Manager) SignInWithGoogle(ctx context.Context, returnTo string) (redirectURL string, err error) {
	if m.federated == nil {
		return "", errors.New("session: federated authenticator is not configured")
	}

	m.setBestPersistence()

	if m.redirectPreferred() {
		return m.escalateToRedirect(ctx, returnTo)
	}

	m.setState(StatePopupAttempt)
	acct, err := m.federated.SignInPopup(ctx)
	if err != nil {
		if errors.Is(err, ErrPopupUnavailable) {
			return m.escalateToRedirect(ctx, returnTo)
		}
		m.setState(StateIdle)
		return "", err
	}

	m.setState(StateSettled)
	if err := m.profiles.Ensure(ctx, *acct, nil); err != nil {
		return "", err
	}
	m.establishIdentity(ctx, identityOf(*acct))
	return "", nil
}

// SignInWithGoogleRedirect forces the redirect path (no popup attempt).
func (m *Manager) SignInWithGoogleRedirect(ctx context.Context, returnTo string) (string, error) {
	if m.federated == nil {
		return "", errors.New("session: federated authenticator is not configured")
	}
	m.setBestPersistence()
	return m.escalateToRedirect(ctx, returnTo)
}

// ConsumeRedirectHint pops the persisted "return to" hint, if any.
func (m *Manager) ConsumeRedirectHint() (RedirectHint, bool) {
	raw, ok := m.kv.GetItem(redirectHintKey)
	if !ok {
		return RedirectHint{}, false
	}
	_ = m.kv.RemoveItem(redirectHintKey)

	var hint RedirectHint
	if err := json.Unmarshal([]byte(raw), &hint); err != nil {
		return RedirectHint{}, false
	}
	return hint, true
}

// DeleteAccount re-authenticates, then deletes the cart collection, the profile
// document and the identity, and signs out.
//
// When re-authentication needs a redirect round-trip the deletion is deferred: a
// pending-deletion marker is persisted and consumed on the next identity
// establishment, exactly once. The returned redirectURL is non-empty in that case.
func (m *Manager) DeleteAccount(ctx context.Context, password string) (redirectURL string, err error) {
	cur := m.Current()
	if cur.IsAnonymous() {
		return "", ErrNotSignedIn
	}

	switch cur.ProviderID {
	case providerPassword:
		if strings.TrimSpace(password) == "" {
			return "", fmt.Errorf("%w: password required for re-authentication", ErrCredential)
		}
		if strings.TrimSpace(cur.Email) == "" {
			return "", fmt.Errorf("%w: account has no email to re-authenticate", ErrCredential)
		}
		if err := m.provider.ReauthenticateWithPassword(ctx, cur.Email, password); err != nil {
			return "", err
		}

	case providerGoogle:
		if m.federated == nil {
			return "", ErrUnsupportedProvider
		}
		if m.redirectPreferred() {
			return m.reauthenticateViaRedirect(ctx, cur.UID)
		}
		if err := m.federated.ReauthenticatePopup(ctx, cur.UID); err != nil {
			// Stale credential or popup failure: retried via the redirect path,
			// not surfaced as a final failure.
			m.log.Info("reauth popup failed, escalating to redirect", zap.Error(err))
			return m.reauthenticateViaRedirect(ctx, cur.UID)
		}

	default:
		return "", ErrUnsupportedProvider
	}

	return "", m.performFinalDeletion(ctx, cur)
}

// UpdateUser applies a partial profile update. The display name is pushed to the
// identity provider only when a non-empty name is supplied; the in-memory
// identity reflects the accepted name immediately, independent of the document
// write's completion.
func (m *Manager) UpdateUser(ctx context.Context, patch udom.Patch) error {
	cur := m.Current()
	if cur.IsAnonymous() {
		return ErrNotSignedIn
	}

	if patch.WantsDisplayNameUpdate() {
		if err := m.provider.UpdateDisplayName(ctx, cur.UID, strings.TrimSpace(*patch.Name)); err != nil {
			return err
		}
	}

	if patch.Name != nil {
		m.mu.Lock()
		changed := m.current.UID == cur.UID && m.current.Name != *patch.Name
		if changed {
			m.current.Name = *patch.Name
		}
		updated := m.current
		obs := m.snapshotObserversLocked()
		m.mu.Unlock()

		if changed {
			for _, fn := range obs {
				fn(updated)
			}
		}
	}

	return m.profiles.Update(ctx, cur.UID, patch.Fields(m.clock.Now().UTC()))
}

// ----------------------------
// internals
// ----------------------------

func identityOf(acct Account) Identity {
	return Identity{
		UID:        strings.TrimSpace(acct.UID),
		Email:      strings.TrimSpace(acct.Email),
		Name:       strings.TrimSpace(acct.DisplayName),
		PhotoURL:   strings.TrimSpace(acct.PhotoURL),
		ProviderID: strings.TrimSpace(acct.ProviderID),
	}
}

func (m *Manager) setState(s SignInState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// redirectPreferred mirrors the environments where popups are known not to work:
// restrictive mobile OS, installed-app (standalone) mode, embedded in-app browser.
func (m *Manager) redirectPreferred() bool {
	if m.env == nil {
		return false
	}
	return m.env.RestrictedOS() || m.env.StandaloneApp() || m.env.EmbeddedBrowser()
}

// setBestPersistence walks local → session → memory until one sticks.
func (m *Manager) setBestPersistence() {
	for _, mode := range []PersistenceMode{PersistenceLocal, PersistenceSession, PersistenceMemory} {
		if err := m.provider.SetPersistence(mode); err == nil {
			m.mu.Lock()
			m.persistence = mode
			m.mu.Unlock()
			return
		}
	}
	// Memory is expected to always succeed; keep it as the recorded mode anyway.
	m.mu.Lock()
	m.persistence = PersistenceMemory
	m.mu.Unlock()
}

// Persistence returns the mode chosen by the last fallback walk.
func (m *Manager) Persistence() PersistenceMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persistence
}

func (m *Manager) escalateToRedirect(ctx context.Context, returnTo string) (string, error) {
	m.setState(StateFallbackToRedirect)

	hint := RedirectHint{
		ReturnTo: strings.TrimSpace(returnTo),
		Nonce:    uuid.NewString(),
	}
	if raw, err := json.Marshal(hint); err == nil {
		if err := m.kv.SetItem(redirectHintKey, string(raw)); err != nil {
			m.log.Warn("persisting redirect hint failed", zap.Error(err))
		}
	}

	url, err := m.federated.SignInRedirect(ctx, hint)
	if err != nil {
		m.setState(StateIdle)
		return "", err
	}

	m.setState(StateRedirectResultPending)
	return url, nil
}

func (m *Manager) reauthenticateViaRedirect(ctx context.Context, uid string) (string, error) {
	if err := m.kv.SetItem(pendingDeleteKey, "1"); err != nil {
		return "", fmt.Errorf("session: persisting pending-delete marker failed: %w", err)
	}

	hint := RedirectHint{Nonce: uuid.NewString()}
	url, err := m.federated.ReauthenticateRedirect(ctx, uid, hint)
	if err != nil {
		// Nothing navigated, so the marker must not linger.
		_ = m.kv.RemoveItem(pendingDeleteKey)
		return "", err
	}

	m.setState(StateRedirectResultPending)
	return url, nil
}

// establishIdentity swaps the current identity, notifies observers on actual
// transitions, and consumes a pending-deletion marker when one is waiting.
func (m *Manager) establishIdentity(ctx context.Context, id Identity) {
	m.mu.Lock()
	prev := m.current
	m.current = id
	obs := m.snapshotObserversLocked()
	m.mu.Unlock()

	if prev != id {
		for _, fn := range obs {
			fn(id)
		}
	}

	if !id.IsAnonymous() {
		m.consumePendingDelete(ctx, id)
	}
}

func (m *Manager) snapshotObserversLocked() []func(Identity) {
	out := make([]func(Identity), 0, len(m.observers))
	for _, fn := range m.observers {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) consumePendingDelete(ctx context.Context, id Identity) {
	m.mu.Lock()
	if m.deleteHandled {
		m.mu.Unlock()
		return
	}
	if _, ok := m.kv.GetItem(pendingDeleteKey); !ok {
		m.mu.Unlock()
		return
	}
	m.deleteHandled = true
	m.mu.Unlock()

	err := m.performFinalDeletion(ctx, id)
	// Marker is cleared whether deletion succeeded or failed.
	_ = m.kv.RemoveItem(pendingDeleteKey)
	if err != nil {
		m.log.Error("deferred account deletion failed", zap.String("uid", id.UID), zap.Error(err))
	}
}

// performFinalDeletion removes the user's cart documents and profile, deletes
// the identity, signs out, and returns the session to Anonymous.
func (m *Manager) performFinalDeletion(ctx context.Context, id Identity) error {
	uid := strings.TrimSpace(id.UID)
	if uid == "" {
		return ErrNotSignedIn
	}

	if m.carts != nil {
		if err := m.carts.Clear(ctx, uid); err != nil {
			return fmt.Errorf("session: clearing cart for deletion: %w", err)
		}
	}
	if err := m.profiles.Delete(ctx, uid); err != nil {
		return fmt.Errorf("session: deleting profile: %w", err)
	}
	if err := m.provider.DeleteIdentity(ctx, uid); err != nil {
		return fmt.Errorf("session: deleting identity: %w", err)
	}
	if err := m.provider.SignOut(ctx, uid); err != nil {
		m.log.Warn("sign-out after deletion failed", zap.Error(err))
	}

	m.establishIdentity(ctx, Anonymous)
	return nil
}
