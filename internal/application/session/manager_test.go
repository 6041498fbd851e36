// internal/application/session/manager_test.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	udom "storefront/internal/domain/user"
)

func patchWithName(name string) udom.Patch {
	return udom.Patch{Name: &name}
}

// ----------------------------
// fakes
// ----------------------------

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string]string{}} }

func (k *fakeKV) GetItem(key string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[key]
	return v, ok
}

func (k *fakeKV) SetItem(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = value
	return nil
}

func (k *fakeKV) RemoveItem(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

type fakeProvider struct {
	accounts map[string]*Account // email -> account
	failModes map[PersistenceMode]bool

	reauthErr     error
	reauthCalls   int
	deletedUIDs   []string
	signedOutUIDs []string
	displayNames  map[string]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts:     map[string]*Account{},
		failModes:    map[PersistenceMode]bool{},
		displayNames: map[string]string{},
	}
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (*Account, error) {
	if _, exists := p.accounts[email]; exists {
		return nil, fmt.Errorf("%w: email already in use", ErrCredential)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: weak password", ErrCredential)
	}
	acct := &Account{UID: "uid-" + email, Email: email, ProviderID: "password"}
	p.accounts[email] = acct
	return acct, nil
}

func (p *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*Account, error) {
	acct, ok := p.accounts[email]
	if !ok || password == "wrong" {
		return nil, fmt.Errorf("%w: sign-in failed", ErrCredential)
	}
	return acct, nil
}

func (p *fakeProvider) ReauthenticateWithPassword(context.Context, string, string) error {
	p.reauthCalls++
	return p.reauthErr
}

func (p *fakeProvider) UpdateDisplayName(_ context.Context, uid, name string) error {
	p.displayNames[uid] = name
	return nil
}

func (p *fakeProvider) DeleteIdentity(_ context.Context, uid string) error {
	p.deletedUIDs = append(p.deletedUIDs, uid)
	return nil
}

func (p *fakeProvider) SignOut(_ context.Context, uid string) error {
	p.signedOutUIDs = append(p.signedOutUIDs, uid)
	return nil
}

func (p *fakeProvider) SetPersistence(mode PersistenceMode) error {
	if p.failModes[mode] {
		return errors.New("storage unavailable")
	}
	return nil
}

type fakeFederated struct {
	popupAccount *Account
	popupErr     error
	popupCalls   int

	redirectURL   string
	redirectErr   error
	redirectCalls int

	reauthPopupErr   error
	reauthPopupCalls int

	pending *Account
}

func (f *fakeFederated) SignInPopup(context.Context) (*Account, error) {
	f.popupCalls++
	if f.popupErr != nil {
		return nil, f.popupErr
	}
	return f.popupAccount, nil
}

func (f *fakeFederated) SignInRedirect(context.Context, RedirectHint) (string, error) {
	f.redirectCalls++
	return f.redirectURL, f.redirectErr
}

func (f *fakeFederated) ReauthenticatePopup(context.Context, string) error {
	f.reauthPopupCalls++
	return f.reauthPopupErr
}

func (f *fakeFederated) ReauthenticateRedirect(context.Context, string, RedirectHint) (string, error) {
	f.redirectCalls++
	return f.redirectURL, f.redirectErr
}

func (f *fakeFederated) PendingRedirectResult(context.Context) (*Account, error) {
	acct := f.pending
	f.pending = nil
	return acct, nil
}

type fakeProfiles struct {
	ensured map[string]map[string]string // uid -> extras
	updated map[string]map[string]any
	deleted []string

	deleteErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		ensured: map[string]map[string]string{},
		updated: map[string]map[string]any{},
	}
}

func (p *fakeProfiles) Ensure(_ context.Context, acct Account, extra map[string]string) error {
	p.ensured[acct.UID] = extra
	return nil
}

func (p *fakeProfiles) Update(_ context.Context, uid string, fields map[string]any) error {
	p.updated[uid] = fields
	return nil
}

func (p *fakeProfiles) Delete(_ context.Context, uid string) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.deleted = append(p.deleted, uid)
	return nil
}

type fakeWiper struct {
	cleared []string
}

func (w *fakeWiper) Clear(_ context.Context, uid string) error {
	w.cleared = append(w.cleared, uid)
	return nil
}

type managerFixture struct {
	provider  *fakeProvider
	federated *fakeFederated
	kv        *fakeKV
	profiles  *fakeProfiles
	carts     *fakeWiper
	env       EnvironmentInfo
}

func newFixture() *managerFixture {
	return &managerFixture{
		provider:  newFakeProvider(),
		federated: &fakeFederated{},
		kv:        newFakeKV(),
		profiles:  newFakeProfiles(),
		carts:     &fakeWiper{},
	}
}

func (f *managerFixture) manager() *Manager {
	return NewManager(f.provider, f.federated, f.env, f.kv, f.profiles, f.carts, nil)
}

// ----------------------------
// sign-up / log-in / log-out
// ----------------------------

func TestSignUp_EstablishesIdentityAndProfile(t *testing.T) {
	f := newFixture()
	m := f.manager()

	id, err := m.SignUp(context.Background(), SignUpInput{
		Email:    "a@example.com",
		Password: "secret1",
		Name:     "Alice",
		Phone:    "090-0000-0000",
	})
	require.NoError(t, err)

	assert.Equal(t, "uid-a@example.com", id.UID)
	assert.Equal(t, "Alice", id.Name)
	assert.Equal(t, id, m.Current())
	assert.Equal(t, "Alice", f.provider.displayNames[id.UID])
	assert.Equal(t, map[string]string{"phone": "090-0000-0000"}, f.profiles.ensured[id.UID])
}

func TestSignUp_RequiresEmailAndPassword(t *testing.T) {
	m := newFixture().manager()

	_, err := m.SignUp(context.Background(), SignUpInput{Email: "", Password: ""})
	assert.ErrorIs(t, err, ErrCredential)
	assert.True(t, m.Current().IsAnonymous())
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	f := newFixture()
	m := f.manager()

	_, err := m.SignUp(context.Background(), SignUpInput{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = m.SignUp(context.Background(), SignUpInput{Email: "a@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrCredential)
}

func TestLogIn_InvalidCredential(t *testing.T) {
	f := newFixture()
	m := f.manager()

	_, err := m.SignUp(context.Background(), SignUpInput{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	m.LogOut(context.Background())

	_, err = m.LogIn(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrCredential)
	assert.True(t, m.Current().IsAnonymous())
}

func TestLogOut_NotifiesObserversOnce(t *testing.T) {
	f := newFixture()
	m := f.manager()

	var seen []Identity
	unsub := m.OnIdentityChange(func(id Identity) { seen = append(seen, id) })
	defer unsub()

	_, err := m.LogIn(context.Background(), "a@example.com", "secret1")
	assert.Error(t, err) // no account yet

	_, err = m.SignUp(context.Background(), SignUpInput{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	m.LogOut(context.Background())
	m.LogOut(context.Background()) // already anonymous, no transition

	require.Len(t, seen, 2)
	assert.False(t, seen[0].IsAnonymous())
	assert.True(t, seen[1].IsAnonymous())
	assert.Equal(t, []string{"uid-a@example.com"}, f.provider.signedOutUIDs)
}

// ----------------------------
// federated sign-in
// ----------------------------

func TestSignInWithGoogle_PopupSettlesInPage(t *testing.T) {
	f := newFixture()
	f.federated.popupAccount = &Account{UID: "g-1", Email: "g@example.com", ProviderID: "google.com"}
	m := f.manager()

	url, err := m.SignInWithGoogle(context.Background(), "/checkout")
	require.NoError(t, err)

	assert.Empty(t, url)
	assert.Equal(t, StateSettled, m.State())
	assert.Equal(t, "g-1", m.Current().UID)
	assert.Contains(t, f.profiles.ensured, "g-1")
}

func TestSignInWithGoogle_PopupBlockedEscalatesToRedirect(t *testing.T) {
	f := newFixture()
	f.federated.popupErr = fmt.Errorf("%w: blocked", ErrPopupUnavailable)
	f.federated.redirectURL = "https://accounts.example.com/auth"
	m := f.manager()

	url, err := m.SignInWithGoogle(context.Background(), "/checkout")
	require.NoError(t, err)

	assert.Equal(t, "https://accounts.example.com/auth", url)
	assert.Equal(t, 1, f.federated.popupCalls)
	assert.Equal(t, StateRedirectResultPending, m.State())
	assert.True(t, m.Current().IsAnonymous())

	hint, ok := m.ConsumeRedirectHint()
	require.True(t, ok)
	assert.Equal(t, "/checkout", hint.ReturnTo)
	assert.NotEmpty(t, hint.Nonce)

	_, ok = m.ConsumeRedirectHint()
	assert.False(t, ok, "hint is consumed once")
}

func TestSignInWithGoogle_RestrictedEnvironmentSkipsPopup(t *testing.T) {
	f := newFixture()
	f.env = EnvironmentInfo{Restricted: true}
	f.federated.redirectURL = "https://accounts.example.com/auth"
	m := f.manager()

	url, err := m.SignInWithGoogle(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, url)
	assert.Zero(t, f.federated.popupCalls, "no popup attempt in a restricted environment")
}

func TestSignInWithGoogle_EmbeddedBrowserSkipsPopup(t *testing.T) {
	f := newFixture()
	f.env = EnvironmentInfo{Embedded: true}
	f.federated.redirectURL = "https://accounts.example.com/auth"
	m := f.manager()

	_, err := m.SignInWithGoogle(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, f.federated.popupCalls)
}

func TestSignInWithGoogle_NonPopupErrorIsSurfaced(t *testing.T) {
	f := newFixture()
	f.federated.popupErr = errors.New("network down")
	m := f.manager()

	_, err := m.SignInWithGoogle(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
	assert.Zero(t, f.federated.redirectCalls, "only popup-unavailable escalates")
}

func TestInit_ConsumesPendingRedirectResult(t *testing.T) {
	f := newFixture()
	f.federated.pending = &Account{UID: "g-2", Email: "g2@example.com", ProviderID: "google.com"}
	m := f.manager()

	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, "g-2", m.Current().UID)
	assert.Contains(t, f.profiles.ensured, "g-2")

	// the result is consumed; a second Init finds nothing
	m2 := f.manager()
	require.NoError(t, m2.Init(context.Background()))
	assert.True(t, m2.Current().IsAnonymous())
}

// ----------------------------
// persistence fallback
// ----------------------------

func TestPersistenceFallback(t *testing.T) {
	f := newFixture()
	f.federated.popupAccount = &Account{UID: "g-1", ProviderID: "google.com"}
	f.provider.failModes[PersistenceLocal] = true
	f.provider.failModes[PersistenceSession] = true
	m := f.manager()

	_, err := m.SignInWithGoogle(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, PersistenceMemory, m.Persistence())
}

func TestPersistencePrefersLocal(t *testing.T) {
	f := newFixture()
	f.federated.popupAccount = &Account{UID: "g-1", ProviderID: "google.com"}
	m := f.manager()

	_, err := m.SignInWithGoogle(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, PersistenceLocal, m.Persistence())
}

// ----------------------------
// account deletion
// ----------------------------

func signUpAndReturn(t *testing.T, f *managerFixture, m *Manager) Identity {
	t.Helper()
	id, err := m.SignUp(context.Background(), SignUpInput{Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	return id
}

func TestDeleteAccount_PasswordProvider(t *testing.T) {
	f := newFixture()
	m := f.manager()
	id := signUpAndReturn(t, f, m)

	url, err := m.DeleteAccount(context.Background(), "secret1")
	require.NoError(t, err)
	assert.Empty(t, url)

	assert.Equal(t, 1, f.provider.reauthCalls)
	assert.Equal(t, []string{id.UID}, f.carts.cleared)
	assert.Equal(t, []string{id.UID}, f.profiles.deleted)
	assert.Equal(t, []string{id.UID}, f.provider.deletedUIDs)
	assert.True(t, m.Current().IsAnonymous())
}

func TestDeleteAccount_PasswordRequired(t *testing.T) {
	f := newFixture()
	m := f.manager()
	signUpAndReturn(t, f, m)

	_, err := m.DeleteAccount(context.Background(), "")
	assert.ErrorIs(t, err, ErrCredential)
	assert.Empty(t, f.profiles.deleted)
}

func TestDeleteAccount_NotSignedIn(t *testing.T) {
	m := newFixture().manager()
	_, err := m.DeleteAccount(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func googleSignIn(t *testing.T, f *managerFixture, m *Manager, uid string) {
	t.Helper()
	f.federated.popupAccount = &Account{UID: uid, Email: "g@example.com", ProviderID: "google.com"}
	_, err := m.SignInWithGoogle(context.Background(), "")
	require.NoError(t, err)
}

func TestDeleteAccount_GooglePopupReauth(t *testing.T) {
	f := newFixture()
	m := f.manager()
	googleSignIn(t, f, m, "g-1")

	url, err := m.DeleteAccount(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Equal(t, 1, f.federated.reauthPopupCalls)
	assert.Equal(t, []string{"g-1"}, f.profiles.deleted)
	assert.True(t, m.Current().IsAnonymous())
}

func TestDeleteAccount_GoogleRedirectDefersDeletion(t *testing.T) {
	f := newFixture()
	m := f.manager()
	googleSignIn(t, f, m, "g-1")

	f.federated.reauthPopupErr = fmt.Errorf("%w: stale session", ErrReauthRequired)
	f.federated.redirectURL = "https://accounts.example.com/reauth"

	url, err := m.DeleteAccount(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	_, markerSet := f.kv.GetItem("__PENDING_DELETE_ACCOUNT__")
	assert.True(t, markerSet)
	assert.Empty(t, f.profiles.deleted, "deletion deferred until the round-trip completes")

	// round-trip completes: the pending result re-establishes g-1 and the
	// deferred deletion runs exactly once
	f.federated.pending = &Account{UID: "g-1", ProviderID: "google.com"}
	require.NoError(t, m.Init(context.Background()))

	assert.Equal(t, []string{"g-1"}, f.carts.cleared)
	assert.Equal(t, []string{"g-1"}, f.profiles.deleted)
	assert.Equal(t, []string{"g-1"}, f.provider.deletedUIDs)
	assert.True(t, m.Current().IsAnonymous())

	_, markerSet = f.kv.GetItem("__PENDING_DELETE_ACCOUNT__")
	assert.False(t, markerSet, "marker cleared after consumption")
}

func TestDeleteAccount_MarkerClearedOnFailedDeletion(t *testing.T) {
	f := newFixture()
	m := f.manager()
	googleSignIn(t, f, m, "g-1")

	f.federated.reauthPopupErr = fmt.Errorf("%w", ErrReauthRequired)
	f.federated.redirectURL = "https://accounts.example.com/reauth"
	_, err := m.DeleteAccount(context.Background(), "")
	require.NoError(t, err)

	f.profiles.deleteErr = errors.New("backend down")
	f.federated.pending = &Account{UID: "g-1", ProviderID: "google.com"}
	require.NoError(t, m.Init(context.Background()))

	_, markerSet := f.kv.GetItem("__PENDING_DELETE_ACCOUNT__")
	assert.False(t, markerSet, "marker never survives a consumption attempt")
	assert.Empty(t, f.provider.deletedUIDs)
}

func TestDeleteAccount_RedirectStartFailureRemovesMarker(t *testing.T) {
	f := newFixture()
	m := f.manager()
	googleSignIn(t, f, m, "g-1")

	f.federated.reauthPopupErr = fmt.Errorf("%w", ErrPopupUnavailable)
	f.federated.redirectErr = errors.New("cannot build auth uri")

	_, err := m.DeleteAccount(context.Background(), "")
	require.Error(t, err)

	_, markerSet := f.kv.GetItem("__PENDING_DELETE_ACCOUNT__")
	assert.False(t, markerSet, "nothing navigated, so no marker may linger")
}

// ----------------------------
// profile updates
// ----------------------------

func TestUpdateUser_OptimisticName(t *testing.T) {
	f := newFixture()
	m := f.manager()
	id := signUpAndReturn(t, f, m)

	var seen []Identity
	unsub := m.OnIdentityChange(func(i Identity) { seen = append(seen, i) })
	defer unsub()

	name := "New Name"
	require.NoError(t, m.UpdateUser(context.Background(), patchWithName(name)))

	assert.Equal(t, name, m.Current().Name)
	require.Len(t, seen, 1)
	assert.Equal(t, name, seen[0].Name)
	assert.Equal(t, name, f.provider.displayNames[id.UID])

	fields := f.profiles.updated[id.UID]
	require.NotNil(t, fields)
	assert.Equal(t, name, fields["name"])
	assert.Contains(t, fields, "updatedAt")
}

func TestUpdateUser_AnonymousRejected(t *testing.T) {
	m := newFixture().manager()
	err := m.UpdateUser(context.Background(), patchWithName("x"))
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
