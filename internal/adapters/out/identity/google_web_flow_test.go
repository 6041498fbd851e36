// internal/adapters/out/identity/google_web_flow_test.go
package identity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/application/session"
)

type mapKV struct {
	data map[string]string
}

func newMapKV() *mapKV { return &mapKV{data: map[string]string{}} }

func (k *mapKV) GetItem(key string) (string, bool) {
	v, ok := k.data[key]
	return v, ok
}
func (k *mapKV) SetItem(key, value string) error { k.data[key] = value; return nil }
func (k *mapKV) RemoveItem(key string) error     { delete(k.data, key); return nil }

func TestSignInPopup_NoOpenerIsPopupUnavailable(t *testing.T) {
	flow := NewGoogleWebFlow(nil, newMapKV(), "https://app.example.com/auth/callback")

	_, err := flow.SignInPopup(context.Background())
	assert.ErrorIs(t, err, session.ErrPopupUnavailable)
}

func TestPendingRedirectResult_PoppedOnce(t *testing.T) {
	kv := newMapKV()
	flow := NewGoogleWebFlow(nil, kv, "")

	acct := session.Account{UID: "g-1", Email: "g@example.com", ProviderID: "google.com"}
	raw, err := json.Marshal(acct)
	require.NoError(t, err)
	require.NoError(t, kv.SetItem("__AUTH_PENDING_RESULT__", string(raw)))

	got, err := flow.PendingRedirectResult(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "g-1", got.UID)

	got, err = flow.PendingRedirectResult(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPendingRedirectResult_NoneIsNilNil(t *testing.T) {
	flow := NewGoogleWebFlow(nil, newMapKV(), "")
	got, err := flow.PendingRedirectResult(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompleteRedirect_NoSessionInProgress(t *testing.T) {
	flow := NewGoogleWebFlow(nil, newMapKV(), "")
	_, err := flow.CompleteRedirect(context.Background(), "/auth/callback?code=x")
	assert.Error(t, err)
}
