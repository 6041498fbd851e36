// internal/domain/user/profile_test.go
package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewProfile_RejectsEmptyUID(t *testing.T) {
	_, err := NewProfile("  ", "a@example.com", "Alice", time.Now())
	assert.ErrorIs(t, err, ErrInvalidUID)
}

func TestNewProfile_Normalizes(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewProfile(" u1 ", " a@example.com ", " Alice ", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UID)
	assert.Equal(t, "a@example.com", p.Email)
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, now, p.CreatedAt)
}

func TestPatch_Fields_OnlySuppliedKeys(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	fields := Patch{Name: strPtr("Alice"), Phone: strPtr("090")}.Fields(now)
	assert.Equal(t, map[string]any{
		"updatedAt": now,
		"name":      "Alice",
		"phone":     "090",
	}, fields)

	fields = Patch{}.Fields(now)
	assert.Equal(t, map[string]any{"updatedAt": now}, fields)
}

func TestPatch_WantsDisplayNameUpdate(t *testing.T) {
	assert.True(t, Patch{Name: strPtr("Alice")}.WantsDisplayNameUpdate())
	assert.False(t, Patch{Name: strPtr("   ")}.WantsDisplayNameUpdate())
	assert.False(t, Patch{}.WantsDisplayNameUpdate())
}
