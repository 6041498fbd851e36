// internal/application/cart/reconciler_test.go
package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdom "storefront/internal/domain/cart"
)

func TestReconciler_MergesOnce(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	ctx := context.Background()

	require.NoError(t, local.Write([]cartdom.Line{line(5, "Tee", "M", "Red", 2, 1200)}))
	require.NoError(t, remote.Add(ctx, "u1", line(5, "Tee", "M", "Red", 1, 1200)))

	rec := NewReconciler(local, remote, nil)
	require.NoError(t, rec.Run(ctx, "u1"))

	merged, err := remote.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 3, merged[0].Quantity)
	assert.Equal(t, cartdom.VariantKey(5, "M", "Red"), merged[0].LineKey)
	assert.Empty(t, local.Read())

	// a second run in the same arming is a no-op, even with new local content
	require.NoError(t, local.Write([]cartdom.Line{line(5, "Tee", "M", "Red", 10, 1200)}))
	require.NoError(t, rec.Run(ctx, "u1"))

	merged, err = remote.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, merged[0].Quantity, "no double merge without a Reset")
}

func TestReconciler_ResetReArms(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	ctx := context.Background()

	rec := NewReconciler(local, remote, nil)
	require.NoError(t, rec.Run(ctx, "u1"))

	require.NoError(t, local.Write([]cartdom.Line{line(7, "Sock", "", "", 1, 300)}))
	rec.Reset()
	require.NoError(t, rec.Run(ctx, "u1"))

	merged, err := remote.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, 1, merged[0].Quantity)
}

func TestReconciler_EmptyLocalSkipsRemoteCalls(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	remote.listErr = errors.New("must not be called")

	rec := NewReconciler(local, remote, nil)
	assert.NoError(t, rec.Run(context.Background(), "u1"))
}

func TestReconciler_FailedRunStaysConsumed(t *testing.T) {
	local := &fakeLocal{}
	remote := newFakeRemote()
	ctx := context.Background()

	require.NoError(t, local.Write([]cartdom.Line{line(5, "Tee", "M", "Red", 2, 1200)}))
	remote.listErr = errors.New("backend down")

	rec := NewReconciler(local, remote, nil)
	require.Error(t, rec.Run(ctx, "u1"))

	// retrying against possibly half-merged state would double-count
	remote.listErr = nil
	require.NoError(t, rec.Run(ctx, "u1"))
	merged, err := remote.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, merged)
}
