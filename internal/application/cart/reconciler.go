// internal/application/cart/reconciler.go
package cart

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	cartdom "storefront/internal/domain/cart"
)

// Reconciler merges the anonymous local cart into the remote cart exactly once
// per anonymous→authenticated transition, then clears the local slot so the
// merge is never repeated.
//
// Quantities are summed per variant key. For display fields the local record
// wins, because the merge passes (remote, local) and the record written last
// takes the non-quantity fields.
type Reconciler struct {
	local  LocalStore
	remote RemoteStore
	log    *zap.Logger

	mu   sync.Mutex
	done bool
}

func NewReconciler(local LocalStore, remote RemoteStore, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{local: local, remote: remote, log: log}
}

// Reset re-arms the reconciler. Called whenever identity returns to Anonymous,
// so a later sign-in from a fresh anonymous session merges again.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.done = false
	r.mu.Unlock()
}

// Run performs the one-time merge for uid. Safe against the identity event
// firing more than once in quick succession: only the first call per arming
// does any work, later calls return nil immediately.
//
// A failed run stays consumed until Reset re-arms it; retrying against a
// half-merged remote state would double-count quantities.
func (r *Reconciler) Run(ctx context.Context, uid string) error {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return nil
	}
	r.done = true
	r.mu.Unlock()

	local := r.local.Read()
	if len(local) == 0 {
		return nil
	}

	remote, err := r.remote.List(ctx, uid)
	if err != nil {
		return fmt.Errorf("cart: reconcile list remote: %w", err)
	}

	merged := cartdom.MergeByVariantSumQty(remote, local)
	for _, line := range merged {
		line.LineKey = line.Key()
		if err := r.remote.Merge(ctx, uid, line); err != nil {
			return fmt.Errorf("cart: reconcile merge-write %s: %w", line.LineKey, err)
		}
	}

	if err := r.local.Write([]cartdom.Line{}); err != nil {
		return fmt.Errorf("cart: reconcile clear local: %w", err)
	}

	r.log.Info("anonymous cart merged into remote cart",
		zap.String("uid", uid),
		zap.Int("localLines", len(local)),
		zap.Int("mergedLines", len(merged)))
	return nil
}
