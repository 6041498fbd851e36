// internal/application/cart/ports.go
package cart

import (
	"context"

	"storefront/internal/application/session"
	cartdom "storefront/internal/domain/cart"
)

// ErrStore is re-exported from the domain package; adapters wrap rejected
// backend operations with it.
var ErrStore = cartdom.ErrStore

// LocalStore is the anonymous cart's persistence slot.
//
// Read returns an empty list on missing or corrupt data; corruption is
// swallowed, not surfaced, so a broken slot never breaks the page.
type LocalStore interface {
	Read() []cartdom.Line
	Write(lines []cartdom.Line) error
}

// RemoteStore is the per-uid cart collection in the document database.
// All operations are asynchronous network calls and may fail with ErrStore.
type RemoteStore interface {
	// Add atomically increments quantity when a document for the line's variant
	// key exists, else creates the document with its lineKey populated.
	Add(ctx context.Context, uid string, line cartdom.Line) error

	// Remove deletes the document (idempotent).
	Remove(ctx context.Context, uid, lineKey string) error

	// Increment applies an atomic +1 to quantity.
	Increment(ctx context.Context, uid, lineKey string) error

	// Decrement applies an atomic -1, except when currentQty <= 1: then the
	// document is deleted instead. Stored quantity is never <= 0.
	Decrement(ctx context.Context, uid, lineKey string, currentQty int) error

	// Merge merge-writes the full line without clobbering absent fields.
	// Used by reconciliation.
	Merge(ctx context.Context, uid string, line cartdom.Line) error

	// List returns a one-time snapshot of the collection.
	List(ctx context.Context, uid string) ([]cartdom.Line, error)

	// Clear deletes every document; per-document deletes are independent and
	// best-effort, and a retried Clear is idempotent.
	Clear(ctx context.Context, uid string) error

	// Subscribe starts the live view: fn receives the full current line list on
	// every change, including changes made by this process. The returned func
	// cancels the subscription.
	Subscribe(ctx context.Context, uid string, fn func([]cartdom.Line)) (func(), error)
}

// IdentitySource is the slice of the session manager the facade observes.
type IdentitySource interface {
	Current() session.Identity
	OnIdentityChange(fn func(session.Identity)) func()
}

// VariantRef identifies a variant when no stored line key is available.
type VariantRef struct {
	ID    int64  `json:"id"`
	Size  string `json:"size"`
	Color string `json:"color"`
}

// resolveKey picks the stored key when present, else derives the variant key
// from the fallback. Empty when neither is usable.
func resolveKey(lineKey string, fallback *VariantRef) string {
	if lineKey != "" {
		return lineKey
	}
	if fallback != nil {
		return cartdom.VariantKey(fallback.ID, fallback.Size, fallback.Color)
	}
	return ""
}
