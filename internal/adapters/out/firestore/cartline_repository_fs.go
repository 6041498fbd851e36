// internal/adapters/out/firestore/cartline_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartdom "storefront/internal/domain/cart"
)

// CartLineRepositoryFS implements the remote cart store over Firestore.
//
// Collection design:
// - collection: users/{uid}/cart
// - docId: variant key (lineKey) ✅ docId is the source of truth
// - fields: id, name, image, quantity, price, size, color, lineKey
//
// quantity mutations use firestore.Increment so rapid racing operations stay
// commutative; the merged doc never overwrites fields it does not carry.
type CartLineRepositoryFS struct {
	Client *firestore.Client
}

func NewCartLineRepositoryFS(client *firestore.Client) *CartLineRepositoryFS {
	return &CartLineRepositoryFS{Client: client}
}

func (r *CartLineRepositoryFS) col(uid string) *firestore.CollectionRef {
	return r.Client.Collection("users").Doc(uid).Collection("cart")
}

func (r *CartLineRepositoryFS) guard(uid string) (string, error) {
	if r == nil || r.Client == nil {
		return "", errors.New("cartline_repository_fs: firestore client is nil")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", errors.New("cartline_repository_fs: uid is empty")
	}
	return uid, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("cartline_repository_fs: %s: %w", op, errors.Join(cartdom.ErrStore, err))
}

// Add increments quantity when a doc for the line's variant key exists, else
// creates the doc with its lineKey populated.
func (r *CartLineRepositoryFS) Add(ctx context.Context, uid string, line cartdom.Line) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}
	if !line.Valid() {
		return cartdom.ErrInvalidLine
	}

	key := line.Key()
	ref := r.col(uid).Doc(key)

	snap, err := ref.Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return storeErr("add get", err)
	}

	if snap != nil && snap.Exists() {
		_, err = ref.Set(ctx, map[string]any{
			"quantity": firestore.Increment(int64(line.Quantity)),
		}, firestore.MergeAll)
		if err != nil {
			return storeErr("add increment", err)
		}
		return nil
	}

	line.LineKey = key
	if _, err := ref.Set(ctx, encodeLineDoc(line)); err != nil {
		return storeErr("add create", err)
	}
	return nil
}

// Remove deletes the doc. Deleting an already-deleted doc is a no-op.
func (r *CartLineRepositoryFS) Remove(ctx context.Context, uid, lineKey string) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(lineKey)
	if key == "" {
		return errors.New("cartline_repository_fs: lineKey is empty")
	}

	if _, err := r.col(uid).Doc(key).Delete(ctx); err != nil {
		return storeErr("remove", err)
	}
	return nil
}

// Increment applies an atomic +1. A merge-set on a missing doc creates a fresh
// line at quantity 1 rather than failing.
func (r *CartLineRepositoryFS) Increment(ctx context.Context, uid, lineKey string) error {
	return r.incrementBy(ctx, uid, lineKey, 1)
}

// Decrement applies an atomic -1, except at currentQty <= 1 where the doc is
// deleted instead. Stored quantity is never <= 0.
func (r *CartLineRepositoryFS) Decrement(ctx context.Context, uid, lineKey string, currentQty int) error {
	if currentQty <= 1 {
		return r.Remove(ctx, uid, lineKey)
	}
	return r.incrementBy(ctx, uid, lineKey, -1)
}

func (r *CartLineRepositoryFS) incrementBy(ctx context.Context, uid, lineKey string, delta int64) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(lineKey)
	if key == "" {
		return errors.New("cartline_repository_fs: lineKey is empty")
	}

	_, err = r.col(uid).Doc(key).Set(ctx, map[string]any{
		"quantity": firestore.Increment(delta),
	}, firestore.MergeAll)
	if err != nil {
		return storeErr("increment", err)
	}
	return nil
}

// Merge merge-writes the full line without clobbering absent fields.
func (r *CartLineRepositoryFS) Merge(ctx context.Context, uid string, line cartdom.Line) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}
	if !line.Valid() {
		return cartdom.ErrInvalidLine
	}

	key := line.Key()
	line.LineKey = key

	// ✅ MergeAll requires map data, not a struct.
	if _, err := r.col(uid).Doc(key).Set(ctx, encodeLineDoc(line), firestore.MergeAll); err != nil {
		return storeErr("merge", err)
	}
	return nil
}

// List returns a one-time snapshot of the collection.
func (r *CartLineRepositoryFS) List(ctx context.Context, uid string) ([]cartdom.Line, error) {
	uid, err := r.guard(uid)
	if err != nil {
		return nil, err
	}

	out := []cartdom.Line{}
	it := r.col(uid).Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storeErr("list", err)
		}
		out = append(out, decodeLineDoc(snap))
	}
	return out, nil
}

// Clear deletes every doc in the collection. Deletions are independent and
// best-effort: all are attempted, the first failure is reported, and a retried
// Clear is idempotent.
func (r *CartLineRepositoryFS) Clear(ctx context.Context, uid string) error {
	uid, err := r.guard(uid)
	if err != nil {
		return err
	}

	it := r.col(uid).Documents(ctx)
	defer it.Stop()

	var firstErr error
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if firstErr == nil {
				firstErr = storeErr("clear list", err)
			}
			break
		}
		if _, err := snap.Ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
			if firstErr == nil {
				firstErr = storeErr("clear delete", err)
			}
		}
	}
	return firstErr
}

// Subscribe starts the live collection view. fn receives the full current line
// list on every change until the returned cancel func is called or ctx ends.
func (r *CartLineRepositoryFS) Subscribe(ctx context.Context, uid string, fn func([]cartdom.Line)) (func(), error) {
	uid, err := r.guard(uid)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("cartline_repository_fs: subscribe fn is nil")
	}

	cctx, cancel := context.WithCancel(ctx)
	snaps := r.col(uid).Snapshots(cctx)

	go func() {
		defer snaps.Stop()
		for {
			qs, err := snaps.Next()
			if err != nil {
				// Cancellation is the normal shutdown path.
				return
			}

			docs, err := qs.Documents.GetAll()
			if err != nil {
				continue
			}
			lines := make([]cartdom.Line, 0, len(docs))
			for _, d := range docs {
				lines = append(lines, decodeLineDoc(d))
			}
			fn(lines)
		}
	}()

	return cancel, nil
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

func encodeLineDoc(l cartdom.Line) map[string]any {
	return map[string]any{
		"id":       l.ID,
		"name":     l.Name,
		"image":    l.Image,
		"quantity": l.Quantity,
		"price":    l.Price,
		"size":     l.Size,
		"color":    l.Color,
		"lineKey":  l.LineKey,
	}
}

// decodeLineDoc parses doc data defensively (schema may have drifted; numeric
// fields can come back as int64 or float64). docId always wins for LineKey.
func decodeLineDoc(snap *firestore.DocumentSnapshot) cartdom.Line {
	line := cartdom.Line{LineKey: snap.Ref.ID}

	raw := snap.Data()
	if raw == nil {
		return line
	}

	line.ID = asInt64(raw["id"])
	line.Name = asString(raw["name"])
	line.Image = asString(raw["image"])
	line.Quantity = int(asInt64(raw["quantity"]))
	line.Price = asInt64(raw["price"])
	line.Size = asString(raw["size"])
	line.Color = asString(raw["color"])
	return line
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
