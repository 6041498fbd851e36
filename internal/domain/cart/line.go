// internal/domain/cart/line.go
package cart

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidLine = errors.New("cart: invalid line")

	// ErrStore marks a read/write rejected by a backing store (permission,
	// quota, offline). Surfaced to the caller, never retried automatically.
	ErrStore = errors.New("cart: store rejected operation")
)

// Line represents "one line item" in a shopping cart.
// Identity of a line is its variant (product + size + color), not the docID of
// whatever store it happens to live in. LineKey is filled once the line has been
// assigned a stable key (remote docID); it stays empty for lines that only ever
// lived in the anonymous cart.
type Line struct {
	ID       int64  `json:"id" firestore:"id"`
	Name     string `json:"name" firestore:"name"`
	Image    string `json:"image" firestore:"image"`
	Quantity int    `json:"quantity" firestore:"quantity"`
	Price    int64  `json:"price" firestore:"price"`
	Size     string `json:"size" firestore:"size"`
	Color    string `json:"color" firestore:"color"`
	LineKey  string `json:"lineKey,omitempty" firestore:"lineKey"`
}

// VariantKey derives the stable identity of a (product, size, color) combination.
// Size/color are trimmed and lowercased first, so omitted and empty values collapse
// to the same key. Pure and total; no error cases.
func VariantKey(id int64, size, color string) string {
	return strconv.FormatInt(id, 10) + "__" +
		strings.ToLower(strings.TrimSpace(size)) + "__" +
		strings.ToLower(strings.TrimSpace(color))
}

// Key returns the line's effective key: LineKey when assigned, the derived
// variant key otherwise.
func (l Line) Key() string {
	if k := strings.TrimSpace(l.LineKey); k != "" {
		return k
	}
	return VariantKey(l.ID, l.Size, l.Color)
}

// Valid reports whether the line may be persisted.
// Quantity must be >= 1; a line that reaches 0 is deleted, never stored at 0.
func (l Line) Valid() bool {
	return l.Quantity >= 1
}

// TotalPrice is Σ price * quantity over the given lines.
func TotalPrice(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Price * int64(l.Quantity)
	}
	return sum
}

// TotalItems is Σ quantity over the given lines.
func TotalItems(lines []Line) int {
	var n int
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// MergeByVariantSumQty merges two line sets keyed by variant key.
// Quantities for a key present on both sides are summed. Non-quantity fields are
// taken from whichever record is written to the map last, so the b side wins for
// display fields (callers pass (remote, local), which makes the local record win).
// Output order is stable (sorted by key) so results are deterministic.
func MergeByVariantSumQty(a, b []Line) []Line {
	m := map[string]Line{}

	put := func(l Line) {
		if !l.Valid() {
			return
		}
		key := VariantKey(l.ID, l.Size, l.Color)
		if prev, ok := m[key]; ok {
			l.Quantity = prev.Quantity + l.Quantity
		}
		m[key] = l
	}

	for _, l := range a {
		put(l)
	}
	for _, l := range b {
		put(l)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Line, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// UpsertByVariant adds line into lines, summing quantity when the variant already
// exists. Used by the anonymous cart path.
func UpsertByVariant(lines []Line, line Line) ([]Line, error) {
	if !line.Valid() {
		return nil, ErrInvalidLine
	}

	key := VariantKey(line.ID, line.Size, line.Color)
	for i := range lines {
		if VariantKey(lines[i].ID, lines[i].Size, lines[i].Color) == key {
			lines[i].Quantity += line.Quantity
			return lines, nil
		}
	}
	return append(lines, line), nil
}

// RemoveByKey deletes the line whose effective key equals key (no-op when absent).
func RemoveByKey(lines []Line, key string) []Line {
	key = strings.TrimSpace(key)
	if key == "" {
		return lines
	}
	out := lines[:0]
	for _, l := range lines {
		if l.Key() != key {
			out = append(out, l)
		}
	}
	return out
}
