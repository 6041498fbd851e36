// internal/adapters/out/localstore/cart_store.go
package localstore

import (
	"encoding/json"

	cartdom "storefront/internal/domain/cart"
)

const cartKey = "cart"

// CartStore persists the anonymous cart line list under the "cart" slot.
// Implements the cart application's LocalStore port.
type CartStore struct {
	KV *KV
}

func NewCartStore(kv *KV) *CartStore {
	return &CartStore{KV: kv}
}

// Read returns the stored lines. Missing or corrupt data comes back as an
// empty list; corruption is deliberately swallowed so a broken slot never
// breaks the storefront.
func (s *CartStore) Read() []cartdom.Line {
	if s == nil || s.KV == nil {
		return []cartdom.Line{}
	}

	raw, ok := s.KV.GetItem(cartKey)
	if !ok || raw == "" {
		return []cartdom.Line{}
	}

	var lines []cartdom.Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil || lines == nil {
		return []cartdom.Line{}
	}
	return lines
}

// Write overwrites the slot with the full line list.
func (s *CartStore) Write(lines []cartdom.Line) error {
	if lines == nil {
		lines = []cartdom.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return s.KV.SetItem(cartKey, string(raw))
}
