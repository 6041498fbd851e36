// internal/application/cart/service.go
package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/application/session"
	cartdom "storefront/internal/domain/cart"
)

// Service is the single public cart interface. Every operation dispatches on the
// current identity: the anonymous path mutates an in-memory list persisted to
// the local slot, the authenticated path delegates to the remote store and lets
// the live subscription drive the visible state. Exactly one source drives the
// view at any time.
type Service struct {
	local  LocalStore
	remote RemoteStore
	ids    IdentitySource
	rec    *Reconciler
	log    *zap.Logger

	mu          sync.Mutex
	ctx         context.Context
	identity    session.Identity
	items       []cartdom.Line
	unsubRemote func()
	unsubIdent  func()
	closed      bool
}

func NewService(local LocalStore, remote RemoteStore, ids IdentitySource, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		local:  local,
		remote: remote,
		ids:    ids,
		rec:    NewReconciler(local, remote, log),
		log:    log,
		items:  []cartdom.Line{},
	}
}

// Init loads the view for the current identity and starts observing identity
// transitions. ctx bounds the remote subscriptions started by this service.
func (s *Service) Init(ctx context.Context) error {
	if s.local == nil || s.remote == nil || s.ids == nil {
		return errors.New("cart: service is not fully configured")
	}

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.applyIdentity(s.ids.Current())
	s.unsubIdent = s.ids.OnIdentityChange(s.applyIdentity)
	return nil
}

// Close stops both the identity observer and any live subscription. Snapshots
// or operation results arriving afterwards are dropped rather than applied to a
// disposed view.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	unsubRemote := s.unsubRemote
	unsubIdent := s.unsubIdent
	s.unsubRemote = nil
	s.unsubIdent = nil
	s.mu.Unlock()

	if unsubRemote != nil {
		unsubRemote()
	}
	if unsubIdent != nil {
		unsubIdent()
	}
}

// applyIdentity switches the active cart source. The previous remote
// subscription is always cancelled first so two snapshot streams never compete
// for the same view after a rapid sign-out/sign-in.
func (s *Service) applyIdentity(id session.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prevUnsub := s.unsubRemote
	s.unsubRemote = nil
	s.identity = id
	ctx := s.ctx

	if id.IsAnonymous() {
		s.rec.Reset()
		s.items = s.local.Read()
		s.mu.Unlock()
		if prevUnsub != nil {
			prevUnsub()
		}
		return
	}
	s.mu.Unlock()

	if prevUnsub != nil {
		prevUnsub()
	}

	// The merge must land before the live subscription begins, otherwise the
	// first snapshot can flash a transient partial cart.
	if err := s.rec.Run(ctx, id.UID); err != nil {
		s.log.Error("cart reconciliation failed", zap.String("uid", id.UID), zap.Error(err))
	}

	uid := id.UID
	unsub, err := s.remote.Subscribe(ctx, uid, func(lines []cartdom.Line) {
		s.onSnapshot(uid, lines)
	})
	if err != nil {
		s.log.Error("cart subscription failed", zap.String("uid", uid), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.closed || s.identity.UID != uid {
		s.mu.Unlock()
		unsub()
		return
	}
	s.unsubRemote = unsub
	s.mu.Unlock()
}

// onSnapshot applies a live snapshot, ignoring deliveries for a superseded
// identity or a closed service.
func (s *Service) onSnapshot(uid string, lines []cartdom.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.identity.UID != uid {
		return
	}
	s.items = lines
}

// AddItem upserts by variant key, summing quantity when the variant exists.
func (s *Service) AddItem(ctx context.Context, line cartdom.Line) error {
	s.mu.Lock()
	id := s.identity
	if id.IsAnonymous() {
		items, err := cartdom.UpsertByVariant(s.items, line)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.items = items
		err = s.local.Write(items)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.remote.Add(ctx, id.UID, line)
}

// DeleteItem removes a line by its stored key, falling back to the derived
// variant key when no stored key is available. Unresolvable keys are a no-op.
func (s *Service) DeleteItem(ctx context.Context, lineKey string, fallback *VariantRef) error {
	key := resolveKey(lineKey, fallback)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	id := s.identity
	if id.IsAnonymous() {
		s.items = cartdom.RemoveByKey(s.items, key)
		err := s.local.Write(s.items)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.remote.Remove(ctx, id.UID, key)
}

// IncrementItem applies +1 to the line's variant.
func (s *Service) IncrementItem(ctx context.Context, line cartdom.Line) error {
	key := line.Key()

	s.mu.Lock()
	id := s.identity
	if id.IsAnonymous() {
		for i := range s.items {
			if s.items[i].Key() == key {
				s.items[i].Quantity++
				break
			}
		}
		err := s.local.Write(s.items)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.remote.Increment(ctx, id.UID, key)
}

// DecrementItem applies -1, deleting the line when currentQty <= 1 so a stored
// quantity never reaches 0.
func (s *Service) DecrementItem(ctx context.Context, lineKey string, currentQty int, fallback *VariantRef) error {
	key := resolveKey(lineKey, fallback)
	if key == "" {
		return nil
	}

	s.mu.Lock()
	id := s.identity
	if id.IsAnonymous() {
		if currentQty <= 1 {
			s.items = cartdom.RemoveByKey(s.items, key)
		} else {
			for i := range s.items {
				if s.items[i].Key() == key {
					s.items[i].Quantity--
					break
				}
			}
		}
		err := s.local.Write(s.items)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.remote.Decrement(ctx, id.UID, key, currentQty)
}

// Empty clears all lines for the active identity.
func (s *Service) Empty(ctx context.Context) error {
	s.mu.Lock()
	id := s.identity
	if id.IsAnonymous() {
		s.items = []cartdom.Line{}
		err := s.local.Write(s.items)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	return s.remote.Clear(ctx, id.UID)
}

// Items returns a copy of the current line list.
func (s *Service) Items() []cartdom.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cartdom.Line, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Service) TotalPrice() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartdom.TotalPrice(s.items)
}

func (s *Service) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cartdom.TotalItems(s.items)
}
