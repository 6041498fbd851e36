// internal/adapters/in/http/handler/cart_handler.go
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	mw "storefront/internal/adapters/in/http/middleware"
	cartapp "storefront/internal/application/cart"
	cartdom "storefront/internal/domain/cart"
)

// CartHandler serves the signed-in user's cart.
// Mount (router side):
// - GET    /cart
// - DELETE /cart
// - POST   /cart/items
// - POST   /cart/items/{lineKey}/increment
// - POST   /cart/items/{lineKey}/decrement
// - DELETE /cart/items/{lineKey}
//
// The uid always comes from the verified token, never from the request body.
type CartHandler struct {
	store cartapp.RemoteStore
}

func NewCartHandler(store cartapp.RemoteStore) *CartHandler {
	return &CartHandler{store: store}
}

type cartLineReq struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
	Size     string `json:"size"`
	Color    string `json:"color"`
}

type cartResponse struct {
	Items      []cartdom.Line `json:"items"`
	TotalPrice int64          `json:"totalPrice"`
	TotalItems int            `json:"totalItems"`
}

func toCartResponse(lines []cartdom.Line) cartResponse {
	if lines == nil {
		lines = []cartdom.Line{}
	}
	return cartResponse{
		Items:      lines,
		TotalPrice: cartdom.TotalPrice(lines),
		TotalItems: cartdom.TotalItems(lines),
	}
}

func (h *CartHandler) writeCartErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cartdom.ErrInvalidLine):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cartdom.ErrStore):
		writeErr(w, http.StatusBadGateway, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, err.Error())
	}
}

// Get returns the full cart snapshot.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lines, err := h.store.List(r.Context(), uid)
	if err != nil {
		h.writeCartErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(lines))
}

// AddItem adds qty of a variant; an existing variant's quantity is incremented.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req cartLineReq
	if err := readJSON(r, &req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	line := cartdom.Line{
		ID:       req.ID,
		Name:     strings.TrimSpace(req.Name),
		Image:    strings.TrimSpace(req.Image),
		Quantity: req.Quantity,
		Price:    req.Price,
		Size:     req.Size,
		Color:    req.Color,
	}
	if err := h.store.Add(r.Context(), uid, line); err != nil {
		h.writeCartErr(w, err)
		return
	}

	lines, err := h.store.List(r.Context(), uid)
	if err != nil {
		h.writeCartErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(lines))
}

// Increment applies +1 to the line.
func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lineKey := strings.TrimSpace(chi.URLParam(r, "lineKey"))
	if lineKey == "" {
		writeErr(w, http.StatusBadRequest, "lineKey is required")
		return
	}

	if err := h.store.Increment(r.Context(), uid, lineKey); err != nil {
		h.writeCartErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Decrement applies -1 to the line; at quantity 1 the line is removed instead.
// The current quantity is read server-side so a stale client cannot push the
// stored quantity below 1.
func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lineKey := strings.TrimSpace(chi.URLParam(r, "lineKey"))
	if lineKey == "" {
		writeErr(w, http.StatusBadRequest, "lineKey is required")
		return
	}

	lines, err := h.store.List(r.Context(), uid)
	if err != nil {
		h.writeCartErr(w, err)
		return
	}

	currentQty := 0
	for _, l := range lines {
		if l.Key() == lineKey {
			currentQty = l.Quantity
			break
		}
	}
	if currentQty == 0 {
		// already gone; decrement of an absent line is a no-op
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.store.Decrement(r.Context(), uid, lineKey, currentQty); err != nil {
		h.writeCartErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem deletes the line (idempotent).
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lineKey := strings.TrimSpace(chi.URLParam(r, "lineKey"))
	if lineKey == "" {
		writeErr(w, http.StatusBadRequest, "lineKey is required")
		return
	}

	if err := h.store.Remove(r.Context(), uid, lineKey); err != nil {
		h.writeCartErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	uid, ok := mw.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.store.Clear(r.Context(), uid); err != nil {
		h.writeCartErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
