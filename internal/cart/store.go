package cart

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Store is the single source of truth for pending-purchase state within one
// session. It keeps lines in memory in insertion order and writes through to a
// durable Slot after every mutation. Persistence is best-effort: a failed
// write is logged and swallowed, the in-memory state stays authoritative.
//
// Store is not safe for concurrent use. There is a single logical writer (the
// active session); callers that multiplex sessions own serialization.
type Store struct {
	slot  Slot
	log   logrus.FieldLogger
	lines map[string]*Line
	order []string
}

func NewStore(slot Slot, log logrus.FieldLogger) *Store {
	if slot == nil {
		slot = NewMemorySlot()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		slot:  slot,
		log:   log,
		lines: make(map[string]*Line),
	}
}

// Hydrate loads persisted lines from the slot. Missing or malformed data
// falls back to an empty cart; Hydrate never fails the session.
func (s *Store) Hydrate(ctx context.Context) {
	s.lines = make(map[string]*Line)
	s.order = nil

	lines, err := s.slot.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("cart: discarding persisted cart")
		return
	}

	for _, l := range lines {
		l := l
		if !l.valid() || l.Quantity > l.Product.Stock {
			continue
		}
		if _, ok := s.lines[l.Product.ID]; ok {
			continue
		}
		s.lines[l.Product.ID] = &l
		s.order = append(s.order, l.Product.ID)
	}
}

// AddItem adds qty units of p to the cart. Additive: an existing line keeps
// its quantity and qty is added on top. If the resulting quantity would exceed
// p.Stock the whole increment is rejected with ErrStockExceeded and the
// existing line is left untouched; there is no partial fill and no clamping.
// On success the cached snapshot is refreshed to p, so a repeat add picks up
// the latest price and stock the caller fetched.
func (s *Store) AddItem(ctx context.Context, p Product, qty int) error {
	if p.ID == "" || p.Stock < 0 {
		return ErrInvalidProduct
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}

	newQty := qty
	if existing, ok := s.lines[p.ID]; ok {
		newQty += existing.Quantity
	}
	if newQty > p.Stock {
		return ErrStockExceeded
	}

	if existing, ok := s.lines[p.ID]; ok {
		existing.Product = p
		existing.Quantity = newQty
	} else {
		s.lines[p.ID] = &Line{Product: p, Quantity: newQty}
		s.order = append(s.order, p.ID)
	}

	s.persist(ctx)
	return nil
}

// AddOne is AddItem with the default quantity of 1.
func (s *Store) AddOne(ctx context.Context, p Product) error {
	return s.AddItem(ctx, p, 1)
}

// SetQuantity sets the quantity of an existing line to exactly qty (absolute,
// unlike AddItem). Unknown ids are a no-op so stale UI events are harmless.
// qty <= 0 removes the line. Raising qty past the cached snapshot's stock is
// rejected with ErrStockExceeded.
func (s *Store) SetQuantity(ctx context.Context, productID string, qty int) error {
	existing, ok := s.lines[productID]
	if !ok {
		return nil
	}

	if qty <= 0 {
		s.RemoveItem(ctx, productID)
		return nil
	}

	if qty > existing.Product.Stock {
		return ErrStockExceeded
	}

	existing.Quantity = qty
	s.persist(ctx)
	return nil
}

// RemoveItem deletes the line if present. Always succeeds.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	if _, ok := s.lines[productID]; !ok {
		return
	}

	delete(s.lines, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.persist(ctx)
}

// Clear empties the cart and removes the persisted copy from the slot.
func (s *Store) Clear(ctx context.Context) {
	s.lines = make(map[string]*Line)
	s.order = nil
	if err := s.slot.Clear(ctx); err != nil {
		s.log.WithError(err).Warn("cart: clear persisted cart")
	}
}

// Total is the display-only sum of price times quantity over all lines.
// The amount actually charged is always recomputed by the backend.
func (s *Store) Total() float64 {
	total := 0.0
	for _, l := range s.lines {
		total += l.Subtotal()
	}
	return total
}

// DistinctLineCount is the number of distinct products in the cart.
func (s *Store) DistinctLineCount() int {
	return len(s.lines)
}

// TotalUnitCount is the sum of quantities over all lines. Parts of the UI use
// this, parts use DistinctLineCount; keeping them separate named operations
// avoids conflating the two.
func (s *Store) TotalUnitCount() int {
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

// Get returns the line for productID, if any.
func (s *Store) Get(productID string) (Line, bool) {
	if l, ok := s.lines[productID]; ok {
		return *l, true
	}
	return Line{}, false
}

// Lines returns a copy of all lines in insertion order.
func (s *Store) Lines() []Line {
	out := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		if l, ok := s.lines[id]; ok {
			out = append(out, *l)
		}
	}
	return out
}

func (s *Store) persist(ctx context.Context) {
	if err := s.slot.Save(ctx, s.Lines()); err != nil {
		s.log.WithError(err).Warn("cart: persist cart")
	}
}
