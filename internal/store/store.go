// Package store holds the in-memory cart state machine.
//
// A CartStore owns an ordered list of entries keyed by name. Every present
// entry has a quantity of at least one: decrementing an entry at quantity one
// removes it. Subscribers are called synchronously after each state change.
//
// A CartStore is not safe for concurrent use.
package store

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/utafrali/cartstore/internal/domain"
	apperrors "github.com/utafrali/cartstore/pkg/errors"
)

// CartStore applies cart commands and computes derived totals.
type CartStore struct {
	entries   []domain.CartEntry
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn Listener
}

// New returns an empty store.
func New() *CartStore {
	return &CartStore{entries: []domain.CartEntry{}}
}

// FromEntries rebuilds a store from a snapshot. Entries must have unique names
// and a quantity of at least one.
func FromEntries(entries []domain.CartEntry) (*CartStore, error) {
	s := New()
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Quantity < 1 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("entry %q has quantity %d", e.Name, e.Quantity))
		}
		if _, dup := seen[e.Name]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate entry %q", e.Name))
		}
		seen[e.Name] = struct{}{}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Subscribe registers fn to be called after every state change. The returned
// function removes the subscription.
func (s *CartStore) Subscribe(fn Listener) (cancel func()) {
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

// Add puts one unit of e into the cart. An entry with the same name has its
// quantity increased and its image and cost refreshed.
func (s *CartStore) Add(e domain.CartEntry) {
	if i := s.index(e.Name); i >= 0 {
		s.entries[i].Image = e.Image
		s.entries[i].Cost = e.Cost
		s.entries[i].CostLabel = e.CostLabel
		s.entries[i].Quantity++
		s.emit(Change{Kind: ChangeAdded, Name: e.Name, Quantity: s.entries[i].Quantity})
		return
	}

	e.Quantity = 1
	s.entries = append(s.entries, e)
	s.emit(Change{Kind: ChangeAdded, Name: e.Name, Quantity: 1})
}

// Increment raises the quantity of the named entry by one.
func (s *CartStore) Increment(name string) error {
	i := s.index(name)
	if i < 0 {
		return &domain.EntryNotFoundError{Name: name}
	}
	s.entries[i].Quantity++
	s.emit(Change{Kind: ChangeIncremented, Name: name, Quantity: s.entries[i].Quantity})
	return nil
}

// Decrement lowers the quantity of the named entry by one, removing the entry
// when its quantity would reach zero.
func (s *CartStore) Decrement(name string) error {
	i := s.index(name)
	if i < 0 {
		return &domain.EntryNotFoundError{Name: name}
	}
	if s.entries[i].Quantity > 1 {
		s.entries[i].Quantity--
		s.emit(Change{Kind: ChangeDecremented, Name: name, Quantity: s.entries[i].Quantity})
		return nil
	}
	s.removeAt(i)
	return nil
}

// SetQuantity sets the quantity of the named entry. Zero removes the entry.
func (s *CartStore) SetQuantity(name string, quantity int) error {
	if quantity < 0 {
		return apperrors.InvalidInput("quantity must not be negative")
	}
	i := s.index(name)
	if i < 0 {
		return &domain.EntryNotFoundError{Name: name}
	}
	if quantity == 0 {
		s.removeAt(i)
		return nil
	}
	s.entries[i].Quantity = quantity
	s.emit(Change{Kind: ChangeQuantitySet, Name: name, Quantity: quantity})
	return nil
}

// Remove deletes the named entry and reports whether it was present.
func (s *CartStore) Remove(name string) bool {
	i := s.index(name)
	if i < 0 {
		return false
	}
	s.removeAt(i)
	return true
}

// Clear removes every entry.
func (s *CartStore) Clear() {
	if len(s.entries) == 0 {
		return
	}
	s.entries = s.entries[:0]
	s.emit(Change{Kind: ChangeCleared})
}

// Entries returns a copy of the entries in insertion order.
func (s *CartStore) Entries() []domain.CartEntry {
	return slices.Clone(s.entries)
}

// Entry returns the named entry.
func (s *CartStore) Entry(name string) (domain.CartEntry, bool) {
	i := s.index(name)
	if i < 0 {
		return domain.CartEntry{}, false
	}
	return s.entries[i], true
}

// Len returns the number of distinct entries.
func (s *CartStore) Len() int {
	return len(s.entries)
}

// ItemCount returns the total number of units across all entries.
func (s *CartStore) ItemCount() int {
	c := domain.Cart{Entries: s.entries}
	return c.ItemCount()
}

// TotalForEntry returns quantity * cost of the named entry, rounded to cents.
func (s *CartStore) TotalForEntry(name string) (decimal.Decimal, error) {
	i := s.index(name)
	if i < 0 {
		return decimal.Zero, &domain.EntryNotFoundError{Name: name}
	}
	return s.entries[i].LineTotal(), nil
}

// TotalForCart returns the exact sum of all line amounts rounded once to cents.
func (s *CartStore) TotalForCart() decimal.Decimal {
	c := domain.Cart{Entries: s.entries}
	return c.TotalAmount()
}

func (s *CartStore) index(name string) int {
	c := domain.Cart{Entries: s.entries}
	return c.FindEntryIndex(name)
}

func (s *CartStore) removeAt(i int) {
	name := s.entries[i].Name
	s.entries = slices.Delete(s.entries, i, i+1)
	s.emit(Change{Kind: ChangeRemoved, Name: name})
}

func (s *CartStore) emit(c Change) {
	for _, l := range slices.Clone(s.listeners) {
		l.fn(c)
	}
}
