package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the persisted snapshot of one session's cart.
type Cart struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Entries   []CartEntry `json:"entries"`
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// CartEntry is a single line in the cart, keyed by Name.
type CartEntry struct {
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Cost      decimal.Decimal `json:"cost"`
	CostLabel string          `json:"cost_label"`
	Quantity  int             `json:"quantity"`
}

// NewCartEntry normalizes rawCost and returns an entry with quantity 1.
func NewCartEntry(name, image, rawCost string) (CartEntry, error) {
	cost, err := NormalizePrice(rawCost)
	if err != nil {
		return CartEntry{}, err
	}
	return CartEntry{
		Name:      name,
		Image:     image,
		Cost:      cost,
		CostLabel: rawCost,
		Quantity:  1,
	}, nil
}

// LineTotal returns Quantity * Cost rounded to cents.
func (e CartEntry) LineTotal() decimal.Decimal {
	return e.lineAmount().Round(2)
}

func (e CartEntry) lineAmount() decimal.Decimal {
	return e.Cost.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// TotalAmount sums the exact line amounts and rounds once at the end.
func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.Entries {
		total = total.Add(e.lineAmount())
	}
	return total.Round(2)
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, e := range c.Entries {
		count += e.Quantity
	}
	return count
}

// FindEntryIndex returns the index of the entry with the given name, or -1.
func (c *Cart) FindEntryIndex(name string) int {
	for i := range c.Entries {
		if c.Entries[i].Name == name {
			return i
		}
	}
	return -1
}
