package domain

import "time"

// View is the read model handed to the presentation layer.
type View struct {
	SessionID string      `json:"session_id"`
	Entries   []EntryView `json:"entries"`
	ItemCount int         `json:"item_count"`
	Total     string      `json:"total"`
	Empty     bool        `json:"empty"`
	Version   int         `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EntryView is one rendered cart line.
type EntryView struct {
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Cost      string `json:"cost"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Total     string `json:"total"`
}

// NewView projects c into its rendered form. Amounts are formatted with two
// decimal places and no currency symbol.
func NewView(c *Cart) View {
	entries := make([]EntryView, len(c.Entries))
	for i, e := range c.Entries {
		entries[i] = NewEntryView(e)
	}

	return View{
		SessionID: c.SessionID,
		Entries:   entries,
		ItemCount: c.ItemCount(),
		Total:     c.TotalAmount().StringFixed(2),
		Empty:     len(c.Entries) == 0,
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewEntryView renders a single cart line.
func NewEntryView(e CartEntry) EntryView {
	label := e.CostLabel
	if label == "" {
		label = FormatPrice(e.Cost)
	}
	return EntryView{
		Name:      e.Name,
		Image:     e.Image,
		Cost:      label,
		UnitPrice: e.Cost.StringFixed(2),
		Quantity:  e.Quantity,
		Total:     e.LineTotal().StringFixed(2),
	}
}
