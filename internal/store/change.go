package store

// ChangeKind names the command that produced a Change.
type ChangeKind string

const (
	ChangeAdded       ChangeKind = "added"
	ChangeIncremented ChangeKind = "incremented"
	ChangeDecremented ChangeKind = "decremented"
	ChangeQuantitySet ChangeKind = "quantity_set"
	ChangeRemoved     ChangeKind = "removed"
	ChangeCleared     ChangeKind = "cleared"
)

// Change describes one state transition. Quantity is the entry's quantity
// after the change and is zero for removals and clears.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Quantity int        `json:"quantity"`
}

// Listener receives changes after they have been applied.
type Listener func(Change)
