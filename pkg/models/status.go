package models

// ItemStatus is the outcome of one item within a run
type ItemStatus string

const (
	ItemStatusUnset    ItemStatus = ""         // Zero value = unset/unknown
	ItemStatusEmitted  ItemStatus = "emitted"  // Url message written to the sink
	ItemStatusArchived ItemStatus = "archived" // Skipped, archive key already recorded
	ItemStatusFailed   ItemStatus = "failed"   // Item page could not be resolved
)

// String implements fmt.Stringer for logging
func (s ItemStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusEmitted, ItemStatusArchived, ItemStatusFailed:
		return true
	}
	return false
}
