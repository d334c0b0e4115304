package enums

import "fmt"

// SerializedItemStatus is the lifecycle state of one physical unit.
type SerializedItemStatus string

const (
	ItemStatusAvailable        SerializedItemStatus = "available"
	ItemStatusReservedInternal SerializedItemStatus = "reserved_internal"
	ItemStatusAllocated        SerializedItemStatus = "allocated"
	ItemStatusSold             SerializedItemStatus = "sold"
	ItemStatusDamaged          SerializedItemStatus = "damaged"
	ItemStatusRecalled         SerializedItemStatus = "recalled"
	ItemStatusMissing          SerializedItemStatus = "missing"
	ItemStatusReturned         SerializedItemStatus = "returned"
)

var validSerializedItemStatuses = []SerializedItemStatus{
	ItemStatusAvailable,
	ItemStatusReservedInternal,
	ItemStatusAllocated,
	ItemStatusSold,
	ItemStatusDamaged,
	ItemStatusRecalled,
	ItemStatusMissing,
	ItemStatusReturned,
}

// String implements fmt.Stringer.
func (s SerializedItemStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SerializedItemStatus.
func (s SerializedItemStatus) IsValid() bool {
	for _, candidate := range validSerializedItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSerializedItemStatus converts raw input into a SerializedItemStatus.
func ParseSerializedItemStatus(value string) (SerializedItemStatus, error) {
	for _, candidate := range validSerializedItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid serialized item status %q", value)
}

// IsDeletionTerminal reports whether an item in this status no longer blocks
// deletion of its parent product.
func (s SerializedItemStatus) IsDeletionTerminal() bool {
	switch s {
	case ItemStatusSold, ItemStatusDamaged, ItemStatusReturned, ItemStatusRecalled:
		return true
	}
	return false
}

// manualTransitions enumerates the admin-reachable edges of the state
// machine. sold and allocated belong to the order workflow and are absent
// on purpose.
var manualTransitions = map[SerializedItemStatus][]SerializedItemStatus{
	ItemStatusAvailable:        {ItemStatusDamaged, ItemStatusRecalled, ItemStatusReservedInternal, ItemStatusMissing},
	ItemStatusDamaged:          {ItemStatusAvailable},
	ItemStatusReservedInternal: {ItemStatusAvailable, ItemStatusDamaged, ItemStatusRecalled, ItemStatusMissing},
	ItemStatusMissing:          {ItemStatusRecalled},
}

// CanTransitionManually reports whether an admin may move an item from one
// status to another outside the order workflow.
func CanTransitionManually(from, to SerializedItemStatus) bool {
	if from == to {
		return false
	}
	for _, candidate := range manualTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
