package enums

import (
	"fmt"
	"strings"
)

// MovementType classifies an entry in the append-only stock ledger.
type MovementType string

const (
	MovementReceiveSerialized   MovementType = "receive_serialized"
	MovementSale                MovementType = "sale"
	MovementAdjustmentIn        MovementType = "adjustment_in"
	MovementAdjustmentOut       MovementType = "adjustment_out"
	MovementAdjustmentInWeight  MovementType = "adjustment_in_weight"
	MovementAdjustmentOutWeight MovementType = "adjustment_out_weight"
	MovementReturnToStock       MovementType = "return_to_stock"
	MovementRecallRemoval       MovementType = "recall_removal"
	MovementDamageRemoval       MovementType = "damage_removal"
)

const statusChangePrefix = "status_change_"

var validMovementTypes = []MovementType{
	MovementReceiveSerialized,
	MovementSale,
	MovementAdjustmentIn,
	MovementAdjustmentOut,
	MovementAdjustmentInWeight,
	MovementAdjustmentOutWeight,
	MovementReturnToStock,
	MovementRecallRemoval,
	MovementDamageRemoval,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType, including the
// generated status_change_* family.
func (m MovementType) IsValid() bool {
	if m.IsStatusChange() {
		return true
	}
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsStatusChange reports whether the movement is an informational
// status_change_* entry.
func (m MovementType) IsStatusChange() bool {
	return strings.HasPrefix(string(m), statusChangePrefix)
}

// StatusChangeMovement builds the informational movement type recorded for a
// serialized-item status transition.
func StatusChangeMovement(from, to SerializedItemStatus) MovementType {
	return MovementType(fmt.Sprintf("%s%s_to_%s", statusChangePrefix, from, to))
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	m := MovementType(value)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid movement type %q", value)
	}
	return m, nil
}
