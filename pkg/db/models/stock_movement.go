package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

// StockMovement records one signed quantity or weight delta with a typed
// reason. Rows are append-only and never mutated; aggregate counters on
// Product and ProductVariant equal the signed sum of their movements.
type StockMovement struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID         *uuid.UUID         `gorm:"column:variant_id;type:uuid;index"`
	SerializedItemID  *uuid.UUID         `gorm:"column:serialized_item_id;type:uuid;index"`
	MovementType      enums.MovementType `gorm:"column:movement_type;not null"`
	QuantityChange    *int               `gorm:"column:quantity_change"`
	WeightChangeGrams *int               `gorm:"column:weight_change_grams"`
	Reason            string             `gorm:"column:reason;not null"`
	RelatedOrderID    *uuid.UUID         `gorm:"column:related_order_id;type:uuid"`
	RelatedUserID     *uuid.UUID         `gorm:"column:related_user_id;type:uuid"`
	Notes             *string            `gorm:"column:notes"`
	MovementDate      time.Time          `gorm:"column:movement_date;not null;index"`
}
