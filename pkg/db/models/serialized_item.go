package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

// SerializedItem is one individually identified physical unit. The item
// exclusively owns its three on-disk artifacts; the stored paths are
// relative to the configured asset root.
type SerializedItem struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	ItemUID        string                     `gorm:"column:item_uid;uniqueIndex;not null"`
	ProductID      uuid.UUID                  `gorm:"column:product_id;type:uuid;not null;index"`
	VariantID      *uuid.UUID                 `gorm:"column:variant_id;type:uuid;index"`
	BatchNumber    *string                    `gorm:"column:batch_number;index"`
	ProductionDate *time.Time                 `gorm:"column:production_date"`
	ExpiryDate     *time.Time                 `gorm:"column:expiry_date"`
	CostPrice      *decimal.Decimal           `gorm:"column:cost_price;type:numeric(10,2)"`
	Status         enums.SerializedItemStatus `gorm:"column:status;not null;index"`
	QRPath         string                     `gorm:"column:qr_path;not null"`
	PassportPath   string                     `gorm:"column:passport_path;not null"`
	LabelPath      string                     `gorm:"column:label_path;not null"`
	SoldOrderID    *uuid.UUID                 `gorm:"column:sold_order_id;type:uuid"`
	ReceivedAt     time.Time                  `gorm:"column:received_at;autoCreateTime"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
