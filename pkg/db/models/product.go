package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

// Product represents one catalogue entry of the house. Aggregate counters
// are projections of the stock ledger and are maintained inside the same
// transaction as each movement append.
type Product struct {
	ID                        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SKUPrefix                 string               `gorm:"column:sku_prefix;uniqueIndex;not null"`
	Slug                      string               `gorm:"column:slug;uniqueIndex;not null"`
	Name                      string               `gorm:"column:name;not null"`
	ShortDescription          *string              `gorm:"column:short_description"`
	Type                      enums.ProductType    `gorm:"column:type;not null"`
	BasePrice                 *decimal.Decimal     `gorm:"column:base_price;type:numeric(10,2)"`
	UnitOfMeasure             *enums.UnitOfMeasure `gorm:"column:unit_of_measure"`
	AggregateStockQuantity    int                  `gorm:"column:aggregate_stock_quantity;not null;default:0"`
	AggregateStockWeightGrams *int                 `gorm:"column:aggregate_stock_weight_grams"`
	IsActive                  bool                 `gorm:"column:is_active;not null;default:true"`
	Variants                  []ProductVariant     `gorm:"foreignKey:ProductID"`
	CreatedAt                 time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant is a weight option of a variable_weight product.
type ProductVariant struct {
	ID                     uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID              uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	SKUSuffix              string          `gorm:"column:sku_suffix;not null"`
	WeightGrams            int             `gorm:"column:weight_grams;not null"`
	Price                  decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	AggregateStockQuantity int             `gorm:"column:aggregate_stock_quantity;not null;default:0"`
	IsActive               bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
