package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
)

// Repository manages persistence for stock movements and the derived
// aggregate counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create appends one movement row. Movements are never mutated.
func (r *Repository) Create(ctx context.Context, movement *models.StockMovement) error {
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

// ApplyProductDelta shifts the product's aggregate counters.
func (r *Repository) ApplyProductDelta(ctx context.Context, productID uuid.UUID, qtyDelta, weightDelta int) error {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID)
	updates := map[string]any{}
	if qtyDelta != 0 {
		updates["aggregate_stock_quantity"] = gorm.Expr("aggregate_stock_quantity + ?", qtyDelta)
	}
	if weightDelta != 0 {
		updates["aggregate_stock_weight_grams"] = gorm.Expr("COALESCE(aggregate_stock_weight_grams, 0) + ?", weightDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return q.Updates(updates).Error
}

// ApplyVariantDelta shifts a variant's aggregate quantity.
func (r *Repository) ApplyVariantDelta(ctx context.Context, variantID uuid.UUID, qtyDelta int) error {
	if qtyDelta == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("aggregate_stock_quantity", gorm.Expr("aggregate_stock_quantity + ?", qtyDelta)).
		Error
}

// SumQuantity returns the signed sum of quantity changes for the product,
// optionally scoped to one variant. Used to verify the aggregate projection.
func (r *Repository) SumQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (int, error) {
	q := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("product_id = ?", productID)
	if variantID != nil {
		q = q.Where("variant_id = ?", *variantID)
	}
	var sum *int
	if err := q.Select("SUM(quantity_change)").Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// ListByProduct returns the product's movements in chronological order.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("movement_date ASC, id ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
