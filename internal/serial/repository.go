package serial

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

// Repository persists serialized items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, item *models.SerializedItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) FindByUID(ctx context.Context, uid string) (*models.SerializedItem, error) {
	var item models.SerializedItem
	if err := r.db.WithContext(ctx).First(&item, "item_uid = ?", uid).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByUIDForUpdate locks the row for the duration of the transaction.
// On sqlite the single-writer connection provides the same exclusion.
func (r *Repository) FindByUIDForUpdate(ctx context.Context, uid string) (*models.SerializedItem, error) {
	var item models.SerializedItem
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := query.First(&item, "item_uid = ?", uid).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Update(ctx context.Context, item *models.SerializedItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// UIDExists reports whether the uid is already taken.
func (r *Repository) UIDExists(ctx context.Context, uid string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SerializedItem{}).
		Where("item_uid = ?", uid).
		Count(&count).Error
	return count > 0, err
}

// ListFilter narrows a serialized-item listing.
type ListFilter struct {
	ProductID   *uuid.UUID
	VariantID   *uuid.UUID
	BatchNumber *string
	Status      *enums.SerializedItemStatus
}

func (r *Repository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]models.SerializedItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SerializedItem{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.VariantID != nil {
		query = query.Where("variant_id = ?", *filter.VariantID)
	}
	if filter.BatchNumber != nil {
		query = query.Where("batch_number = ?", *filter.BatchNumber)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.SerializedItem
	err := query.
		Order("received_at DESC, item_uid DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
