package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	"github.com/maisonnoire/trufflehouse-backend/pkg/pagination"
)

// Repository manages persistence for audit entries.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
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

// Create appends one audit entry. Entries are immutable once written.
func (r *Repository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ResolveUsername reads the username for a user ID. Runs inside whatever
// transaction the repository is bound to.
func (r *Repository) ResolveUsername(ctx context.Context, userID uuid.UUID) (string, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Select("username").
		First(&user, "id = ?", userID).Error; err != nil {
		return "", err
	}
	return user.Username, nil
}

// Filter narrows an audit listing.
type Filter struct {
	UserID         *uuid.UUID
	ActionContains string
	TargetType     string
	Status         enums.AuditStatus
}

// List returns one page of audit entries, newest first, plus the cursor for
// the next page when more rows exist.
func (r *Repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.AuditEntry, string, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	q := r.db.WithContext(ctx).Model(&models.AuditEntry{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.ActionContains != "" {
		q = q.Where("action LIKE ?", "%"+filter.ActionContains+"%")
	}
	if filter.TargetType != "" {
		q = q.Where("target_type = ?", filter.TargetType)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		q = q.Where("(timestamp, id) < (?, ?)", cursor.Timestamp, cursor.ID)
	}

	var entries []models.AuditEntry
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) == limit {
		entries = entries[:limit-1]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{Timestamp: last.Timestamp, ID: last.ID})
	}
	return entries, next, nil
}
