package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

// AppendInput captures the immutable data a stock movement requires.
type AppendInput struct {
	ProductID         uuid.UUID
	VariantID         *uuid.UUID
	SerializedItemID  *uuid.UUID
	Type              enums.MovementType
	QuantityChange    *int
	WeightChangeGrams *int
	Reason            string
	RelatedOrderID    *uuid.UUID
	RelatedUserID     *uuid.UUID
	Notes             *string
	MovementDate      time.Time
}

// Service appends ledger entries and keeps the aggregate counters in step.
// Counters are projections: every movement append applies its delta to the
// owning product (and variant) inside the same transaction.
type Service struct {
	repo *Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &Service{repo: repo}, nil
}

// Append writes the movement inside the provided transaction and applies
// the aggregate delta.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.StockMovement, error) {
	if input.ProductID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid movement type %q", input.Type)
	}
	if input.QuantityChange == nil && input.WeightChangeGrams == nil {
		return nil, fmt.Errorf("movement requires a quantity or weight change")
	}
	if input.Reason == "" {
		return nil, fmt.Errorf("movement reason is required")
	}
	if input.MovementDate.IsZero() {
		input.MovementDate = time.Now().UTC()
	}

	repo := s.repo.WithTx(tx)

	movement := &models.StockMovement{
		ProductID:         input.ProductID,
		VariantID:         input.VariantID,
		SerializedItemID:  input.SerializedItemID,
		MovementType:      input.Type,
		QuantityChange:    input.QuantityChange,
		WeightChangeGrams: input.WeightChangeGrams,
		Reason:            input.Reason,
		RelatedOrderID:    input.RelatedOrderID,
		RelatedUserID:     input.RelatedUserID,
		Notes:             input.Notes,
		MovementDate:      input.MovementDate,
	}
	if err := repo.Create(ctx, movement); err != nil {
		return nil, err
	}

	qtyDelta := 0
	if input.QuantityChange != nil {
		qtyDelta = *input.QuantityChange
	}
	weightDelta := 0
	if input.WeightChangeGrams != nil {
		weightDelta = *input.WeightChangeGrams
	}

	if err := repo.ApplyProductDelta(ctx, input.ProductID, qtyDelta, weightDelta); err != nil {
		return nil, fmt.Errorf("applying product aggregate delta: %w", err)
	}
	if input.VariantID != nil && qtyDelta != 0 {
		if err := repo.ApplyVariantDelta(ctx, *input.VariantID, qtyDelta); err != nil {
			return nil, fmt.Errorf("applying variant aggregate delta: %w", err)
		}
	}

	return movement, nil
}

// SumQuantity exposes the signed movement sum for invariant checks.
func (s *Service) SumQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (int, error) {
	return s.repo.SumQuantity(ctx, productID, variantID)
}

// ListByProduct returns the product's movement history.
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error) {
	return s.repo.ListByProduct(ctx, productID)
}
