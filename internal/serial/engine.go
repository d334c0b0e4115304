package serial

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/maisonnoire/trufflehouse-backend/internal/assets"
	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/internal/catalog"
	"github.com/maisonnoire/trufflehouse-backend/internal/ledger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/metrics"
)

const (
	maxBatchQuantity = 10000
	maxAuditUIDs     = 50
	uidMintAttempts  = 5
)

// ArtifactRenderer produces the three authenticity artifacts of one item.
type ArtifactRenderer interface {
	RenderAll(descriptor assets.ItemDescriptor) (assets.Paths, []string, error)
}

// ReceiveInput describes one incoming physical batch.
type ReceiveInput struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	Quantity       int
	BatchNumber    *string
	ProductionDate *time.Time
	ExpiryDate     *time.Time
	CostPrice      *decimal.Decimal
}

// AdjustInput is a manual correction of the aggregate counters. It never
// touches serialized rows.
type AdjustInput struct {
	ProductID        uuid.UUID
	VariantID        *uuid.UUID
	QuantityDelta    *int
	WeightDeltaGrams *int
	Reason           string
}

// Engine turns incoming batches into serialized items and drives the item
// state machine. Every mutation runs in a single transaction together
// with its ledger and audit rows; filesystem artifacts written for a
// failed batch are unlinked on rollback.
type Engine struct {
	client           *db.Client
	items            *Repository
	products         *catalog.Repository
	movements        *ledger.Service
	auditor          *audit.Recorder
	renderer         ArtifactRenderer
	logg             *logger.Logger
	inventoryMetrics *metrics.InventoryMetrics
}

// NewEngine wires the serialization engine and validates its collaborators.
func NewEngine(
	client *db.Client,
	items *Repository,
	products *catalog.Repository,
	movements *ledger.Service,
	auditor *audit.Recorder,
	renderer ArtifactRenderer,
	logg *logger.Logger,
	m *metrics.InventoryMetrics,
) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if items == nil {
		return nil, fmt.Errorf("serialized item repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if movements == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("artifact renderer required")
	}
	return &Engine{
		client:           client,
		items:            items,
		products:         products,
		movements:        movements,
		auditor:          auditor,
		renderer:         renderer,
		logg:             logg,
		inventoryMetrics: m,
	}, nil
}

// ReceiveSerialized mints one serialized item per received unit: UID,
// three rendered artifacts, a database row in status available and a +1
// ledger entry, all inside one transaction. There is no partial success;
// on any error the whole batch rolls back and the artifacts written so
// far are removed.
func (e *Engine) ReceiveSerialized(ctx context.Context, actor audit.Actor, input ReceiveInput) ([]string, error) {
	if input.ProductID == uuid.Nil {
		return nil, apperrors.New(apperrors.CodeValidation, "product_id is required")
	}
	if input.Quantity < 1 || input.Quantity > maxBatchQuantity {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("quantity_received must be between 1 and %d", maxBatchQuantity))
	}

	receivedAt := time.Now().UTC()
	var uids []string
	var createdFiles []string

	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		products := e.products.WithTx(tx)
		items := e.items.WithTx(tx)

		product, err := products.FindByID(ctx, input.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "product not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "fetching product")
		}

		var variant *models.ProductVariant
		if input.VariantID != nil {
			variant, err = products.FindVariantByID(ctx, *input.VariantID)
			if err != nil {
				if db.IsNotFound(err) {
					return apperrors.New(apperrors.CodeNotFound, "variant not found")
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "fetching variant")
			}
			if variant.ProductID != product.ID {
				return apperrors.New(apperrors.CodeValidation, "variant does not belong to the product")
			}
		}

		for i := 0; i < input.Quantity; i++ {
			uid, err := e.mintUniqueUID(ctx, items, product.SKUPrefix)
			if err != nil {
				return err
			}

			descriptor := e.buildDescriptor(uid, product, variant, input)
			paths, created, err := e.renderer.RenderAll(descriptor)
			createdFiles = append(createdFiles, created...)
			if err != nil {
				return err
			}

			item := &models.SerializedItem{
				ItemUID:        uid,
				ProductID:      product.ID,
				VariantID:      input.VariantID,
				BatchNumber:    input.BatchNumber,
				ProductionDate: input.ProductionDate,
				ExpiryDate:     input.ExpiryDate,
				CostPrice:      input.CostPrice,
				Status:         enums.ItemStatusAvailable,
				QRPath:         paths.QR,
				PassportPath:   paths.Passport,
				LabelPath:      paths.Label,
				ReceivedAt:     receivedAt,
			}
			if err := items.Create(ctx, item); err != nil {
				if db.IsUniqueViolation(err, "item_uid") {
					return apperrors.New(apperrors.CodeConflict, fmt.Sprintf("item uid %s already exists", uid))
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "inserting serialized item")
			}

			one := 1
			if _, err := e.movements.Append(ctx, tx, ledger.AppendInput{
				ProductID:        product.ID,
				VariantID:        input.VariantID,
				SerializedItemID: &item.ID,
				Type:             enums.MovementReceiveSerialized,
				QuantityChange:   &one,
				Reason:           "serialized batch intake",
				RelatedUserID:    actor.UserID,
				MovementDate:     receivedAt,
			}); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "appending receive movement")
			}

			uids = append(uids, uid)
		}

		return e.auditor.Record(ctx, tx, audit.Event{
			Action:  "receive_serialized_stock_success",
			Actor:   actor,
			Target:  &audit.Target{Type: "product", ID: product.ID.String()},
			Details: receiveAuditDetails(input, uids),
			Status:  enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		e.cleanupArtifacts(ctx, createdFiles)
		e.inventoryMetrics.IncBatchFailure()
		e.auditor.RecordOutOfBand(ctx, audit.Event{
			Action: "receive_serialized_stock_failure",
			Actor:  actor,
			Target: &audit.Target{Type: "product", ID: input.ProductID.String()},
			Details: map[string]any{
				"quantity_received": input.Quantity,
				"error":             err.Error(),
			},
			Status: enums.AuditStatusFailure,
		})
		return nil, err
	}

	e.inventoryMetrics.AddItemsReceived(len(uids))
	return uids, nil
}

func (e *Engine) mintUniqueUID(ctx context.Context, items *Repository, skuPrefix string) (string, error) {
	for attempt := 0; attempt < uidMintAttempts; attempt++ {
		uid := mintUID(skuPrefix)
		taken, err := items.UIDExists(ctx, uid)
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeInternal, err, "checking uid uniqueness")
		}
		if !taken {
			return uid, nil
		}
	}
	return "", apperrors.New(apperrors.CodeInternal, "exhausted uid mint attempts")
}

func (e *Engine) buildDescriptor(uid string, product *models.Product, variant *models.ProductVariant, input ReceiveInput) assets.ItemDescriptor {
	descriptor := assets.ItemDescriptor{
		ItemUID:          uid,
		ProductName:      product.Name,
		ShortDescription: product.ShortDescription,
		BatchNumber:      input.BatchNumber,
		ProductionDate:   input.ProductionDate,
		ExpiryDate:       input.ExpiryDate,
		Price:            product.BasePrice,
	}
	if variant != nil {
		price := variant.Price
		descriptor.Price = &price
		descriptor.Extras = append(descriptor.Extras, assets.Extra{
			Key:   "Net weight",
			Value: fmt.Sprintf("%d g", variant.WeightGrams),
		})
	}
	return descriptor
}

func receiveAuditDetails(input ReceiveInput, uids []string) map[string]any {
	details := map[string]any{
		"quantity_received": input.Quantity,
		"item_count":        len(uids),
	}
	if input.BatchNumber != nil {
		details["batch_number"] = *input.BatchNumber
	}
	if len(uids) > maxAuditUIDs {
		details["item_uids"] = uids[:maxAuditUIDs]
		details["item_uids_truncated"] = true
	} else {
		details["item_uids"] = uids
	}
	return details
}

// cleanupArtifacts removes files written for a rolled-back batch. Unlink
// failures are logged and merged, never surfaced to the caller; the
// database is already consistent and a leftover file is a disk-usage
// problem, not a correctness one.
func (e *Engine) cleanupArtifacts(ctx context.Context, paths []string) {
	var errs error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = multierr.Append(errs, fmt.Errorf("removing %s: %w", path, err))
		}
	}
	if errs != nil && e.logg != nil {
		e.logg.Error(ctx, "failed to remove artifacts of rolled-back batch", errs)
	}
}

// movementForTransition maps a status transition onto its ledger entry.
// Transitions that take a unit out of sellable stock, or put one back,
// carry a signed quantity; everything else is an informational
// status_change row.
func movementForTransition(from, to enums.SerializedItemStatus) (enums.MovementType, int) {
	inStock := from == enums.ItemStatusAvailable || from == enums.ItemStatusReservedInternal
	switch {
	case to == enums.ItemStatusDamaged && inStock:
		return enums.MovementDamageRemoval, -1
	case to == enums.ItemStatusRecalled && inStock:
		return enums.MovementRecallRemoval, -1
	case to == enums.ItemStatusMissing && inStock:
		return enums.MovementAdjustmentOut, -1
	case to == enums.ItemStatusAvailable && from == enums.ItemStatusDamaged:
		return enums.MovementReturnToStock, 1
	default:
		return enums.StatusChangeMovement(from, to), 0
	}
}

// SetStatus applies a manual status transition per the item state
// machine, with the matching ledger row and audit entry.
func (e *Engine) SetStatus(ctx context.Context, actor audit.Actor, uid string, newStatus enums.SerializedItemStatus, notes *string) (*models.SerializedItem, error) {
	if !newStatus.IsValid() {
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid status %q", newStatus))
	}

	var updated *models.SerializedItem
	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		items := e.items.WithTx(tx)
		item, err := items.FindByUIDForUpdate(ctx, uid)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "serialized item not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "fetching serialized item")
		}

		from := item.Status
		if !enums.CanTransitionManually(from, newStatus) {
			return apperrors.New(apperrors.CodeStateConflict,
				fmt.Sprintf("cannot transition item from %s to %s manually", from, newStatus))
		}

		item.Status = newStatus
		if err := items.Update(ctx, item); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating serialized item")
		}

		movementType, delta := movementForTransition(from, newStatus)
		qty := delta
		if _, err := e.movements.Append(ctx, tx, ledger.AppendInput{
			ProductID:        item.ProductID,
			VariantID:        item.VariantID,
			SerializedItemID: &item.ID,
			Type:             movementType,
			QuantityChange:   &qty,
			Reason:           fmt.Sprintf("status change %s to %s", from, newStatus),
			RelatedUserID:    actor.UserID,
			Notes:            notes,
		}); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "appending status movement")
		}

		updated = item
		details := map[string]any{"from": from.String(), "to": newStatus.String()}
		if notes != nil {
			details["notes"] = *notes
		}
		return e.auditor.Record(ctx, tx, audit.Event{
			Action:  "serialized_item_status_change",
			Actor:   actor,
			Target:  &audit.Target{Type: "serialized_item", ID: uid},
			Details: details,
			Status:  enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		e.auditor.RecordOutOfBand(ctx, audit.Event{
			Action: "serialized_item_status_change",
			Actor:  actor,
			Target: &audit.Target{Type: "serialized_item", ID: uid},
			Details: map[string]any{
				"requested_status": newStatus.String(),
				"error":            err.Error(),
			},
			Status: enums.AuditStatusFailure,
		})
		return nil, err
	}
	return updated, nil
}

// MarkSold transitions the listed items to sold against an order. All
// items must be available or allocated; otherwise nothing is sold.
func (e *Engine) MarkSold(ctx context.Context, actor audit.Actor, orderID uuid.UUID, uids []string) error {
	if orderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order_id is required")
	}
	if len(uids) == 0 {
		return apperrors.New(apperrors.CodeValidation, "at least one item uid is required")
	}

	saleDate := time.Now().UTC()
	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		items := e.items.WithTx(tx)
		for _, uid := range uids {
			item, err := items.FindByUIDForUpdate(ctx, uid)
			if err != nil {
				if db.IsNotFound(err) {
					return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("serialized item %s not found", uid))
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "fetching serialized item")
			}
			if item.Status != enums.ItemStatusAvailable && item.Status != enums.ItemStatusAllocated {
				return apperrors.New(apperrors.CodeStateConflict,
					fmt.Sprintf("cannot transition item from %s to %s", item.Status, enums.ItemStatusSold))
			}

			item.Status = enums.ItemStatusSold
			item.SoldOrderID = &orderID
			if err := items.Update(ctx, item); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "updating serialized item")
			}

			minusOne := -1
			if _, err := e.movements.Append(ctx, tx, ledger.AppendInput{
				ProductID:        item.ProductID,
				VariantID:        item.VariantID,
				SerializedItemID: &item.ID,
				Type:             enums.MovementSale,
				QuantityChange:   &minusOne,
				Reason:           "serialized item sold",
				RelatedOrderID:   &orderID,
				RelatedUserID:    actor.UserID,
				MovementDate:     saleDate,
			}); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "appending sale movement")
			}
		}

		return e.auditor.Record(ctx, tx, audit.Event{
			Action: "serialized_items_sold",
			Actor:  actor,
			Target: &audit.Target{Type: "order", ID: orderID.String()},
			Details: map[string]any{
				"item_uids":  uids,
				"item_count": len(uids),
			},
			Status: enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		e.auditor.RecordOutOfBand(ctx, audit.Event{
			Action: "serialized_items_sold",
			Actor:  actor,
			Target: &audit.Target{Type: "order", ID: orderID.String()},
			Details: map[string]any{
				"item_uids": uids,
				"error":     err.Error(),
			},
			Status: enums.AuditStatusFailure,
		})
	}
	return err
}

// ReserveForOrder moves available items into allocated while an order is
// being settled. Allocation keeps the unit counted in stock.
func (e *Engine) ReserveForOrder(ctx context.Context, actor audit.Actor, orderID uuid.UUID, uids []string) error {
	return e.moveForOrder(ctx, actor, orderID, uids,
		enums.ItemStatusAvailable, enums.ItemStatusAllocated, "serialized_items_allocated")
}

// ReleaseAllocation returns allocated items to available, e.g. after a
// cancelled checkout.
func (e *Engine) ReleaseAllocation(ctx context.Context, actor audit.Actor, orderID uuid.UUID, uids []string) error {
	return e.moveForOrder(ctx, actor, orderID, uids,
		enums.ItemStatusAllocated, enums.ItemStatusAvailable, "serialized_items_released")
}

func (e *Engine) moveForOrder(ctx context.Context, actor audit.Actor, orderID uuid.UUID, uids []string, from, to enums.SerializedItemStatus, action string) error {
	if orderID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "order_id is required")
	}
	if len(uids) == 0 {
		return apperrors.New(apperrors.CodeValidation, "at least one item uid is required")
	}

	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		items := e.items.WithTx(tx)
		for _, uid := range uids {
			item, err := items.FindByUIDForUpdate(ctx, uid)
			if err != nil {
				if db.IsNotFound(err) {
					return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("serialized item %s not found", uid))
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "fetching serialized item")
			}
			if item.Status != from {
				return apperrors.New(apperrors.CodeStateConflict,
					fmt.Sprintf("cannot transition item from %s to %s", item.Status, to))
			}

			item.Status = to
			if err := items.Update(ctx, item); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "updating serialized item")
			}

			zero := 0
			if _, err := e.movements.Append(ctx, tx, ledger.AppendInput{
				ProductID:        item.ProductID,
				VariantID:        item.VariantID,
				SerializedItemID: &item.ID,
				Type:             enums.StatusChangeMovement(from, to),
				QuantityChange:   &zero,
				Reason:           fmt.Sprintf("status change %s to %s", from, to),
				RelatedOrderID:   &orderID,
				RelatedUserID:    actor.UserID,
			}); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "appending allocation movement")
			}
		}

		return e.auditor.Record(ctx, tx, audit.Event{
			Action: action,
			Actor:  actor,
			Target: &audit.Target{Type: "order", ID: orderID.String()},
			Details: map[string]any{
				"item_uids":  uids,
				"item_count": len(uids),
			},
			Status: enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		e.auditor.RecordOutOfBand(ctx, audit.Event{
			Action: action,
			Actor:  actor,
			Target: &audit.Target{Type: "order", ID: orderID.String()},
			Details: map[string]any{
				"item_uids": uids,
				"error":     err.Error(),
			},
			Status: enums.AuditStatusFailure,
		})
	}
	return err
}

// AdjustAggregate corrects the aggregate counters without touching any
// serialized row. Weight adjustments are only meaningful for
// variable_weight products.
func (e *Engine) AdjustAggregate(ctx context.Context, actor audit.Actor, input AdjustInput) error {
	if input.ProductID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "product_id is required")
	}
	if input.Reason == "" {
		return apperrors.New(apperrors.CodeValidation, "reason is required")
	}
	qtyDelta := 0
	if input.QuantityDelta != nil {
		qtyDelta = *input.QuantityDelta
	}
	weightDelta := 0
	if input.WeightDeltaGrams != nil {
		weightDelta = *input.WeightDeltaGrams
	}
	if qtyDelta == 0 && weightDelta == 0 {
		return apperrors.New(apperrors.CodeValidation, "adjustment requires a non-zero quantity or weight delta")
	}

	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := e.products.WithTx(tx).FindByID(ctx, input.ProductID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "product not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "fetching product")
		}
		if weightDelta != 0 && product.Type != enums.ProductTypeVariableWeight {
			return apperrors.New(apperrors.CodeValidation, "weight adjustments apply only to variable_weight products")
		}
		if input.VariantID != nil {
			variant, err := e.products.WithTx(tx).FindVariantByID(ctx, *input.VariantID)
			if err != nil {
				if db.IsNotFound(err) {
					return apperrors.New(apperrors.CodeNotFound, "variant not found")
				}
				return apperrors.Wrap(apperrors.CodeInternal, err, "fetching variant")
			}
			if variant.ProductID != product.ID {
				return apperrors.New(apperrors.CodeValidation, "variant does not belong to the product")
			}
		}

		if qtyDelta != 0 {
			movementType := enums.MovementAdjustmentIn
			if qtyDelta < 0 {
				movementType = enums.MovementAdjustmentOut
			}
			if _, err := e.movements.Append(ctx, tx, ledger.AppendInput{
				ProductID:      input.ProductID,
				VariantID:      input.VariantID,
				Type:           movementType,
				QuantityChange: &qtyDelta,
				Reason:         input.Reason,
				RelatedUserID:  actor.UserID,
			}); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "appending quantity adjustment")
			}
		}
		if weightDelta != 0 {
			movementType := enums.MovementAdjustmentInWeight
			if weightDelta < 0 {
				movementType = enums.MovementAdjustmentOutWeight
			}
			if _, err := e.movements.Append(ctx, tx, ledger.AppendInput{
				ProductID:         input.ProductID,
				VariantID:         input.VariantID,
				Type:              movementType,
				WeightChangeGrams: &weightDelta,
				Reason:            input.Reason,
				RelatedUserID:     actor.UserID,
			}); err != nil {
				return apperrors.Wrap(apperrors.CodeInternal, err, "appending weight adjustment")
			}
		}

		return e.auditor.Record(ctx, tx, audit.Event{
			Action: "aggregate_stock_adjustment",
			Actor:  actor,
			Target: &audit.Target{Type: "product", ID: input.ProductID.String()},
			Details: map[string]any{
				"quantity_delta": qtyDelta,
				"weight_delta_g": weightDelta,
				"reason":         input.Reason,
			},
			Status: enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		e.auditor.RecordOutOfBand(ctx, audit.Event{
			Action: "aggregate_stock_adjustment",
			Actor:  actor,
			Target: &audit.Target{Type: "product", ID: input.ProductID.String()},
			Details: map[string]any{
				"quantity_delta": qtyDelta,
				"weight_delta_g": weightDelta,
				"error":          err.Error(),
			},
			Status: enums.AuditStatusFailure,
		})
	}
	return err
}

// GetItem returns one serialized item by its UID.
func (e *Engine) GetItem(ctx context.Context, uid string) (*models.SerializedItem, error) {
	item, err := e.items.FindByUID(ctx, uid)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "serialized item not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "fetching serialized item")
	}
	return item, nil
}

// ListItems returns a filtered page of serialized items and the total
// match count.
func (e *Engine) ListItems(ctx context.Context, filter ListFilter, limit, offset int) ([]models.SerializedItem, int64, error) {
	items, total, err := e.items.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeInternal, err, "listing serialized items")
	}
	return items, total, nil
}
