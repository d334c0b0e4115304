package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maisonnoire/trufflehouse-backend/api/middleware"
	"github.com/maisonnoire/trufflehouse-backend/api/responses"
	"github.com/maisonnoire/trufflehouse-backend/api/validators"
	"github.com/maisonnoire/trufflehouse-backend/internal/serial"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/pagination"
)

const dateLayout = "2006-01-02"

type receiveSerializedRequest struct {
	ProductID        string  `json:"product_id" validate:"required,uuid"`
	VariantID        *string `json:"variant_id,omitempty" validate:"omitempty,uuid"`
	QuantityReceived int     `json:"quantity_received" validate:"required,min=1"`
	BatchNumber      *string `json:"batch_number,omitempty" validate:"omitempty,max=64"`
	ProductionDate   *string `json:"production_date,omitempty"`
	ExpiryDate       *string `json:"expiry_date,omitempty"`
	CostPrice        *string `json:"cost_price,omitempty"`
}

func (req receiveSerializedRequest) toInput() (serial.ReceiveInput, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return serial.ReceiveInput{}, apperrors.Wrap(apperrors.CodeValidation, err, "invalid product_id")
	}
	input := serial.ReceiveInput{
		ProductID:   productID,
		Quantity:    req.QuantityReceived,
		BatchNumber: req.BatchNumber,
	}

	if req.VariantID != nil {
		variantID, err := uuid.Parse(*req.VariantID)
		if err != nil {
			return input, apperrors.Wrap(apperrors.CodeValidation, err, "invalid variant_id")
		}
		input.VariantID = &variantID
	}
	if input.ProductionDate, err = parseDate(req.ProductionDate, "production_date"); err != nil {
		return input, err
	}
	if input.ExpiryDate, err = parseDate(req.ExpiryDate, "expiry_date"); err != nil {
		return input, err
	}
	if req.CostPrice != nil {
		price, err := decimal.NewFromString(*req.CostPrice)
		if err != nil {
			return input, apperrors.Wrap(apperrors.CodeValidation, err, "invalid cost_price")
		}
		input.CostPrice = &price
	}
	return input, nil
}

func parseDate(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid "+field).
			WithDetails(map[string]any{"field": field, "format": dateLayout})
	}
	return &parsed, nil
}

// ReceiveSerialized turns an incoming batch into serialized items.
func ReceiveSerialized(engine *serial.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload receiveSerializedRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		uids, err := engine.ReceiveSerialized(r.Context(), middleware.ActorFromRequest(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"item_uids": uids})
	}
}

type setItemStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1024"`
}

// SetItemStatus applies a manual status transition to one item.
func SetItemStatus(engine *serial.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "itemUID")

		var payload setItemStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseSerializedItemStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid status"))
			return
		}

		item, err := engine.SetStatus(r.Context(), middleware.ActorFromRequest(r), uid, status, payload.Notes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

type adjustStockRequest struct {
	ProductID        string  `json:"product_id" validate:"required,uuid"`
	VariantID        *string `json:"variant_id,omitempty" validate:"omitempty,uuid"`
	QuantityDelta    *int    `json:"quantity_delta,omitempty"`
	WeightDeltaGrams *int    `json:"weight_delta_grams,omitempty"`
	Reason           string  `json:"reason" validate:"required,max=256"`
}

// AdjustStock corrects the aggregate counters.
func AdjustStock(engine *serial.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid product_id"))
			return
		}
		input := serial.AdjustInput{
			ProductID:        productID,
			QuantityDelta:    payload.QuantityDelta,
			WeightDeltaGrams: payload.WeightDeltaGrams,
			Reason:           payload.Reason,
		}
		if payload.VariantID != nil {
			variantID, err := uuid.Parse(*payload.VariantID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid variant_id"))
				return
			}
			input.VariantID = &variantID
		}

		if err := engine.AdjustAggregate(r.Context(), middleware.ActorFromRequest(r), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "adjusted"})
	}
}

// ListSerializedItems returns a filtered page of items.
func ListSerializedItems(engine *serial.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := listFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, total, err := engine.ListItems(r.Context(), filter, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":  items,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

// GetSerializedItem returns one item by UID.
func GetSerializedItem(engine *serial.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := engine.GetItem(r.Context(), chi.URLParam(r, "itemUID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func listFilterFromQuery(r *http.Request) (serial.ListFilter, error) {
	var filter serial.ListFilter
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("product_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperrors.Wrap(apperrors.CodeValidation, err, "invalid product_id")
		}
		filter.ProductID = &id
	}
	if raw := strings.TrimSpace(query.Get("variant_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, apperrors.Wrap(apperrors.CodeValidation, err, "invalid variant_id")
		}
		filter.VariantID = &id
	}
	if raw := strings.TrimSpace(query.Get("batch_number")); raw != "" {
		filter.BatchNumber = &raw
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseSerializedItemStatus(raw)
		if err != nil {
			return filter, apperrors.Wrap(apperrors.CodeValidation, err, "invalid status")
		}
		filter.Status = &status
	}
	return filter, nil
}
