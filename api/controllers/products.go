package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/maisonnoire/trufflehouse-backend/api/middleware"
	"github.com/maisonnoire/trufflehouse-backend/api/responses"
	"github.com/maisonnoire/trufflehouse-backend/api/validators"
	"github.com/maisonnoire/trufflehouse-backend/internal/catalog"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

type createProductRequest struct {
	SKUPrefix        string  `json:"sku_prefix" validate:"required,max=16"`
	Slug             string  `json:"slug" validate:"required,max=128"`
	Name             string  `json:"name" validate:"required,max=256"`
	ShortDescription *string `json:"short_description,omitempty"`
	Type             string  `json:"type" validate:"required"`
	BasePrice        *string `json:"base_price,omitempty"`
	UnitOfMeasure    *string `json:"unit_of_measure,omitempty"`
}

func (req createProductRequest) toInput() (catalog.CreateProductInput, error) {
	input := catalog.CreateProductInput{
		SKUPrefix:        req.SKUPrefix,
		Slug:             req.Slug,
		Name:             req.Name,
		ShortDescription: req.ShortDescription,
	}

	productType, err := enums.ParseProductType(req.Type)
	if err != nil {
		return input, apperrors.Wrap(apperrors.CodeValidation, err, "invalid product type")
	}
	input.Type = productType

	if req.BasePrice != nil {
		price, err := decimal.NewFromString(*req.BasePrice)
		if err != nil {
			return input, apperrors.Wrap(apperrors.CodeValidation, err, "invalid base_price")
		}
		input.BasePrice = &price
	}
	if req.UnitOfMeasure != nil {
		uom, err := enums.ParseUnitOfMeasure(*req.UnitOfMeasure)
		if err != nil {
			return input, apperrors.Wrap(apperrors.CodeValidation, err, "invalid unit_of_measure")
		}
		input.UnitOfMeasure = &uom
	}
	return input, nil
}

// AdminCreateProduct mints a new catalogue entry.
func AdminCreateProduct(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), middleware.ActorFromRequest(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=256"`
	ShortDescription *string `json:"short_description,omitempty"`
	BasePrice        *string `json:"base_price,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
}

// AdminUpdateProduct applies a partial catalogue update.
func AdminUpdateProduct(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := productIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.UpdateProductInput{
			Name:             payload.Name,
			ShortDescription: payload.ShortDescription,
			IsActive:         payload.IsActive,
		}
		if payload.BasePrice != nil {
			price, err := decimal.NewFromString(*payload.BasePrice)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid base_price"))
				return
			}
			input.BasePrice = &price
		}

		product, err := svc.UpdateProduct(r.Context(), middleware.ActorFromRequest(r), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct removes a product with no serialized items in
// circulation.
func AdminDeleteProduct(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := productIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), middleware.ActorFromRequest(r), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// AdminListProducts returns the full catalogue.
func AdminListProducts(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.ListProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

type createVariantRequest struct {
	SKUSuffix   string `json:"sku_suffix" validate:"required,max=16"`
	WeightGrams int    `json:"weight_grams" validate:"required,min=1"`
	Price       string `json:"price" validate:"required"`
}

// AdminCreateVariant adds a weight option to a variable_weight product.
func AdminCreateVariant(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := productIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createVariantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := decimal.NewFromString(payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, apperrors.Wrap(apperrors.CodeValidation, err, "invalid price"))
			return
		}

		variant, err := svc.CreateVariant(r.Context(), middleware.ActorFromRequest(r), id, catalog.CreateVariantInput{
			SKUSuffix:   payload.SKUSuffix,
			WeightGrams: payload.WeightGrams,
			Price:       price,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, variant)
	}
}

func productIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "productID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeValidation, err, "invalid product id")
	}
	return id, nil
}
