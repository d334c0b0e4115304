package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

// CreateProductInput carries the fields to mint a new catalogue entry.
type CreateProductInput struct {
	SKUPrefix        string
	Slug             string
	Name             string
	ShortDescription *string
	Type             enums.ProductType
	BasePrice        *decimal.Decimal
	UnitOfMeasure    *enums.UnitOfMeasure
}

// UpdateProductInput carries a partial product update; nil fields are
// left untouched.
type UpdateProductInput struct {
	Name             *string
	ShortDescription *string
	BasePrice        *decimal.Decimal
	IsActive         *bool
}

// CreateVariantInput carries the fields for a weight option.
type CreateVariantInput struct {
	SKUSuffix   string
	WeightGrams int
	Price       decimal.Decimal
}

// Service owns catalogue writes. Every mutation commits together with its
// audit entry.
type Service struct {
	client  *db.Client
	repo    *Repository
	auditor *audit.Recorder
	logg    *logger.Logger
}

// NewService wires a catalog service and validates its collaborators.
func NewService(client *db.Client, repo *Repository, auditor *audit.Recorder, logg *logger.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &Service{client: client, repo: repo, auditor: auditor, logg: logg}, nil
}

func validateCreateProduct(input CreateProductInput) error {
	if input.SKUPrefix == "" || input.Slug == "" || input.Name == "" {
		return apperrors.New(apperrors.CodeValidation, "sku_prefix, slug and name are required")
	}
	if !input.Type.IsValid() {
		return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid product type %q", input.Type))
	}
	switch input.Type {
	case enums.ProductTypeSimple:
		if input.BasePrice == nil {
			return apperrors.New(apperrors.CodeValidation, "base_price is required for simple products")
		}
		if input.UnitOfMeasure != nil {
			return apperrors.New(apperrors.CodeValidation, "unit_of_measure applies only to variable_weight products")
		}
	case enums.ProductTypeVariableWeight:
		if input.UnitOfMeasure == nil {
			return apperrors.New(apperrors.CodeValidation, "unit_of_measure is required for variable_weight products")
		}
		if !input.UnitOfMeasure.IsValid() {
			return apperrors.New(apperrors.CodeValidation, fmt.Sprintf("invalid unit of measure %q", *input.UnitOfMeasure))
		}
	}
	if input.BasePrice != nil && input.BasePrice.IsNegative() {
		return apperrors.New(apperrors.CodeValidation, "base_price must not be negative")
	}
	return nil
}

// CreateProduct mints a product and audits the write in the same
// transaction.
func (s *Service) CreateProduct(ctx context.Context, actor audit.Actor, input CreateProductInput) (*models.Product, error) {
	if err := validateCreateProduct(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		SKUPrefix:        input.SKUPrefix,
		Slug:             input.Slug,
		Name:             input.Name,
		ShortDescription: input.ShortDescription,
		Type:             input.Type,
		BasePrice:        input.BasePrice,
		UnitOfMeasure:    input.UnitOfMeasure,
		IsActive:         true,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).CreateProduct(ctx, product)
		if err != nil {
			if db.IsUniqueViolation(err, "sku_prefix") || db.IsUniqueViolation(err, "slug") {
				return apperrors.New(apperrors.CodeConflict, "a product with this sku_prefix or slug already exists")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating product")
		}
		product = created
		return s.auditor.Record(ctx, tx, audit.Event{
			Action: "product.create",
			Actor:  actor,
			Target: &audit.Target{Type: "product", ID: product.ID.String()},
			Details: map[string]any{
				"sku_prefix": product.SKUPrefix,
				"slug":       product.Slug,
				"type":       product.Type.String(),
			},
			Status: enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		s.auditor.RecordOutOfBand(ctx, audit.Event{
			Action:  "product.create",
			Actor:   actor,
			Details: map[string]any{"sku_prefix": input.SKUPrefix, "error": err.Error()},
			Status:  enums.AuditStatusFailure,
		})
		return nil, err
	}
	return product, nil
}

// GetProduct returns a product with its variants.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "fetching product")
	}
	return product, nil
}

// UpdateProduct applies a partial update and audits it.
func (s *Service) UpdateProduct(ctx context.Context, actor audit.Actor, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	if input.BasePrice != nil && input.BasePrice.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "base_price must not be negative")
	}

	var updated *models.Product
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "product not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "fetching product")
		}
		changed := map[string]any{}
		if input.Name != nil {
			product.Name = *input.Name
			changed["name"] = *input.Name
		}
		if input.ShortDescription != nil {
			product.ShortDescription = input.ShortDescription
			changed["short_description"] = *input.ShortDescription
		}
		if input.BasePrice != nil {
			if product.Type != enums.ProductTypeSimple {
				return apperrors.New(apperrors.CodeValidation, "base_price applies only to simple products")
			}
			product.BasePrice = input.BasePrice
			changed["base_price"] = input.BasePrice.String()
		}
		if input.IsActive != nil {
			product.IsActive = *input.IsActive
			changed["is_active"] = *input.IsActive
		}
		updated, err = repo.UpdateProduct(ctx, product)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "updating product")
		}
		return s.auditor.Record(ctx, tx, audit.Event{
			Action:  "product.update",
			Actor:   actor,
			Target:  &audit.Target{Type: "product", ID: id.String()},
			Details: changed,
			Status:  enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		s.auditor.RecordOutOfBand(ctx, audit.Event{
			Action:  "product.update",
			Actor:   actor,
			Target:  &audit.Target{Type: "product", ID: id.String()},
			Details: map[string]any{"error": err.Error()},
			Status:  enums.AuditStatusFailure,
		})
		return nil, err
	}
	return updated, nil
}

// DeleteProduct removes a product. Deletion is refused while any serialized
// item of the product is in a non-terminal status.
func (s *Service) DeleteProduct(ctx context.Context, actor audit.Actor, id uuid.UUID) error {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "product not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "fetching product")
		}
		live, err := repo.CountNonTerminalItems(ctx, id)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "counting live serialized items")
		}
		if live > 0 {
			return apperrors.New(apperrors.CodeConflict,
				fmt.Sprintf("product has %d serialized items in circulation", live)).
				WithDetails(map[string]any{"live_items": live})
		}
		if err := repo.DeleteProduct(ctx, id); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, err, "deleting product")
		}
		return s.auditor.Record(ctx, tx, audit.Event{
			Action:  "product.delete",
			Actor:   actor,
			Target:  &audit.Target{Type: "product", ID: id.String()},
			Details: map[string]any{"sku_prefix": product.SKUPrefix},
			Status:  enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		s.auditor.RecordOutOfBand(ctx, audit.Event{
			Action:  "product.delete",
			Actor:   actor,
			Target:  &audit.Target{Type: "product", ID: id.String()},
			Details: map[string]any{"error": err.Error()},
			Status:  enums.AuditStatusFailure,
		})
	}
	return err
}

// ListProducts returns the full catalogue.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing products")
	}
	return products, nil
}

// CreateVariant adds a weight option to a variable_weight product.
func (s *Service) CreateVariant(ctx context.Context, actor audit.Actor, productID uuid.UUID, input CreateVariantInput) (*models.ProductVariant, error) {
	if input.SKUSuffix == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "sku_suffix is required")
	}
	if input.WeightGrams <= 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "weight_grams must be positive")
	}
	if input.Price.IsNegative() {
		return nil, apperrors.New(apperrors.CodeValidation, "price must not be negative")
	}

	variant := &models.ProductVariant{
		ProductID:   productID,
		SKUSuffix:   input.SKUSuffix,
		WeightGrams: input.WeightGrams,
		Price:       input.Price,
		IsActive:    true,
	}
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, productID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperrors.New(apperrors.CodeNotFound, "product not found")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "fetching product")
		}
		if product.Type != enums.ProductTypeVariableWeight {
			return apperrors.New(apperrors.CodeStateConflict, "variants apply only to variable_weight products")
		}
		created, err := repo.CreateVariant(ctx, variant)
		if err != nil {
			if db.IsUniqueViolation(err, "sku_suffix") {
				return apperrors.New(apperrors.CodeConflict, "a variant with this sku_suffix already exists on the product")
			}
			return apperrors.Wrap(apperrors.CodeInternal, err, "creating variant")
		}
		variant = created
		return s.auditor.Record(ctx, tx, audit.Event{
			Action: "product.variant.create",
			Actor:  actor,
			Target: &audit.Target{Type: "product_variant", ID: variant.ID.String()},
			Details: map[string]any{
				"product_id": productID.String(),
				"sku_suffix": variant.SKUSuffix,
			},
			Status: enums.AuditStatusSuccess,
		})
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

// ListVariants returns the variants of a product.
func (s *Service) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	variants, err := s.repo.ListVariants(ctx, productID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "listing variants")
	}
	return variants, nil
}
