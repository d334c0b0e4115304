package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("unwrapping sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductVariant{},
		&models.SerializedItem{},
		&models.AuditEntry{},
	); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	client := db.NewWithConn(conn)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	auditor, err := audit.NewRecorder(audit.NewRepository(conn), client, logg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	svc, err := NewService(client, NewRepository(conn), auditor, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, conn
}

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func testActor() audit.Actor {
	return audit.Actor{Username: "curator", IP: "127.0.0.1"}
}

func TestCreateProductSimple(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, testActor(), CreateProductInput{
		SKUPrefix: "TRF-NOIR",
		Slug:      "tuber-melanosporum",
		Name:      "Tuber Melanosporum",
		Type:      enums.ProductTypeSimple,
		BasePrice: decPtr("85.00"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if product.ID == uuid.Nil {
		t.Fatal("expected minted product ID")
	}
	if !product.IsActive {
		t.Fatal("new product should be active")
	}

	var entries []models.AuditEntry
	if err := conn.Find(&entries).Error; err != nil {
		t.Fatalf("listing audit entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "product.create" {
		t.Fatalf("expected one product.create audit entry, got %+v", entries)
	}
}

func TestCreateProductValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	uom := enums.UnitGram

	cases := []struct {
		name  string
		input CreateProductInput
	}{
		{"missing fields", CreateProductInput{Type: enums.ProductTypeSimple}},
		{"simple without price", CreateProductInput{
			SKUPrefix: "A", Slug: "a", Name: "A", Type: enums.ProductTypeSimple,
		}},
		{"simple with unit", CreateProductInput{
			SKUPrefix: "A", Slug: "a", Name: "A", Type: enums.ProductTypeSimple,
			BasePrice: decPtr("10.00"), UnitOfMeasure: &uom,
		}},
		{"variable without unit", CreateProductInput{
			SKUPrefix: "A", Slug: "a", Name: "A", Type: enums.ProductTypeVariableWeight,
		}},
	}
	for _, tc := range cases {
		_, err := svc.CreateProduct(ctx, testActor(), tc.input)
		appErr := apperrors.As(err)
		if appErr == nil || appErr.Code() != apperrors.CodeValidation {
			t.Errorf("%s: want VALIDATION_ERROR, got %v", tc.name, err)
		}
	}
}

func TestCreateProductDuplicatePrefix(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	input := CreateProductInput{
		SKUPrefix: "TRF-NOIR",
		Slug:      "tuber-melanosporum",
		Name:      "Tuber Melanosporum",
		Type:      enums.ProductTypeSimple,
		BasePrice: decPtr("85.00"),
	}
	if _, err := svc.CreateProduct(ctx, testActor(), input); err != nil {
		t.Fatalf("first CreateProduct: %v", err)
	}
	input.Slug = "tuber-melanosporum-extra"
	_, err := svc.CreateProduct(ctx, testActor(), input)
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeConflict {
		t.Fatalf("want CONFLICT, got %v", err)
	}

	var productCount int64
	if err := conn.Model(&models.Product{}).Count(&productCount).Error; err != nil {
		t.Fatalf("counting products: %v", err)
	}
	if productCount != 1 {
		t.Fatalf("expected the rejected create to leave 1 product, got %d", productCount)
	}

	var failures int64
	err = conn.Model(&models.AuditEntry{}).
		Where("action = ? AND status = ?", "product.create", enums.AuditStatusFailure).
		Count(&failures).Error
	if err != nil {
		t.Fatalf("counting failure audits: %v", err)
	}
	if failures != 1 {
		t.Fatalf("expected 1 failure audit entry, got %d", failures)
	}
}

func TestDeleteProductBlockedByLiveItems(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, testActor(), CreateProductInput{
		SKUPrefix: "TRF-ALBA",
		Slug:      "tuber-magnatum",
		Name:      "Tuber Magnatum",
		Type:      enums.ProductTypeSimple,
		BasePrice: decPtr("320.00"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	item := &models.SerializedItem{
		ID:           uuid.New(),
		ItemUID:      "TRF-ALBA-0123456789AB",
		ProductID:    product.ID,
		Status:       enums.ItemStatusAvailable,
		QRPath:       "qr_codes/x.png",
		PassportPath: "passports/x.html",
		LabelPath:    "labels/x.png",
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("seeding item: %v", err)
	}

	err = svc.DeleteProduct(ctx, testActor(), product.ID)
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeConflict {
		t.Fatalf("want CONFLICT, got %v", err)
	}

	var failures int64
	err = conn.Model(&models.AuditEntry{}).
		Where("action = ? AND status = ?", "product.delete", enums.AuditStatusFailure).
		Count(&failures).Error
	if err != nil {
		t.Fatalf("counting failure audits: %v", err)
	}
	if failures != 1 {
		t.Fatalf("expected 1 failure audit entry for the blocked delete, got %d", failures)
	}

	if err := conn.Model(item).Update("status", enums.ItemStatusSold).Error; err != nil {
		t.Fatalf("marking item sold: %v", err)
	}
	if err := svc.DeleteProduct(ctx, testActor(), product.ID); err != nil {
		t.Fatalf("DeleteProduct after terminal status: %v", err)
	}
	if _, err := svc.GetProduct(ctx, product.ID); apperrors.As(err) == nil {
		t.Fatal("expected NOT_FOUND after delete")
	}
}

func TestCreateVariantRequiresVariableWeight(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	simple, err := svc.CreateProduct(ctx, testActor(), CreateProductInput{
		SKUPrefix: "TRF-NOIR",
		Slug:      "tuber-melanosporum",
		Name:      "Tuber Melanosporum",
		Type:      enums.ProductTypeSimple,
		BasePrice: decPtr("85.00"),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	_, err = svc.CreateVariant(ctx, testActor(), simple.ID, CreateVariantInput{
		SKUSuffix:   "20G",
		WeightGrams: 20,
		Price:       decimal.RequireFromString("45.00"),
	})
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeStateConflict {
		t.Fatalf("want STATE_CONFLICT, got %v", err)
	}

	uom := enums.UnitGram
	variable, err := svc.CreateProduct(ctx, testActor(), CreateProductInput{
		SKUPrefix:     "TRF-BRUMALE",
		Slug:          "tuber-brumale",
		Name:          "Tuber Brumale",
		Type:          enums.ProductTypeVariableWeight,
		UnitOfMeasure: &uom,
	})
	if err != nil {
		t.Fatalf("CreateProduct variable: %v", err)
	}
	variant, err := svc.CreateVariant(ctx, testActor(), variable.ID, CreateVariantInput{
		SKUSuffix:   "20G",
		WeightGrams: 20,
		Price:       decimal.RequireFromString("45.00"),
	})
	if err != nil {
		t.Fatalf("CreateVariant: %v", err)
	}
	if variant.ID == uuid.Nil {
		t.Fatal("expected minted variant ID")
	}
}
