package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
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
		&models.Product{},
		&models.ProductVariant{},
		&models.SerializedItem{},
		&models.StockMovement{},
	); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		SKUPrefix: "TRF-NOIR",
		Slug:      "tuber-melanosporum",
		Name:      "Tuber Melanosporum",
		Type:      enums.ProductTypeSimple,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seeding product: %v", err)
	}
	return product
}

func intPtr(v int) *int { return &v }

func TestAppendUpdatesAggregate(t *testing.T) {
	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	product := seedProduct(t, conn)
	ctx := context.Background()

	deltas := []int{3, -1, 5}
	types := []enums.MovementType{
		enums.MovementReceiveSerialized,
		enums.MovementSale,
		enums.MovementAdjustmentIn,
	}
	for i, d := range deltas {
		_, err := svc.Append(ctx, conn, AppendInput{
			ProductID:      product.ID,
			Type:           types[i],
			QuantityChange: intPtr(d),
			Reason:         "test movement",
		})
		if err != nil {
			t.Fatalf("Append(%d): %v", d, err)
		}
	}

	var got models.Product
	if err := conn.First(&got, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reloading product: %v", err)
	}
	if got.AggregateStockQuantity != 7 {
		t.Fatalf("aggregate quantity = %d, want 7", got.AggregateStockQuantity)
	}

	sum, err := svc.SumQuantity(ctx, product.ID, nil)
	if err != nil {
		t.Fatalf("SumQuantity: %v", err)
	}
	if sum != got.AggregateStockQuantity {
		t.Fatalf("movement sum %d does not match aggregate %d", sum, got.AggregateStockQuantity)
	}
}

func TestAppendVariantDelta(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := NewService(NewRepository(conn))
	product := seedProduct(t, conn)
	variant := &models.ProductVariant{
		ID:          uuid.New(),
		ProductID:   product.ID,
		SKUSuffix:   "20G",
		WeightGrams: 20,
	}
	if err := conn.Create(variant).Error; err != nil {
		t.Fatalf("seeding variant: %v", err)
	}

	_, err := svc.Append(context.Background(), conn, AppendInput{
		ProductID:      product.ID,
		VariantID:      &variant.ID,
		Type:           enums.MovementReceiveSerialized,
		QuantityChange: intPtr(4),
		Reason:         "batch intake",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	var got models.ProductVariant
	if err := conn.First(&got, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reloading variant: %v", err)
	}
	if got.AggregateStockQuantity != 4 {
		t.Fatalf("variant aggregate = %d, want 4", got.AggregateStockQuantity)
	}
}

func TestAppendValidation(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := NewService(NewRepository(conn))
	product := seedProduct(t, conn)
	ctx := context.Background()

	cases := []struct {
		name  string
		input AppendInput
	}{
		{"missing product", AppendInput{Type: enums.MovementSale, QuantityChange: intPtr(1), Reason: "x"}},
		{"invalid type", AppendInput{ProductID: product.ID, Type: enums.MovementType("teleport"), QuantityChange: intPtr(1), Reason: "x"}},
		{"no delta", AppendInput{ProductID: product.ID, Type: enums.MovementSale, Reason: "x"}},
		{"no reason", AppendInput{ProductID: product.ID, Type: enums.MovementSale, QuantityChange: intPtr(1)}},
	}
	for _, tc := range cases {
		if _, err := svc.Append(ctx, conn, tc.input); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	var count int64
	if err := conn.Model(&models.StockMovement{}).Count(&count).Error; err != nil {
		t.Fatalf("counting movements: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected appends wrote %d rows", count)
	}
}
