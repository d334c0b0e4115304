package serial

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maisonnoire/trufflehouse-backend/internal/assets"
	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/internal/catalog"
	"github.com/maisonnoire/trufflehouse-backend/internal/ledger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

type engineFixture struct {
	engine *Engine
	conn   *gorm.DB
	root   string
}

// failAfterRenderer delegates to the real renderer for the first n calls,
// then fails, leaving the files of earlier calls on disk.
type failAfterRenderer struct {
	real  *assets.Renderer
	n     int
	calls int
}

func (f *failAfterRenderer) RenderAll(descriptor assets.ItemDescriptor) (assets.Paths, []string, error) {
	f.calls++
	if f.calls > f.n {
		return assets.Paths{}, nil, apperrors.New(apperrors.CodeAsset, "forced render failure")
	}
	return f.real.RenderAll(descriptor)
}

func newEngineFixture(t *testing.T, renderer ArtifactRenderer) engineFixture {
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
		&models.StockMovement{},
		&models.AuditEntry{},
	); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	client := db.NewWithConn(conn)
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	root := t.TempDir()

	if renderer == nil {
		real, err := assets.NewRenderer(config.AssetConfig{Root: root, Currency: "EUR"},
			"https://shop.example.com", logg, nil)
		if err != nil {
			t.Fatalf("NewRenderer: %v", err)
		}
		renderer = real
	}

	auditor, err := audit.NewRecorder(audit.NewRepository(conn), client, logg)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	movements, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		t.Fatalf("ledger.NewService: %v", err)
	}
	engine, err := NewEngine(client, NewRepository(conn), catalog.NewRepository(conn),
		movements, auditor, renderer, logg, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engineFixture{engine: engine, conn: conn, root: root}
}

func (f engineFixture) seedProduct(t *testing.T, skuPrefix string, productType enums.ProductType) *models.Product {
	t.Helper()
	price := decimal.RequireFromString("85.00")
	product := &models.Product{
		ID:        uuid.New(),
		SKUPrefix: skuPrefix,
		Slug:      "slug-" + skuPrefix,
		Name:      "Tuber Melanosporum",
		Type:      productType,
	}
	if productType == enums.ProductTypeSimple {
		product.BasePrice = &price
	} else {
		uom := enums.UnitGram
		product.UnitOfMeasure = &uom
	}
	if err := f.conn.Create(product).Error; err != nil {
		t.Fatalf("seeding product: %v", err)
	}
	return product
}

func strPtr(s string) *string { return &s }
func intRef(v int) *int       { return &v }

func actor() audit.Actor { return audit.Actor{Username: "curator", IP: "127.0.0.1"} }

func TestReceiveSerializedBatch(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	uids, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{
		ProductID:   product.ID,
		Quantity:    3,
		BatchNumber: strPtr("B-2025-11-A"),
	})
	if err != nil {
		t.Fatalf("ReceiveSerialized: %v", err)
	}
	if len(uids) != 3 {
		t.Fatalf("minted %d uids, want 3", len(uids))
	}

	uidPattern := regexp.MustCompile(`^TNP-[0-9A-F]{12}$`)
	for _, uid := range uids {
		if !uidPattern.MatchString(uid) {
			t.Errorf("uid %q does not match TNP-<12 hex>", uid)
		}
		for _, rel := range []string{
			filepath.Join("qr_codes", "qr_"+uid+".png"),
			filepath.Join("passports", "passport_"+uid+".html"),
			filepath.Join("labels", "label_item_"+uid+".png"),
		} {
			if _, err := os.Stat(filepath.Join(f.root, rel)); err != nil {
				t.Errorf("missing artifact %s: %v", rel, err)
			}
		}
	}

	var items []models.SerializedItem
	if err := f.conn.Find(&items).Error; err != nil {
		t.Fatalf("listing items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("persisted %d items, want 3", len(items))
	}
	for _, item := range items {
		if item.Status != enums.ItemStatusAvailable {
			t.Errorf("item %s status %s, want available", item.ItemUID, item.Status)
		}
	}

	var movements []models.StockMovement
	if err := f.conn.Find(&movements).Error; err != nil {
		t.Fatalf("listing movements: %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("wrote %d movements, want 3", len(movements))
	}
	for _, m := range movements {
		if m.MovementType != enums.MovementReceiveSerialized || m.QuantityChange == nil || *m.QuantityChange != 1 {
			t.Errorf("unexpected movement %+v", m)
		}
	}

	var product2 models.Product
	if err := f.conn.First(&product2, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reloading product: %v", err)
	}
	if product2.AggregateStockQuantity != 3 {
		t.Fatalf("aggregate = %d, want 3", product2.AggregateStockQuantity)
	}

	var audits []models.AuditEntry
	if err := f.conn.Where("action = ?", "receive_serialized_stock_success").Find(&audits).Error; err != nil {
		t.Fatalf("listing audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("wrote %d success audits, want 1", len(audits))
	}
}

func TestReceiveSerializedNoPartialSuccess(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	root := t.TempDir()
	real, err := assets.NewRenderer(config.AssetConfig{Root: root, Currency: "EUR"},
		"https://shop.example.com", logg, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	failing := newEngineFixture(t, &failAfterRenderer{real: real, n: 2})
	product := failing.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	_, err = failing.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{
		ProductID: product.ID,
		Quantity:  3,
	})
	if err == nil {
		t.Fatal("expected render failure to fail the batch")
	}

	var itemCount, movementCount int64
	failing.conn.Model(&models.SerializedItem{}).Count(&itemCount)
	failing.conn.Model(&models.StockMovement{}).Count(&movementCount)
	if itemCount != 0 || movementCount != 0 {
		t.Fatalf("rolled-back batch left %d items, %d movements", itemCount, movementCount)
	}

	for _, dir := range []string{"qr_codes", "passports", "labels"} {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err == nil && len(entries) > 0 {
			t.Errorf("rolled-back batch left %d files in %s", len(entries), dir)
		}
	}

	var failures []models.AuditEntry
	if err := failing.conn.Where("action = ?", "receive_serialized_stock_failure").Find(&failures).Error; err != nil {
		t.Fatalf("listing failure audits: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("wrote %d failure audits, want 1", len(failures))
	}
}

func TestReceiveSerializedQuantityBounds(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	for _, qty := range []int{0, -1, maxBatchQuantity + 1} {
		_, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{ProductID: product.ID, Quantity: qty})
		appErr := apperrors.As(err)
		if appErr == nil || appErr.Code() != apperrors.CodeValidation {
			t.Errorf("quantity %d: want VALIDATION_ERROR, got %v", qty, err)
		}
	}
}

func TestSetStatusTransitions(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	uids, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("ReceiveSerialized: %v", err)
	}
	uid := uids[0]

	item, err := f.engine.SetStatus(ctx, actor(), uid, enums.ItemStatusDamaged, strPtr("crushed in transit"))
	if err != nil {
		t.Fatalf("SetStatus to damaged: %v", err)
	}
	if item.Status != enums.ItemStatusDamaged {
		t.Fatalf("status = %s, want damaged", item.Status)
	}

	var product2 models.Product
	f.conn.First(&product2, "id = ?", product.ID)
	if product2.AggregateStockQuantity != 0 {
		t.Fatalf("aggregate after damage = %d, want 0", product2.AggregateStockQuantity)
	}

	var removal models.StockMovement
	if err := f.conn.Where("movement_type = ?", enums.MovementDamageRemoval).First(&removal).Error; err != nil {
		t.Fatalf("expected damage_removal movement: %v", err)
	}
	if removal.QuantityChange == nil || *removal.QuantityChange != -1 {
		t.Fatalf("damage_removal delta = %v, want -1", removal.QuantityChange)
	}

	if _, err := f.engine.SetStatus(ctx, actor(), uid, enums.ItemStatusAvailable, nil); err != nil {
		t.Fatalf("restoring damaged item: %v", err)
	}
	f.conn.First(&product2, "id = ?", product.ID)
	if product2.AggregateStockQuantity != 1 {
		t.Fatalf("aggregate after restore = %d, want 1", product2.AggregateStockQuantity)
	}
}

func TestSetStatusRejectsSoldItem(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	uids, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("ReceiveSerialized: %v", err)
	}
	orderID := uuid.New()
	if err := f.engine.MarkSold(ctx, actor(), orderID, uids); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}

	_, err = f.engine.SetStatus(ctx, actor(), uids[0], enums.ItemStatusAvailable, nil)
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeStateConflict {
		t.Fatalf("want STATE_CONFLICT, got %v", err)
	}

	var item models.SerializedItem
	if err := f.conn.First(&item, "item_uid = ?", uids[0]).Error; err != nil {
		t.Fatalf("reloading item: %v", err)
	}
	if item.Status != enums.ItemStatusSold {
		t.Fatalf("rejected transition must not change status, got %s", item.Status)
	}

	var failures int64
	err = f.conn.Model(&models.AuditEntry{}).
		Where("action = ? AND status = ?", "serialized_item_status_change", enums.AuditStatusFailure).
		Count(&failures).Error
	if err != nil {
		t.Fatalf("counting failure audits: %v", err)
	}
	if failures != 1 {
		t.Fatalf("expected 1 failure audit entry, got %d", failures)
	}
}

func TestMarkSoldDecrementsAggregate(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	uids, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("ReceiveSerialized: %v", err)
	}
	orderID := uuid.New()
	if err := f.engine.MarkSold(ctx, actor(), orderID, uids[:1]); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}

	item, err := f.engine.GetItem(ctx, uids[0])
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Status != enums.ItemStatusSold || item.SoldOrderID == nil || *item.SoldOrderID != orderID {
		t.Fatalf("sold item = %+v", item)
	}

	var product2 models.Product
	f.conn.First(&product2, "id = ?", product.ID)
	if product2.AggregateStockQuantity != 1 {
		t.Fatalf("aggregate = %d, want 1", product2.AggregateStockQuantity)
	}
}

func TestReserveAndRelease(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	uids, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("ReceiveSerialized: %v", err)
	}
	orderID := uuid.New()

	if err := f.engine.ReserveForOrder(ctx, actor(), orderID, uids); err != nil {
		t.Fatalf("ReserveForOrder: %v", err)
	}
	item, _ := f.engine.GetItem(ctx, uids[0])
	if item.Status != enums.ItemStatusAllocated {
		t.Fatalf("status = %s, want allocated", item.Status)
	}

	var product2 models.Product
	f.conn.First(&product2, "id = ?", product.ID)
	if product2.AggregateStockQuantity != 1 {
		t.Fatalf("allocation changed aggregate to %d", product2.AggregateStockQuantity)
	}

	if err := f.engine.ReleaseAllocation(ctx, actor(), orderID, uids); err != nil {
		t.Fatalf("ReleaseAllocation: %v", err)
	}
	item, _ = f.engine.GetItem(ctx, uids[0])
	if item.Status != enums.ItemStatusAvailable {
		t.Fatalf("status = %s, want available", item.Status)
	}
}

func TestAdjustAggregateWeightRules(t *testing.T) {
	f := newEngineFixture(t, nil)
	simple := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	variable := f.seedProduct(t, "TBW", enums.ProductTypeVariableWeight)
	ctx := context.Background()

	err := f.engine.AdjustAggregate(ctx, actor(), AdjustInput{
		ProductID:        simple.ID,
		WeightDeltaGrams: intRef(250),
		Reason:           "scale recount",
	})
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeValidation {
		t.Fatalf("weight adjustment on simple product: want VALIDATION_ERROR, got %v", err)
	}

	if err := f.engine.AdjustAggregate(ctx, actor(), AdjustInput{
		ProductID:        variable.ID,
		QuantityDelta:    intRef(2),
		WeightDeltaGrams: intRef(250),
		Reason:           "scale recount",
	}); err != nil {
		t.Fatalf("AdjustAggregate: %v", err)
	}

	var movements []models.StockMovement
	f.conn.Where("product_id = ?", variable.ID).Find(&movements)
	if len(movements) != 2 {
		t.Fatalf("wrote %d movements, want 2", len(movements))
	}

	var product2 models.Product
	f.conn.First(&product2, "id = ?", variable.ID)
	if product2.AggregateStockQuantity != 2 {
		t.Fatalf("aggregate quantity = %d, want 2", product2.AggregateStockQuantity)
	}
	if product2.AggregateStockWeightGrams == nil || *product2.AggregateStockWeightGrams != 250 {
		t.Fatalf("aggregate weight = %v, want 250", product2.AggregateStockWeightGrams)
	}
}

func TestAdjustAggregateVariantOwnership(t *testing.T) {
	f := newEngineFixture(t, nil)
	owner := f.seedProduct(t, "TBW", enums.ProductTypeVariableWeight)
	other := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	variant := &models.ProductVariant{
		ID:          uuid.New(),
		ProductID:   owner.ID,
		SKUSuffix:   "20G",
		WeightGrams: 20,
		Price:       decimal.RequireFromString("42.00"),
	}
	if err := f.conn.Create(variant).Error; err != nil {
		t.Fatalf("seeding variant: %v", err)
	}

	err := f.engine.AdjustAggregate(ctx, actor(), AdjustInput{
		ProductID:     other.ID,
		VariantID:     &variant.ID,
		QuantityDelta: intRef(2),
		Reason:        "recount",
	})
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeValidation {
		t.Fatalf("foreign variant: want VALIDATION_ERROR, got %v", err)
	}

	var reloaded models.ProductVariant
	if err := f.conn.First(&reloaded, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reloading variant: %v", err)
	}
	if reloaded.AggregateStockQuantity != 0 {
		t.Fatalf("rejected adjustment moved variant aggregate to %d", reloaded.AggregateStockQuantity)
	}
	var movements int64
	f.conn.Model(&models.StockMovement{}).Count(&movements)
	if movements != 0 {
		t.Fatalf("rejected adjustment wrote %d movements", movements)
	}

	ghost := uuid.New()
	err = f.engine.AdjustAggregate(ctx, actor(), AdjustInput{
		ProductID:     owner.ID,
		VariantID:     &ghost,
		QuantityDelta: intRef(1),
		Reason:        "recount",
	})
	appErr = apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeNotFound {
		t.Fatalf("unknown variant: want NOT_FOUND, got %v", err)
	}

	if err := f.engine.AdjustAggregate(ctx, actor(), AdjustInput{
		ProductID:     owner.ID,
		VariantID:     &variant.ID,
		QuantityDelta: intRef(2),
		Reason:        "recount",
	}); err != nil {
		t.Fatalf("AdjustAggregate: %v", err)
	}
	if err := f.conn.First(&reloaded, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reloading variant: %v", err)
	}
	if reloaded.AggregateStockQuantity != 2 {
		t.Fatalf("variant aggregate = %d, want 2", reloaded.AggregateStockQuantity)
	}
}

func TestAggregateMatchesMovementSum(t *testing.T) {
	f := newEngineFixture(t, nil)
	product := f.seedProduct(t, "TNP", enums.ProductTypeSimple)
	ctx := context.Background()

	uids, err := f.engine.ReceiveSerialized(ctx, actor(), ReceiveInput{ProductID: product.ID, Quantity: 4})
	if err != nil {
		t.Fatalf("ReceiveSerialized: %v", err)
	}
	if err := f.engine.MarkSold(ctx, actor(), uuid.New(), uids[:1]); err != nil {
		t.Fatalf("MarkSold: %v", err)
	}
	if _, err := f.engine.SetStatus(ctx, actor(), uids[1], enums.ItemStatusRecalled, nil); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	var sum struct{ Total int }
	f.conn.Model(&models.StockMovement{}).
		Select("COALESCE(SUM(quantity_change), 0) AS total").
		Where("product_id = ?", product.ID).
		Scan(&sum)

	var product2 models.Product
	f.conn.First(&product2, "id = ?", product.ID)
	if product2.AggregateStockQuantity != sum.Total {
		t.Fatalf("aggregate %d != movement sum %d", product2.AggregateStockQuantity, sum.Total)
	}
	if product2.AggregateStockQuantity != 2 {
		t.Fatalf("aggregate = %d, want 2", product2.AggregateStockQuantity)
	}
}
