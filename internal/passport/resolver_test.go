package passport

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/internal/serial"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db/models"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
)

type resolverFixture struct {
	resolver *Resolver
	conn     *gorm.DB
	root     string
}

func newResolverFixture(t *testing.T) resolverFixture {
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

	root := t.TempDir()
	resolver, err := NewResolver(serial.NewRepository(conn), auditor,
		config.AssetConfig{Root: root},
		config.PassportConfig{GoneStatuses: []string{"recalled", "missing"}},
		logg, nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolverFixture{resolver: resolver, conn: conn, root: root}
}

func (f resolverFixture) seedItem(t *testing.T, uid string, status enums.SerializedItemStatus, passportPath string, writeFile bool) {
	t.Helper()
	product := &models.Product{
		ID:        uuid.New(),
		SKUPrefix: "X-" + uid,
		Slug:      "slug-" + uid,
		Name:      "Tuber Melanosporum",
		Type:      enums.ProductTypeSimple,
	}
	if err := f.conn.Create(product).Error; err != nil {
		t.Fatalf("seeding product: %v", err)
	}
	item := &models.SerializedItem{
		ID:           uuid.New(),
		ItemUID:      uid,
		ProductID:    product.ID,
		Status:       status,
		QRPath:       filepath.Join("qr_codes", "qr_"+uid+".png"),
		PassportPath: passportPath,
		LabelPath:    filepath.Join("labels", "label_item_"+uid+".png"),
	}
	if err := f.conn.Create(item).Error; err != nil {
		t.Fatalf("seeding item: %v", err)
	}
	if writeFile {
		abs := filepath.Join(f.root, passportPath)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte("<html>passport</html>"), 0o644); err != nil {
			t.Fatalf("writing passport: %v", err)
		}
	}
}

func TestResolveKnownItem(t *testing.T) {
	f := newResolverFixture(t)
	uid := "TNP-0A1B2C3D4E5F"
	f.seedItem(t, uid, enums.ItemStatusAvailable, filepath.Join("passports", "passport_"+uid+".html"), true)

	abs, err := f.resolver.Resolve(context.Background(), uid)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		t.Fatalf("reading resolved passport: %v", err)
	}
	if string(raw) != "<html>passport</html>" {
		t.Fatalf("unexpected passport body %q", raw)
	}
}

func TestResolveUnknownUID(t *testing.T) {
	f := newResolverFixture(t)

	_, err := f.resolver.Resolve(context.Background(), "DOES-NOT-EXIST")
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeNotFound {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}

	entries, err := os.ReadDir(f.root)
	if err != nil {
		t.Fatalf("reading asset root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("resolve created %d files as a side effect", len(entries))
	}
}

func TestResolveWithdrawnItem(t *testing.T) {
	f := newResolverFixture(t)
	uid := "TNP-RECALLED0001"
	f.seedItem(t, uid, enums.ItemStatusRecalled, filepath.Join("passports", "passport_"+uid+".html"), true)

	_, err := f.resolver.Resolve(context.Background(), uid)
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeGone {
		t.Fatalf("want GONE, got %v", err)
	}
}

func TestResolveEscapingPathRefused(t *testing.T) {
	f := newResolverFixture(t)
	uid := "TNP-TRAVERSAL001"
	f.seedItem(t, uid, enums.ItemStatusAvailable, "../../etc/passwd", false)

	_, err := f.resolver.Resolve(context.Background(), uid)
	if err == nil {
		t.Fatal("resolver served a path outside the asset root")
	}
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() == apperrors.CodeGone || appErr.Code() == apperrors.CodeNotFound {
		t.Fatalf("unexpected error class %v", err)
	}
}

func TestResolveMissingFileIsDrift(t *testing.T) {
	f := newResolverFixture(t)
	uid := "TNP-DRIFT0000001"
	f.seedItem(t, uid, enums.ItemStatusAvailable, filepath.Join("passports", "passport_"+uid+".html"), false)

	_, err := f.resolver.Resolve(context.Background(), uid)
	appErr := apperrors.As(err)
	if appErr == nil || appErr.Code() != apperrors.CodeDrift {
		t.Fatalf("want DRIFT_ERROR, got %v", err)
	}

	var audits []models.AuditEntry
	if err := f.conn.Where("action = ?", "passport_asset_drift").Find(&audits).Error; err != nil {
		t.Fatalf("listing audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("wrote %d drift audits, want 1", len(audits))
	}
	if audits[0].Status != enums.AuditStatusFailure {
		t.Fatalf("drift audit status = %s", audits[0].Status)
	}
}
