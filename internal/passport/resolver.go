package passport

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/maisonnoire/trufflehouse-backend/internal/assets"
	"github.com/maisonnoire/trufflehouse-backend/internal/audit"
	"github.com/maisonnoire/trufflehouse-backend/internal/serial"
	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	"github.com/maisonnoire/trufflehouse-backend/pkg/db"
	"github.com/maisonnoire/trufflehouse-backend/pkg/enums"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/metrics"
)

// ContentType is the media type of every served passport.
const ContentType = "text/html; charset=utf-8"

// Resolver maps a public item UID onto its rendered passport file. The
// resolved path must stay inside the asset root no matter what the
// database row claims.
type Resolver struct {
	items            *serial.Repository
	auditor          *audit.Recorder
	assetRoot        string
	goneStatuses     map[enums.SerializedItemStatus]struct{}
	logg             *logger.Logger
	inventoryMetrics *metrics.InventoryMetrics
}

// NewResolver wires a passport resolver.
func NewResolver(items *serial.Repository, auditor *audit.Recorder, assetCfg config.AssetConfig, passportCfg config.PassportConfig, logg *logger.Logger, m *metrics.InventoryMetrics) (*Resolver, error) {
	if items == nil {
		return nil, fmt.Errorf("serialized item repository required")
	}
	if auditor == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if assetCfg.Root == "" {
		return nil, fmt.Errorf("asset root required")
	}

	gone := make(map[enums.SerializedItemStatus]struct{}, len(passportCfg.GoneStatuses))
	for _, raw := range passportCfg.GoneStatuses {
		status := enums.SerializedItemStatus(strings.TrimSpace(raw))
		if !status.IsValid() {
			return nil, fmt.Errorf("unknown status %q in passport gone list", raw)
		}
		gone[status] = struct{}{}
	}

	return &Resolver{
		items:            items,
		auditor:          auditor,
		assetRoot:        assetCfg.Root,
		goneStatuses:     gone,
		logg:             logg,
		inventoryMetrics: m,
	}, nil
}

// Resolve returns the absolute passport path for the UID. Unknown UIDs
// are NOT_FOUND, withdrawn items are GONE, and a row whose file is
// absent on disk is reported as drift.
func (r *Resolver) Resolve(ctx context.Context, uid string) (string, error) {
	item, err := r.items.FindByUID(ctx, uid)
	if err != nil {
		if db.IsNotFound(err) {
			r.inventoryMetrics.IncPassportServe("not_found")
			return "", apperrors.New(apperrors.CodeNotFound, "passport not found")
		}
		r.inventoryMetrics.IncPassportServe("error")
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "looking up serialized item")
	}

	if _, withdrawn := r.goneStatuses[item.Status]; withdrawn {
		r.inventoryMetrics.IncPassportServe("gone")
		return "", apperrors.New(apperrors.CodeGone, "this item has been withdrawn").
			WithDetails(map[string]any{"status": item.Status.String()})
	}

	abs, err := assets.ResolveWithin(r.assetRoot, item.PassportPath)
	if err != nil {
		r.inventoryMetrics.IncPassportServe("error")
		return "", apperrors.Wrap(apperrors.CodeInternal, err, "resolving passport path")
	}

	if _, err := os.Stat(abs); err != nil {
		r.inventoryMetrics.IncPassportServe("drift")
		r.inventoryMetrics.IncDriftDetected()
		r.recordDrift(ctx, uid, item.PassportPath, err)
		return "", apperrors.Wrap(apperrors.CodeDrift, err, "passport artifact missing from disk")
	}

	r.inventoryMetrics.IncPassportServe("ok")
	return abs, nil
}

// recordDrift writes a high-severity audit entry in its own short
// transaction. A database row pointing at a missing artifact means the
// filesystem and the ledgered state have diverged and an operator has to
// look at it.
func (r *Resolver) recordDrift(ctx context.Context, uid, relPath string, cause error) {
	r.auditor.RecordOutOfBand(ctx, audit.Event{
		Action: "passport_asset_drift",
		Actor:  audit.Actor{Username: "system"},
		Target: &audit.Target{Type: "serialized_item", ID: uid},
		Details: map[string]any{
			"passport_path": relPath,
			"error":         cause.Error(),
			"severity":      "high",
		},
		Status: enums.AuditStatusFailure,
	})
	if r.logg != nil {
		r.logg.Error(ctx, "passport artifact missing for serialized item", cause)
	}
}
