package assets

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maisonnoire/trufflehouse-backend/pkg/config"
	apperrors "github.com/maisonnoire/trufflehouse-backend/pkg/errors"
	"github.com/maisonnoire/trufflehouse-backend/pkg/logger"
	"github.com/maisonnoire/trufflehouse-backend/pkg/metrics"
)

// ItemDescriptor carries everything the three artifacts of one item need.
// The renderer never reaches back into the database.
type ItemDescriptor struct {
	ItemUID          string
	ProductName      string
	ShortDescription *string
	BatchNumber      *string
	ProductionDate   *time.Time
	ExpiryDate       *time.Time
	Price            *decimal.Decimal
	Extras           []Extra
}

type labelConfig struct {
	logoPath string
	fontPath string
	currency string
}

// Renderer produces the QR, passport and label artifacts for serialized
// items under a fixed asset root. Rendering the same UID twice overwrites
// the previous files with equivalent content.
type Renderer struct {
	root             string
	baseURL          string
	label            labelConfig
	passportLogo     string
	logg             *logger.Logger
	inventoryMetrics *metrics.InventoryMetrics
}

// NewRenderer wires a renderer from the asset configuration. baseURL must
// already be validated as an absolute URL.
func NewRenderer(cfg config.AssetConfig, baseURL string, logg *logger.Logger, m *metrics.InventoryMetrics) (*Renderer, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("asset root required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base url required")
	}
	return &Renderer{
		root:    cfg.Root,
		baseURL: baseURL,
		label: labelConfig{
			logoPath: cfg.LabelLogoPath,
			fontPath: cfg.DefaultFontPath,
			currency: cfg.Currency,
		},
		passportLogo:     cfg.PassportLogo,
		logg:             logg,
		inventoryMetrics: m,
	}, nil
}

// PassportURL returns the public URL the item's QR encodes.
func (r *Renderer) PassportURL(uid string) string {
	return passportURL(r.baseURL, uid)
}

// RenderAll writes the three artifacts for the descriptor and returns
// their root-relative paths plus the absolute paths actually created, in
// creation order. On error the second return still lists the files laid
// down before the failure so the caller can unlink them.
func (r *Renderer) RenderAll(descriptor ItemDescriptor) (Paths, []string, error) {
	var created []string
	if descriptor.ItemUID == "" {
		return Paths{}, created, apperrors.New(apperrors.CodeAsset, "item uid required for rendering")
	}

	paths := Paths{
		QR:       relQRPath(descriptor.ItemUID),
		Passport: relPassportPath(descriptor.ItemUID),
		Label:    relLabelPath(descriptor.ItemUID),
	}

	write := func(kind, rel string, render func() ([]byte, error)) error {
		data, err := render()
		if err != nil {
			return apperrors.Wrap(apperrors.CodeAsset, err, fmt.Sprintf("rendering %s for %s", kind, descriptor.ItemUID))
		}
		abs, err := ResolveWithin(r.root, rel)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeAsset, err, fmt.Sprintf("resolving %s path", kind))
		}
		if err := atomicWrite(abs, data); err != nil {
			return apperrors.Wrap(apperrors.CodeAsset, err, fmt.Sprintf("writing %s for %s", kind, descriptor.ItemUID))
		}
		created = append(created, abs)
		r.inventoryMetrics.IncAssetRendered(kind)
		return nil
	}

	if err := write("qr", paths.QR, func() ([]byte, error) {
		return renderQR(r.baseURL, descriptor.ItemUID)
	}); err != nil {
		return Paths{}, created, err
	}
	if err := write("passport", paths.Passport, func() ([]byte, error) {
		return renderPassport(descriptor, r.passportLogo)
	}); err != nil {
		return Paths{}, created, err
	}
	if err := write("label", paths.Label, func() ([]byte, error) {
		return renderLabel(descriptor, r.label)
	}); err != nil {
		return Paths{}, created, err
	}

	return paths, created, nil
}
