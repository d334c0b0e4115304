package assets

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	labelWidthPx  = 600
	labelHeightPx = 400
	labelMarginPx = 24
)

// setLabelFont loads the configured face at the given size, falling back
// to the builtin bitmap face when no usable font file is present.
func setLabelFont(dc *gg.Context, fontPath string, points float64) {
	if fontPath != "" {
		if err := dc.LoadFontFace(fontPath, points); err == nil {
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

func drawLabelLogo(dc *gg.Context, logoPath string) float64 {
	if logoPath == "" {
		return 0
	}
	logo, err := imaging.Open(logoPath)
	if err != nil {
		return 0
	}
	fitted := imaging.Fit(logo, 120, 60, imaging.Lanczos)
	dc.DrawImage(fitted, labelWidthPx-labelMarginPx-fitted.Bounds().Dx(), labelMarginPx)
	return float64(fitted.Bounds().Dy())
}

func renderLabel(descriptor ItemDescriptor, cfg labelConfig) ([]byte, error) {
	dc := gg.NewContext(labelWidthPx, labelHeightPx)

	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0.12, 0.10, 0.08)
	dc.SetLineWidth(2)
	dc.DrawRectangle(8, 8, labelWidthPx-16, labelHeightPx-16)
	dc.Stroke()

	drawLabelLogo(dc, cfg.logoPath)

	setLabelFont(dc, cfg.fontPath, 30)
	dc.DrawStringWrapped(descriptor.ProductName,
		labelMarginPx, labelMarginPx,
		0, 0,
		labelWidthPx-2*labelMarginPx-140, 1.3, gg.AlignLeft)

	if descriptor.ShortDescription != nil && *descriptor.ShortDescription != "" {
		setLabelFont(dc, cfg.fontPath, 16)
		dc.DrawStringWrapped(*descriptor.ShortDescription,
			labelMarginPx, 120,
			0, 0,
			labelWidthPx-2*labelMarginPx, 1.4, gg.AlignLeft)
	}

	if descriptor.Price != nil {
		setLabelFont(dc, cfg.fontPath, 26)
		price := fmt.Sprintf("%s %s", descriptor.Price.StringFixed(2), cfg.currency)
		dc.DrawStringAnchored(price, labelWidthPx-labelMarginPx, 240, 1, 0.5)
	}

	if descriptor.BatchNumber != nil && *descriptor.BatchNumber != "" {
		setLabelFont(dc, cfg.fontPath, 16)
		dc.DrawString(fmt.Sprintf("Batch %s", *descriptor.BatchNumber), labelMarginPx, 240)
	}

	setLabelFont(dc, cfg.fontPath, 20)
	dc.DrawStringAnchored(descriptor.ItemUID, labelWidthPx/2, labelHeightPx-48, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding label: %w", err)
	}
	return buf.Bytes(), nil
}
