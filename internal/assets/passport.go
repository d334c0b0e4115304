package assets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Extra is one additional key/value line on the passport.
type Extra struct {
	Key   string
	Value string
}

const passportDateLayout = "02 January 2006"

// passportTemplate is a self-contained document. Every interpolated field
// goes through html/template escaping.
var passportTemplate = template.Must(template.New("passport").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Certificate of Authenticity · {{.UID}}</title>
<style>
  body { font-family: Georgia, 'Times New Roman', serif; background: #faf7f2; color: #1f1b16; margin: 0; }
  .passport { max-width: 640px; margin: 2rem auto; padding: 2rem; background: #fff; border: 1px solid #d9cfc0; }
  .house { text-align: center; letter-spacing: 0.2em; text-transform: uppercase; font-size: 0.9rem; color: #7a6a52; }
  h1 { text-align: center; font-size: 1.4rem; margin: 0.5rem 0 1.5rem; }
  .uid { text-align: center; font-family: 'Courier New', monospace; font-size: 1.1rem; background: #f2ede4; padding: 0.4rem; }
  dl { display: grid; grid-template-columns: 1fr 2fr; gap: 0.3rem 1rem; margin-top: 1.5rem; }
  dt { color: #7a6a52; }
  dd { margin: 0; }
  .logo { display: block; margin: 0 auto 1rem; max-height: 80px; }
  footer { margin-top: 2rem; text-align: center; font-size: 0.8rem; color: #7a6a52; }
</style>
</head>
<body>
<div class="passport">
  {{if .LogoSrc}}<img class="logo" src="{{.LogoSrc}}" alt="Maison Noire">{{end}}
  <p class="house">Maison Noire · Truffle House</p>
  <h1>Certificate of Authenticity</h1>
  <p class="uid">{{.UID}}</p>
  <dl>
    <dt>Product</dt><dd>{{.ProductName}}</dd>
    {{if .ShortDescription}}<dt>Description</dt><dd>{{.ShortDescription}}</dd>{{end}}
    {{if .BatchNumber}}<dt>Batch</dt><dd>{{.BatchNumber}}</dd>{{end}}
    {{if .ProductionDate}}<dt>Harvested</dt><dd>{{.ProductionDate}}</dd>{{end}}
    {{if .ExpiryDate}}<dt>Best before</dt><dd>{{.ExpiryDate}}</dd>{{end}}
    {{range .Extras}}<dt>{{.Key}}</dt><dd>{{.Value}}</dd>{{end}}
  </dl>
  <footer>Each piece is individually inspected, weighed and sealed at origin.</footer>
</div>
</body>
</html>
`))

type passportData struct {
	UID              string
	ProductName      string
	ShortDescription string
	BatchNumber      string
	ProductionDate   string
	ExpiryDate       string
	Extras           []Extra
	LogoSrc          template.URL
}

func formatPassportDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(passportDateLayout)
}

// inlineLogo reads the configured logo and returns it as a data URI so
// the passport stays a single self-contained file. A missing or
// unreadable logo degrades to no logo.
func inlineLogo(path string) template.URL {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".svg":
		mime = "image/svg+xml"
	}
	return template.URL(fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw)))
}

func renderPassport(descriptor ItemDescriptor, logoPath string) ([]byte, error) {
	data := passportData{
		UID:            descriptor.ItemUID,
		ProductName:    descriptor.ProductName,
		ProductionDate: formatPassportDate(descriptor.ProductionDate),
		ExpiryDate:     formatPassportDate(descriptor.ExpiryDate),
		Extras:         descriptor.Extras,
		LogoSrc:        inlineLogo(logoPath),
	}
	if descriptor.ShortDescription != nil {
		data.ShortDescription = *descriptor.ShortDescription
	}
	if descriptor.BatchNumber != nil {
		data.BatchNumber = *descriptor.BatchNumber
	}

	var buf bytes.Buffer
	if err := passportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing passport template: %w", err)
	}
	return buf.Bytes(), nil
}
