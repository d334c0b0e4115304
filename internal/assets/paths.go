package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	qrDir       = "qr_codes"
	passportDir = "passports"
	labelDir    = "labels"
)

// Paths holds the three artifact locations of one item, relative to the
// asset root. Only these values are persisted; the root comes from config
// at serve time.
type Paths struct {
	QR       string
	Passport string
	Label    string
}

func relQRPath(uid string) string {
	return filepath.Join(qrDir, fmt.Sprintf("qr_%s.png", uid))
}

func relPassportPath(uid string) string {
	return filepath.Join(passportDir, fmt.Sprintf("passport_%s.html", uid))
}

func relLabelPath(uid string) string {
	return filepath.Join(labelDir, fmt.Sprintf("label_item_%s.png", uid))
}

// ResolveWithin joins rel onto root and verifies the result is still a
// descendant of root. The check runs on the cleaned absolute path, so a
// rel containing traversal segments is rejected no matter where it came
// from.
func ResolveWithin(root, rel string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving asset root: %w", err)
	}
	abs, err := filepath.Abs(filepath.Join(absRoot, rel))
	if err != nil {
		return "", fmt.Errorf("resolving asset path: %w", err)
	}
	inside, err := filepath.Rel(absRoot, abs)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes asset root", rel)
	}
	return abs, nil
}

// atomicWrite lands data at path via a temp file and rename so readers
// never observe a partial artifact.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("placing artifact: %w", err)
	}
	return nil
}
