package assets

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSizePx = 512

// passportURL builds the exact payload printed into the QR. The label on
// the physical box carries the same URL, so the format is a compatibility
// contract: no whitespace, no trailing segments.
func passportURL(baseURL, uid string) string {
	return fmt.Sprintf("%s/passport/%s", baseURL, uid)
}

func renderQR(baseURL, uid string) ([]byte, error) {
	png, err := qrcode.Encode(passportURL(baseURL, uid), qrcode.Medium, qrSizePx)
	if err != nil {
		return nil, fmt.Errorf("encoding qr: %w", err)
	}
	return png, nil
}
