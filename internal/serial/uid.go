package serial

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const uidHexChars = 12

// mintUID builds an item UID from the product's SKU prefix and twelve
// uppercase hex characters of a fresh UUID. The result is printable,
// URL-safe and stable for the item's lifetime.
func mintUID(skuPrefix string) string {
	id := uuid.New()
	tail := strings.ToUpper(hex.EncodeToString(id[:])[:uidHexChars])
	return fmt.Sprintf("%s-%s", skuPrefix, tail)
}
