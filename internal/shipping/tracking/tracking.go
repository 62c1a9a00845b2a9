package tracking

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/northcart/storefront-backend/pkg/errors"
)

const (
	randomLen    = 6
	checksumLen  = 2
	checksumMod  = 97
	randAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Carrier-specific prefixes; unknown carriers fall back to their first two
// letters uppercased.
var carrierPrefixes = map[string]string{
	"postnord": "PN",
	"dhl":      "DHL",
	"bring":    "BR",
	"budbee":   "BUD",
	"instabox": "IB",
}

// Generate synthesizes a tracking number:
// prefix + base36 timestamp + 6 random alphanumerics + 2-digit mod-97 checksum.
func Generate(carrierCode string) (string, error) {
	prefix, err := prefixFor(carrierCode)
	if err != nil {
		return "", err
	}

	body := prefix + strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))

	random := make([]byte, randomLen)
	if _, err := rand.Read(random); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "tracking randomness")
	}
	for i, b := range random {
		random[i] = randAlphabet[int(b)%len(randAlphabet)]
	}
	body += string(random)

	return body + checksum(body), nil
}

// Validate reports whether the number's trailing checksum matches its body.
// It is a pure format check; no carrier lookup happens.
func Validate(trackingNumber string) bool {
	if len(trackingNumber) <= checksumLen {
		return false
	}
	body := trackingNumber[:len(trackingNumber)-checksumLen]
	return checksum(body) == trackingNumber[len(trackingNumber)-checksumLen:]
}

func checksum(body string) string {
	sum := 0
	for _, r := range body {
		sum += int(r)
	}
	return fmt.Sprintf("%02d", sum%checksumMod)
}

func prefixFor(carrierCode string) (string, error) {
	code := strings.ToLower(strings.TrimSpace(carrierCode))
	if code == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "carrier code is required")
	}
	if prefix, ok := carrierPrefixes[code]; ok {
		return prefix, nil
	}
	if len(code) < 2 {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "carrier code %q too short", carrierCode)
	}
	return strings.ToUpper(code[:2]), nil
}
