package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Version prefixes every canonical string so the digest scheme can evolve
// without colliding with previously stored fingerprints.
const Version = "v1"

// Input holds the fields that identify one checkout intent.
type Input struct {
	OrderID  uuid.UUID
	BuyerID  uuid.UUID
	Source   string
	Amount   decimal.Decimal
	Currency string
}

// Compute returns the hex-encoded SHA-256 digest of the canonical checkout
// string. Equal inputs always produce equal digests; the amount is fixed to
// two decimal places so 10.5 and 10.50 collapse to the same key.
func Compute(in Input) string {
	canonical := strings.Join([]string{
		Version,
		in.OrderID.String(),
		in.BuyerID.String(),
		strings.ToLower(strings.TrimSpace(in.Source)),
		in.Amount.StringFixed(2),
		strings.ToUpper(strings.TrimSpace(in.Currency)),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%s:%s", Version, hex.EncodeToString(sum[:]))
}
