package leads

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// defaultRegion is the region used when a phone number carries no country
// prefix. The console serves a single national call floor.
const defaultRegion = "IN"

// CanonicalPhone normalizes raw operator input to the digits-only canonical
// form used for storage and de-duplication.
//
// Numbers that parse as valid for the default region are reduced to their
// national significant number, so "+91 98765 43210", "098765 43210" and
// "9876543210" all collapse to the same key. Anything the parser rejects is
// stripped to bare digits and left for the length check to quarantine.
func CanonicalPhone(raw string) string {
	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.GetNationalSignificantNumber(num)
	}
	return digitsOnly(raw)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneLength is the exact digit count accepted at intake.
const phoneLength = 10
