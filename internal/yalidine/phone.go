package yalidine

import (
	"fmt"
	"regexp"
	"strings"
)

// Algerian numbering plan: 05/06/07 mobiles carry 10 digits, 02/03/04
// landlines carry 9.
var (
	mobilePattern   = regexp.MustCompile(`^0[5-7]\d{8}$`)
	landlinePattern = regexp.MustCompile(`^0[2-4]\d{7}$`)
)

// ValidatePhone checks a phone number against the Algerian numbering plan
// before shipment creation, avoiding a round-trip rejection by the carrier.
func ValidatePhone(phone string) error {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if mobilePattern.MatchString(cleaned) || landlinePattern.MatchString(cleaned) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidPhone, phone)
}
