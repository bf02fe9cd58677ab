package fraud

import (
	"regexp"
	"time"
)

// Known test-card patterns for the major networks. These validate under
// Luhn but must never be accepted in production.
var testCardPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^4111111111111111$`), // Visa test
	regexp.MustCompile(`^4242424242424242$`), // Stripe Visa test
	regexp.MustCompile(`^4000000000000\d{3}$`),
	regexp.MustCompile(`^5555555555554444$`), // Mastercard test
	regexp.MustCompile(`^5105105105105100$`),
	regexp.MustCompile(`^2223003122003222$`),
	regexp.MustCompile(`^3782822463100\d{2}$`), // Amex test
	regexp.MustCompile(`^371449635398431$`),
	regexp.MustCompile(`^6011111111111117$`), // Discover test
	regexp.MustCompile(`^6011000990139424$`),
}

// luhnValid runs the Luhn checksum over a digit string. Structural validity
// only; says nothing about the issuer or funds.
func luhnValid(digits string) bool {
	if len(digits) == 0 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// isTestCard reports whether the digit string matches a known test card.
func isTestCard(digits string) bool {
	for _, p := range testCardPatterns {
		if p.MatchString(digits) {
			return true
		}
	}
	return false
}

// expiryInPast compares card expiry to now at calendar-month granularity:
// a card expiring this month is still valid.
func expiryInPast(month, year int, now time.Time) bool {
	if year < now.Year() {
		return true
	}
	if year == now.Year() && month < int(now.Month()) {
		return true
	}
	return false
}
