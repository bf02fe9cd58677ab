package fraud

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
)

// CardDetails is the structural part of a payment card. The raw PAN never
// reaches a log; use MaskedNumber for anything observable.
type CardDetails struct {
	Number      string
	HolderName  string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

// MaskedNumber returns first4 + stars + last4, or stars only for short input.
func (c CardDetails) MaskedNumber() string {
	digits := digitsOnly(c.Number)
	if len(digits) < 8 {
		return strings.Repeat("*", len(digits))
	}
	return digits[:4] + strings.Repeat("*", len(digits)-8) + digits[len(digits)-4:]
}

// PaymentAttempt carries everything the fraud scorer looks at.
type PaymentAttempt struct {
	UserID    string
	Amount    decimal.Decimal
	Currency  string
	Card      CardDetails
	Email     string
	IPAddress string
	UserAgent string
}

// Flag is one contribution to the additive fraud score.
type Flag struct {
	Type        string         `json:"type"`
	Severity    audit.Severity `json:"severity"`
	Description string         `json:"description"`
	Points      int            `json:"points"`
}

// Assessment is the outcome of a fraud evaluation.
type Assessment struct {
	Score         int    `json:"score"`
	Fraudulent    bool   `json:"fraudulent"`
	Flags         []Flag `json:"flags"`
	TransactionID string `json:"transaction_id"`
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
