package bookingguard

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
)

// DateLayout is the wire format for booking dates.
const DateLayout = "2006-01-02"

// Request is a booking attempt as submitted by a client.
type Request struct {
	UserID     string
	PropertyID string
	CheckIn    string // DateLayout
	CheckOut   string // DateLayout
	Guests     int
	TotalPrice decimal.Decimal
	IPAddress  string
	UserAgent  string
}

// Key identifies a booking for duplicate detection.
func (r Request) Key() string {
	return fmt.Sprintf("%s|%s|%s|%s", r.UserID, r.PropertyID, r.CheckIn, r.CheckOut)
}

// Result is the outcome of booking validation. Errors reject the request;
// warnings accompany an accepted one. Suspicion of high severity rejects
// even with no validation errors.
type Result struct {
	Valid     bool           `json:"valid"`
	Errors    []string       `json:"errors,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
	Suspicion audit.Severity `json:"suspicion,omitempty"`
}

// ExistingBookings answers duplicate checks. The caller supplies it; the
// engine does not own booking storage.
type ExistingBookings interface {
	Exists(key string) bool
}

// BookingKeySet is a simple in-memory ExistingBookings.
type BookingKeySet map[string]struct{}

func (s BookingKeySet) Exists(key string) bool {
	_, ok := s[key]
	return ok
}
