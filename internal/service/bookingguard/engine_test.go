package bookingguard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
)

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		MaxGuests:          20,
		MaxDurationDays:    30,
		MinAdvanceDays:     1,
		MaxAdvanceDays:     365,
		MaxPriceChangePct:  50,
		SuspicionThreshold: 5,
	}
}

// fixedNow pins "today" so date rules are deterministic.
var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine := NewEngine(testBookingConfig(), audit.NopLogger{}, zap.NewNop())
	engine.now = func() time.Time { return fixedNow }
	return engine
}

func validRequest() Request {
	return Request{
		UserID:     "u-1",
		PropertyID: "villa-12",
		CheckIn:    "2026-06-10",
		CheckOut:   "2026-06-14",
		Guests:     2,
		IPAddress:  "203.0.113.20",
		UserAgent:  "Mozilla/5.0",
	}
}

func TestValidateBooking_Accepted(t *testing.T) {
	engine := newTestEngine(t)

	result := engine.ValidateBooking(context.Background(), validRequest(), nil)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateBooking_DateRules(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  string
		checkOut string
		wantErr  string
	}{
		{"check-in yesterday", "2026-05-31", "2026-06-05", "check-in cannot be in the past"},
		{"check-out equals check-in", "2026-06-10", "2026-06-10", "check-out must be after check-in"},
		{"check-out before check-in", "2026-06-10", "2026-06-08", "check-out must be after check-in"},
		{"garbage check-in", "not-a-date", "2026-06-10", "check-in date is not a valid date"},
		{"too long", "2026-06-10", "2026-07-20", "booking duration exceeds 30 days"},
		{"same-day booking", "2026-06-01", "2026-06-05", "bookings require at least 1 day(s) advance notice"},
		{"too far ahead", "2027-07-01", "2027-07-05", "bookings cannot be made more than 365 days in advance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t)
			req := validRequest()
			req.CheckIn = tt.checkIn
			req.CheckOut = tt.checkOut

			result := engine.ValidateBooking(context.Background(), req, nil)
			assert.False(t, result.Valid)
			assert.Contains(t, result.Errors, tt.wantErr)
		})
	}
}

func TestValidateBooking_GuestRules(t *testing.T) {
	engine := newTestEngine(t)

	req := validRequest()
	req.Guests = 0
	result := engine.ValidateBooking(context.Background(), req, nil)
	assert.Contains(t, result.Errors, "at least one guest is required")

	req = validRequest()
	req.Guests = 21
	result = engine.ValidateBooking(context.Background(), req, nil)
	assert.Contains(t, result.Errors, "guest count exceeds maximum of 20")
}

func TestValidateBooking_DuplicateDetection(t *testing.T) {
	engine := newTestEngine(t)
	req := validRequest()

	existing := BookingKeySet{req.Key(): {}}
	result := engine.ValidateBooking(context.Background(), req, existing)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "duplicate booking for the same property and dates")
}

func TestValidateBooking_LargeGuestCountWarnsButPasses(t *testing.T) {
	engine := newTestEngine(t)

	req := validRequest()
	req.Guests = 16
	result := engine.ValidateBooking(context.Background(), req, nil)
	assert.True(t, result.Valid, "medium suspicion is a warning, not a rejection")
	assert.Contains(t, result.Warnings, "unusually large guest count")
	assert.Equal(t, audit.SeverityMedium, result.Suspicion)
}

func TestValidateBooking_ExcessiveAttemptsRejected(t *testing.T) {
	engine := newTestEngine(t)
	req := validRequest()

	var last Result
	for i := 0; i < 7; i++ {
		last = engine.ValidateBooking(context.Background(), req, nil)
	}
	assert.False(t, last.Valid)
	assert.Equal(t, audit.SeverityHigh, last.Suspicion)
	assert.Contains(t, last.Warnings, "excessive booking attempts")
}

func TestValidateBooking_BotUserAgentWarns(t *testing.T) {
	engine := newTestEngine(t)

	req := validRequest()
	req.UserAgent = "python-requests/2.31"
	result := engine.ValidateBooking(context.Background(), req, nil)
	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, "automation-like user agent")
}

func TestPriceHistory_ThresholdBoundary(t *testing.T) {
	history := NewPriceHistory(100)

	ok, _ := history.Check("villa-12", decimal.NewFromInt(100), "u-1", 50)
	require.True(t, ok, "first price is always accepted")

	// Exactly the threshold is accepted and appended.
	ok, last := history.Check("villa-12", decimal.NewFromInt(150), "u-1", 50)
	assert.True(t, ok)
	assert.True(t, last.Equal(decimal.NewFromInt(100)))

	// Over the threshold is rejected and NOT appended.
	ok, last = history.Check("villa-12", decimal.NewFromInt(300), "u-1", 50)
	assert.False(t, ok)
	assert.True(t, last.Equal(decimal.NewFromInt(150)))

	current, found := history.Last("villa-12")
	require.True(t, found)
	assert.True(t, current.Equal(decimal.NewFromInt(150)), "rejected price must not be recorded")

	// Decreases are measured by magnitude too.
	ok, _ = history.Check("villa-12", decimal.NewFromInt(70), "u-1", 50)
	assert.False(t, ok)
}

func TestValidateBooking_PriceManipulationRejected(t *testing.T) {
	engine := newTestEngine(t)

	req := validRequest()
	req.TotalPrice = decimal.NewFromInt(1000)
	result := engine.ValidateBooking(context.Background(), req, nil)
	require.True(t, result.Valid)

	req.CheckIn = "2026-06-20"
	req.CheckOut = "2026-06-24"
	req.TotalPrice = decimal.NewFromInt(2000)
	result = engine.ValidateBooking(context.Background(), req, nil)
	assert.False(t, result.Valid)
	assert.Equal(t, audit.SeverityHigh, result.Suspicion)
	assert.Contains(t, result.Warnings, "price deviates sharply from recorded price")
}

func TestCheckPermission(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	assert.NoError(t, engine.CheckPermission(ctx, "admin", "anything:at_all", "u-admin"))
	assert.NoError(t, engine.CheckPermission(ctx, "guest", "booking:create", "u-1"))
	assert.Error(t, engine.CheckPermission(ctx, "guest", "property:update_price", "u-1"))
	assert.Error(t, engine.CheckPermission(ctx, "viewer", "booking:create", "u-2"))
	assert.Error(t, engine.CheckPermission(ctx, "unknown-role", "booking:view", "u-3"))
}
