// Package bookingguard validates booking requests against business rules
// and tracks suspicious booking activity.
package bookingguard

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/velocity"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
)

var botUserAgent = regexp.MustCompile(`(?i)(bot|crawler|spider|scraper|curl|wget|python|java|php)`)

const rapidRepeatGap = 60 * time.Second

// Engine is the booking risk engine. Its velocity tracker is independent of
// the payment engine's.
type Engine struct {
	cfg      config.BookingConfig
	velocity *velocity.Tracker
	prices   *PriceHistory
	auditor  audit.Logger
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a booking risk engine.
func NewEngine(cfg config.BookingConfig, auditor audit.Logger, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		velocity: velocity.NewTracker(time.Hour),
		prices:   NewPriceHistory(100),
		auditor:  auditor,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateBooking runs the full rule set against a request. The request is
// rejected only when validation errors exist or suspicion resolves to high;
// medium and low suspicion surface as non-blocking warnings.
func (e *Engine) ValidateBooking(ctx context.Context, req Request, existing ExistingBookings) Result {
	result := Result{Suspicion: audit.SeverityLow}

	e.validateDates(&result, req)
	e.validateGuests(&result, req)

	if existing != nil && existing.Exists(req.Key()) {
		result.Errors = append(result.Errors, "duplicate booking for the same property and dates")
	}

	e.scoreSuspicion(&result, req)

	if !req.TotalPrice.IsZero() && !e.CheckPrice(ctx, req) {
		result.Warnings = append(result.Warnings, "price deviates sharply from recorded price")
		result.Suspicion = audit.SeverityHigh
	}

	result.Valid = len(result.Errors) == 0 && result.Suspicion != audit.SeverityHigh

	if !result.Valid {
		e.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventBookingRejected, severityFor(result),
			map[string]interface{}{
				"property_id": req.PropertyID,
				"errors":      result.Errors,
				"warnings":    result.Warnings,
				"suspicion":   result.Suspicion,
			},
		).WithActor(req.UserID).WithClient(req.IPAddress, req.UserAgent))
	}

	return result
}

// CheckPrice runs the price-integrity rule: a change over the configured
// percentage against the last accepted price is rejected, audited high,
// and not recorded.
func (e *Engine) CheckPrice(ctx context.Context, req Request) bool {
	ok, last := e.prices.Check(req.PropertyID, req.TotalPrice, req.UserID, e.cfg.MaxPriceChangePct)
	if !ok {
		e.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPriceManipulation, audit.SeverityHigh,
			map[string]interface{}{
				"property_id":    req.PropertyID,
				"proposed_price": req.TotalPrice.String(),
				"last_price":     last.String(),
			},
		).WithActor(req.UserID).WithClient(req.IPAddress, req.UserAgent))
	}
	return ok
}

func (e *Engine) validateDates(result *Result, req Request) {
	checkIn, err := time.Parse(DateLayout, req.CheckIn)
	if err != nil {
		result.Errors = append(result.Errors, "check-in date is not a valid date")
		return
	}
	checkOut, err := time.Parse(DateLayout, req.CheckOut)
	if err != nil {
		result.Errors = append(result.Errors, "check-out date is not a valid date")
		return
	}

	today := e.now().Truncate(24 * time.Hour)
	if checkIn.Before(today) {
		result.Errors = append(result.Errors, "check-in cannot be in the past")
	}
	if !checkOut.After(checkIn) {
		result.Errors = append(result.Errors, "check-out must be after check-in")
		return
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights > e.cfg.MaxDurationDays {
		result.Errors = append(result.Errors,
			fmt.Sprintf("booking duration exceeds %d days", e.cfg.MaxDurationDays))
	}

	advance := int(checkIn.Sub(today).Hours() / 24)
	if advance < e.cfg.MinAdvanceDays {
		result.Errors = append(result.Errors,
			fmt.Sprintf("bookings require at least %d day(s) advance notice", e.cfg.MinAdvanceDays))
	}
	if advance > e.cfg.MaxAdvanceDays {
		result.Errors = append(result.Errors,
			fmt.Sprintf("bookings cannot be made more than %d days in advance", e.cfg.MaxAdvanceDays))
	}
	return
}

func (e *Engine) validateGuests(result *Result, req Request) {
	if req.Guests < 1 {
		result.Errors = append(result.Errors, "at least one guest is required")
	}
	if req.Guests > e.cfg.MaxGuests {
		result.Errors = append(result.Errors,
			fmt.Sprintf("guest count exceeds maximum of %d", e.cfg.MaxGuests))
	}
}

// scoreSuspicion mirrors the payment engine's velocity heuristics for
// booking attempts. Every attempt is observed, suspicious or not.
func (e *Engine) scoreSuspicion(result *Result, req Request) {
	raise := func(sev audit.Severity, warning string) {
		result.Warnings = append(result.Warnings, warning)
		if severityRank(sev) > severityRank(result.Suspicion) {
			result.Suspicion = sev
		}
	}

	rec, gap := e.velocity.Observe(req.UserID + ":" + req.IPAddress)
	if rec.Count > 1 && gap < rapidRepeatGap {
		raise(audit.SeverityMedium, "rapid repeat booking attempts")
	}
	if rec.Count > e.cfg.SuspicionThreshold {
		raise(audit.SeverityHigh, "excessive booking attempts")
	}
	if req.Guests > 15 {
		raise(audit.SeverityMedium, "unusually large guest count")
	}
	if botUserAgent.MatchString(req.UserAgent) {
		raise(audit.SeverityMedium, "automation-like user agent")
	}
}

func severityFor(r Result) audit.Severity {
	if r.Suspicion == audit.SeverityHigh {
		return audit.SeverityHigh
	}
	return audit.SeverityMedium
}

func severityRank(s audit.Severity) int {
	switch s {
	case audit.SeverityCritical:
		return 3
	case audit.SeverityHigh:
		return 2
	case audit.SeverityMedium:
		return 1
	default:
		return 0
	}
}
