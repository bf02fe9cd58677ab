// Package fraud implements structural payment validation and heuristic
// fraud scoring for booking payments.
package fraud

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/errors"
	"github.com/casabria/booking-security-backend/internal/domain/validation"
	"github.com/casabria/booking-security-backend/internal/domain/velocity"
	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
)

// Score contributions and the rejection threshold. A determination is
// fraudulent when the summed score exceeds fraudThreshold.
const (
	scoreBlockedIP    = 100
	scoreHighAmount   = 30
	scoreRapidRepeat  = 50
	scoreTestCard     = 80
	scoreBadEmail     = 20
	scoreBotUserAgent = 25
	fraudThreshold    = 70

	rapidRepeatGap = 60 * time.Second
)

var botUserAgent = regexp.MustCompile(`(?i)(bot|crawler|spider|scraper|curl|wget|python|java|php)`)

// Engine is the payment risk engine.
type Engine struct {
	cfg        config.PaymentConfig
	blockedIPs *cache.Blocklist
	velocity   *velocity.Tracker
	auditor    audit.Logger
	logger     *zap.Logger
	now        func() time.Time
}

// NewEngine creates a payment risk engine. The velocity tracker is owned by
// the engine and independent of the booking engine's tracker.
func NewEngine(cfg config.PaymentConfig, blockedIPs *cache.Blocklist, auditor audit.Logger, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		blockedIPs: blockedIPs,
		velocity:   velocity.NewTracker(time.Hour),
		auditor:    auditor,
		logger:     logger,
		now:        time.Now,
	}
}

// ValidateAmount checks amount bounds and currency.
func (e *Engine) ValidateAmount(amount decimal.Decimal, currency string) error {
	min := decimal.NewFromFloat(e.cfg.MinAmount)
	max := decimal.NewFromFloat(e.cfg.MaxAmount)

	if amount.LessThan(min) {
		return errors.NewValidationError("AMOUNT_TOO_LOW",
			fmt.Sprintf("amount must be at least %s", min))
	}
	if amount.GreaterThan(max) {
		return errors.NewValidationError("AMOUNT_TOO_HIGH",
			fmt.Sprintf("amount must be at most %s", max))
	}

	for _, c := range e.cfg.AllowedCurrencies {
		if c == currency {
			return nil
		}
	}
	return errors.NewValidationError("CURRENCY_NOT_ALLOWED",
		fmt.Sprintf("currency %q is not accepted", currency))
}

// ValidateCard performs structural validation of card details. All problems
// are collected rather than failing on the first.
func (e *Engine) ValidateCard(card CardDetails) []validation.FieldError {
	var problems []validation.FieldError

	digits := digitsOnly(card.Number)
	if len(digits) < 13 || len(digits) > 19 {
		problems = append(problems, validation.FieldError{Field: "card_number", Message: "card number must be 13-19 digits"})
	} else if !luhnValid(digits) {
		problems = append(problems, validation.FieldError{Field: "card_number", Message: "card number failed checksum validation"})
	} else if isTestCard(digits) {
		problems = append(problems, validation.FieldError{Field: "card_number", Message: "test card numbers are not accepted"})
	}

	if len(card.HolderName) < 2 {
		problems = append(problems, validation.FieldError{Field: "holder_name", Message: "card holder name is required"})
	}

	if card.ExpiryMonth < 1 || card.ExpiryMonth > 12 {
		problems = append(problems, validation.FieldError{Field: "expiry", Message: "invalid expiry month"})
	} else if expiryInPast(card.ExpiryMonth, card.ExpiryYear, e.now()) {
		problems = append(problems, validation.FieldError{Field: "expiry", Message: "card has expired"})
	}

	if e.cfg.RequireCVV && (len(card.CVV) < 3 || len(card.CVV) > 4) {
		problems = append(problems, validation.FieldError{Field: "cvv", Message: "CVV must be 3 or 4 digits"})
	}

	return problems
}

// DetectFraud scores a payment attempt. Every evaluated attempt updates the
// velocity record for its (ip, card) key regardless of outcome, so even
// rejected attempts count toward future velocity checks.
func (e *Engine) DetectFraud(ctx context.Context, p PaymentAttempt) Assessment {
	assessment := Assessment{TransactionID: NewTransactionID()}
	add := func(flagType string, severity audit.Severity, points int, description string) {
		assessment.Flags = append(assessment.Flags, Flag{
			Type:        flagType,
			Severity:    severity,
			Description: description,
			Points:      points,
		})
		assessment.Score += points
	}

	if e.blockedIPs.Contains(p.IPAddress) {
		add("blocked_ip", audit.SeverityCritical, scoreBlockedIP, "payment from blocked IP address")
	}

	threshold := decimal.NewFromFloat(e.cfg.MaxAmount).Mul(decimal.NewFromFloat(0.8))
	if p.Amount.GreaterThan(threshold) {
		add("high_amount", audit.SeverityMedium, scoreHighAmount, "amount above 80% of maximum")
	}

	velocityKey := p.IPAddress + ":" + digitsOnly(p.Card.Number)
	rec, gap := e.velocity.Observe(velocityKey)
	if rec.Count > 1 && gap < rapidRepeatGap {
		add("velocity", audit.SeverityHigh, scoreRapidRepeat, "repeated attempt from same IP and card within 60s")
	}

	if isTestCard(digitsOnly(p.Card.Number)) {
		add("test_card", audit.SeverityHigh, scoreTestCard, "known test card number")
	}

	if p.Email != "" && !validation.ValidEmail(p.Email) {
		add("bad_email", audit.SeverityLow, scoreBadEmail, "malformed email address")
	}

	if botUserAgent.MatchString(p.UserAgent) {
		add("bot_user_agent", audit.SeverityMedium, scoreBotUserAgent, "automation-like user agent")
	}

	assessment.Fraudulent = assessment.Score > fraudThreshold

	if assessment.Fraudulent {
		e.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPaymentFraudDetected, audit.SeverityCritical,
			map[string]interface{}{
				"transaction_id": assessment.TransactionID,
				"score":          assessment.Score,
				"flags":          assessment.Flags,
				"card":           p.Card.MaskedNumber(),
				"amount":         p.Amount.String(),
				"currency":       p.Currency,
			},
		).WithActor(p.UserID).WithClient(p.IPAddress, p.UserAgent))
	} else {
		// Below-threshold assessments are audited too, so the score
		// distribution covers clean traffic, not just detections.
		e.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPaymentAssessed, audit.SeverityLow,
			map[string]interface{}{
				"transaction_id": assessment.TransactionID,
				"score":          assessment.Score,
			},
		).WithActor(p.UserID).WithClient(p.IPAddress, p.UserAgent))
	}

	return assessment
}

// BlockIP adds an address to the payment IP blocklist.
func (e *Engine) BlockIP(ip string) { e.blockedIPs.Add(ip) }

// UnblockIP removes an address from the payment IP blocklist.
func (e *Engine) UnblockIP(ip string) { e.blockedIPs.Remove(ip) }

// NewTransactionID composes a timestamp with random bytes. Uniqueness is
// best-effort, not guaranteed.
func NewTransactionID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return fmt.Sprintf("txn_%d_%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
