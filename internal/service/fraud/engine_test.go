package fraud

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/errors"
	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
)

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		MinAmount:         1,
		MaxAmount:         50000,
		AllowedCurrencies: []string{"EUR", "USD", "GBP"},
		RequireCVV:        true,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(testPaymentConfig(), cache.NewBlocklist(), audit.NopLogger{}, zap.NewNop())
}

func validCard() CardDetails {
	// Structurally valid, passes Luhn, not a known test number.
	return CardDetails{
		Number:      "4539578763621486",
		HolderName:  "A Guest",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
		CVV:         "123",
	}
}

func TestLuhnValidation(t *testing.T) {
	assert.True(t, luhnValid("4111111111111111"))
	assert.False(t, luhnValid("4111111111111112"))
	assert.True(t, luhnValid("4539578763621486"))
}

func TestValidateAmount(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		amount   string
		currency string
		wantErr  bool
	}{
		{"within bounds", "120.50", "EUR", false},
		{"at minimum", "1", "USD", false},
		{"below minimum", "0.50", "EUR", true},
		{"above maximum", "50001", "EUR", true},
		{"unknown currency", "100", "JPY", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			err = engine.ValidateAmount(amount, tt.currency)
			if tt.wantErr {
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCard(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("valid card passes", func(t *testing.T) {
		assert.Empty(t, engine.ValidateCard(validCard()))
	})

	t.Run("luhn failure", func(t *testing.T) {
		card := validCard()
		card.Number = "4111111111111112"
		problems := engine.ValidateCard(card)
		require.Len(t, problems, 1)
		assert.Equal(t, "card_number", problems[0].Field)
	})

	t.Run("test card rejected", func(t *testing.T) {
		card := validCard()
		card.Number = "4111 1111 1111 1111"
		problems := engine.ValidateCard(card)
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0].Message, "test card")
	})

	t.Run("wrong length", func(t *testing.T) {
		card := validCard()
		card.Number = "41111"
		assert.NotEmpty(t, engine.ValidateCard(card))
	})

	t.Run("expired card", func(t *testing.T) {
		card := validCard()
		card.ExpiryYear = 2020
		problems := engine.ValidateCard(card)
		require.Len(t, problems, 1)
		assert.Equal(t, "expiry", problems[0].Field)
	})

	t.Run("missing cvv and holder", func(t *testing.T) {
		card := validCard()
		card.HolderName = ""
		card.CVV = ""
		assert.Len(t, engine.ValidateCard(card), 2)
	})
}

func TestMaskedNumber(t *testing.T) {
	assert.Equal(t, "4539********1486", CardDetails{Number: "4539578763621486"}.MaskedNumber())
	assert.Equal(t, "****", CardDetails{Number: "1234"}.MaskedNumber())
}

func TestDetectFraud_CleanAttempt(t *testing.T) {
	engine := newTestEngine(t)

	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		UserID:    "u-1",
		Amount:    decimal.NewFromInt(200),
		Currency:  "EUR",
		Card:      validCard(),
		Email:     "guest@example.com",
		IPAddress: "203.0.113.10",
		UserAgent: "Mozilla/5.0",
	})

	assert.False(t, assessment.Fraudulent)
	assert.Zero(t, assessment.Score)
	assert.NotEmpty(t, assessment.TransactionID)
}

func TestDetectFraud_BlockedIPAloneExceedsThreshold(t *testing.T) {
	engine := newTestEngine(t)
	engine.BlockIP("203.0.113.66")

	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		Amount:    decimal.NewFromInt(100),
		Card:      validCard(),
		IPAddress: "203.0.113.66",
		UserAgent: "Mozilla/5.0",
	})

	assert.True(t, assessment.Fraudulent)
	assert.Equal(t, 100, assessment.Score)

	engine.UnblockIP("203.0.113.66")
	assessment = engine.DetectFraud(context.Background(), PaymentAttempt{
		Amount:    decimal.NewFromInt(100),
		Card:      validCard(),
		IPAddress: "203.0.113.67",
		UserAgent: "Mozilla/5.0",
	})
	assert.False(t, assessment.Fraudulent)
}

func TestDetectFraud_TestCardAloneExceedsThreshold(t *testing.T) {
	engine := newTestEngine(t)

	card := validCard()
	card.Number = "4242424242424242"
	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		Amount:    decimal.NewFromInt(100),
		Card:      card,
		IPAddress: "203.0.113.11",
		UserAgent: "Mozilla/5.0",
	})

	assert.True(t, assessment.Fraudulent)
	assert.Equal(t, 80, assessment.Score)
}

func TestDetectFraud_AdditiveScoring(t *testing.T) {
	engine := newTestEngine(t)

	// High amount (30) + bad email (20) + bot user agent (25) = 75 > 70.
	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		Amount:    decimal.NewFromInt(45000),
		Card:      validCard(),
		Email:     "not-an-email",
		IPAddress: "203.0.113.12",
		UserAgent: "curl/8.0",
	})

	assert.Equal(t, 75, assessment.Score)
	assert.True(t, assessment.Fraudulent)
	assert.Len(t, assessment.Flags, 3)
}

func TestDetectFraud_ScoreAtThresholdIsNotFraud(t *testing.T) {
	engine := newTestEngine(t)

	// High amount (30) + bad email (20) = 50, under the threshold.
	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		Amount:    decimal.NewFromInt(45000),
		Card:      validCard(),
		Email:     "not-an-email",
		IPAddress: "203.0.113.13",
		UserAgent: "Mozilla/5.0",
	})

	assert.Equal(t, 50, assessment.Score)
	assert.False(t, assessment.Fraudulent)
}

func TestDetectFraud_RapidRepeatVelocity(t *testing.T) {
	engine := newTestEngine(t)
	attempt := PaymentAttempt{
		Amount:    decimal.NewFromInt(100),
		Card:      validCard(),
		IPAddress: "203.0.113.14",
		UserAgent: "Mozilla/5.0",
	}

	first := engine.DetectFraud(context.Background(), attempt)
	assert.Zero(t, first.Score)

	second := engine.DetectFraud(context.Background(), attempt)
	assert.Equal(t, 50, second.Score, "second attempt within 60s for same ip and card")
	assert.False(t, second.Fraudulent)

	// A different card is a different velocity key.
	other := attempt
	otherCard := validCard()
	otherCard.Number = "4716461583322103"
	other.Card = otherCard
	third := engine.DetectFraud(context.Background(), other)
	assert.Zero(t, third.Score)
}

type recordingAuditor struct {
	events []audit.Event
}

func (r *recordingAuditor) LogSecurityEvent(_ context.Context, event audit.Event) {
	r.events = append(r.events, event)
}

func TestDetectFraud_BelowThresholdAuditsAssessment(t *testing.T) {
	auditor := &recordingAuditor{}
	engine := NewEngine(testPaymentConfig(), cache.NewBlocklist(), auditor, zap.NewNop())

	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		UserID:    "u-1",
		Amount:    decimal.NewFromInt(200),
		Currency:  "EUR",
		Card:      validCard(),
		Email:     "guest@example.com",
		IPAddress: "203.0.113.20",
		UserAgent: "Mozilla/5.0",
	})
	require.False(t, assessment.Fraudulent)

	require.Len(t, auditor.events, 1)
	event := auditor.events[0]
	assert.Equal(t, audit.EventPaymentAssessed, event.Type)
	assert.Equal(t, audit.SeverityLow, event.Severity)
	assert.Equal(t, assessment.Score, event.Details["score"])
	assert.Equal(t, assessment.TransactionID, event.Details["transaction_id"])
}

func TestDetectFraud_FraudulentAuditsDetectionOnly(t *testing.T) {
	auditor := &recordingAuditor{}
	engine := NewEngine(testPaymentConfig(), cache.NewBlocklist(), auditor, zap.NewNop())
	engine.BlockIP("203.0.113.21")

	assessment := engine.DetectFraud(context.Background(), PaymentAttempt{
		UserID:    "u-1",
		Amount:    decimal.NewFromInt(200),
		Currency:  "EUR",
		Card:      validCard(),
		IPAddress: "203.0.113.21",
		UserAgent: "Mozilla/5.0",
	})
	require.True(t, assessment.Fraudulent)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, audit.EventPaymentFraudDetected, auditor.events[0].Type)
	assert.Equal(t, assessment.Score, auditor.events[0].Details["score"])
}
