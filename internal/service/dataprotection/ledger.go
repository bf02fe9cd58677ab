package dataprotection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/errors"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
	"github.com/casabria/booking-security-backend/internal/infrastructure/crypto"
)

const anonymizedValue = "ANONYMIZED"

// Ledger enforces consent-gated processing of personal data and handles the
// subject rights around it. Consent is an append-only log; the current state
// for a purpose is computed by folding over that log, never by mutating a
// flag in place.
type Ledger struct {
	repo    ConsentRepository
	users   UserDataStore
	gateway *crypto.Gateway
	auditor audit.Logger
	logger  *zap.Logger

	retention       time.Duration
	sensitiveFields []string

	now func() time.Time
}

// NewLedger wires the ledger with its stores and audit sink.
func NewLedger(cfg config.PrivacyConfig, repo ConsentRepository, users UserDataStore, gateway *crypto.Gateway, auditor audit.Logger, logger *zap.Logger) *Ledger {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Ledger{
		repo:            repo,
		users:           users,
		gateway:         gateway,
		auditor:         auditor,
		logger:          logger,
		retention:       cfg.RetentionPeriod,
		sensitiveFields: cfg.SensitiveFields,
		now:             time.Now,
	}
}

// GrantConsent appends a granted=true record for the given consent type.
func (l *Ledger) GrantConsent(ctx context.Context, userID string, consentType ConsentType, purpose, legalBasis, ip, userAgent string) (ConsentRecord, error) {
	rec := ConsentRecord{
		ID:          uuid.New(),
		UserID:      userID,
		ConsentType: consentType,
		Granted:     true,
		Timestamp:   l.now().UTC(),
		IPAddress:   truncateIP(ip),
		UserAgent:   userAgent,
		Purpose:     purpose,
		LegalBasis:  legalBasis,
	}
	if err := l.repo.AppendConsent(ctx, rec); err != nil {
		return ConsentRecord{}, errors.Wrap(err, "append consent record")
	}
	l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventConsentGranted, audit.SeverityLow, map[string]interface{}{
		"consent_type": string(consentType),
		"purpose":      purpose,
		"legal_basis":  legalBasis,
	}).WithActor(userID).WithClient(rec.IPAddress, userAgent))
	return rec, nil
}

// RevokeConsent appends a granted=false record. Prior records stay untouched.
func (l *Ledger) RevokeConsent(ctx context.Context, userID string, consentType ConsentType, ip, userAgent string) (ConsentRecord, error) {
	rec := ConsentRecord{
		ID:          uuid.New(),
		UserID:      userID,
		ConsentType: consentType,
		Granted:     false,
		Timestamp:   l.now().UTC(),
		IPAddress:   truncateIP(ip),
		UserAgent:   userAgent,
		Purpose:     "consent_withdrawal",
		LegalBasis:  "consent",
	}
	if err := l.repo.AppendConsent(ctx, rec); err != nil {
		return ConsentRecord{}, errors.Wrap(err, "append consent revocation")
	}
	l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventConsentRevoked, audit.SeverityMedium, map[string]interface{}{
		"consent_type": string(consentType),
	}).WithActor(userID).WithClient(rec.IPAddress, userAgent))
	return rec, nil
}

// HasConsent folds over the consent log; the latest record for the consent
// type decides.
func (l *Ledger) HasConsent(ctx context.Context, userID string, consentType ConsentType) (bool, error) {
	records, err := l.repo.ListConsent(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "list consent records")
	}
	granted := false
	for _, rec := range records {
		if rec.ConsentType == consentType {
			granted = rec.Granted
		}
	}
	return granted, nil
}

// ProcessPersonalData gates processing on consent, applies purpose-specific
// minimization, encrypts configured sensitive fields, and records the act in
// the processing log. The returned map is a transformed copy; the input is
// not mutated.
func (l *Ledger) ProcessPersonalData(ctx context.Context, userID string, data map[string]string, purpose ConsentType, legalBasis string) (map[string]string, error) {
	ok, err := l.HasConsent(ctx, userID, purpose)
	if err != nil {
		return nil, err
	}
	if !ok {
		l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventDataProcessDenied, audit.SeverityMedium, map[string]interface{}{
			"purpose": string(purpose),
		}).WithActor(userID))
		return nil, errors.ErrConsentRequired
	}

	out := l.minimize(data, purpose)

	fields := make([]string, 0, len(out))
	for field := range out {
		fields = append(fields, field)
	}
	for _, field := range l.sensitiveFields {
		value, present := out[field]
		if !present || value == "" {
			continue
		}
		encrypted, err := l.gateway.Encrypt(value)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt sensitive field")
		}
		out[field] = encrypted
	}

	entry := ProcessingLogEntry{
		ID:         uuid.New(),
		UserID:     userID,
		Purpose:    string(purpose),
		LegalBasis: legalBasis,
		Fields:     fields,
		Timestamp:  l.now().UTC(),
	}
	if err := l.repo.AppendProcessing(ctx, entry); err != nil {
		l.logger.Warn("processing log append failed", zap.Error(err), zap.String("user_id", userID))
	}
	l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventDataProcessed, audit.SeverityLow, map[string]interface{}{
		"purpose":     string(purpose),
		"legal_basis": legalBasis,
		"field_count": len(fields),
	}).WithActor(userID))
	return out, nil
}

// minimize applies the purpose-specific transforms: marketing never sees
// identity documents, analytics only sees pseudonymized contact data.
func (l *Ledger) minimize(data map[string]string, purpose ConsentType) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	switch purpose {
	case ConsentMarketing:
		delete(out, "passport_number")
		delete(out, "date_of_birth")
	case ConsentAnalytics:
		if v, ok := out["email"]; ok {
			out["email"] = pseudonymize(v)
		}
		if v, ok := out["phone"]; ok {
			out["phone"] = pseudonymize(v)
		}
	}
	return out
}

// RightToErasure replaces the stored record with anonymized placeholders.
// Records under legal hold or younger than the retention period are refused.
// This is erasure by anonymization, not physical deletion.
func (l *Ledger) RightToErasure(ctx context.Context, req ErasureRequest) error {
	if req.LegalHold {
		l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventErasureRefused, audit.SeverityMedium, map[string]interface{}{
			"reason": "legal_hold",
		}).WithActor(req.UserID))
		return errors.NewForbiddenError("Data cannot be erased due to legal retention requirements")
	}

	data, createdAt, err := l.users.Get(ctx, req.UserID)
	if err != nil {
		return errors.Wrap(err, "load user data")
	}
	if data == nil {
		return errors.NewNotFoundError("No personal data found for user")
	}
	if age := l.now().Sub(createdAt); age < l.retention {
		l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventErasureRefused, audit.SeverityMedium, map[string]interface{}{
			"reason":    "retention_period",
			"age_hours": int(age.Hours()),
		}).WithActor(req.UserID))
		return errors.NewForbiddenError("Data is still within the legal retention period")
	}

	anonymized := make(map[string]string, len(data))
	for field := range data {
		anonymized[field] = anonymizedValue
	}
	if err := l.users.Put(ctx, req.UserID, anonymized); err != nil {
		return errors.Wrap(err, "store anonymized record")
	}
	l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventDataErased, audit.SeverityHigh, map[string]interface{}{
		"field_count": len(anonymized),
	}).WithActor(req.UserID))
	l.logger.Info("personal data anonymized", zap.String("user_id", req.UserID))
	return nil
}

// ExportUserData assembles the portability bundle: the current personal-data
// record plus the full consent and processing history.
func (l *Ledger) ExportUserData(ctx context.Context, userID string) (DataExport, error) {
	data, _, err := l.users.Get(ctx, userID)
	if err != nil {
		return DataExport{}, errors.Wrap(err, "load user data")
	}
	consent, err := l.repo.ListConsent(ctx, userID)
	if err != nil {
		return DataExport{}, errors.Wrap(err, "list consent records")
	}
	processing, err := l.repo.ListProcessing(ctx, userID)
	if err != nil {
		return DataExport{}, errors.Wrap(err, "list processing log")
	}
	export := DataExport{
		UserID:         userID,
		GeneratedAt:    l.now().UTC(),
		PersonalData:   data,
		ConsentHistory: consent,
		ProcessingLog:  processing,
	}
	l.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventDataExported, audit.SeverityLow, map[string]interface{}{
		"consent_records":    len(consent),
		"processing_entries": len(processing),
	}).WithActor(userID))
	return export, nil
}

// pseudonymize replaces a value with a short stable digest so analytics can
// still correlate records without holding the raw identifier.
func pseudonymize(value string) string {
	sum := sha256.Sum256([]byte(value))
	return "pseu_" + hex.EncodeToString(sum[:8])
}

// truncateIP keeps only the network part of the client address so consent
// records do not store a full identifier. IPv4 keeps the /24, IPv6 the /48.
func truncateIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
