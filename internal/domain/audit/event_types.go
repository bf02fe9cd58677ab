package audit

// EventType represents the category of security audit event
type EventType string

// Authentication events
const (
	EventLoginSuccess         EventType = "LOGIN_SUCCESS"
	EventLoginFailed          EventType = "LOGIN_FAILED"
	EventLoginLocked          EventType = "LOGIN_LOCKED"
	EventLogout               EventType = "LOGOUT"
	EventInvalidSessionID     EventType = "INVALID_SESSION_ID"
	EventSessionExpired       EventType = "SESSION_EXPIRED"
	EventPasswordChanged      EventType = "PASSWORD_CHANGED"
	EventPasswordChangeFailed EventType = "PASSWORD_CHANGE_FAILED"
)

// API pipeline events
const (
	EventAPIRequest            EventType = "API_REQUEST"
	EventAPIResponse           EventType = "API_RESPONSE"
	EventAPIError              EventType = "API_ERROR"
	EventInvalidMethod         EventType = "INVALID_METHOD"
	EventAPIRateLimited        EventType = "API_RATE_LIMITED"
	EventAPIAuthFailed         EventType = "API_AUTH_FAILED"
	EventCSRFValidationFailed  EventType = "CSRF_VALIDATION_FAILED"
	EventInputValidationFailed EventType = "INPUT_VALIDATION_FAILED"
)

// Fraud and business-logic events
const (
	EventPaymentAssessed      EventType = "PAYMENT_ASSESSED"
	EventPaymentFraudDetected EventType = "PAYMENT_FRAUD_DETECTED"
	EventPaymentRejected      EventType = "PAYMENT_REJECTED"
	EventBookingRejected      EventType = "BOOKING_REJECTED"
	EventSuspiciousActivity   EventType = "SUSPICIOUS_ACTIVITY"
	EventPriceManipulation    EventType = "PRICE_MANIPULATION"
	EventPermissionDenied     EventType = "PERMISSION_DENIED"
)

// Upload events
const (
	EventUploadRejected     EventType = "UPLOAD_REJECTED"
	EventUploadRateLimited  EventType = "UPLOAD_RATE_LIMITED"
	EventUploadSanitized    EventType = "UPLOAD_SANITIZED"
	EventBlockedFileHash    EventType = "BLOCKED_FILE_HASH"
	EventPolyglotFileUpload EventType = "POLYGLOT_FILE_UPLOAD"
)

// Data protection events
const (
	EventConsentGranted      EventType = "CONSENT_GRANTED"
	EventConsentRevoked      EventType = "CONSENT_REVOKED"
	EventDataProcessed       EventType = "DATA_PROCESSED"
	EventDataProcessDenied   EventType = "DATA_PROCESS_DENIED"
	EventDataErased          EventType = "DATA_ERASED"
	EventErasureRefused      EventType = "ERASURE_REFUSED"
	EventDataExported        EventType = "DATA_EXPORTED"
)

// Severity represents how serious a security event is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)
