package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/errors"
	"github.com/casabria/booking-security-backend/internal/domain/validation"
	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
	"github.com/casabria/booking-security-backend/internal/infrastructure/crypto"
)

// loginAttempt is the persistent lockout record for one username. It layers
// on top of the fixed-window limiter keyed by username+ip: two independent
// throttles, both consulted before credentials are ever checked.
type loginAttempt struct {
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Manager implements login throttling, account lockout and the session
// lifecycle.
type Manager struct {
	store    Store
	csrf     cache.CSRFStore
	limiter  cache.RateLimiter
	gateway  *crypto.Gateway
	verifier CredentialVerifier
	auditor  audit.Logger
	logger   *zap.Logger

	sessionDuration time.Duration
	loginCfg        config.LoginConfig

	mu        sync.Mutex
	attempts  map[string]*loginAttempt
	lastSweep time.Time
	now       func() time.Time
}

// NewManager wires the session manager from its collaborators.
func NewManager(
	store Store,
	csrf cache.CSRFStore,
	limiter cache.RateLimiter,
	gateway *crypto.Gateway,
	verifier CredentialVerifier,
	auditor audit.Logger,
	logger *zap.Logger,
	sessionDuration time.Duration,
	loginCfg config.LoginConfig,
) *Manager {
	return &Manager{
		store:           store,
		csrf:            csrf,
		limiter:         limiter,
		gateway:         gateway,
		verifier:        verifier,
		auditor:         auditor,
		logger:          logger,
		sessionDuration: sessionDuration,
		loginCfg:        loginCfg,
		attempts:        make(map[string]*loginAttempt),
		now:             time.Now,
	}
}

// LoginResult reports a successful login.
type LoginResult struct {
	Session           Session
	RemainingAttempts int
}

// Login authenticates username/password from the given client. Order is
// fixed: rate limiter, lockout record, then - and only then - the
// credential authority.
func (m *Manager) Login(ctx context.Context, username, password, ip, userAgent string) (*LoginResult, error) {
	limiterKey := fmt.Sprintf("login:%s:%s", username, ip)

	res, err := m.limiter.Allow(ctx, limiterKey, m.loginCfg.RateLimitAttempts, m.loginCfg.RateLimitWindow)
	if err != nil {
		m.logger.Warn("login rate limiter unavailable", zap.Error(err))
	}
	if res.Limited {
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventLoginFailed, audit.SeverityMedium,
			map[string]interface{}{"username": username, "reason": "rate_limited"},
		).WithClient(ip, userAgent))
		return nil, errors.ErrRateLimited
	}

	if locked, until := m.isLocked(username); locked {
		// Credential correctness is irrelevant while locked; do not even
		// consult the verifier.
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventLoginLocked, audit.SeverityHigh,
			map[string]interface{}{"username": username, "locked_until": until},
		).WithClient(ip, userAgent))
		return nil, errors.ErrAccountLocked
	}

	identity, ok, err := m.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, errors.NewExternalError("credentials", "verification unavailable").WithCause(err)
	}

	if !ok {
		remaining := m.recordFailure(username)
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventLoginFailed, audit.SeverityMedium,
			map[string]interface{}{"username": username, "remaining_attempts": remaining},
		).WithClient(ip, userAgent))
		return nil, errors.NewUnauthorizedError(errors.ErrInvalidCredentials.Message).
			WithDetails(map[string]interface{}{"remaining_attempts": remaining})
	}

	sess, err := m.createSession(ctx, identity, username, ip, userAgent)
	if err != nil {
		return nil, err
	}

	m.clearFailedAttempts(username)
	if err := m.limiter.Reset(ctx, limiterKey); err != nil {
		m.logger.Warn("login limiter reset failed", zap.String("key", limiterKey), zap.Error(err))
	}

	m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventLoginSuccess, audit.SeverityLow,
		map[string]interface{}{"username": username, "user_id": identity.UserID},
	).WithActor(identity.UserID).WithClient(ip, userAgent))

	return &LoginResult{Session: sess, RemainingAttempts: m.loginCfg.MaxFailedAttempts}, nil
}

// Validate looks up and checks a session. Expired sessions are cleaned up
// as a side effect. LastActivity is refreshed as bookkeeping; it never
// extends the absolute lifetime.
func (m *Manager) Validate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, errors.ErrNoSession
	}

	if !crypto.ValidSessionID(sessionID) {
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventInvalidSessionID, audit.SeverityMedium,
			map[string]interface{}{"session_id_length": len(sessionID)}))
		return nil, errors.ErrInvalidSession
	}

	sess, found, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, errors.NewInternalError("session lookup failed").WithCause(err)
	}
	if !found {
		return nil, errors.ErrNoSession
	}

	if m.now().Sub(sess.CreatedAt) > m.sessionDuration {
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventSessionExpired, audit.SeverityLow,
			map[string]interface{}{"user_id": sess.UserID},
		).WithActor(sess.UserID))
		if err := m.Logout(ctx, sessionID); err != nil {
			m.logger.Warn("expired session cleanup failed", zap.Error(err))
		}
		return nil, errors.ErrSessionExpired
	}

	sess.LastActivity = m.now()
	if err := m.store.Save(ctx, sess); err != nil {
		m.logger.Warn("session activity refresh failed", zap.Error(err))
	}

	return &sess, nil
}

// Logout destroys the session and revokes its CSRF token. Idempotent.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := m.csrf.Revoke(ctx, sessionID); err != nil {
		m.logger.Warn("csrf revoke failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return errors.NewInternalError("session delete failed").WithCause(err)
	}

	m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventLogout, audit.SeverityLow, nil))
	return nil
}

// ChangePassword re-verifies the current password through the same
// credential path as login before accepting the new one.
func (m *Manager) ChangePassword(ctx context.Context, sessionID, current, newPassword, confirm string) error {
	sess, err := m.Validate(ctx, sessionID)
	if err != nil {
		return err
	}

	fail := func(reason string) error {
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPasswordChangeFailed, audit.SeverityMedium,
			map[string]interface{}{"user_id": sess.UserID, "reason": reason},
		).WithActor(sess.UserID))
		return errors.NewValidationError("PASSWORD_CHANGE_REJECTED", "Password change rejected")
	}

	if newPassword == current {
		return fail("new_password_equals_current")
	}
	if newPassword != confirm {
		return fail("confirmation_mismatch")
	}
	if ok, problems := validation.PasswordStrength(newPassword); !ok {
		m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPasswordChangeFailed, audit.SeverityMedium,
			map[string]interface{}{"user_id": sess.UserID, "reason": "weak_password"},
		).WithActor(sess.UserID))
		return errors.NewValidationError("WEAK_PASSWORD", "Password does not meet policy").
			WithDetails(map[string]interface{}{"problems": problems})
	}

	_, ok, err := m.verifier.Verify(ctx, sess.Username, current)
	if err != nil {
		return errors.NewExternalError("credentials", "verification unavailable").WithCause(err)
	}
	if !ok {
		return fail("current_password_incorrect")
	}

	if err := m.verifier.UpdatePassword(ctx, sess.Username, newPassword); err != nil {
		return errors.NewExternalError("credentials", "password update failed").WithCause(err)
	}

	m.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPasswordChanged, audit.SeverityLow,
		map[string]interface{}{"user_id": sess.UserID},
	).WithActor(sess.UserID))
	return nil
}

// RemainingAttempts reports how many failed logins remain before lockout.
func (m *Manager) RemainingAttempts(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.attempts[username]
	if !ok {
		return m.loginCfg.MaxFailedAttempts
	}
	remaining := m.loginCfg.MaxFailedAttempts - rec.attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (m *Manager) createSession(ctx context.Context, identity Identity, username, ip, userAgent string) (Session, error) {
	sessionID, err := m.gateway.NewSessionID()
	if err != nil {
		return Session{}, errors.NewInternalError("session id generation failed").WithCause(err)
	}

	csrfToken, err := m.csrf.Generate(ctx, sessionID)
	if err != nil {
		return Session{}, errors.NewInternalError("csrf token generation failed").WithCause(err)
	}

	now := m.now()
	sess := Session{
		SessionID:    sessionID,
		UserID:       identity.UserID,
		Username:     username,
		Role:         identity.Role,
		CreatedAt:    now,
		LastActivity: now,
		IPAddress:    ip,
		UserAgent:    userAgent,
		CSRFToken:    csrfToken,
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return Session{}, errors.NewInternalError("session persistence failed").WithCause(err)
	}

	return sess, nil
}

func (m *Manager) isLocked(username string) (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.attempts[username]
	if !ok || rec.lockedUntil.IsZero() {
		return false, time.Time{}
	}
	if m.now().Before(rec.lockedUntil) {
		return true, rec.lockedUntil
	}
	return false, time.Time{}
}

func (m *Manager) recordFailure(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepAttemptsLocked()

	rec, ok := m.attempts[username]
	if !ok {
		rec = &loginAttempt{}
		m.attempts[username] = rec
	}

	rec.attempts++
	rec.lastAttempt = m.now()
	if rec.attempts >= m.loginCfg.MaxFailedAttempts {
		rec.lockedUntil = m.now().Add(m.loginCfg.LockoutDuration)
	}

	remaining := m.loginCfg.MaxFailedAttempts - rec.attempts
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// sweepAttemptsLocked drops records with no live lock and no failure within
// the lockout duration, so usernames that only ever fail cannot grow the map
// forever. Runs at most once per lockout duration. Caller holds m.mu.
func (m *Manager) sweepAttemptsLocked() {
	now := m.now()
	if now.Sub(m.lastSweep) < m.loginCfg.LockoutDuration {
		return
	}
	for username, rec := range m.attempts {
		if now.After(rec.lockedUntil) && now.Sub(rec.lastAttempt) > m.loginCfg.LockoutDuration {
			delete(m.attempts, username)
		}
	}
	m.lastSweep = now
}

func (m *Manager) clearFailedAttempts(username string) {
	m.mu.Lock()
	delete(m.attempts, username)
	m.mu.Unlock()
}
