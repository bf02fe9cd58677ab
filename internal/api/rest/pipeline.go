package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/domain/validation"
	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
	"github.com/casabria/booking-security-backend/internal/service/session"
)

const maxBodyBytes = 1 << 20

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the validated session attached by the pipeline,
// or nil when the route did not require auth.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionContextKey).(*session.Session)
	return s
}

// PipelineConfig controls which checks a route runs. Zero MaxRequests
// disables the per-route rate limit.
type PipelineConfig struct {
	AllowedMethods []string
	RequireAuth    bool
	RequireCSRF    bool
	ValidateInput  bool
	LogRequests    bool
	MaxRequests    int
	Window         time.Duration
}

// Pipeline wraps business handlers with the ordered security checks. Each
// check short-circuits with its own status code and audit event; the
// security headers are attached on every branch including rejections.
type Pipeline struct {
	sessions *session.Manager
	csrf     cache.CSRFStore
	limiter  cache.RateLimiter
	auditor  audit.Logger
	logger   *zap.Logger
	origins  []string
	tracer   trace.Tracer
}

func NewPipeline(sessions *session.Manager, csrf cache.CSRFStore, limiter cache.RateLimiter, auditor audit.Logger, logger *zap.Logger, allowedOrigins []string) *Pipeline {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Pipeline{
		sessions: sessions,
		csrf:     csrf,
		limiter:  limiter,
		auditor:  auditor,
		logger:   logger,
		origins:  allowedOrigins,
		tracer:   otel.Tracer("api"),
	}
}

var csrfMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// Wrap applies the check chain to handler. Order is fixed: CORS preflight,
// method, rate limit, auth, CSRF, input scan, then the handler itself.
func (p *Pipeline) Wrap(cfg PipelineConfig, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)
		userAgent := r.UserAgent()

		ctx, span := p.tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			))
		defer span.End()
		r = r.WithContext(ctx)

		applySecurityHeaders(w)

		if p.handleCORS(w, r) {
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventAPIError, audit.SeverityHigh, map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprintf("%v", rec),
				}).WithClient(ip, userAgent))
				p.logger.Error("handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "An internal error occurred")
			}
		}()

		if cfg.LogRequests {
			p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventAPIRequest, audit.SeverityLow, map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			}).WithClient(ip, userAgent))
		}

		if !methodAllowed(cfg.AllowedMethods, r.Method) {
			p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventInvalidMethod, audit.SeverityLow, map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			}).WithClient(ip, userAgent))
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if cfg.MaxRequests > 0 {
			key := ip + ":" + r.URL.Path
			result, err := p.limiter.Allow(ctx, key, cfg.MaxRequests, cfg.Window)
			if err != nil {
				p.logger.Warn("rate limiter unavailable", zap.Error(err))
			} else if result.Limited {
				p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventAPIRateLimited, audit.SeverityMedium, map[string]interface{}{
					"path":  r.URL.Path,
					"count": result.Count,
				}).WithClient(ip, userAgent))
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
		}

		var sess *session.Session
		if cfg.RequireAuth {
			var err error
			sess, err = p.sessions.Validate(ctx, sessionID(r))
			if err != nil {
				p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventAPIAuthFailed, audit.SeverityMedium, map[string]interface{}{
					"path": r.URL.Path,
				}).WithClient(ip, userAgent))
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
		}

		if cfg.RequireCSRF && csrfMethods[r.Method] {
			if sess == nil || !p.validCSRF(r.Context(), sess.SessionID, csrfToken(r)) {
				p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventCSRFValidationFailed, audit.SeverityHigh, map[string]interface{}{
					"path": r.URL.Path,
				}).WithClient(ip, userAgent))
				writeError(w, http.StatusForbidden, "CSRF validation failed")
				return
			}
		}

		if cfg.ValidateInput && bodyMethods[r.Method] {
			fieldErrors, err := p.scanBody(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Malformed request body")
				return
			}
			if len(fieldErrors) > 0 {
				p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventInputValidationFailed, audit.SeverityHigh, map[string]interface{}{
					"path":   r.URL.Path,
					"errors": fieldErrors,
				}).WithClient(ip, userAgent))
				writeFieldErrors(w, http.StatusBadRequest, "Request contains invalid input", fieldErrors)
				return
			}
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(recorder, r)

		if cfg.LogRequests {
			p.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventAPIResponse, audit.SeverityLow, map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      recorder.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).WithClient(ip, userAgent))
		}
	}
}

func (p *Pipeline) validCSRF(ctx context.Context, sessionID, token string) bool {
	if token == "" {
		return false
	}
	ok, err := p.csrf.Validate(ctx, sessionID, token)
	if err != nil {
		p.logger.Warn("csrf store unavailable", zap.Error(err))
		return false
	}
	return ok
}

// scanBody walks every string leaf of a JSON body looking for injection
// patterns. The body is restored so the handler can read it again.
func (p *Pipeline) scanBody(r *http.Request) ([]validation.FieldError, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	var fieldErrors []validation.FieldError
	scanValue("", parsed, &fieldErrors)
	return fieldErrors, nil
}

func scanValue(path string, value interface{}, out *[]validation.FieldError) {
	switch v := value.(type) {
	case string:
		if validation.ContainsXSS(v) {
			*out = append(*out, validation.FieldError{Field: path, Message: "Potential XSS content detected"})
		}
		if validation.ContainsSQLInjection(v) {
			*out = append(*out, validation.FieldError{Field: path, Message: "Potential SQL injection detected"})
		}
	case map[string]interface{}:
		for key, child := range v {
			scanValue(joinPath(path, key), child, out)
		}
	case []interface{}:
		for i, child := range v {
			scanValue(fmt.Sprintf("%s[%d]", path, i), child, out)
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func methodAllowed(allowed []string, method string) bool {
	for _, m := range allowed {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// sessionID pulls the session identifier from the session cookie or a
// bearer token, cookie first.
func sessionID(r *http.Request) string {
	if c, err := r.Cookie("session"); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func csrfToken(r *http.Request) string {
	if token := r.Header.Get("x-csrf-token"); token != "" {
		return token
	}
	return r.Header.Get("csrf-token")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
