package rest

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/validation"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
	"github.com/casabria/booking-security-backend/internal/service/bookingguard"
	"github.com/casabria/booking-security-backend/internal/service/dataprotection"
	"github.com/casabria/booking-security-backend/internal/service/fraud"
	"github.com/casabria/booking-security-backend/internal/service/session"
	"github.com/casabria/booking-security-backend/internal/service/uploadguard"
)

// multipartMemoryBytes caps in-memory buffering when parsing uploads.
const multipartMemoryBytes = 10 << 20

// Handler owns the HTTP surface. Every route goes through the pipeline; the
// per-route config decides which checks apply.
type Handler struct {
	cfg      *config.Config
	pipeline *Pipeline
	sessions *session.Manager
	fraud    *fraud.Engine
	bookings *bookingguard.Engine
	uploads  *uploadguard.Guard
	privacy  *dataprotection.Ledger
	logger   *zap.Logger

	registry *bookingRegistry
}

func NewHandler(cfg *config.Config, pipeline *Pipeline, sessions *session.Manager, fraudEngine *fraud.Engine, bookingEngine *bookingguard.Engine, uploadGuard *uploadguard.Guard, privacy *dataprotection.Ledger, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:      cfg,
		pipeline: pipeline,
		sessions: sessions,
		fraud:    fraudEngine,
		bookings: bookingEngine,
		uploads:  uploadGuard,
		privacy:  privacy,
		logger:   logger,
		registry: newBookingRegistry(),
	}
}

// Routes registers all endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	api := h.cfg.Security.API
	public := PipelineConfig{
		AllowedMethods: []string{http.MethodPost},
		ValidateInput:  true,
		LogRequests:    true,
		MaxRequests:    api.MaxRequests,
		Window:         api.Window,
	}
	authed := PipelineConfig{
		AllowedMethods: []string{http.MethodPost},
		RequireAuth:    true,
		RequireCSRF:    true,
		ValidateInput:  true,
		LogRequests:    true,
		MaxRequests:    api.MaxRequests,
		Window:         api.Window,
	}
	authedGet := PipelineConfig{
		AllowedMethods: []string{http.MethodGet},
		RequireAuth:    true,
		LogRequests:    true,
		MaxRequests:    api.MaxRequests,
		Window:         api.Window,
	}
	upload := authed
	upload.ValidateInput = false

	revoke := authed
	revoke.AllowedMethods = []string{http.MethodDelete}

	mux.HandleFunc("/api/v1/auth/login", h.pipeline.Wrap(public, h.handleLogin))
	mux.HandleFunc("/api/v1/auth/logout", h.pipeline.Wrap(authed, h.handleLogout))
	mux.HandleFunc("/api/v1/auth/password", h.pipeline.Wrap(authed, h.handleChangePassword))
	mux.HandleFunc("/api/v1/bookings", h.pipeline.Wrap(authed, h.handleCreateBooking))
	mux.HandleFunc("/api/v1/payments", h.pipeline.Wrap(authed, h.handleProcessPayment))
	mux.HandleFunc("/api/v1/uploads", h.pipeline.Wrap(upload, h.handleUpload))
	mux.HandleFunc("/api/v1/privacy/consent", h.pipeline.Wrap(authed, h.handleGrantConsent))
	mux.HandleFunc("/api/v1/privacy/consent/revoke", h.pipeline.Wrap(revoke, h.handleRevokeConsent))
	mux.HandleFunc("/api/v1/privacy/erasure", h.pipeline.Wrap(authed, h.handleErasure))
	mux.HandleFunc("/api/v1/privacy/export", h.pipeline.Wrap(authedGet, h.handleExport))
	mux.HandleFunc("/health", h.handleHealth)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		writeAppError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    result.Session.SessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.Environment == "production",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.cfg.Security.SessionDuration.Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    result.Session.UserID,
		"role":       result.Session.Role,
		"csrf_token": result.Session.CSRFToken,
		"expires_in": int(h.cfg.Security.SessionDuration.Seconds()),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := h.sessions.Logout(r.Context(), sess.SessionID); err != nil {
		writeAppError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess := SessionFromContext(r.Context())
	if err := h.sessions.ChangePassword(r.Context(), sess.SessionID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

type bookingRequest struct {
	PropertyID string  `json:"property_id"`
	CheckIn    string  `json:"check_in"`
	CheckOut   string  `json:"check_out"`
	Guests     int     `json:"guests"`
	TotalPrice float64 `json:"total_price"`
}

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess := SessionFromContext(r.Context())
	if err := h.bookings.CheckPermission(r.Context(), sess.Role, "booking:create", sess.UserID); err != nil {
		writeAppError(w, err)
		return
	}

	guardReq := bookingguard.Request{
		UserID:     sess.UserID,
		PropertyID: req.PropertyID,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Guests:     req.Guests,
		TotalPrice: decimal.NewFromFloat(req.TotalPrice),
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	}
	result := h.bookings.ValidateBooking(r.Context(), guardReq, h.registry)
	if !result.Valid {
		writeFieldErrors(w, http.StatusBadRequest, "Booking could not be accepted", bookingFieldErrors(result.Errors))
		return
	}
	h.registry.Add(guardReq.Key())

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"property_id": req.PropertyID,
		"check_in":    req.CheckIn,
		"check_out":   req.CheckOut,
		"guests":      req.Guests,
		"warnings":    result.Warnings,
	})
}

type paymentRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	CardNumber  string `json:"card_number"`
	CardHolder  string `json:"card_holder"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
	Email       string `json:"email"`
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess := SessionFromContext(r.Context())

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if err := h.fraud.ValidateAmount(amount, req.Currency); err != nil {
		writeAppError(w, err)
		return
	}

	card := fraud.CardDetails{
		Number:      req.CardNumber,
		HolderName:  req.CardHolder,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		CVV:         req.CVV,
	}
	if fieldErrors := h.fraud.ValidateCard(card); len(fieldErrors) > 0 {
		writeFieldErrors(w, http.StatusBadRequest, "Card details are invalid", fieldErrors)
		return
	}

	assessment := h.fraud.DetectFraud(r.Context(), fraud.PaymentAttempt{
		UserID:    sess.UserID,
		Amount:    amount,
		Currency:  req.Currency,
		Card:      card,
		Email:     req.Email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if assessment.Fraudulent {
		writeError(w, http.StatusForbidden, "Payment could not be processed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_id": assessment.TransactionID,
		"amount":         amount.StringFixed(2),
		"currency":       req.Currency,
		"card":           card.MaskedNumber(),
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	// maxMemory only bounds in-RAM buffering; larger parts spill to temp
	// files, so per-file size limits are still enforced below.
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	var files []uploadguard.File
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			src, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "Unreadable file in upload")
				return
			}
			content, err := io.ReadAll(io.LimitReader(src, h.cfg.Upload.MaxFileSize+1))
			src.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, "Unreadable file in upload")
				return
			}
			files = append(files, uploadguard.File{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        int64(len(content)),
				Content:     content,
			})
		}
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files in upload")
		return
	}

	result := h.uploads.ValidateBatch(r.Context(), files, clientIP(r), r.UserAgent())
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type consentRequest struct {
	ConsentType string `json:"consent_type"`
	Purpose     string `json:"purpose"`
	LegalBasis  string `json:"legal_basis"`
}

func (h *Handler) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ConsentType == "" {
		writeError(w, http.StatusBadRequest, "Consent type is required")
		return
	}
	sess := SessionFromContext(r.Context())
	rec, err := h.privacy.GrantConsent(r.Context(), sess.UserID,
		dataprotection.ConsentType(req.ConsentType), req.Purpose, req.LegalBasis,
		clientIP(r), r.UserAgent())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	consentType := r.URL.Query().Get("consent_type")
	if consentType == "" {
		writeError(w, http.StatusBadRequest, "Consent type is required")
		return
	}
	sess := SessionFromContext(r.Context())
	rec, err := h.privacy.RevokeConsent(r.Context(), sess.UserID,
		dataprotection.ConsentType(consentType), clientIP(r), r.UserAgent())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleErasure(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := h.privacy.RightToErasure(r.Context(), dataprotection.ErasureRequest{UserID: sess.UserID}); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Personal data anonymized"})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	export, err := h.privacy.ExportUserData(r.Context(), sess.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, export)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.cfg.Version,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	return true
}

func bookingFieldErrors(errs []string) []validation.FieldError {
	out := make([]validation.FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, validation.FieldError{Field: "booking", Message: e})
	}
	return out
}

// bookingRegistry tracks accepted booking keys for duplicate detection.
type bookingRegistry struct {
	mu   sync.RWMutex
	keys bookingguard.BookingKeySet
}

func newBookingRegistry() *bookingRegistry {
	return &bookingRegistry{keys: make(bookingguard.BookingKeySet)}
}

func (r *bookingRegistry) Exists(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys.Exists(key)
}

func (r *bookingRegistry) Add(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key] = struct{}{}
}
