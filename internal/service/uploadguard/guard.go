// Package uploadguard validates and sanitizes user file uploads before
// they are persisted.
package uploadguard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/infrastructure/cache"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
)

// suspiciousPatterns are scanned against both filenames and (decoded as
// text) the first kilobyte of image content, to catch polyglot files.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`\.\.[/\\]`),
	regexp.MustCompile(`(?i)%2e%2e[%/\\]`),
	regexp.MustCompile(`(?i)%252e`),
}

// blockedExtensions are rejected regardless of the allow list.
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".scr": {}, ".pif": {},
	".js": {}, ".jar": {}, ".vbs": {}, ".ps1": {}, ".sh": {}, ".php": {},
	".asp": {}, ".aspx": {}, ".jsp": {}, ".dll": {}, ".msi": {},
}

// contentScanBytes is how much of a file is inspected for signatures and
// embedded script patterns.
const contentScanBytes = 1024

// uploadWindow is the rolling per-IP upload window. The counter resets
// whenever the gap since the last attempt exceeds the window, rather than
// at a fixed boundary.
const uploadWindow = time.Hour

type uploadRecord struct {
	count       int
	lastAttempt time.Time
}

// Guard validates upload batches.
type Guard struct {
	cfg           config.UploadConfig
	blockedHashes *cache.Blocklist
	auditor       audit.Logger
	logger        *zap.Logger

	mu        sync.Mutex
	uploads   map[string]*uploadRecord
	lastSweep time.Time
	now       func() time.Time
}

// NewGuard creates an upload guard with its own independent content-hash
// blocklist.
func NewGuard(cfg config.UploadConfig, auditor audit.Logger, logger *zap.Logger) *Guard {
	return &Guard{
		cfg:           cfg,
		blockedHashes: cache.NewBlocklist(),
		auditor:       auditor,
		logger:        logger,
		uploads:       make(map[string]*uploadRecord),
		now:           time.Now,
	}
}

// ValidateBatch validates an upload batch from one client. Batch-level
// failures (rate limit, too many files) reject everything; per-file
// failures reject only that file. Files flagged for sanitization are
// re-encoded, and sanitization failure is a hard error for that file only.
func (g *Guard) ValidateBatch(ctx context.Context, files []File, ip, userAgent string) BatchResult {
	result := BatchResult{Valid: true}

	if !g.allowUpload(ip) {
		g.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventUploadRateLimited, audit.SeverityMedium,
			map[string]interface{}{"limit_per_hour": g.cfg.MaxUploadsPerHour},
		).WithClient(ip, userAgent))
		result.Valid = false
		result.Errors = append(result.Errors, "upload rate limit exceeded")
		return result
	}

	if len(files) > g.cfg.MaxFilesPerUpload {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("too many files: maximum %d per upload", g.cfg.MaxFilesPerUpload))
		return result
	}

	for _, f := range files {
		fr := g.validateFile(ctx, f, ip, userAgent)

		if fr.Valid && fr.NeedsSanitization {
			clean, err := sanitizeImage(f)
			if err != nil {
				g.logger.Warn("upload sanitization failed",
					zap.String("file", f.Name),
					zap.Error(err))
				fr.Valid = false
				fr.Errors = append(fr.Errors, "file could not be sanitized")
			} else {
				fr.Sanitized = true
				f = clean
				g.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventUploadSanitized, audit.SeverityMedium,
					map[string]interface{}{"file": fr.Name},
				).WithClient(ip, userAgent))
			}
		}

		if fr.Valid {
			result.Files = append(result.Files, f)
		} else {
			result.Valid = false
		}
		result.Results = append(result.Results, fr)
	}

	return result
}

func (g *Guard) validateFile(ctx context.Context, f File, ip, userAgent string) FileResult {
	fr := FileResult{Name: f.Name, Valid: true}
	reject := func(msg string) {
		fr.Valid = false
		fr.Errors = append(fr.Errors, msg)
	}

	if f.Size > g.cfg.MaxFileSize {
		reject(fmt.Sprintf("file exceeds maximum size of %d bytes", g.cfg.MaxFileSize))
	}

	if !contains(g.cfg.AllowedMIMETypes, f.ContentType) {
		reject(fmt.Sprintf("content type %q is not allowed", f.ContentType))
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	if !contains(g.cfg.AllowedExtensions, ext) {
		reject(fmt.Sprintf("extension %q is not allowed", ext))
	}
	// Checked independently of the allow list; both must pass.
	if _, blocked := blockedExtensions[ext]; blocked {
		reject(fmt.Sprintf("extension %q is blocked", ext))
	}

	if matchesSuspicious(f.Name) {
		reject("filename contains suspicious content")
	}

	if g.blockedHashes.Contains(Hash(f.Content)) {
		reject("file content is blocked")
		g.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventBlockedFileHash, audit.SeverityHigh,
			map[string]interface{}{"file": f.Name},
		).WithClient(ip, userAgent))
	}

	if fr.Valid && isImageMIME(f.ContentType) {
		head := f.Content
		if len(head) > contentScanBytes {
			head = head[:contentScanBytes]
		}

		if !signatureMatches(f.ContentType, head) {
			reject("file signature does not match declared content type")
		} else if matchesSuspicious(string(head)) {
			// Polyglot: valid image signature carrying script fragments.
			// Flag for re-encoding rather than rejecting outright.
			fr.NeedsSanitization = true
			g.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventPolyglotFileUpload, audit.SeverityHigh,
				map[string]interface{}{"file": f.Name},
			).WithClient(ip, userAgent))
		}
	}

	if !fr.Valid {
		g.auditor.LogSecurityEvent(ctx, audit.NewEvent(audit.EventUploadRejected, audit.SeverityMedium,
			map[string]interface{}{"file": f.Name, "errors": fr.Errors},
		).WithClient(ip, userAgent))
	}

	return fr
}

// allowUpload enforces the rolling per-IP upload limit: the counter resets
// when the gap since the last attempt exceeds the window.
func (g *Guard) allowUpload(ip string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Records outside the window carry no state worth keeping; sweep them
	// at most once per window so unique IPs cannot grow the map forever.
	if now.Sub(g.lastSweep) > uploadWindow {
		for key, rec := range g.uploads {
			if now.Sub(rec.lastAttempt) > uploadWindow {
				delete(g.uploads, key)
			}
		}
		g.lastSweep = now
	}

	rec, ok := g.uploads[ip]
	if !ok || now.Sub(rec.lastAttempt) > uploadWindow {
		g.uploads[ip] = &uploadRecord{count: 1, lastAttempt: now}
		return true
	}

	rec.count++
	rec.lastAttempt = now
	return rec.count <= g.cfg.MaxUploadsPerHour
}

// Hash returns the SHA-256 of content, hex encoded.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// IsHashBlocked reports whether the content hash is on the denylist.
func (g *Guard) IsHashBlocked(hash string) bool { return g.blockedHashes.Contains(hash) }

// BlockHash adds a content hash to the denylist.
func (g *Guard) BlockHash(hash string) { g.blockedHashes.Add(hash) }

func matchesSuspicious(s string) bool {
	for _, p := range suspiciousPatterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
