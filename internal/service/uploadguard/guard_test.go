package uploadguard

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/casabria/booking-security-backend/internal/domain/audit"
	"github.com/casabria/booking-security-backend/internal/infrastructure/config"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:       1 << 20,
		MaxFilesPerUpload: 3,
		MaxUploadsPerHour: 10,
		AllowedMIMETypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
	}
}

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	return NewGuard(testUploadConfig(), audit.NopLogger{}, zap.NewNop())
}

// tinyPNG returns a well-formed 2x2 PNG.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngFile(t *testing.T, name string) File {
	content := tinyPNG(t)
	return File{Name: name, ContentType: "image/png", Size: int64(len(content)), Content: content}
}

func TestValidateBatch_CleanImageAccepted(t *testing.T) {
	guard := newTestGuard(t)

	result := guard.ValidateBatch(context.Background(), []File{pngFile(t, "villa.png")}, "203.0.113.30", "Mozilla/5.0")
	assert.True(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].Valid)
	assert.False(t, result.Results[0].Sanitized)
	assert.Len(t, result.Files, 1)
}

func TestValidateBatch_ScriptInFilenameRejected(t *testing.T) {
	guard := newTestGuard(t)

	// Valid PNG content and MIME; the filename alone must sink it.
	result := guard.ValidateBatch(context.Background(), []File{pngFile(t, "evil<script>.png")}, "203.0.113.31", "")
	assert.False(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Errors, "filename contains suspicious content")
}

func TestValidateFile_PathTraversalRejected(t *testing.T) {
	guard := newTestGuard(t)

	result := guard.ValidateBatch(context.Background(), []File{
		{Name: "../../etc/passwd.png", ContentType: "image/png", Size: 10, Content: tinyPNG(t)},
	}, "203.0.113.32", "")
	assert.False(t, result.Valid)
}

func TestValidateFile_BlockedExtension(t *testing.T) {
	guard := newTestGuard(t)

	result := guard.ValidateBatch(context.Background(), []File{
		{Name: "installer.exe", ContentType: "image/png", Size: 10, Content: []byte("MZ")},
	}, "203.0.113.33", "")
	assert.False(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Errors, `extension ".exe" is not allowed`)
	assert.Contains(t, result.Results[0].Errors, `extension ".exe" is blocked`)
}

func TestValidateFile_DisallowedMIME(t *testing.T) {
	guard := newTestGuard(t)

	result := guard.ValidateBatch(context.Background(), []File{
		{Name: "doc.png", ContentType: "application/pdf", Size: 10, Content: []byte("%PDF-")},
	}, "203.0.113.34", "")
	assert.False(t, result.Valid)
}

func TestValidateFile_SignatureMismatch(t *testing.T) {
	guard := newTestGuard(t)

	result := guard.ValidateBatch(context.Background(), []File{
		{Name: "fake.png", ContentType: "image/png", Size: 20, Content: []byte("this is not a png at all")},
	}, "203.0.113.35", "")
	assert.False(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Errors, "file signature does not match declared content type")
}

func TestValidateFile_OversizedRejected(t *testing.T) {
	guard := newTestGuard(t)

	f := pngFile(t, "huge.png")
	f.Size = 2 << 20
	result := guard.ValidateBatch(context.Background(), []File{f}, "203.0.113.36", "")
	assert.False(t, result.Valid)
}

func TestValidateBatch_TooManyFiles(t *testing.T) {
	guard := newTestGuard(t)

	files := []File{
		pngFile(t, "a.png"), pngFile(t, "b.png"),
		pngFile(t, "c.png"), pngFile(t, "d.png"),
	}
	result := guard.ValidateBatch(context.Background(), files, "203.0.113.37", "")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "too many files: maximum 3 per upload")
	assert.Empty(t, result.Results, "batch-level failures reject everything")
}

func TestValidateBatch_PolyglotSanitized(t *testing.T) {
	guard := newTestGuard(t)

	// Valid PNG signature with a script payload appended: a polyglot.
	content := append(tinyPNG(t), []byte("<script>alert(1)</script>")...)
	f := File{Name: "sneaky.png", ContentType: "image/png", Size: int64(len(content)), Content: content}

	result := guard.ValidateBatch(context.Background(), []File{f}, "203.0.113.38", "")
	require.True(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.True(t, result.Results[0].NeedsSanitization)
	assert.True(t, result.Results[0].Sanitized)

	// The re-encoded file no longer carries the payload.
	require.Len(t, result.Files, 1)
	clean := result.Files[0]
	assert.NotContains(t, string(clean.Content), "<script>")
	assert.Equal(t, "image/png", clean.ContentType)
}

func TestValidateBatch_PolyglotThatCannotDecodeIsRejected(t *testing.T) {
	guard := newTestGuard(t)

	// GIF signature plus script payload, but not an actual decodable GIF:
	// sanitization fails, which is a hard error for that file.
	content := append([]byte("GIF89a"), []byte("javascript:alert(1)")...)
	f := File{Name: "broken.gif", ContentType: "image/gif", Size: int64(len(content)), Content: content}

	result := guard.ValidateBatch(context.Background(), []File{f}, "203.0.113.39", "")
	assert.False(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Errors, "file could not be sanitized")
}

func TestHashBlocklist(t *testing.T) {
	guard := newTestGuard(t)

	f := pngFile(t, "known-bad.png")
	hash := Hash(f.Content)
	guard.BlockHash(hash)
	assert.True(t, guard.IsHashBlocked(hash))

	result := guard.ValidateBatch(context.Background(), []File{f}, "203.0.113.40", "")
	assert.False(t, result.Valid)
	require.Len(t, result.Results, 1)
	assert.Contains(t, result.Results[0].Errors, "file content is blocked")
}

func TestUploadRateLimit_RollingWindow(t *testing.T) {
	cfg := testUploadConfig()
	cfg.MaxUploadsPerHour = 2
	guard := NewGuard(cfg, audit.NopLogger{}, zap.NewNop())

	current := time.Now()
	guard.now = func() time.Time { return current }

	file := []File{pngFile(t, "a.png")}
	ip := "203.0.113.41"

	assert.True(t, guard.ValidateBatch(context.Background(), file, ip, "").Valid)
	assert.True(t, guard.ValidateBatch(context.Background(), file, ip, "").Valid)

	third := guard.ValidateBatch(context.Background(), file, ip, "")
	assert.False(t, third.Valid)
	assert.Contains(t, third.Errors, "upload rate limit exceeded")

	// The window is rolling: a gap longer than an hour since the last
	// attempt resets the counter.
	current = current.Add(61 * time.Minute)
	assert.True(t, guard.ValidateBatch(context.Background(), file, ip, "").Valid)
}

func TestUploadRecords_StaleEntriesSwept(t *testing.T) {
	guard := newTestGuard(t)

	current := time.Now()
	guard.now = func() time.Time { return current }

	file := []File{pngFile(t, "a.png")}
	assert.True(t, guard.ValidateBatch(context.Background(), file, "203.0.113.50", "").Valid)
	assert.True(t, guard.ValidateBatch(context.Background(), file, "203.0.113.51", "").Valid)

	// An upload from a new IP after the window passes evicts the records
	// of IPs that never came back.
	current = current.Add(61 * time.Minute)
	assert.True(t, guard.ValidateBatch(context.Background(), file, "203.0.113.52", "").Valid)

	guard.mu.Lock()
	defer guard.mu.Unlock()
	assert.NotContains(t, guard.uploads, "203.0.113.50")
	assert.NotContains(t, guard.uploads, "203.0.113.51")
	assert.Contains(t, guard.uploads, "203.0.113.52")
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "photo.png", replaceExt("photo.webp", ".png"))
	assert.Equal(t, "photo.png", replaceExt("photo", ".png"))
}
