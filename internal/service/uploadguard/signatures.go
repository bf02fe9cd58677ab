package uploadguard

import "bytes"

// imageSignatures maps image MIME types to their file-signature checks over
// the first bytes of content.
var imageSignatures = map[string]func([]byte) bool{
	"image/jpeg": func(b []byte) bool {
		return len(b) >= 3 && bytes.Equal(b[:3], []byte{0xFF, 0xD8, 0xFF})
	},
	"image/png": func(b []byte) bool {
		return len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	},
	"image/gif": func(b []byte) bool {
		return len(b) >= 6 && (bytes.Equal(b[:6], []byte("GIF87a")) || bytes.Equal(b[:6], []byte("GIF89a")))
	},
	"image/webp": func(b []byte) bool {
		return len(b) >= 12 && bytes.Equal(b[:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP"))
	},
}

// isImageMIME reports whether the declared type has a known signature check.
func isImageMIME(contentType string) bool {
	_, ok := imageSignatures[contentType]
	return ok
}

// signatureMatches verifies the content's magic bytes against the declared
// MIME type. Unknown types match vacuously.
func signatureMatches(contentType string, content []byte) bool {
	check, ok := imageSignatures[contentType]
	if !ok {
		return true
	}
	return check(content)
}
