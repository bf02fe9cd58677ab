package uploadguard

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	_ "image/gif"

	_ "golang.org/x/image/webp"
)

// sanitizeImage decodes the file to a raster surface and re-serializes it,
// which strips any non-pixel payload and all metadata. JPEG stays JPEG;
// everything else (PNG, GIF, WEBP) comes back as PNG since the lossless
// clean target needs no animation or container features.
func sanitizeImage(f File) (File, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Content))
	if err != nil {
		return File{}, fmt.Errorf("decode %s: %w", f.Name, err)
	}

	var buf bytes.Buffer
	clean := File{Name: f.Name}

	if f.ContentType == "image/jpeg" {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return File{}, fmt.Errorf("re-encode %s: %w", f.Name, err)
		}
		clean.ContentType = "image/jpeg"
	} else {
		if err := png.Encode(&buf, img); err != nil {
			return File{}, fmt.Errorf("re-encode %s: %w", f.Name, err)
		}
		clean.ContentType = "image/png"
		clean.Name = replaceExt(f.Name, ".png")
	}

	clean.Content = buf.Bytes()
	clean.Size = int64(buf.Len())
	return clean, nil
}

func replaceExt(name, ext string) string {
	old := filepath.Ext(name)
	if old == "" {
		return name + ext
	}
	return strings.TrimSuffix(name, old) + ext
}
