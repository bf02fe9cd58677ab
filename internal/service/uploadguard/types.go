package uploadguard

// File is one uploaded file: metadata plus full content.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}

// FileResult is the per-file validation outcome.
type FileResult struct {
	Name              string   `json:"name"`
	Valid             bool     `json:"valid"`
	Errors            []string `json:"errors,omitempty"`
	NeedsSanitization bool     `json:"needs_sanitization"`
	Sanitized         bool     `json:"sanitized"`
}

// BatchResult is the outcome of validating a whole upload batch. Files
// holds the (possibly re-encoded) files safe to persist; it only contains
// files whose individual result is valid.
type BatchResult struct {
	Valid   bool         `json:"valid"`
	Errors  []string     `json:"errors,omitempty"`
	Results []FileResult `json:"results,omitempty"`
	Files   []File       `json:"-"`
}
