package domain

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// FileRules is the allow-list configuration applied to uploads before any
// network call. Different call sites carry different rules (mailbox
// attachments vs. logos).
type FileRules struct {
	MaxBytes            int64
	AllowedMimePrefixes []string
	AllowedExtensions   []string
}

// FileValidation is the outcome of a pure, side-effect-free file check.
type FileValidation struct {
	Valid  bool
	Reason string
	Kind   AttachmentKind
}

// DefaultMailboxFileRules returns the rules for mailbox attachments:
// common document, image, spreadsheet and video types up to 100 MB.
func DefaultMailboxFileRules() FileRules {
	return FileRules{
		MaxBytes:            100_000_000,
		AllowedMimePrefixes: []string{"image/", "video/"},
		AllowedExtensions:   []string{"pdf", "doc", "docx", "xls", "xlsx"},
	}
}

// LogoFileRules returns the stricter rules used for tenant logos.
func LogoFileRules() FileRules {
	return FileRules{
		MaxBytes:            2_000_000,
		AllowedMimePrefixes: []string{"image/"},
	}
}

// CheckFile validates a declared name, MIME type and size against the rules.
// It touches no I/O: callers run it before uploading anything.
func (r FileRules) CheckFile(filename, contentType string, size int64) FileValidation {
	if size > r.MaxBytes {
		return FileValidation{
			Valid:  false,
			Reason: fmt.Sprintf("file exceeds the %d byte limit", r.MaxBytes),
		}
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FileValidation{Valid: false, Reason: "invalid MIME type: " + contentType}
	}
	mediaType = strings.ToLower(mediaType)

	if !r.typeAllowed(mediaType, filename) {
		return FileValidation{Valid: false, Reason: "file type not allowed: " + mediaType}
	}

	return FileValidation{Valid: true, Kind: ClassifyAttachment(mediaType, filename)}
}

func (r FileRules) typeAllowed(mediaType, filename string) bool {
	for _, prefix := range r.AllowedMimePrefixes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	for _, allowed := range r.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
