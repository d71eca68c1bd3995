package domain

import (
	"path/filepath"
	"strings"
)

// AttachmentKind is the closed display classification of an attachment,
// derived once at validation time instead of re-matching MIME substrings
// on every render.
type AttachmentKind string

const (
	AttachmentDocument    AttachmentKind = "document"
	AttachmentImage       AttachmentKind = "image"
	AttachmentVideo       AttachmentKind = "video"
	AttachmentSpreadsheet AttachmentKind = "spreadsheet"
	AttachmentOther       AttachmentKind = "other"
)

// Attachment is a file owned by exactly one message. The storage locator is
// assigned at upload time and never changes.
type Attachment struct {
	ID             string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID      string         `json:"messageId" gorm:"type:varchar(36);index;not null"`
	Filename       string         `json:"filename" gorm:"type:varchar(255)"`
	ContentType    string         `json:"contentType" gorm:"type:varchar(100)"`
	Size           int64          `json:"size"`
	StorageLocator string         `json:"-" gorm:"type:varchar(500)"`
	Kind           AttachmentKind `json:"kind" gorm:"type:varchar(20)"`
}

var spreadsheetExtensions = map[string]bool{
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".ods":  true,
}

// ClassifyAttachment derives the display kind from a declared MIME type and
// file name. Spreadsheets are checked before the generic document bucket
// because their MIME types are application/* like everything else.
func ClassifyAttachment(contentType, filename string) AttachmentKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case strings.HasPrefix(ct, "image/"):
		return AttachmentImage
	case strings.HasPrefix(ct, "video/"):
		return AttachmentVideo
	case spreadsheetExtensions[ext] || strings.Contains(ct, "spreadsheet") || strings.Contains(ct, "ms-excel"):
		return AttachmentSpreadsheet
	case ct == "application/pdf" || ext == ".pdf" || ext == ".doc" || ext == ".docx" || strings.Contains(ct, "msword") || strings.Contains(ct, "wordprocessingml"):
		return AttachmentDocument
	default:
		return AttachmentOther
	}
}
