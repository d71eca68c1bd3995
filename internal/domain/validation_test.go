package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileRules_CheckFile(t *testing.T) {
	rules := DefaultMailboxFileRules()

	t.Run("accepts a pdf within the size limit", func(t *testing.T) {
		result := rules.CheckFile("factura.pdf", "application/pdf", 1_500_000)

		assert.True(t, result.Valid)
		assert.Empty(t, result.Reason)
		assert.Equal(t, AttachmentDocument, result.Kind)
	})

	t.Run("accepts images by MIME prefix", func(t *testing.T) {
		result := rules.CheckFile("dni.jpg", "image/jpeg", 300_000)

		assert.True(t, result.Valid)
		assert.Equal(t, AttachmentImage, result.Kind)
	})

	t.Run("rejects a 150 MB video before any upload", func(t *testing.T) {
		result := rules.CheckFile("pantalla.mp4", "video/mp4", 150_000_000)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Reason, "exceeds")
	})

	t.Run("rejects disallowed types", func(t *testing.T) {
		result := rules.CheckFile("setup.exe", "application/x-msdownload", 1000)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Reason, "not allowed")
	})

	t.Run("rejects unparseable MIME types", func(t *testing.T) {
		result := rules.CheckFile("x.pdf", ";;;", 10)

		assert.False(t, result.Valid)
	})

	t.Run("allows spreadsheets by extension", func(t *testing.T) {
		result := rules.CheckFile("ventas.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", 50_000)

		assert.True(t, result.Valid)
		assert.Equal(t, AttachmentSpreadsheet, result.Kind)
	})

	t.Run("logo rules cap at 2 MB", func(t *testing.T) {
		result := LogoFileRules().CheckFile("logo.png", "image/png", 3_000_000)

		assert.False(t, result.Valid)
	})
}

func TestClassifyAttachment(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		filename    string
		want        AttachmentKind
	}{
		{"pdf is document", "application/pdf", "f.pdf", AttachmentDocument},
		{"docx is document", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "f.docx", AttachmentDocument},
		{"png is image", "image/png", "f.png", AttachmentImage},
		{"mp4 is video", "video/mp4", "f.mp4", AttachmentVideo},
		{"xls is spreadsheet", "application/vnd.ms-excel", "f.xls", AttachmentSpreadsheet},
		{"csv extension is spreadsheet", "text/plain", "f.csv", AttachmentSpreadsheet},
		{"unknown falls through to other", "application/octet-stream", "f.bin", AttachmentOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyAttachment(tc.contentType, tc.filename))
		})
	}
}
