package httptransport

import (
	"io"

	"github.com/gin-gonic/gin"

	"monogest/backend/internal/domain"
	"monogest/backend/internal/service"
)

// uploadLogo stores the study's logo, shown in the client mailbox header.
// Staff only; logos carry a much stricter rule set than attachments.
func (h *Handler) uploadLogo(c *gin.Context) {
	if c.GetString("counterpartyKind") != string(domain.CounterpartyStaff) {
		Forbidden(c, GetErrorMessage(service.ErrForbidden))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	part, err := header.Open()
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	content, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	uploads, err := h.logos.UploadAll(c.Request.Context(), "branding", []service.UploadFile{{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     content,
	}})
	if err != nil {
		h.respondError(c, err, MsgAttachmentURLFailed)
		return
	}

	Created(c, gin.H{"url": h.logos.ResolveDownloadURL(uploads[0].StorageLocator)})
}
