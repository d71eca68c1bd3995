package httptransport

import (
	"github.com/gin-gonic/gin"
)

// attachmentURL resolves a download URL for an attachment the caller may
// access.
func (h *Handler) attachmentURL(c *gin.Context) {
	url, err := h.mailbox.AttachmentURL(c.Request.Context(), c.GetString("counterpartyID"), c.Param("id"))
	if err != nil {
		h.respondError(c, err, MsgAttachmentURLFailed)
		return
	}
	Success(c, gin.H{"url": url})
}
