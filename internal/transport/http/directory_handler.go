package httptransport

import (
	"github.com/gin-gonic/gin"
)

// eligibleRecipients returns the counterparties the caller may address
// from the composer picker.
func (h *Handler) eligibleRecipients(c *gin.Context) {
	recipients, err := h.mailbox.EligibleRecipients(c.Request.Context(), c.GetString("counterpartyID"))
	if err != nil {
		h.respondError(c, err, MsgDirectoryFailed)
		return
	}

	Success(c, gin.H{
		"items": recipients,
		"count": len(recipients),
	})
}
