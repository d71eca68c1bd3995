package httptransport

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"monogest/backend/internal/directory"
	"monogest/backend/internal/domain"
	"monogest/backend/internal/service"
	"monogest/backend/internal/storage"
)

// Handler aggregates the mailbox HTTP endpoints.
type Handler struct {
	mailbox *service.MailboxController
	logos   *service.AttachmentGateway
	log     *zap.Logger
}

// NewHandler creates the handler set. logos is the gateway carrying the
// stricter logo rule set.
func NewHandler(mailbox *service.MailboxController, logos *service.AttachmentGateway, log *zap.Logger) *Handler {
	return &Handler{mailbox: mailbox, logos: logos, log: log}
}

type composeRequest struct {
	Subject       string   `form:"subject" json:"subject"`
	Body          string   `form:"body" json:"body"`
	Origin        string   `form:"origin" json:"origin"`
	OriginContext string   `form:"originContext" json:"originContext"`
	Recipients    []string `form:"recipients" json:"recipients"`
	Group         string   `form:"group" json:"group"`
}

type replyRequest struct {
	Body            string  `form:"body" json:"body"`
	QuotedMessageID *string `form:"quotedMessageId" json:"quotedMessageId"`
}

// bindWithFiles binds either a JSON body or a multipart form with file
// parts named "files".
func bindWithFiles(c *gin.Context, req interface{}) ([]service.UploadFile, error) {
	contentType := c.GetHeader("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/") {
		return nil, c.ShouldBindJSON(req)
	}

	if err := c.ShouldBind(req); err != nil {
		return nil, err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	var files []service.UploadFile
	for _, header := range form.File["files"] {
		part, err := header.Open()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, service.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Content:     content,
		})
	}
	return files, nil
}

// respondError maps business errors to envelope responses.
func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnknownGroup),
		errors.Is(err, storage.ErrQuotedMessageNotFound):
		BadRequest(c, GetErrorMessage(unwrapSentinel(err)))
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, storage.ErrParticipantNotFound):
		Forbidden(c, GetErrorMessage(unwrapSentinel(err)))
	case errors.Is(err, storage.ErrConversationNotFound),
		errors.Is(err, storage.ErrMessageNotFound),
		errors.Is(err, storage.ErrAttachmentNotFound),
		errors.Is(err, directory.ErrCounterpartyNotFound):
		NotFound(c, GetErrorMessage(unwrapSentinel(err)))
	case errors.Is(err, storage.ErrConversationClosed):
		Conflict(c, GetErrorMessage(storage.ErrConversationClosed))
	case errors.Is(err, service.ErrUpload):
		InternalError(c, GetErrorMessage(service.ErrUpload))
	default:
		h.log.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		InternalError(c, fallback)
	}
}

// unwrapSentinel reduces a wrapped error to the sentinel the message
// table knows about.
func unwrapSentinel(err error) error {
	sentinels := []error{
		service.ErrValidation,
		service.ErrUnknownGroup,
		service.ErrForbidden,
		service.ErrUpload,
		storage.ErrQuotedMessageNotFound,
		storage.ErrParticipantNotFound,
		storage.ErrConversationNotFound,
		storage.ErrMessageNotFound,
		storage.ErrAttachmentNotFound,
		storage.ErrConversationClosed,
		directory.ErrCounterpartyNotFound,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return err
}

// createConversation opens a thread between the caller and their staff
// counterparts, or an explicit recipient set / group when given.
func (h *Handler) createConversation(c *gin.Context) {
	var req composeRequest
	files, err := bindWithFiles(c, &req)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	input := service.CreateConversationInput{
		InitiatorID:   c.GetString("counterpartyID"),
		Subject:       req.Subject,
		Body:          req.Body,
		Origin:        req.Origin,
		OriginContext: req.OriginContext,
		Files:         files,
	}

	var conv *domain.Conversation
	switch {
	case req.Group != "":
		conv, err = h.mailbox.ComposeToGroup(c.Request.Context(), req.Group, input)
	case len(req.Recipients) > 0:
		conv, err = h.mailbox.ComposeToRecipients(c.Request.Context(), service.CreateWithRecipientsInput{
			CreateConversationInput: input,
			RecipientIDs:            req.Recipients,
		})
	default:
		conv, err = h.mailbox.Compose(c.Request.Context(), input)
	}
	if err != nil {
		h.respondError(c, err, MsgConversationCreateFailed)
		return
	}

	Created(c, conv)
}

// listConversations returns the caller's threads, optionally filtered by
// ?state=open|closed.
func (h *Handler) listConversations(c *gin.Context) {
	var state *domain.ConversationState
	if raw := c.Query("state"); raw != "" {
		s := domain.ConversationState(raw)
		if !s.Valid() {
			BadRequest(c, MsgInvalidState)
			return
		}
		state = &s
	}

	conversations, err := h.mailbox.List(c.Request.Context(), c.GetString("counterpartyID"), state)
	if err != nil {
		h.respondError(c, err, MsgConversationListFailed)
		return
	}

	Success(c, gin.H{
		"items": conversations,
		"count": len(conversations),
	})
}

// getConversation returns the full thread and starts watching it.
func (h *Handler) getConversation(c *gin.Context) {
	conv, err := h.mailbox.OpenConversation(c.Request.Context(), c.GetString("counterpartyID"), c.Param("id"))
	if err != nil {
		h.respondError(c, err, MsgConversationGetFailed)
		return
	}
	Success(c, conv)
}

// closeView stops watching the thread without closing it.
func (h *Handler) closeView(c *gin.Context) {
	h.mailbox.CloseView(c.Param("id"))
	NoContent(c)
}

// reply appends a message to the thread.
func (h *Handler) reply(c *gin.Context) {
	var req replyRequest
	files, err := bindWithFiles(c, &req)
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.mailbox.Reply(c.Request.Context(), service.ReplyInput{
		ConversationID:  c.Param("id"),
		SenderID:        c.GetString("counterpartyID"),
		Body:            req.Body,
		Files:           files,
		QuotedMessageID: req.QuotedMessageID,
	})
	if err != nil {
		h.respondError(c, err, MsgReplyFailed)
		return
	}

	Created(c, msg)
}

// markRead marks the thread read for the caller.
func (h *Handler) markRead(c *gin.Context) {
	err := h.mailbox.MarkRead(c.Request.Context(), c.Param("id"), c.GetString("counterpartyID"))
	if err != nil {
		h.respondError(c, err, MsgMarkReadFailed)
		return
	}
	NoContent(c)
}

// closeConversation closes the thread for everyone.
func (h *Handler) closeConversation(c *gin.Context) {
	err := h.mailbox.CloseConversation(c.Request.Context(), c.Param("id"), c.GetString("counterpartyID"))
	if err != nil {
		h.respondError(c, err, MsgLifecycleFailed)
		return
	}
	NoContent(c)
}

// reopenConversation reopens a closed thread.
func (h *Handler) reopenConversation(c *gin.Context) {
	err := h.mailbox.ReopenConversation(c.Request.Context(), c.Param("id"), c.GetString("counterpartyID"))
	if err != nil {
		h.respondError(c, err, MsgLifecycleFailed)
		return
	}
	NoContent(c)
}

// unreadCount returns the caller's unread badge count.
func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.mailbox.UnreadCount(c.Request.Context(), c.GetString("counterpartyID"))
	if err != nil {
		h.respondError(c, err, MsgUnreadCountFailed)
		return
	}
	Success(c, gin.H{"unread": count})
}
