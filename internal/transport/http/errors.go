package httptransport

import (
	"monogest/backend/internal/directory"
	"monogest/backend/internal/service"
	"monogest/backend/internal/storage"
)

// Business error to user-facing message table. Anything not listed falls
// back to the raw error text.
var errorMessages = map[error]string{
	storage.ErrConversationNotFound:  "La conversación no existe",
	storage.ErrMessageNotFound:       "El mensaje no existe",
	storage.ErrParticipantNotFound:   "No participás de esta conversación",
	storage.ErrAttachmentNotFound:    "El archivo adjunto no existe",
	storage.ErrConversationClosed:    "La conversación está cerrada y no admite respuestas",
	storage.ErrQuotedMessageNotFound: "El mensaje citado no pertenece a esta conversación",

	service.ErrValidation:   "Los datos enviados no son válidos",
	service.ErrUpload:       "No se pudieron subir los archivos adjuntos",
	service.ErrUnknownGroup: "El grupo de destinatarios no existe",
	service.ErrForbidden:    "No tenés acceso a esta conversación",

	directory.ErrCounterpartyNotFound: "El destinatario no existe",
}

// GetErrorMessage returns the mapped user-facing message.
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// Generic messages used directly by handlers.
const (
	MsgInvalidRequest   = "El formato de la solicitud es inválido"
	MsgInvalidState     = "El estado solicitado es inválido (use open o closed)"
	MsgAttachmentTooBig = "Uno de los archivos supera el tamaño permitido"

	MsgConversationCreateFailed = "No se pudo crear la conversación"
	MsgConversationListFailed   = "No se pudo obtener la lista de conversaciones"
	MsgConversationGetFailed    = "No se pudo obtener la conversación"
	MsgReplyFailed              = "No se pudo enviar la respuesta"
	MsgMarkReadFailed           = "No se pudo marcar como leída"
	MsgLifecycleFailed          = "No se pudo cambiar el estado de la conversación"
	MsgUnreadCountFailed        = "No se pudo obtener el contador de no leídas"
	MsgAttachmentURLFailed      = "No se pudo resolver el enlace de descarga"
	MsgDirectoryFailed          = "No se pudo obtener la lista de destinatarios"

	MsgInternalError = "Error interno del servidor, intentá de nuevo más tarde"
)
