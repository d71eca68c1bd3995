package domain

import "time"

// QuotedPreview is the denormalized view of a quoted message embedded in
// a reply: who wrote it and a truncated slice of its body.
type QuotedPreview struct {
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName,omitempty"`
	Body       string `json:"body"`
}

// Message is one immutable entry in a conversation. Messages are append-only
// and ordered by CreatedAt ascending within their conversation.
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConversationID string    `json:"conversationId" gorm:"type:varchar(36);index;not null"`
	SenderID       string    `json:"senderId" gorm:"type:varchar(36);index"`
	Body           string    `json:"body" gorm:"type:text"`
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
	// QuotedMessageID references an earlier message of the same conversation
	// (inline reply-to). Nil when the message quotes nothing.
	QuotedMessageID *string `json:"quotedMessageId,omitempty" gorm:"type:varchar(36)"`

	// View fields (not persisted)
	SenderName string         `json:"senderName,omitempty" gorm:"-"`
	Quoted     *QuotedPreview `json:"quoted,omitempty" gorm:"-"`

	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"`
}
