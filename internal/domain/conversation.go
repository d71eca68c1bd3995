package domain

import (
	"time"
)

// ConversationState is the lifecycle state of a conversation.
type ConversationState string

const (
	ConversationOpen   ConversationState = "open"
	ConversationClosed ConversationState = "closed"
)

// Valid reports whether s is a known lifecycle state.
func (s ConversationState) Valid() bool {
	return s == ConversationOpen || s == ConversationClosed
}

// Conversation is a named, multi-participant message thread.
type Conversation struct {
	ID            string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Subject       string            `json:"subject" gorm:"type:varchar(500)"`
	Origin        string            `json:"origin" gorm:"type:varchar(100);index"` // business context that produced the thread ("billing", "exclusion-risk", ...)
	OriginContext string            `json:"originContext,omitempty" gorm:"type:varchar(255)"`
	State         ConversationState `json:"state" gorm:"type:varchar(10);index;default:open"`
	InitiatorID   string            `json:"initiatorId" gorm:"type:varchar(36);index"`
	CreatedAt     time.Time         `json:"createdAt"`
	LastMessageAt time.Time         `json:"lastMessageAt" gorm:"index"`
	// Revision increases on every mutation so concurrent refresh results
	// can be ordered deterministically.
	Revision uint64 `json:"revision"`

	// Denormalized view fields (not persisted, filled per requester)
	InitiatorName string         `json:"initiatorName,omitempty" gorm:"-"`
	Read          bool           `json:"read" gorm:"-"`
	Participants  []*Participant `json:"participants,omitempty" gorm:"-"`
	Messages      []*Message     `json:"messages,omitempty" gorm:"-"`
}

// Participant is a counterparty's membership in a conversation.
//
// The read flag is owned exclusively by its participant: nothing flips it
// to true except that participant's own mark-read, and nothing flips it to
// false except a new message from someone else.
type Participant struct {
	ConversationID string     `json:"conversationId" gorm:"primaryKey;type:varchar(36)"`
	CounterpartyID string     `json:"counterpartyId" gorm:"primaryKey;type:varchar(36)"`
	Read           bool       `json:"read" gorm:"column:is_read;default:false;index"` // "read" is reserved in MySQL
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`
}
