package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a received ping.
type Status string

const (
	StatusNew      Status = "new"
	StatusReplied  Status = "replied"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusReplied, StatusArchived:
		return true
	}
	return false
}

// Field caps for optional sender metadata.
const (
	MaxBodyLen          = 280
	MaxSenderNameLen    = 80
	MaxSenderContactLen = 120
	MaxLinks            = 1
)

// Message is one paid ping delivered to a profile inbox.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID uuid.UUID `gorm:"type:uuid;index:idx_messages_inbox,priority:1" json:"-"`

	Tier       string `gorm:"size:16" json:"tier"`
	PriceCents int64  `json:"priceCents"`
	Body       string `gorm:"size:512" json:"body"`

	SenderName    string `gorm:"size:128" json:"senderName,omitempty"`
	SenderContact string `gorm:"size:256" json:"senderContact,omitempty"`

	// Payer and PaymentTxSig come from the verified proof, never from
	// caller-declared fields. PaymentTxSig is the global dedup key.
	Payer          string `gorm:"size:64;index" json:"payer"`
	PaymentTxSig   string `gorm:"size:128;uniqueIndex" json:"paymentTxSig"`
	PaymentBlob    string `gorm:"type:text" json:"-"`
	PaymentScheme  string `gorm:"size:16" json:"-"`
	PaymentNetwork string `gorm:"size:32" json:"-"`
	PaymentVersion int    `json:"-"`

	Status Status `gorm:"size:16;default:new" json:"status"`

	CreatedAt time.Time `gorm:"index:idx_messages_inbox,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// InboxStats is the per-profile aggregate projection, maintained in the
// same transaction as every message write.
type InboxStats struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ProfileID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"-"`

	TotalMessages     int64 `json:"totalMessages"`
	TotalRevenueCents int64 `json:"totalRevenueCents"`

	NewCount      int64 `json:"newCount"`
	RepliedCount  int64 `json:"repliedCount"`
	ArchivedCount int64 `json:"archivedCount"`

	UpdatedAt time.Time `json:"-"`
}

// AdmitResult reports the outcome of admitting a paid ping. Deduped is
// true when the proof had already produced a message and no new work
// was done.
type AdmitResult struct {
	MessageID    uuid.UUID `json:"messageId"`
	Deduped      bool      `json:"deduped"`
	ToHandle     string    `json:"toHandle"`
	Tier         string    `json:"tier"`
	Payer        string    `json:"payer"`
	PaymentTxSig string    `json:"paymentTxSig"`
}
