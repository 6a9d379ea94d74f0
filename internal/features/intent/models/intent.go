package models

import (
	"time"

	"github.com/google/uuid"
)

// IntentStatus only moves forward: pending, confirmed, consumed.
type IntentStatus string

const (
	StatusPending   IntentStatus = "pending"
	StatusConfirmed IntentStatus = "confirmed"
	StatusConsumed  IntentStatus = "consumed"
)

// PaymentIntent stages one asynchronous checkout. Content is captured
// and validated at creation, before any payment happens; payment fields
// fill in on confirmation; the message pointer on consumption. The row
// is kept after consumption as the idempotency record.
type PaymentIntent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID uuid.UUID `gorm:"type:uuid;index" json:"-"`
	ToHandle  string    `gorm:"size:32" json:"toHandle"`

	Tier            string `gorm:"size:16" json:"tier"`
	PriceCents      int64  `json:"priceCents"`
	AmountBaseUnits uint64 `json:"amountBaseUnits"`

	Body          string `gorm:"size:512" json:"-"`
	SenderName    string `gorm:"size:128" json:"-"`
	SenderContact string `gorm:"size:256" json:"-"`

	// Reference is the globally unique on-chain lookup key published
	// with the payment request.
	Reference string `gorm:"size:64;uniqueIndex" json:"reference"`

	Status IntentStatus `gorm:"size:16;default:pending" json:"status"`

	Asset   string `gorm:"size:64" json:"asset"`
	Network string `gorm:"size:32" json:"network"`
	Scheme  string `gorm:"size:16" json:"scheme"`
	Version int    `json:"-"`

	// Populated when settlement is confirmed.
	Payer       string `gorm:"size:64" json:"payer,omitempty"`
	TxSignature string `gorm:"size:128" json:"txSignature,omitempty"`
	ProofBlob   string `gorm:"type:text" json:"-"`

	// Set at most once; once set, consume is idempotent.
	ConsumedMessageID *uuid.UUID `gorm:"type:uuid" json:"consumedMessageId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// CreateRequest is the input of a checkout initiation.
type CreateRequest struct {
	ToHandle      string `json:"toHandle" binding:"required"`
	Tier          string `json:"tier" binding:"required"`
	Body          string `json:"body" binding:"required"`
	SenderName    string `json:"senderName"`
	SenderContact string `json:"senderContact"`
}

// CheckoutResponse tells the payer where to send funds.
type CheckoutResponse struct {
	IntentID        uuid.UUID `json:"intentId"`
	Reference       string    `json:"reference"`
	PayTo           string    `json:"payTo"`
	Asset           string    `json:"asset"`
	AmountBaseUnits uint64    `json:"amountBaseUnits"`
	PriceCents      int64     `json:"priceCents"`
	PaymentURL      string    `json:"paymentUrl"`
}

// StatusResponse is the polled view of an intent.
type StatusResponse struct {
	IntentID          uuid.UUID    `json:"intentId"`
	Status            IntentStatus `json:"status"`
	Payer             string       `json:"payer,omitempty"`
	TxSignature       string       `json:"txSignature,omitempty"`
	ExplorerURL       string       `json:"explorerUrl,omitempty"`
	ConsumedMessageID *uuid.UUID   `json:"consumedMessageId,omitempty"`
}

// ConsumeResponse reports the paid effect of a consumed intent.
// Deduped means the message already existed, either from an earlier
// consume or from an inline admission carrying the same proof.
type ConsumeResponse struct {
	MessageID uuid.UUID `json:"messageId"`
	Deduped   bool      `json:"deduped"`
}
