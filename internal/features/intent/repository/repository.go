package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"paidping-backend/internal/features/intent/models"
	messagemodels "paidping-backend/internal/features/message/models"
)

// ErrNotConfirmed signals a consume attempt on an intent that has not
// reached confirmed yet.
var ErrNotConfirmed = errors.New("intent is not confirmed")

// IntentRepository persists payment intents. Status only moves forward;
// the transitions re-read state inside their transaction so concurrent
// polls and consumes stay safe.
type IntentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error

	// GetByID returns (nil, nil) for an unknown intent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)

	// Confirm moves pending to confirmed, storing the proof fields.
	// Called on an already confirmed or consumed intent it changes
	// nothing and returns the current row.
	Confirm(ctx context.Context, id uuid.UUID, payer, txSignature, proofBlob string) (*models.PaymentIntent, error)

	// Consume commits the paid effect: in one transaction it inserts
	// the message (or links an existing one with the same payment
	// signature), updates stats, and marks the intent consumed. msg is
	// the message template to insert. Idempotent once
	// ConsumedMessageID is set; the bool reports whether the message
	// already existed.
	Consume(ctx context.Context, id uuid.UUID, msg *messagemodels.Message) (*models.PaymentIntent, bool, error)
}
