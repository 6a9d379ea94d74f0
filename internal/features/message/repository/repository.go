package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"paidping-backend/internal/features/message/models"
)

// Keyset marks the last row of a page. Pairing the timestamp with the
// id keeps pagination lossless when neighboring rows share a creation
// time.
type Keyset struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// MessageRepository persists delivered pings and the per-recipient
// stats projection. Stats writes always share a transaction with the
// message write they reflect.
type MessageRepository interface {
	// FindByTxSignature returns the message admitted for a payment
	// transaction signature, or (nil, nil) when none exists.
	FindByTxSignature(ctx context.Context, txSig string) (*models.Message, error)

	// CreateWithStats inserts the message and bumps the recipient's
	// stats row in one transaction. If a message with the same payment
	// transaction signature already exists, the stored message is
	// returned with deduped=true and nothing is written.
	CreateWithStats(ctx context.Context, msg *models.Message) (*models.Message, bool, error)

	// SetStatus transitions a message owned by profileID and rebalances
	// the per-status counters in the same transaction. A transition to
	// the current status is a no-op.
	SetStatus(ctx context.Context, profileID, messageID uuid.UUID, to models.Status) (*models.Message, error)

	// ListByRecipient pages messages newest-first. A nil before starts
	// from the top.
	ListByRecipient(ctx context.Context, profileID uuid.UUID, status *models.Status, before *Keyset, limit int) ([]models.Message, error)

	// GetByID fetches one message scoped to the owning recipient,
	// (nil, nil) when absent or owned by someone else.
	GetByID(ctx context.Context, profileID, messageID uuid.UUID) (*models.Message, error)

	// GetStats returns the recipient's stats row, a zero-valued row
	// when nothing was delivered yet.
	GetStats(ctx context.Context, profileID uuid.UUID) (*models.InboxStats, error)

	// DeleteAllInBatches wipes messages and stats in bounded batches
	// and returns the number of deleted messages.
	DeleteAllInBatches(ctx context.Context, batchSize int) (int64, error)
}
