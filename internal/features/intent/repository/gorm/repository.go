package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"paidping-backend/internal/features/intent/models"
	"paidping-backend/internal/features/intent/repository"
	messagemodels "paidping-backend/internal/features/message/models"
	messagegorm "paidping-backend/internal/features/message/repository/gorm"
)

type intentRepository struct {
	db *gorm.DB
}

func NewIntentRepository(db *gorm.DB) repository.IntentRepository {
	return &intentRepository{db: db}
}

func (r *intentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.ID == uuid.Nil {
		intent.ID = uuid.New()
	}
	now := time.Now().UTC()
	intent.Status = models.StatusPending
	intent.CreatedAt = now
	intent.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return fmt.Errorf("create intent: %w", err)
	}
	return nil
}

func (r *intentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intent: %w", err)
	}
	return &intent, nil
}

func (r *intentRepository) Confirm(ctx context.Context, id uuid.UUID, payer, txSignature, proofBlob string) (*models.PaymentIntent, error) {
	var result *models.PaymentIntent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intent models.PaymentIntent
		err := tx.First(&intent, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("load intent: %w", err)
		}

		// Forward-only: a duplicate poll on a confirmed or consumed
		// intent reads current state, no side effects.
		if intent.Status != models.StatusPending {
			result = &intent
			return nil
		}

		intent.Status = models.StatusConfirmed
		intent.Payer = payer
		intent.TxSignature = txSignature
		intent.ProofBlob = proofBlob
		intent.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&intent).Error; err != nil {
			return fmt.Errorf("confirm intent: %w", err)
		}
		result = &intent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *intentRepository) Consume(ctx context.Context, id uuid.UUID, msg *messagemodels.Message) (*models.PaymentIntent, bool, error) {
	result, deduped, err := r.consume(ctx, id, msg)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A message carrying the same proof committed between our
		// dedup read and our insert. On the rerun the dedup read sees
		// it and links instead of inserting.
		return r.consume(ctx, id, msg)
	}
	return result, deduped, err
}

func (r *intentRepository) consume(ctx context.Context, id uuid.UUID, msg *messagemodels.Message) (*models.PaymentIntent, bool, error) {
	var (
		result  *models.PaymentIntent
		deduped bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var intent models.PaymentIntent
		err := tx.First(&intent, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("load intent: %w", err)
		}

		if intent.ConsumedMessageID != nil {
			result = &intent
			deduped = true
			return nil
		}
		if intent.Status != models.StatusConfirmed {
			return repository.ErrNotConfirmed
		}

		// The shared write path dedups by payment signature, so an
		// intent whose proof collides with a message admitted through
		// the inline path links to the existing row instead of
		// double-charging the stats.
		stored, linked, err := messagegorm.CreateMessageTx(tx, msg)
		if err != nil {
			return err
		}
		deduped = linked

		intent.Status = models.StatusConsumed
		intent.ConsumedMessageID = &stored.ID
		intent.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&intent).Error; err != nil {
			return fmt.Errorf("consume intent: %w", err)
		}
		result = &intent
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, deduped, nil
}
