package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"paidping-backend/internal/features/message/models"
	"paidping-backend/internal/features/message/repository"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) repository.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) FindByTxSignature(ctx context.Context, txSig string) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).First(&msg, "payment_tx_sig = ?", txSig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find message by tx signature: %w", err)
	}
	return &msg, nil
}

// CreateMessageTx inserts a message and bumps the recipient's stats row
// inside an already-open transaction. The signature dedup check is
// re-evaluated here so two concurrent admissions of the same proof race
// on the unique index, not on a pre-transaction read. Shared with the
// intent consume path so both write paths stay byte-for-byte identical.
func CreateMessageTx(tx *gorm.DB, msg *models.Message) (*models.Message, bool, error) {
	var existing models.Message
	err := tx.First(&existing, "payment_tx_sig = ?", msg.PaymentTxSig).Error
	if err == nil {
		return &existing, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("dedup check: %w", err)
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	msg.Status = models.StatusNew

	if err := tx.Create(msg).Error; err != nil {
		return nil, false, fmt.Errorf("create message: %w", err)
	}

	res := tx.Model(&models.InboxStats{}).
		Where("profile_id = ?", msg.ProfileID).
		Updates(map[string]interface{}{
			"total_messages":      gorm.Expr("total_messages + 1"),
			"total_revenue_cents": gorm.Expr("total_revenue_cents + ?", msg.PriceCents),
			"new_count":           gorm.Expr("new_count + 1"),
			"updated_at":          now,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("bump stats: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		stats := models.InboxStats{
			ID:                uuid.New(),
			ProfileID:         msg.ProfileID,
			TotalMessages:     1,
			TotalRevenueCents: msg.PriceCents,
			NewCount:          1,
			UpdatedAt:         now,
		}
		if err := tx.Create(&stats).Error; err != nil {
			return nil, false, fmt.Errorf("create stats: %w", err)
		}
	}
	return msg, false, nil
}

func (r *messageRepository) CreateWithStats(ctx context.Context, msg *models.Message) (*models.Message, bool, error) {
	var (
		stored  *models.Message
		deduped bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, deduped, err = CreateMessageTx(tx, msg)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a same-proof race: a concurrent admission committed
		// between our dedup read and our insert. The winner's row is
		// visible now, so the retried dedup read resolves it.
		return r.racedDedup(ctx, msg.PaymentTxSig, err)
	}
	if err != nil {
		return nil, false, err
	}
	return stored, deduped, nil
}

func (r *messageRepository) racedDedup(ctx context.Context, txSig string, cause error) (*models.Message, bool, error) {
	existing, err := r.FindByTxSignature(ctx, txSig)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, cause
	}
	return existing, true, nil
}

// statusColumn maps a status to its counter column in InboxStats.
func statusColumn(s models.Status) string {
	switch s {
	case models.StatusReplied:
		return "replied_count"
	case models.StatusArchived:
		return "archived_count"
	default:
		return "new_count"
	}
}

func (r *messageRepository) SetStatus(ctx context.Context, profileID, messageID uuid.UUID, to models.Status) (*models.Message, error) {
	var result *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		err := tx.First(&msg, "id = ? AND profile_id = ?", messageID, profileID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("load message: %w", err)
		}

		if msg.Status == to {
			result = &msg
			return nil
		}

		from := msg.Status
		now := time.Now().UTC()
		msg.Status = to
		msg.UpdatedAt = now
		if err := tx.Save(&msg).Error; err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		fromCol, toCol := statusColumn(from), statusColumn(to)
		// The decrement floors at zero so a drifted counter can never
		// go negative.
		err = tx.Model(&models.InboxStats{}).
			Where("profile_id = ?", msg.ProfileID).
			Updates(map[string]interface{}{
				fromCol:      gorm.Expr(fmt.Sprintf("CASE WHEN %s > 0 THEN %s - 1 ELSE 0 END", fromCol, fromCol)),
				toCol:        gorm.Expr(fmt.Sprintf("%s + 1", toCol)),
				"updated_at": now,
			}).Error
		if err != nil {
			return fmt.Errorf("rebalance stats: %w", err)
		}
		result = &msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *messageRepository) ListByRecipient(ctx context.Context, profileID uuid.UUID, status *models.Status, before *repository.Keyset, limit int) ([]models.Message, error) {
	q := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if before != nil {
		// Ties on created_at break on id so rows sharing a timestamp
		// with the boundary row are not skipped.
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)",
			before.CreatedAt, before.CreatedAt, before.ID)
	}

	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (r *messageRepository) GetByID(ctx context.Context, profileID, messageID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).First(&msg, "id = ? AND profile_id = ?", messageID, profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &msg, nil
}

func (r *messageRepository) GetStats(ctx context.Context, profileID uuid.UUID) (*models.InboxStats, error) {
	var stats models.InboxStats
	err := r.db.WithContext(ctx).First(&stats, "profile_id = ?", profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.InboxStats{ProfileID: profileID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &stats, nil
}

func (r *messageRepository) DeleteAllInBatches(ctx context.Context, batchSize int) (int64, error) {
	var total int64
	for {
		res := r.db.WithContext(ctx).
			Where("id IN (?)", r.db.Model(&models.Message{}).Select("id").Limit(batchSize)).
			Delete(&models.Message{})
		if res.Error != nil {
			return total, fmt.Errorf("delete message batch: %w", res.Error)
		}
		total += res.RowsAffected
		if res.RowsAffected < int64(batchSize) {
			break
		}
	}
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.InboxStats{}).Error; err != nil {
		return total, fmt.Errorf("delete stats: %w", err)
	}
	return total, nil
}
