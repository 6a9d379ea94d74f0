package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	intentmodels "paidping-backend/internal/features/intent/models"
	messagemodels "paidping-backend/internal/features/message/models"
	profilemodels "paidping-backend/internal/features/profile/models"
)

// BatchSize bounds each delete statement of a bulk reset so the
// operation never holds one giant transaction.
const BatchSize = 1000

// ResetResult counts deleted rows per table.
type ResetResult struct {
	Messages int64 `json:"messages"`
	Intents  int64 `json:"intents"`
	Stats    int64 `json:"stats"`
	Profiles int64 `json:"profiles"`
}

// AdminService hosts maintenance operations that bypass the normal
// mutation paths. Reset wipes every core table.
type AdminService interface {
	Reset(ctx context.Context) (*ResetResult, error)
}

type adminService struct {
	db *gorm.DB
}

func NewAdminService(db *gorm.DB) AdminService {
	return &adminService{db: db}
}

func (s *adminService) deleteAll(ctx context.Context, model interface{}) (int64, error) {
	var total int64
	for {
		res := s.db.WithContext(ctx).
			Where("id IN (?)", s.db.Model(model).Select("id").Limit(BatchSize)).
			Delete(model)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < int64(BatchSize) {
			return total, nil
		}
	}
}

func (s *adminService) Reset(ctx context.Context) (*ResetResult, error) {
	result := &ResetResult{}

	var err error
	if result.Messages, err = s.deleteAll(ctx, &messagemodels.Message{}); err != nil {
		return nil, fmt.Errorf("reset messages: %w", err)
	}
	if result.Intents, err = s.deleteAll(ctx, &intentmodels.PaymentIntent{}); err != nil {
		return nil, fmt.Errorf("reset intents: %w", err)
	}
	if result.Stats, err = s.deleteAll(ctx, &messagemodels.InboxStats{}); err != nil {
		return nil, fmt.Errorf("reset stats: %w", err)
	}
	if result.Profiles, err = s.deleteAll(ctx, &profilemodels.Profile{}); err != nil {
		return nil, fmt.Errorf("reset profiles: %w", err)
	}
	return result, nil
}
