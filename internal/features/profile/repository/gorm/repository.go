package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"paidping-backend/internal/features/profile/models"
	"paidping-backend/internal/features/profile/repository"
)

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) repository.ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByHandle(ctx context.Context, handle string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).First(&profile, "handle = ?", handle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by handle: %w", err)
	}
	return &profile, nil
}

func (r *profileRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &profile, nil
}

// Upsert runs the first-claim-wins protocol in one transaction. The
// ownership check is re-evaluated inside the transaction so concurrent
// claims for the same handle race on the unique index, not on a stale
// read.
func (r *profileRepository) Upsert(ctx context.Context, claim models.ClaimRequest) (*models.Profile, error) {
	var result *models.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Profile
		err := tx.First(&existing, "handle = ?", claim.Handle).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := time.Now().UTC()
			profile := models.Profile{
				ID:          uuid.New(),
				Handle:      claim.Handle,
				DisplayName: claim.DisplayName,
				OwnerWallet: claim.OwnerWallet,
				Bio:         claim.Bio,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Create(&profile).Error; err != nil {
				return fmt.Errorf("create profile: %w", err)
			}
			result = &profile
			return nil
		case err != nil:
			return fmt.Errorf("load profile: %w", err)
		}

		if existing.OwnerWallet != claim.OwnerWallet {
			return repository.ErrHandleTaken
		}

		existing.DisplayName = claim.DisplayName
		existing.Bio = claim.Bio
		existing.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&existing).Error; err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		result = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
