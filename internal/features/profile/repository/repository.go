package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"paidping-backend/internal/features/profile/models"
)

// ErrHandleTaken is returned when a claim targets a handle owned by a
// different wallet.
var ErrHandleTaken = errors.New("handle already claimed by another wallet")

// ProfileRepository persists handle ownership. FindByHandle returns
// (nil, nil) when the handle is unclaimed.
type ProfileRepository interface {
	FindByHandle(ctx context.Context, handle string) (*models.Profile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	// Upsert claims an unclaimed handle or updates metadata when the
	// claiming wallet already owns it. ErrHandleTaken otherwise.
	Upsert(ctx context.Context, claim models.ClaimRequest) (*models.Profile, error)
}
