package service

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/features/profile/models"
	"paidping-backend/internal/features/profile/repository"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)

// ProfileService is the handle registry: resolve a handle to its
// owning profile, or claim one.
type ProfileService interface {
	// Resolve returns nil when the handle is unclaimed. Structurally
	// invalid handles fail with INVALID_HANDLE.
	Resolve(ctx context.Context, handle string) (*models.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	// Claim is the sole mutation path for profiles: first claim wins,
	// re-claims by the owner update metadata in place.
	Claim(ctx context.Context, claim models.ClaimRequest) (*models.Profile, error)
}

type profileService struct {
	repo repository.ProfileRepository
}

func NewProfileService(repo repository.ProfileRepository) ProfileService {
	return &profileService{repo: repo}
}

// NormalizeHandle canonicalizes caller-supplied handles before any
// lookup or claim: trim, lowercase, shape check.
func NormalizeHandle(raw string) (string, error) {
	handle := strings.ToLower(strings.TrimSpace(raw))
	if !handlePattern.MatchString(handle) {
		return "", apperrors.Newf(apperrors.ErrCodeInvalidHandle,
			"handle must be %d-%d chars of [a-z0-9_-], starting alphanumeric",
			models.MinHandleLen, models.MaxHandleLen)
	}
	return handle, nil
}

func (s *profileService) Resolve(ctx context.Context, handle string) (*models.Profile, error) {
	normalized, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	profile, err := s.repo.FindByHandle(ctx, normalized)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return profile, nil
}

func (s *profileService) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return profile, nil
}

func (s *profileService) Claim(ctx context.Context, claim models.ClaimRequest) (*models.Profile, error) {
	normalized, err := NormalizeHandle(claim.Handle)
	if err != nil {
		return nil, err
	}
	claim.Handle = normalized

	claim.DisplayName = strings.TrimSpace(claim.DisplayName)
	if claim.DisplayName == "" {
		claim.DisplayName = claim.Handle
	}
	if utf8.RuneCountInString(claim.DisplayName) > models.MaxDisplayNameLen {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation, "display name exceeds %d chars", models.MaxDisplayNameLen)
	}
	claim.Bio = strings.TrimSpace(claim.Bio)
	if utf8.RuneCountInString(claim.Bio) > models.MaxBioLen {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation, "bio exceeds %d chars", models.MaxBioLen)
	}
	if claim.OwnerWallet == "" {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "missing owner wallet")
	}

	profile, err := s.repo.Upsert(ctx, claim)
	if err == repository.ErrHandleTaken {
		return nil, apperrors.Newf(apperrors.ErrCodeHandleTaken, "handle %q is already claimed", claim.Handle)
	}
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return profile, nil
}
