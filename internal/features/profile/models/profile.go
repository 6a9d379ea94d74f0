package models

import (
	"time"

	"github.com/google/uuid"
)

// Field caps enforced on claim.
const (
	MinHandleLen      = 3
	MaxHandleLen      = 32
	MaxDisplayNameLen = 64
	MaxBioLen         = 280
)

// Profile maps a human-chosen handle to its owning wallet. The handle
// is globally unique; only the owning wallet may mutate the row.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Handle      string    `gorm:"size:32;uniqueIndex" json:"handle"`
	DisplayName string    `gorm:"size:64" json:"displayName"`
	OwnerWallet string    `gorm:"size:64;index" json:"ownerWallet"`
	Bio         string    `gorm:"size:280" json:"bio,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ClaimRequest carries the fields of a handle claim. The owner wallet
// comes from the verified sign-in, never from the request body.
type ClaimRequest struct {
	Handle      string
	DisplayName string
	OwnerWallet string
	Bio         string
}
