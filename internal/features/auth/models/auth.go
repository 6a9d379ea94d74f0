package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NonceTTL is the only explicit timeout in the core: a challenge must
// be answered within this window of issuance.
const NonceTTL = 10 * time.Minute

// Challenge is the one-time sign-in challenge handed to a wallet.
type Challenge struct {
	Nonce    string    `json:"nonce"`
	IssuedAt time.Time `json:"issuedAt"`
	ChainID  string    `json:"chainId"`
}

// VerifyRequest is the signed answer to a challenge. The handle is
// claimed (or re-claimed) as part of a successful verification.
type VerifyRequest struct {
	PublicKey   string    `json:"publicKey" binding:"required"`
	Signature   string    `json:"signature" binding:"required"`
	Nonce       string    `json:"nonce" binding:"required"`
	IssuedAt    time.Time `json:"issuedAt" binding:"required"`
	Handle      string    `json:"handle" binding:"required"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio"`
}

// Session is the signed, time-boxed credential bound to a wallet and
// its claimed handle.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Wallet    string    `json:"wallet"`
	Handle    string    `json:"handle"`
	ProfileID uuid.UUID `json:"profileId"`
}

// SessionClaims is the JWT payload of a session token.
type SessionClaims struct {
	Wallet    string    `json:"wallet"`
	Handle    string    `json:"handle"`
	ProfileID uuid.UUID `json:"profileId"`
	jwt.RegisteredClaims
}
