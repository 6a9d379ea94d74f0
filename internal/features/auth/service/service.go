package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/ratelimit"
	"paidping-backend/internal/features/auth/models"
	"paidping-backend/internal/features/auth/repository"
	profilemodels "paidping-backend/internal/features/profile/models"
	profileservice "paidping-backend/internal/features/profile/service"
)

// ChallengeConfig pins the fields that go into the canonical challenge
// message and the session signing parameters.
type ChallengeConfig struct {
	Domain        string
	URI           string
	ChainID       string
	SessionSecret string
	SessionTTL    time.Duration
	NonceTTL      time.Duration
}

// AuthService runs the nonce challenge/response sign-in: issue a
// one-time nonce, verify a wallet signature over the canonical message,
// claim the handle, and mint a session token.
type AuthService interface {
	// Issue creates a fresh challenge. clientKey feeds the issue rate
	// limit, typically the caller's IP.
	Issue(ctx context.Context, clientKey string) (*models.Challenge, error)
	Verify(ctx context.Context, clientKey string, req models.VerifyRequest) (*models.Session, error)
	// ParseSession validates a session token and returns its claims.
	ParseSession(token string) (*models.SessionClaims, error)
}

type authService struct {
	nonces   repository.NonceRepository
	profiles profileservice.ProfileService
	limiter  ratelimit.Limiter
	cfg      ChallengeConfig
}

func NewAuthService(nonces repository.NonceRepository, profiles profileservice.ProfileService, limiter ratelimit.Limiter, cfg ChallengeConfig) AuthService {
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = models.NonceTTL
	}
	return &authService{nonces: nonces, profiles: profiles, limiter: limiter, cfg: cfg}
}

func (s *authService) checkLimit(ctx context.Context, purpose, key string) error {
	ok, retryAfter, err := s.limiter.Allow(ctx, purpose, key)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if !ok {
		return apperrors.NewRateLimited(purpose, retryAfter)
	}
	return nil
}

func (s *authService) Issue(ctx context.Context, clientKey string) (*models.Challenge, error) {
	if err := s.checkLimit(ctx, ratelimit.PurposeNonceIssue, clientKey); err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	nonce := base58.Encode(raw)

	issuedAt := time.Now().UTC()
	if err := s.nonces.Issue(ctx, nonce, issuedAt); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return &models.Challenge{Nonce: nonce, IssuedAt: issuedAt, ChainID: s.cfg.ChainID}, nil
}

// challengeMessage is the canonical text a wallet signs. Every field
// that matters to the server (domain, uri, chain, nonce, issue time)
// is part of the signed bytes.
func (s *authService) challengeMessage(publicKey, nonce string, issuedAt time.Time) []byte {
	msg := fmt.Sprintf(
		"%s wants you to sign in with your Solana account:\n%s\n\nURI: %s\nChain ID: %s\nNonce: %s\nIssued At: %s",
		s.cfg.Domain, publicKey, s.cfg.URI, s.cfg.ChainID, nonce, issuedAt.UTC().Format(time.RFC3339),
	)
	return []byte(msg)
}

func (s *authService) Verify(ctx context.Context, clientKey string, req models.VerifyRequest) (*models.Session, error) {
	if err := s.checkLimit(ctx, ratelimit.PurposeAuthVerify, clientKey); err != nil {
		return nil, err
	}

	pubKey, err := solana.PublicKeyFromBase58(req.PublicKey)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "malformed public key")
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return nil, apperrors.New(apperrors.ErrCodeValidation, "malformed signature")
	}

	// The nonce burns on first use whether or not the signature holds,
	// so a challenge grants exactly one verification attempt.
	issuedAt, err := s.nonces.Consume(ctx, req.Nonce)
	if err == repository.ErrNonceNotFound {
		return nil, apperrors.New(apperrors.ErrCodeNonceNotFound, "nonce unknown or already used")
	}
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if time.Since(issuedAt) > s.cfg.NonceTTL {
		return nil, apperrors.New(apperrors.ErrCodeNonceExpired, "challenge expired, request a new nonce")
	}

	msg := s.challengeMessage(req.PublicKey, req.Nonce, issuedAt)
	if !ed25519.Verify(ed25519.PublicKey(pubKey.Bytes()), msg, sig) {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "signature does not match challenge")
	}

	profile, err := s.profiles.Claim(ctx, profilemodels.ClaimRequest{
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		OwnerWallet: req.PublicKey,
		Bio:         req.Bio,
	})
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(s.cfg.SessionTTL)
	claims := models.SessionClaims{
		Wallet:    req.PublicKey,
		Handle:    profile.Handle,
		ProfileID: profile.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SessionSecret))
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	return &models.Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Wallet:    req.PublicKey,
		Handle:    profile.Handle,
		ProfileID: profile.ID,
	}, nil
}

func (s *authService) ParseSession(token string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.SessionSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "invalid session token")
	}
	return claims, nil
}
