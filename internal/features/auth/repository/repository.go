package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNonceNotFound signals an absent (never issued, already consumed,
// or evicted) nonce.
var ErrNonceNotFound = errors.New("nonce not found")

// NonceRepository stores one-time sign-in challenges. Consume removes
// the nonce unconditionally, so a second consume of the same value
// always fails with ErrNonceNotFound.
type NonceRepository interface {
	Issue(ctx context.Context, nonce string, issuedAt time.Time) error
	Consume(ctx context.Context, nonce string) (time.Time, error)
}
