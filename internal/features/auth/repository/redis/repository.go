package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"paidping-backend/internal/features/auth/models"
	"paidping-backend/internal/features/auth/repository"
)

const keyPrefix = "auth:nonce:"

type nonceRepository struct {
	client *redis.Client
}

func NewNonceRepository(client *redis.Client) repository.NonceRepository {
	return &nonceRepository{client: client}
}

func (r *nonceRepository) Issue(ctx context.Context, nonce string, issuedAt time.Time) error {
	// The Redis expiry carries slack over the logical TTL so the
	// expired-vs-absent distinction stays observable: a nonce past its
	// logical TTL but still present reads as expired, not missing.
	err := r.client.Set(ctx, keyPrefix+nonce,
		strconv.FormatInt(issuedAt.UnixNano(), 10), 2*models.NonceTTL).Err()
	if err != nil {
		return fmt.Errorf("store nonce: %w", err)
	}
	return nil
}

func (r *nonceRepository) Consume(ctx context.Context, nonce string) (time.Time, error) {
	val, err := r.client.GetDel(ctx, keyPrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, repository.ErrNonceNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("consume nonce: %w", err)
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed nonce record: %w", err)
	}
	return time.Unix(0, nanos).UTC(), nil
}
