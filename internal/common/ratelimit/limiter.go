// Package ratelimit provides token-bucket style admission checks keyed
// by (purpose, key). All mutation goes through the limiter's own atomic
// check-and-increment; callers only see allow/deny plus a retry hint.
package ratelimit

import (
	"context"
	"time"
)

// Limit describes a bucket: sustained events per window plus a burst.
type Limit struct {
	Events int
	Window time.Duration
	Burst  int
}

// Limiter is the admission contract. Implementations must be safe for
// concurrent use. A denied check returns ok=false and a positive
// retry-after duration.
type Limiter interface {
	Allow(ctx context.Context, purpose, key string) (ok bool, retryAfter time.Duration, err error)
}

// Purposes used across the service. Keeping them in one place avoids
// two components accidentally sharing a bucket.
const (
	PurposePayer      = "ping_payer"
	PurposePayerPair  = "ping_pair"
	PurposeNonceIssue = "nonce_issue"
	PurposeAuthVerify = "auth_verify"
)
