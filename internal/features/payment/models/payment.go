package models

import "errors"

// Tier is the pricing/urgency class of a paid ping.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPriority Tier = "priority"
	TierVIP      Tier = "vip"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierStandard, TierPriority, TierVIP:
		return true
	}
	return false
}

// PriceCents is the fixed price schedule. Prices are never derived
// from client input.
func (t Tier) PriceCents() int64 {
	switch t {
	case TierPriority:
		return 5
	case TierVIP:
		return 25
	default:
		return 1
	}
}

// USDC has 6 decimals, so one cent is 10^4 base units.
const USDCUnitsPerCent = 10_000

// AmountBaseUnits converts the tier price to USDC base units.
func (t Tier) AmountBaseUnits() uint64 {
	return uint64(t.PriceCents()) * USDCUnitsPerCent
}

// Protocol constants for payment payloads.
const (
	SchemeExact     = "exact"
	ProtocolVersion = 1
)

// Proof is the canonical internal representation every payment proof
// is reduced to before admission, regardless of whether it arrived as
// an inline header or through a confirmed intent. Admission logic is
// proof-shape-agnostic.
type Proof struct {
	// Payer is the fee payer recomputed from the payment artifact,
	// never taken from caller input.
	Payer string
	// TxSignature is the first signature slot of the embedded signed
	// transaction. It is the global dedup key.
	TxSignature string
	// Blob is the canonical base64 serialization of the transaction.
	Blob    string
	Scheme  string
	Network string
	Version int
}

// Requirements is the machine-readable description of what a payer
// must settle, returned with 402 responses.
type Requirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description,omitempty"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Asset             string `json:"asset"`
}

// PaymentRequired is the 402 response body.
type PaymentRequired struct {
	X402Version int            `json:"x402Version"`
	Error       string         `json:"error,omitempty"`
	Accepts     []Requirements `json:"accepts"`
}

// ErrReferenceNotFound signals that no transaction for a reference is
// visible on chain yet. It is a still-pending condition, not a failure.
var ErrReferenceNotFound = errors.New("no transaction found for reference")

// TokenDelta is the settled balance change for one (owner, mint) pair.
type TokenDelta struct {
	Owner  string
	Mint   string
	Amount int64
}

// ReferenceTransaction is what a chain lookup yields for an intent
// reference: enough to verify settlement without trusting the caller.
type ReferenceTransaction struct {
	Signature string
	Payer     string
	// Failed is true when the transaction landed with an on-chain error.
	Failed bool
	Deltas []TokenDelta
	// Blob is the canonical base64 re-serialization of the transaction.
	Blob string
}
