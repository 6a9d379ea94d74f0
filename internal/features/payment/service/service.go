package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/features/payment/models"
)

// ChainReader looks up settled activity for a reference key. The RPC
// implementation lives in the platform layer so this package stays
// testable with fakes.
type ChainReader interface {
	FindReferenceTransaction(ctx context.Context, reference string) (*models.ReferenceTransaction, error)
}

// inlineEnvelope is the wire shape of the payment header after base64
// decoding: a versioned envelope carrying a signed transaction.
type inlineEnvelope struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Payload     struct {
		Transaction string `json:"transaction"`
	} `json:"payload"`
}

type PaymentService struct {
	chain   ChainReader
	network string
	mint    string
}

func NewPaymentService(chain ChainReader, network, mint string) *PaymentService {
	return &PaymentService{chain: chain, network: network, mint: mint}
}

// ParseInline decodes a payment header into the canonical proof form.
// The payer and transaction signature are always recomputed from the
// embedded transaction, never taken from envelope fields.
func (s *PaymentService) ParseInline(header string) (*models.Proof, error) {
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidPaymentProof, "payment header is not valid base64")
	}

	var env inlineEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidPaymentProof, "payment header is not a valid payload")
	}
	if env.X402Version != models.ProtocolVersion {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidPaymentProof, "unsupported payment protocol version %d", env.X402Version)
	}
	if env.Scheme != models.SchemeExact {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidPaymentProof, "unsupported payment scheme %q", env.Scheme)
	}
	if env.Network != s.network {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidPaymentProof, "unsupported network %q", env.Network)
	}
	if env.Payload.Transaction == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPaymentProof, "payment payload has no transaction")
	}

	tx, err := solana.TransactionFromBase64(env.Payload.Transaction)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidPaymentProof, "embedded transaction cannot be decoded")
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPaymentProof, "embedded transaction is not signed")
	}
	if len(tx.Message.AccountKeys) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPaymentProof, "embedded transaction has no account keys")
	}

	blob, err := tx.ToBase64()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidPaymentProof, "embedded transaction cannot be re-encoded")
	}

	return &models.Proof{
		Payer:       tx.Message.AccountKeys[0].String(),
		TxSignature: tx.Signatures[0].String(),
		Blob:        blob,
		Scheme:      env.Scheme,
		Network:     env.Network,
		Version:     env.X402Version,
	}, nil
}

// ConfirmByReference locates the on-chain transaction for an intent
// reference and verifies settlement: the transaction succeeded and the
// recipient's token balance for the expected asset grew by exactly the
// expected amount. Returns models.ErrReferenceNotFound while nothing
// is visible yet; callers treat that as still pending.
func (s *PaymentService) ConfirmByReference(ctx context.Context, reference, payTo string, amountBaseUnits uint64) (*models.Proof, error) {
	found, err := s.chain.FindReferenceTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	if found.Failed {
		return nil, apperrors.New(apperrors.ErrCodeTransactionFailed, "payment transaction failed on chain")
	}

	var delta int64
	for _, d := range found.Deltas {
		if d.Owner == payTo && d.Mint == s.mint {
			delta += d.Amount
		}
	}
	if delta != int64(amountBaseUnits) {
		return nil, apperrors.Newf(apperrors.ErrCodeTransferMismatch,
			"expected transfer of %d base units, found %d", amountBaseUnits, delta)
	}

	return &models.Proof{
		Payer:       found.Payer,
		TxSignature: found.Signature,
		Blob:        found.Blob,
		Scheme:      models.SchemeExact,
		Network:     s.network,
		Version:     models.ProtocolVersion,
	}, nil
}

// BuildRequirements describes what a payer must settle for the given
// tier and recipient. Served with 402 responses.
func (s *PaymentService) BuildRequirements(tier models.Tier, payTo, resource string) models.Requirements {
	return models.Requirements{
		Scheme:            models.SchemeExact,
		Network:           s.network,
		MaxAmountRequired: fmt.Sprintf("%d", tier.AmountBaseUnits()),
		Resource:          resource,
		Description:       fmt.Sprintf("Paid ping, %s tier", tier),
		PayTo:             payTo,
		MaxTimeoutSeconds: 60,
		Asset:             s.mint,
	}
}
