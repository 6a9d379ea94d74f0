package solana

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"paidping-backend/internal/features/payment/models"
)

// Client reads settled activity from a Solana RPC node. It implements
// the payment service's chain reader contract.
type Client struct {
	rpc *rpc.Client
}

func NewClient(rpcURL string) *Client {
	return &Client{rpc: rpc.New(rpcURL)}
}

// FindReferenceTransaction locates the most recent transaction touching
// the reference key and reduces it to settlement facts: fee payer,
// on-chain error state, and token balance deltas per (owner, mint).
func (c *Client) FindReferenceTransaction(ctx context.Context, reference string) (*models.ReferenceTransaction, error) {
	refKey, err := solana.PublicKeyFromBase58(reference)
	if err != nil {
		return nil, fmt.Errorf("malformed reference %q: %w", reference, err)
	}

	limit := 1
	sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, refKey, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup reference signatures: %w", err)
	}
	if len(sigs) == 0 {
		return nil, models.ErrReferenceNotFound
	}
	signature := sigs[0].Signature

	maxVersion := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s: %w", signature, err)
	}
	if out == nil || out.Meta == nil || out.Transaction == nil {
		return nil, models.ErrReferenceNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", signature, err)
	}
	if len(tx.Message.AccountKeys) == 0 {
		return nil, fmt.Errorf("transaction %s has no account keys", signature)
	}

	blob, err := tx.ToBase64()
	if err != nil {
		return nil, fmt.Errorf("re-encode transaction %s: %w", signature, err)
	}

	return &models.ReferenceTransaction{
		Signature: signature.String(),
		Payer:     tx.Message.AccountKeys[0].String(),
		Failed:    out.Meta.Err != nil,
		Deltas:    tokenDeltas(out.Meta),
		Blob:      blob,
	}, nil
}

// tokenDeltas diffs post against pre token balances into settled
// per-(owner, mint) changes in base units.
func tokenDeltas(meta *rpc.TransactionMeta) []models.TokenDelta {
	type key struct {
		owner string
		mint  string
	}
	amounts := map[key]int64{}

	add := func(balances []rpc.TokenBalance, sign int64) {
		for _, b := range balances {
			if b.Owner == nil || b.UiTokenAmount == nil {
				continue
			}
			amount, err := strconv.ParseInt(b.UiTokenAmount.Amount, 10, 64)
			if err != nil {
				continue
			}
			k := key{owner: b.Owner.String(), mint: b.Mint.String()}
			amounts[k] += sign * amount
		}
	}
	add(meta.PreTokenBalances, -1)
	add(meta.PostTokenBalances, +1)

	deltas := make([]models.TokenDelta, 0, len(amounts))
	for k, amount := range amounts {
		if amount == 0 {
			continue
		}
		deltas = append(deltas, models.TokenDelta{Owner: k.owner, Mint: k.mint, Amount: amount})
	}
	return deltas
}
