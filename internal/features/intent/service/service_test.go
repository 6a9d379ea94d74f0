package service

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/ratelimit"
	"paidping-backend/internal/features/intent/models"
	intentgorm "paidping-backend/internal/features/intent/repository/gorm"
	messagemodels "paidping-backend/internal/features/message/models"
	messagegorm "paidping-backend/internal/features/message/repository/gorm"
	messageservice "paidping-backend/internal/features/message/service"
	paymentmodels "paidping-backend/internal/features/payment/models"
	paymentservice "paidping-backend/internal/features/payment/service"
	profilemodels "paidping-backend/internal/features/profile/models"
	profilegorm "paidping-backend/internal/features/profile/repository/gorm"
	profileservice "paidping-backend/internal/features/profile/service"
)

const (
	testNetwork = "solana"
	testMint    = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeChain struct {
	tx  *paymentmodels.ReferenceTransaction
	err error
}

func (f *fakeChain) FindReferenceTransaction(ctx context.Context, reference string) (*paymentmodels.ReferenceTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

type fixture struct {
	db       *gorm.DB
	svc      IntentService
	messages messageservice.MessageService
	profiles profileservice.ProfileService
	chain    *fakeChain
	alice    *profilemodels.Profile
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&profilemodels.Profile{},
		&messagemodels.Message{},
		&messagemodels.InboxStats{},
		&models.PaymentIntent{},
	))

	profiles := profileservice.NewProfileService(profilegorm.NewProfileRepository(db))
	chain := &fakeChain{err: paymentmodels.ErrReferenceNotFound}
	payments := paymentservice.NewPaymentService(chain, testNetwork, testMint)
	messages := messageservice.NewMessageService(
		messagegorm.NewMessageRepository(db),
		profiles,
		ratelimit.NewLocalLimiter(nil),
	)
	svc := NewIntentService(
		intentgorm.NewIntentRepository(db),
		profiles,
		payments,
		Config{Network: testNetwork, USDCMint: testMint, ExplorerBase: "https://solscan.io/tx/"},
	)

	alice, err := profiles.Claim(context.Background(), profilemodels.ClaimRequest{
		Handle:      "alice",
		OwnerWallet: "AliceWallet",
	})
	require.NoError(t, err)

	return &fixture{db: db, svc: svc, messages: messages, profiles: profiles, chain: chain, alice: alice}
}

func createReq() models.CreateRequest {
	return models.CreateRequest{
		ToHandle: "alice",
		Tier:     "priority",
		Body:     "hello there",
	}
}

// settle points the fake chain at a successful settlement of the
// checkout's reference.
func (f *fixture) settle(checkout *models.CheckoutResponse, sig string) {
	f.chain.err = nil
	f.chain.tx = &paymentmodels.ReferenceTransaction{
		Signature: sig,
		Payer:     "PayerWallet",
		Deltas: []paymentmodels.TokenDelta{
			{Owner: f.alice.OwnerWallet, Mint: testMint, Amount: int64(checkout.AmountBaseUnits)},
		},
		Blob: "blob-" + sig,
	}
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestCreateCheckout(t *testing.T) {
	f := setup(t)

	checkout, err := f.svc.Create(context.Background(), createReq())
	require.NoError(t, err)
	require.NotEmpty(t, checkout.Reference)
	require.Equal(t, "AliceWallet", checkout.PayTo)
	require.Equal(t, int64(5), checkout.PriceCents)
	require.Equal(t, uint64(50_000), checkout.AmountBaseUnits)
	require.Contains(t, checkout.PaymentURL, checkout.Reference)
	require.Contains(t, checkout.PaymentURL, "solana:AliceWallet")
	require.Contains(t, checkout.PaymentURL, "amount=0.050000")

	status, err := f.svc.Status(context.Background(), checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, status.Status)
}

func TestCreateReferencesAreUnique(t *testing.T) {
	f := setup(t)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		checkout, err := f.svc.Create(context.Background(), createReq())
		require.NoError(t, err)
		require.False(t, seen[checkout.Reference])
		seen[checkout.Reference] = true
	}
}

func TestCreateFailsFast(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := createReq()
	req.ToHandle = "nobody"
	_, err := f.svc.Create(ctx, req)
	requireCode(t, err, apperrors.ErrCodeRecipientNotFound)

	req = createReq()
	req.Tier = "platinum"
	_, err = f.svc.Create(ctx, req)
	requireCode(t, err, apperrors.ErrCodeValidation)

	req = createReq()
	req.Body = strings.Repeat("a", 281)
	_, err = f.svc.Create(ctx, req)
	requireCode(t, err, apperrors.ErrCodeMessageTooLong)

	var count int64
	require.NoError(t, f.db.Model(&models.PaymentIntent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCheckAndConfirmPendingUntilSettled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	// Nothing on chain yet: repeated polls stay pending without error.
	for i := 0; i < 3; i++ {
		status, err := f.svc.CheckAndConfirm(ctx, checkout.IntentID)
		require.NoError(t, err)
		require.Equal(t, models.StatusPending, status.Status)
	}

	f.settle(checkout, "SIG1")
	status, err := f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, status.Status)
	require.Equal(t, "SIG1", status.TxSignature)
	require.Equal(t, "https://solscan.io/tx/SIG1", status.ExplorerURL)
}

func TestCheckAndConfirmDuplicatePollIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)
	f.settle(checkout, "SIG1")

	_, err = f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	require.NoError(t, err)

	// Even if the chain view changed, a confirmed intent keeps its
	// stored proof.
	f.settle(checkout, "SIG2")
	status, err := f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConfirmed, status.Status)
	require.Equal(t, "SIG1", status.TxSignature)
}

func TestCheckAndConfirmFailedTransaction(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	f.chain.err = nil
	f.chain.tx = &paymentmodels.ReferenceTransaction{Signature: "SIG1", Failed: true}
	_, err = f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	requireCode(t, err, apperrors.ErrCodeTransactionFailed)

	status, err := f.svc.Status(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, status.Status)
}

func TestCheckAndConfirmTransferMismatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	f.chain.err = nil
	f.chain.tx = &paymentmodels.ReferenceTransaction{
		Signature: "SIG1",
		Payer:     "PayerWallet",
		Deltas: []paymentmodels.TokenDelta{
			{Owner: f.alice.OwnerWallet, Mint: testMint, Amount: 1},
		},
	}
	_, err = f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	requireCode(t, err, apperrors.ErrCodeTransferMismatch)
}

func TestConsumeRequiresConfirmation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)

	_, err = f.svc.Consume(ctx, checkout.IntentID)
	requireCode(t, err, apperrors.ErrCodePaymentNotConfirmed)
}

func TestConsumeCommitsPaidEffect(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)
	f.settle(checkout, "SIG1")
	_, err = f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	require.NoError(t, err)

	consumed, err := f.svc.Consume(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.False(t, consumed.Deduped)

	msg, err := f.messages.Get(ctx, f.alice.ID, consumed.MessageID)
	require.NoError(t, err)
	require.Equal(t, "hello there", msg.Body)
	require.Equal(t, int64(5), msg.PriceCents)
	require.Equal(t, "SIG1", msg.PaymentTxSig)
	require.Equal(t, "PayerWallet", msg.Payer)

	stats, err := f.messages.Stats(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalMessages)
	require.Equal(t, int64(5), stats.TotalRevenueCents)

	status, err := f.svc.Status(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConsumed, status.Status)
	require.Equal(t, &consumed.MessageID, status.ConsumedMessageID)
}

func TestConsumeIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)
	f.settle(checkout, "SIG1")
	_, err = f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	require.NoError(t, err)

	first, err := f.svc.Consume(ctx, checkout.IntentID)
	require.NoError(t, err)
	second, err := f.svc.Consume(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, first.MessageID, second.MessageID)
	require.False(t, first.Deduped)
	require.True(t, second.Deduped)

	var count int64
	require.NoError(t, f.db.Model(&messagemodels.Message{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestConsumeLinksCollidingProof(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	checkout, err := f.svc.Create(ctx, createReq())
	require.NoError(t, err)
	f.settle(checkout, "SIG1")
	_, err = f.svc.CheckAndConfirm(ctx, checkout.IntentID)
	require.NoError(t, err)

	// The same settlement already produced a message through the
	// synchronous path.
	inline, err := f.messages.Admit(ctx, messageservice.AdmitRequest{
		ToHandle: "alice",
		Tier:     paymentmodels.TierPriority,
		Body:     "hello there",
		Proof: &paymentmodels.Proof{
			Payer:       "PayerWallet",
			TxSignature: "SIG1",
			Blob:        "blob-SIG1",
			Scheme:      paymentmodels.SchemeExact,
			Network:     testNetwork,
			Version:     paymentmodels.ProtocolVersion,
		},
	})
	require.NoError(t, err)

	consumed, err := f.svc.Consume(ctx, checkout.IntentID)
	require.NoError(t, err)
	require.Equal(t, inline.MessageID, consumed.MessageID)
	require.True(t, consumed.Deduped)

	// One message, one stats increment.
	var count int64
	require.NoError(t, f.db.Model(&messagemodels.Message{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	stats, err := f.messages.Stats(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalMessages)
	require.Equal(t, int64(5), stats.TotalRevenueCents)
}

func TestUnknownIntent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	missing := uuid.New()
	_, err := f.svc.Status(ctx, missing)
	requireCode(t, err, apperrors.ErrCodeIntentNotFound)

	_, err = f.svc.CheckAndConfirm(ctx, missing)
	requireCode(t, err, apperrors.ErrCodeIntentNotFound)

	_, err = f.svc.Consume(ctx, missing)
	requireCode(t, err, apperrors.ErrCodeIntentNotFound)
}
