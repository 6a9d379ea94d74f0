package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/ratelimit"
	"paidping-backend/internal/features/message/models"
	messagegorm "paidping-backend/internal/features/message/repository/gorm"
	paymentmodels "paidping-backend/internal/features/payment/models"
	profilemodels "paidping-backend/internal/features/profile/models"
	profilegorm "paidping-backend/internal/features/profile/repository/gorm"
	profileservice "paidping-backend/internal/features/profile/service"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&profilemodels.Profile{}, &models.Message{}, &models.InboxStats{}))
	return db
}

func testLimits() map[string]ratelimit.Limit {
	return map[string]ratelimit.Limit{
		ratelimit.PurposePayer:     {Events: 6, Window: time.Hour, Burst: 2},
		ratelimit.PurposePayerPair: {Events: 2, Window: time.Minute, Burst: 1},
	}
}

type fixture struct {
	db       *gorm.DB
	svc      MessageService
	profiles profileservice.ProfileService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	profiles := profileservice.NewProfileService(profilegorm.NewProfileRepository(db))
	svc := NewMessageService(
		messagegorm.NewMessageRepository(db),
		profiles,
		ratelimit.NewLocalLimiter(testLimits()),
	)
	return &fixture{db: db, svc: svc, profiles: profiles}
}

func (f *fixture) claim(t *testing.T, handle, wallet string) *profilemodels.Profile {
	t.Helper()
	profile, err := f.profiles.Claim(context.Background(), profilemodels.ClaimRequest{
		Handle:      handle,
		OwnerWallet: wallet,
	})
	require.NoError(t, err)
	return profile
}

func proofWithSig(sig string) *paymentmodels.Proof {
	return &paymentmodels.Proof{
		Payer:       "Payer1111111111111111111111111111111111111",
		TxSignature: sig,
		Blob:        "blob-" + sig,
		Scheme:      paymentmodels.SchemeExact,
		Network:     "solana",
		Version:     paymentmodels.ProtocolVersion,
	}
}

func admitReq(handle string, proof *paymentmodels.Proof) AdmitRequest {
	return AdmitRequest{
		ToHandle: handle,
		Tier:     paymentmodels.TierStandard,
		Body:     "hi",
		Proof:    proof,
	}
}

func (f *fixture) stats(t *testing.T, profileID uuid.UUID) *models.InboxStats {
	t.Helper()
	stats, err := f.svc.Stats(context.Background(), profileID)
	require.NoError(t, err)
	return stats
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func TestAdmitStandardPing(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	res, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)
	require.False(t, res.Deduped)

	msg, err := f.svc.Get(context.Background(), alice.ID, res.MessageID)
	require.NoError(t, err)
	require.Equal(t, int64(1), msg.PriceCents)
	require.Equal(t, models.StatusNew, msg.Status)
	require.Equal(t, "hi", msg.Body)
	require.Equal(t, "SIG1", msg.PaymentTxSig)

	stats := f.stats(t, alice.ID)
	require.Equal(t, int64(1), stats.TotalMessages)
	require.Equal(t, int64(1), stats.TotalRevenueCents)
	require.Equal(t, int64(1), stats.NewCount)
}

func TestAdmitDedupesRepeatedProof(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	first, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)
	require.False(t, first.Deduped)

	second, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)
	require.True(t, second.Deduped)
	require.Equal(t, first.MessageID, second.MessageID)

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	stats := f.stats(t, alice.ID)
	require.Equal(t, int64(1), stats.TotalMessages)
	require.Equal(t, int64(1), stats.TotalRevenueCents)
}

func TestAdmitPriceSchedule(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	prices := map[paymentmodels.Tier]int64{
		paymentmodels.TierStandard: 1,
		paymentmodels.TierPriority: 5,
		paymentmodels.TierVIP:      25,
	}
	var total int64
	i := 0
	for tier, want := range prices {
		i++
		req := admitReq("alice", proofWithSig(fmt.Sprintf("SIG%d", i)))
		// Distinct payers keep rate limits out of this test's way.
		req.Proof.Payer = fmt.Sprintf("Payer%d", i)
		req.Tier = tier
		res, err := f.svc.Admit(context.Background(), req)
		require.NoError(t, err)

		msg, err := f.svc.Get(context.Background(), alice.ID, res.MessageID)
		require.NoError(t, err)
		require.Equal(t, want, msg.PriceCents)
		total += want
	}

	require.Equal(t, total, f.stats(t, alice.ID).TotalRevenueCents)
}

func TestAdmitRecipientNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Admit(context.Background(), admitReq("nobody", proofWithSig("SIG1")))
	requireCode(t, err, apperrors.ErrCodeRecipientNotFound)
}

func TestAdmitPolicyRejectionLeavesNoTrace(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	req := admitReq("alice", proofWithSig("SIG1"))
	req.Body = strings.Repeat("a", 281)
	_, err := f.svc.Admit(context.Background(), req)
	requireCode(t, err, apperrors.ErrCodeMessageTooLong)

	var count int64
	require.NoError(t, f.db.Model(&models.Message{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, f.stats(t, alice.ID).TotalMessages)
}

func TestAdmitSenderFieldCaps(t *testing.T) {
	f := setup(t)
	f.claim(t, "alice", "AliceWallet")

	// Each attempt pays from its own wallet so the rate-limit buckets
	// stay out of the picture.
	pingFrom := func(payer, sig string) AdmitRequest {
		proof := proofWithSig(sig)
		proof.Payer = payer
		return admitReq("alice", proof)
	}

	req := pingFrom("PayerA", "SIG1")
	req.SenderName = strings.Repeat("n", 81)
	_, err := f.svc.Admit(context.Background(), req)
	requireCode(t, err, apperrors.ErrCodeValidation)

	req = pingFrom("PayerB", "SIG2")
	req.SenderContact = strings.Repeat("c", 121)
	_, err = f.svc.Admit(context.Background(), req)
	requireCode(t, err, apperrors.ErrCodeValidation)

	// Caps count characters: a 30-char CJK name is 90 bytes but fine.
	req = pingFrom("PayerC", "SIG3")
	req.SenderName = strings.Repeat("語", 30)
	_, err = f.svc.Admit(context.Background(), req)
	require.NoError(t, err)

	req = pingFrom("PayerD", "SIG4")
	req.SenderName = strings.Repeat("語", 81)
	_, err = f.svc.Admit(context.Background(), req)
	requireCode(t, err, apperrors.ErrCodeValidation)
}

func TestAdmitPairLimitDoesNotRefundPayerBucket(t *testing.T) {
	f := setup(t)
	f.claim(t, "alice", "AliceWallet")
	f.claim(t, "bob", "BobWallet")

	// First ping consumes one token from both buckets.
	_, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)

	// Second ping to the same recipient passes the payer bucket but
	// fails the tighter pair bucket. The payer token is not returned.
	appErr := requireCode(t, func() error {
		_, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG2")))
		return err
	}(), apperrors.ErrCodeRateLimited)
	require.Positive(t, appErr.RetryAfter)

	// The payer bucket (burst 2) is now empty, so a ping to a fresh
	// recipient is denied at the payer level.
	requireCode(t, func() error {
		_, err := f.svc.Admit(context.Background(), admitReq("bob", proofWithSig("SIG3")))
		return err
	}(), apperrors.ErrCodeRateLimited)
}

func TestAdmitDedupSkipsRateLimits(t *testing.T) {
	f := setup(t)
	f.claim(t, "alice", "AliceWallet")

	first, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)

	// Retries of the same proof never consume budget, however many.
	for i := 0; i < 10; i++ {
		res, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
		require.NoError(t, err)
		require.True(t, res.Deduped)
		require.Equal(t, first.MessageID, res.MessageID)
	}
}

func TestSetStatusRebalancesStats(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	res, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)

	msg, err := f.svc.SetStatus(context.Background(), alice.ID, res.MessageID, models.StatusReplied)
	require.NoError(t, err)
	require.Equal(t, models.StatusReplied, msg.Status)

	stats := f.stats(t, alice.ID)
	require.Equal(t, int64(1), stats.TotalMessages)
	require.Zero(t, stats.NewCount)
	require.Equal(t, int64(1), stats.RepliedCount)

	// Any status is reachable from any other.
	_, err = f.svc.SetStatus(context.Background(), alice.ID, res.MessageID, models.StatusArchived)
	require.NoError(t, err)
	stats = f.stats(t, alice.ID)
	require.Zero(t, stats.RepliedCount)
	require.Equal(t, int64(1), stats.ArchivedCount)

	_, err = f.svc.SetStatus(context.Background(), alice.ID, res.MessageID, models.StatusNew)
	require.NoError(t, err)
	stats = f.stats(t, alice.ID)
	require.Zero(t, stats.ArchivedCount)
	require.Equal(t, int64(1), stats.NewCount)

	require.Equal(t, stats.TotalMessages, stats.NewCount+stats.RepliedCount+stats.ArchivedCount)
}

func TestSetStatusSameStatusIsNoOp(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	res, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)

	msg, err := f.svc.SetStatus(context.Background(), alice.ID, res.MessageID, models.StatusNew)
	require.NoError(t, err)
	require.Equal(t, models.StatusNew, msg.Status)

	stats := f.stats(t, alice.ID)
	require.Equal(t, int64(1), stats.NewCount)
	require.Zero(t, stats.RepliedCount)
}

func TestSetStatusScopedToOwner(t *testing.T) {
	f := setup(t)
	f.claim(t, "alice", "AliceWallet")
	bob := f.claim(t, "bob", "BobWallet")

	res, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)

	_, err = f.svc.SetStatus(context.Background(), bob.ID, res.MessageID, models.StatusReplied)
	requireCode(t, err, apperrors.ErrCodeNotFound)
}

func TestGetScopedToOwner(t *testing.T) {
	f := setup(t)
	f.claim(t, "alice", "AliceWallet")
	bob := f.claim(t, "bob", "BobWallet")

	res, err := f.svc.Admit(context.Background(), admitReq("alice", proofWithSig("SIG1")))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), bob.ID, res.MessageID)
	requireCode(t, err, apperrors.ErrCodeNotFound)
}

func TestListPagination(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	// Insert with explicit creation times so ordering is deterministic.
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ID:           uuid.New(),
			ProfileID:    alice.ID,
			Tier:         string(paymentmodels.TierStandard),
			PriceCents:   1,
			Body:         fmt.Sprintf("msg %d", i),
			Payer:        "Payer1",
			PaymentTxSig: fmt.Sprintf("SIG%d", i),
			Status:       models.StatusNew,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.db.Create(msg).Error)
	}

	page, err := f.svc.List(context.Background(), alice.ID, nil, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	require.Equal(t, "msg 4", page.Messages[0].Body)
	require.Equal(t, "msg 3", page.Messages[1].Body)
	require.NotEmpty(t, page.NextCursor)

	page, err = f.svc.List(context.Background(), alice.ID, nil, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	require.Equal(t, "msg 2", page.Messages[0].Body)
	require.Equal(t, "msg 1", page.Messages[1].Body)

	page, err = f.svc.List(context.Background(), alice.ID, nil, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, "msg 0", page.Messages[0].Body)
	require.Empty(t, page.NextCursor)
}

func TestListPaginationSharedTimestamps(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	// Five rows created in the same instant: the cursor's id tie-break
	// must walk every row exactly once.
	at := time.Now().UTC().Truncate(time.Second)
	served := make(map[string]bool)
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ID:           uuid.New(),
			ProfileID:    alice.ID,
			Tier:         string(paymentmodels.TierStandard),
			PriceCents:   1,
			Body:         fmt.Sprintf("msg %d", i),
			Payer:        "Payer1",
			PaymentTxSig: fmt.Sprintf("SIG%d", i),
			Status:       models.StatusNew,
			CreatedAt:    at,
		}
		require.NoError(t, f.db.Create(msg).Error)
		served[msg.Body] = false
	}

	seen := 0
	cursor := ""
	for pages := 0; pages < 4; pages++ {
		page, err := f.svc.List(context.Background(), alice.ID, nil, cursor, 2)
		require.NoError(t, err)
		for _, m := range page.Messages {
			require.False(t, served[m.Body], "row %q served twice", m.Body)
			served[m.Body] = true
			seen++
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	require.Equal(t, 5, seen)
}

func TestListFiltersByStatus(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		req := admitReq("alice", proofWithSig(fmt.Sprintf("SIG%d", i)))
		req.Proof.Payer = fmt.Sprintf("Payer%d", i)
		res, err := f.svc.Admit(context.Background(), req)
		require.NoError(t, err)
		ids = append(ids, res.MessageID)
	}
	_, err := f.svc.SetStatus(context.Background(), alice.ID, ids[0], models.StatusArchived)
	require.NoError(t, err)

	archived := models.StatusArchived
	page, err := f.svc.List(context.Background(), alice.ID, &archived, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, ids[0], page.Messages[0].ID)

	fresh := models.StatusNew
	page, err = f.svc.List(context.Background(), alice.ID, &fresh, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
}

func TestListRejectsMalformedCursor(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	_, err := f.svc.List(context.Background(), alice.ID, nil, "not a cursor", 10)
	requireCode(t, err, apperrors.ErrCodeValidation)
}

func TestStatsForQuietProfile(t *testing.T) {
	f := setup(t)
	alice := f.claim(t, "alice", "AliceWallet")

	stats := f.stats(t, alice.ID)
	require.Zero(t, stats.TotalMessages)
	require.Zero(t, stats.TotalRevenueCents)
}
