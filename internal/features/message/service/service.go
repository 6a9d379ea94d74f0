package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/common/ratelimit"
	"paidping-backend/internal/features/message/models"
	"paidping-backend/internal/features/message/policy"
	"paidping-backend/internal/features/message/repository"
	paymentmodels "paidping-backend/internal/features/payment/models"
	profilemodels "paidping-backend/internal/features/profile/models"
	profileservice "paidping-backend/internal/features/profile/service"
)

// MaxPageSize caps list queries regardless of what the caller asks for.
const MaxPageSize = 200

// AdmitRequest is the full input of one paid ping admission. Payer
// identity always comes from the verified proof, not from this struct.
type AdmitRequest struct {
	ToHandle      string
	Tier          paymentmodels.Tier
	Body          string
	SenderName    string
	SenderContact string
	Proof         *paymentmodels.Proof
}

// Page is one cursor page of inbox messages.
type Page struct {
	Messages   []models.Message `json:"messages"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// MessageService is the admission engine plus the recipient-facing
// inbox queries.
type MessageService interface {
	// Admit runs the full admission pipeline: resolve, dedup, rate
	// limits, content policy, field caps, price resolution, atomic
	// write. A repeated proof is a success with Deduped=true.
	Admit(ctx context.Context, req AdmitRequest) (*models.AdmitResult, error)

	SetStatus(ctx context.Context, profileID, messageID uuid.UUID, to models.Status) (*models.Message, error)
	List(ctx context.Context, profileID uuid.UUID, status *models.Status, cursor string, limit int) (*Page, error)
	Get(ctx context.Context, profileID, messageID uuid.UUID) (*models.Message, error)
	Stats(ctx context.Context, profileID uuid.UUID) (*models.InboxStats, error)
}

type messageService struct {
	repo     repository.MessageRepository
	profiles profileservice.ProfileService
	limiter  ratelimit.Limiter
}

func NewMessageService(repo repository.MessageRepository, profiles profileservice.ProfileService, limiter ratelimit.Limiter) MessageService {
	return &messageService{repo: repo, profiles: profiles, limiter: limiter}
}

// ValidateContent runs the shared validation half of admission: tier,
// content policy, sender field caps. Used up front by the intent path
// so a bad request fails before any chain interaction. Returns the
// normalized body and the trimmed sender fields.
func ValidateContent(tier paymentmodels.Tier, body, senderName, senderContact string) (string, string, string, error) {
	if !tier.Valid() {
		return "", "", "", apperrors.Newf(apperrors.ErrCodeValidation, "unknown tier %q", tier)
	}
	normalized, err := policy.Check(body)
	if err != nil {
		return "", "", "", err
	}
	// Caps count characters, not bytes, like the body length check.
	senderName = strings.TrimSpace(senderName)
	if utf8.RuneCountInString(senderName) > models.MaxSenderNameLen {
		return "", "", "", apperrors.Newf(apperrors.ErrCodeValidation, "sender name exceeds %d chars", models.MaxSenderNameLen)
	}
	senderContact = strings.TrimSpace(senderContact)
	if utf8.RuneCountInString(senderContact) > models.MaxSenderContactLen {
		return "", "", "", apperrors.Newf(apperrors.ErrCodeValidation, "sender contact exceeds %d chars", models.MaxSenderContactLen)
	}
	return normalized, senderName, senderContact, nil
}

func (s *messageService) resolveRecipient(ctx context.Context, handle string) (*profilemodels.Profile, error) {
	profile, err := s.profiles.Resolve(ctx, handle)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, apperrors.Newf(apperrors.ErrCodeRecipientNotFound, "no profile for handle %q", handle)
	}
	return profile, nil
}

func (s *messageService) checkLimit(ctx context.Context, purpose, key string) error {
	ok, retryAfter, err := s.limiter.Allow(ctx, purpose, key)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	if !ok {
		return apperrors.NewRateLimited(purpose, retryAfter)
	}
	return nil
}

func (s *messageService) Admit(ctx context.Context, req AdmitRequest) (*models.AdmitResult, error) {
	recipient, err := s.resolveRecipient(ctx, req.ToHandle)
	if err != nil {
		return nil, err
	}

	// Dedup before rate limiting: a legitimate retry of an already
	// paid request must not burn bucket budget.
	existing, err := s.repo.FindByTxSignature(ctx, req.Proof.TxSignature)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if existing != nil {
		return admitResult(existing, recipient.Handle, true), nil
	}

	// Payer bucket first, then the tighter pair bucket. A pair denial
	// does not refund the payer bucket.
	if err := s.checkLimit(ctx, ratelimit.PurposePayer, req.Proof.Payer); err != nil {
		return nil, err
	}
	pairKey := req.Proof.Payer + ":" + recipient.ID.String()
	if err := s.checkLimit(ctx, ratelimit.PurposePayerPair, pairKey); err != nil {
		return nil, err
	}

	body, senderName, senderContact, err := ValidateContent(req.Tier, req.Body, req.SenderName, req.SenderContact)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ProfileID:      recipient.ID,
		Tier:           string(req.Tier),
		PriceCents:     req.Tier.PriceCents(),
		Body:           body,
		SenderName:     senderName,
		SenderContact:  senderContact,
		Payer:          req.Proof.Payer,
		PaymentTxSig:   req.Proof.TxSignature,
		PaymentBlob:    req.Proof.Blob,
		PaymentScheme:  req.Proof.Scheme,
		PaymentNetwork: req.Proof.Network,
		PaymentVersion: req.Proof.Version,
	}
	stored, deduped, err := s.repo.CreateWithStats(ctx, msg)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return admitResult(stored, recipient.Handle, deduped), nil
}

func admitResult(msg *models.Message, toHandle string, deduped bool) *models.AdmitResult {
	return &models.AdmitResult{
		MessageID:    msg.ID,
		Deduped:      deduped,
		ToHandle:     toHandle,
		Tier:         msg.Tier,
		Payer:        msg.Payer,
		PaymentTxSig: msg.PaymentTxSig,
	}
}

func (s *messageService) SetStatus(ctx context.Context, profileID, messageID uuid.UUID, to models.Status) (*models.Message, error) {
	if !to.Valid() {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation, "unknown status %q", to)
	}
	msg, err := s.repo.SetStatus(ctx, profileID, messageID, to)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if msg == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "message not found")
	}
	return msg, nil
}

func (s *messageService) List(ctx context.Context, profileID uuid.UUID, status *models.Status, cursor string, limit int) (*Page, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if status != nil && !status.Valid() {
		return nil, apperrors.Newf(apperrors.ErrCodeValidation, "unknown status %q", *status)
	}

	var before *repository.Keyset
	if cursor != "" {
		decoded, err := decodeCursor(cursor)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeValidation, "malformed cursor")
		}
		before = decoded
	}

	msgs, err := s.repo.ListByRecipient(ctx, profileID, status, before, limit)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	page := &Page{Messages: msgs}
	if len(msgs) == limit {
		last := msgs[len(msgs)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

func (s *messageService) Get(ctx context.Context, profileID, messageID uuid.UUID) (*models.Message, error) {
	msg, err := s.repo.GetByID(ctx, profileID, messageID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if msg == nil {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, "message not found")
	}
	return msg, nil
}

func (s *messageService) Stats(ctx context.Context, profileID uuid.UUID) (*models.InboxStats, error) {
	stats, err := s.repo.GetStats(ctx, profileID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return stats, nil
}
