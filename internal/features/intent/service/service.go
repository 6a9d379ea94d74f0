package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	apperrors "paidping-backend/internal/common/errors"
	"paidping-backend/internal/features/intent/models"
	"paidping-backend/internal/features/intent/repository"
	messagemodels "paidping-backend/internal/features/message/models"
	messageservice "paidping-backend/internal/features/message/service"
	paymentmodels "paidping-backend/internal/features/payment/models"
	paymentservice "paidping-backend/internal/features/payment/service"
	profileservice "paidping-backend/internal/features/profile/service"
)

// Config pins chain metadata baked into every checkout.
type Config struct {
	Network      string
	USDCMint     string
	ExplorerBase string
}

// IntentService drives the asynchronous payment path: create a
// checkout, poll for on-chain settlement, then consume the confirmed
// intent into a delivered message.
type IntentService interface {
	Create(ctx context.Context, req models.CreateRequest) (*models.CheckoutResponse, error)
	// CheckAndConfirm polls the chain for the intent's reference. A
	// settlement not visible yet leaves the intent pending; duplicate
	// polls on a confirmed or consumed intent are side-effect free.
	CheckAndConfirm(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error)
	// Consume commits the paid effect of a confirmed intent. Repeated
	// calls return the same message id.
	Consume(ctx context.Context, id uuid.UUID) (*models.ConsumeResponse, error)
	Status(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error)
}

type intentService struct {
	repo     repository.IntentRepository
	profiles profileservice.ProfileService
	payments *paymentservice.PaymentService
	cfg      Config
}

func NewIntentService(repo repository.IntentRepository, profiles profileservice.ProfileService, payments *paymentservice.PaymentService, cfg Config) IntentService {
	return &intentService{repo: repo, profiles: profiles, payments: payments, cfg: cfg}
}

func (s *intentService) Create(ctx context.Context, req models.CreateRequest) (*models.CheckoutResponse, error) {
	recipient, err := s.profiles.Resolve(ctx, req.ToHandle)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperrors.Newf(apperrors.ErrCodeRecipientNotFound, "no profile for handle %q", req.ToHandle)
	}

	// Content and field validation happens before any chain
	// interaction so a doomed checkout fails fast and free.
	tier := paymentmodels.Tier(req.Tier)
	body, senderName, senderContact, err := messageservice.ValidateContent(tier, req.Body, req.SenderName, req.SenderContact)
	if err != nil {
		return nil, err
	}

	// A throwaway keypair's public key is unpredictable and globally
	// unique, which is all a reference needs.
	reference := solana.NewWallet().PublicKey().String()

	intent := &models.PaymentIntent{
		ProfileID:       recipient.ID,
		ToHandle:        recipient.Handle,
		Tier:            string(tier),
		PriceCents:      tier.PriceCents(),
		AmountBaseUnits: tier.AmountBaseUnits(),
		Body:            body,
		SenderName:      senderName,
		SenderContact:   senderContact,
		Reference:       reference,
		Asset:           s.cfg.USDCMint,
		Network:         s.cfg.Network,
		Scheme:          paymentmodels.SchemeExact,
		Version:         paymentmodels.ProtocolVersion,
	}
	if err := s.repo.Create(ctx, intent); err != nil {
		return nil, apperrors.NewInternal(err)
	}

	return &models.CheckoutResponse{
		IntentID:        intent.ID,
		Reference:       reference,
		PayTo:           recipient.OwnerWallet,
		Asset:           s.cfg.USDCMint,
		AmountBaseUnits: intent.AmountBaseUnits,
		PriceCents:      intent.PriceCents,
		PaymentURL:      s.paymentURL(recipient.OwnerWallet, intent),
	}, nil
}

// paymentURL renders a Solana Pay transfer link carrying the reference
// so wallets tag the settlement transaction with it.
func (s *intentService) paymentURL(payTo string, intent *models.PaymentIntent) string {
	// USDC has 6 decimals; the amount is expressed in whole tokens.
	return fmt.Sprintf("solana:%s?amount=%d.%06d&spl-token=%s&reference=%s",
		payTo,
		intent.AmountBaseUnits/1_000_000, intent.AmountBaseUnits%1_000_000,
		s.cfg.USDCMint, intent.Reference)
}

func (s *intentService) load(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if intent == nil {
		return nil, apperrors.New(apperrors.ErrCodeIntentNotFound, "intent not found")
	}
	return intent, nil
}

func (s *intentService) statusResponse(intent *models.PaymentIntent) *models.StatusResponse {
	resp := &models.StatusResponse{
		IntentID:          intent.ID,
		Status:            intent.Status,
		Payer:             intent.Payer,
		TxSignature:       intent.TxSignature,
		ConsumedMessageID: intent.ConsumedMessageID,
	}
	if intent.TxSignature != "" {
		resp.ExplorerURL = s.cfg.ExplorerBase + intent.TxSignature
	}
	return resp
}

func (s *intentService) CheckAndConfirm(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error) {
	intent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.StatusPending {
		return s.statusResponse(intent), nil
	}

	recipient, err := s.profiles.GetByID(ctx, intent.ProfileID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperrors.New(apperrors.ErrCodeRecipientNotFound, "intent recipient no longer exists")
	}

	proof, err := s.payments.ConfirmByReference(ctx, intent.Reference, recipient.OwnerWallet, intent.AmountBaseUnits)
	if errors.Is(err, paymentmodels.ErrReferenceNotFound) {
		// Nothing on chain yet: still pending, not an error.
		return s.statusResponse(intent), nil
	}
	if err != nil {
		if _, ok := apperrors.AsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewInternal(err)
	}

	confirmed, err := s.repo.Confirm(ctx, id, proof.Payer, proof.TxSignature, proof.Blob)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if confirmed == nil {
		return nil, apperrors.New(apperrors.ErrCodeIntentNotFound, "intent not found")
	}
	return s.statusResponse(confirmed), nil
}

func (s *intentService) Consume(ctx context.Context, id uuid.UUID) (*models.ConsumeResponse, error) {
	intent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent.ConsumedMessageID != nil {
		return &models.ConsumeResponse{MessageID: *intent.ConsumedMessageID, Deduped: true}, nil
	}
	if intent.Status != models.StatusConfirmed {
		return nil, apperrors.New(apperrors.ErrCodePaymentNotConfirmed, "intent payment is not confirmed")
	}

	msg := &messagemodels.Message{
		ProfileID:      intent.ProfileID,
		Tier:           intent.Tier,
		PriceCents:     intent.PriceCents,
		Body:           intent.Body,
		SenderName:     intent.SenderName,
		SenderContact:  intent.SenderContact,
		Payer:          intent.Payer,
		PaymentTxSig:   intent.TxSignature,
		PaymentBlob:    intent.ProofBlob,
		PaymentScheme:  intent.Scheme,
		PaymentNetwork: intent.Network,
		PaymentVersion: intent.Version,
	}
	consumed, deduped, err := s.repo.Consume(ctx, id, msg)
	if errors.Is(err, repository.ErrNotConfirmed) {
		return nil, apperrors.New(apperrors.ErrCodePaymentNotConfirmed, "intent payment is not confirmed")
	}
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if consumed == nil || consumed.ConsumedMessageID == nil {
		return nil, apperrors.New(apperrors.ErrCodeIntentNotFound, "intent not found")
	}
	return &models.ConsumeResponse{MessageID: *consumed.ConsumedMessageID, Deduped: deduped}, nil
}

func (s *intentService) Status(ctx context.Context, id uuid.UUID) (*models.StatusResponse, error) {
	intent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.statusResponse(intent), nil
}
