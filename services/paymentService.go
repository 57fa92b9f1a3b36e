package services

import (
	"CareDesk/backend"
	"CareDesk/cache"
	"CareDesk/exceptions"
	"CareDesk/gateway"
	"CareDesk/models"
	"CareDesk/repositories"
	"CareDesk/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pendingOrderPrefix = "pending_order:"
	verifyLockPrefix   = "verify_lock:"
	verifyLockTTL      = 30 * time.Second
	// writeBackTimeout bounds state writes that must outlive the request.
	writeBackTimeout = 5 * time.Second
	// staleVerification is how long an attempt may stay in verifying before
	// the sweeper re-checks it.
	staleVerification = 2 * time.Minute
)

var errSignatureMismatch = errors.New("payment signature mismatch")

type PaymentBackend interface {
	CreatePayment(ctx context.Context, req backend.CreatePaymentRequest) (*backend.CreatePaymentResponse, error)
	VerifyPayment(ctx context.Context, req backend.VerifyPaymentRequest) error
}

type PaymentConfig struct {
	// Fee is the whole booking charge in currency units.
	Fee            float64
	Currency       string
	GatewayTimeout time.Duration
	// KeySecret enables local signature checks when set.
	KeySecret string
}

// PaymentService drives the payment state of a booking attempt from order
// creation through gateway handoff to server side verification.
type PaymentService struct {
	repo      *repositories.BookingRepository
	backend   PaymentBackend
	cache     *cache.Cache
	finalizer *FinalizerService
	cfg       PaymentConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewPaymentService(repo *repositories.BookingRepository, backend PaymentBackend, cache *cache.Cache, finalizer *FinalizerService, cfg PaymentConfig, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		repo:      repo,
		backend:   backend,
		cache:     cache,
		finalizer: finalizer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder claims the attempt, creates a gateway order for the booking fee
// and returns the checkout options for the gateway widget.
func (s *PaymentService) CreateOrder(ctx context.Context, session models.SessionContext, attemptID string) (*gateway.CheckoutOptions, error) {
	if err := authorize(session, models.OpBookingPay); err != nil {
		return nil, err
	}
	attempt, err := loadAttempt(ctx, s.repo, session, attemptID, "create_order")
	if err != nil {
		return nil, err
	}
	if attempt.BookingState == models.BookingSubmitted || attempt.PaymentState == models.PaymentVerified {
		return nil, exceptions.Conflict("create_order", "this booking is already paid")
	}

	now := s.now()
	claimed, err := s.repo.ClaimForOrder(ctx, attempt.ID, now, now.Add(-s.cfg.GatewayTimeout))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, exceptions.Conflict("create_order", "a payment for this booking is already in progress")
	}

	order, err := s.backend.CreatePayment(ctx, backend.CreatePaymentRequest{
		Amount:       s.cfg.Fee,
		PatientEmail: attempt.PatientEmail,
		HospitalName: attempt.HospitalName,
	})
	if err != nil {
		s.failOrder(ctx, attempt.ID, err)
		return nil, exceptions.PaymentOrder(attempt.ID, err)
	}

	tx := &models.PaymentTransaction{
		OrderID:      order.OrderID,
		AttemptID:    attempt.ID,
		Amount:       s.cfg.Fee,
		Currency:     s.cfg.Currency,
		PayerEmail:   attempt.PatientEmail,
		HospitalName: attempt.HospitalName,
	}
	if err := s.repo.RecordOrder(ctx, attempt.ID, tx, s.now()); err != nil {
		s.failOrder(ctx, attempt.ID, err)
		return nil, exceptions.PaymentOrder(attempt.ID, err)
	}
	if err := s.cache.Set(ctx, pendingOrderPrefix+order.OrderID, attempt.ID, s.cfg.GatewayTimeout); err != nil {
		s.failOrder(ctx, attempt.ID, err)
		return nil, exceptions.PaymentOrder(attempt.ID, fmt.Errorf("failed to register pending order: %w", err))
	}

	s.logger.Info("Payment order created",
		zap.String("attempt_id", attempt.ID),
		zap.String("order_id", order.OrderID),
		zap.Float64("amount", s.cfg.Fee),
	)
	checkout := gateway.NewCheckoutOptions(order.Key, s.cfg.Fee, s.cfg.Currency, order.OrderID, attempt.PatientName, attempt.PatientEmail)
	return &checkout, nil
}

// detached keeps the values of ctx but not its cancellation, for state writes
// that must land after the caller went away.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
}

func (s *PaymentService) failOrder(ctx context.Context, attemptID string, cause error) {
	ctx, cancel := detached(ctx)
	defer cancel()
	from := []models.PaymentState{models.PaymentOrderCreated, models.PaymentAwaitingGateway}
	if _, err := s.repo.Transition(ctx, attemptID, from, models.PaymentFailed, cause.Error(), s.now()); err != nil {
		s.logger.Error("Failed to mark payment order failed", zap.String("attempt_id", attemptID), zap.Error(err))
	}
	s.logger.Warn("Payment order failed", zap.String("attempt_id", attemptID), zap.Error(cause))
}

// ConfirmPayment handles the gateway success callback. The pending order is
// consumed exactly once; the payment is verified with the backend before the
// booking is finalized.
func (s *PaymentService) ConfirmPayment(ctx context.Context, session models.SessionContext, confirmation models.PaymentConfirmation) (*models.BookingAttemptView, error) {
	if err := authorize(session, models.OpBookingPay); err != nil {
		return nil, err
	}
	if err := utils.ValidatePaymentConfirmation(confirmation); err != nil {
		return nil, exceptions.Validation(err)
	}
	attempt, err := s.attemptForOrder(ctx, session, confirmation.OrderID, "verify_payment")
	if err != nil {
		return nil, err
	}

	if err := s.claimPendingOrder(ctx, attempt, confirmation.OrderID, "verify_payment"); err != nil {
		return nil, err
	}
	paymentID := strings.TrimSpace(confirmation.PaymentID)

	// The pending order is gone, so the attempt has to reach verifying even
	// when the caller disconnects now.
	writeCtx, cancel := detached(ctx)
	moved, err := s.repo.BeginVerification(writeCtx, attempt.ID, paymentID, s.now())
	cancel()
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, exceptions.PaymentAbandoned(attempt.ID)
	}
	attempt.PaymentID = paymentID
	attempt.PaymentState = models.PaymentVerifying

	if s.cfg.KeySecret != "" && confirmation.Signature != "" &&
		!gateway.VerifySignature(confirmation.OrderID, paymentID, confirmation.Signature, s.cfg.KeySecret) {
		return nil, s.failVerification(ctx, attempt, errSignatureMismatch)
	}
	if err := s.verify(ctx, attempt); err != nil {
		return nil, err
	}
	return s.finalizer.Finalize(ctx, session, attempt.ID)
}

// RetryVerification re-runs the verification of an attempt left in verifying
// and books the appointment once the payment is verified.
func (s *PaymentService) RetryVerification(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error) {
	if err := authorize(session, models.OpBookingPay); err != nil {
		return nil, err
	}
	attempt, err := loadAttempt(ctx, s.repo, session, attemptID, "verify_payment")
	if err != nil {
		return nil, err
	}
	if attempt.PaymentState != models.PaymentVerifying {
		return nil, exceptions.Conflict("verify_payment", "this payment is not awaiting verification")
	}
	if err := s.verify(ctx, attempt); err != nil {
		return nil, err
	}
	return s.finalizer.Finalize(ctx, session, attempt.ID)
}

// verify checks the stored payment of a verifying attempt with the backend
// and records the answer. Without an answer the attempt stays in verifying.
func (s *PaymentService) verify(ctx context.Context, attempt *models.BookingAttempt) error {
	err := s.cache.WithLock(ctx, verifyLockPrefix+attempt.ID, uuid.NewString(), verifyLockTTL, func() error {
		return s.verifyPayment(ctx, attempt)
	})
	if errors.Is(err, cache.ErrLockHeld) {
		return exceptions.Conflict("verify_payment", "this payment is already being verified")
	}
	if _, ok := exceptions.As(err); err != nil && !ok {
		return exceptions.PaymentVerificationPending(attempt.ID, attempt.PaymentID, err)
	}
	return err
}

func (s *PaymentService) verifyPayment(ctx context.Context, attempt *models.BookingAttempt) error {
	err := s.backend.VerifyPayment(ctx, backend.VerifyPaymentRequest{
		PaymentID:    attempt.PaymentID,
		OrderID:      attempt.OrderID,
		PatientEmail: attempt.PatientEmail,
		HospitalName: attempt.HospitalName,
	})
	if err != nil {
		if backend.IsBackendError(err) {
			return s.failVerification(ctx, attempt, err)
		}
		s.logger.Warn("Payment verification did not complete",
			zap.String("attempt_id", attempt.ID),
			zap.String("payment_id", attempt.PaymentID),
			zap.Error(err),
		)
		return exceptions.PaymentVerificationPending(attempt.ID, attempt.PaymentID, err)
	}

	ctx, cancel := detached(ctx)
	defer cancel()
	err = s.repo.MarkVerified(ctx, attempt.ID, attempt.OrderID, attempt.PaymentID, s.now())
	if errors.Is(err, repositories.ErrStateChanged) {
		return exceptions.Conflict("verify_payment", "this payment was already processed")
	}
	if err != nil {
		s.logger.Error("Failed to record verified payment",
			zap.String("attempt_id", attempt.ID),
			zap.String("payment_id", attempt.PaymentID),
			zap.Error(err),
		)
		return exceptions.PaymentVerificationPending(attempt.ID, attempt.PaymentID, fmt.Errorf("failed to record verified payment: %w", err))
	}
	s.logger.Info("Payment verified",
		zap.String("attempt_id", attempt.ID),
		zap.String("order_id", attempt.OrderID),
		zap.String("payment_id", attempt.PaymentID),
	)
	return nil
}

func (s *PaymentService) failVerification(ctx context.Context, attempt *models.BookingAttempt, cause error) error {
	writeCtx, cancel := detached(ctx)
	defer cancel()
	if err := s.repo.FailVerification(writeCtx, attempt.ID, attempt.OrderID, attempt.PaymentID, cause.Error(), s.now()); err != nil {
		s.logger.Error("Failed to record payment verification failure",
			zap.String("attempt_id", attempt.ID),
			zap.String("payment_id", attempt.PaymentID),
			zap.Error(err),
		)
	}
	s.logger.Warn("Payment verification failed",
		zap.String("attempt_id", attempt.ID),
		zap.String("order_id", attempt.OrderID),
		zap.String("payment_id", attempt.PaymentID),
		zap.Error(cause),
	)
	return exceptions.PaymentVerification(attempt.ID, attempt.PaymentID, cause)
}

// ReportGatewayFailure handles the gateway error callback.
func (s *PaymentService) ReportGatewayFailure(ctx context.Context, session models.SessionContext, failure models.PaymentFailure) (*models.BookingAttemptView, error) {
	if err := authorize(session, models.OpBookingPay); err != nil {
		return nil, err
	}
	if strings.TrimSpace(failure.OrderID) == "" {
		return nil, exceptions.Invalid("orderId", "cannot be blank")
	}
	attempt, err := s.attemptForOrder(ctx, session, failure.OrderID, "gateway")
	if err != nil {
		return nil, err
	}
	if err := s.claimPendingOrder(ctx, attempt, failure.OrderID, "gateway"); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(failure.Reason)
	if reason == "" {
		reason = "payment failed at the gateway"
	}
	from := []models.PaymentState{models.PaymentOrderCreated, models.PaymentAwaitingGateway}
	if _, err := s.repo.Transition(ctx, attempt.ID, from, models.PaymentFailed, reason, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("Gateway reported payment failure",
		zap.String("attempt_id", attempt.ID),
		zap.String("order_id", failure.OrderID),
		zap.String("reason", reason),
	)

	attempt, err = s.repo.GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	view := attempt.View()
	return &view, nil
}

func (s *PaymentService) attemptForOrder(ctx context.Context, session models.SessionContext, orderID, step string) (*models.BookingAttempt, error) {
	tx, err := s.repo.GetTransactionByOrder(ctx, orderID)
	if errors.Is(err, repositories.ErrTransactionNotFound) {
		return nil, exceptions.NotFound(step, "payment order not found")
	}
	if err != nil {
		return nil, err
	}
	return loadAttempt(ctx, s.repo, session, tx.AttemptID, step)
}

// claimPendingOrder consumes the pending register entry of orderID. Only the
// first gateway callback for an order gets past it.
func (s *PaymentService) claimPendingOrder(ctx context.Context, attempt *models.BookingAttempt, orderID, step string) error {
	if attempt.OrderID != orderID {
		return exceptions.PaymentAbandoned(attempt.ID)
	}
	_, ok, err := s.cache.Claim(ctx, pendingOrderPrefix+orderID)
	if err != nil {
		return fmt.Errorf("failed to resolve pending order %s: %w", orderID, err)
	}
	if ok {
		return nil
	}
	if attempt.PaymentState == models.PaymentAbandoned {
		return exceptions.PaymentAbandoned(attempt.ID)
	}
	return exceptions.Conflict(step, "this payment was already processed")
}

// ExpireAbandoned moves gateway handoffs older than the gateway timeout to abandoned.
func (s *PaymentService) ExpireAbandoned(ctx context.Context) (int64, error) {
	now := s.now()
	return s.repo.ExpireAbandoned(ctx, now.Add(-s.cfg.GatewayTimeout), now)
}

// ReverifyStale re-checks attempts that stayed in verifying past
// staleVerification and books the ones whose payment is verified. It returns
// the number of payments verified.
func (s *PaymentService) ReverifyStale(ctx context.Context) (int, error) {
	attempts, err := s.repo.FindStaleVerifying(ctx, s.now().Add(-staleVerification))
	if err != nil {
		return 0, err
	}
	verified := 0
	for i := range attempts {
		attempt := &attempts[i]
		if err := s.verify(ctx, attempt); err != nil {
			if !errors.Is(err, exceptions.ErrConflict) {
				s.logger.Warn("Stale payment verification not resolved",
					zap.String("attempt_id", attempt.ID),
					zap.Error(err),
				)
			}
			continue
		}
		verified++
		if _, err := s.finalizer.Finalize(ctx, patientSession(attempt), attempt.ID); err != nil {
			// The attempt is verified now and offers retry_booking.
			s.logger.Warn("Re-verified booking was not submitted",
				zap.String("attempt_id", attempt.ID),
				zap.Error(err),
			)
		}
	}
	return verified, nil
}

// RunSweeper expires abandoned handoffs and re-checks stale verifications
// every interval until ctx is done.
func (s *PaymentService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *PaymentService) sweep(ctx context.Context) {
	expired, err := s.ExpireAbandoned(ctx)
	if err != nil {
		s.logger.Error("Abandoned payment sweep failed", zap.Error(err))
	} else if expired > 0 {
		s.logger.Info("Expired abandoned payments", zap.Int64("count", expired))
	}

	verified, err := s.ReverifyStale(ctx)
	if err != nil {
		s.logger.Error("Stale verification sweep failed", zap.Error(err))
	} else if verified > 0 {
		s.logger.Info("Verified stale payments", zap.Int("count", verified))
	}
}
