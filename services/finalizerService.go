package services

import (
	"CareDesk/backend"
	"CareDesk/cache"
	"CareDesk/exceptions"
	"CareDesk/models"
	"CareDesk/repositories"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	bookingLockPrefix = "booking_lock:"
	bookingLockTTL    = 30 * time.Second
)

var errPaymentNotVerified = errors.New("payment is not verified")

type BookingBackend interface {
	BookAppointment(ctx context.Context, req backend.BookAppointmentRequest) (string, error)
}

// FinalizerService submits the appointment of a paid booking attempt.
type FinalizerService struct {
	repo     *repositories.BookingRepository
	backend  BookingBackend
	cache    *cache.Cache
	notifier *NotificationService
	logger   *zap.Logger
}

func NewFinalizerService(repo *repositories.BookingRepository, backend BookingBackend, cache *cache.Cache, notifier *NotificationService, logger *zap.Logger) *FinalizerService {
	return &FinalizerService{repo: repo, backend: backend, cache: cache, notifier: notifier, logger: logger}
}

// Finalize books the appointment of a verified attempt. It is safe to call
// again after a BookingSubmission error: the same payment id is reused and an
// already submitted attempt is returned without another backend call.
func (s *FinalizerService) Finalize(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error) {
	if err := authorize(session, models.OpBookingFinalize); err != nil {
		return nil, err
	}

	var view *models.BookingAttemptView
	err := s.cache.WithLock(ctx, bookingLockPrefix+attemptID, uuid.NewString(), bookingLockTTL, func() error {
		var err error
		view, err = s.finalize(ctx, session, attemptID)
		return err
	})
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, exceptions.Conflict("book_appointment", "booking is already being submitted")
	}
	return view, err
}

func (s *FinalizerService) finalize(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error) {
	attempt, err := loadAttempt(ctx, s.repo, session, attemptID, "book_appointment")
	if err != nil {
		return nil, err
	}
	if attempt.BookingState == models.BookingSubmitted {
		view := attempt.View()
		return &view, nil
	}

	if attempt.PaymentState != models.PaymentVerified || attempt.PaymentID == "" {
		return nil, exceptions.PaymentVerification(attempt.ID, attempt.PaymentID, errPaymentNotVerified)
	}
	tx, err := s.repo.GetTransactionByPayment(ctx, attempt.PaymentID)
	if errors.Is(err, repositories.ErrTransactionNotFound) || (err == nil && tx.AttemptID != attempt.ID) {
		return nil, exceptions.PaymentVerification(attempt.ID, attempt.PaymentID, errPaymentNotVerified)
	}
	if err != nil {
		return nil, err
	}

	if !attempt.Status().CanTransition(models.StatusPendingApproval, session.Role) {
		return nil, exceptions.Forbidden("book_appointment", fmt.Sprintf("role %s may not submit this booking", session.Role))
	}

	appointmentID, err := s.backend.BookAppointment(ctx, backend.NewBookAppointmentRequest(attempt.Request(), attempt.PaymentID))
	writeCtx, cancel := detached(ctx)
	defer cancel()
	if err != nil {
		if markErr := s.repo.MarkSubmissionFailed(writeCtx, attempt.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to record booking submission failure",
				zap.String("attempt_id", attempt.ID),
				zap.Error(markErr),
			)
		}
		s.logger.Error("Paid booking was not submitted",
			zap.String("attempt_id", attempt.ID),
			zap.String("payment_id", attempt.PaymentID),
			zap.Error(err),
		)
		return nil, exceptions.BookingSubmission(attempt.ID, attempt.PaymentID, err)
	}

	if err := s.repo.MarkSubmitted(writeCtx, attempt.ID, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to record appointment %s for attempt %s: %w", appointmentID, attempt.ID, err)
	}
	attempt.AppointmentID = appointmentID
	attempt.BookingState = models.BookingSubmitted
	attempt.LastError = ""

	s.logger.Info("Appointment submitted for approval",
		zap.String("attempt_id", attempt.ID),
		zap.String("appointment_id", appointmentID),
		zap.String("payment_id", attempt.PaymentID),
	)
	s.notifier.BookingSubmitted(ctx, attempt)

	view := attempt.View()
	return &view, nil
}
