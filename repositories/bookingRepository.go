package repositories

import (
	"CareDesk/models"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrAttemptNotFound     = errors.New("booking attempt not found")
	ErrTransactionNotFound = errors.New("payment transaction not found")
	// ErrStateChanged means a conditional update found the row in another state.
	ErrStateChanged = errors.New("booking attempt state changed concurrently")
)

// BookingRepository persists booking attempts and the payment ledger. Every
// state change is a conditional update on the expected current state.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, attempt *models.BookingAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create booking attempt: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.BookingAttempt, error) {
	var attempt models.BookingAttempt
	err := r.db.WithContext(ctx).First(&attempt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get booking attempt: %w", err)
	}
	return &attempt, nil
}

// FindForSlot returns the attempts of one patient for the same doctor, date
// and time, newest first.
func (r *BookingRepository) FindForSlot(ctx context.Context, req models.BookingRequest) ([]models.BookingAttempt, error) {
	var attempts []models.BookingAttempt
	err := r.db.WithContext(ctx).
		Where("patient_email = ? AND doctor_email = ? AND date = ? AND time = ?", req.PatientEmail, req.DoctorEmail, req.Date, req.Time).
		Order("created_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find booking attempts: %w", err)
	}
	return attempts, nil
}

// ClaimForOrder moves the attempt to order_created when no order is in flight,
// or when the in-flight order went stale before staleBefore. Only one caller
// can win the claim.
func (r *BookingRepository) ClaimForOrder(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.BookingAttempt{}).
		Where("id = ? AND booking_state <> ?", id, models.BookingSubmitted).
		Where("(payment_state IN ? OR (payment_state IN ? AND state_changed_at < ?))",
			models.OrderableStates, models.InFlightStates, staleBefore).
		Updates(map[string]interface{}{
			"payment_state":    models.PaymentOrderCreated,
			"state_changed_at": now,
			"last_error":       "",
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim booking attempt: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// RecordOrder stores the unverified ledger entry and hands the attempt to the gateway.
func (r *BookingRepository) RecordOrder(ctx context.Context, id string, tx *models.PaymentTransaction, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Create(tx).Error; err != nil {
			return fmt.Errorf("failed to create payment transaction: %w", err)
		}
		res := db.Model(&models.BookingAttempt{}).
			Where("id = ? AND payment_state = ?", id, models.PaymentOrderCreated).
			Updates(map[string]interface{}{
				"order_id":         tx.OrderID,
				"payment_id":       "",
				"payment_state":    models.PaymentAwaitingGateway,
				"state_changed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update booking attempt: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrStateChanged
		}
		return nil
	})
}

// Transition moves the payment state to `to` if it is currently one of from.
func (r *BookingRepository) Transition(ctx context.Context, id string, from []models.PaymentState, to models.PaymentState, lastError string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.BookingAttempt{}).
		Where("id = ? AND payment_state IN ?", id, from).
		Updates(map[string]interface{}{
			"payment_state":    to,
			"state_changed_at": now,
			"last_error":       lastError,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to transition booking attempt: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// BeginVerification moves an attempt handed to the gateway into verifying and
// stores the payment id the gateway returned, so an interrupted verification
// can be re-run.
func (r *BookingRepository) BeginVerification(ctx context.Context, id, paymentID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.BookingAttempt{}).
		Where("id = ? AND payment_state = ?", id, models.PaymentAwaitingGateway).
		Updates(map[string]interface{}{
			"payment_id":       paymentID,
			"payment_state":    models.PaymentVerifying,
			"state_changed_at": now,
			"last_error":       "",
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to begin payment verification: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FindStaleVerifying returns attempts that entered verifying before before,
// oldest first.
func (r *BookingRepository) FindStaleVerifying(ctx context.Context, before time.Time) ([]models.BookingAttempt, error) {
	var attempts []models.BookingAttempt
	err := r.db.WithContext(ctx).
		Where("payment_state = ? AND state_changed_at < ?", models.PaymentVerifying, before).
		Order("state_changed_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale verifications: %w", err)
	}
	return attempts, nil
}

// MarkVerified records the verified payment on both the ledger and the attempt.
func (r *BookingRepository) MarkVerified(ctx context.Context, id, orderID, paymentID string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		res := db.Model(&models.PaymentTransaction{}).
			Where("order_id = ? AND attempt_id = ?", orderID, id).
			Updates(map[string]interface{}{
				"payment_id":  paymentID,
				"verified":    true,
				"verified_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to verify payment transaction: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrTransactionNotFound
		}

		res = db.Model(&models.BookingAttempt{}).
			Where("id = ? AND payment_state = ?", id, models.PaymentVerifying).
			Updates(map[string]interface{}{
				"payment_id":       paymentID,
				"payment_state":    models.PaymentVerified,
				"state_changed_at": now,
				"last_error":       "",
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update booking attempt: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return ErrStateChanged
		}
		return nil
	})
}

// FailVerification marks a verifying attempt failed and keeps the payment id
// on the ledger entry for support.
func (r *BookingRepository) FailVerification(ctx context.Context, id, orderID, paymentID, reason string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if err := db.Model(&models.PaymentTransaction{}).
			Where("order_id = ? AND attempt_id = ? AND verified = ?", orderID, id, false).
			Update("payment_id", paymentID).Error; err != nil {
			return fmt.Errorf("failed to update payment transaction: %w", err)
		}
		res := db.Model(&models.BookingAttempt{}).
			Where("id = ? AND payment_state = ?", id, models.PaymentVerifying).
			Updates(map[string]interface{}{
				"payment_state":    models.PaymentFailed,
				"state_changed_at": now,
				"last_error":       reason,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update booking attempt: %w", res.Error)
		}
		return nil
	})
}

// MarkSubmitted stores the appointment id of a verified attempt.
func (r *BookingRepository) MarkSubmitted(ctx context.Context, id, appointmentID string) error {
	res := r.db.WithContext(ctx).Model(&models.BookingAttempt{}).
		Where("id = ? AND payment_state = ? AND booking_state <> ?", id, models.PaymentVerified, models.BookingSubmitted).
		Updates(map[string]interface{}{
			"appointment_id": appointmentID,
			"booking_state":  models.BookingSubmitted,
			"last_error":     "",
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark booking submitted: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrStateChanged
	}
	return nil
}

func (r *BookingRepository) MarkSubmissionFailed(ctx context.Context, id, reason string) error {
	err := r.db.WithContext(ctx).Model(&models.BookingAttempt{}).
		Where("id = ? AND booking_state <> ?", id, models.BookingSubmitted).
		Updates(map[string]interface{}{
			"booking_state": models.BookingSubmissionFailed,
			"last_error":    reason,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark booking submission failed: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetTransactionByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	return r.getTransaction(ctx, "order_id = ?", orderID)
}

func (r *BookingRepository) GetTransactionByPayment(ctx context.Context, paymentID string) (*models.PaymentTransaction, error) {
	return r.getTransaction(ctx, "payment_id = ? AND verified = ?", paymentID, true)
}

func (r *BookingRepository) getTransaction(ctx context.Context, query string, args ...interface{}) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.WithContext(ctx).Where(query, args...).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return &tx, nil
}

func (r *BookingRepository) CountTransactions(ctx context.Context, attemptID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Where("attempt_id = ?", attemptID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count payment transactions: %w", err)
	}
	return count, nil
}

// ExpireAbandoned marks gateway handoffs older than before as abandoned.
func (r *BookingRepository) ExpireAbandoned(ctx context.Context, before, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.BookingAttempt{}).
		Where("payment_state IN ? AND state_changed_at < ?", models.InFlightStates, before).
		Updates(map[string]interface{}{
			"payment_state":    models.PaymentAbandoned,
			"state_changed_at": now,
			"last_error":       "payment abandoned before the gateway returned",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire abandoned attempts: %w", res.Error)
	}
	return res.RowsAffected, nil
}
