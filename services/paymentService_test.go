package services

import (
	"CareDesk/backend"
	"CareDesk/exceptions"
	"CareDesk/messaging"
	"CareDesk/models"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaidBookingReachesPendingApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.bookings.StartBooking(ctx, patient, validInput())
	require.NoError(t, err)

	checkout, err := h.payments.CreateOrder(ctx, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), checkout.Amount)
	assert.Equal(t, "INR", checkout.Currency)
	assert.Equal(t, "rzp_test_key", checkout.Key)
	assert.Equal(t, "asha@example.com", checkout.Prefill.Email)
	require.Len(t, h.backend.orders, 1)
	assert.Equal(t, 100.0, h.backend.orders[0].Amount)

	done, err := h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: checkout.OrderID, PaymentID: "pay_123"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, done.Status)
	assert.Equal(t, models.PaymentVerified, done.PaymentState)
	assert.Equal(t, "appt-pay_123", done.AppointmentID)
	assert.Equal(t, models.RecoveryNone, done.Recovery)

	require.Len(t, h.backend.bookRequests, 1)
	assert.Equal(t, "pay_123", h.backend.bookRequests[0].PaymentID)
	assert.Equal(t, "2025-06-02", h.backend.bookRequests[0].AppointmentDate)

	tx, err := h.repo.GetTransactionByPayment(ctx, "pay_123")
	require.NoError(t, err)
	assert.True(t, tx.Verified)
	assert.Equal(t, 100.0, tx.Amount)

	assert.Equal(t, []string{messaging.EventBookingSubmitted}, h.publisher.types())
	assert.Equal(t, []string{"asha@example.com"}, h.mailer.recipients())
}

func TestFailedVerificationNeverBooks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, orderID := h.startBooking(t)

	h.backend.verifyErr = &backend.Error{StatusCode: 400, Status: "400 Bad Request", Message: "Payment not captured"}
	_, err := h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_bad"})
	require.ErrorIs(t, err, exceptions.ErrPaymentVerification)
	e, _ := exceptions.As(err)
	assert.Equal(t, "pay_bad", e.PaymentID)

	assert.Empty(t, h.backend.bookRequests)
	got, err := h.bookings.GetAttempt(ctx, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, got.PaymentState)
	assert.Equal(t, models.StatusPendingPayment, got.Status)
	assert.Equal(t, models.RecoveryCreateOrder, got.Recovery)
}

func TestCallbackIsConsumedOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, orderID := h.startBooking(t)

	confirmation := models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1"}
	_, err := h.payments.ConfirmPayment(ctx, patient, confirmation)
	require.NoError(t, err)

	_, err = h.payments.ConfirmPayment(ctx, patient, confirmation)
	assert.ErrorIs(t, err, exceptions.ErrConflict)
	assert.Equal(t, 1, h.backend.verifyCalls)
	assert.Len(t, h.backend.bookRequests, 1)
}

func TestSecondOrderWhileInFlightConflicts(t *testing.T) {
	h := newHarness(t)
	view, _ := h.startBooking(t)

	_, err := h.payments.CreateOrder(context.Background(), patient, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrConflict)
	assert.Len(t, h.backend.orders, 1)
}

func TestOrderFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.bookings.StartBooking(ctx, patient, validInput())
	require.NoError(t, err)

	h.backend.createErr = errors.New("gateway unavailable")
	_, err = h.payments.CreateOrder(ctx, patient, view.ID)
	require.ErrorIs(t, err, exceptions.ErrPaymentOrder)

	got, err := h.bookings.GetAttempt(ctx, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, got.PaymentState)

	h.backend.createErr = nil
	_, err = h.payments.CreateOrder(ctx, patient, view.ID)
	require.NoError(t, err)
}

func TestGatewayFailureCallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, orderID := h.startBooking(t)

	got, err := h.payments.ReportGatewayFailure(ctx, patient, models.PaymentFailure{OrderID: orderID, Reason: "card declined"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, got.PaymentState)
	assert.Equal(t, "card declined", got.LastError)

	_, err = h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_late"})
	assert.ErrorIs(t, err, exceptions.ErrConflict)
	assert.Zero(t, h.backend.verifyCalls)
}

func TestAbandonedHandoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, orderID := h.startBooking(t)

	h.payments.now = func() time.Time { return now.Add(20 * time.Minute) }
	expired, err := h.payments.ExpireAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	_, err = h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_late"})
	assert.ErrorIs(t, err, exceptions.ErrPaymentAbandoned)
	assert.Zero(t, h.backend.verifyCalls)

	checkout, err := h.payments.CreateOrder(ctx, patient, view.ID)
	require.NoError(t, err)
	assert.NotEqual(t, orderID, checkout.OrderID)

	_, err = h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_late"})
	assert.ErrorIs(t, err, exceptions.ErrPaymentAbandoned, "a superseded order stays abandoned")
}

func TestSignatureMismatchFailsVerification(t *testing.T) {
	h := newHarness(t)
	h.payments.cfg.KeySecret = "secret"
	ctx := context.Background()
	_, orderID := h.startBooking(t)

	_, err := h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1", Signature: "forged"})
	assert.ErrorIs(t, err, exceptions.ErrPaymentVerification)
	assert.Zero(t, h.backend.verifyCalls)
	assert.Empty(t, h.backend.bookRequests)
}

func TestValidSignatureIsAccepted(t *testing.T) {
	h := newHarness(t)
	h.payments.cfg.KeySecret = "secret"
	_, orderID := h.startBooking(t)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(orderID + "|pay_1"))
	signature := hex.EncodeToString(mac.Sum(nil))

	view, err := h.payments.ConfirmPayment(context.Background(), patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1", Signature: signature})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, view.Status)
}

func TestConfirmPaymentValidatesInput(t *testing.T) {
	h := newHarness(t)
	_, err := h.payments.ConfirmPayment(context.Background(), patient, models.PaymentConfirmation{OrderID: "order_1"})
	e, ok := exceptions.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"paymentId"}, e.FieldNames())

	_, err = h.payments.ConfirmPayment(context.Background(), patient, models.PaymentConfirmation{OrderID: "order_x", PaymentID: "pay_1"})
	assert.ErrorIs(t, err, exceptions.ErrNotFound)
}

func TestInterruptedVerificationCanBeRetried(t *testing.T) {
	h := newHarness(t)
	bg := context.Background()
	view, orderID := h.startBooking(t)

	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	h.backend.verifyHook = func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}
	_, err := h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1"})
	require.ErrorIs(t, err, exceptions.ErrPaymentVerification)
	assert.ErrorIs(t, err, context.Canceled)
	e, _ := exceptions.As(err)
	assert.Equal(t, "retry verification", e.Recovery)

	got, err := h.bookings.GetAttempt(bg, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVerifying, got.PaymentState)
	assert.Equal(t, models.RecoveryRetryVerification, got.Recovery)
	assert.Equal(t, "pay_1", got.PaymentID)
	assert.Empty(t, h.backend.bookRequests)

	_, err = h.bookings.StartBooking(bg, patient, validInput())
	e, ok := exceptions.As(err)
	require.True(t, ok)
	assert.Equal(t, exceptions.KindConflict, e.Kind)
	assert.Equal(t, view.ID, e.AttemptID)

	_, err = h.payments.CreateOrder(bg, patient, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrConflict, "a payment under verification is never charged again")
	assert.Len(t, h.backend.orders, 1)

	h.backend.verifyHook = nil
	done, err := h.payments.RetryVerification(bg, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, done.Status)
	assert.Equal(t, models.PaymentVerified, done.PaymentState)
	assert.Equal(t, "appt-pay_1", done.AppointmentID)

	require.Len(t, h.backend.verified, 2)
	assert.Equal(t, orderID, h.backend.verified[1].OrderID)
	assert.Equal(t, "pay_1", h.backend.verified[1].PaymentID)
	assert.Len(t, h.backend.bookRequests, 1)
}

func TestVerifiedPaymentIsRecordedAfterCallerLeaves(t *testing.T) {
	h := newHarness(t)
	bg := context.Background()
	view, orderID := h.startBooking(t)

	ctx, cancel := context.WithCancel(bg)
	defer cancel()
	h.backend.verifyHook = func(context.Context) error {
		cancel()
		return nil
	}
	_, _ = h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1"})

	got, err := h.bookings.GetAttempt(bg, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentVerified, got.PaymentState)
	tx, err := h.repo.GetTransactionByPayment(bg, "pay_1")
	require.NoError(t, err)
	assert.True(t, tx.Verified)

	done, err := h.finalizer.Finalize(bg, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, done.Status)
	assert.Len(t, h.backend.bookRequests, 1)
}

func TestSweeperReverifiesStaleVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, orderID := h.startBooking(t)

	h.backend.verifyHook = func(context.Context) error { return errors.New("connection reset by peer") }
	_, err := h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1"})
	require.ErrorIs(t, err, exceptions.ErrPaymentVerification)

	verified, err := h.payments.ReverifyStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, verified, "a fresh verification is left to its caller")
	assert.Equal(t, 1, h.backend.verifyCalls)

	h.backend.verifyHook = nil
	h.payments.now = func() time.Time { return now.Add(20 * time.Minute) }
	expired, err := h.payments.ExpireAbandoned(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	verified, err = h.payments.ReverifyStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, verified)

	got, err := h.bookings.GetAttempt(ctx, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingApproval, got.Status)
	assert.Equal(t, "appt-pay_1", got.AppointmentID)
	assert.Equal(t, []string{messaging.EventBookingSubmitted}, h.publisher.types())
}

func TestSweeperFailsRejectedStaleVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, orderID := h.startBooking(t)

	h.backend.verifyHook = func(context.Context) error { return context.DeadlineExceeded }
	_, err := h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1"})
	require.ErrorIs(t, err, exceptions.ErrPaymentVerification)

	h.backend.verifyHook = nil
	h.backend.verifyErr = &backend.Error{StatusCode: 400, Status: "400 Bad Request", Message: "Payment not captured"}
	h.payments.now = func() time.Time { return now.Add(5 * time.Minute) }
	verified, err := h.payments.ReverifyStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, verified)

	got, err := h.bookings.GetAttempt(ctx, patient, view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, got.PaymentState)
	assert.Equal(t, models.RecoveryCreateOrder, got.Recovery)
	assert.Empty(t, h.backend.bookRequests)
}

func TestRetryVerificationGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, orderID := h.startBooking(t)

	_, err := h.payments.RetryVerification(ctx, patient, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrConflict, "nothing to verify before the callback")

	h.backend.verifyHook = func(context.Context) error { return errors.New("i/o timeout") }
	_, err = h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: orderID, PaymentID: "pay_1"})
	require.ErrorIs(t, err, exceptions.ErrPaymentVerification)
	h.backend.verifyHook = nil

	stranger := patient
	stranger.Email = "someone@example.com"
	_, err = h.payments.RetryVerification(ctx, stranger, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrNotFound)

	_, err = h.payments.RetryVerification(ctx, doctor, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrForbidden)

	require.NoError(t, h.redis.Set(verifyLockPrefix+view.ID, "other"))
	_, err = h.payments.RetryVerification(ctx, patient, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrConflict)
	assert.Equal(t, 1, h.backend.verifyCalls)

	h.redis.Del(verifyLockPrefix + view.ID)
	_, err = h.payments.RetryVerification(ctx, patient, view.ID)
	require.NoError(t, err)
}
