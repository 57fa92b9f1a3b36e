package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingAttemptRecovery(t *testing.T) {
	attempt := NewBookingAttempt("a-1", BookingRequest{PatientEmail: "p@example.com", Date: "2025-06-02"}, now)
	assert.Equal(t, PaymentIdle, attempt.PaymentState)
	assert.Equal(t, StatusPendingPayment, attempt.Status())
	assert.Equal(t, RecoveryCreateOrder, attempt.Recovery())

	cases := map[PaymentState]RecoveryAction{
		PaymentOrderCreated:    RecoveryAwaitGateway,
		PaymentAwaitingGateway: RecoveryAwaitGateway,
		PaymentVerifying:       RecoveryRetryVerification,
		PaymentVerified:        RecoveryRetryBooking,
		PaymentFailed:          RecoveryCreateOrder,
		PaymentAbandoned:       RecoveryCreateOrder,
	}
	for state, want := range cases {
		attempt.PaymentState = state
		assert.Equal(t, want, attempt.Recovery(), string(state))
	}

	attempt.PaymentState = PaymentVerified
	attempt.BookingState = BookingSubmitted
	view := attempt.View()
	assert.Equal(t, StatusPendingApproval, view.Status)
	assert.Equal(t, RecoveryNone, view.Recovery)
	assert.Equal(t, "2025-06-02", attempt.Request().Date)
}

func TestFulfillmentShortfallAndTotal(t *testing.T) {
	f := FulfillmentInput{QuantityFulfilled: 8, PricePerUnit: 2.5}
	assert.True(t, f.Shortfall(10))
	assert.False(t, f.Shortfall(8))
	assert.Equal(t, 20.0, f.TotalPrice())
}

func TestDoctorOffersSlot(t *testing.T) {
	d := Doctor{TimeSlots: []string{"10:00-11:00"}}
	assert.True(t, d.OffersSlot("10:00-11:00"))
	assert.False(t, d.OffersSlot("11:00-12:00"))
}
