package services

import (
	"CareDesk/exceptions"
	"CareDesk/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestFillsSymptomsPlaceholder(t *testing.T) {
	doc := &models.Doctor{Name: "Rao", Email: "rao@example.com", TimeSlots: []string{"10:00-11:00"}}
	req, err := BuildRequest(patient, validInput(), "Cardiology", doc, now)
	require.NoError(t, err)
	assert.Equal(t, models.BookingRequest{
		PatientEmail: "asha@example.com",
		PatientName:  "Asha",
		DoctorEmail:  "rao@example.com",
		DoctorName:   "Rao",
		Department:   "Cardiology",
		Date:         "2025-06-02",
		Time:         "10:00-11:00",
		Symptoms:     models.NoSymptomsPlaceholder,
		HospitalName: hospital,
	}, req)
}

func TestBuildRequestReportsEveryInvalidField(t *testing.T) {
	doc := &models.Doctor{Email: "rao@example.com", TimeSlots: []string{"10:00-11:00"}}
	input := validInput()
	input.Date = "2025-05-31"
	input.Time = "18:00-19:00"

	_, err := BuildRequest(patient, input, "Cardiology", doc, now)
	e, ok := exceptions.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"date", "time"}, e.FieldNames())

	_, err = BuildRequest(patient, validInput(), "Cardiology", nil, now)
	e, ok = exceptions.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"doctorEmail"}, e.FieldNames())
}

func TestStartBookingRejectsUnknownDoctor(t *testing.T) {
	h := newHarness(t)
	input := validInput()
	input.DoctorEmail = "nobody@example.com"
	_, err := h.bookings.StartBooking(context.Background(), patient, input)
	assert.ErrorIs(t, err, exceptions.ErrValidation)

	assert.False(t, h.redis.Exists("doctors:"+hospital+":d1"), "unknown doctor drops the cached directory")
	assert.False(t, h.redis.Exists("departments:"+hospital))
}

func TestStartBookingReusesOpenAttemptAndRejectsPaidOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.bookings.StartBooking(ctx, patient, validInput())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentIdle, first.PaymentState)
	assert.Equal(t, models.StatusPendingPayment, first.Status)
	assert.Equal(t, models.RecoveryCreateOrder, first.Recovery)

	again, err := h.bookings.StartBooking(ctx, patient, validInput())
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	checkout, err := h.payments.CreateOrder(ctx, patient, first.ID)
	require.NoError(t, err)
	_, err = h.bookings.StartBooking(ctx, patient, validInput())
	assert.ErrorIs(t, err, exceptions.ErrConflict)

	_, err = h.payments.ConfirmPayment(ctx, patient, models.PaymentConfirmation{OrderID: checkout.OrderID, PaymentID: "pay_1"})
	require.NoError(t, err)
	_, err = h.bookings.StartBooking(ctx, patient, validInput())
	e, ok := exceptions.As(err)
	require.True(t, ok)
	assert.Equal(t, duplicateBookingMessage, e.Message)
	assert.Equal(t, first.ID, e.AttemptID)
}

func TestStartBookingRequiresPatient(t *testing.T) {
	h := newHarness(t)
	_, err := h.bookings.StartBooking(context.Background(), doctor, validInput())
	assert.ErrorIs(t, err, exceptions.ErrForbidden)
}

func TestGetAttemptHidesOtherPatients(t *testing.T) {
	h := newHarness(t)
	view, err := h.bookings.StartBooking(context.Background(), patient, validInput())
	require.NoError(t, err)

	other := patient
	other.Email = "someone@example.com"
	_, err = h.bookings.GetAttempt(context.Background(), other, view.ID)
	assert.ErrorIs(t, err, exceptions.ErrNotFound)
}
