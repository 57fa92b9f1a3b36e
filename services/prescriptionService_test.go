package services

import (
	"CareDesk/exceptions"
	"CareDesk/messaging"
	"CareDesk/models"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedAppointment(id, date string) models.Appointment {
	appt := pendingAppointment(id)
	appt.Status = models.StatusApproved
	appt.ConfirmedDate = date
	return appt
}

func validDraft(id string) models.PrescriptionDraft {
	return models.PrescriptionDraft{
		AppointmentID: id,
		Vitals:        map[string]string{"bp": "120/80"},
		Medicines:     []models.Medicine{{MedicineName: "Aspirin", Frequency: "1-0-1", Duration: "5 days", Dosage: "75mg"}},
		Suggestions:   "rest",
	}
}

func TestListDueFiltersFutureAppointments(t *testing.T) {
	h := newHarness(t)
	h.backend.doctorAppointments = []models.Appointment{
		approvedAppointment("today", "2025-06-01"),
		approvedAppointment("past", "2025-05-20"),
		approvedAppointment("future", "2025-06-03"),
		pendingAppointment("pending"),
	}
	unconfirmed := approvedAppointment("requested-only", "")
	unconfirmed.RequestedDate = "2025-05-31"
	h.backend.doctorAppointments = append(h.backend.doctorAppointments, unconfirmed)

	due, err := h.prescription.ListDue(context.Background(), doctor)
	require.NoError(t, err)
	assert.Equal(t, []string{"today", "past", "requested-only"}, appointmentIDs(due))
}

func TestSavePrescriptionCompletesAppointment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.backend.doctorAppointments = []models.Appointment{approvedAppointment("a1", "2025-06-01")}

	detail, err := h.prescription.Save(ctx, doctor, validDraft("a1"), []ReportUpload{
		{Name: "ecg.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("ecg")},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, detail.Status)
	assert.True(t, detail.ReadOnly)

	require.Len(t, h.backend.saved, 1)
	saved := h.backend.saved[0]
	assert.Equal(t, "2025-06-01", saved.Date)
	assert.Equal(t, "asha@example.com", saved.PatientEmail)
	require.Len(t, saved.Reports, 1)
	assert.Equal(t, "a1/ecg.pdf", saved.Reports[0].ObjectKey)
	assert.Equal(t, []string{"ecg"}, h.uploader.uploaded)

	got, err := h.prescription.GetAppointment(ctx, doctor, "a1")
	require.NoError(t, err)
	assert.True(t, got.ReadOnly)

	_, err = h.prescription.Save(ctx, doctor, validDraft("a1"), nil)
	assert.ErrorIs(t, err, exceptions.ErrConflict, "one prescription per appointment")
	assert.Equal(t, []string{messaging.EventAppointmentCompleted}, h.publisher.types())
}

func TestFailedSaveLeavesAppointmentApproved(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.backend.doctorAppointments = []models.Appointment{approvedAppointment("a1", "2025-06-01")}
	h.backend.saveErr = errors.New("backend unavailable")

	_, err := h.prescription.Save(ctx, doctor, validDraft("a1"), nil)
	require.ErrorIs(t, err, exceptions.ErrPrescriptionSave)

	got, err := h.prescription.GetAppointment(ctx, doctor, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.False(t, got.ReadOnly)

	h.backend.saveErr = nil
	_, err = h.prescription.Save(ctx, doctor, validDraft("a1"), nil)
	require.NoError(t, err)
}

func TestSaveRefusesAppointmentsNotDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.backend.doctorAppointments = []models.Appointment{
		approvedAppointment("future", "2025-06-03"),
		pendingAppointment("pending"),
	}

	_, err := h.prescription.Save(ctx, doctor, validDraft("future"), nil)
	assert.ErrorIs(t, err, exceptions.ErrConflict)
	_, err = h.prescription.Save(ctx, doctor, validDraft("pending"), nil)
	assert.ErrorIs(t, err, exceptions.ErrConflict)
	_, err = h.prescription.Save(ctx, doctor, validDraft("unknown"), nil)
	assert.ErrorIs(t, err, exceptions.ErrNotFound)
	assert.Empty(t, h.backend.saved)
}

func TestSaveValidatesMedicines(t *testing.T) {
	h := newHarness(t)
	draft := validDraft("a1")
	draft.Medicines = append(draft.Medicines, models.Medicine{MedicineName: "Paracetamol"})

	_, err := h.prescription.Save(context.Background(), doctor, draft, nil)
	e, ok := exceptions.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"medicines.1.dosage", "medicines.1.duration", "medicines.1.frequency"}, e.FieldNames())
}

func TestReportUploadFailureIsSaveError(t *testing.T) {
	h := newHarness(t)
	h.backend.doctorAppointments = []models.Appointment{approvedAppointment("a1", "2025-06-01")}
	h.uploader.err = errors.New("bucket missing")

	_, err := h.prescription.Save(context.Background(), doctor, validDraft("a1"), []ReportUpload{{Name: "x.png", Body: strings.NewReader("x")}})
	assert.ErrorIs(t, err, exceptions.ErrPrescriptionSave)
	assert.Empty(t, h.backend.saved)
}

func TestPatientsCannotPrescribe(t *testing.T) {
	h := newHarness(t)
	_, err := h.prescription.Save(context.Background(), patient, validDraft("a1"), nil)
	assert.ErrorIs(t, err, exceptions.ErrForbidden)
}
