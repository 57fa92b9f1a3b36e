package services

import (
	"CareDesk/messaging"
	"CareDesk/models"
	"CareDesk/utils"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event messaging.Event) error
}

// NotificationService tells the parties of an appointment about lifecycle
// changes. Delivery failures are logged and never fail the workflow step.
type NotificationService struct {
	mailer    Mailer
	from      string
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService accepts a nil mailer or publisher to disable that channel.
func NewNotificationService(mailer Mailer, from string, publisher EventPublisher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		mailer:    mailer,
		from:      from,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *NotificationService) BookingSubmitted(ctx context.Context, attempt *models.BookingAttempt) {
	s.publish(ctx, messaging.Event{
		Type:          messaging.EventBookingSubmitted,
		AppointmentID: attempt.AppointmentID,
		AttemptID:     attempt.ID,
		PaymentID:     attempt.PaymentID,
		PatientEmail:  attempt.PatientEmail,
		DoctorEmail:   attempt.DoctorEmail,
		HospitalName:  attempt.HospitalName,
		Status:        string(models.StatusPendingApproval),
	})
	s.send(utils.Notice{
		To:      attempt.PatientEmail,
		Subject: "Appointment request received",
		Heading: "Your appointment request was received",
		Lines: []string{
			fmt.Sprintf("Dear %s,", attempt.PatientName),
			fmt.Sprintf("Your request to see Dr. %s (%s) on %s at %s has been submitted to %s.",
				attempt.DoctorName, attempt.Department, attempt.Date, attempt.Time, attempt.HospitalName),
			fmt.Sprintf("Payment reference: %s", attempt.PaymentID),
			"You will be notified once the hospital confirms the appointment.",
		},
	})
}

// AppointmentResolved notifies the patient, and the doctor on approval.
func (s *NotificationService) AppointmentResolved(ctx context.Context, appt models.Appointment, reason string) {
	eventType := messaging.EventAppointmentApproved
	if appt.Status == models.StatusRejected {
		eventType = messaging.EventAppointmentRejected
	}
	s.publish(ctx, messaging.Event{
		Type:          eventType,
		AppointmentID: appt.ID,
		PaymentID:     appt.PaymentID,
		PatientEmail:  appt.PatientEmail,
		DoctorEmail:   appt.DoctorEmail,
		HospitalName:  appt.HospitalName,
		Status:        string(appt.Status),
	})

	if appt.Status == models.StatusRejected {
		lines := []string{
			fmt.Sprintf("Dear %s,", appt.PatientName),
			fmt.Sprintf("Your appointment request with Dr. %s on %s could not be accepted.", appt.DoctorName, appt.RequestedDate),
		}
		if reason != "" {
			lines = append(lines, "Reason: "+reason)
		}
		s.send(utils.Notice{To: appt.PatientEmail, Subject: "Appointment rejected", Heading: "Appointment rejected", Lines: lines})
		return
	}

	s.send(utils.Notice{
		To:      appt.PatientEmail,
		Subject: "Appointment confirmed",
		Heading: "Your appointment is confirmed",
		Lines: []string{
			fmt.Sprintf("Dear %s,", appt.PatientName),
			fmt.Sprintf("Your appointment with Dr. %s is confirmed for %s at %s.", appt.DoctorName, appt.ScheduledDate(), appt.ScheduledTime()),
		},
	})
	s.send(utils.Notice{
		To:      appt.DoctorEmail,
		Subject: "New appointment scheduled",
		Heading: "New appointment scheduled",
		Lines: []string{
			fmt.Sprintf("%s is booked with you on %s at %s.", appt.PatientName, appt.ScheduledDate(), appt.ScheduledTime()),
			"Symptoms: " + appt.Symptoms,
		},
	})
}

func (s *NotificationService) PrescriptionSaved(ctx context.Context, prescription models.Prescription) {
	s.publish(ctx, messaging.Event{
		Type:          messaging.EventAppointmentCompleted,
		AppointmentID: prescription.AppointmentID,
		PatientEmail:  prescription.PatientEmail,
		DoctorEmail:   prescription.DoctorEmail,
		HospitalName:  prescription.HospitalName,
		Status:        string(models.StatusCompleted),
	})

	lines := []string{
		fmt.Sprintf("Dear %s,", prescription.PatientName),
		fmt.Sprintf("Dr. %s has written your prescription for the appointment on %s.", prescription.DoctorName, prescription.Date),
	}
	for _, m := range prescription.Medicines {
		lines = append(lines, fmt.Sprintf("%s: %s, %s for %s", m.MedicineName, m.Dosage, m.Frequency, m.Duration))
	}
	if prescription.Suggestions != "" {
		lines = append(lines, "Suggestions: "+prescription.Suggestions)
	}
	s.send(utils.Notice{To: prescription.PatientEmail, Subject: "Your prescription", Heading: "Prescription issued", Lines: lines})
}

func (s *NotificationService) publish(ctx context.Context, event messaging.Event) {
	if s == nil || s.publisher == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish appointment event",
			zap.String("type", event.Type),
			zap.String("appointment_id", event.AppointmentID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) send(n utils.Notice) {
	if s == nil || s.mailer == nil || n.To == "" {
		return
	}
	if err := s.mailer.DialAndSend(utils.BuildNotificationEmail(s.from, n)); err != nil {
		s.logger.Warn("Failed to send notification email",
			zap.String("to", n.To),
			zap.String("subject", n.Subject),
			zap.Error(err),
		)
	}
}
