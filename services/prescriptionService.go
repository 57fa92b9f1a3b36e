package services

import (
	"CareDesk/cache"
	"CareDesk/exceptions"
	"CareDesk/models"
	"CareDesk/utils"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	prescriptionLockPrefix = "prescription_lock:"
	prescriptionLockTTL    = 2 * time.Minute
)

var errReportStorageDisabled = errors.New("report storage is not configured")

type PrescriptionBackend interface {
	DoctorAppointments(ctx context.Context, doctorEmail string, status models.AppointmentStatus) ([]models.Appointment, error)
	SavePrescription(ctx context.Context, prescription models.Prescription) error
}

// ReportUploader is satisfied by *storage.ReportStore.
type ReportUploader interface {
	Upload(ctx context.Context, appointmentID, name, contentType string, size int64, body io.Reader) (models.ReportFile, error)
}

// ReportUpload is one report file attached to a prescription draft.
type ReportUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PrescriptionService is the gate through which a doctor completes an appointment.
type PrescriptionService struct {
	backend  PrescriptionBackend
	reports  ReportUploader
	cache    *cache.Cache
	notifier *NotificationService
	logger   *zap.Logger
	now      func() time.Time
}

// NewPrescriptionService accepts a nil uploader; drafts with reports are then refused.
func NewPrescriptionService(backend PrescriptionBackend, reports ReportUploader, cache *cache.Cache, notifier *NotificationService, logger *zap.Logger) *PrescriptionService {
	return &PrescriptionService{
		backend:  backend,
		reports:  reports,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ListDue returns the doctor's approved appointments dated today or earlier.
func (s *PrescriptionService) ListDue(ctx context.Context, session models.SessionContext) ([]models.Appointment, error) {
	if err := authorize(session, models.OpPrescriptionRead); err != nil {
		return nil, err
	}
	approved, err := s.backend.DoctorAppointments(ctx, session.Email, models.StatusApproved)
	if err != nil {
		return nil, exceptions.Lookup("doctor_appointments", err)
	}
	now := s.now()
	due := make([]models.Appointment, 0, len(approved))
	for _, appt := range approved {
		if appt.DueForPrescription(now) {
			due = append(due, appt)
		}
	}
	return due, nil
}

func (s *PrescriptionService) GetAppointment(ctx context.Context, session models.SessionContext, appointmentID string) (*models.AppointmentDetail, error) {
	if err := authorize(session, models.OpPrescriptionRead); err != nil {
		return nil, err
	}
	appt, err := s.doctorAppointment(ctx, session, appointmentID, "get_appointment")
	if err != nil {
		return nil, err
	}
	return &models.AppointmentDetail{Appointment: appt, ReadOnly: appt.Status == models.StatusCompleted}, nil
}

func (s *PrescriptionService) doctorAppointment(ctx context.Context, session models.SessionContext, appointmentID, step string) (models.Appointment, error) {
	appointments, err := s.backend.DoctorAppointments(ctx, session.Email, "")
	if err != nil {
		return models.Appointment{}, exceptions.Lookup(step, err)
	}
	appt, ok := findAppointment(appointments, appointmentID)
	if !ok {
		return models.Appointment{}, exceptions.NotFound(step, "appointment not found")
	}
	if appt.DoctorEmail != "" && appt.DoctorEmail != session.Email {
		return models.Appointment{}, exceptions.Forbidden(step, "appointment belongs to another doctor")
	}
	return appt, nil
}

// Save stores the prescription of a due appointment and with it completes
// the appointment. On failure the appointment stays approved and Save may be retried.
func (s *PrescriptionService) Save(ctx context.Context, session models.SessionContext, draft models.PrescriptionDraft, reports []ReportUpload) (*models.AppointmentDetail, error) {
	if err := authorize(session, models.OpPrescriptionWrite); err != nil {
		return nil, err
	}
	if err := utils.ValidatePrescriptionDraft(draft); err != nil {
		return nil, exceptions.Validation(err)
	}

	var detail *models.AppointmentDetail
	err := s.cache.WithLock(ctx, prescriptionLockPrefix+draft.AppointmentID, uuid.NewString(), prescriptionLockTTL, func() error {
		var err error
		detail, err = s.save(ctx, session, draft, reports)
		return err
	})
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, exceptions.Conflict("save_prescription", "a prescription for this appointment is already being saved")
	}
	return detail, err
}

func (s *PrescriptionService) save(ctx context.Context, session models.SessionContext, draft models.PrescriptionDraft, reports []ReportUpload) (*models.AppointmentDetail, error) {
	appt, err := s.doctorAppointment(ctx, session, draft.AppointmentID, "save_prescription")
	if err != nil {
		return nil, err
	}
	if appt.Status == models.StatusCompleted {
		return nil, exceptions.Conflict("save_prescription", "a prescription already exists for this appointment")
	}
	if !appt.Status.CanTransition(models.StatusCompleted, session.Role) {
		return nil, exceptions.Conflict("save_prescription", fmt.Sprintf("appointment is %s, not approved", appt.Status))
	}
	if !appt.DueForPrescription(s.now()) {
		return nil, exceptions.Conflict("save_prescription", "appointment is not due yet")
	}

	files, err := s.upload(ctx, appt.ID, reports)
	if err != nil {
		return nil, exceptions.PrescriptionSave(appt.ID, err)
	}

	prescription := models.NewPrescription(appt, draft, files)
	if err := s.backend.SavePrescription(ctx, prescription); err != nil {
		s.logger.Warn("Prescription save failed", zap.String("appointment_id", appt.ID), zap.Error(err))
		return nil, exceptions.PrescriptionSave(appt.ID, err)
	}

	s.logger.Info("Prescription saved",
		zap.String("appointment_id", appt.ID),
		zap.Int("medicines", len(prescription.Medicines)),
		zap.Int("reports", len(files)),
	)
	s.notifier.PrescriptionSaved(ctx, prescription)

	appt.Status = models.StatusCompleted
	return &models.AppointmentDetail{Appointment: appt, ReadOnly: true}, nil
}

func (s *PrescriptionService) upload(ctx context.Context, appointmentID string, reports []ReportUpload) ([]models.ReportFile, error) {
	if len(reports) == 0 {
		return nil, nil
	}
	if s.reports == nil {
		return nil, errReportStorageDisabled
	}
	files := make([]models.ReportFile, 0, len(reports))
	for _, r := range reports {
		file, err := s.reports.Upload(ctx, appointmentID, r.Name, r.ContentType, r.Size, r.Body)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}
