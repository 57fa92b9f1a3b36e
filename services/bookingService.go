package services

import (
	"CareDesk/exceptions"
	"CareDesk/models"
	"CareDesk/repositories"
	"CareDesk/utils"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const duplicateBookingMessage = "You already have an appointment with this doctor at this time"

// BuildRequest validates a patient's selection and assembles the booking
// request. doctor is nil when no doctor of the department matched.
func BuildRequest(session models.SessionContext, input models.BookingInput, department string, doctor *models.Doctor, now time.Time) (models.BookingRequest, error) {
	if err := utils.ValidateBookingInput(input, doctor, now); err != nil {
		return models.BookingRequest{}, exceptions.Validation(err)
	}
	if department == "" {
		return models.BookingRequest{}, exceptions.Invalid("departmentId", "unknown department")
	}

	symptoms := strings.TrimSpace(input.Symptoms)
	if symptoms == "" {
		symptoms = models.NoSymptomsPlaceholder
	}
	return models.BookingRequest{
		PatientEmail: session.Email,
		PatientName:  session.Name,
		DoctorEmail:  doctor.Email,
		DoctorName:   doctor.Name,
		Department:   department,
		Date:         input.Date,
		Time:         input.Time,
		Symptoms:     symptoms,
		HospitalName: session.HospitalName,
	}, nil
}

// BookingService turns a patient's selection into a persisted booking attempt.
type BookingService struct {
	repo      *repositories.BookingRepository
	directory *DirectoryService
	logger    *zap.Logger
	now       func() time.Time
}

func NewBookingService(repo *repositories.BookingRepository, directory *DirectoryService, logger *zap.Logger) *BookingService {
	return &BookingService{repo: repo, directory: directory, logger: logger, now: time.Now}
}

// StartBooking validates the selection and returns an attempt ready for a
// payment order. An open attempt for the same slot is reused; a paid or
// booked one is a conflict.
func (s *BookingService) StartBooking(ctx context.Context, session models.SessionContext, input models.BookingInput) (*models.BookingAttemptView, error) {
	if err := authorize(session, models.OpBookingCreate); err != nil {
		return nil, err
	}
	input.DoctorEmail = strings.TrimSpace(input.DoctorEmail)

	department, doctor, err := s.directory.selection(ctx, session.HospitalName, input.DepartmentID, input.DoctorEmail)
	if err != nil {
		return nil, err
	}
	req, err := BuildRequest(session, input, department, doctor, s.now())
	if err != nil {
		if (input.DepartmentID != "" && department == "") || (input.DoctorEmail != "" && doctor == nil) {
			// The cached directory may predate the patient's selection.
			s.directory.invalidate(ctx, session.HospitalName)
		}
		return nil, err
	}

	existing, err := s.repo.FindForSlot(ctx, req)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if existing[i].Recovery() != models.RecoveryCreateOrder {
			conflict := exceptions.Conflict("create_booking", duplicateBookingMessage)
			conflict.AttemptID = existing[i].ID
			return nil, conflict
		}
	}
	if len(existing) > 0 {
		view := existing[0].View()
		return &view, nil
	}

	attempt := models.NewBookingAttempt(uuid.NewString(), req, s.now())
	if err := s.repo.Create(ctx, attempt); err != nil {
		return nil, err
	}
	s.logger.Info("Booking attempt created",
		zap.String("attempt_id", attempt.ID),
		zap.String("doctor_email", req.DoctorEmail),
		zap.String("date", req.Date),
		zap.String("time", req.Time),
	)
	view := attempt.View()
	return &view, nil
}

// GetAttempt returns the patient's attempt with its status and recovery action.
func (s *BookingService) GetAttempt(ctx context.Context, session models.SessionContext, attemptID string) (*models.BookingAttemptView, error) {
	if err := authorize(session, models.OpBookingRead); err != nil {
		return nil, err
	}
	attempt, err := loadAttempt(ctx, s.repo, session, attemptID, "get_booking")
	if err != nil {
		return nil, err
	}
	view := attempt.View()
	return &view, nil
}

func loadAttempt(ctx context.Context, repo *repositories.BookingRepository, session models.SessionContext, attemptID, step string) (*models.BookingAttempt, error) {
	attempt, err := repo.GetByID(ctx, attemptID)
	if errors.Is(err, repositories.ErrAttemptNotFound) {
		return nil, exceptions.NotFound(step, "booking not found")
	}
	if err != nil {
		return nil, err
	}
	if err := ownAttempt(session, attempt, step); err != nil {
		return nil, err
	}
	return attempt, nil
}
