package services

import (
	"CareDesk/backend"
	"CareDesk/cache"
	"CareDesk/exceptions"
	"CareDesk/models"
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pendingCachePrefix = "pending_appointments:"
	pendingCacheTTL    = 30 * time.Second
	approvalLockPrefix = "approval_lock:"
	approvalLockTTL    = 30 * time.Second
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"

	ModeAccept   = "accept"
	ModeOverride = "override"
)

var errNoLongerPending = errors.New("appointment is no longer pending")

type ApprovalBackend interface {
	PendingAppointments(ctx context.Context, hospitalName string) ([]models.Appointment, error)
	ApproveAppointment(ctx context.Context, payload backend.ApprovalPayload) error
}

// ScheduleInput is the wire form of a ScheduleChoice. An empty mode means accept.
type ScheduleInput struct {
	Mode  string `json:"mode"`
	Value string `json:"value"`
}

type ApprovalInput struct {
	Action string        `json:"action"`
	Date   ScheduleInput `json:"date"`
	Time   ScheduleInput `json:"time"`
	Reason string        `json:"reason"`
}

// ApprovalResult carries the resolved appointment and the re-fetched pending list.
type ApprovalResult struct {
	Appointment *models.Appointment  `json:"appointment,omitempty"`
	Pending     []models.Appointment `json:"pending"`
}

// BuildDecision turns an admin's input into a decision for appt. Overrides
// are validated here so an invalid value never reaches the backend.
func BuildDecision(input ApprovalInput, appt models.Appointment, now time.Time, windowDays int) (models.ApprovalDecision, error) {
	errs := validation.Errors{}
	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case ActionApprove:
		decision := models.Approve{}
		switch input.Date.Mode {
		case "", ModeAccept:
			decision.Date = models.Accept()
		case ModeOverride:
			choice, err := models.OverrideDate(input.Date.Value, appt.RequestedDate, now, windowDays)
			if err != nil {
				errs["date"] = err
			}
			decision.Date = choice
		default:
			errs["date"] = errors.New("mode must be accept or override")
		}
		switch input.Time.Mode {
		case "", ModeAccept:
			decision.Time = models.Accept()
		case ModeOverride:
			choice, err := models.OverrideTime(input.Time.Value)
			if err != nil {
				errs["time"] = err
			}
			decision.Time = choice
		default:
			errs["time"] = errors.New("mode must be accept or override")
		}
		if len(errs) > 0 {
			return nil, exceptions.Validation(errs)
		}
		return decision, nil

	case ActionReject:
		// Schedule choices left over from the form are dropped.
		return models.Reject{Reason: strings.TrimSpace(input.Reason)}, nil
	}
	return nil, exceptions.Invalid("action", "must be approve or reject")
}

// BuildApprovalPayload carries schedule keys only for overrides and never
// for a rejection.
func BuildApprovalPayload(appt models.Appointment, decision models.ApprovalDecision) backend.ApprovalPayload {
	payload := backend.ApprovalPayload{
		AppointmentID: appt.ID,
		PatientEmail:  appt.PatientEmail,
		DoctorEmail:   appt.DoctorEmail,
		Department:    appt.Department,
	}
	switch d := decision.(type) {
	case models.Approve:
		payload.Status = ActionApprove
		if date, ok := d.Date.Overridden(); ok {
			payload.DateSlot = date
		}
		if slot, ok := d.Time.Overridden(); ok {
			payload.TimeSlot = slot
		}
	case models.Reject:
		payload.Status = ActionReject
		payload.RejectionReason = d.Reason
	}
	return payload
}

// resolved is appt as it stands after the backend accepted decision.
func resolved(appt models.Appointment, decision models.ApprovalDecision) models.Appointment {
	appt.Status = decision.Outcome()
	if d, ok := decision.(models.Approve); ok {
		appt.ConfirmedDate = appt.RequestedDate
		appt.ConfirmedTime = appt.RequestedTime
		if date, ok := d.Date.Overridden(); ok {
			appt.ConfirmedDate = date
		}
		if slot, ok := d.Time.Overridden(); ok {
			appt.ConfirmedTime = slot
		}
	}
	return appt
}

// ApprovalService lets a hospital admin approve or reject pending appointments.
type ApprovalService struct {
	backend    ApprovalBackend
	cache      *cache.Cache
	notifier   *NotificationService
	windowDays int
	logger     *zap.Logger
	now        func() time.Time
}

func NewApprovalService(backend ApprovalBackend, cache *cache.Cache, notifier *NotificationService, windowDays int, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{
		backend:    backend,
		cache:      cache,
		notifier:   notifier,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ApprovalService) ListPending(ctx context.Context, session models.SessionContext) ([]models.Appointment, error) {
	if err := authorize(session, models.OpApprovalRead); err != nil {
		return nil, err
	}
	key := pendingCachePrefix + session.HospitalName
	var pending []models.Appointment
	found, err := s.cache.GetJSON(ctx, key, &pending)
	if err != nil {
		s.logger.Warn("Pending list cache read failed", zap.String("key", key), zap.Error(err))
	}
	if found {
		return pending, nil
	}
	return s.fetchPending(ctx, session.HospitalName)
}

func (s *ApprovalService) fetchPending(ctx context.Context, hospital string) ([]models.Appointment, error) {
	pending, err := s.backend.PendingAppointments(ctx, hospital)
	if err != nil {
		return nil, exceptions.Lookup("pending_appointments", err)
	}
	if err := s.cache.SetJSON(ctx, pendingCachePrefix+hospital, pending, pendingCacheTTL); err != nil {
		s.logger.Warn("Pending list cache write failed", zap.String("hospital", hospital), zap.Error(err))
	}
	return pending, nil
}

func (s *ApprovalService) invalidate(ctx context.Context, hospital string) {
	if err := s.cache.Delete(ctx, pendingCachePrefix+hospital); err != nil {
		s.logger.Warn("Pending list cache invalidation failed", zap.String("hospital", hospital), zap.Error(err))
	}
}

// refresh drops the cached pending list and fetches it again.
func (s *ApprovalService) refresh(ctx context.Context, hospital string) ([]models.Appointment, error) {
	s.invalidate(ctx, hospital)
	return s.fetchPending(ctx, hospital)
}

// Resolve approves or rejects one pending appointment. The returned result
// always carries the pending list as fetched after the action, also when the
// action failed.
func (s *ApprovalService) Resolve(ctx context.Context, session models.SessionContext, appointmentID string, input ApprovalInput) (*ApprovalResult, error) {
	if err := authorize(session, models.OpApprovalWrite); err != nil {
		return nil, err
	}

	var result *ApprovalResult
	err := s.cache.WithLock(ctx, approvalLockPrefix+appointmentID, uuid.NewString(), approvalLockTTL, func() error {
		var err error
		result, err = s.resolve(ctx, session, appointmentID, input)
		return err
	})
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, exceptions.Conflict("approve_appointment", "another action on this appointment is in progress")
	}
	return result, err
}

func (s *ApprovalService) resolve(ctx context.Context, session models.SessionContext, appointmentID string, input ApprovalInput) (*ApprovalResult, error) {
	pending, err := s.refresh(ctx, session.HospitalName)
	if err != nil {
		return nil, err
	}
	appt, ok := findAppointment(pending, appointmentID)
	if !ok {
		return &ApprovalResult{Pending: pending}, exceptions.ApprovalAction(appointmentID, true, errNoLongerPending)
	}

	decision, err := BuildDecision(input, appt, s.now(), s.windowDays)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransition(decision.Outcome(), session.Role) {
		return &ApprovalResult{Pending: pending}, exceptions.ApprovalAction(appointmentID, true, errNoLongerPending)
	}

	actionErr := s.backend.ApproveAppointment(ctx, BuildApprovalPayload(appt, decision))

	refreshed, err := s.refresh(ctx, session.HospitalName)
	if err != nil {
		s.logger.Warn("Failed to refresh pending list", zap.String("appointment_id", appointmentID), zap.Error(err))
		refreshed = removeAppointment(pending, appointmentID)
	}
	result := &ApprovalResult{Pending: refreshed}

	if actionErr != nil {
		_, stillPending := findAppointment(refreshed, appointmentID)
		s.logger.Warn("Appointment action failed",
			zap.String("appointment_id", appointmentID),
			zap.Bool("stale", !stillPending),
			zap.Error(actionErr),
		)
		return result, exceptions.ApprovalAction(appointmentID, !stillPending, actionErr)
	}

	done := resolved(appt, decision)
	result.Appointment = &done
	s.logger.Info("Appointment resolved",
		zap.String("appointment_id", appointmentID),
		zap.String("status", string(done.Status)),
	)
	reason := ""
	if r, ok := decision.(models.Reject); ok {
		reason = r.Reason
	}
	s.notifier.AppointmentResolved(ctx, done, reason)
	return result, nil
}

func findAppointment(appointments []models.Appointment, id string) (models.Appointment, bool) {
	for _, a := range appointments {
		if a.ID == id {
			return a, true
		}
	}
	return models.Appointment{}, false
}

func removeAppointment(appointments []models.Appointment, id string) []models.Appointment {
	kept := make([]models.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	return kept
}
