package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of every appointment date.
const DateLayout = "2006-01-02"

// NoSymptomsPlaceholder replaces blank symptoms on a booking request.
const NoSymptomsPlaceholder = "No symptoms provided"

type AppointmentStatus string

const (
	StatusPendingPayment  AppointmentStatus = "pending_payment"
	StatusPendingApproval AppointmentStatus = "pending_approval"
	StatusApproved        AppointmentStatus = "approved"
	StatusRejected        AppointmentStatus = "rejected"
	StatusCompleted       AppointmentStatus = "completed"
)

// transition lists, for each status, the statuses it may move to and the
// only role allowed to make that move.
var transitions = map[AppointmentStatus]map[AppointmentStatus]Role{
	StatusPendingPayment: {
		StatusPendingApproval: RolePatient,
	},
	StatusPendingApproval: {
		StatusApproved: RoleAdmin,
		StatusRejected: RoleAdmin,
	},
	StatusApproved: {
		StatusCompleted: RoleDoctor,
	},
}

// CanTransition reports whether role may move an appointment from s to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus, role Role) bool {
	owner, ok := transitions[s][next]
	return ok && owner == role
}

// Terminal reports whether no further transition exists from s.
func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Appointment is the lifecycle view of an appointment record held by the backend.
type Appointment struct {
	ID            string            `json:"id"`
	PatientName   string            `json:"patientName"`
	PatientEmail  string            `json:"patientEmail"`
	DoctorName    string            `json:"doctorName"`
	DoctorEmail   string            `json:"doctorEmail"`
	HospitalName  string            `json:"hospitalName"`
	Department    string            `json:"department"`
	RequestedDate string            `json:"requestedDate"`
	RequestedTime string            `json:"requestedTime"`
	ConfirmedDate string            `json:"confirmedDate,omitempty"`
	ConfirmedTime string            `json:"confirmedTime,omitempty"`
	Symptoms      string            `json:"symptoms"`
	PaymentID     string            `json:"paymentId,omitempty"`
	Status        AppointmentStatus `json:"status"`
}

// ScheduledDate is the confirmed date, or the requested one when the admin kept it.
func (a Appointment) ScheduledDate() string {
	if a.ConfirmedDate != "" {
		return a.ConfirmedDate
	}
	return a.RequestedDate
}

func (a Appointment) ScheduledTime() string {
	if a.ConfirmedTime != "" {
		return a.ConfirmedTime
	}
	return a.RequestedTime
}

// DueForPrescription reports whether an approved appointment's date is today or earlier.
func (a Appointment) DueForPrescription(now time.Time) bool {
	if a.Status != StatusApproved {
		return false
	}
	date, err := ParseDate(a.ScheduledDate(), now.Location())
	if err != nil {
		return false
	}
	return !date.After(StartOfDay(now))
}

// BookingRequest is a validated, immutable request to book an appointment.
type BookingRequest struct {
	PatientEmail string `json:"patientEmail"`
	PatientName  string `json:"patientName"`
	DoctorEmail  string `json:"doctorEmail"`
	DoctorName   string `json:"doctorName"`
	Department   string `json:"department"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Symptoms     string `json:"symptoms"`
	HospitalName string `json:"hospitalName"`
}

// ScheduleChoice is either Accept (keep the patient's value) or Override with
// a validated value. The zero value is Accept.
type ScheduleChoice struct {
	value string
}

func Accept() ScheduleChoice {
	return ScheduleChoice{}
}

// Overridden returns the override value and true, or "" and false for Accept.
func (c ScheduleChoice) Overridden() (string, bool) {
	return c.value, c.value != ""
}

var (
	ErrOverrideDateRequired = errors.New("override date is required")
	ErrOverrideDatePast     = errors.New("override date cannot be earlier than today")
	ErrOverrideDateWindow   = errors.New("override date is outside the reschedule window")
	ErrOverrideTimeRequired = errors.New("override time is required")
)

// OverrideDate builds a date override. The new date must not be earlier than
// today and, when windowDays > 0, must fall within windowDays after requested.
func OverrideDate(value, requested string, now time.Time, windowDays int) (ScheduleChoice, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ScheduleChoice{}, ErrOverrideDateRequired
	}
	date, err := ParseDate(value, now.Location())
	if err != nil {
		return ScheduleChoice{}, err
	}
	if date.Before(StartOfDay(now)) {
		return ScheduleChoice{}, ErrOverrideDatePast
	}
	if windowDays > 0 && requested != "" {
		requestedDate, err := ParseDate(requested, now.Location())
		if err == nil && date.After(requestedDate.AddDate(0, 0, windowDays)) {
			return ScheduleChoice{}, fmt.Errorf("%w of %d days", ErrOverrideDateWindow, windowDays)
		}
	}
	return ScheduleChoice{value: value}, nil
}

// OverrideTime builds a time override from a non-empty slot value.
func OverrideTime(value string) (ScheduleChoice, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ScheduleChoice{}, ErrOverrideTimeRequired
	}
	return ScheduleChoice{value: value}, nil
}

// ApprovalDecision is implemented by Approve and Reject only.
type ApprovalDecision interface {
	approvalDecision()
	Outcome() AppointmentStatus
}

type Approve struct {
	Date ScheduleChoice
	Time ScheduleChoice
}

type Reject struct {
	Reason string
}

func (Approve) approvalDecision() {}
func (Reject) approvalDecision()  {}

func (Approve) Outcome() AppointmentStatus { return StatusApproved }
func (Reject) Outcome() AppointmentStatus  { return StatusRejected }

// ParseDate parses a YYYY-MM-DD date in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	date, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return date, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
