package models

import (
	"time"
)

// PaymentState is the payment orchestrator state of a booking attempt.
type PaymentState string

const (
	PaymentIdle            PaymentState = "idle"
	PaymentOrderCreated    PaymentState = "order_created"
	PaymentAwaitingGateway PaymentState = "awaiting_gateway"
	PaymentVerifying       PaymentState = "verifying"
	PaymentVerified        PaymentState = "verified"
	PaymentFailed          PaymentState = "failed"
	PaymentAbandoned       PaymentState = "abandoned"
)

// OrderableStates are the states from which a new payment order may be created.
var OrderableStates = []PaymentState{PaymentIdle, PaymentFailed, PaymentAbandoned}

// InFlightStates hold an order that the gateway has not resolved yet.
var InFlightStates = []PaymentState{PaymentOrderCreated, PaymentAwaitingGateway}

type BookingState string

const (
	BookingNotSubmitted     BookingState = "not_submitted"
	BookingSubmitted        BookingState = "submitted"
	BookingSubmissionFailed BookingState = "submission_failed"
)

// RecoveryAction tells the UI what it can offer for an attempt.
type RecoveryAction string

const (
	RecoveryCreateOrder  RecoveryAction = "create_order"
	RecoveryAwaitGateway RecoveryAction = "await_gateway"
	RecoveryRetryBooking RecoveryAction = "retry_booking"
	// RecoveryRetryVerification re-checks a payment whose verification
	// never completed.
	RecoveryRetryVerification RecoveryAction = "retry_verification"
	RecoveryNone              RecoveryAction = "none"
)

// BookingAttempt is one persisted booking workflow, from a validated request
// to a submitted appointment.
type BookingAttempt struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PatientEmail string `gorm:"type:varchar(255);not null;index:idx_attempt_slot" json:"patientEmail"`
	PatientName  string `gorm:"type:varchar(255);not null" json:"patientName"`
	HospitalName string `gorm:"type:varchar(255);not null;index" json:"hospitalName"`
	DoctorEmail  string `gorm:"type:varchar(255);not null;index:idx_attempt_slot" json:"doctorEmail"`
	DoctorName   string `gorm:"type:varchar(255);not null" json:"doctorName"`
	Department   string `gorm:"type:varchar(255);not null" json:"department"`
	Date         string `gorm:"type:varchar(10);not null;index:idx_attempt_slot" json:"date"`
	Time         string `gorm:"type:varchar(32);not null;index:idx_attempt_slot" json:"time"`
	Symptoms     string `gorm:"type:text" json:"symptoms"`

	PaymentState   PaymentState `gorm:"type:varchar(32);not null;index" json:"paymentState"`
	StateChangedAt time.Time    `gorm:"not null;index" json:"stateChangedAt"`
	OrderID        string       `gorm:"type:varchar(64);index" json:"orderId,omitempty"`
	PaymentID      string       `gorm:"type:varchar(64);index" json:"paymentId,omitempty"`
	AppointmentID  string       `gorm:"type:varchar(64)" json:"appointmentId,omitempty"`
	BookingState   BookingState `gorm:"type:varchar(32);not null" json:"bookingState"`
	LastError      string       `gorm:"type:text" json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBookingAttempt snapshots req into an idle attempt.
func NewBookingAttempt(id string, req BookingRequest, now time.Time) *BookingAttempt {
	return &BookingAttempt{
		ID:             id,
		PatientEmail:   req.PatientEmail,
		PatientName:    req.PatientName,
		HospitalName:   req.HospitalName,
		DoctorEmail:    req.DoctorEmail,
		DoctorName:     req.DoctorName,
		Department:     req.Department,
		Date:           req.Date,
		Time:           req.Time,
		Symptoms:       req.Symptoms,
		PaymentState:   PaymentIdle,
		StateChangedAt: now,
		BookingState:   BookingNotSubmitted,
	}
}

// Request returns the immutable booking request the attempt was created from.
func (a *BookingAttempt) Request() BookingRequest {
	return BookingRequest{
		PatientEmail: a.PatientEmail,
		PatientName:  a.PatientName,
		DoctorEmail:  a.DoctorEmail,
		DoctorName:   a.DoctorName,
		Department:   a.Department,
		Date:         a.Date,
		Time:         a.Time,
		Symptoms:     a.Symptoms,
		HospitalName: a.HospitalName,
	}
}

// Status is the appointment status the attempt currently stands for.
func (a *BookingAttempt) Status() AppointmentStatus {
	if a.BookingState == BookingSubmitted {
		return StatusPendingApproval
	}
	return StatusPendingPayment
}

func (a *BookingAttempt) Recovery() RecoveryAction {
	if a.BookingState == BookingSubmitted {
		return RecoveryNone
	}
	switch a.PaymentState {
	case PaymentIdle, PaymentFailed, PaymentAbandoned:
		return RecoveryCreateOrder
	case PaymentOrderCreated, PaymentAwaitingGateway:
		return RecoveryAwaitGateway
	case PaymentVerifying:
		return RecoveryRetryVerification
	case PaymentVerified:
		return RecoveryRetryBooking
	default:
		return RecoveryNone
	}
}

// View is the attempt as shown to the patient.
func (a *BookingAttempt) View() BookingAttemptView {
	return BookingAttemptView{BookingAttempt: *a, Status: a.Status(), Recovery: a.Recovery()}
}

type BookingAttemptView struct {
	BookingAttempt
	Status   AppointmentStatus `json:"status"`
	Recovery RecoveryAction    `json:"recovery"`
}

// PaymentTransaction is the local ledger entry of one payment order.
type PaymentTransaction struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	OrderID      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderId"`
	PaymentID    string     `gorm:"type:varchar(64);index" json:"paymentId,omitempty"`
	AttemptID    string     `gorm:"type:varchar(36);not null;index" json:"attemptId"`
	Amount       float64    `gorm:"not null" json:"amount"`
	Currency     string     `gorm:"type:varchar(8);not null" json:"currency"`
	PayerEmail   string     `gorm:"type:varchar(255);not null" json:"payerEmail"`
	HospitalName string     `gorm:"type:varchar(255);not null" json:"hospitalName"`
	Verified     bool       `gorm:"not null;default:false" json:"verified"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// BookingInput is what a patient picks before paying.
type BookingInput struct {
	DepartmentID string `json:"departmentId"`
	DoctorEmail  string `json:"doctorEmail"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Symptoms     string `json:"symptoms"`
}

// PaymentConfirmation is the gateway success callback.
type PaymentConfirmation struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// PaymentFailure is the gateway error callback.
type PaymentFailure struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}
