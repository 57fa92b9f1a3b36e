package exceptions

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind classifies a failure so callers can branch on it with errors.Is.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindLookup              Kind = "lookup"
	KindPaymentOrder        Kind = "payment_order"
	KindPaymentAbandoned    Kind = "payment_abandoned"
	KindPaymentVerification Kind = "payment_verification"
	KindBookingSubmission   Kind = "booking_submission"
	KindApprovalAction      Kind = "approval_action"
	KindPrescriptionSave    Kind = "prescription_save"
	KindStockAction         Kind = "stock_action"
	KindConflict            Kind = "conflict"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
)

// Error is a failure of one named step of the appointment workflow.
type Error struct {
	Kind     Kind
	Step     string
	Status   int
	Message  string
	Recovery string

	// Fields holds per-field reasons of a validation failure.
	Fields map[string]string

	PaymentID     string
	AttemptID     string
	AppointmentID string
	Stale         bool

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Step, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrLookup              = &Error{Kind: KindLookup}
	ErrPaymentOrder        = &Error{Kind: KindPaymentOrder}
	ErrPaymentAbandoned    = &Error{Kind: KindPaymentAbandoned}
	ErrPaymentVerification = &Error{Kind: KindPaymentVerification}
	ErrBookingSubmission   = &Error{Kind: KindBookingSubmission}
	ErrApprovalAction      = &Error{Kind: KindApprovalAction}
	ErrPrescriptionSave    = &Error{Kind: KindPrescriptionSave}
	ErrStockAction         = &Error{Kind: KindStockAction}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrNotFound            = &Error{Kind: KindNotFound}
)

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Validation converts ozzo-validation errors into a field map. Any other
// error becomes a single "request" field.
func Validation(err error) *Error {
	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		flatten("", verrs, fields)
	} else if err != nil {
		fields["request"] = err.Error()
	}
	return &Error{
		Kind:     KindValidation,
		Step:     "validate",
		Status:   http.StatusUnprocessableEntity,
		Message:  "invalid request",
		Recovery: "fix the listed fields",
		Fields:   fields,
		Err:      err,
	}
}

// Invalid reports a single invalid field.
func Invalid(field, reason string) *Error {
	return Validation(validation.Errors{field: errors.New(reason)})
}

func flatten(prefix string, verrs validation.Errors, into map[string]string) {
	for key, err := range verrs {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			flatten(name, nested, into)
			continue
		}
		into[name] = err.Error()
	}
}

// FieldNames returns the invalid field names in order.
func (e *Error) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(step string, err error) *Error {
	return &Error{
		Kind:     KindLookup,
		Step:     step,
		Status:   http.StatusBadGateway,
		Message:  "lookup failed",
		Recovery: "retry the lookup",
		Err:      err,
	}
}

func PaymentOrder(attemptID string, err error) *Error {
	return &Error{
		Kind:      KindPaymentOrder,
		Step:      "create_order",
		Status:    http.StatusBadGateway,
		Message:   "payment order could not be created",
		Recovery:  "retry creating the order",
		AttemptID: attemptID,
		Err:       err,
	}
}

func PaymentAbandoned(attemptID string) *Error {
	return &Error{
		Kind:      KindPaymentAbandoned,
		Step:      "gateway",
		Status:    http.StatusConflict,
		Message:   "payment was abandoned before the gateway returned",
		Recovery:  "create a new order",
		AttemptID: attemptID,
	}
}

func PaymentVerification(attemptID, paymentID string, err error) *Error {
	return &Error{
		Kind:      KindPaymentVerification,
		Step:      "verify_payment",
		Status:    http.StatusPaymentRequired,
		Message:   "payment could not be verified",
		Recovery:  "contact support before retrying the payment",
		AttemptID: attemptID,
		PaymentID: paymentID,
		Err:       err,
	}
}

// PaymentVerificationPending is returned when the verification call did not
// produce an answer. The attempt stays in verifying and can be re-verified.
func PaymentVerificationPending(attemptID, paymentID string, err error) *Error {
	return &Error{
		Kind:      KindPaymentVerification,
		Step:      "verify_payment",
		Status:    http.StatusGatewayTimeout,
		Message:   "payment verification did not complete",
		Recovery:  "retry verification",
		AttemptID: attemptID,
		PaymentID: paymentID,
		Err:       err,
	}
}

// BookingSubmission is returned when a verified payment could not be turned
// into an appointment. The booking may be retried with the same payment.
func BookingSubmission(attemptID, paymentID string, err error) *Error {
	return &Error{
		Kind:      KindBookingSubmission,
		Step:      "book_appointment",
		Status:    http.StatusBadGateway,
		Message:   fmt.Sprintf("payment %s succeeded but the appointment was not booked", paymentID),
		Recovery:  "retry booking with the same payment",
		AttemptID: attemptID,
		PaymentID: paymentID,
		Err:       err,
	}
}

func ApprovalAction(appointmentID string, stale bool, err error) *Error {
	status := http.StatusBadGateway
	message := "appointment action failed"
	if stale {
		status = http.StatusConflict
		message = "appointment is no longer pending"
	}
	return &Error{
		Kind:          KindApprovalAction,
		Step:          "approve_appointment",
		Status:        status,
		Message:       message,
		Recovery:      "pending list was refreshed",
		AppointmentID: appointmentID,
		Stale:         stale,
		Err:           err,
	}
}

func PrescriptionSave(appointmentID string, err error) *Error {
	return &Error{
		Kind:          KindPrescriptionSave,
		Step:          "save_prescription",
		Status:        http.StatusBadGateway,
		Message:       "prescription could not be saved",
		Recovery:      "retry saving the prescription",
		AppointmentID: appointmentID,
		Err:           err,
	}
}

func StockAction(step string, err error) *Error {
	return &Error{
		Kind:     KindStockAction,
		Step:     step,
		Status:   http.StatusBadGateway,
		Message:  "stock action failed",
		Recovery: "retry",
		Err:      err,
	}
}

// Conflict is returned when another call for the same entity is in flight or
// the entity is not in a state that allows the call.
func Conflict(step, message string) *Error {
	return &Error{
		Kind:     KindConflict,
		Step:     step,
		Status:   http.StatusConflict,
		Message:  message,
		Recovery: "wait for the outstanding call to finish",
	}
}

func Forbidden(step, message string) *Error {
	return &Error{
		Kind:     KindForbidden,
		Step:     step,
		Status:   http.StatusForbidden,
		Message:  message,
		Recovery: "none",
	}
}

func NotFound(step, message string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Step:     step,
		Status:   http.StatusNotFound,
		Message:  message,
		Recovery: "none",
	}
}
