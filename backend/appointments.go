package backend

import (
	"CareDesk/models"
	"context"
	"errors"
	"net/http"
	"net/url"
)

type party struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// appointmentRecord is the backend's appointment document.
type appointmentRecord struct {
	ID              string `json:"id"`
	MongoID         string `json:"_id"`
	HospitalName    string `json:"hospitalName"`
	Department      string `json:"department"`
	AppointmentDate string `json:"appointmentDate"`
	RequestedTime   string `json:"requestedTime"`
	AcceptedDate    string `json:"acceptedDate"`
	AcceptedTime    string `json:"acceptedTime"`
	Symptoms        string `json:"symptoms"`
	PaymentID       string `json:"paymentId"`
	Status          string `json:"status"`
	Patient         party  `json:"patient"`
	Doctor          party  `json:"doctor"`
}

// backendStatus maps the backend's status vocabulary onto the lifecycle.
var backendStatus = map[string]models.AppointmentStatus{
	"pending":          models.StatusPendingApproval,
	"pending_approval": models.StatusPendingApproval,
	"pending_payment":  models.StatusPendingPayment,
	"approved":         models.StatusApproved,
	"rejected":         models.StatusRejected,
	"completed":        models.StatusCompleted,
}

func (r appointmentRecord) toModel() models.Appointment {
	id := r.ID
	if id == "" {
		id = r.MongoID
	}
	return models.Appointment{
		ID:            id,
		PatientName:   r.Patient.Name,
		PatientEmail:  r.Patient.Email,
		DoctorName:    r.Doctor.Name,
		DoctorEmail:   r.Doctor.Email,
		HospitalName:  r.HospitalName,
		Department:    r.Department,
		RequestedDate: r.AppointmentDate,
		RequestedTime: r.RequestedTime,
		ConfirmedDate: r.AcceptedDate,
		ConfirmedTime: r.AcceptedTime,
		Symptoms:      r.Symptoms,
		PaymentID:     r.PaymentID,
		Status:        backendStatus[r.Status],
	}
}

func toModels(records []appointmentRecord) []models.Appointment {
	appointments := make([]models.Appointment, 0, len(records))
	for _, r := range records {
		appointments = append(appointments, r.toModel())
	}
	return appointments
}

// BookAppointmentRequest is the payload that turns a verified payment into an appointment.
type BookAppointmentRequest struct {
	PatientName     string `json:"patientName"`
	PatientEmail    string `json:"patientEmail"`
	Department      string `json:"department"`
	AppointmentDate string `json:"appointmentDate"`
	RequestedTime   string `json:"requestedTime"`
	Symptoms        string `json:"symptoms"`
	DoctorEmail     string `json:"doctorEmail"`
	DoctorName      string `json:"doctorName"`
	HospitalName    string `json:"hospitalName"`
	PaymentID       string `json:"paymentId"`
}

// NewBookAppointmentRequest builds the backend payload from a booking request.
func NewBookAppointmentRequest(req models.BookingRequest, paymentID string) BookAppointmentRequest {
	return BookAppointmentRequest{
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		Department:      req.Department,
		AppointmentDate: req.Date,
		RequestedTime:   req.Time,
		Symptoms:        req.Symptoms,
		DoctorEmail:     req.DoctorEmail,
		DoctorName:      req.DoctorName,
		HospitalName:    req.HospitalName,
		PaymentID:       paymentID,
	}
}

// BookAppointment submits an appointment and returns its id. The payment id
// is sent as the idempotency key so a retried submission books at most once.
func (c *Client) BookAppointment(ctx context.Context, req BookAppointmentRequest) (string, error) {
	var resp struct {
		AppointmentID string             `json:"appointmentId"`
		Appointment   *appointmentRecord `json:"appointment"`
	}
	opts := requestOptions{body: req, idempotencyKey: req.PaymentID}
	if err := c.do(ctx, http.MethodPost, "/appointments/book/", opts, &resp); err != nil {
		return "", err
	}
	if resp.AppointmentID != "" {
		return resp.AppointmentID, nil
	}
	if resp.Appointment != nil {
		if id := resp.Appointment.toModel().ID; id != "" {
			return id, nil
		}
	}
	return "", errors.New("backend returned no appointment id")
}

// ApprovalPayload is sent to resolve a pending appointment. Schedule keys are
// present only for overrides; a rejection never carries them.
type ApprovalPayload struct {
	AppointmentID   string `json:"appointmentId"`
	PatientEmail    string `json:"patientEmail"`
	DoctorEmail     string `json:"doctorEmail"`
	Department      string `json:"department"`
	Status          string `json:"status"`
	DateSlot        string `json:"dateSlot,omitempty"`
	TimeSlot        string `json:"timeSlot,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

func (c *Client) ApproveAppointment(ctx context.Context, payload ApprovalPayload) error {
	return c.do(ctx, http.MethodPost, "/appointments/approve/", requestOptions{body: payload}, nil)
}

// PendingAppointments lists appointments awaiting approval at a hospital.
func (c *Client) PendingAppointments(ctx context.Context, hospitalName string) ([]models.Appointment, error) {
	var resp struct {
		Appointments []appointmentRecord `json:"appointments"`
	}
	opts := requestOptions{query: url.Values{"hospitalName": {hospitalName}}}
	if err := c.do(ctx, http.MethodGet, "/appointments/pending/", opts, &resp); err != nil {
		return nil, err
	}
	return toModels(resp.Appointments), nil
}

// DoctorAppointments lists a doctor's appointments, optionally by status.
func (c *Client) DoctorAppointments(ctx context.Context, doctorEmail string, status models.AppointmentStatus) ([]models.Appointment, error) {
	var resp struct {
		Appointments []appointmentRecord `json:"appointments"`
	}
	query := url.Values{"doctorEmail": {doctorEmail}}
	if status != "" {
		query.Set("status", string(status))
	}
	if err := c.do(ctx, http.MethodGet, "/appointments/my/", requestOptions{query: query}, &resp); err != nil {
		return nil, err
	}
	return toModels(resp.Appointments), nil
}

// SavePrescription stores a prescription; the backend completes the appointment.
func (c *Client) SavePrescription(ctx context.Context, prescription models.Prescription) error {
	opts := requestOptions{body: prescription, idempotencyKey: "prescription-" + prescription.AppointmentID}
	return c.do(ctx, http.MethodPost, "/appointments/save-prescription/", opts, nil)
}
