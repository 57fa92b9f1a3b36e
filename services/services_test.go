package services

import (
	"CareDesk/backend"
	"CareDesk/cache"
	"CareDesk/database"
	"CareDesk/messaging"
	"CareDesk/models"
	"CareDesk/repositories"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var now = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

const hospital = "City Hospital"

var (
	patient  = models.SessionContext{UserID: "u1", Email: "asha@example.com", Name: "Asha", Role: models.RolePatient, HospitalName: hospital}
	admin    = models.SessionContext{UserID: "u2", Email: "admin@example.com", Name: "Admin", Role: models.RoleAdmin, HospitalName: hospital}
	doctor   = models.SessionContext{UserID: "u3", Email: "rao@example.com", Name: "Rao", Role: models.RoleDoctor, HospitalName: hospital}
	supplier = models.SessionContext{UserID: "u4", Email: "sales@medsupply.example", Name: "MedSupply", Role: models.RoleSupplier}
)

// fakeBackend records every call and answers from its fields.
type fakeBackend struct {
	mu sync.Mutex

	departments     []models.Department
	doctors         map[string][]backend.DoctorRecord
	directoryErr    error
	departmentCalls int
	doctorCalls     int

	createErr    error
	orders       []backend.CreatePaymentRequest
	verifyErr    error
	verifyHook   func(ctx context.Context) error
	verifyCalls  int
	verified     []backend.VerifyPaymentRequest
	bookErr      error
	bookRequests []backend.BookAppointmentRequest

	pending    []models.Appointment
	pendingErr error
	approveErr error
	approvals  []backend.ApprovalPayload

	doctorAppointments []models.Appointment
	saveErr            error
	saved              []models.Prescription

	stock     []models.StockRequest
	stockErr  error
	requested []models.StockRequestInput
	fulfilled []models.FulfillmentInput
	completed []models.CompletionInput
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		departments: []models.Department{{ID: "d1", Name: "Cardiology"}, {ID: "d2", Name: "ENT"}},
		doctors: map[string][]backend.DoctorRecord{
			"d1": {
				{Name: "Rao", Email: "rao@example.com", DoctorSpecialization: "Cardiologist", TimeSlots: []string{"10:00-11:00", "11:00-12:00"}},
				{Name: "Mehta", Email: "mehta@example.com", Specialization: "Cardiologist"},
			},
		},
	}
}

func (f *fakeBackend) Departments(_ context.Context, _ string) ([]models.Department, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.departmentCalls++
	if f.directoryErr != nil {
		return nil, f.directoryErr
	}
	return f.departments, nil
}

func (f *fakeBackend) Doctors(_ context.Context, departmentID, _ string) ([]backend.DoctorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doctorCalls++
	if f.directoryErr != nil {
		return nil, f.directoryErr
	}
	return f.doctors[departmentID], nil
}

func (f *fakeBackend) CreatePayment(_ context.Context, req backend.CreatePaymentRequest) (*backend.CreatePaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.orders = append(f.orders, req)
	return &backend.CreatePaymentResponse{OrderID: fmt.Sprintf("order_%d", len(f.orders)), Key: "rzp_test_key"}, nil
}

func (f *fakeBackend) VerifyPayment(ctx context.Context, req backend.VerifyPaymentRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.verified = append(f.verified, req)
	if f.verifyHook != nil {
		return f.verifyHook(ctx)
	}
	return f.verifyErr
}

func (f *fakeBackend) BookAppointment(_ context.Context, req backend.BookAppointmentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookRequests = append(f.bookRequests, req)
	if f.bookErr != nil {
		return "", f.bookErr
	}
	return "appt-" + req.PaymentID, nil
}

func (f *fakeBackend) PendingAppointments(_ context.Context, _ string) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return append([]models.Appointment(nil), f.pending...), nil
}

func (f *fakeBackend) ApproveAppointment(_ context.Context, payload backend.ApprovalPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, payload)
	if f.approveErr != nil {
		return f.approveErr
	}
	f.pending = removeAppointment(f.pending, payload.AppointmentID)
	return nil
}

func (f *fakeBackend) DoctorAppointments(_ context.Context, doctorEmail string, status models.AppointmentStatus) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, a := range f.doctorAppointments {
		if a.DoctorEmail == doctorEmail && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBackend) SavePrescription(_ context.Context, p models.Prescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, p)
	for i := range f.doctorAppointments {
		if f.doctorAppointments[i].ID == p.AppointmentID {
			f.doctorAppointments[i].Status = models.StatusCompleted
		}
	}
	return nil
}

func (f *fakeBackend) RequestStock(_ context.Context, _ string, input models.StockRequestInput) error {
	f.requested = append(f.requested, input)
	return f.stockErr
}

func (f *fakeBackend) FulfillRequest(_ context.Context, input models.FulfillmentInput) error {
	f.fulfilled = append(f.fulfilled, input)
	return f.stockErr
}

func (f *fakeBackend) CompleteOrder(_ context.Context, _ string, input models.CompletionInput) error {
	f.completed = append(f.completed, input)
	return f.stockErr
}

func (f *fakeBackend) StockRequestsByHospital(_ context.Context, hospitalName string) ([]models.StockRequest, error) {
	var out []models.StockRequest
	for _, r := range f.stock {
		if r.HospitalName == hospitalName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBackend) StockRequestsBySupplier(_ context.Context, company string) ([]models.StockRequest, error) {
	var out []models.StockRequest
	for _, r := range f.stock {
		if r.Supplier == company {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []*gomail.Message
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msgs...)
	return nil
}

func (m *fakeMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var to []string
	for _, msg := range m.sent {
		to = append(to, msg.GetHeader("To")...)
	}
	return to
}

type fakePublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *fakePublisher) Publish(_ context.Context, event messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type fakeUploader struct {
	uploaded []string
	err      error
}

func (u *fakeUploader) Upload(_ context.Context, appointmentID, name, contentType string, size int64, body io.Reader) (models.ReportFile, error) {
	if u.err != nil {
		return models.ReportFile{}, u.err
	}
	data, _ := io.ReadAll(body)
	u.uploaded = append(u.uploaded, string(data))
	return models.ReportFile{Name: name, ObjectKey: appointmentID + "/" + name, ContentType: contentType, Size: size}, nil
}

// harness wires every service against the fakes, miniredis and in-memory sqlite.
type harness struct {
	backend   *fakeBackend
	redis     *miniredis.Miniredis
	cache     *cache.Cache
	repo      *repositories.BookingRepository
	mailer    *fakeMailer
	publisher *fakePublisher
	uploader  *fakeUploader

	directory    *DirectoryService
	bookings     *BookingService
	finalizer    *FinalizerService
	payments     *PaymentService
	approvals    *ApprovalService
	prescription *PrescriptionService
	stock        *StockService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c, err := cache.NewCache(client)
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	repo := repositories.NewBookingRepository(db)

	log := zap.NewNop()
	h := &harness{
		backend:   newFakeBackend(),
		redis:     mr,
		cache:     c,
		repo:      repo,
		mailer:    &fakeMailer{},
		publisher: &fakePublisher{},
		uploader:  &fakeUploader{},
	}
	notifier := NewNotificationService(h.mailer, "care@example.com", h.publisher, log)
	notifier.now = fixedNow

	h.directory = NewDirectoryService(h.backend, c, time.Minute, []string{"09:00-10:00", "10:00-11:00"}, log)
	h.bookings = NewBookingService(repo, h.directory, log)
	h.bookings.now = fixedNow
	h.finalizer = NewFinalizerService(repo, h.backend, c, notifier, log)
	h.payments = NewPaymentService(repo, h.backend, c, h.finalizer, PaymentConfig{
		Fee:            100,
		Currency:       "INR",
		GatewayTimeout: 15 * time.Minute,
	}, log)
	h.payments.now = fixedNow
	h.approvals = NewApprovalService(h.backend, c, notifier, 7, log)
	h.approvals.now = fixedNow
	h.prescription = NewPrescriptionService(h.backend, h.uploader, c, notifier, log)
	h.prescription.now = fixedNow
	h.stock = NewStockService(h.backend, log)
	return h
}

func validInput() models.BookingInput {
	return models.BookingInput{
		DepartmentID: "d1",
		DoctorEmail:  "rao@example.com",
		Date:         "2025-06-02",
		Time:         "10:00-11:00",
	}
}

// startBooking creates an attempt and its payment order.
func (h *harness) startBooking(t *testing.T) (*models.BookingAttemptView, string) {
	t.Helper()
	ctx := context.Background()
	view, err := h.bookings.StartBooking(ctx, patient, validInput())
	require.NoError(t, err)
	checkout, err := h.payments.CreateOrder(ctx, patient, view.ID)
	require.NoError(t, err)
	return view, checkout.OrderID
}
