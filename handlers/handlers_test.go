package handlers

import (
	"CareDesk/exceptions"
	"CareDesk/gateway"
	"CareDesk/middlewares"
	"CareDesk/models"
	"CareDesk/services"
	"CareDesk/utils"
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

var (
	patient = models.SessionContext{UserID: "p1", Email: "asha@example.com", Name: "Asha", Role: models.RolePatient, HospitalName: "City Hospital"}
	admin   = models.SessionContext{UserID: "a1", Email: "admin@example.com", Name: "Admin", Role: models.RoleAdmin, HospitalName: "City Hospital"}
	doctor  = models.SessionContext{UserID: "d1", Email: "rao@example.com", Name: "Dr Rao", Role: models.RoleDoctor, HospitalName: "City Hospital"}
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBookings struct {
	input models.BookingInput
	view  *models.BookingAttemptView
	err   error
}

func (f *fakeBookings) StartBooking(_ context.Context, _ models.SessionContext, input models.BookingInput) (*models.BookingAttemptView, error) {
	f.input = input
	return f.view, f.err
}

func (f *fakeBookings) GetAttempt(_ context.Context, _ models.SessionContext, _ string) (*models.BookingAttemptView, error) {
	return f.view, f.err
}

type fakePayments struct{}

func (fakePayments) CreateOrder(context.Context, models.SessionContext, string) (*gateway.CheckoutOptions, error) {
	return nil, errors.New("not used")
}

func (fakePayments) ConfirmPayment(context.Context, models.SessionContext, models.PaymentConfirmation) (*models.BookingAttemptView, error) {
	return nil, errors.New("not used")
}

func (fakePayments) ReportGatewayFailure(context.Context, models.SessionContext, models.PaymentFailure) (*models.BookingAttemptView, error) {
	return nil, errors.New("not used")
}

func (fakePayments) RetryVerification(_ context.Context, _ models.SessionContext, attemptID string) (*models.BookingAttemptView, error) {
	return nil, exceptions.PaymentVerificationPending(attemptID, "pay_1", errors.New("i/o timeout"))
}

type fakeFinalizer struct{}

func (fakeFinalizer) Finalize(context.Context, models.SessionContext, string) (*models.BookingAttemptView, error) {
	return nil, errors.New("boom")
}

type fakeApprovals struct {
	result *services.ApprovalResult
	err    error
}

func (f *fakeApprovals) ListPending(context.Context, models.SessionContext) ([]models.Appointment, error) {
	return f.result.Pending, nil
}

func (f *fakeApprovals) Resolve(context.Context, models.SessionContext, string, services.ApprovalInput) (*services.ApprovalResult, error) {
	return f.result, f.err
}

type fakePrescriptions struct {
	draft   models.PrescriptionDraft
	names   []string
	content []string
}

func (f *fakePrescriptions) ListDue(context.Context, models.SessionContext) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakePrescriptions) GetAppointment(context.Context, models.SessionContext, string) (*models.AppointmentDetail, error) {
	return nil, exceptions.NotFound("load_appointment", "appointment not found")
}

func (f *fakePrescriptions) Save(_ context.Context, _ models.SessionContext, draft models.PrescriptionDraft, reports []services.ReportUpload) (*models.AppointmentDetail, error) {
	f.draft = draft
	for _, r := range reports {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		f.names = append(f.names, r.Name)
		f.content = append(f.content, string(body))
	}
	return &models.AppointmentDetail{
		Appointment: models.Appointment{ID: draft.AppointmentID, Status: models.StatusCompleted},
		ReadOnly:    true,
	}, nil
}

type fakeStock struct {
	fulfilled models.FulfillmentInput
}

func (f *fakeStock) Request(context.Context, models.SessionContext, models.StockRequestInput) error {
	return nil
}

func (f *fakeStock) List(context.Context, models.SessionContext) ([]models.StockRequest, error) {
	return []models.StockRequest{}, nil
}

func (f *fakeStock) Fulfill(_ context.Context, _ models.SessionContext, input models.FulfillmentInput) error {
	f.fulfilled = input
	return nil
}

func (f *fakeStock) Complete(context.Context, models.SessionContext, models.CompletionInput) error {
	return nil
}

func authedEngine() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.SessionAuthMiddleware(testKey, zap.NewNop()))
	return r
}

func tokenFor(t *testing.T, s models.SessionContext) string {
	t.Helper()
	token, err := utils.GenerateSessionToken(testKey, s, time.Hour)
	require.NoError(t, err)
	return token
}

func perform(t *testing.T, r http.Handler, method, path string, s *models.SessionContext, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s != nil {
		req.Header.Set(middlewares.SessionTokenHeader, tokenFor(t, *s))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateBookingReturnsAttempt(t *testing.T) {
	bookings := &fakeBookings{view: &models.BookingAttemptView{
		BookingAttempt: models.BookingAttempt{ID: "att-1"},
		Status:         models.StatusPendingPayment,
		Recovery:       models.RecoveryCreateOrder,
	}}
	h := NewBookingHandler(bookings, fakePayments{}, fakeFinalizer{}, zap.NewNop())
	r := authedEngine()
	r.POST("/bookings", h.CreateBooking)

	payload := `{"departmentId":"d1","doctorEmail":"rao@example.com","date":"2025-06-02","time":"10:00-11:00"}`
	w := perform(t, r, http.MethodPost, "/bookings", &patient, bytes.NewBufferString(payload), "application/json")

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, "att-1", body["id"])
	assert.Equal(t, "rao@example.com", bookings.input.DoctorEmail)
}

func TestCreateBookingRejectsMalformedJSON(t *testing.T) {
	h := NewBookingHandler(&fakeBookings{}, fakePayments{}, fakeFinalizer{}, zap.NewNop())
	r := authedEngine()
	r.POST("/bookings", h.CreateBooking)

	w := perform(t, r, http.MethodPost, "/bookings", &patient, bytes.NewBufferString("{"), "application/json")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation", decode(t, w)["kind"])
}

func TestHandlerWithoutSessionIsUnauthorized(t *testing.T) {
	h := NewBookingHandler(&fakeBookings{}, fakePayments{}, fakeFinalizer{}, zap.NewNop())
	r := gin.New()
	r.GET("/bookings/:attempt_id", h.GetBooking)

	w := perform(t, r, http.MethodGet, "/bookings/att-1", nil, nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnclassifiedErrorIsInternal(t *testing.T) {
	h := NewBookingHandler(&fakeBookings{}, fakePayments{}, fakeFinalizer{}, zap.NewNop())
	r := authedEngine()
	r.POST("/bookings/:attempt_id/finalize", h.Finalize)

	w := perform(t, r, http.MethodPost, "/bookings/att-1/finalize", &patient, nil, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}

func TestRetryVerificationReportsPendingOutcome(t *testing.T) {
	h := NewBookingHandler(&fakeBookings{}, fakePayments{}, fakeFinalizer{}, zap.NewNop())
	r := authedEngine()
	r.POST("/bookings/:attempt_id/verify", h.RetryVerification)

	w := perform(t, r, http.MethodPost, "/bookings/att-1/verify", &patient, nil, "")

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	body := decode(t, w)
	assert.Equal(t, "retry verification", body["recovery"])
	assert.Equal(t, "att-1", body["attemptId"])
	assert.Equal(t, "pay_1", body["paymentId"])
}

func TestResolveFailureCarriesPendingList(t *testing.T) {
	approvals := &fakeApprovals{
		result: &services.ApprovalResult{Pending: []models.Appointment{{ID: "appt-2"}}},
		err:    exceptions.ApprovalAction("appt-1", true, errors.New("already resolved")),
	}
	h := NewApprovalHandler(approvals, zap.NewNop())
	r := authedEngine()
	r.POST("/approvals/:appointment_id", h.Resolve)

	w := perform(t, r, http.MethodPost, "/approvals/appt-1", &admin, bytes.NewBufferString(`{"action":"approve"}`), "application/json")

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["stale"])
	assert.Equal(t, "appt-1", body["appointmentId"])
	pending, ok := body["pending"].([]interface{})
	require.True(t, ok)
	assert.Len(t, pending, 1)
}

func TestSavePrescriptionMultipart(t *testing.T) {
	prescriptions := &fakePrescriptions{}
	h := NewPrescriptionHandler(prescriptions, zap.NewNop())
	r := authedEngine()
	r.POST("/prescriptions", h.Save)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("prescription", `{"appointmentId":"appt-9","medicines":[{"medicineName":"Paracetamol","dosage":"500mg"}]}`))
	part, err := form.CreateFormFile("reports", "blood.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hb 13.5"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	w := perform(t, r, http.MethodPost, "/prescriptions", &doctor, &buf, form.FormDataContentType())

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "appt-9", prescriptions.draft.AppointmentID)
	assert.Equal(t, []string{"blood.txt"}, prescriptions.names)
	assert.Equal(t, []string{"hb 13.5"}, prescriptions.content)
	assert.Equal(t, true, decode(t, w)["readOnly"])
}

func TestSavePrescriptionMultipartNeedsDraft(t *testing.T) {
	h := NewPrescriptionHandler(&fakePrescriptions{}, zap.NewNop())
	r := authedEngine()
	r.POST("/prescriptions", h.Save)

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("suggestions", "rest"))
	require.NoError(t, form.Close())

	w := perform(t, r, http.MethodPost, "/prescriptions", &doctor, &buf, form.FormDataContentType())

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields, ok := decode(t, w)["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "prescription")
}

func TestFulfillTakesRequestIDFromPath(t *testing.T) {
	stock := &fakeStock{}
	h := NewStockHandler(stock, zap.NewNop())
	r := authedEngine()
	r.POST("/stock/requests/:request_id/fulfill", h.Fulfill)

	supplier := models.SessionContext{Email: "ops@medsupply.com", Name: "MedSupply", Role: models.RoleSupplier}
	payload := `{"requestId":"ignored","quantityFulfilled":10,"pricePerUnit":2.5}`
	w := perform(t, r, http.MethodPost, "/stock/requests/req-7/fulfill", &supplier, bytes.NewBufferString(payload), "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-7", stock.fulfilled.RequestID)
	assert.Equal(t, 10, stock.fulfilled.QuantityFulfilled)
}

func TestHealthReportsDegradedComponent(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, nil, zap.NewNop())
	r := gin.New()
	r.GET("/health", h.Health)

	w := perform(t, r, http.MethodGet, "/health", nil, nil, "")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]interface{}{"database": "up", "redis": "down"}, body["components"])
}
