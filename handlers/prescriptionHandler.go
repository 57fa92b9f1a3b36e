package handlers

import (
	"CareDesk/exceptions"
	"CareDesk/middlewares"
	"CareDesk/models"
	"CareDesk/services"
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	draftFormField   = "prescription"
	reportsFormField = "reports"
	maxReportMemory  = 32 << 20
)

type PrescriptionService interface {
	ListDue(ctx context.Context, session models.SessionContext) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, session models.SessionContext, appointmentID string) (*models.AppointmentDetail, error)
	Save(ctx context.Context, session models.SessionContext, draft models.PrescriptionDraft, reports []services.ReportUpload) (*models.AppointmentDetail, error)
}

type PrescriptionHandler struct {
	service PrescriptionService
	logger  *zap.Logger
}

func NewPrescriptionHandler(service PrescriptionService, logger *zap.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{service: service, logger: logger}
}

func (h *PrescriptionHandler) GetDue(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	due, err := h.service.ListDue(c.Request.Context(), s)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"appointments": due}, http.StatusOK)
}

func (h *PrescriptionHandler) GetAppointment(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	detail, err := h.service.GetAppointment(c.Request.Context(), s, c.Param("appointment_id"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, detail, http.StatusOK)
}

// Save accepts either a JSON draft or a multipart form whose "prescription"
// field holds the JSON draft and whose "reports" files are attached.
func (h *PrescriptionHandler) Save(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	var (
		draft   models.PrescriptionDraft
		reports []services.ReportUpload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			middlewares.HttpError(c, h.logger, exceptions.Invalid("body", "malformed multipart form"))
			return
		}
		if err := draftFromForm(form, &draft); err != nil {
			middlewares.HttpError(c, h.logger, err)
			return
		}
		var closers []multipart.File
		defer func() {
			for _, f := range closers {
				f.Close()
			}
		}()
		for _, fh := range form.File[reportsFormField] {
			f, err := fh.Open()
			if err != nil {
				middlewares.HttpError(c, h.logger, exceptions.Invalid(reportsFormField, "unreadable file "+fh.Filename))
				return
			}
			closers = append(closers, f)
			reports = append(reports, services.ReportUpload{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			})
		}
	} else if !bindJSON(c, h.logger, &draft) {
		return
	}

	detail, err := h.service.Save(c.Request.Context(), s, draft, reports)
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, detail, http.StatusCreated)
}

func draftFromForm(form *multipart.Form, draft *models.PrescriptionDraft) error {
	values := form.Value[draftFormField]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return exceptions.Invalid(draftFormField, "prescription draft is required")
	}
	if err := json.Unmarshal([]byte(values[0]), draft); err != nil {
		return exceptions.Invalid(draftFormField, "malformed prescription draft")
	}
	return nil
}
