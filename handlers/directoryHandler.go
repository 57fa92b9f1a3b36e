package handlers

import (
	"CareDesk/middlewares"
	"CareDesk/models"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DirectoryService interface {
	Departments(ctx context.Context, session models.SessionContext, hospitalName string) ([]models.Department, error)
	Doctors(ctx context.Context, session models.SessionContext, departmentID, hospitalName string) ([]models.Doctor, error)
}

type DirectoryHandler struct {
	service DirectoryService
	logger  *zap.Logger
}

func NewDirectoryHandler(service DirectoryService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{service: service, logger: logger}
}

func (h *DirectoryHandler) GetDepartments(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	departments, err := h.service.Departments(c.Request.Context(), s, c.Query("hospitalName"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"departments": departments}, http.StatusOK)
}

func (h *DirectoryHandler) GetDoctors(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	doctors, err := h.service.Doctors(c.Request.Context(), s, c.Param("department_id"), c.Query("hospitalName"))
	if err != nil {
		middlewares.HttpError(c, h.logger, err)
		return
	}
	middlewares.RespondJSON(c, gin.H{"doctors": doctors}, http.StatusOK)
}
