package controllers

import (
	"CareDesk/handlers"
	"CareDesk/middlewares"
	"CareDesk/models"

	"github.com/gin-gonic/gin"
)

type AppointmentController struct {
	Directory    *handlers.DirectoryHandler
	Booking      *handlers.BookingHandler
	Approval     *handlers.ApprovalHandler
	Prescription *handlers.PrescriptionHandler
}

// RegisterRoutes mounts the appointment lifecycle. Every route is guarded
// by the operation it performs, never by a role name.
func (ac *AppointmentController) RegisterRoutes(api *gin.RouterGroup) {
	directory := api.Group("/directory", middlewares.RequireOperation(models.OpDirectoryRead))
	{
		directory.GET("/departments", ac.Directory.GetDepartments)
		directory.GET("/departments/:department_id/doctors", ac.Directory.GetDoctors)
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", middlewares.RequireOperation(models.OpBookingCreate), ac.Booking.CreateBooking)
		bookings.GET("/:attempt_id", middlewares.RequireOperation(models.OpBookingRead), ac.Booking.GetBooking)
		bookings.POST("/:attempt_id/order", middlewares.RequireOperation(models.OpBookingPay), ac.Booking.CreateOrder)
		bookings.POST("/:attempt_id/verify", middlewares.RequireOperation(models.OpBookingPay), ac.Booking.RetryVerification)
		bookings.POST("/:attempt_id/finalize", middlewares.RequireOperation(models.OpBookingFinalize), ac.Booking.Finalize)
	}

	payments := api.Group("/payments", middlewares.RequireOperation(models.OpBookingPay))
	{
		payments.POST("/callback", ac.Booking.PaymentCallback)
		payments.POST("/failure", ac.Booking.PaymentFailure)
	}

	approvals := api.Group("/approvals")
	{
		approvals.GET("/pending", middlewares.RequireOperation(models.OpApprovalRead), ac.Approval.GetPending)
		approvals.POST("/:appointment_id", middlewares.RequireOperation(models.OpApprovalWrite), ac.Approval.Resolve)
	}

	prescriptions := api.Group("/prescriptions")
	{
		prescriptions.GET("/due", middlewares.RequireOperation(models.OpPrescriptionRead), ac.Prescription.GetDue)
		prescriptions.GET("/appointments/:appointment_id", middlewares.RequireOperation(models.OpPrescriptionRead), ac.Prescription.GetAppointment)
		prescriptions.POST("", middlewares.RequireOperation(models.OpPrescriptionWrite), ac.Prescription.Save)
	}
}
