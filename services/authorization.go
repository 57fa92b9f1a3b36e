package services

import (
	"CareDesk/exceptions"
	"CareDesk/models"
	"fmt"
)

// authorize rejects a session whose role does not grant op.
func authorize(session models.SessionContext, op models.Operation) error {
	if !session.Can(op) {
		return exceptions.Forbidden(string(op), fmt.Sprintf("role %s may not perform %s", session.Role, op))
	}
	return nil
}

// ownAttempt hides attempts of other patients.
func ownAttempt(session models.SessionContext, attempt *models.BookingAttempt, step string) error {
	if attempt.PatientEmail != session.Email {
		return exceptions.NotFound(step, "booking not found")
	}
	return nil
}

// patientSession acts for the patient who owns attempt.
func patientSession(attempt *models.BookingAttempt) models.SessionContext {
	return models.SessionContext{
		Email:        attempt.PatientEmail,
		Name:         attempt.PatientName,
		Role:         models.RolePatient,
		HospitalName: attempt.HospitalName,
	}
}
