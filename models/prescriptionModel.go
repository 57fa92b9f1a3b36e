package models

type Medicine struct {
	MedicineName string `json:"medicineName"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Dosage       string `json:"dosage"`
}

// ReportFile is the metadata of a report stored alongside a prescription.
type ReportFile struct {
	Name        string `json:"name"`
	ObjectKey   string `json:"objectKey"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// PrescriptionDraft is what a doctor submits for an appointment.
type PrescriptionDraft struct {
	AppointmentID string            `json:"appointmentId" form:"appointmentId"`
	Vitals        map[string]string `json:"vitals"`
	Medicines     []Medicine        `json:"medicines"`
	Suggestions   string            `json:"suggestions" form:"suggestions"`
}

// Prescription is created once per appointment and never modified.
type Prescription struct {
	AppointmentID string            `json:"appointmentId"`
	PatientName   string            `json:"patientName"`
	PatientEmail  string            `json:"patientEmail"`
	DoctorName    string            `json:"doctorName"`
	DoctorEmail   string            `json:"doctorEmail"`
	HospitalName  string            `json:"hospitalName"`
	Department    string            `json:"department"`
	Date          string            `json:"appointmentDate"`
	Vitals        map[string]string `json:"vitals"`
	Medicines     []Medicine        `json:"medicines"`
	Suggestions   string            `json:"suggestions"`
	Reports       []ReportFile      `json:"reports"`
}

// NewPrescription combines a draft with the appointment it completes.
func NewPrescription(appt Appointment, draft PrescriptionDraft, reports []ReportFile) Prescription {
	if draft.Vitals == nil {
		draft.Vitals = map[string]string{}
	}
	if reports == nil {
		reports = []ReportFile{}
	}
	return Prescription{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		PatientEmail:  appt.PatientEmail,
		DoctorName:    appt.DoctorName,
		DoctorEmail:   appt.DoctorEmail,
		HospitalName:  appt.HospitalName,
		Department:    appt.Department,
		Date:          appt.ScheduledDate(),
		Vitals:        draft.Vitals,
		Medicines:     draft.Medicines,
		Suggestions:   draft.Suggestions,
		Reports:       reports,
	}
}

// AppointmentDetail is an appointment as shown to its doctor.
type AppointmentDetail struct {
	Appointment
	ReadOnly bool `json:"readOnly"`
}
