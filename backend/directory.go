package backend

import (
	"CareDesk/models"
	"context"
	"net/http"
)

type departmentRecord struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
	Name    string `json:"name"`
}

// DoctorRecord is a doctor as the backend reports it. TimeSlots may be empty.
type DoctorRecord struct {
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Specialization       string   `json:"specialization"`
	DoctorSpecialization string   `json:"doctorSpecialization"`
	Qualification        string   `json:"qualification"`
	ContactNo            string   `json:"contactNo"`
	TimeSlots            []string `json:"timeSlots"`
}

// Departments lists a hospital's departments in backend order.
func (c *Client) Departments(ctx context.Context, hospitalName string) ([]models.Department, error) {
	var resp struct {
		Departments []departmentRecord `json:"departments"`
	}
	path := "/hospitals/get_hospital_departments/" + pathEscape(hospitalName) + "/"
	if err := c.do(ctx, http.MethodGet, path, requestOptions{}, &resp); err != nil {
		return nil, err
	}

	departments := make([]models.Department, 0, len(resp.Departments))
	for _, d := range resp.Departments {
		id := d.ID
		if id == "" {
			id = d.MongoID
		}
		departments = append(departments, models.Department{ID: id, Name: d.Name})
	}
	return departments, nil
}

// Doctors lists the doctors of one department.
func (c *Client) Doctors(ctx context.Context, departmentID, hospitalName string) ([]DoctorRecord, error) {
	var resp struct {
		Doctors []DoctorRecord `json:"doctors"`
	}
	path := "/hospitals/get_hospital_doctors/" + pathEscape(departmentID) + "/" + pathEscape(hospitalName) + "/"
	if err := c.do(ctx, http.MethodGet, path, requestOptions{}, &resp); err != nil {
		return nil, err
	}
	if resp.Doctors == nil {
		resp.Doctors = []DoctorRecord{}
	}
	return resp.Doctors, nil
}
