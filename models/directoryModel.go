package models

type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Doctor struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Specialization string   `json:"specialization"`
	Qualification  string   `json:"qualification"`
	ContactNo      string   `json:"contactNo"`
	TimeSlots      []string `json:"timeSlots"`
	Available      bool     `json:"available"`
}

// OffersSlot reports whether slot is one of the doctor's time slots.
func (d Doctor) OffersSlot(slot string) bool {
	for _, s := range d.TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}
