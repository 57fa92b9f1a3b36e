package utils

import (
	"CareDesk/models"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	ErrDateInPast        = errors.New("date cannot be earlier than today")
	ErrSlotNotOffered    = errors.New("time is not one of the doctor's slots")
	ErrDoctorNotSelected = errors.New("a doctor must be selected")
	ErrShortfall         = errors.New("quantity fulfilled is less than requested; acknowledge the shortfall to continue")
)

// ValidateBookingInput checks a booking request against the chosen doctor.
func ValidateBookingInput(input models.BookingInput, doctor *models.Doctor, now time.Time) error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.DepartmentID, validation.Required),
		validation.Field(&input.DoctorEmail,
			validation.Required.Error(ErrDoctorNotSelected.Error()),
			is.EmailFormat,
			validation.By(func(interface{}) error {
				if doctor == nil {
					return ErrDoctorNotSelected
				}
				return nil
			}),
		),
		validation.Field(&input.Date,
			validation.Required,
			validation.Date(models.DateLayout).Error("must be a date in YYYY-MM-DD format"),
			validation.By(notBeforeToday(now)),
		),
		validation.Field(&input.Time,
			validation.Required,
			validation.By(func(value interface{}) error {
				slot, _ := value.(string)
				if doctor != nil && !doctor.OffersSlot(slot) {
					return ErrSlotNotOffered
				}
				return nil
			}),
		),
		validation.Field(&input.Symptoms, validation.Length(0, 2000)),
	)
}

func notBeforeToday(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		date, err := models.ParseDate(s, now.Location())
		if err != nil {
			// the Date rule reports the format
			return nil
		}
		if date.Before(models.StartOfDay(now)) {
			return ErrDateInPast
		}
		return nil
	}
}

// ValidatePrescriptionDraft requires at least one fully described medicine.
func ValidatePrescriptionDraft(draft models.PrescriptionDraft) error {
	return validation.ValidateStruct(&draft,
		validation.Field(&draft.AppointmentID, validation.Required),
		validation.Field(&draft.Medicines,
			validation.Required.Error("at least one medicine is required"),
			validation.Each(validation.By(validateMedicine)),
		),
		validation.Field(&draft.Suggestions, validation.Length(0, 4000)),
	)
}

func validateMedicine(value interface{}) error {
	m, ok := value.(models.Medicine)
	if !ok {
		return errors.New("must be a medicine")
	}
	return validation.ValidateStruct(&m,
		validation.Field(&m.MedicineName, validation.By(notBlank)),
		validation.Field(&m.Frequency, validation.By(notBlank)),
		validation.Field(&m.Duration, validation.By(notBlank)),
		validation.Field(&m.Dosage, validation.By(notBlank)),
	)
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func ValidateStockRequest(input models.StockRequestInput) error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.ProductName, validation.Required, validation.Length(1, 200)),
		validation.Field(&input.ProductType, validation.Required),
		validation.Field(&input.Supplier, validation.Required),
		validation.Field(&input.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&input.PricePerUnit, validation.Min(0.0)),
	)
}

// ValidateFulfillment checks a supplier fulfillment against the requested quantity.
func ValidateFulfillment(input models.FulfillmentInput, requested int) error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.RequestID, validation.Required),
		validation.Field(&input.HospitalName, validation.Required),
		validation.Field(&input.QuantityFulfilled,
			validation.Required,
			validation.Min(1),
			validation.Max(requested).Error("cannot exceed the requested quantity"),
			validation.By(func(interface{}) error {
				if input.Shortfall(requested) && !input.AcknowledgeShortfall {
					return ErrShortfall
				}
				return nil
			}),
		),
		validation.Field(&input.PricePerUnit, validation.Required, validation.Min(0.0)),
		validation.Field(&input.ExpiryDate, validation.Date(models.DateLayout).Error("must be a date in YYYY-MM-DD format")),
	)
}

func ValidateCompletion(input models.CompletionInput) error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.RequestID, validation.Required),
		validation.Field(&input.PaymentID, validation.Required.Error("a payment id is required to complete an order")),
	)
}

func ValidatePaymentConfirmation(input models.PaymentConfirmation) error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.OrderID, validation.Required),
		validation.Field(&input.PaymentID, validation.Required),
	)
}
