package gateway

import (
	"math"

	"github.com/razorpay/razorpay-go/utils"
)

type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CheckoutOptions is handed to the gateway widget. Amount is in minor
// currency units (paise for INR).
type CheckoutOptions struct {
	Key      string  `json:"key"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	OrderID  string  `json:"order_id"`
	Prefill  Prefill `json:"prefill"`
}

// NewCheckoutOptions converts amount from whole units into minor units.
func NewCheckoutOptions(key string, amount float64, currency, orderID, name, email string) CheckoutOptions {
	return CheckoutOptions{
		Key:      key,
		Amount:   MinorUnits(amount),
		Currency: currency,
		OrderID:  orderID,
		Prefill:  Prefill{Name: name, Email: email},
	}
}

func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// VerifySignature checks the gateway's order|payment HMAC with the key secret.
func VerifySignature(orderID, paymentID, signature, secret string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, secret)
}
