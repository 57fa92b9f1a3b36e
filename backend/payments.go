package backend

import (
	"context"
	"errors"
	"net/http"
)

type CreatePaymentRequest struct {
	Amount       float64 `json:"amount"`
	PatientEmail string  `json:"patientEmail"`
	HospitalName string  `json:"hospitalName"`
}

type CreatePaymentResponse struct {
	OrderID string `json:"order_id"`
	Key     string `json:"key"`
}

type VerifyPaymentRequest struct {
	PaymentID    string `json:"payment_id"`
	OrderID      string `json:"order_id"`
	PatientEmail string `json:"patientEmail"`
	HospitalName string `json:"hospitalName"`
}

// CreatePayment asks the backend to create a gateway order for amount.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResponse, error) {
	var resp CreatePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments/create_payment/", requestOptions{body: req}, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, errors.New("backend returned no order id")
	}
	return &resp, nil
}

// VerifyPayment returns nil only when the backend confirms the payment.
func (c *Client) VerifyPayment(ctx context.Context, req VerifyPaymentRequest) error {
	return c.do(ctx, http.MethodPost, "/payments/verify_payment/", requestOptions{body: req}, nil)
}
