package backend

import (
	"CareDesk/models"
	"context"
	"net/http"
)

type stockRecord struct {
	ID                string  `json:"_id"`
	ProductName       string  `json:"product_name"`
	ProductType       string  `json:"productType"`
	Supplier          string  `json:"supplier"`
	HospitalName      string  `json:"hospital_name"`
	Quantity          int     `json:"quantity"`
	PricePerStrip     float64 `json:"price_per_strip"`
	Status            string  `json:"status"`
	QuantityFulfilled int     `json:"quantity_fulfilled"`
	TotalPrice        float64 `json:"total_price"`
	ExpiryDate        string  `json:"expiry_date"`
	Notes             string  `json:"fulfillment_notes"`
	PaymentID         string  `json:"payment_id"`
}

func (r stockRecord) toModel() models.StockRequest {
	return models.StockRequest{
		ID:                r.ID,
		ProductName:       r.ProductName,
		ProductType:       r.ProductType,
		Supplier:          r.Supplier,
		HospitalName:      r.HospitalName,
		Quantity:          r.Quantity,
		PricePerUnit:      r.PricePerStrip,
		Status:            models.StockStatus(r.Status),
		QuantityFulfilled: r.QuantityFulfilled,
		TotalPrice:        r.TotalPrice,
		ExpiryDate:        r.ExpiryDate,
		Notes:             r.Notes,
		PaymentID:         r.PaymentID,
	}
}

type requestStockPayload struct {
	ProductName   string  `json:"product_name"`
	ProductType   string  `json:"product_type"`
	Supplier      string  `json:"supplier"`
	HospitalName  string  `json:"hospital_name"`
	Quantity      int     `json:"quantity"`
	PricePerStrip float64 `json:"price_per_strip"`
}

type fulfillPayload struct {
	RequestID         string  `json:"request_id"`
	HospitalName      string  `json:"hospital_name"`
	QuantityFulfilled int     `json:"quantity_fulfilled"`
	PricePerStrip     float64 `json:"price_per_strip"`
	TotalPrice        float64 `json:"total_price"`
	ExpiryDate        string  `json:"expiry_date,omitempty"`
	Notes             string  `json:"notes"`
}

type completePayload struct {
	HospitalName string `json:"hospital_name"`
	PaymentID    string `json:"payment_id"`
}

func (c *Client) RequestStock(ctx context.Context, hospitalName string, input models.StockRequestInput) error {
	payload := requestStockPayload{
		ProductName:   input.ProductName,
		ProductType:   input.ProductType,
		Supplier:      input.Supplier,
		HospitalName:  hospitalName,
		Quantity:      input.Quantity,
		PricePerStrip: input.PricePerUnit,
	}
	return c.do(ctx, http.MethodPost, "/orders/request_stock/", requestOptions{body: payload}, nil)
}

func (c *Client) FulfillRequest(ctx context.Context, input models.FulfillmentInput) error {
	payload := fulfillPayload{
		RequestID:         input.RequestID,
		HospitalName:      input.HospitalName,
		QuantityFulfilled: input.QuantityFulfilled,
		PricePerStrip:     input.PricePerUnit,
		TotalPrice:        input.TotalPrice(),
		ExpiryDate:        input.ExpiryDate,
		Notes:             input.Notes,
	}
	return c.do(ctx, http.MethodPost, "/orders/fulfill_request/", requestOptions{body: payload}, nil)
}

func (c *Client) CompleteOrder(ctx context.Context, hospitalName string, input models.CompletionInput) error {
	path := "/orders/complete_order/" + pathEscape(input.RequestID) + "/"
	payload := completePayload{HospitalName: hospitalName, PaymentID: input.PaymentID}
	return c.do(ctx, http.MethodPost, path, requestOptions{body: payload}, nil)
}

// StockRequestsByHospital lists a hospital's stock requests. The backend
// answers 404 when there are none, which is reported as an empty list.
func (c *Client) StockRequestsByHospital(ctx context.Context, hospitalName string) ([]models.StockRequest, error) {
	return c.listStock(ctx, "/orders/get_stocks_requests_by_hospital/"+pathEscape(hospitalName)+"/")
}

func (c *Client) StockRequestsBySupplier(ctx context.Context, companyName string) ([]models.StockRequest, error) {
	return c.listStock(ctx, "/orders/get_stock_request_by_supplier/"+pathEscape(companyName)+"/")
}

func (c *Client) listStock(ctx context.Context, path string) ([]models.StockRequest, error) {
	var resp struct {
		Requests []stockRecord `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, path, requestOptions{}, &resp); err != nil {
		if e, ok := err.(*Error); ok && e.StatusCode == http.StatusNotFound {
			return []models.StockRequest{}, nil
		}
		return nil, err
	}
	requests := make([]models.StockRequest, 0, len(resp.Requests))
	for _, r := range resp.Requests {
		requests = append(requests, r.toModel())
	}
	return requests, nil
}
