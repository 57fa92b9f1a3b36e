package models

type StockStatus string

const (
	StockRequested  StockStatus = "requested"
	StockProcessing StockStatus = "processing"
	StockCompleted  StockStatus = "completed"
)

type StockRequest struct {
	ID                string      `json:"id"`
	ProductName       string      `json:"productName"`
	ProductType       string      `json:"productType"`
	Supplier          string      `json:"supplier"`
	HospitalName      string      `json:"hospitalName"`
	Quantity          int         `json:"quantity"`
	PricePerUnit      float64     `json:"pricePerUnit"`
	Status            StockStatus `json:"status"`
	QuantityFulfilled int         `json:"quantityFulfilled,omitempty"`
	TotalPrice        float64     `json:"totalPrice,omitempty"`
	ExpiryDate        string      `json:"expiryDate,omitempty"`
	Notes             string      `json:"notes,omitempty"`
	PaymentID         string      `json:"paymentId,omitempty"`
}

type StockRequestInput struct {
	ProductName  string  `json:"productName"`
	ProductType  string  `json:"productType"`
	Supplier     string  `json:"supplier"`
	Quantity     int     `json:"quantity"`
	PricePerUnit float64 `json:"pricePerUnit"`
}

type FulfillmentInput struct {
	RequestID            string  `json:"requestId"`
	HospitalName         string  `json:"hospitalName"`
	QuantityFulfilled    int     `json:"quantityFulfilled"`
	PricePerUnit         float64 `json:"pricePerUnit"`
	ExpiryDate           string  `json:"expiryDate"`
	Notes                string  `json:"notes"`
	AcknowledgeShortfall bool    `json:"acknowledgeShortfall"`
}

// Shortfall reports whether the fulfillment supplies less than requested.
func (f FulfillmentInput) Shortfall(requested int) bool {
	return f.QuantityFulfilled < requested
}

// TotalPrice is quantityFulfilled times pricePerUnit.
func (f FulfillmentInput) TotalPrice() float64 {
	return float64(f.QuantityFulfilled) * f.PricePerUnit
}

type CompletionInput struct {
	RequestID string `json:"requestId"`
	PaymentID string `json:"paymentId"`
}
