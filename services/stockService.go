package services

import (
	"CareDesk/exceptions"
	"CareDesk/models"
	"CareDesk/utils"
	"context"
	"fmt"

	"go.uber.org/zap"
)

type StockBackend interface {
	RequestStock(ctx context.Context, hospitalName string, input models.StockRequestInput) error
	FulfillRequest(ctx context.Context, input models.FulfillmentInput) error
	CompleteOrder(ctx context.Context, hospitalName string, input models.CompletionInput) error
	StockRequestsByHospital(ctx context.Context, hospitalName string) ([]models.StockRequest, error)
	StockRequestsBySupplier(ctx context.Context, companyName string) ([]models.StockRequest, error)
}

// StockService moves stock requests from requested through processing to completed.
type StockService struct {
	backend StockBackend
	logger  *zap.Logger
}

func NewStockService(backend StockBackend, logger *zap.Logger) *StockService {
	return &StockService{backend: backend, logger: logger}
}

func (s *StockService) Request(ctx context.Context, session models.SessionContext, input models.StockRequestInput) error {
	if err := authorize(session, models.OpStockRequest); err != nil {
		return err
	}
	if err := utils.ValidateStockRequest(input); err != nil {
		return exceptions.Validation(err)
	}
	if err := s.backend.RequestStock(ctx, session.HospitalName, input); err != nil {
		return exceptions.StockAction("request_stock", err)
	}
	s.logger.Info("Stock requested",
		zap.String("hospital", session.HospitalName),
		zap.String("supplier", input.Supplier),
		zap.String("product", input.ProductName),
		zap.Int("quantity", input.Quantity),
	)
	return nil
}

// List returns the supplier's incoming requests for a supplier and the
// hospital's outgoing requests for everyone else.
func (s *StockService) List(ctx context.Context, session models.SessionContext) ([]models.StockRequest, error) {
	if session.Role == models.RoleSupplier {
		return s.ListForSupplier(ctx, session)
	}
	return s.ListForHospital(ctx, session)
}

func (s *StockService) ListForHospital(ctx context.Context, session models.SessionContext) ([]models.StockRequest, error) {
	if err := authorize(session, models.OpStockRead); err != nil {
		return nil, err
	}
	if session.Role == models.RoleSupplier {
		return nil, exceptions.Forbidden(string(models.OpStockRead), "suppliers read their own requests")
	}
	requests, err := s.backend.StockRequestsByHospital(ctx, session.HospitalName)
	if err != nil {
		return nil, exceptions.Lookup("stock_requests", err)
	}
	return requests, nil
}

// ListForSupplier uses the session name as the supplier company.
func (s *StockService) ListForSupplier(ctx context.Context, session models.SessionContext) ([]models.StockRequest, error) {
	if err := authorize(session, models.OpStockRead); err != nil {
		return nil, err
	}
	if session.Role != models.RoleSupplier {
		return nil, exceptions.Forbidden(string(models.OpStockRead), "only suppliers have incoming requests")
	}
	requests, err := s.backend.StockRequestsBySupplier(ctx, session.Name)
	if err != nil {
		return nil, exceptions.Lookup("stock_requests", err)
	}
	return requests, nil
}

// Fulfill supplies a requested order. Supplying less than requested needs
// an explicit acknowledgement.
func (s *StockService) Fulfill(ctx context.Context, session models.SessionContext, input models.FulfillmentInput) error {
	if err := authorize(session, models.OpStockFulfill); err != nil {
		return err
	}
	requests, err := s.ListForSupplier(ctx, session)
	if err != nil {
		return err
	}
	req, ok := findStockRequest(requests, input.RequestID)
	if !ok {
		return exceptions.NotFound("fulfill_request", "stock request not found")
	}
	if req.Status != models.StockRequested {
		return exceptions.Conflict("fulfill_request", fmt.Sprintf("stock request is %s", req.Status))
	}
	if input.HospitalName == "" {
		input.HospitalName = req.HospitalName
	}
	if err := utils.ValidateFulfillment(input, req.Quantity); err != nil {
		return exceptions.Validation(err)
	}

	if err := s.backend.FulfillRequest(ctx, input); err != nil {
		return exceptions.StockAction("fulfill_request", err)
	}
	s.logger.Info("Stock request fulfilled",
		zap.String("request_id", req.ID),
		zap.Int("requested", req.Quantity),
		zap.Int("fulfilled", input.QuantityFulfilled),
		zap.Float64("total_price", input.TotalPrice()),
	)
	return nil
}

// Complete closes a fulfilled order against its payment.
func (s *StockService) Complete(ctx context.Context, session models.SessionContext, input models.CompletionInput) error {
	if err := authorize(session, models.OpStockComplete); err != nil {
		return err
	}
	if err := utils.ValidateCompletion(input); err != nil {
		return exceptions.Validation(err)
	}
	requests, err := s.ListForHospital(ctx, session)
	if err != nil {
		return err
	}
	req, ok := findStockRequest(requests, input.RequestID)
	if !ok {
		return exceptions.NotFound("complete_order", "stock request not found")
	}
	if req.Status != models.StockProcessing {
		return exceptions.Conflict("complete_order", fmt.Sprintf("stock request is %s, not processing", req.Status))
	}

	if err := s.backend.CompleteOrder(ctx, session.HospitalName, input); err != nil {
		return exceptions.StockAction("complete_order", err)
	}
	s.logger.Info("Stock order completed", zap.String("request_id", req.ID), zap.String("payment_id", input.PaymentID))
	return nil
}

func findStockRequest(requests []models.StockRequest, id string) (models.StockRequest, bool) {
	for _, r := range requests {
		if r.ID == id {
			return r, true
		}
	}
	return models.StockRequest{}, false
}
