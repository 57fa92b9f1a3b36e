package models

import "fmt"

// Role is one of the closed set of actors that may drive the service.
type Role string

const (
	RolePatient    Role = "Patient"
	RoleDoctor     Role = "Doctor"
	RoleAdmin      Role = "Admin"
	RoleSupplier   Role = "Supplier"
	RoleSuperAdmin Role = "SuperAdmin"
)

// Operation names a guarded capability of the service.
type Operation string

const (
	OpDirectoryRead     Operation = "directory.read"
	OpBookingCreate     Operation = "booking.create"
	OpBookingPay        Operation = "booking.pay"
	OpBookingFinalize   Operation = "booking.finalize"
	OpBookingRead       Operation = "booking.read"
	OpApprovalRead      Operation = "approval.read"
	OpApprovalWrite     Operation = "approval.write"
	OpPrescriptionRead  Operation = "prescription.read"
	OpPrescriptionWrite Operation = "prescription.write"
	OpStockRequest      Operation = "stock.request"
	OpStockRead         Operation = "stock.read"
	OpStockFulfill      Operation = "stock.fulfill"
	OpStockComplete     Operation = "stock.complete"
)

var roleOperations = map[Role]map[Operation]struct{}{
	RolePatient:    setOf(OpDirectoryRead, OpBookingCreate, OpBookingPay, OpBookingFinalize, OpBookingRead),
	RoleDoctor:     setOf(OpDirectoryRead, OpPrescriptionRead, OpPrescriptionWrite),
	RoleAdmin:      setOf(OpDirectoryRead, OpApprovalRead, OpApprovalWrite, OpStockRequest, OpStockRead, OpStockComplete),
	RoleSupplier:   setOf(OpStockRead, OpStockFulfill),
	RoleSuperAdmin: setOf(OpDirectoryRead, OpApprovalRead, OpStockRead),
}

func setOf(ops ...Operation) map[Operation]struct{} {
	set := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		set[op] = struct{}{}
	}
	return set
}

// ParseRole converts a claim value into a Role.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleOperations[role]; !ok {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// Allows reports whether the role may perform op.
func (r Role) Allows(op Operation) bool {
	_, ok := roleOperations[r][op]
	return ok
}

// SessionContext is the identity every service call acts on behalf of.
// For a supplier, Name is the company name stock requests are addressed to.
type SessionContext struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	HospitalName string `json:"hospitalName"`
}

func (s SessionContext) Can(op Operation) bool {
	return s.Role.Allows(op)
}
