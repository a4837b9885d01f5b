package numbering

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a numbering operation.
type OperationLog struct {
	Operation       string
	Kind            Kind
	ReservationID   string
	CounterValue    int64
	FormattedNumber string
	DocumentID      string
	Reclaimed       bool
	Status          string
	Error           error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithBurnedNumberVisibility controls whether Release discloses that a
// released number could not be reclaimed and stays permanently consumed.
// When hidden the gap still exists; it is just not surfaced to callers.
func WithBurnedNumberVisibility(visible bool) ServiceOption {
	return func(service *Service) {
		service.burnedVisible = visible
	}
}
