package operr

import "fmt"

// Error wraps a failure with a stable operation code.
type Error struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError Error) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError Error) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError Error) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError Error) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError Error) Code() string {
	return operationError.code
}

// Wrap attaches operation, subject, and code metadata to an error.
func Wrap(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return Error{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
