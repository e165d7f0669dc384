package main

import "fmt"

// ServiceError tags an error with the service and operation it escaped
// from, so CLI output and logs name the failing component.
type ServiceError struct {
	Service   string
	Operation string
	Err       error
}

// Error formats as [Service.Operation] message.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s.%s] %v", e.Service, e.Operation, e.Err)
}

// Unwrap exposes the original error to errors.Is and errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WrapError attaches service context to err. A nil err stays nil.
func WrapError(service, operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ServiceError{Service: service, Operation: operation, Err: err}
}
