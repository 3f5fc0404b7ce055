package app

import "fmt"

// DomainError is an error the API maps straight to an HTTP response. Codes
// in use: NOT_FOUND, VALIDATION_ERROR, FORBIDDEN, STRUCTURE_LOCKED,
// DELETE_NOT_ALLOWED, ILLEGAL_TRANSITION, UNSUPPORTED_FORMAT. Details
// carries machine-readable context such as the legal transition targets.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
