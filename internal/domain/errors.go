package domain

import "fmt"

// AppError is the base domain error type. Kind is stable and machine
// readable; Status is the HTTP status the API layer maps it to.
type AppError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrInvalidArg(msg string) *AppError {
	return &AppError{Kind: "INVALID_ARGUMENT", Message: msg, Status: 400}
}

func ErrAccountNotFound(id string) *AppError {
	return &AppError{Kind: "ACCOUNT_NOT_FOUND", Message: fmt.Sprintf("account %s not found", id), Status: 404}
}

func ErrAccountNotActive(id string, status AccountStatus) *AppError {
	return &AppError{Kind: "ACCOUNT_NOT_ACTIVE", Message: fmt.Sprintf("account %s is %s and cannot accept transactions", id, status), Status: 409}
}

func ErrCurrencyMismatch(msg string) *AppError {
	return &AppError{Kind: "CURRENCY_MISMATCH", Message: msg, Status: 400}
}

func ErrUnbalanced(msg string) *AppError {
	return &AppError{Kind: "UNBALANCED", Message: msg, Status: 400}
}

func ErrTooFewEntries(n int) *AppError {
	return &AppError{Kind: "TOO_FEW_ENTRIES", Message: fmt.Sprintf("double-entry requires at least 2 entries, found %d", n), Status: 400}
}

func ErrDuplicateExternalID(externalID string) *AppError {
	return &AppError{Kind: "DUPLICATE_EXTERNAL_ID", Message: fmt.Sprintf("external id %s already used", externalID), Status: 409}
}

func ErrNotReversible(id string, status TransactionStatus) *AppError {
	return &AppError{Kind: "NOT_REVERSIBLE", Message: fmt.Sprintf("transaction %s is %s and cannot be reversed", id, status), Status: 409}
}

func ErrTransactionNotFound(id string) *AppError {
	return &AppError{Kind: "TRANSACTION_NOT_FOUND", Message: fmt.Sprintf("transaction %s not found", id), Status: 404}
}

func ErrInvalidStateTransition(msg string) *AppError {
	return &AppError{Kind: "INVALID_ACCOUNT_STATE_TRANSITION", Message: msg, Status: 409}
}

func ErrDeadlineExceeded(op string) *AppError {
	return &AppError{Kind: "DEADLINE_EXCEEDED", Message: fmt.Sprintf("deadline exceeded during %s", op), Status: 504}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Kind: "INTERNAL", Message: msg, Status: 500, Cause: cause}
}
