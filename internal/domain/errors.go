package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyInput         = errors.New("empty input")
	ErrNotFound           = errors.New("not found")
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	ErrExpired            = errors.New("credential expired")
	ErrRevoked            = errors.New("identifier revoked")
	ErrAlreadyRevoked     = errors.New("identifier already revoked")
	ErrStructural         = errors.New("structural mismatch")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPolicyDenied       = errors.New("policy denied")
)

// ErrorCode is the wire name of an error class. Verification results carry
// one of these instead of an error value.
type ErrorCode string

const (
	CodeInput      ErrorCode = "InputError"
	CodeCrypto     ErrorCode = "CryptoError"
	CodeExpired    ErrorCode = "ExpiredError"
	CodeRevoked    ErrorCode = "RevokedError"
	CodeNotFound   ErrorCode = "NotFoundError"
	CodeStructural ErrorCode = "StructuralError"
)

// Error attaches an operation name and an error class to an underlying error.
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code ErrorCode, op string, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

func InputError(op, format string, args ...any) error {
	return &Error{Code: CodeInput, Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))}
}

func StructuralError(op, format string, args ...any) error {
	return &Error{Code: CodeStructural, Op: op, Err: fmt.Errorf("%w: %s", ErrStructural, fmt.Sprintf(format, args...))}
}

// CodeOf classifies err. Errors that carry no explicit code are classified
// by the sentinel they wrap; anything else is an input problem.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) && typed.Code != "" {
		return typed.Code
	}
	switch {
	case errors.Is(err, ErrSignatureInvalid), errors.Is(err, ErrCommitmentMismatch):
		return CodeCrypto
	case errors.Is(err, ErrExpired):
		return CodeExpired
	case errors.Is(err, ErrRevoked), errors.Is(err, ErrAlreadyRevoked):
		return CodeRevoked
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStructural):
		return CodeStructural
	default:
		return CodeInput
	}
}
