package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkcard/backend/services/parking-service/internal/repository"
)

var (
	ErrNotFound             = errors.New("parking: not found")
	ErrInvalidAmount        = errors.New("parking: invalid amount")
	ErrInvalidInput         = errors.New("parking: invalid input")
	ErrCardInactive         = errors.New("parking: card is inactive")
	ErrSessionAlreadyActive = errors.New("parking: card already has an active session")
	ErrNoActiveSession      = errors.New("parking: no active session")
	ErrLicensePlateMismatch = errors.New("parking: license plate does not match")
	ErrInsufficientBalance  = errors.New("parking: insufficient balance")
	ErrDuplicateIdentifier  = errors.New("parking: identifier already exists")
	ErrInvalidCredentials   = errors.New("parking: invalid credentials")
	ErrForbidden            = errors.New("parking: forbidden")
	ErrSystemFailure        = errors.New("parking: system failure")
)

// SessionActiveError reports the session that blocks a new check-in.
type SessionActiveError struct {
	CardID      string
	Location    string
	TimestampIn time.Time
}

func (e *SessionActiveError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%s: card %s", ErrSessionAlreadyActive, e.CardID)
	}
	return fmt.Sprintf("%s: card %s parked at %s since %s", ErrSessionAlreadyActive, e.CardID, e.Location, e.TimestampIn.Format(time.RFC3339))
}

func (e *SessionActiveError) Unwrap() error { return ErrSessionAlreadyActive }

// InsufficientBalanceError carries the amounts needed to explain a refused debit.
type InsufficientBalanceError struct {
	Required  int64
	Current   int64
	Shortfall int64
}

func newInsufficientBalance(required, current int64) *InsufficientBalanceError {
	return &InsufficientBalanceError{Required: required, Current: current, Shortfall: required - current}
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: required %d, current %d, shortfall %d", ErrInsufficientBalance, e.Required, e.Current, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// PlateMismatchError reports the plate the card is registered with.
type PlateMismatchError struct {
	Registered string
	Supplied   string
}

func (e *PlateMismatchError) Error() string {
	return fmt.Sprintf("%s: card is registered to %s", ErrLicensePlateMismatch, e.Registered)
}

func (e *PlateMismatchError) Unwrap() error { return ErrLicensePlateMismatch }

// SystemError wraps an unexpected store failure. It matches both ErrSystemFailure
// and the underlying cause.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("%s during %s: %v", ErrSystemFailure, e.Op, e.Err)
}

func (e *SystemError) Unwrap() []error { return []error{ErrSystemFailure, e.Err} }

var domainErrors = []error{
	ErrNotFound,
	ErrInvalidAmount,
	ErrInvalidInput,
	ErrCardInactive,
	ErrSessionAlreadyActive,
	ErrNoActiveSession,
	ErrLicensePlateMismatch,
	ErrInsufficientBalance,
	ErrDuplicateIdentifier,
	ErrInvalidCredentials,
	ErrForbidden,
	ErrSystemFailure,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// translate leaves domain errors untouched and classifies everything else
// coming out of a unit of work.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrDuplicateIdentifier, err)
	default:
		return &SystemError{Op: op, Err: err}
	}
}

// ErrorKind returns a short, stable label for err, used for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSystemFailure):
		return "system_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrCardInactive):
		return "card_inactive"
	case errors.Is(err, ErrSessionAlreadyActive):
		return "session_already_active"
	case errors.Is(err, ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, ErrLicensePlateMismatch):
		return "license_plate_mismatch"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrDuplicateIdentifier):
		return "duplicate_identifier"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "system_failure"
	}
}
