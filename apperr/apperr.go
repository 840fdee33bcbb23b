// Package apperr classifies failures so the transport layer can pick a
// response without inspecting driver errors.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Code identifies a failure class.
type Code string

const (
	CodeInvalidIdentifier Code = "invalid_identifier"
	CodeNotFound          Code = "not_found"
	CodePersistence       Code = "persistence"
	CodeAggregation       Code = "aggregation"
	CodeInfrastructure    Code = "infrastructure"
)

// Error carries a failure class, the operation that produced it and the cause.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInfrastructure when err carries no classification.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInfrastructure
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var appErr *Error
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// FromStore classifies a driver error. Unreachable stores and timeouts become
// CodeInfrastructure; anything else the store reported becomes CodePersistence.
// Errors that are already classified pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if isInfrastructure(err) {
		return New(CodeInfrastructure, op, err)
	}
	return New(CodePersistence, op, err)
}

func isInfrastructure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Server-side errors prove the store answered.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "57P01" || pgErr.Code == "57P03" || pgErr.Code == "53300"
	}
	return false
}
