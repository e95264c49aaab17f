// Package errors provides unified error handling for the naming client.
//
// It implements a structured error type with machine-readable codes and
// retryable detection. Transport backends wrap their wire-level failures
// into *AppError values; the naming package classifies them by code and
// maps them onto its public sentinel errors.
//
// # Usage
//
//	err := errors.NotFound("service", "user-service")
//	if errors.HasCode(err, errors.ErrCodeNotFound) { ... }
package errors
