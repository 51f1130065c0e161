package models

import "errors"

var (
	// ErrMalformedRecord marks an upstream market record missing a required numeric field.
	ErrMalformedRecord = errors.New("malformed market record")
	// ErrSignalNotFound is returned when feedback references an unknown signal id.
	ErrSignalNotFound = errors.New("signal not found")
	// ErrSignalClosed is returned when feedback targets a signal that already has an outcome.
	ErrSignalClosed = errors.New("signal already closed")
	// ErrInvalidOutcome is returned for outcomes other than success, fail or partial.
	ErrInvalidOutcome = errors.New("invalid feedback outcome")
	// ErrInsufficientSample is reported when there are too few terminal signals to retrain.
	ErrInsufficientSample = errors.New("insufficient feedback sample")
	// ErrInvalidCallback is returned when an outcome action string cannot be decoded.
	ErrInvalidCallback = errors.New("invalid callback data")
	// ErrDiscoveryFailed is returned when every discovery strategy failed in one pass.
	ErrDiscoveryFailed = errors.New("all discovery strategies failed")
)
