package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrThrottled is returned when a request is held back by an upstream cooldown.
	ErrThrottled = errors.New("upstream cooldown active")
)

// ErrorClass represents a classification of transport failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassThrottled represents 429 responses and locally gated requests.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a success response whose body could not be decoded.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError is any failed upstream request: a non-success status, a
// network failure or an undecodable body.
type TransportError struct {
	// StatusCode is the HTTP status, 0 when no response was received.
	StatusCode int
	ErrorClass ErrorClass
	Resource   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d) on %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Resource, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Resource, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	case ErrorClassClient, ErrorClassThrottled, ErrorClassDecode:
		// 429 opens a cooldown instead; retrying would extend it
		return false
	default:
		return false
	}
}

// classifyStatus maps an HTTP status code to an error class.
// Returns "" for success codes.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == 429:
		return ErrorClassThrottled
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	case statusCode < 200 || statusCode >= 300:
		// 1xx and unfollowed 3xx carry no records
		return ErrorClassClient
	default:
		return ""
	}
}
