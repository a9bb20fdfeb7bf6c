// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn532emu

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error definitions
var (
	// Host-side exchange errors - potentially retryable
	ErrTransportTimeout = errors.New("transport timeout")
	ErrNoACK            = errors.New("no ACK received")
	ErrNoResponse       = errors.New("no response frame")
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// Bus errors - not retryable
	ErrBusClosed              = errors.New("bus is closed")
	ErrAddressNotAcknowledged = errors.New("address not acknowledged")

	// Configuration and inspection errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknownSlot    = errors.New("unknown card slot")
	ErrUnknownControl = errors.New("unknown control input")
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps a failure of one of the emulator's bus faces.
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port, bus or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewNoACKError creates an error for a missing ACK
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTimeout)
}

// NewFrameCorruptedError creates an error for an undecodable frame
func NewFrameCorruptedError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrFrameCorrupted, err), ErrorTypeTransient)
}

// NewBusClosedError creates an error for an operation on a closed bus
func NewBusClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrBusClosed, ErrorTypePermanent)
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrNoResponse),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error means a bus face cannot continue
// and should be shut down.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	switch {
	case errors.Is(err, ErrBusClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}
