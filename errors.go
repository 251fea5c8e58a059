package cc1101

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Sentinel errors for the device I/O boundary. Errors returned by a Device
// wrap exactly one of these, so callers can classify with errors.Is.
var (
	ErrNotFound     = errors.New("device not found")
	ErrPermission   = errors.New("permission denied")
	ErrBusy         = errors.New("device busy")
	ErrTimeout      = errors.New("device timeout")
	ErrDisconnected = errors.New("device disconnected")
)

// ErrRadioBusy is returned when a receive or transmit request arrives while
// the opposite operation is active. The request is rejected, not queued.
var ErrRadioBusy = errors.New("radio busy")

// ErrNotConfigured is returned when receive or transmit is requested before
// any configuration has been applied.
var ErrNotConfigured = errors.New("radio not configured")

// FIFO fault conditions detected by the streaming layer.
var (
	ErrRXOverflow  = errors.New("RX FIFO overflow")
	ErrTXUnderflow = errors.New("TX FIFO underflow")
)

// FaultError is the terminal error state of the radio. Once entered, every
// operation except Reset fails with the same FaultError.
type FaultError struct {
	Cause error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("radio fault: %v", e.Cause)
}

func (e *FaultError) Unwrap() error {
	return e.Cause
}

// ConfigErrorKind distinguishes a single field out of range from fields that
// are individually valid but mutually inconsistent.
type ConfigErrorKind int

const (
	OutOfRange ConfigErrorKind = iota
	InconsistentFields
)

// ConfigError reports an invalid Config. It is returned before any hardware
// register has been written.
type ConfigError struct {
	Kind   ConfigErrorKind
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// FrameError reports a framing failure in the received byte stream. The
// framer resynchronizes and the stream continues; data-level errors never
// terminate reception.
type FrameError struct {
	Declared int // length declared by the header byte
	Min      int // smallest plausible declaration
	Max      int // largest plausible declaration
}

func (e *FrameError) Error() string {
	if e.Declared < e.Min {
		return fmt.Sprintf("frame: declared length %d below minimum %d", e.Declared, e.Min)
	}
	return fmt.Sprintf("frame: declared length %d exceeds maximum %d", e.Declared, e.Max)
}

// classifyIOError maps an error from the underlying device handle onto one of
// the I/O sentinels, preserving the original error text.
func classifyIOError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ENXIO):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.EAGAIN):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, syscall.EIO), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	case isClassified(err):
		return err
	}
	return fmt.Errorf("%w: %v", ErrDisconnected, err)
}

func isClassified(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermission) ||
		errors.Is(err, ErrBusy) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrDisconnected)
}

// isTransientIO reports whether an I/O error is worth retrying inside the
// gateway. Busy and Timeout may clear; everything else escalates.
func isTransientIO(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrTimeout)
}

// isFault reports whether err carries a latched FaultError. A fault unwraps
// to its I/O cause, so it must be recognized before any transient
// classification of the same error.
func isFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe)
}
