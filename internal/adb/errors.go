package adb

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	goadb "github.com/zach-klippenstein/goadb"
)

// Domain errors for the adb package.
var (
	// ErrLockNotAcquired is returned when the session is busy with another call.
	ErrLockNotAcquired = errors.New("adb: connection is currently in use")

	// ErrTransport wraps failures of the ADB link itself.
	ErrTransport = errors.New("adb: transport error")

	// ErrNotConnected is returned when a device call is made before Connect succeeds.
	ErrNotConnected = errors.New("adb: not connected")

	// ErrUnauthorized is returned when the device has not accepted the bridge's key.
	ErrUnauthorized = errors.New("adb: device unauthorized")

	// ErrDeviceOffline is returned when the adb server reports the device offline.
	ErrDeviceOffline = errors.New("adb: device offline")

	// ErrKeyAndServer is returned when both an ADB key and an ADB server are configured.
	ErrKeyAndServer = errors.New("adb: an adbkey cannot be combined with an adb server")
)

// transportCodes are the goadb error codes that mean the link is broken.
var transportCodes = []goadb.ErrCode{
	goadb.ServerNotAvailable,
	goadb.NetworkError,
	goadb.ConnectionResetError,
	goadb.DeviceNotFound,
	goadb.AdbError,
}

// IsTransport reports whether err means the ADB link failed.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) || errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrDeviceOffline) {
		return true
	}
	for _, code := range transportCodes {
		if goadb.HasErrCode(err, code) {
			return true
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify wraps err so callers can test its failure class with errors.Is.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLockNotAcquired), errors.Is(err, ErrTransport):
		return err
	case IsTransport(err):
		return &opError{op: op, class: ErrTransport, err: err}
	default:
		return &opError{op: op, err: err}
	}
}

// opError records the operation that failed.
type opError struct {
	op    string
	class error
	err   error
}

func (e *opError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error {
	if e.class == nil {
		return []error{e.err}
	}
	return []error{e.class, e.err}
}
