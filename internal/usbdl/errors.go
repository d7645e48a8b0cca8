package usbdl

import (
	"errors"
	"fmt"
)

// ErrCallUnsupported is returned by Target.Call. The boot ROM protocol
// has no way to invoke a function and come back.
var ErrCallUnsupported = errors.New("usbdl: function calls are not supported over the boot ROM protocol")

// ErrNoSoC is returned by operations that need the SoC profile before
// Detect has run.
var ErrNoSoC = errors.New("usbdl: SoC not detected")

// EchoError is returned when the device does not echo a sent frame back
// unchanged.
type EchoError struct {
	Sent []byte
	Got  []byte
}

func (e *EchoError) Error() string {
	return fmt.Sprintf("echo mismatch: sent % x, got % x", e.Sent, e.Got)
}

// StatusError is returned when a command reports a failing status word.
type StatusError struct {
	Command Command
	Phase   string
	Status  uint16
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed at %s: status 0x%04x", e.Command, e.Phase, e.Status)
}

// UnknownHWCodeError is returned by Detect when the hardware code is not
// in the SoC catalog.
type UnknownHWCodeError struct {
	HWCode uint16
}

func (e *UnknownHWCodeError) Error() string {
	return fmt.Sprintf("unsupported SoC: hw_code 0x%04x is not in the catalog", e.HWCode)
}

// TransportError wraps an I/O failure on the port.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("usbdl %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
