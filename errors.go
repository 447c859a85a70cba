package grayscale

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a conversion failure.
//
// ErrorKind implements error so callers can match a failure class with
// errors.Is:
//
//	if errors.Is(err, grayscale.DeviceUnavailable) {
//	    // fall back to the cpu backend
//	}
type ErrorKind uint8

const (
	// DeviceUnavailable means no platform or no GPU-class device was found.
	DeviceUnavailable ErrorKind = iota + 1

	// ContextCreationFailed means the runtime rejected the device.
	ContextCreationFailed

	// QueueCreationFailed means no command queue could be obtained.
	QueueCreationFailed

	// ProgramBuildFailed means the kernel source did not compile or link.
	// The compiler diagnostics are in Error.Log.
	ProgramBuildFailed

	// BufferAllocationFailed means a device buffer could not be created.
	BufferAllocationFailed

	// DataTransferFailed means the host to device upload failed.
	DataTransferFailed

	// KernelArgumentBindFailed means a kernel argument was rejected.
	// The argument index is in Error.Arg.
	KernelArgumentBindFailed

	// KernelLaunchFailed means the kernel could not be enqueued.
	KernelLaunchFailed

	// ReadbackFailed means the device to host copy failed or timed out.
	ReadbackFailed

	// UnsupportedFormat means the image layout or file format is not supported.
	UnsupportedFormat

	// FileNotFound means the input image does not exist.
	FileNotFound
)

var kindNames = [...]string{
	DeviceUnavailable:        "DeviceUnavailable",
	ContextCreationFailed:    "ContextCreationFailed",
	QueueCreationFailed:      "QueueCreationFailed",
	ProgramBuildFailed:       "ProgramBuildFailed",
	BufferAllocationFailed:   "BufferAllocationFailed",
	DataTransferFailed:       "DataTransferFailed",
	KernelArgumentBindFailed: "KernelArgumentBindFailed",
	KernelLaunchFailed:       "KernelLaunchFailed",
	ReadbackFailed:           "ReadbackFailed",
	UnsupportedFormat:        "UnsupportedFormat",
	FileNotFound:             "FileNotFound",
}

// kindCodes holds the status code reported for each kind when the backend
// has no native code of its own. The values are the OpenCL status codes
// for the equivalent failure; FileNotFound uses ENOENT.
var kindCodes = [...]int{
	DeviceUnavailable:        -1,
	ContextCreationFailed:    -2,
	QueueCreationFailed:      -36,
	ProgramBuildFailed:       -11,
	BufferAllocationFailed:   -4,
	DataTransferFailed:       -5,
	KernelArgumentBindFailed: -50,
	KernelLaunchFailed:       -54,
	ReadbackFailed:           -14,
	UnsupportedFormat:        -10,
	FileNotFound:             2,
}

// String returns the kind name.
func (k ErrorKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error implements error.
func (k ErrorKind) Error() string { return "grayscale: " + k.String() }

// Code returns the default status code of the kind.
func (k ErrorKind) Code() int {
	if int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return -1
}

// Error is a failed pipeline step.
//
// Step is the human readable step description ("Creating buffers").
// Code is the status code printed in diagnostics. Arg is the kernel argument
// index for KernelArgumentBindFailed and -1 otherwise. Log carries the
// compiler build log for ProgramBuildFailed.
type Error struct {
	Kind ErrorKind
	Step string
	Code int
	Arg  int
	Log  string
	Err  error
}

// NewError returns an Error of the given kind with the kind's default code.
func NewError(kind ErrorKind, step string, err error) *Error {
	return &Error{Kind: kind, Step: step, Code: kind.Code(), Arg: -1, Err: err}
}

// NewBuildError returns a ProgramBuildFailed error carrying the build log.
func NewBuildError(step, log string, err error) *Error {
	e := NewError(ProgramBuildFailed, step, err)
	e.Log = log
	return e
}

// NewArgError returns a KernelArgumentBindFailed error for argument index.
func NewArgError(index int, err error) *Error {
	e := NewError(KernelArgumentBindFailed, fmt.Sprintf("Setting kernel argument %d", index), err)
	e.Arg = index
	return e
}

// WithCode overrides the status code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("grayscale: %s (error code %d)", e.Step, e.Code)
	}
	return fmt.Sprintf("grayscale: %s (error code %d): %v", e.Step, e.Code, e.Err)
}

// Diagnostic returns the one-line message written to the error stream
// when a conversion aborts.
func (e *Error) Diagnostic() string {
	return fmt.Sprintf("Error: %s (Error code: %d)", e.Step, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
