package grayscale

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
		code int
	}{
		{DeviceUnavailable, "DeviceUnavailable", -1},
		{ContextCreationFailed, "ContextCreationFailed", -2},
		{QueueCreationFailed, "QueueCreationFailed", -36},
		{ProgramBuildFailed, "ProgramBuildFailed", -11},
		{BufferAllocationFailed, "BufferAllocationFailed", -4},
		{DataTransferFailed, "DataTransferFailed", -5},
		{KernelArgumentBindFailed, "KernelArgumentBindFailed", -50},
		{KernelLaunchFailed, "KernelLaunchFailed", -54},
		{ReadbackFailed, "ReadbackFailed", -14},
		{UnsupportedFormat, "UnsupportedFormat", -10},
		{FileNotFound, "FileNotFound", 2},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.kind.Code(); got != tt.code {
			t.Errorf("%s.Code() = %d, want %d", tt.want, got, tt.code)
		}
	}
	if got := ErrorKind(200).String(); got != "ErrorKind(200)" {
		t.Errorf("unknown kind String() = %q", got)
	}
}

func TestErrorDiagnostic(t *testing.T) {
	err := NewError(BufferAllocationFailed, "Creating buffers", errors.New("out of memory"))
	if got := err.Diagnostic(); got != "Error: Creating buffers (Error code: -4)" {
		t.Errorf("Diagnostic() = %q", got)
	}
	if got := err.WithCode(-61).Diagnostic(); got != "Error: Creating buffers (Error code: -61)" {
		t.Errorf("Diagnostic() after WithCode = %q", got)
	}
	if !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("Error() = %q, want cause", err.Error())
	}
	if err.Arg != -1 {
		t.Errorf("Arg = %d, want -1", err.Arg)
	}
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("driver lost")
	var err error = fmt.Errorf("convert: %w", NewError(ReadbackFailed, "Reading from output buffer", cause))

	if !errors.Is(err, ReadbackFailed) {
		t.Error("errors.Is(err, ReadbackFailed) = false")
	}
	if errors.Is(err, KernelLaunchFailed) {
		t.Error("errors.Is(err, KernelLaunchFailed) = true")
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if got := KindOf(err); got != ReadbackFailed {
		t.Errorf("KindOf() = %v, want ReadbackFailed", got)
	}
	if got := KindOf(cause); got != 0 {
		t.Errorf("KindOf(plain error) = %v, want 0", got)
	}
}

func TestArgAndBuildErrors(t *testing.T) {
	arg := NewArgError(3, errors.New("bad value"))
	if arg.Kind != KernelArgumentBindFailed || arg.Arg != 3 {
		t.Errorf("NewArgError = %+v", arg)
	}
	if arg.Step != "Setting kernel argument 3" {
		t.Errorf("Step = %q", arg.Step)
	}

	build := NewBuildError("Building program", "1:5 unexpected token", nil)
	if build.Kind != ProgramBuildFailed || build.Log != "1:5 unexpected token" {
		t.Errorf("NewBuildError = %+v", build)
	}
	if !strings.HasSuffix(build.Error(), "(error code -11)") {
		t.Errorf("Error() = %q", build.Error())
	}
}
