//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/grayscale"
	"github.com/gogpu/wgpu/hal"
)

// Kernel argument indices, in declaration order of rgb_to_gray.
const (
	argInput = iota
	argOutput
	argWidth
	argHeight
	argChannels
	argOrder
	numArgs
)

// Status codes for argument failures, as the OpenCL runtime reports them.
const (
	codeInvalidArgIndex = -49
	codeInvalidArgValue = -50
	codeInvalidMemory   = -38
	codeArgsNotSet      = -52
)

var (
	errArgIndex   = errors.New("argument index out of range")
	errArgKind    = errors.New("argument has the wrong kind")
	errNilBuffer  = errors.New("nil buffer")
	errEmptyBuf   = errors.New("zero sized buffer")
	errArgsNotSet = errors.New("kernel argument not set")
)

type argKind uint8

const (
	kindBuffer argKind = iota + 1
	kindInt32
	kindUint32
)

var argKinds = [numArgs]argKind{
	argInput:    kindBuffer,
	argOutput:   kindBuffer,
	argWidth:    kindInt32,
	argHeight:   kindInt32,
	argChannels: kindInt32,
	argOrder:    kindUint32,
}

// boundBuffer is a buffer argument with its byte size.
type boundBuffer struct {
	buf  hal.Buffer
	size uint64
}

// kernelArgs collects the six positional arguments of rgb_to_gray and
// checks each one as it is set. The bind group is only built once every
// argument has been accepted.
type kernelArgs struct {
	set     [numArgs]bool
	buffers [numArgs]boundBuffer
	ints    [numArgs]int32
	uints   [numArgs]uint32
}

func (a *kernelArgs) check(index int, kind argKind) error {
	if index < 0 || index >= numArgs {
		return grayscale.NewArgError(index, fmt.Errorf("%w: %d", errArgIndex, index)).
			WithCode(codeInvalidArgIndex)
	}
	if argKinds[index] != kind {
		return grayscale.NewArgError(index, errArgKind).WithCode(codeInvalidArgValue)
	}
	return nil
}

func (a *kernelArgs) setBuffer(index int, buf hal.Buffer, size uint64) error {
	if err := a.check(index, kindBuffer); err != nil {
		return err
	}
	if buf == nil {
		return grayscale.NewArgError(index, errNilBuffer).WithCode(codeInvalidMemory)
	}
	if size == 0 {
		return grayscale.NewArgError(index, errEmptyBuf).WithCode(codeInvalidMemory)
	}
	a.buffers[index] = boundBuffer{buf: buf, size: size}
	a.set[index] = true
	return nil
}

func (a *kernelArgs) setInt32(index int, v int32) error {
	if err := a.check(index, kindInt32); err != nil {
		return err
	}
	switch index {
	case argWidth, argHeight:
		if v <= 0 {
			return grayscale.NewArgError(index, fmt.Errorf("dimension %d must be positive", v)).
				WithCode(codeInvalidArgValue)
		}
	case argChannels:
		if v != 1 && v != 3 && v != 4 {
			return grayscale.NewArgError(index, fmt.Errorf("unsupported channel count %d", v)).
				WithCode(codeInvalidArgValue)
		}
	}
	a.ints[index] = v
	a.set[index] = true
	return nil
}

func (a *kernelArgs) setUint32(index int, v uint32) error {
	if err := a.check(index, kindUint32); err != nil {
		return err
	}
	if index == argOrder && v > uint32(grayscale.OrderRGB) {
		return grayscale.NewArgError(index, fmt.Errorf("unsupported channel order %d", v)).
			WithCode(codeInvalidArgValue)
	}
	a.uints[index] = v
	a.set[index] = true
	return nil
}

// complete reports the first argument that was never set.
func (a *kernelArgs) complete() error {
	for i, ok := range a.set {
		if !ok {
			return grayscale.NewArgError(i, errArgsNotSet).WithCode(codeArgsNotSet)
		}
	}
	return nil
}

// params returns the uniform block for the scalar arguments, laid out as
// the Params struct of the kernel.
func (a *kernelArgs) params() []byte {
	b := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(a.ints[argWidth]))
	binary.LittleEndian.PutUint32(b[4:], uint32(a.ints[argHeight]))
	binary.LittleEndian.PutUint32(b[8:], uint32(a.ints[argChannels]))
	binary.LittleEndian.PutUint32(b[12:], a.uints[argOrder])
	return b
}

// paramsSize is the byte size of the kernel's uniform Params block.
const paramsSize = 16
