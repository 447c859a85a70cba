//go:build !nogpu

package gpu

import (
	"crypto/sha256"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/grayscale"
	"github.com/gogpu/grayscale/internal/cache"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/spirv"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/rgb_to_gray.wgsl
var rgbToGraySource string

// kernelEntryPoint is the compute entry point of rgb_to_gray.wgsl.
const kernelEntryPoint = "rgb_to_gray"

// Program build steps.
const (
	stepCreateProgram = "Creating program"
	stepBuildProgram  = "Building program"
	stepCreateKernel  = "Creating kernel"
)

// Bind group slots of the kernel.
const (
	bindingPixels = 0
	bindingLuma   = 1
	bindingParams = 2
)

// multiErrorFormatter is implemented by the WGSL lowering error list.
type multiErrorFormatter interface {
	FormatAll() string
}

// buildLog collects compiler diagnostics, one stage-prefixed line each.
type buildLog struct {
	sb strings.Builder
}

func (l *buildLog) add(stage string, err error) {
	var text string
	var f multiErrorFormatter
	if errors.As(err, &f) {
		text = f.FormatAll()
	} else {
		text = err.Error()
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(&l.sb, "%s: %s\n", stage, line)
	}
}

func (l *buildLog) String() string { return l.sb.String() }

// CompileKernel compiles WGSL kernel source to SPIR-V words.
//
// On failure it returns a ProgramBuildFailed error whose Log holds every
// diagnostic the failing stage produced.
func CompileKernel(source string) ([]uint32, error) {
	var log buildLog

	ast, err := naga.Parse(source)
	if err != nil {
		log.add("parse", err)
		return nil, grayscale.NewBuildError(stepBuildProgram, log.String(), err)
	}

	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		log.add("lower", err)
		return nil, grayscale.NewBuildError(stepBuildProgram, log.String(), err)
	}

	verrs, err := naga.Validate(module)
	if err != nil {
		log.add("validate", err)
		return nil, grayscale.NewBuildError(stepBuildProgram, log.String(), err)
	}
	if len(verrs) > 0 {
		for i := range verrs {
			log.add("validate", &verrs[i])
		}
		return nil, grayscale.NewBuildError(stepBuildProgram, log.String(),
			fmt.Errorf("%d validation errors: %w", len(verrs), &verrs[0]))
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		log.add("spirv", err)
		return nil, grayscale.NewBuildError(stepBuildProgram, log.String(), err)
	}
	if len(code)%4 != 0 {
		err = fmt.Errorf("SPIR-V output is %d bytes, not a whole number of words", len(code))
		log.add("spirv", err)
		return nil, grayscale.NewBuildError(stepBuildProgram, log.String(), err)
	}

	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// compiledKernels holds SPIR-V by source hash for the life of the process.
// Only successful builds are stored.
var compiledKernels = cache.New[[sha256.Size]byte, []uint32](8)

// compileCached returns the SPIR-V for source, compiling it on first use.
// The returned slice is shared and must not be modified.
func compileCached(source string) ([]uint32, error) {
	key := sha256.Sum256([]byte(source))
	if words, ok := compiledKernels.Get(key); ok {
		return words, nil
	}
	words, err := CompileKernel(source)
	if err != nil {
		return nil, err
	}
	compiledKernels.Set(key, words)
	return words, nil
}

// Program is the compiled rgb_to_gray kernel on one device.
type Program struct {
	module   hal.ShaderModule
	layout   hal.BindGroupLayout
	pipeLay  hal.PipelineLayout
	pipeline hal.ComputePipeline
}

// newProgram compiles source and creates the compute pipeline on device.
// Every created object is pushed on res, so a failure at any step leaves
// res holding exactly what must be destroyed.
func newProgram(device hal.Device, source string, res *releaser) (*Program, error) {
	words, err := compileCached(source)
	if err != nil {
		return nil, err
	}
	slogger().Debug("gpu: kernel ready", "entry", kernelEntryPoint, "spirv_words", len(words))

	p := &Program{}

	// Backends that take WGSL directly prefer it; the rest use the SPIR-V.
	p.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "rgb_to_gray",
		Source: hal.ShaderSource{WGSL: source, SPIRV: words},
	})
	if err != nil {
		return nil, grayscale.NewError(grayscale.ProgramBuildFailed, stepCreateProgram,
			fmt.Errorf("create shader module: %w", err))
	}
	module := p.module
	res.push("shader module", func() { device.DestroyShaderModule(module) })

	p.layout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "rgb_to_gray_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    bindingPixels,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    bindingLuma,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
			{
				Binding:    bindingParams,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, grayscale.NewError(grayscale.ProgramBuildFailed, stepCreateKernel,
			fmt.Errorf("create bind group layout: %w", err))
	}
	layout := p.layout
	res.push("bind group layout", func() { device.DestroyBindGroupLayout(layout) })

	p.pipeLay, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "rgb_to_gray_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return nil, grayscale.NewError(grayscale.ProgramBuildFailed, stepCreateKernel,
			fmt.Errorf("create pipeline layout: %w", err))
	}
	pipeLay := p.pipeLay
	res.push("pipeline layout", func() { device.DestroyPipelineLayout(pipeLay) })

	p.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "rgb_to_gray_pipeline",
		Layout: p.pipeLay,
		Compute: hal.ComputeState{
			Module:     p.module,
			EntryPoint: kernelEntryPoint,
		},
	})
	if err != nil {
		return nil, grayscale.NewError(grayscale.ProgramBuildFailed, stepCreateKernel,
			fmt.Errorf("create compute pipeline: %w", err))
	}
	pipeline := p.pipeline
	res.push("compute pipeline", func() { device.DestroyComputePipeline(pipeline) })

	return p, nil
}
