package renderer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCompatibleDevice is returned when no adapter satisfies the renderer's feature tier.
	ErrNoCompatibleDevice = errors.New("renderer: no compatible device")

	// ErrBufferAllocation is returned when the vertex buffer cannot be created or filled.
	ErrBufferAllocation = errors.New("renderer: buffer allocation failed")

	// ErrSubmissionUnit is returned when the command queue, command buffer or allocator cannot be created.
	ErrSubmissionUnit = errors.New("renderer: submission unit creation failed")

	// ErrSurface is returned when the window surface host cannot be created.
	ErrSurface = errors.New("renderer: surface creation failed")

	// ErrUnknownBackend is returned for an unsupported RendererBackendType.
	ErrUnknownBackend = errors.New("renderer: unknown backend type")

	// ErrHostUnsupported is returned when a backend cannot create the requested kind of host.
	ErrHostUnsupported = errors.New("renderer: host not supported by backend")

	// ErrFormatMismatch is returned by a frame whose render pass targets a format the pipeline was not built for.
	ErrFormatMismatch = errors.New("renderer: render target format mismatch")

	// ErrReleased is returned when a released renderer is asked to render.
	ErrReleased = errors.New("renderer: released")
)

// InitStage names the initialization step that failed.
type InitStage int

const (
	InitStageDevice InitStage = iota
	InitStageVertexBuffer
	InitStageBindingTable
	InitStagePipeline
	InitStageSubmissionUnit
	InitStageSurface
)

// String returns the lowercase stage name.
func (s InitStage) String() string {
	switch s {
	case InitStageDevice:
		return "device"
	case InitStageVertexBuffer:
		return "vertex buffer"
	case InitStageBindingTable:
		return "binding table"
	case InitStagePipeline:
		return "pipeline"
	case InitStageSubmissionUnit:
		return "submission unit"
	case InitStageSurface:
		return "surface"
	default:
		return fmt.Sprintf("InitStage(%d)", int(s))
	}
}

// InitError reports a failed renderer initialization.
// Err wraps one of the package sentinels or a pipeline error and can be inspected with errors.Is.
type InitError struct {
	Stage InitStage
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("renderer init failed at %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

var (
	errEncoderEnded     = errors.New("renderer: render pass already ended")
	errNoPipelineBound  = errors.New("renderer: no pipeline bound")
	errTopologyMismatch = errors.New("renderer: topology differs from bound pipeline")
	errForeignObject    = errors.New("renderer: object belongs to another backend")
	errStageUnsupported = errors.New("renderer: stage cannot consume buffer bindings")
	errNotRecording     = errors.New("renderer: submission unit is not recording")
)
