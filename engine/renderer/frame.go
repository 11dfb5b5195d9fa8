package renderer

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer/shader"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
)

// ClearColor is the color every frame clears its target to before drawing.
var ClearColor = gputypes.Color{R: 0.2, G: 0.2, B: 0.25, A: 1.0}

// FrameState is the position of the renderer within a frame.
type FrameState int

const (
	FrameStateIdle FrameState = iota
	FrameStateAcquiredSurface
	FrameStateRecording
	FrameStateEncoding
	FrameStateSubmitted
	FrameStatePresented
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "Idle"
	case FrameStateAcquiredSurface:
		return "AcquiredSurface"
	case FrameStateRecording:
		return "Recording"
	case FrameStateEncoding:
		return "Encoding"
	case FrameStateSubmitted:
		return "Submitted"
	case FrameStatePresented:
		return "Presented"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// FrameOutcome is how a RenderFrame call ended.
type FrameOutcome int

const (
	// FramePresented means the frame was submitted and handed to the host for display.
	FramePresented FrameOutcome = iota

	// FrameSkipped means nothing was submitted because the host had no target this tick.
	FrameSkipped

	// FrameFailed means a device error aborted the frame. The renderer stays usable.
	FrameFailed
)

func (o FrameOutcome) String() string {
	switch o {
	case FramePresented:
		return "presented"
	case FrameSkipped:
		return "skipped"
	case FrameFailed:
		return "failed"
	default:
		return fmt.Sprintf("FrameOutcome(%d)", int(o))
	}
}

// SkipReason explains a skipped frame.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipNoImage
	SkipNoRenderPass
)

// FrameResult reports the outcome of one RenderFrame call.
type FrameResult struct {
	Outcome FrameOutcome
	Skip    SkipReason

	// Frame is the index of the submitted frame, counting from zero. Only meaningful when presented.
	Frame uint64

	// Submission is the queue submission index signaled on the image.
	Submission uint64

	Err error
}

// FrameStats counts what the renderer has done across frames.
type FrameStats struct {
	Presented uint64
	Skipped   uint64
	Failed    uint64

	// Resets counts allocator resets, one per recorded frame.
	Resets uint64

	// Waits counts frames that blocked on the previous submission.
	Waits uint64

	// Draws counts draw calls encoded.
	Draws uint64
}

// RenderFrame renders the triangle into the host's next image.
//
// Parameters:
//   - host: the host that provides and presents the image
//
// Returns:
//   - FrameResult: the frame outcome
func (r *renderer) RenderFrame(host surface.Host) FrameResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return FrameResult{Outcome: FrameFailed, Err: ErrReleased}
	}
	if host == nil {
		r.stats.Skipped++
		return FrameResult{Outcome: FrameSkipped, Skip: SkipNoImage}
	}

	image := host.NextPresentableImage()
	if image == nil {
		r.stats.Skipped++
		return FrameResult{Outcome: FrameSkipped, Skip: SkipNoImage}
	}
	r.transition(FrameStateAcquiredSurface)

	if err := r.unit.Synchronize(); err != nil {
		return r.fail(image, false, fmt.Errorf("synchronize: %w", err))
	}
	r.stats.Waits = r.unit.Waits()
	r.unit.Reset()
	r.stats.Resets++
	if err := r.unit.Begin(); err != nil {
		return r.fail(image, false, fmt.Errorf("begin recording: %w", err))
	}
	r.transition(FrameStateRecording)

	desc := host.CurrentRenderPassDescriptor()
	if desc == nil {
		r.unit.Discard()
		image.Discard()
		r.transition(FrameStateIdle)
		r.stats.Skipped++
		return FrameResult{Outcome: FrameSkipped, Skip: SkipNoRenderPass}
	}
	if desc.Format != r.colorFormat {
		return r.fail(image, true, fmt.Errorf("%w: target %s, pipeline %s", ErrFormatMismatch, desc.Format, r.colorFormat))
	}

	pass := *desc
	pass.ClearColor = ClearColor
	pass.LoadOp = gputypes.LoadOpClear
	pass.StoreOp = gputypes.StoreOpStore

	if err := r.encode(&pass); err != nil {
		return r.fail(image, true, err)
	}

	if err := r.unit.End(); err != nil {
		return r.fail(image, true, fmt.Errorf("end recording: %w", err))
	}
	submission, err := r.unit.Commit()
	if err != nil {
		return r.fail(image, false, fmt.Errorf("commit: %w", err))
	}
	r.transition(FrameStateSubmitted)

	image.Signal(submission)
	if err := image.Present(); err != nil {
		// The work is already on the queue, so the frame counts as submitted even though display failed.
		r.transition(FrameStateIdle)
		r.stats.Failed++
		common.Logger().Warn("present failed", "submission", submission, "err", err)
		return FrameResult{Outcome: FrameFailed, Submission: submission, Err: fmt.Errorf("present: %w", err)}
	}
	r.transition(FrameStatePresented)

	frame := r.stats.Presented
	r.stats.Presented++
	r.transition(FrameStateIdle)

	common.Logger().Debug("frame presented", "frame", frame, "submission", submission)
	return FrameResult{Outcome: FramePresented, Frame: frame, Submission: submission}
}

// encode records the triangle's render pass.
func (r *renderer) encode(desc *surface.RenderPassDescriptor) error {
	enc, err := r.unit.BeginRenderPass(desc)
	if err != nil {
		return fmt.Errorf("begin render pass: %w", err)
	}
	r.transition(FrameStateEncoding)

	err = errors.Join(
		enc.SetPipelineState(r.pipeline),
		enc.SetBindingTable(r.table, shader.ShaderTypeVertex),
	)
	if err == nil {
		err = enc.DrawPrimitives(r.model.Topology(), 0, uint32(r.model.VertexCount()))
		if err == nil {
			r.stats.Draws++
		}
	}
	if endErr := enc.EndEncoding(); err == nil && endErr != nil {
		err = endErr
	}
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// fail aborts the current frame and returns the renderer to Idle.
func (r *renderer) fail(image surface.PresentableImage, recording bool, err error) FrameResult {
	if recording {
		r.unit.Discard()
	}
	image.Discard()
	r.transition(FrameStateIdle)
	r.stats.Failed++
	common.Logger().Warn("frame failed", "err", err)
	return FrameResult{Outcome: FrameFailed, Err: err}
}

func (r *renderer) transition(to FrameState) {
	from := r.state
	r.state = to
	if r.observer != nil {
		r.observer(from, to)
	}
}
