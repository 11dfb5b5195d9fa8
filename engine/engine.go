package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/profiler"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer"
	"github.com/Carmen-Shannon/hello-triangle/engine/surface"
	"github.com/Carmen-Shannon/hello-triangle/engine/window"
)

var (
	// ErrNoRenderer is returned by NewEngine when no renderer was provided.
	ErrNoRenderer = errors.New("engine: no renderer")

	// ErrNoHost is returned by NewEngine when neither a host nor a renderer-owned window host is available.
	ErrNoHost = errors.New("engine: no surface host")
)

// skipBackoff is how long the render loop sleeps after a frame was skipped, e.g. while minimized.
const skipBackoff = 5 * time.Millisecond

// engine implements the Engine interface.
// Coordinates the tick, render and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	host     surface.Host

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32, result renderer.FrameResult)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // presented frames before the loop quits; 0 = unlimited
}

// Engine is the main entry point for the engine.
// It drives the renderer once per render tick against a surface host, and pumps window events.
type Engine interface {
	// Window returns the underlying window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer driven by the render loop.
	Renderer() renderer.Renderer

	// Host returns the surface host frames are rendered into.
	Host() surface.Host

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each render frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds and the frame's result
	SetRenderCallback(callback func(deltaTime float32, result renderer.FrameResult))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the engine. With a window it pumps window events on the calling goroutine
	// until the window closes; headless it blocks until Quit is called or the frame cap is reached.
	// The renderer is not released by Run.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// A renderer is required. The host defaults to the renderer's window host.
// Window resize events are forwarded to the host and then to the renderer.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: ErrNoRenderer or ErrNoHost
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.renderer == nil {
		return nil, ErrNoRenderer
	}
	if e.host == nil {
		e.host = e.renderer.SurfaceHost()
	}
	if e.host == nil {
		return nil, ErrNoHost
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.resize)
	}

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Host() surface.Host {
	return e.host
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)
}

// Quit signals all engine goroutines to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once. A window is asked to close so Run returns.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// resize forwards a framebuffer size change to the host and then the renderer.
func (e *engine) resize(width, height int) {
	e.host.OnSizeChanged(width, height)
	e.renderer.Resize(width, height)
}

// handle launches the tick and render goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each iteration renders exactly one frame into the host.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		result := e.renderer.RenderFrame(e.host)
		if errors.Is(result.Err, renderer.ErrReleased) {
			e.signalQuit()
			return
		}

		if e.renderCallback != nil {
			e.renderCallback(dt, result)
		}

		stats := e.renderer.Stats()
		if e.profilingEnabled.Load() && e.profiler != nil {
			e.profiler.Tick(stats)
		}

		if e.maxFrames > 0 && stats.Presented >= e.maxFrames {
			common.Logger().Info("frame limit reached", "frames", stats.Presented)
			e.signalQuit()
			return
		}

		wait := time.Duration(0)
		if e.renderFrameLimit > 0 {
			wait = e.renderFrameLimit - time.Since(lastRender)
		}
		if result.Outcome == renderer.FrameSkipped && wait < skipBackoff {
			wait = skipBackoff
		}
		if wait > 0 {
			select {
			case <-e.quitChannel:
				return
			case <-time.After(wait):
			}
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Non-blocking send; a pending update is replaced by the new value.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called after each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32, result renderer.FrameResult)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a frame rate into a minimum frame duration, 0 when uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
