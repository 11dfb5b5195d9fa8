package window

import (
	"errors"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gpucontext"
)

var (
	// ErrNotInitialized is returned when a platform call is made before the window was spawned
	// or after it was closed.
	ErrNotInitialized = errors.New("window: not initialized")

	// ErrNativeHandlesUnavailable is returned on platforms where the window cannot expose
	// display and window handles for explicit GPU backends.
	ErrNativeHandlesUnavailable = errors.New("window: native handles unavailable on this platform")
)

// Window provides platform windowing and input event handling.
// Wraps platform-specific window implementations with a common interface.
type Window interface {
	gpucontext.WindowProvider

	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	// Width and height are in pixels and may be zero while the window is minimized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// FramebufferSize returns the drawable size in pixels.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	FramebufferSize() (int, int)

	// NativeHandles returns the platform display and window handles used to create
	// a surface on an explicit GPU backend (X11 Display*/Window, Wayland wl_display*/wl_surface*,
	// or 0/HWND on Windows).
	//
	// Returns:
	//   - uintptr: the display handle (0 where the platform has none)
	//   - uintptr: the window handle
	//   - error: ErrNotInitialized or ErrNativeHandlesUnavailable
	NativeHandles() (display, window uintptr, err error)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// RequestClose asks the message loop to stop. Safe to call from any goroutine;
	// the window is destroyed only by Close.
	RequestClose()

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls OnUpdate callback each iteration.
	// Must be called from the goroutine that created the window.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// resizable controls whether the user may resize the window.
	resizable bool

	// closeOnEscape closes the window when the escape key is pressed.
	closeOnEscape bool

	minWidth, minHeight int
	maxWidth, maxHeight int

	// mu guards the size fields, which are written on the event thread and read by the renderer.
	mu sync.RWMutex

	// width and height are the framebuffer size in pixels.
	width  int
	height int

	// logicalWidth is the client area width in screen coordinates, used for the scale factor.
	logicalWidth int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow creates and spawns a new Window with the specified options.
// Applies default values first, then each option in order. The calling goroutine is locked
// to its OS thread, and ProcessMessages must later be called from it.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	return w, nil
}

// newEngineWindow applies defaults and options without touching the platform layer.
func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:         "Hello Triangle",
		resizable:     true,
		closeOnEscape: true,
		minWidth:      200,
		minHeight:     150,
		maxWidth:      3840,
		maxHeight:     2160,
		width:         800,
		height:        600,
	}
	for _, opt := range options {
		opt(w)
	}
	w.width = clamp(w.width, w.minWidth, w.maxWidth)
	w.height = clamp(w.height, w.minHeight, w.maxHeight)
	w.logicalWidth = w.width
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) FramebufferSize() (int, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.width, w.height
}

func (w *engineWindow) NativeHandles() (uintptr, uintptr, error) {
	gw, ok := w.internalWindow.(*glfwWindow)
	if !ok || gw == nil {
		return 0, 0, ErrNotInitialized
	}
	return platformNativeHandles(gw)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) RequestClose() {
	platformRequestClose(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	width, _ := w.FramebufferSize()
	return width
}

func (w *engineWindow) Height() int {
	_, height := w.FramebufferSize()
	return height
}

// Size returns the client area in logical points.
func (w *engineWindow) Size() (int, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	scale := w.scaleLocked()
	return int(float64(w.width) / scale), int(float64(w.height) / scale)
}

func (w *engineWindow) ScaleFactor() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scaleLocked()
}

// RequestRedraw wakes the event loop. Rendering is continuous so no frame is scheduled.
func (w *engineWindow) RequestRedraw() {
	platformWake(w)
}

func (w *engineWindow) scaleLocked() float64 {
	if w.logicalWidth <= 0 || w.width <= 0 {
		return 1
	}
	return float64(w.width) / float64(w.logicalWidth)
}

// framebufferResized stores the new pixel size and notifies the resize callback.
func (w *engineWindow) framebufferResized(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

// windowResized records the logical client width used for the scale factor.
func (w *engineWindow) windowResized(width int) {
	w.mu.Lock()
	w.logicalWidth = width
	w.mu.Unlock()
}

func (w *engineWindow) keyPressed(keyCode uint32) {
	if w.onKeyDown != nil {
		w.onKeyDown(keyCode)
	}
}

func (w *engineWindow) keyReleased(keyCode uint32) {
	if w.onKeyUp != nil {
		w.onKeyUp(keyCode)
	}
}

func clamp(v, lo, hi int) int {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
