//go:build (linux || freebsd || netbsd || openbsd) && !wayland && !android

package window

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// platformNativeHandles returns the Xlib Display* and the X11 window id.
func platformNativeHandles(gw *glfwWindow) (uintptr, uintptr, error) {
	display := uintptr(unsafe.Pointer(glfw.GetX11Display()))
	return display, uintptr(gw.window.GetX11Window()), nil
}
