//go:build (linux || freebsd || netbsd || openbsd) && wayland && !android

package window

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// platformNativeHandles returns the wl_display* and the window's wl_surface*.
func platformNativeHandles(gw *glfwWindow) (uintptr, uintptr, error) {
	display := uintptr(unsafe.Pointer(glfw.GetWaylandDisplay()))
	return display, uintptr(unsafe.Pointer(gw.window.GetWaylandWindow())), nil
}
