//go:build !windows && !((linux || freebsd || netbsd || openbsd) && !android)

package window

// platformNativeHandles is unsupported here; explicit backends need a CAMetalLayer on darwin,
// which GLFW does not create. The WGPU backend still works through SurfaceDescriptor.
func platformNativeHandles(*glfwWindow) (uintptr, uintptr, error) {
	return 0, 0, ErrNativeHandlesUnavailable
}
