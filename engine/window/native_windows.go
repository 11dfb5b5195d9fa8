//go:build windows

package window

import "unsafe"

// platformNativeHandles returns a zero HINSTANCE, which backends resolve to the current module, and the HWND.
func platformNativeHandles(gw *glfwWindow) (uintptr, uintptr, error) {
	return 0, uintptr(unsafe.Pointer(gw.window.GetWin32Window())), nil
}
