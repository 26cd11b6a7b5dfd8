//go:build ovstatic

package ov

import "runtime"

// With the ovstatic tag the program is expected to be linked against the
// OpenVINO runtime at build time (cgo LDFLAGS or an embedding wrapper), so
// the runtime image is already mapped into the process. Filesystem discovery
// is skipped entirely: opening the bare soname hands back the mapped image
// through the system loader without touching the search paths.
func findRuntimeLibrary() (string, bool) {
	return sharedLibraryFilename(LibraryBaseName, runtime.GOOS), true
}
