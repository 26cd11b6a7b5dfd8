//go:build !ovstatic

package ov

// findRuntimeLibrary locates the runtime on disk before opening it.
func findRuntimeLibrary() (string, bool) {
	return FindLibrary(LibraryBaseName)
}
