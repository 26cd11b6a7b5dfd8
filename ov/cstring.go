package ov

import "unsafe"

// cstringToGo converts a C null-terminated string pointer to a Go string.
// Returns empty string if ptr is 0 (null).
func cstringToGo(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}

	// Find the null terminator using a large but valid slice. A conservative
	// max length avoids checkptr issues when scanning natively-owned memory:
	// only bytes up to the terminator are read, and OpenVINO strings (device
	// names, build numbers, error descriptions) are far below 1MB.
	const maxStringLen = 1 << 20
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), maxStringLen)

	var length int
	for i := 0; i < maxStringLen; i++ {
		if bytes[i] == 0 {
			length = i
			break
		}
	}

	return string(bytes[:length])
}

// goToCstring converts a Go string to a null-terminated byte buffer for calls
// whose registered signature takes a raw pointer (optional C string
// parameters, where a Go string cannot express null).
//
// The caller must keep the returned []byte alive across the native call.
func goToCstring(s string) ([]byte, uintptr) {
	b := append([]byte(s), 0)
	return b, uintptr(unsafe.Pointer(&b[0]))
}
