package ov

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// EnvInstallDir is the user-facing install directory override.
	EnvInstallDir = "OPENVINO_INSTALL_DIR"
	// EnvIntelOpenVINODir is set by the vendor's setupvars script.
	EnvIntelOpenVINODir = "INTEL_OPENVINO_DIR"

	// PluginsXMLName is the plugin descriptor the runtime uses to map device
	// names to their implementation libraries. It must sit next to the core
	// library for device plugins to resolve.
	PluginsXMLName = "plugins.xml"
)

// knownInstallSubdirectories are the relative paths under an OpenVINO install
// root where the runtime libraries are laid out, across toolkit versions.
var knownInstallSubdirectories = []string{
	"runtime/lib/intel64",
	"runtime/lib/intel64/Release",
	"runtime/bin/intel64/Release",
	"runtime/bin/intel64",
	"runtime/lib/aarch64",
	"runtime/lib/arm64",
	"runtime/lib/armhf",
	"runtime/lib",
	"lib",
	".",
}

// FindLibrary searches known OpenVINO installation layouts for the shared
// library with the given base name (for example "openvino_c") and returns its
// path. It never errors; the boolean reports whether anything was found.
//
// Search order, stopping at the first hit:
//  1. OPENVINO_INSTALL_DIR joined with each known install subdirectory.
//  2. INTEL_OPENVINO_DIR, same subdirectories.
//  3. Every directory on the platform dynamic-linker search path
//     (LD_LIBRARY_PATH, DYLD_LIBRARY_PATH or PATH), checked directly.
//  4. Fixed OS default install roots, same subdirectories.
func FindLibrary(baseName string) (string, bool) {
	return findFile(sharedLibraryFilename(baseName, runtime.GOOS))
}

// FindPluginsXML locates the plugin descriptor file using the same search
// strategy as FindLibrary.
func FindPluginsXML() (string, bool) {
	return findFile(PluginsXMLName)
}

func findFile(filename string) (string, bool) {
	for _, env := range []string{EnvInstallDir, EnvIntelOpenVINODir} {
		root := strings.TrimSpace(os.Getenv(env))
		if root == "" {
			continue
		}
		if path, ok := findInInstallRoot(root, filename); ok {
			return path, true
		}
	}

	for _, dir := range linkerSearchDirs(runtime.GOOS) {
		if path, ok := statCandidate(filepath.Join(dir, filename)); ok {
			return path, true
		}
	}

	for _, root := range defaultInstallRoots(runtime.GOOS) {
		if path, ok := findInInstallRoot(root, filename); ok {
			return path, true
		}
	}

	return "", false
}

func findInInstallRoot(root, filename string) (string, bool) {
	for _, sub := range knownInstallSubdirectories {
		if path, ok := statCandidate(filepath.Join(root, sub, filename)); ok {
			return path, true
		}
	}
	return "", false
}

func statCandidate(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return abs, true
}

// sharedLibraryFilename composes <prefix><base><suffix> for the target OS.
func sharedLibraryFilename(baseName, goos string) string {
	switch goos {
	case "windows":
		return baseName + ".dll"
	case "darwin":
		return "lib" + baseName + ".dylib"
	default:
		return "lib" + baseName + ".so"
	}
}

// linkerSearchEnv names the dynamic-linker search path variable for the OS.
func linkerSearchEnv(goos string) string {
	switch goos {
	case "windows":
		return "PATH"
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

func linkerSearchDirs(goos string) []string {
	raw := os.Getenv(linkerSearchEnv(goos))
	if raw == "" {
		return nil
	}
	var dirs []string
	for _, dir := range filepath.SplitList(raw) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func defaultInstallRoots(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files (x86)\Intel\openvino`,
			`C:\Program Files\Intel\openvino`,
		}
	case "darwin":
		return []string{
			"/opt/intel/openvino",
			"/opt/homebrew/opt/openvino",
			"/usr/local/opt/openvino",
			"/usr/local/lib",
		}
	default:
		return []string{
			"/opt/intel/openvino",
			"/opt/intel/openvino_2025",
			"/opt/intel/openvino_2024",
			"/usr/local/lib",
			"/usr/lib",
		}
	}
}
