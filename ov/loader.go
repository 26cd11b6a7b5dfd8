package ov

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// LibraryBaseName is the base name of the OpenVINO C API shared library,
// expanded per platform to libopenvino_c.so, libopenvino_c.dylib or
// openvino_c.dll.
const LibraryBaseName = "openvino_c"

// ErrLibraryNotFound is returned by Load when no OpenVINO runtime library
// could be located in any of the known installation layouts.
var ErrLibraryNotFound = errors.New("openvino runtime shared library not found")

// ErrPluginsXMLNotFound is returned by NewCoreWithConfig when asked to
// auto-discover the plugin descriptor and none exists in any known layout.
var ErrPluginsXMLNotFound = errors.New("openvino plugins.xml descriptor not found")

// Loader resolves the OpenVINO C API into a process-shared symbol table.
//
// A Loader starts unloaded; the first successful Load (or LoadFromPath)
// installs a symbol table that all proxy calls read through. Loading again
// opens a fresh library handle and atomically replaces the table. Callers
// that picked up the old table before the swap - including handles created
// against it - keep working against the old library instance; the old table
// and its handle stay alive until the last reference is dropped.
//
// Most programs use the package-level DefaultLoader via Load(), but the
// loader is an explicit value so applications can construct and inject their
// own (for example to bind two runtime versions side by side in tests).
type Loader struct {
	mu  sync.RWMutex
	tab *apiTable
}

// DefaultLoader is the loader used by the package-level constructors.
var DefaultLoader = &Loader{}

// Load locates the OpenVINO runtime with FindLibrary and resolves the symbol
// table from it. It fails with ErrLibraryNotFound when no library is present,
// or with an error wrapping the OS loader message when the file cannot be
// opened. Individual symbols that fail to resolve are not fatal here; they
// become fatal on first use.
func Load() error { return DefaultLoader.Load() }

// LoadFromPath is like Load but skips discovery and opens the given file.
func LoadFromPath(path string) error { return DefaultLoader.LoadFromPath(path) }

func (l *Loader) Load() error {
	path, ok := findRuntimeLibrary()
	if !ok {
		return fmt.Errorf("%w: set %s or %s, or install the toolkit under a default root",
			ErrLibraryNotFound, EnvInstallDir, EnvIntelOpenVINODir)
	}
	return l.LoadFromPath(path)
}

func (l *Loader) LoadFromPath(path string) error {
	handle, err := openLibrary(path)
	if err != nil {
		return fmt.Errorf("failed to load openvino runtime: %w", err)
	}

	tab := resolveAPITable(handle, path)
	tab.closeLib = func() { _ = closeLibrary(handle) }
	retireOnCollect(tab)

	l.mu.Lock()
	l.tab = tab
	l.mu.Unlock()
	return nil
}

// retireOnCollect closes the table's library handle once nothing references
// the table anymore. Wrappers hold the table they were created against, so
// the library is never closed while a call can still enter it.
func retireOnCollect(tab *apiTable) {
	if tab.closeLib == nil {
		return
	}
	runtime.SetFinalizer(tab, func(tab *apiTable) { tab.closeLib() })
}

// Loaded reports whether a symbol table has been installed.
func (l *Loader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tab != nil
}

// LibraryPath returns the path of the currently loaded runtime library.
func (l *Loader) LibraryPath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.tab == nil {
		return ""
	}
	return l.tab.libraryPath
}

// MissingSymbols returns the sorted names of symbols the current table could
// not resolve. Calling any of them panics, so this is the way to probe for
// runtime version mismatches up front.
func (l *Loader) MissingSymbols() []string {
	l.mu.RLock()
	tab := l.tab
	l.mu.RUnlock()
	if tab == nil {
		return nil
	}
	names := make([]string, 0, len(tab.missing))
	for name := range tab.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// api snapshots the current symbol table. The read lock is held only for the
// pointer copy; the returned table stays valid across a concurrent reload
// because the swap never mutates an installed table.
//
// Calling api before a successful Load is a programmer error the caller
// cannot recover from, so it panics.
func (l *Loader) api() *apiTable {
	l.mu.RLock()
	tab := l.tab
	l.mu.RUnlock()
	if tab == nil {
		panic("openvino: runtime not loaded; call ov.Load() first")
	}
	return tab
}
