package ov

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

const cacheEntryPrefix = "openvino-"

var errRuntimeNotFound = errors.New("OpenVINO runtime shared library not found")
var cacheFallbackWarnOnce sync.Once

// archiveVersionPattern extracts the toolkit version from archive names such
// as l_openvino_toolkit_ubuntu22_2024.3.0.16041.1e3b88e4e3f_x86_64.tgz.
var archiveVersionPattern = regexp.MustCompile(`(\d{4})\.(\d+)\.(\d+)`)

// BootstrapOption configures EnsureRuntimeSharedLibrary and
// InstallRuntimeArchive.
type BootstrapOption func(*bootstrapConfig) error

type bootstrapConfig struct {
	libraryPath    string
	cacheDir       string
	version        string
	expectedSHA256 string
}

// WithLibraryPath forces bootstrap to use an existing runtime library path.
func WithLibraryPath(path string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("library path cannot be empty")
		}
		cfg.libraryPath = path
		return nil
	}
}

// WithCacheDir sets the cache directory used for installed runtimes.
func WithCacheDir(dir string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return fmt.Errorf("cache directory cannot be empty")
		}
		cfg.cacheDir = dir
		return nil
	}
}

// WithVersion pins the toolkit version to resolve from the cache, or the
// version recorded when installing an archive (for example: 2024.3.0).
func WithVersion(version string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		version = strings.TrimSpace(version)
		if version == "" {
			return fmt.Errorf("version cannot be empty")
		}
		cfg.version = version
		return nil
	}
}

// WithExpectedSHA256 enforces an expected checksum for an installed archive.
func WithExpectedSHA256(checksum string) BootstrapOption {
	return func(cfg *bootstrapConfig) error {
		checksum = strings.TrimSpace(strings.ToLower(checksum))
		if checksum == "" {
			return fmt.Errorf("expected SHA256 checksum cannot be empty")
		}
		if len(checksum) != 64 {
			return fmt.Errorf("expected SHA256 checksum must be 64 hex characters")
		}
		for _, r := range checksum {
			if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
				return fmt.Errorf("expected SHA256 checksum must be lowercase hex")
			}
		}
		cfg.expectedSHA256 = checksum
		return nil
	}
}

// EnsureRuntimeSharedLibrary resolves an OpenVINO runtime shared library and
// returns its absolute path without loading it. Resolution order:
//
//  1. An explicit path (WithLibraryPath or OPENVINO_LIB_PATH).
//  2. System installations via FindLibrary.
//  3. The newest runtime installed into the cache by InstallRuntimeArchive
//     (or the pinned one when WithVersion/OPENVINO_VERSION is set).
//
// There is no download path: toolkit archive URLs embed per-build hashes that
// cannot be derived from a version number, so archives are obtained by the
// caller and handed to InstallRuntimeArchive.
func EnsureRuntimeSharedLibrary(opts ...BootstrapOption) (string, error) {
	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		return "", err
	}

	if cfg.libraryPath != "" {
		return validateLibraryFile(cfg.libraryPath)
	}

	if path, ok := FindLibrary(LibraryBaseName); ok {
		return path, nil
	}

	path, err := resolveCachedRuntime(cfg)
	if err != nil {
		if errors.Is(err, errRuntimeNotFound) {
			return "", fmt.Errorf("%w: no system installation and nothing in cache %q; install a toolkit archive with InstallRuntimeArchive or set %s",
				errRuntimeNotFound, cfg.cacheDir, EnvInstallDir)
		}
		return "", err
	}
	return path, nil
}

// InitializeWithBootstrap resolves a runtime library via bootstrap and loads
// it into the default loader.
func InitializeWithBootstrap(opts ...BootstrapOption) error {
	path, err := EnsureRuntimeSharedLibrary(opts...)
	if err != nil {
		return err
	}
	return LoadFromPath(path)
}

// InstallRuntimeArchive extracts a locally downloaded OpenVINO toolkit
// archive (.tgz or .zip) into the cache and returns the path of the runtime
// shared library inside the installed tree. Concurrent installs of the same
// version are serialized with a file lock; extraction goes through a staging
// directory and is renamed into place only after the library is found.
func InstallRuntimeArchive(archivePath string, opts ...BootstrapOption) (string, error) {
	cfg, err := resolveBootstrapConfig(opts...)
	if err != nil {
		return "", err
	}

	archivePath, err = validateLibraryFile(archivePath)
	if err != nil {
		return "", fmt.Errorf("invalid archive path: %w", err)
	}

	version := cfg.version
	if version == "" {
		version = versionFromArchiveName(filepath.Base(archivePath))
	}
	if version == "" {
		return "", fmt.Errorf("cannot determine toolkit version from archive name %q; pass WithVersion", filepath.Base(archivePath))
	}
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return "", fmt.Errorf("invalid toolkit version %q: %w", version, err)
	}
	version = parsed.String()

	if cfg.expectedSHA256 != "" {
		checksum, err := fileSHA256(archivePath)
		if err != nil {
			return "", err
		}
		if checksum != cfg.expectedSHA256 {
			return "", fmt.Errorf("archive checksum mismatch: expected %s, got %s", cfg.expectedSHA256, checksum)
		}
	}

	if err := os.MkdirAll(cfg.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory %q: %w", cfg.cacheDir, err)
	}

	installDir := filepath.Join(cfg.cacheDir, cacheEntryPrefix+version)
	lockPath := filepath.Join(cfg.cacheDir, ".locks", version+".lock")

	var resolvedPath string
	if err := withProcessFileLock(lockPath, func() error {
		if path, resolveErr := resolveInstalledLibraryPath(installDir); resolveErr == nil {
			resolvedPath = path
			return nil
		} else if !errors.Is(resolveErr, errRuntimeNotFound) {
			return resolveErr
		}

		if err := extractAndInstallArchive(archivePath, installDir); err != nil {
			return err
		}

		path, resolveErr := resolveInstalledLibraryPath(installDir)
		if resolveErr != nil {
			return fmt.Errorf("archive installed but shared library could not be resolved: %w", resolveErr)
		}
		resolvedPath = path
		return nil
	}); err != nil {
		return "", err
	}

	return resolvedPath, nil
}

func resolveBootstrapConfig(opts ...BootstrapOption) (bootstrapConfig, error) {
	cfg := bootstrapConfig{
		libraryPath: strings.TrimSpace(os.Getenv("OPENVINO_LIB_PATH")),
		cacheDir:    strings.TrimSpace(os.Getenv("OPENVINO_CACHE_DIR")),
		version:     strings.TrimSpace(os.Getenv("OPENVINO_VERSION")),
	}

	if cfg.cacheDir == "" {
		cfg.cacheDir = defaultCacheDir()
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return bootstrapConfig{}, err
		}
	}

	if cfg.version != "" {
		parsed, err := semver.NewVersion(cfg.version)
		if err != nil {
			return bootstrapConfig{}, fmt.Errorf("invalid toolkit version %q: %w", cfg.version, err)
		}
		cfg.version = parsed.String()
	}

	if cfg.cacheDir == "" {
		return bootstrapConfig{}, fmt.Errorf("cache directory is empty")
	}
	cfg.cacheDir = filepath.Clean(cfg.cacheDir)

	return cfg, nil
}

// resolveCachedRuntime picks the cache entry matching the pinned version or,
// with no pin, the newest installed version by semantic comparison.
func resolveCachedRuntime(cfg bootstrapConfig) (string, error) {
	if cfg.version != "" {
		return resolveInstalledLibraryPath(filepath.Join(cfg.cacheDir, cacheEntryPrefix+cfg.version))
	}

	entries, err := os.ReadDir(cfg.cacheDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errRuntimeNotFound
		}
		return "", fmt.Errorf("failed to read cache directory %q: %w", cfg.cacheDir, err)
	}

	var versions semver.Collection
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), cacheEntryPrefix) {
			continue
		}
		v, err := semver.NewVersion(strings.TrimPrefix(entry.Name(), cacheEntryPrefix))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return "", errRuntimeNotFound
	}
	sort.Sort(sort.Reverse(versions))

	var invalid []error
	for _, v := range versions {
		path, err := resolveInstalledLibraryPath(filepath.Join(cfg.cacheDir, cacheEntryPrefix+v.String()))
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, errRuntimeNotFound) {
			invalid = append(invalid, err)
		}
	}
	if len(invalid) > 0 {
		return "", errors.Join(invalid...)
	}
	return "", errRuntimeNotFound
}

// resolveInstalledLibraryPath finds the runtime library inside one installed
// toolkit tree, trying the known install subdirectories and then a glob for
// versioned filenames (libopenvino_c.so.2430 and friends).
func resolveInstalledLibraryPath(installDir string) (string, error) {
	filename := sharedLibraryFilename(LibraryBaseName, runtime.GOOS)

	var invalidCandidates []error
	trackCandidateError := func(path string, validationErr error) {
		if validationErr == nil || errors.Is(validationErr, os.ErrNotExist) {
			return
		}
		invalidCandidates = append(invalidCandidates, fmt.Errorf("%s: %w", path, validationErr))
	}

	for _, sub := range knownInstallSubdirectories {
		primary := filepath.Join(installDir, sub, filename)
		if path, err := validateLibraryFile(primary); err == nil {
			return path, nil
		} else {
			trackCandidateError(primary, err)
		}

		matches, err := filepath.Glob(filepath.Join(installDir, sub, filename+"*"))
		if err != nil {
			return "", fmt.Errorf("failed to resolve runtime library path: %w", err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			path, err := validateLibraryFile(match)
			if err == nil {
				return path, nil
			}
			trackCandidateError(match, err)
		}
	}

	if len(invalidCandidates) > 0 {
		return "", fmt.Errorf("found runtime library candidates in %q but none are valid: %w", installDir, errors.Join(invalidCandidates...))
	}

	return "", errRuntimeNotFound
}

func extractAndInstallArchive(archivePath, installDir string) error {
	stagingRoot := installDir + fmt.Sprintf(".staging-%d", time.Now().UnixNano())
	if err := os.RemoveAll(stagingRoot); err != nil {
		return fmt.Errorf("failed to clean staging directory %q: %w", stagingRoot, err)
	}
	if err := os.MkdirAll(stagingRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory %q: %w", stagingRoot, err)
	}
	defer func() {
		_ = os.RemoveAll(stagingRoot)
	}()

	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		if err := extractZIPArchive(archivePath, stagingRoot); err != nil {
			return err
		}
	case strings.HasSuffix(archivePath, ".tgz"), strings.HasSuffix(archivePath, ".tar.gz"):
		if err := extractTGZArchive(archivePath, stagingRoot); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported archive type %q (expected .tgz, .tar.gz or .zip)", filepath.Base(archivePath))
	}

	// Toolkit archives wrap everything in a single top-level directory;
	// unwrap it so the install tree starts at the toolkit root.
	extractedRoot := stagingRoot
	if entries, err := os.ReadDir(stagingRoot); err == nil && len(entries) == 1 && entries[0].IsDir() {
		extractedRoot = filepath.Join(stagingRoot, entries[0].Name())
	}

	if _, err := resolveInstalledLibraryPath(extractedRoot); err != nil {
		if errors.Is(err, errRuntimeNotFound) {
			return fmt.Errorf("archive %q did not contain the runtime shared library", filepath.Base(archivePath))
		}
		return err
	}

	if err := os.RemoveAll(installDir); err != nil {
		return fmt.Errorf("failed to remove previous install at %q: %w", installDir, err)
	}
	if err := os.Rename(extractedRoot, installDir); err != nil {
		return fmt.Errorf("failed to install runtime to %q: %w", installDir, err)
	}
	return nil
}

func extractTGZArchive(archivePath, destinationDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = archiveFile.Close()
	}()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("failed to read gzip archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)
	regularFiles := 0

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry from %q: %w", archivePath, err)
		}

		targetPath, err := secureArchiveJoin(destinationDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
			}

			mode := header.FileInfo().Mode().Perm()
			if mode == 0 {
				mode = 0o644
			}
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
			if err != nil {
				return fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
			}

			if _, err := io.Copy(outFile, tarReader); err != nil {
				_ = outFile.Close()
				return fmt.Errorf("failed to extract file %q: %w", targetPath, err)
			}
			if err := outFile.Close(); err != nil {
				return fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
			}
			regularFiles++
		case tar.TypeSymlink:
			// Toolkit archives use relative symlinks for library sonames
			// (libopenvino_c.so -> libopenvino_c.so.2430). Only links that
			// stay inside the tree are reproduced.
			if _, err := secureArchiveJoin(filepath.Dir(targetPath), header.Linkname); err != nil {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
				return fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
			}
			_ = os.Remove(targetPath)
			if err := os.Symlink(header.Linkname, targetPath); err != nil {
				return fmt.Errorf("failed to create symlink %q: %w", targetPath, err)
			}
		case tar.TypeXHeader, tar.TypeXGlobalHeader:
			continue
		default:
			// Skip hard links and device files.
			continue
		}
	}

	if regularFiles == 0 {
		return fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return nil
}

func extractZIPArchive(archivePath, destinationDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open ZIP archive %q: %w", archivePath, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	regularFiles := 0
	for _, entry := range reader.File {
		targetPath, err := secureArchiveJoin(destinationDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", targetPath, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("failed to create parent directory for %q: %w", targetPath, err)
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to open ZIP entry %q: %w", entry.Name, err)
		}

		mode := entry.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}
		outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to create extracted file %q: %w", targetPath, err)
		}

		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return fmt.Errorf("failed to extract ZIP entry %q: %w", entry.Name, err)
		}

		if err := outFile.Close(); err != nil {
			_ = rc.Close()
			return fmt.Errorf("failed to close extracted file %q: %w", targetPath, err)
		}
		if err := rc.Close(); err != nil {
			return fmt.Errorf("failed to close ZIP entry %q: %w", entry.Name, err)
		}

		regularFiles++
	}

	if regularFiles == 0 {
		return fmt.Errorf("archive %q did not contain regular files", archivePath)
	}

	return nil
}

func validateLibraryFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("library path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat library file %q: %w", absPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("library path points to a directory: %q", absPath)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("library file is empty: %q", absPath)
	}

	return absPath, nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %q for checksum: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to checksum %q: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func withProcessFileLock(lockPath string, fn func() error) (err error) {
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory for %q: %w", lockPath, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file %q: %w", lockPath, err)
	}

	// The platform locks are non-blocking; poll so that two processes
	// installing the same version serialize instead of failing.
	const lockTimeout = 2 * time.Minute
	deadline := time.Now().Add(lockTimeout)
	for {
		err := lockFile(file)
		if err == nil {
			break
		}
		if !isLockWouldBlock(err) || time.Now().After(deadline) {
			_ = file.Close()
			return fmt.Errorf("failed to acquire lock %q: %w", lockPath, err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	defer func() {
		unlockErr := unlockFile(file)
		closeErr := file.Close()
		err = errors.Join(err, unlockErr, closeErr)
	}()

	if fn == nil {
		return nil
	}
	return fn()
}

func secureArchiveJoin(baseDir, archivePath string) (string, error) {
	archivePath = strings.TrimSpace(archivePath)
	if archivePath == "" {
		return "", fmt.Errorf("invalid empty archive entry path")
	}

	normalized := strings.ReplaceAll(archivePath, "\\", "/")
	if strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("invalid absolute archive entry path %q", archivePath)
	}
	if len(normalized) >= 2 && ((normalized[0] >= 'A' && normalized[0] <= 'Z') || (normalized[0] >= 'a' && normalized[0] <= 'z')) && normalized[1] == ':' {
		return "", fmt.Errorf("invalid archive entry path with drive letter %q", archivePath)
	}

	cleaned := filepath.Clean(normalized)
	if cleaned == "." {
		return "", fmt.Errorf("invalid archive entry path %q", archivePath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	targetPath := filepath.Join(baseDir, cleaned)
	relPath, err := filepath.Rel(baseDir, targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve archive path %q: %w", archivePath, err)
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("unsafe archive entry path %q", archivePath)
	}

	return targetPath, nil
}

func defaultCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "pure-openvino", "runtime")
	}

	fallback := filepath.Join(os.TempDir(), "pure-openvino", "runtime")
	cacheFallbackWarnOnce.Do(func() {
		if err != nil {
			log.Printf("WARNING: failed to resolve user cache directory (%v); using temporary runtime cache at %q. Set OPENVINO_CACHE_DIR for a persistent cache.", err, fallback)
			return
		}
		log.Printf("WARNING: user cache directory is empty; using temporary runtime cache at %q. Set OPENVINO_CACHE_DIR for a persistent cache.", fallback)
	})
	return fallback
}

func versionFromArchiveName(name string) string {
	match := archiveVersionPattern.FindString(name)
	return match
}
