// Command ovinfo loads the OpenVINO runtime and prints what it finds: the
// library path, runtime version, available devices and their plugin versions,
// and any symbols the installed runtime does not export. It is the first
// thing to run when diagnosing an installation.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/amikos-tech/pure-openvino/ov"
)

func main() {
	libPath := flag.String("lib", "", "path to the OpenVINO C shared library (default: discover)")
	minVersion := flag.String("min-version", "", "fail unless the runtime version is at least this (for example 2024.3.0)")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "ovinfo:", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	if err := run(logger, *libPath, *minVersion); err != nil {
		fmt.Fprintln(os.Stderr, "ovinfo:", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger, libPath, minVersion string) error {
	var opts []ov.BootstrapOption
	if libPath != "" {
		opts = append(opts, ov.WithLibraryPath(libPath))
	}

	path, err := ov.EnsureRuntimeSharedLibrary(opts...)
	if err != nil {
		return err
	}
	logger.Info("resolved runtime library", zap.String("path", path))

	if err := ov.LoadFromPath(path); err != nil {
		return err
	}
	fmt.Println("library:", path)

	if missing := ov.DefaultLoader.MissingSymbols(); len(missing) > 0 {
		fmt.Printf("missing symbols (%d): calling these will panic\n", len(missing))
		for _, name := range missing {
			fmt.Println("  -", name)
		}
	}

	version, err := ov.RuntimeVersion()
	if err != nil {
		return fmt.Errorf("query runtime version: %w", err)
	}
	fmt.Println("version:", version.BuildNumber)
	fmt.Println("description:", version.Description)

	if minVersion != "" {
		if err := checkMinVersion(version.BuildNumber, minVersion); err != nil {
			return err
		}
	}

	core, err := ov.NewCore()
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}
	defer core.Destroy()

	devices, err := core.AvailableDevices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	fmt.Printf("devices (%d):\n", len(devices))
	for _, device := range devices {
		fmt.Println("  -", device)
		versions, err := core.Versions(device)
		if err != nil {
			logger.Warn("device version query failed", zap.String("device", device), zap.Error(err))
			continue
		}
		for _, dv := range versions {
			fmt.Printf("      %s %s (%s)\n", dv.DeviceName, dv.Version.BuildNumber, dv.Version.Description)
		}
	}

	if xmlPath, ok := ov.FindPluginsXML(); ok {
		fmt.Println("plugins.xml:", xmlPath)
	}

	return nil
}

// checkMinVersion compares the runtime build number against a required
// minimum. Build numbers look like "2024.3.0-16041-1e3b88e4e3f"; only the
// leading semantic version participates in the comparison.
func checkMinVersion(buildNumber, minVersion string) error {
	min, err := semver.NewVersion(minVersion)
	if err != nil {
		return fmt.Errorf("invalid -min-version %q: %w", minVersion, err)
	}

	actual, err := semver.NewVersion(buildNumber)
	if err != nil {
		return fmt.Errorf("cannot parse runtime version %q: %w", buildNumber, err)
	}

	// Drop prerelease/metadata noise from the build number.
	core, err := semver.NewVersion(fmt.Sprintf("%d.%d.%d", actual.Major(), actual.Minor(), actual.Patch()))
	if err != nil {
		return err
	}

	if core.LessThan(min) {
		return fmt.Errorf("runtime version %s is older than required %s", core, min)
	}
	return nil
}
