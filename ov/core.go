package ov

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Core owns one native ov_core_t, the root object of the inference engine.
// It is safe to share across goroutines for read-style operations; the
// runtime documents the core object as thread-safe.
type Core struct {
	t      *apiTable
	handle uintptr
}

// Version describes one runtime build.
type Version struct {
	BuildNumber string
	Description string
}

// DeviceVersion pairs a device name with the plugin version serving it.
type DeviceVersion struct {
	DeviceName string
	Version    Version
}

// NewCore creates an engine core using the default loader. The runtime
// discovers device plugins through the plugins.xml descriptor next to the
// loaded library.
func NewCore() (*Core, error) {
	return NewCoreWithLoader(DefaultLoader)
}

// NewCoreWithLoader is NewCore against an explicit loader.
func NewCoreWithLoader(l *Loader) (*Core, error) {
	t := l.api()

	var handle uintptr
	status := t.coreCreate(&handle)
	if err := translateStatus(status, "Core.Create"); err != nil {
		return nil, err
	}

	return newCoreHandle(t, handle), nil
}

// NewCoreWithConfig creates a core with an explicit plugin descriptor file
// instead of the one discovered next to the library. An empty path asks the
// finder to locate plugins.xml; ErrPluginsXMLNotFound is returned when no
// installation layout carries one.
func NewCoreWithConfig(pluginsXMLPath string) (*Core, error) {
	t := DefaultLoader.api()

	if pluginsXMLPath == "" {
		found, ok := FindPluginsXML()
		if !ok {
			return nil, ErrPluginsXMLNotFound
		}
		pluginsXMLPath = found
	}

	var handle uintptr
	status := t.coreCreateWithConfig(pluginsXMLPath, &handle)
	if err := translateStatus(status, "Core.CreateWithConfig"); err != nil {
		return nil, err
	}

	return newCoreHandle(t, handle), nil
}

func newCoreHandle(t *apiTable, handle uintptr) *Core {
	c := &Core{t: t, handle: handle}
	runtime.SetFinalizer(c, func(c *Core) {
		_ = c.Destroy()
	})
	return c
}

// Destroy releases the core exactly once; safe to call repeatedly.
func (c *Core) Destroy() error {
	if c == nil {
		return nil
	}

	handle := c.handle
	c.handle = 0
	runtime.SetFinalizer(c, nil)

	if handle != 0 {
		c.t.coreFree(handle)
	}
	return nil
}

// ReadModel reads a model from an IR, ONNX or PDPD file. binPath names the
// weights file and may be empty for formats that embed weights.
func (c *Core) ReadModel(modelPath, binPath string) (*Model, error) {
	var handle uintptr
	var status Status
	if binPath == "" {
		// The native call accepts a null weights path.
		status = c.t.coreReadModel(c.handle, modelPath, 0, &handle)
	} else {
		bin, binPtr := goToCstring(binPath)
		status = c.t.coreReadModel(c.handle, modelPath, binPtr, &handle)
		runtime.KeepAlive(bin)
	}
	runtime.KeepAlive(c)
	if err := translateStatus(status, "Core.ReadModel"); err != nil {
		return nil, err
	}
	return newModelHandle(c.t, handle), nil
}

// ReadModelFromMemory reads a model from an in-memory buffer. weights may be
// nil for formats that embed weights; otherwise it is a weights tensor as
// produced by NewTensorFromData.
func (c *Core) ReadModelFromMemory(model []byte, weights *Tensor) (*Model, error) {
	if len(model) == 0 {
		return nil, fmt.Errorf("model buffer is empty")
	}

	var weightsHandle uintptr
	if weights != nil {
		weightsHandle = weights.handle
	}

	var handle uintptr
	status := c.t.coreReadModelFromMemory(c.handle,
		uintptr(unsafe.Pointer(unsafe.SliceData(model))), uintptr(len(model)),
		weightsHandle, &handle)
	runtime.KeepAlive(c)
	runtime.KeepAlive(model)
	runtime.KeepAlive(weights)
	if err := translateStatus(status, "Core.ReadModelFromMemory"); err != nil {
		return nil, err
	}
	return newModelHandle(c.t, handle), nil
}

// CompileModel compiles a model for a device ("CPU", "GPU", "AUTO", ...).
func (c *Core) CompileModel(model *Model, deviceName string) (*CompiledModel, error) {
	var handle uintptr
	status := c.t.coreCompileModel(c.handle, model.handle, deviceName, 0, &handle)
	runtime.KeepAlive(c)
	runtime.KeepAlive(model)
	if err := translateStatus(status, "Core.CompileModel"); err != nil {
		return nil, err
	}
	return newCompiledModelHandle(c.t, handle), nil
}

// AvailableDevices returns the device names the runtime can serve.
//
// The native call fills an (array, count) struct; each entry is copied to an
// owned Go string and the whole struct is freed exactly once afterwards.
func (c *Core) AvailableDevices() ([]string, error) {
	var list availableDevicesNative
	status := c.t.coreGetAvailableDevices(c.handle, &list)
	if err := translateStatus(status, "Core.AvailableDevices"); err != nil {
		return nil, err
	}

	devices := make([]string, 0, list.Size)
	if list.Devices != 0 {
		entries := unsafe.Slice((*uintptr)(unsafe.Pointer(list.Devices)), int(list.Size))
		for _, entry := range entries {
			devices = append(devices, cstringToGo(entry))
		}
	}

	_ = c.t.availableDevicesFree(&list)
	runtime.KeepAlive(c)
	return devices, nil
}

// Versions returns the plugin versions behind a device name. Compound names
// such as "HETERO:CPU,GPU" may yield several entries.
func (c *Core) Versions(deviceName string) ([]DeviceVersion, error) {
	var list coreVersionListNative
	status := c.t.coreGetVersionsByDevice(c.handle, deviceName, &list)
	if err := translateStatus(status, "Core.Versions"); err != nil {
		return nil, err
	}

	versions := make([]DeviceVersion, 0, list.Size)
	if list.Versions != 0 {
		entries := unsafe.Slice((*coreVersionNative)(unsafe.Pointer(list.Versions)), int(list.Size))
		for _, entry := range entries {
			versions = append(versions, DeviceVersion{
				DeviceName: cstringToGo(entry.DeviceName),
				Version: Version{
					BuildNumber: cstringToGo(entry.Version.BuildNumber),
					Description: cstringToGo(entry.Version.Description),
				},
			})
		}
	}

	c.t.coreVersionsFree(&list)
	runtime.KeepAlive(c)
	return versions, nil
}

// GetProperty reads a runtime property ("FULL_DEVICE_NAME",
// "SUPPORTED_PROPERTIES", ...) for a device.
func (c *Core) GetProperty(deviceName, key string) (string, error) {
	var out uintptr
	status := c.t.coreGetProperty(c.handle, deviceName, key, &out)
	if err := translateStatus(status, "Core.GetProperty"); err != nil {
		return "", err
	}
	value := cstringToGo(out)
	if out != 0 {
		c.t.ovFree(out)
	}
	runtime.KeepAlive(c)
	return value, nil
}

// SetProperty would configure a device property through ov_core_set_property.
// That native entry point is variadic, which this CGO-free binding cannot
// call portably, so the limitation is surfaced as StatusNotImplemented
// instead of pretending the property was applied.
func (c *Core) SetProperty(deviceName, key, value string) error {
	return translateStatus(StatusNotImplemented, "Core.SetProperty")
}

// RuntimeVersion returns the version of the loaded OpenVINO runtime.
func RuntimeVersion() (Version, error) {
	return RuntimeVersionWithLoader(DefaultLoader)
}

// RuntimeVersionWithLoader is RuntimeVersion against an explicit loader.
func RuntimeVersionWithLoader(l *Loader) (Version, error) {
	t := l.api()

	var n versionNative
	status := t.getVersion(&n)
	if err := translateStatus(status, "RuntimeVersion"); err != nil {
		return Version{}, err
	}

	v := Version{
		BuildNumber: cstringToGo(n.BuildNumber),
		Description: cstringToGo(n.Description),
	}
	t.versionFree(&n)
	return v, nil
}
