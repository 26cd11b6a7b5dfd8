package ov

import (
	"fmt"
	"sync"
	"unsafe"
)

// fakeRuntime is an instrumented in-process stand-in for the native runtime.
// Every wrapper call goes through an apiTable of Go closures over a handle
// registry, so tests can count constructions and frees without a real
// OpenVINO installation.
type fakeRuntime struct {
	mu         sync.Mutex
	nextHandle uintptr
	objects    map[uintptr]*fakeObject

	constructs map[string]int
	frees      map[string]int

	// failNext makes the next constructor of the given kind fail.
	failNext map[string]Status

	devices      []string
	deviceAllocs map[uintptr]*listAlloc
	deviceFrees  int

	versionAllocs map[uintptr]*listAlloc
	versionFrees  int

	cstrings map[uintptr][]byte
}

// listAlloc keeps a handed-out (array, count) allocation alive until the
// matching free, the way native memory would be.
type listAlloc struct {
	strings  [][]byte
	ptrs     []uintptr
	versions []coreVersionNative
}

type fakeObject struct {
	kind        string
	elementType ElementType
	dims        []int64
	data        []byte
	dataOffset  int // lets tests misalign the reported data pointer

	// infer request state
	async     bool
	done      bool
	cancelled bool
	tensors   map[string]uintptr
	inputs    map[int]uintptr

	// partialDims keeps dimension arrays handed out through shape queries
	// alive for as long as the port object lives.
	partialDims []dimensionNative

	name string
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		nextHandle:    1,
		objects:       make(map[uintptr]*fakeObject),
		constructs:    make(map[string]int),
		frees:         make(map[string]int),
		failNext:      make(map[string]Status),
		devices:       []string{"CPU", "GPU"},
		deviceAllocs:  make(map[uintptr]*listAlloc),
		versionAllocs: make(map[uintptr]*listAlloc),
		cstrings:      make(map[uintptr][]byte),
	}
}

// newFakeLoader returns a loader whose symbol table is backed by the fake.
func newFakeLoader(f *fakeRuntime) *Loader {
	l := &Loader{}
	l.tab = f.table()
	return l
}

func (f *fakeRuntime) put(obj *fakeObject) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.nextHandle
	f.nextHandle++
	f.objects[h] = obj
	f.constructs[obj.kind]++
	return h
}

func (f *fakeRuntime) get(h uintptr) *fakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[h]
}

func (f *fakeRuntime) del(h uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[h]
	if !ok {
		panic(fmt.Sprintf("fake runtime: free of unknown handle %d (double free?)", h))
	}
	delete(f.objects, h)
	f.frees[obj.kind]++
}

func (f *fakeRuntime) liveObjects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeRuntime) shouldFail(kind string) (Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status, ok := f.failNext[kind]; ok {
		delete(f.failNext, kind)
		return status, true
	}
	return StatusOK, false
}

func (f *fakeRuntime) newCString(s string) uintptr {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := append([]byte(s), 0)
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	f.cstrings[ptr] = buf
	return ptr
}

func (f *fakeRuntime) leakedCStrings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cstrings)
}

func (f *fakeRuntime) construct(kind string, obj *fakeObject, out *uintptr) Status {
	if status, fail := f.shouldFail(kind); fail {
		return status
	}
	obj.kind = kind
	*out = f.put(obj)
	return StatusOK
}

func tensorByteLen(elementType ElementType, dims []int64) int {
	count := int64(1)
	for _, d := range dims {
		count *= d
	}
	return int(count) * int(elementType.ByteSize())
}

func (f *fakeRuntime) newTensorObject(elementType ElementType, shape shapeNative, data []byte) *fakeObject {
	dims := make([]int64, shape.Rank)
	if shape.Dims != 0 && shape.Rank > 0 {
		copy(dims, unsafe.Slice((*int64)(unsafe.Pointer(shape.Dims)), int(shape.Rank)))
	}
	if data == nil {
		data = make([]byte, tensorByteLen(elementType, dims))
	}
	return &fakeObject{elementType: elementType, dims: dims, data: data}
}

// table builds the full apiTable over the fake.
func (f *fakeRuntime) table() *apiTable {
	t := &apiTable{
		libraryPath: "fake://openvino",
		missing:     make(map[string]bool),
	}

	t.getVersion = func(out *versionNative) Status {
		out.BuildNumber = f.newCString("2024.3.0-fake")
		out.Description = f.newCString("fake runtime")
		return StatusOK
	}
	t.versionFree = func(ver *versionNative) {
		f.freeCString(ver.BuildNumber)
		f.freeCString(ver.Description)
	}
	t.ovFree = func(ptr uintptr) { f.freeCString(ptr) }

	t.coreCreate = func(out *uintptr) Status {
		return f.construct("core", &fakeObject{}, out)
	}
	t.coreCreateWithConfig = func(xml string, out *uintptr) Status {
		return f.construct("core", &fakeObject{name: xml}, out)
	}
	t.coreFree = func(h uintptr) { f.del(h) }
	t.coreReadModel = func(core uintptr, path string, bin uintptr, out *uintptr) Status {
		return f.construct("model", &fakeObject{name: path}, out)
	}
	t.coreReadModelFromMemory = func(core uintptr, str uintptr, size uintptr, weights uintptr, out *uintptr) Status {
		return f.construct("model", &fakeObject{name: "memory"}, out)
	}
	t.coreCompileModel = func(core uintptr, model uintptr, device string, n uintptr, out *uintptr) Status {
		if f.get(model) == nil {
			return StatusInvalidCParam
		}
		return f.construct("compiled", &fakeObject{name: device}, out)
	}
	t.coreGetAvailableDevices = func(core uintptr, out *availableDevicesNative) Status {
		f.mu.Lock()
		defer f.mu.Unlock()
		alloc := &listAlloc{}
		for _, d := range f.devices {
			buf := append([]byte(d), 0)
			alloc.strings = append(alloc.strings, buf)
			alloc.ptrs = append(alloc.ptrs, uintptr(unsafe.Pointer(&buf[0])))
		}
		if len(alloc.ptrs) > 0 {
			out.Devices = uintptr(unsafe.Pointer(&alloc.ptrs[0]))
		}
		out.Size = uintptr(len(alloc.ptrs))
		f.deviceAllocs[out.Devices] = alloc
		return StatusOK
	}
	t.availableDevicesFree = func(devices *availableDevicesNative) Status {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.deviceAllocs[devices.Devices]; !ok {
			panic(fmt.Sprintf("fake runtime: free of unknown device list %#x (double free?)", devices.Devices))
		}
		delete(f.deviceAllocs, devices.Devices)
		f.deviceFrees++
		return StatusOK
	}
	t.coreGetVersionsByDevice = func(core uintptr, device string, out *coreVersionListNative) Status {
		f.mu.Lock()
		defer f.mu.Unlock()
		name := append([]byte(device), 0)
		build := append([]byte("2024.3.0-fake"), 0)
		desc := append([]byte(device+" plugin"), 0)
		alloc := &listAlloc{strings: [][]byte{name, build, desc}}
		alloc.versions = []coreVersionNative{{
			DeviceName: uintptr(unsafe.Pointer(&name[0])),
			Version: versionNative{
				BuildNumber: uintptr(unsafe.Pointer(&build[0])),
				Description: uintptr(unsafe.Pointer(&desc[0])),
			},
		}}
		out.Versions = uintptr(unsafe.Pointer(&alloc.versions[0]))
		out.Size = 1
		f.versionAllocs[out.Versions] = alloc
		return StatusOK
	}
	t.coreVersionsFree = func(list *coreVersionListNative) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.versionAllocs[list.Versions]; !ok {
			panic(fmt.Sprintf("fake runtime: free of unknown version list %#x (double free?)", list.Versions))
		}
		delete(f.versionAllocs, list.Versions)
		f.versionFrees++
	}
	t.coreGetProperty = func(core uintptr, device, key string, out *uintptr) Status {
		if key == "MISSING" {
			return StatusNotFound
		}
		*out = f.newCString(device + "/" + key)
		return StatusOK
	}

	t.modelFree = func(h uintptr) { f.del(h) }
	t.modelInputsSize = func(h uintptr, out *uintptr) Status {
		*out = 1
		return StatusOK
	}
	t.modelOutputsSize = func(h uintptr, out *uintptr) Status {
		*out = 1
		return StatusOK
	}
	t.modelConstInputByIndex = func(h uintptr, index uintptr, out *uintptr) Status {
		if index > 0 {
			return StatusOutOfBounds
		}
		return f.construct("port", &fakeObject{name: "input0", elementType: ElementTypeF32, dims: []int64{1, 3, 227, 227}}, out)
	}
	t.modelConstOutputByIndex = func(h uintptr, index uintptr, out *uintptr) Status {
		if index > 0 {
			return StatusOutOfBounds
		}
		return f.construct("port", &fakeObject{name: "output0", elementType: ElementTypeF32, dims: []int64{1, 4}}, out)
	}
	t.modelIsDynamic = func(h uintptr) bool { return false }
	t.modelGetFriendlyName = func(h uintptr, out *uintptr) Status {
		obj := f.get(h)
		if obj == nil {
			return StatusInvalidCParam
		}
		*out = f.newCString(obj.name)
		return StatusOK
	}

	t.portGetAnyName = func(h uintptr, out *uintptr) Status {
		obj := f.get(h)
		if obj == nil {
			return StatusInvalidCParam
		}
		*out = f.newCString(obj.name)
		return StatusOK
	}
	t.portGetElementType = func(h uintptr, out *ElementType) Status {
		*out = f.get(h).elementType
		return StatusOK
	}
	t.portGetPartialShape = func(h uintptr, out *partialShapeNative) Status {
		obj := f.get(h)
		dims := make([]dimensionNative, len(obj.dims))
		for i, d := range obj.dims {
			dims[i] = dimensionNative{Min: d, Max: d}
		}
		f.mu.Lock()
		obj.partialDims = dims
		f.mu.Unlock()
		out.Rank = dimensionNative{Min: int64(len(dims)), Max: int64(len(dims))}
		if len(dims) > 0 {
			out.Dims = uintptr(unsafe.Pointer(&dims[0]))
		}
		return StatusOK
	}
	t.constPortFree = func(h uintptr) { f.del(h) }
	t.partialShapeFree = func(shape *partialShapeNative) {}

	t.compiledModelFree = func(h uintptr) { f.del(h) }
	t.compiledModelCreateInferRequest = func(h uintptr, out *uintptr) Status {
		return f.construct("request", &fakeObject{
			tensors: make(map[string]uintptr),
			inputs:  make(map[int]uintptr),
		}, out)
	}
	t.compiledModelInputsSize = func(h uintptr, out *uintptr) Status {
		*out = 1
		return StatusOK
	}
	t.compiledModelOutputsSize = func(h uintptr, out *uintptr) Status {
		*out = 1
		return StatusOK
	}
	t.compiledModelInputByIndex = t.modelConstInputByIndex
	t.compiledModelOutputByIndex = t.modelConstOutputByIndex

	t.inferRequestFree = func(h uintptr) { f.del(h) }
	t.inferRequestSetTensor = func(h uintptr, name string, tensor uintptr) Status {
		req := f.get(h)
		if f.get(tensor) == nil {
			return StatusNotAllocated
		}
		req.tensors[name] = tensor
		return StatusOK
	}
	t.inferRequestSetInputTensorByIndex = func(h uintptr, index uintptr, tensor uintptr) Status {
		req := f.get(h)
		if f.get(tensor) == nil {
			return StatusNotAllocated
		}
		req.inputs[int(index)] = tensor
		return StatusOK
	}
	t.inferRequestGetTensor = func(h uintptr, name string, out *uintptr) Status {
		req := f.get(h)
		tensor, ok := req.tensors[name]
		if !ok {
			return StatusNotFound
		}
		// The runtime hands back a new reference object over the same buffer.
		src := f.get(tensor)
		return f.construct("tensor", &fakeObject{elementType: src.elementType, dims: src.dims, data: src.data}, out)
	}
	t.inferRequestGetInputTensorByIndex = func(h uintptr, index uintptr, out *uintptr) Status {
		req := f.get(h)
		tensor, ok := req.inputs[int(index)]
		if !ok {
			return StatusNotFound
		}
		src := f.get(tensor)
		return f.construct("tensor", &fakeObject{elementType: src.elementType, dims: src.dims, data: src.data}, out)
	}
	t.inferRequestGetOutputTensorByIndex = func(h uintptr, index uintptr, out *uintptr) Status {
		req := f.get(h)
		if !req.done {
			return StatusInferNotStarted
		}
		dims := []int64{1, 4}
		return f.construct("tensor", f.newTensorObject(ElementTypeF32, shapeNative{Rank: 2, Dims: uintptr(unsafe.Pointer(&dims[0]))}, nil), out)
	}
	t.inferRequestInfer = func(h uintptr) Status {
		req := f.get(h)
		req.done = true
		return StatusOK
	}
	t.inferRequestStartAsync = func(h uintptr) Status {
		req := f.get(h)
		req.async = true
		req.done = false
		req.cancelled = false
		return StatusOK
	}
	t.inferRequestWaitFor = func(h uintptr, timeoutMillis int64) Status {
		req := f.get(h)
		switch {
		case req.cancelled:
			return StatusInferCancelled
		case !req.async:
			return StatusInferNotStarted
		case req.done:
			return StatusOK
		default:
			return StatusResultNotReady
		}
	}
	t.inferRequestCancel = func(h uintptr) Status {
		req := f.get(h)
		if !req.async {
			return StatusInferNotStarted
		}
		req.cancelled = true
		return StatusOK
	}

	t.tensorCreate = func(elementType ElementType, shape shapeNative, out *uintptr) Status {
		return f.construct("tensor", f.newTensorObject(elementType, shape, nil), out)
	}
	t.tensorCreateFromHostPtr = func(elementType ElementType, shape shapeNative, hostPtr uintptr, out *uintptr) Status {
		obj := f.newTensorObject(elementType, shape, nil)
		if hostPtr != 0 {
			obj.data = unsafe.Slice((*byte)(unsafe.Pointer(hostPtr)), tensorByteLen(elementType, obj.dims))
		}
		return f.construct("tensor", obj, out)
	}
	t.tensorGetShape = func(h uintptr, out *shapeNative) Status {
		obj := f.get(h)
		out.Rank = int64(len(obj.dims))
		if len(obj.dims) > 0 {
			out.Dims = uintptr(unsafe.Pointer(&obj.dims[0]))
		}
		return StatusOK
	}
	t.tensorSetShape = func(h uintptr, shape shapeNative) Status {
		obj := f.get(h)
		dims := make([]int64, shape.Rank)
		if shape.Dims != 0 {
			copy(dims, unsafe.Slice((*int64)(unsafe.Pointer(shape.Dims)), int(shape.Rank)))
		}
		if tensorByteLen(obj.elementType, dims) > len(obj.data) {
			return StatusOutOfBounds
		}
		obj.dims = dims
		return StatusOK
	}
	t.tensorGetElementType = func(h uintptr, out *ElementType) Status {
		*out = f.get(h).elementType
		return StatusOK
	}
	t.tensorGetSize = func(h uintptr, out *uintptr) Status {
		obj := f.get(h)
		count := int64(1)
		for _, d := range obj.dims {
			count *= d
		}
		*out = uintptr(count)
		return StatusOK
	}
	t.tensorGetByteSize = func(h uintptr, out *uintptr) Status {
		obj := f.get(h)
		*out = uintptr(len(obj.data) - obj.dataOffset)
		return StatusOK
	}
	t.tensorData = func(h uintptr, out *uintptr) Status {
		obj := f.get(h)
		if len(obj.data) == 0 {
			*out = 0
			return StatusOK
		}
		*out = uintptr(unsafe.Pointer(&obj.data[obj.dataOffset]))
		return StatusOK
	}
	t.tensorFree = func(h uintptr) { f.del(h) }

	t.shapeCreate = func(rank int64, dims *int64, out *shapeNative) Status {
		return StatusOK
	}
	t.shapeFree = func(shape *shapeNative) Status { return StatusOK }
	t.partialShapeCreate = func(rank int64, dims *dimensionNative, out *partialShapeNative) Status {
		return StatusOK
	}
	t.layoutCreate = func(desc string, out *uintptr) Status {
		return f.construct("layout", &fakeObject{name: desc}, out)
	}
	t.layoutFree = func(h uintptr) { f.del(h) }

	t.prePostProcessorCreate = func(model uintptr, out *uintptr) Status {
		if f.get(model) == nil {
			return StatusInvalidCParam
		}
		return f.construct("prepostprocessor", &fakeObject{}, out)
	}
	t.prePostProcessorFree = func(h uintptr) { f.del(h) }
	t.prePostProcessorInputByIndex = func(h uintptr, index uintptr, out *uintptr) Status {
		return f.construct("input_info", &fakeObject{}, out)
	}
	t.prePostProcessorOutputByIndex = func(h uintptr, index uintptr, out *uintptr) Status {
		return f.construct("output_info", &fakeObject{}, out)
	}
	t.prePostProcessorBuild = func(h uintptr, out *uintptr) Status {
		return f.construct("model", &fakeObject{name: "built"}, out)
	}
	t.inputInfoFree = func(h uintptr) { f.del(h) }
	t.inputInfoGetTensorInfo = func(h uintptr, out *uintptr) Status {
		return f.construct("input_tensor_info", &fakeObject{}, out)
	}
	t.inputInfoGetPreprocessSteps = func(h uintptr, out *uintptr) Status {
		return f.construct("preprocess_steps", &fakeObject{}, out)
	}
	t.inputInfoGetModelInfo = func(h uintptr, out *uintptr) Status {
		return f.construct("input_model_info", &fakeObject{}, out)
	}
	t.inputTensorInfoFree = func(h uintptr) { f.del(h) }
	t.inputTensorInfoSetElementType = func(h uintptr, elementType ElementType) Status {
		f.get(h).elementType = elementType
		return StatusOK
	}
	t.inputTensorInfoSetLayout = func(h uintptr, layout uintptr) Status {
		if f.get(layout) == nil {
			return StatusInvalidCParam
		}
		return StatusOK
	}
	t.inputTensorInfoSetFrom = func(h uintptr, tensor uintptr) Status {
		if f.get(tensor) == nil {
			return StatusInvalidCParam
		}
		return StatusOK
	}
	t.preprocessStepsFree = func(h uintptr) { f.del(h) }
	t.preprocessStepsResize = func(h uintptr, algorithm ResizeAlgorithm) Status {
		return StatusOK
	}
	t.inputModelInfoFree = func(h uintptr) { f.del(h) }
	t.inputModelInfoSetLayout = t.inputTensorInfoSetLayout
	t.outputInfoFree = func(h uintptr) { f.del(h) }
	t.outputInfoGetTensorInfo = func(h uintptr, out *uintptr) Status {
		return f.construct("output_tensor_info", &fakeObject{}, out)
	}
	t.outputTensorInfoFree = func(h uintptr) { f.del(h) }
	t.outputSetElementType = t.inputTensorInfoSetElementType

	return t
}

func (f *fakeRuntime) freeCString(ptr uintptr) {
	if ptr == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cstrings[ptr]; !ok {
		panic(fmt.Sprintf("fake runtime: ov_free of unknown pointer %#x (double free?)", ptr))
	}
	delete(f.cstrings, ptr)
}
