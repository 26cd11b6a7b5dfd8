package ov

import (
	"fmt"
	"reflect"

	"github.com/ebitengine/purego"
)

// Native struct mirrors. Layouts must match the OpenVINO C API headers
// (ov_common.h and friends); they are passed across the FFI boundary.

// shapeNative mirrors ov_shape_t.
type shapeNative struct {
	Rank int64
	Dims uintptr // *int64, owned by the native side
}

// dimensionNative mirrors ov_dimension_t (also used for ov_rank_t).
type dimensionNative struct {
	Min int64
	Max int64
}

// partialShapeNative mirrors ov_partial_shape_t.
type partialShapeNative struct {
	Rank dimensionNative
	Dims uintptr // *ov_dimension_t, owned by the native side
}

// availableDevicesNative mirrors ov_available_devices_t.
type availableDevicesNative struct {
	Devices uintptr // **char
	Size    uintptr
}

// versionNative mirrors ov_version_t.
type versionNative struct {
	BuildNumber uintptr // *char
	Description uintptr // *char
}

// coreVersionNative mirrors ov_core_version_t.
type coreVersionNative struct {
	DeviceName uintptr // *char
	Version    versionNative
}

// coreVersionListNative mirrors ov_core_version_list_t.
type coreVersionListNative struct {
	Versions uintptr // *ov_core_version_t
	Size     uintptr
}

// apiTable holds one typed proxy per native symbol. Each entry is resolved
// independently at load time; an entry that failed to resolve is replaced
// with a stub that panics on first use. The table also owns the open library
// handle: it stays alive for as long as any caller still references the
// table, so a reload never invalidates in-flight calls or existing handles,
// and closeLib releases it once the table itself is collected.
type apiTable struct {
	libraryHandle uintptr
	libraryPath   string
	closeLib      func()
	missing       map[string]bool

	// version
	getVersion  func(out *versionNative) Status
	versionFree func(ver *versionNative)
	ovFree      func(ptr uintptr)

	// core
	coreCreate              func(out *uintptr) Status
	coreCreateWithConfig    func(xmlConfigFile string, out *uintptr) Status
	coreFree                func(core uintptr)
	coreReadModel           func(core uintptr, modelPath string, binPath uintptr, out *uintptr) Status
	coreReadModelFromMemory func(core uintptr, modelStr uintptr, strSize uintptr, weights uintptr, out *uintptr) Status
	coreCompileModel        func(core uintptr, model uintptr, deviceName string, propertyArgsSize uintptr, out *uintptr) Status
	coreGetAvailableDevices func(core uintptr, out *availableDevicesNative) Status
	availableDevicesFree    func(devices *availableDevicesNative) Status
	coreGetVersionsByDevice func(core uintptr, deviceName string, out *coreVersionListNative) Status
	coreVersionsFree        func(versions *coreVersionListNative)
	coreGetProperty         func(core uintptr, deviceName string, key string, out *uintptr) Status

	// model
	modelFree               func(model uintptr)
	modelInputsSize         func(model uintptr, out *uintptr) Status
	modelOutputsSize        func(model uintptr, out *uintptr) Status
	modelConstInputByIndex  func(model uintptr, index uintptr, out *uintptr) Status
	modelConstOutputByIndex func(model uintptr, index uintptr, out *uintptr) Status
	modelIsDynamic          func(model uintptr) bool
	modelGetFriendlyName    func(model uintptr, out *uintptr) Status

	// port
	portGetAnyName      func(port uintptr, out *uintptr) Status
	portGetElementType  func(port uintptr, out *ElementType) Status
	portGetPartialShape func(port uintptr, out *partialShapeNative) Status
	constPortFree       func(port uintptr)

	// compiled model
	compiledModelFree               func(compiled uintptr)
	compiledModelCreateInferRequest func(compiled uintptr, out *uintptr) Status
	compiledModelInputsSize         func(compiled uintptr, out *uintptr) Status
	compiledModelOutputsSize        func(compiled uintptr, out *uintptr) Status
	compiledModelInputByIndex       func(compiled uintptr, index uintptr, out *uintptr) Status
	compiledModelOutputByIndex      func(compiled uintptr, index uintptr, out *uintptr) Status

	// infer request
	inferRequestFree                   func(req uintptr)
	inferRequestSetTensor              func(req uintptr, name string, tensor uintptr) Status
	inferRequestSetInputTensorByIndex  func(req uintptr, index uintptr, tensor uintptr) Status
	inferRequestGetTensor              func(req uintptr, name string, out *uintptr) Status
	inferRequestGetInputTensorByIndex  func(req uintptr, index uintptr, out *uintptr) Status
	inferRequestGetOutputTensorByIndex func(req uintptr, index uintptr, out *uintptr) Status
	inferRequestInfer                  func(req uintptr) Status
	inferRequestStartAsync             func(req uintptr) Status
	inferRequestWaitFor                func(req uintptr, timeoutMillis int64) Status
	inferRequestCancel                 func(req uintptr) Status

	// tensor
	tensorCreate            func(elementType ElementType, shape shapeNative, out *uintptr) Status
	tensorCreateFromHostPtr func(elementType ElementType, shape shapeNative, hostPtr uintptr, out *uintptr) Status
	tensorGetShape          func(tensor uintptr, out *shapeNative) Status
	tensorSetShape          func(tensor uintptr, shape shapeNative) Status
	tensorGetElementType    func(tensor uintptr, out *ElementType) Status
	tensorGetSize           func(tensor uintptr, out *uintptr) Status
	tensorGetByteSize       func(tensor uintptr, out *uintptr) Status
	tensorData              func(tensor uintptr, out *uintptr) Status
	tensorFree              func(tensor uintptr)

	// shape / layout
	shapeCreate        func(rank int64, dims *int64, out *shapeNative) Status
	shapeFree          func(shape *shapeNative) Status
	partialShapeCreate func(rank int64, dims *dimensionNative, out *partialShapeNative) Status
	partialShapeFree   func(shape *partialShapeNative)
	layoutCreate       func(desc string, out *uintptr) Status
	layoutFree         func(layout uintptr)

	// pre/post processing
	prePostProcessorCreate        func(model uintptr, out *uintptr) Status
	prePostProcessorFree          func(pp uintptr)
	prePostProcessorInputByIndex  func(pp uintptr, index uintptr, out *uintptr) Status
	prePostProcessorOutputByIndex func(pp uintptr, index uintptr, out *uintptr) Status
	prePostProcessorBuild         func(pp uintptr, out *uintptr) Status
	inputInfoFree                 func(info uintptr)
	inputInfoGetTensorInfo        func(info uintptr, out *uintptr) Status
	inputInfoGetPreprocessSteps   func(info uintptr, out *uintptr) Status
	inputInfoGetModelInfo         func(info uintptr, out *uintptr) Status
	inputTensorInfoFree           func(info uintptr)
	inputTensorInfoSetElementType func(info uintptr, elementType ElementType) Status
	inputTensorInfoSetLayout      func(info uintptr, layout uintptr) Status
	inputTensorInfoSetFrom        func(info uintptr, tensor uintptr) Status
	preprocessStepsFree           func(steps uintptr)
	preprocessStepsResize         func(steps uintptr, algorithm ResizeAlgorithm) Status
	inputModelInfoFree            func(info uintptr)
	inputModelInfoSetLayout       func(info uintptr, layout uintptr) Status
	outputInfoFree                func(info uintptr)
	outputInfoGetTensorInfo       func(info uintptr, out *uintptr) Status
	outputTensorInfoFree          func(info uintptr)
	outputSetElementType          func(info uintptr, elementType ElementType) Status
}

// resolveAPITable opens nothing itself; it resolves every known symbol from an
// already-open library handle. A symbol missing from an older or newer runtime
// is recorded and replaced with a stub that panics naming it: absence of a
// required symbol means the runtime is incompatible with these bindings, which
// no call site can recover from, so resolution failure is fatal at first use
// rather than at load time.
func resolveAPITable(libraryHandle uintptr, libraryPath string) *apiTable {
	t := &apiTable{
		libraryHandle: libraryHandle,
		libraryPath:   libraryPath,
		missing:       make(map[string]bool),
	}

	reg := func(name string, fn any) {
		addr, err := lookupSymbol(libraryHandle, name)
		if err != nil || addr == 0 {
			t.missing[name] = true
			fnVal := reflect.ValueOf(fn).Elem()
			fnVal.Set(reflect.MakeFunc(fnVal.Type(), func([]reflect.Value) []reflect.Value {
				panic(fmt.Sprintf("openvino: symbol %s is not exported by %s; runtime version is incompatible", name, libraryPath))
			}))
			return
		}
		purego.RegisterFunc(fn, addr)
	}

	reg("ov_get_openvino_version", &t.getVersion)
	reg("ov_version_free", &t.versionFree)
	reg("ov_free", &t.ovFree)

	reg("ov_core_create", &t.coreCreate)
	reg("ov_core_create_with_config", &t.coreCreateWithConfig)
	reg("ov_core_free", &t.coreFree)
	reg("ov_core_read_model", &t.coreReadModel)
	reg("ov_core_read_model_from_memory_buffer", &t.coreReadModelFromMemory)
	reg("ov_core_compile_model", &t.coreCompileModel)
	reg("ov_core_get_available_devices", &t.coreGetAvailableDevices)
	reg("ov_available_devices_free", &t.availableDevicesFree)
	reg("ov_core_get_versions_by_device_name", &t.coreGetVersionsByDevice)
	reg("ov_core_versions_free", &t.coreVersionsFree)
	reg("ov_core_get_property", &t.coreGetProperty)

	reg("ov_model_free", &t.modelFree)
	reg("ov_model_inputs_size", &t.modelInputsSize)
	reg("ov_model_outputs_size", &t.modelOutputsSize)
	reg("ov_model_const_input_by_index", &t.modelConstInputByIndex)
	reg("ov_model_const_output_by_index", &t.modelConstOutputByIndex)
	reg("ov_model_is_dynamic", &t.modelIsDynamic)
	reg("ov_model_get_friendly_name", &t.modelGetFriendlyName)

	reg("ov_port_get_any_name", &t.portGetAnyName)
	reg("ov_port_get_element_type", &t.portGetElementType)
	reg("ov_port_get_partial_shape", &t.portGetPartialShape)
	reg("ov_output_const_port_free", &t.constPortFree)

	reg("ov_compiled_model_free", &t.compiledModelFree)
	reg("ov_compiled_model_create_infer_request", &t.compiledModelCreateInferRequest)
	reg("ov_compiled_model_inputs_size", &t.compiledModelInputsSize)
	reg("ov_compiled_model_outputs_size", &t.compiledModelOutputsSize)
	reg("ov_compiled_model_input_by_index", &t.compiledModelInputByIndex)
	reg("ov_compiled_model_output_by_index", &t.compiledModelOutputByIndex)

	reg("ov_infer_request_free", &t.inferRequestFree)
	reg("ov_infer_request_set_tensor", &t.inferRequestSetTensor)
	reg("ov_infer_request_set_input_tensor_by_index", &t.inferRequestSetInputTensorByIndex)
	reg("ov_infer_request_get_tensor", &t.inferRequestGetTensor)
	reg("ov_infer_request_get_input_tensor_by_index", &t.inferRequestGetInputTensorByIndex)
	reg("ov_infer_request_get_output_tensor_by_index", &t.inferRequestGetOutputTensorByIndex)
	reg("ov_infer_request_infer", &t.inferRequestInfer)
	reg("ov_infer_request_start_async", &t.inferRequestStartAsync)
	reg("ov_infer_request_wait_for", &t.inferRequestWaitFor)
	reg("ov_infer_request_cancel", &t.inferRequestCancel)

	reg("ov_tensor_create", &t.tensorCreate)
	reg("ov_tensor_create_from_host_ptr", &t.tensorCreateFromHostPtr)
	reg("ov_tensor_get_shape", &t.tensorGetShape)
	reg("ov_tensor_set_shape", &t.tensorSetShape)
	reg("ov_tensor_get_element_type", &t.tensorGetElementType)
	reg("ov_tensor_get_size", &t.tensorGetSize)
	reg("ov_tensor_get_byte_size", &t.tensorGetByteSize)
	reg("ov_tensor_data", &t.tensorData)
	reg("ov_tensor_free", &t.tensorFree)

	reg("ov_shape_create", &t.shapeCreate)
	reg("ov_shape_free", &t.shapeFree)
	reg("ov_partial_shape_create", &t.partialShapeCreate)
	reg("ov_partial_shape_free", &t.partialShapeFree)
	reg("ov_layout_create", &t.layoutCreate)
	reg("ov_layout_free", &t.layoutFree)

	reg("ov_preprocess_prepostprocessor_create", &t.prePostProcessorCreate)
	reg("ov_preprocess_prepostprocessor_free", &t.prePostProcessorFree)
	reg("ov_preprocess_prepostprocessor_get_input_info_by_index", &t.prePostProcessorInputByIndex)
	reg("ov_preprocess_prepostprocessor_get_output_info_by_index", &t.prePostProcessorOutputByIndex)
	reg("ov_preprocess_prepostprocessor_build", &t.prePostProcessorBuild)
	reg("ov_preprocess_input_info_free", &t.inputInfoFree)
	reg("ov_preprocess_input_info_get_tensor_info", &t.inputInfoGetTensorInfo)
	reg("ov_preprocess_input_info_get_preprocess_steps", &t.inputInfoGetPreprocessSteps)
	reg("ov_preprocess_input_info_get_model_info", &t.inputInfoGetModelInfo)
	reg("ov_preprocess_input_tensor_info_free", &t.inputTensorInfoFree)
	reg("ov_preprocess_input_tensor_info_set_element_type", &t.inputTensorInfoSetElementType)
	reg("ov_preprocess_input_tensor_info_set_layout", &t.inputTensorInfoSetLayout)
	reg("ov_preprocess_input_tensor_info_set_from", &t.inputTensorInfoSetFrom)
	reg("ov_preprocess_preprocess_steps_free", &t.preprocessStepsFree)
	reg("ov_preprocess_preprocess_steps_resize", &t.preprocessStepsResize)
	reg("ov_preprocess_input_model_info_free", &t.inputModelInfoFree)
	reg("ov_preprocess_input_model_info_set_layout", &t.inputModelInfoSetLayout)
	reg("ov_preprocess_output_info_free", &t.outputInfoFree)
	reg("ov_preprocess_output_info_get_tensor_info", &t.outputInfoGetTensorInfo)
	reg("ov_preprocess_output_tensor_info_free", &t.outputTensorInfoFree)
	reg("ov_preprocess_output_set_element_type", &t.outputSetElementType)

	return t
}
