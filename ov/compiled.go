package ov

import "runtime"

// CompiledModel owns one native ov_compiled_model_t: a model compiled for a
// specific device. Creating infer requests from it is thread-safe.
type CompiledModel struct {
	t      *apiTable
	handle uintptr
}

func newCompiledModelHandle(t *apiTable, handle uintptr) *CompiledModel {
	cm := &CompiledModel{t: t, handle: handle}
	runtime.SetFinalizer(cm, func(cm *CompiledModel) {
		_ = cm.Destroy()
	})
	return cm
}

// Destroy releases the compiled model exactly once; safe to call repeatedly.
func (cm *CompiledModel) Destroy() error {
	if cm == nil {
		return nil
	}

	handle := cm.handle
	cm.handle = 0
	runtime.SetFinalizer(cm, nil)

	if handle != 0 {
		cm.t.compiledModelFree(handle)
	}
	return nil
}

// CreateInferRequest creates an inference request bound to this compiled
// model. Requests are independent; use one per worker goroutine.
func (cm *CompiledModel) CreateInferRequest() (*InferRequest, error) {
	var handle uintptr
	status := cm.t.compiledModelCreateInferRequest(cm.handle, &handle)
	runtime.KeepAlive(cm)
	if err := translateStatus(status, "CompiledModel.CreateInferRequest"); err != nil {
		return nil, err
	}
	return newInferRequestHandle(cm.t, handle), nil
}

// InputCount returns the number of compiled-model inputs.
func (cm *CompiledModel) InputCount() (int, error) {
	var out uintptr
	status := cm.t.compiledModelInputsSize(cm.handle, &out)
	runtime.KeepAlive(cm)
	if err := translateStatus(status, "CompiledModel.InputCount"); err != nil {
		return 0, err
	}
	return int(out), nil
}

// OutputCount returns the number of compiled-model outputs.
func (cm *CompiledModel) OutputCount() (int, error) {
	var out uintptr
	status := cm.t.compiledModelOutputsSize(cm.handle, &out)
	runtime.KeepAlive(cm)
	if err := translateStatus(status, "CompiledModel.OutputCount"); err != nil {
		return 0, err
	}
	return int(out), nil
}

// InputByIndex returns the compiled-model input port at index.
func (cm *CompiledModel) InputByIndex(index int) (*Port, error) {
	var handle uintptr
	status := cm.t.compiledModelInputByIndex(cm.handle, uintptr(index), &handle)
	runtime.KeepAlive(cm)
	if err := translateStatus(status, "CompiledModel.InputByIndex"); err != nil {
		return nil, err
	}
	return newPortHandle(cm.t, handle), nil
}

// OutputByIndex returns the compiled-model output port at index.
func (cm *CompiledModel) OutputByIndex(index int) (*Port, error) {
	var handle uintptr
	status := cm.t.compiledModelOutputByIndex(cm.handle, uintptr(index), &handle)
	runtime.KeepAlive(cm)
	if err := translateStatus(status, "CompiledModel.OutputByIndex"); err != nil {
		return nil, err
	}
	return newPortHandle(cm.t, handle), nil
}
