package ov

import (
	"runtime"
	"time"
)

// InferRequest owns one native ov_infer_request_t. A request is not safe for
// concurrent use by multiple goroutines; create one request per worker.
type InferRequest struct {
	t      *apiTable
	handle uintptr
}

func newInferRequestHandle(t *apiTable, handle uintptr) *InferRequest {
	r := &InferRequest{t: t, handle: handle}
	runtime.SetFinalizer(r, func(r *InferRequest) {
		_ = r.Destroy()
	})
	return r
}

// Destroy releases the request exactly once; safe to call repeatedly.
func (r *InferRequest) Destroy() error {
	if r == nil {
		return nil
	}

	handle := r.handle
	r.handle = 0
	runtime.SetFinalizer(r, nil)

	if handle != 0 {
		r.t.inferRequestFree(handle)
	}
	return nil
}

// SetTensor binds a tensor to the port with the given tensor name.
func (r *InferRequest) SetTensor(name string, tensor *Tensor) error {
	status := r.t.inferRequestSetTensor(r.handle, name, tensor.handle)
	runtime.KeepAlive(r)
	runtime.KeepAlive(tensor)
	return translateStatus(status, "InferRequest.SetTensor")
}

// SetInputTensorByIndex binds a tensor to the input port at index.
func (r *InferRequest) SetInputTensorByIndex(index int, tensor *Tensor) error {
	status := r.t.inferRequestSetInputTensorByIndex(r.handle, uintptr(index), tensor.handle)
	runtime.KeepAlive(r)
	runtime.KeepAlive(tensor)
	return translateStatus(status, "InferRequest.SetInputTensorByIndex")
}

// GetTensor returns the tensor bound to the port with the given name.
// The returned tensor is an owned handle over the same underlying buffer.
func (r *InferRequest) GetTensor(name string) (*Tensor, error) {
	var handle uintptr
	status := r.t.inferRequestGetTensor(r.handle, name, &handle)
	runtime.KeepAlive(r)
	if err := translateStatus(status, "InferRequest.GetTensor"); err != nil {
		return nil, err
	}
	return newTensorHandle(r.t, handle, nil, nil), nil
}

// GetInputTensorByIndex returns the tensor bound to the input port at index.
func (r *InferRequest) GetInputTensorByIndex(index int) (*Tensor, error) {
	var handle uintptr
	status := r.t.inferRequestGetInputTensorByIndex(r.handle, uintptr(index), &handle)
	runtime.KeepAlive(r)
	if err := translateStatus(status, "InferRequest.GetInputTensorByIndex"); err != nil {
		return nil, err
	}
	return newTensorHandle(r.t, handle, nil, nil), nil
}

// GetOutputTensorByIndex returns the tensor bound to the output port at index.
func (r *InferRequest) GetOutputTensorByIndex(index int) (*Tensor, error) {
	var handle uintptr
	status := r.t.inferRequestGetOutputTensorByIndex(r.handle, uintptr(index), &handle)
	runtime.KeepAlive(r)
	if err := translateStatus(status, "InferRequest.GetOutputTensorByIndex"); err != nil {
		return nil, err
	}
	return newTensorHandle(r.t, handle, nil, nil), nil
}

// Infer runs inference synchronously, blocking until the result is ready.
func (r *InferRequest) Infer() error {
	status := r.t.inferRequestInfer(r.handle)
	runtime.KeepAlive(r)
	return translateStatus(status, "InferRequest.Infer")
}

// StartAsync starts inference without blocking. Pair with Wait.
func (r *InferRequest) StartAsync() error {
	status := r.t.inferRequestStartAsync(r.handle)
	runtime.KeepAlive(r)
	return translateStatus(status, "InferRequest.StartAsync")
}

// Wait blocks the calling goroutine until the async inference completes or
// the timeout elapses. A timeout surfaces as a translated status (typically
// StatusResultNotReady); the native work keeps running - there is no
// cancellation on timeout. Use Cancel to abort the request explicitly.
func (r *InferRequest) Wait(timeout time.Duration) error {
	millis := timeout.Milliseconds()
	if timeout > 0 && millis == 0 {
		millis = 1
	}
	status := r.t.inferRequestWaitFor(r.handle, millis)
	runtime.KeepAlive(r)
	return translateStatus(status, "InferRequest.Wait")
}

// Cancel aborts the currently running async inference.
func (r *InferRequest) Cancel() error {
	status := r.t.inferRequestCancel(r.handle)
	runtime.KeepAlive(r)
	return translateStatus(status, "InferRequest.Cancel")
}
