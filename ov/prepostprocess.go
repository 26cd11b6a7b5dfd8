package ov

import "runtime"

// ResizeAlgorithm selects the interpolation used by PreprocessSteps.Resize.
// Values mirror ov_preprocess_resize_algorithm_e.
type ResizeAlgorithm int32

const (
	ResizeLinear ResizeAlgorithm = iota
	ResizeCubic
	ResizeNearest
)

// PrePostProcessor owns one native ov_preprocess_prepostprocessor_t. It
// rewrites a model with pre/post-processing steps (element type conversion,
// layout changes, resizing) and builds a new model embedding them.
type PrePostProcessor struct {
	t      *apiTable
	handle uintptr
}

// NewPrePostProcessor creates a pre/post-processing pipeline for a model.
func NewPrePostProcessor(model *Model) (*PrePostProcessor, error) {
	t := model.t

	var handle uintptr
	status := t.prePostProcessorCreate(model.handle, &handle)
	runtime.KeepAlive(model)
	if err := translateStatus(status, "PrePostProcessor.Create"); err != nil {
		return nil, err
	}

	pp := &PrePostProcessor{t: t, handle: handle}
	runtime.SetFinalizer(pp, func(pp *PrePostProcessor) {
		_ = pp.Destroy()
	})
	return pp, nil
}

// Destroy releases the processor exactly once; safe to call repeatedly.
func (pp *PrePostProcessor) Destroy() error {
	if pp == nil {
		return nil
	}

	handle := pp.handle
	pp.handle = 0
	runtime.SetFinalizer(pp, nil)

	if handle != 0 {
		pp.t.prePostProcessorFree(handle)
	}
	return nil
}

// InputByIndex returns the pipeline stage for the model input at index.
func (pp *PrePostProcessor) InputByIndex(index int) (*InputInfo, error) {
	var handle uintptr
	status := pp.t.prePostProcessorInputByIndex(pp.handle, uintptr(index), &handle)
	runtime.KeepAlive(pp)
	if err := translateStatus(status, "PrePostProcessor.InputByIndex"); err != nil {
		return nil, err
	}
	return newInputInfo(pp.t, handle), nil
}

// OutputByIndex returns the pipeline stage for the model output at index.
func (pp *PrePostProcessor) OutputByIndex(index int) (*OutputInfo, error) {
	var handle uintptr
	status := pp.t.prePostProcessorOutputByIndex(pp.handle, uintptr(index), &handle)
	runtime.KeepAlive(pp)
	if err := translateStatus(status, "PrePostProcessor.OutputByIndex"); err != nil {
		return nil, err
	}
	return newOutputInfo(pp.t, handle), nil
}

// Build bakes the configured steps into a new model.
func (pp *PrePostProcessor) Build() (*Model, error) {
	var handle uintptr
	status := pp.t.prePostProcessorBuild(pp.handle, &handle)
	runtime.KeepAlive(pp)
	if err := translateStatus(status, "PrePostProcessor.Build"); err != nil {
		return nil, err
	}
	return newModelHandle(pp.t, handle), nil
}

// stage is the shared shape of the small pipeline-stage handles: a native
// pointer plus its matching free function, released exactly once. owner is
// the outer wrapper carrying the finalizer, so Destroy can clear it.
type stage struct {
	t      *apiTable
	handle uintptr
	free   func(uintptr)
	owner  any
}

// Destroy releases the stage exactly once; safe to call repeatedly.
func (s *stage) Destroy() error {
	if s == nil {
		return nil
	}

	handle := s.handle
	s.handle = 0
	if s.owner != nil {
		runtime.SetFinalizer(s.owner, nil)
	}

	if handle != 0 && s.free != nil {
		s.free(handle)
	}
	return nil
}

// InputInfo is the pipeline stage for one model input.
type InputInfo struct{ stage }

// OutputInfo is the pipeline stage for one model output.
type OutputInfo struct{ stage }

// InputTensorInfo declares what the caller's input tensors look like.
type InputTensorInfo struct{ stage }

// PreprocessSteps holds the conversion steps applied to an input.
type PreprocessSteps struct{ stage }

// InputModelInfo declares properties of the model's own input.
type InputModelInfo struct{ stage }

// OutputTensorInfo declares what the produced output tensors look like.
type OutputTensorInfo struct{ stage }

func newInputInfo(t *apiTable, handle uintptr) *InputInfo {
	w := &InputInfo{stage{t: t, handle: handle, free: t.inputInfoFree}}
	w.owner = w
	runtime.SetFinalizer(w, func(w *InputInfo) { _ = w.Destroy() })
	return w
}

func newOutputInfo(t *apiTable, handle uintptr) *OutputInfo {
	w := &OutputInfo{stage{t: t, handle: handle, free: t.outputInfoFree}}
	w.owner = w
	runtime.SetFinalizer(w, func(w *OutputInfo) { _ = w.Destroy() })
	return w
}

func newInputTensorInfo(t *apiTable, handle uintptr) *InputTensorInfo {
	w := &InputTensorInfo{stage{t: t, handle: handle, free: t.inputTensorInfoFree}}
	w.owner = w
	runtime.SetFinalizer(w, func(w *InputTensorInfo) { _ = w.Destroy() })
	return w
}

func newPreprocessSteps(t *apiTable, handle uintptr) *PreprocessSteps {
	w := &PreprocessSteps{stage{t: t, handle: handle, free: t.preprocessStepsFree}}
	w.owner = w
	runtime.SetFinalizer(w, func(w *PreprocessSteps) { _ = w.Destroy() })
	return w
}

func newInputModelInfo(t *apiTable, handle uintptr) *InputModelInfo {
	w := &InputModelInfo{stage{t: t, handle: handle, free: t.inputModelInfoFree}}
	w.owner = w
	runtime.SetFinalizer(w, func(w *InputModelInfo) { _ = w.Destroy() })
	return w
}

func newOutputTensorInfo(t *apiTable, handle uintptr) *OutputTensorInfo {
	w := &OutputTensorInfo{stage{t: t, handle: handle, free: t.outputTensorInfoFree}}
	w.owner = w
	runtime.SetFinalizer(w, func(w *OutputTensorInfo) { _ = w.Destroy() })
	return w
}

// TensorInfo returns the declaration of the caller-provided input tensor.
func (in *InputInfo) TensorInfo() (*InputTensorInfo, error) {
	var handle uintptr
	status := in.t.inputInfoGetTensorInfo(in.handle, &handle)
	runtime.KeepAlive(in)
	if err := translateStatus(status, "InputInfo.TensorInfo"); err != nil {
		return nil, err
	}
	return newInputTensorInfo(in.t, handle), nil
}

// PreprocessSteps returns the step list applied to this input.
func (in *InputInfo) PreprocessSteps() (*PreprocessSteps, error) {
	var handle uintptr
	status := in.t.inputInfoGetPreprocessSteps(in.handle, &handle)
	runtime.KeepAlive(in)
	if err := translateStatus(status, "InputInfo.PreprocessSteps"); err != nil {
		return nil, err
	}
	return newPreprocessSteps(in.t, handle), nil
}

// ModelInfo returns the declaration of the model's own input.
func (in *InputInfo) ModelInfo() (*InputModelInfo, error) {
	var handle uintptr
	status := in.t.inputInfoGetModelInfo(in.handle, &handle)
	runtime.KeepAlive(in)
	if err := translateStatus(status, "InputInfo.ModelInfo"); err != nil {
		return nil, err
	}
	return newInputModelInfo(in.t, handle), nil
}

// SetElementType declares the element type of caller-provided tensors.
func (ti *InputTensorInfo) SetElementType(elementType ElementType) error {
	status := ti.t.inputTensorInfoSetElementType(ti.handle, elementType)
	runtime.KeepAlive(ti)
	return translateStatus(status, "InputTensorInfo.SetElementType")
}

// SetLayout declares the layout of caller-provided tensors.
func (ti *InputTensorInfo) SetLayout(layout *Layout) error {
	status := ti.t.inputTensorInfoSetLayout(ti.handle, layout.handle)
	runtime.KeepAlive(ti)
	runtime.KeepAlive(layout)
	return translateStatus(status, "InputTensorInfo.SetLayout")
}

// SetFrom infers the tensor declaration from an example tensor.
func (ti *InputTensorInfo) SetFrom(tensor *Tensor) error {
	status := ti.t.inputTensorInfoSetFrom(ti.handle, tensor.handle)
	runtime.KeepAlive(ti)
	runtime.KeepAlive(tensor)
	return translateStatus(status, "InputTensorInfo.SetFrom")
}

// Resize appends a spatial resize step with the given algorithm.
func (ps *PreprocessSteps) Resize(algorithm ResizeAlgorithm) error {
	status := ps.t.preprocessStepsResize(ps.handle, algorithm)
	runtime.KeepAlive(ps)
	return translateStatus(status, "PreprocessSteps.Resize")
}

// SetLayout declares the layout the model's input expects.
func (mi *InputModelInfo) SetLayout(layout *Layout) error {
	status := mi.t.inputModelInfoSetLayout(mi.handle, layout.handle)
	runtime.KeepAlive(mi)
	runtime.KeepAlive(layout)
	return translateStatus(status, "InputModelInfo.SetLayout")
}

// TensorInfo returns the declaration of the produced output tensor.
func (out *OutputInfo) TensorInfo() (*OutputTensorInfo, error) {
	var handle uintptr
	status := out.t.outputInfoGetTensorInfo(out.handle, &handle)
	runtime.KeepAlive(out)
	if err := translateStatus(status, "OutputInfo.TensorInfo"); err != nil {
		return nil, err
	}
	return newOutputTensorInfo(out.t, handle), nil
}

// SetElementType declares the element type of produced output tensors.
func (ti *OutputTensorInfo) SetElementType(elementType ElementType) error {
	status := ti.t.outputSetElementType(ti.handle, elementType)
	runtime.KeepAlive(ti)
	return translateStatus(status, "OutputTensorInfo.SetElementType")
}
