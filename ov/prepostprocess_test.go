package ov

import (
	"runtime"
	"testing"
	"time"
)

// useFakeDefaultLoader points the package-level DefaultLoader at a fake
// runtime for the duration of one test. Tests that use it must not run in
// parallel.
func useFakeDefaultLoader(t *testing.T, f *fakeRuntime) {
	t.Helper()
	DefaultLoader.mu.Lock()
	orig := DefaultLoader.tab
	DefaultLoader.tab = f.table()
	DefaultLoader.mu.Unlock()
	t.Cleanup(func() {
		DefaultLoader.mu.Lock()
		DefaultLoader.tab = orig
		DefaultLoader.mu.Unlock()
	})
}

func TestLayoutLifecycle(t *testing.T) {
	f := newFakeRuntime()
	useFakeDefaultLoader(t, f)

	layout, err := NewLayout("NCHW")
	if err != nil {
		t.Fatal(err)
	}
	if layout.String() != "NCHW" {
		t.Errorf("String() = %q, want NCHW", layout.String())
	}

	for i := 0; i < 3; i++ {
		if err := layout.Destroy(); err != nil {
			t.Fatal(err)
		}
	}
	if f.frees["layout"] != 1 {
		t.Errorf("layout frees = %d, want exactly 1", f.frees["layout"])
	}
}

func TestPrePostProcessorInputChain(t *testing.T) {
	f := newFakeRuntime()
	useFakeDefaultLoader(t, f)
	model := newFakeModel(t, f)

	pp, err := NewPrePostProcessor(model)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Destroy()

	input, err := pp.InputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	defer input.Destroy()

	tensorInfo, err := input.TensorInfo()
	if err != nil {
		t.Fatal(err)
	}
	defer tensorInfo.Destroy()

	if err := tensorInfo.SetElementType(ElementTypeU8); err != nil {
		t.Fatal(err)
	}

	nhwc, err := NewLayout("NHWC")
	if err != nil {
		t.Fatal(err)
	}
	defer nhwc.Destroy()
	if err := tensorInfo.SetLayout(nhwc); err != nil {
		t.Fatal(err)
	}

	steps, err := input.PreprocessSteps()
	if err != nil {
		t.Fatal(err)
	}
	defer steps.Destroy()
	if err := steps.Resize(ResizeLinear); err != nil {
		t.Fatal(err)
	}

	modelInfo, err := input.ModelInfo()
	if err != nil {
		t.Fatal(err)
	}
	defer modelInfo.Destroy()

	nchw, err := NewLayout("NCHW")
	if err != nil {
		t.Fatal(err)
	}
	defer nchw.Destroy()
	if err := modelInfo.SetLayout(nchw); err != nil {
		t.Fatal(err)
	}

	built, err := pp.Build()
	if err != nil {
		t.Fatal(err)
	}
	defer built.Destroy()

	name, err := built.FriendlyName()
	if err != nil {
		t.Fatal(err)
	}
	if name != "built" {
		t.Errorf("built model friendly name = %q", name)
	}
}

func TestPrePostProcessorOutputChain(t *testing.T) {
	f := newFakeRuntime()
	model := newFakeModel(t, f)

	pp, err := NewPrePostProcessor(model)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Destroy()

	output, err := pp.OutputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	defer output.Destroy()

	tensorInfo, err := output.TensorInfo()
	if err != nil {
		t.Fatal(err)
	}
	defer tensorInfo.Destroy()

	if err := tensorInfo.SetElementType(ElementTypeF32); err != nil {
		t.Fatal(err)
	}
}

func TestInputTensorInfoSetFrom(t *testing.T) {
	f := newFakeRuntime()
	model := newFakeModel(t, f)
	l := newFakeLoader(f)

	pp, err := NewPrePostProcessor(model)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Destroy()

	input, err := pp.InputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	defer input.Destroy()

	tensorInfo, err := input.TensorInfo()
	if err != nil {
		t.Fatal(err)
	}
	defer tensorInfo.Destroy()

	example, err := NewTensorWithLoader(l, ElementTypeU8, NewShape(1, 227, 227, 3))
	if err != nil {
		t.Fatal(err)
	}
	defer example.Destroy()

	if err := tensorInfo.SetFrom(example); err != nil {
		t.Fatal(err)
	}
}

// An abandoned stage is reclaimed by its finalizer; an explicitly destroyed
// stage must have that finalizer cleared, so collection afterwards never
// issues a second free.
func TestStageFinalizerLifecycle(t *testing.T) {
	f := newFakeRuntime()
	model := newFakeModel(t, f)

	pp, err := NewPrePostProcessor(model)
	if err != nil {
		t.Fatal(err)
	}
	defer pp.Destroy()

	abandoned, err := pp.InputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	if abandoned.handle == 0 {
		t.Fatal("stage constructed without a native handle")
	}
	abandoned = nil

	deadline := time.Now().Add(5 * time.Second)
	for {
		runtime.GC()
		f.mu.Lock()
		frees := f.frees["input_info"]
		f.mu.Unlock()
		if frees == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("abandoned stage was not reclaimed by its finalizer")
		}
		time.Sleep(10 * time.Millisecond)
	}

	destroyed, err := pp.InputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := destroyed.Destroy(); err != nil {
		t.Fatal(err)
	}
	destroyed = nil

	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frees["input_info"] != 2 {
		t.Errorf("input_info frees = %d, want exactly 2", f.frees["input_info"])
	}
}

// Every stage handle in the pipeline frees its native object exactly once,
// including when Destroy is called repeatedly.
func TestPipelineStagesFreeExactlyOnce(t *testing.T) {
	f := newFakeRuntime()
	model := newFakeModel(t, f)

	pp, err := NewPrePostProcessor(model)
	if err != nil {
		t.Fatal(err)
	}

	input, err := pp.InputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	tensorInfo, err := input.TensorInfo()
	if err != nil {
		t.Fatal(err)
	}
	steps, err := input.PreprocessSteps()
	if err != nil {
		t.Fatal(err)
	}
	modelInfo, err := input.ModelInfo()
	if err != nil {
		t.Fatal(err)
	}
	output, err := pp.OutputByIndex(0)
	if err != nil {
		t.Fatal(err)
	}
	outputTensorInfo, err := output.TensorInfo()
	if err != nil {
		t.Fatal(err)
	}

	destroyables := []interface{ Destroy() error }{
		tensorInfo, steps, modelInfo, input, outputTensorInfo, output, pp,
	}
	for _, d := range destroyables {
		for i := 0; i < 2; i++ {
			if err := d.Destroy(); err != nil {
				t.Fatal(err)
			}
		}
	}

	for _, kind := range []string{
		"prepostprocessor", "input_info", "input_tensor_info",
		"preprocess_steps", "input_model_info", "output_info", "output_tensor_info",
	} {
		if f.frees[kind] != 1 {
			t.Errorf("%s frees = %d, want exactly 1", kind, f.frees[kind])
		}
	}
}
