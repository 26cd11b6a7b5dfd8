package ov

import "runtime"

// Model owns one native ov_model_t: a read, not yet compiled model graph.
type Model struct {
	t      *apiTable
	handle uintptr
}

func newModelHandle(t *apiTable, handle uintptr) *Model {
	m := &Model{t: t, handle: handle}
	runtime.SetFinalizer(m, func(m *Model) {
		_ = m.Destroy()
	})
	return m
}

// Destroy releases the model exactly once; safe to call repeatedly.
func (m *Model) Destroy() error {
	if m == nil {
		return nil
	}

	handle := m.handle
	m.handle = 0
	runtime.SetFinalizer(m, nil)

	if handle != 0 {
		m.t.modelFree(handle)
	}
	return nil
}

// InputCount returns the number of model inputs.
func (m *Model) InputCount() (int, error) {
	var out uintptr
	status := m.t.modelInputsSize(m.handle, &out)
	runtime.KeepAlive(m)
	if err := translateStatus(status, "Model.InputCount"); err != nil {
		return 0, err
	}
	return int(out), nil
}

// OutputCount returns the number of model outputs.
func (m *Model) OutputCount() (int, error) {
	var out uintptr
	status := m.t.modelOutputsSize(m.handle, &out)
	runtime.KeepAlive(m)
	if err := translateStatus(status, "Model.OutputCount"); err != nil {
		return 0, err
	}
	return int(out), nil
}

// InputByIndex returns the model input port at index.
func (m *Model) InputByIndex(index int) (*Port, error) {
	var handle uintptr
	status := m.t.modelConstInputByIndex(m.handle, uintptr(index), &handle)
	runtime.KeepAlive(m)
	if err := translateStatus(status, "Model.InputByIndex"); err != nil {
		return nil, err
	}
	return newPortHandle(m.t, handle), nil
}

// OutputByIndex returns the model output port at index.
func (m *Model) OutputByIndex(index int) (*Port, error) {
	var handle uintptr
	status := m.t.modelConstOutputByIndex(m.handle, uintptr(index), &handle)
	runtime.KeepAlive(m)
	if err := translateStatus(status, "Model.OutputByIndex"); err != nil {
		return nil, err
	}
	return newPortHandle(m.t, handle), nil
}

// IsDynamic reports whether any model output has a dynamic shape.
func (m *Model) IsDynamic() bool {
	dynamic := m.t.modelIsDynamic(m.handle)
	runtime.KeepAlive(m)
	return dynamic
}

// FriendlyName returns the model's friendly name.
func (m *Model) FriendlyName() (string, error) {
	var out uintptr
	status := m.t.modelGetFriendlyName(m.handle, &out)
	if err := translateStatus(status, "Model.FriendlyName"); err != nil {
		return "", err
	}
	name := cstringToGo(out)
	if out != 0 {
		m.t.ovFree(out)
	}
	runtime.KeepAlive(m)
	return name, nil
}

// Port owns one native ov_output_const_port_t describing a model or
// compiled-model input or output.
type Port struct {
	t      *apiTable
	handle uintptr
}

func newPortHandle(t *apiTable, handle uintptr) *Port {
	p := &Port{t: t, handle: handle}
	runtime.SetFinalizer(p, func(p *Port) {
		_ = p.Destroy()
	})
	return p
}

// Destroy releases the port exactly once; safe to call repeatedly.
func (p *Port) Destroy() error {
	if p == nil {
		return nil
	}

	handle := p.handle
	p.handle = 0
	runtime.SetFinalizer(p, nil)

	if handle != 0 {
		p.t.constPortFree(handle)
	}
	return nil
}

// AnyName returns the tensor name associated with the port.
func (p *Port) AnyName() (string, error) {
	var out uintptr
	status := p.t.portGetAnyName(p.handle, &out)
	if err := translateStatus(status, "Port.AnyName"); err != nil {
		return "", err
	}
	name := cstringToGo(out)
	if out != 0 {
		p.t.ovFree(out)
	}
	runtime.KeepAlive(p)
	return name, nil
}

// ElementType returns the element type of the port's tensor.
func (p *Port) ElementType() (ElementType, error) {
	var out ElementType
	status := p.t.portGetElementType(p.handle, &out)
	runtime.KeepAlive(p)
	if err := translateStatus(status, "Port.ElementType"); err != nil {
		return ElementTypeUndefined, err
	}
	return out, nil
}

// PartialShape returns the possibly-dynamic shape of the port's tensor.
func (p *Port) PartialShape() (PartialShape, error) {
	var n partialShapeNative
	status := p.t.portGetPartialShape(p.handle, &n)
	if err := translateStatus(status, "Port.PartialShape"); err != nil {
		return PartialShape{}, err
	}
	shape := partialShapeFromNative(&n)
	p.t.partialShapeFree(&n)
	runtime.KeepAlive(p)
	return shape, nil
}
