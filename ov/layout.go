package ov

import "runtime"

// Layout owns one native ov_layout_t describing dimension semantics,
// for example "NCHW" or "NHWC".
type Layout struct {
	t      *apiTable
	handle uintptr
	desc   string
}

// NewLayout creates a layout from its string description.
func NewLayout(desc string) (*Layout, error) {
	t := DefaultLoader.api()

	var handle uintptr
	status := t.layoutCreate(desc, &handle)
	if err := translateStatus(status, "Layout.Create"); err != nil {
		return nil, err
	}

	l := &Layout{t: t, handle: handle, desc: desc}
	runtime.SetFinalizer(l, func(l *Layout) {
		_ = l.Destroy()
	})
	return l, nil
}

// String returns the description the layout was created from.
func (l *Layout) String() string {
	return l.desc
}

// Destroy releases the layout exactly once; safe to call repeatedly.
func (l *Layout) Destroy() error {
	if l == nil {
		return nil
	}

	handle := l.handle
	l.handle = 0
	runtime.SetFinalizer(l, nil)

	if handle != 0 {
		l.t.layoutFree(handle)
	}
	return nil
}
