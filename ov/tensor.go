package ov

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Tensor owns one native ov_tensor_t. The native buffer either lives on the
// native side (NewTensor) or is a pinned Go slice (NewTensorFromData).
//
// A Tensor is safe to hand between goroutines, but two goroutines must not
// operate on the same Tensor concurrently without external synchronization.
type Tensor struct {
	t      *apiTable
	handle uintptr
	pinner *runtime.Pinner // pins host data while the runtime may access it
	data   any             // keeps the backing Go slice reachable
}

// NewTensor creates a tensor whose buffer is allocated by the runtime.
func NewTensor(elementType ElementType, shape Shape) (*Tensor, error) {
	return NewTensorWithLoader(DefaultLoader, elementType, shape)
}

// NewTensorWithLoader is NewTensor against an explicit loader.
func NewTensorWithLoader(l *Loader, elementType ElementType, shape Shape) (*Tensor, error) {
	t := l.api()

	shapeCopy := cloneShape(shape)
	if _, err := shapeCopy.ElementCount(); err != nil {
		return nil, err
	}

	var handle uintptr
	status := t.tensorCreate(elementType, nativeShapeOf(shapeCopy), &handle)
	runtime.KeepAlive(shapeCopy)
	if err := translateStatus(status, "Tensor.Create"); err != nil {
		return nil, err
	}

	return newTensorHandle(t, handle, nil, nil), nil
}

// NewTensorFromData creates a tensor over the caller's slice. The element
// type is derived from T and the data length must match the shape exactly.
// The slice is pinned for the life of the tensor; the runtime reads and
// writes it in place.
func NewTensorFromData[T any](shape Shape, data []T) (*Tensor, error) {
	return NewTensorFromDataWithLoader(DefaultLoader, shape, data)
}

// NewTensorFromDataWithLoader is NewTensorFromData against an explicit loader.
func NewTensorFromDataWithLoader[T any](l *Loader, shape Shape, data []T) (*Tensor, error) {
	elementType, _, err := elementTypeOf[T]()
	if err != nil {
		return nil, err
	}

	t := l.api()

	shapeCopy := cloneShape(shape)
	elementCount, err := shapeCopy.ElementCount()
	if err != nil {
		return nil, err
	}
	if len(data) != elementCount {
		return nil, fmt.Errorf("data length mismatch: got %d elements, expected %d for shape %v", len(data), elementCount, shapeCopy)
	}

	var dataPtr uintptr
	var pinner *runtime.Pinner
	if len(data) > 0 {
		pinner = &runtime.Pinner{}
		pinner.Pin(unsafe.SliceData(data))
		// #nosec G103 -- CGO-free FFI; the backing array stays pinned for the tensor lifetime.
		dataPtr = uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	}

	var handle uintptr
	status := t.tensorCreateFromHostPtr(elementType, nativeShapeOf(shapeCopy), dataPtr, &handle)
	runtime.KeepAlive(shapeCopy)
	if err := translateStatus(status, "Tensor.CreateFromHostPtr"); err != nil {
		if pinner != nil {
			pinner.Unpin()
		}
		return nil, err
	}

	return newTensorHandle(t, handle, pinner, data), nil
}

func newTensorHandle(t *apiTable, handle uintptr, pinner *runtime.Pinner, data any) *Tensor {
	tensor := &Tensor{t: t, handle: handle, pinner: pinner, data: data}
	// Finalizer is a safety net against leaking the ov_tensor_t if callers
	// forget Destroy().
	runtime.SetFinalizer(tensor, func(tn *Tensor) {
		_ = tn.Destroy()
	})
	return tensor
}

// nativeShapeOf builds an ov_shape_t view over the Go dims for the duration
// of a single native call. The caller keeps the shape alive across the call.
func nativeShapeOf(shape Shape) shapeNative {
	n := shapeNative{Rank: int64(len(shape))}
	if p := shapeDimsPtr(shape); p != nil {
		n.Dims = uintptr(unsafe.Pointer(p))
	}
	return n
}

// ElementType returns the element type of the tensor.
func (tn *Tensor) ElementType() (ElementType, error) {
	var out ElementType
	status := tn.t.tensorGetElementType(tn.handle, &out)
	runtime.KeepAlive(tn)
	if err := translateStatus(status, "Tensor.ElementType"); err != nil {
		return ElementTypeUndefined, err
	}
	return out, nil
}

// GetShape returns a copy of the tensor shape.
func (tn *Tensor) GetShape() (Shape, error) {
	var n shapeNative
	status := tn.t.tensorGetShape(tn.handle, &n)
	if err := translateStatus(status, "Tensor.GetShape"); err != nil {
		return nil, err
	}
	shape := shapeFromNative(&n)
	// The runtime allocated the dims array; exactly one free for the struct.
	_ = tn.t.shapeFree(&n)
	runtime.KeepAlive(tn)
	return shape, nil
}

// SetShape resizes the tensor in place. The new shape's element count must
// fit the allocated buffer; the runtime enforces that and reports a status.
func (tn *Tensor) SetShape(shape Shape) error {
	shapeCopy := cloneShape(shape)
	status := tn.t.tensorSetShape(tn.handle, nativeShapeOf(shapeCopy))
	runtime.KeepAlive(tn)
	runtime.KeepAlive(shapeCopy)
	return translateStatus(status, "Tensor.SetShape")
}

// Size returns the number of elements in the tensor.
func (tn *Tensor) Size() (int, error) {
	var out uintptr
	status := tn.t.tensorGetSize(tn.handle, &out)
	runtime.KeepAlive(tn)
	if err := translateStatus(status, "Tensor.Size"); err != nil {
		return 0, err
	}
	return int(out), nil
}

// ByteSize returns the size of the tensor buffer in bytes.
func (tn *Tensor) ByteSize() (int, error) {
	var out uintptr
	status := tn.t.tensorGetByteSize(tn.handle, &out)
	runtime.KeepAlive(tn)
	if err := translateStatus(status, "Tensor.ByteSize"); err != nil {
		return 0, err
	}
	return int(out), nil
}

// Data returns the raw tensor buffer as a byte slice view over natively-owned
// memory. The view is valid only while the tensor is alive and its shape
// unmodified; it must not be used after Destroy or SetShape.
func (tn *Tensor) Data() ([]byte, error) {
	ptr, byteLen, err := tn.dataPointer()
	if err != nil {
		return nil, err
	}
	if byteLen == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), byteLen), nil
}

func (tn *Tensor) dataPointer() (uintptr, int, error) {
	byteLen, err := tn.ByteSize()
	if err != nil {
		return 0, 0, err
	}

	var ptr uintptr
	status := tn.t.tensorData(tn.handle, &ptr)
	runtime.KeepAlive(tn)
	if err := translateStatus(status, "Tensor.Data"); err != nil {
		return 0, 0, err
	}
	return ptr, byteLen, nil
}

// Destroy releases the native tensor exactly once and unpins any host data.
// It is safe to call multiple times and on a nil receiver.
func (tn *Tensor) Destroy() error {
	if tn == nil {
		return nil
	}

	handle := tn.handle
	pinner := tn.pinner
	tn.handle = 0
	tn.pinner = nil
	tn.data = nil
	runtime.SetFinalizer(tn, nil)

	if handle != 0 {
		tn.t.tensorFree(handle)
	}
	if pinner != nil {
		pinner.Unpin()
	}

	return nil
}

// TensorData reinterprets the tensor buffer as a slice of T after checking
// that the buffer length is an exact multiple of T's size and that the buffer
// address satisfies T's alignment. Both are hard preconditions for a defined
// reinterpretation, so violations are reported as errors, never guessed around.
//
// The returned slice is a view with the same lifetime rules as Data.
func TensorData[T any](tn *Tensor) ([]T, error) {
	ptr, byteLen, err := tn.dataPointer()
	if err != nil {
		return nil, err
	}
	if byteLen == 0 {
		return nil, nil
	}

	var zero T
	size := unsafe.Sizeof(zero)
	align := unsafe.Alignof(zero)

	if size == 0 {
		return nil, fmt.Errorf("cannot reinterpret tensor buffer as zero-size type %T", zero)
	}
	if uintptr(byteLen)%size != 0 {
		return nil, fmt.Errorf("tensor buffer of %d bytes is not a multiple of element size %d (%T)", byteLen, size, zero)
	}
	if ptr%align != 0 {
		return nil, fmt.Errorf("tensor buffer at %#x is not aligned for element type %T (need %d)", ptr, zero, align)
	}

	return unsafe.Slice((*T)(unsafe.Pointer(ptr)), uintptr(byteLen)/size), nil
}

// MustTensorData is TensorData for trusted call sites; it panics on the
// precondition violations TensorData reports as errors.
func MustTensorData[T any](tn *Tensor) []T {
	out, err := TensorData[T](tn)
	if err != nil {
		panic(err)
	}
	return out
}
