package ov

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// Shape is a static tensor shape: one non-negative extent per dimension.
type Shape []int64

// NewShape creates a shape from dimensions.
func NewShape(dims ...int64) Shape {
	return Shape(dims)
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// ElementCount returns the total number of elements a tensor of this shape
// holds. Dimensions must be non-negative; a zero dimension yields zero.
func (s Shape) ElementCount() (int, error) {
	maxInt := int(^uint(0) >> 1)

	count := 1
	for i, dim := range s {
		if dim < 0 {
			return 0, fmt.Errorf("invalid shape dimension at index %d: %d (must be >= 0)", i, dim)
		}

		if dim == 0 {
			count = 0
			continue
		}

		if count == 0 {
			continue
		}

		if dim > int64(maxInt) {
			return 0, fmt.Errorf("shape dimension at index %d is too large: %d", i, dim)
		}

		dimInt := int(dim)
		if count > maxInt/dimInt {
			return 0, fmt.Errorf("shape %v exceeds maximum supported element count", s)
		}

		count *= dimInt
	}

	return count, nil
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, dim := range s {
		parts[i] = strconv.FormatInt(dim, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseShape parses a comma-separated shape string (for example: "1,3,227,227").
func ParseShape(raw string) (Shape, error) {
	parts := strings.Split(raw, ",")
	shape := make(Shape, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty dimension")
		}

		dim, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dimension %q: %w", part, err)
		}
		if dim < 0 {
			return nil, fmt.Errorf("negative dimension %d", dim)
		}
		shape = append(shape, dim)
	}

	return shape, nil
}

func cloneShape(shape Shape) Shape {
	if len(shape) == 0 {
		// Keep scalar shapes as non-nil empty shape (rank 0), not nil.
		return Shape{}
	}

	shapeCopy := make(Shape, len(shape))
	copy(shapeCopy, shape)
	return shapeCopy
}

// shapeDimsPtr returns a pointer to the first dimension for FFI calls.
// The caller must keep the shape alive across the native call.
func shapeDimsPtr(shape Shape) *int64 {
	if len(shape) == 0 {
		return nil
	}
	return unsafe.SliceData(shape)
}

// shapeFromNative copies a natively-owned ov_shape_t into a Go shape.
// It does not free the native struct; the caller pairs that with shapeFree.
func shapeFromNative(n *shapeNative) Shape {
	if n.Rank <= 0 || n.Dims == 0 {
		return Shape{}
	}
	dims := unsafe.Slice((*int64)(unsafe.Pointer(n.Dims)), int(n.Rank))
	out := make(Shape, n.Rank)
	copy(out, dims)
	return out
}

// Dimension is a possibly-dynamic dimension expressed as an inclusive
// [Min,Max] bound pair. A static dimension has Min == Max.
type Dimension struct {
	Min int64
	Max int64
}

// StaticDimension returns a dimension with a fixed extent.
func StaticDimension(size int64) Dimension {
	return Dimension{Min: size, Max: size}
}

// IsDynamic reports whether the dimension's bounds differ.
func (d Dimension) IsDynamic() bool {
	return d.Min != d.Max
}

func (d Dimension) String() string {
	if !d.IsDynamic() {
		return strconv.FormatInt(d.Min, 10)
	}
	return fmt.Sprintf("%d..%d", d.Min, d.Max)
}

// Rank is the possibly-dynamic rank of a partial shape, with the same
// bound-pair convention as Dimension.
type Rank = Dimension

// PartialShape is a shape in which the rank and each dimension may be
// dynamic. It is a plain Go value; the corresponding native struct is
// built and freed per call.
type PartialShape struct {
	RankBounds Rank
	Dims       []Dimension
}

// NewPartialShape creates a static-rank partial shape from dimensions.
func NewPartialShape(dims ...Dimension) PartialShape {
	r := int64(len(dims))
	return PartialShape{RankBounds: StaticDimension(r), Dims: dims}
}

// IsDynamic reports whether the rank or any dimension is dynamic.
func (p PartialShape) IsDynamic() bool {
	if p.RankBounds.IsDynamic() {
		return true
	}
	for _, d := range p.Dims {
		if d.IsDynamic() {
			return true
		}
	}
	return false
}

// Shape converts a fully static partial shape into a Shape.
func (p PartialShape) Shape() (Shape, error) {
	if p.IsDynamic() {
		return nil, fmt.Errorf("partial shape %s is dynamic", p)
	}
	out := make(Shape, len(p.Dims))
	for i, d := range p.Dims {
		out[i] = d.Min
	}
	return out, nil
}

func (p PartialShape) String() string {
	if p.RankBounds.IsDynamic() && len(p.Dims) == 0 {
		return "[...]"
	}
	parts := make([]string, len(p.Dims))
	for i, d := range p.Dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// partialShapeFromNative copies a natively-owned ov_partial_shape_t into a Go
// value. The caller pairs it with partialShapeFree.
func partialShapeFromNative(n *partialShapeNative) PartialShape {
	p := PartialShape{RankBounds: Rank{Min: n.Rank.Min, Max: n.Rank.Max}}
	if n.Dims == 0 || n.Rank.Min != n.Rank.Max || n.Rank.Min <= 0 {
		return p
	}
	dims := unsafe.Slice((*dimensionNative)(unsafe.Pointer(n.Dims)), int(n.Rank.Min))
	p.Dims = make([]Dimension, len(dims))
	for i, d := range dims {
		p.Dims[i] = Dimension{Min: d.Min, Max: d.Max}
	}
	return p
}
