package ov

import (
	"fmt"
	"unsafe"
)

// ElementType identifies the data type of tensor elements.
// Values mirror ov_element_type_e from the OpenVINO C API.
type ElementType int32

const (
	ElementTypeUndefined ElementType = iota
	ElementTypeDynamic
	ElementTypeBoolean
	ElementTypeBF16
	ElementTypeF16
	ElementTypeF32
	ElementTypeF64
	ElementTypeI4
	ElementTypeI8
	ElementTypeI16
	ElementTypeI32
	ElementTypeI64
	ElementTypeU1
	ElementTypeU4
	ElementTypeU8
	ElementTypeU16
	ElementTypeU32
	ElementTypeU64
)

// String returns the OpenVINO element type name.
func (e ElementType) String() string {
	switch e {
	case ElementTypeUndefined:
		return "undefined"
	case ElementTypeDynamic:
		return "dynamic"
	case ElementTypeBoolean:
		return "boolean"
	case ElementTypeBF16:
		return "bf16"
	case ElementTypeF16:
		return "f16"
	case ElementTypeF32:
		return "f32"
	case ElementTypeF64:
		return "f64"
	case ElementTypeI4:
		return "i4"
	case ElementTypeI8:
		return "i8"
	case ElementTypeI16:
		return "i16"
	case ElementTypeI32:
		return "i32"
	case ElementTypeI64:
		return "i64"
	case ElementTypeU1:
		return "u1"
	case ElementTypeU4:
		return "u4"
	case ElementTypeU8:
		return "u8"
	case ElementTypeU16:
		return "u16"
	case ElementTypeU32:
		return "u32"
	case ElementTypeU64:
		return "u64"
	default:
		return fmt.Sprintf("ElementType(%d)", int32(e))
	}
}

// ByteSize returns the size in bytes of one element, or 0 for sub-byte,
// dynamic and undefined types.
func (e ElementType) ByteSize() uintptr {
	switch e {
	case ElementTypeBoolean, ElementTypeI8, ElementTypeU8:
		return 1
	case ElementTypeBF16, ElementTypeF16, ElementTypeI16, ElementTypeU16:
		return 2
	case ElementTypeF32, ElementTypeI32, ElementTypeU32:
		return 4
	case ElementTypeF64, ElementTypeI64, ElementTypeU64:
		return 8
	default:
		return 0
	}
}

// elementTypeOf maps a Go element type T to OpenVINO element metadata.
// Supported types are float32, float64, int8, int16, int32, int64,
// uint8, uint16, uint32 and uint64.
func elementTypeOf[T any]() (ElementType, uintptr, error) {
	var zero T

	switch any(zero).(type) {
	case float32:
		return ElementTypeF32, unsafe.Sizeof(zero), nil
	case float64:
		return ElementTypeF64, unsafe.Sizeof(zero), nil
	case int8:
		return ElementTypeI8, unsafe.Sizeof(zero), nil
	case int16:
		return ElementTypeI16, unsafe.Sizeof(zero), nil
	case int32:
		return ElementTypeI32, unsafe.Sizeof(zero), nil
	case int64:
		return ElementTypeI64, unsafe.Sizeof(zero), nil
	case uint8:
		return ElementTypeU8, unsafe.Sizeof(zero), nil
	case uint16:
		return ElementTypeU16, unsafe.Sizeof(zero), nil
	case uint32:
		return ElementTypeU32, unsafe.Sizeof(zero), nil
	case uint64:
		return ElementTypeU64, unsafe.Sizeof(zero), nil
	default:
		return ElementTypeUndefined, 0, fmt.Errorf("unsupported tensor element type %T", zero)
	}
}
