package npy

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/FocuswithJustin/npzconv/core/errors"
)

// Array is a decoded n-dimensional array. Elements are held in C (row-major)
// order as JSON-ready leaves: int64, uint64, float64, bool or string.
type Array struct {
	dtype DType
	shape []int
	elems []any
}

// DType returns the element type.
func (a *Array) DType() DType { return a.dtype }

// Shape returns a copy of the dimension sizes. A 0-d array has an empty shape.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Ndim returns the number of dimensions.
func (a *Array) Ndim() int { return len(a.shape) }

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.elems) }

// At returns the element at flat C-order index i.
func (a *Array) At(i int) any { return a.elems[i] }

// ToList returns the array as nested []any lists, one level per dimension.
// A 0-d array returns its single element.
func (a *Array) ToList() any {
	if len(a.shape) == 0 {
		return a.elems[0]
	}
	v, _ := a.nest(0, 0)
	return v
}

// nest builds the list for dimension dim starting at flat offset off and
// returns the offset just past it.
func (a *Array) nest(dim, off int) (any, int) {
	n := a.shape[dim]
	out := make([]any, n)
	if dim == len(a.shape)-1 {
		copy(out, a.elems[off:off+n])
		return out, off + n
	}
	for i := 0; i < n; i++ {
		out[i], off = a.nest(dim+1, off)
	}
	return out, off
}

// MaxPayloadBytes bounds the payload size a header may declare.
var MaxPayloadBytes = 1 << 31

// Read decodes one NPY stream.
func Read(r io.Reader) (*Array, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	return ReadData(r, h)
}

// ReadData decodes the payload that follows header h.
func ReadData(r io.Reader, h Header) (*Array, error) {
	if err := checkDims(h.Shape); err != nil {
		return nil, errors.NewCorrupt("", "", fmt.Sprintf("shape %s: %v", FormatShape(h.Shape), err))
	}
	count := h.Count()
	size := count * h.DType.Size
	if size > MaxPayloadBytes {
		return nil, errors.NewCorrupt("", "", fmt.Sprintf("shape %s is too large", FormatShape(h.Shape)))
	}

	buf := make([]byte, size)
	if n, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.NewCorrupt("", "", fmt.Sprintf("truncated payload: got %d of %d bytes", n, size))
	}

	elems := make([]any, count)
	for i := range elems {
		v, err := decodeElem(h.DType, buf[i*h.DType.Size:(i+1)*h.DType.Size])
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}

	if h.FortranOrder && len(h.Shape) > 1 {
		elems = fortranToC(elems, h.Shape)
	}

	return &Array{dtype: h.DType, shape: append([]int(nil), h.Shape...), elems: elems}, nil
}

func decodeElem(dt DType, b []byte) (any, error) {
	order := dt.byteOrder()
	switch dt.Kind {
	case KindBool:
		return b[0] != 0, nil
	case KindInt:
		switch dt.Size {
		case 1:
			return int64(int8(b[0])), nil
		case 2:
			return int64(int16(order.Uint16(b))), nil
		case 4:
			return int64(int32(order.Uint32(b))), nil
		case 8:
			return int64(order.Uint64(b)), nil
		}
	case KindUint:
		switch dt.Size {
		case 1:
			return uint64(b[0]), nil
		case 2:
			return uint64(order.Uint16(b)), nil
		case 4:
			return uint64(order.Uint32(b)), nil
		case 8:
			return order.Uint64(b), nil
		}
	case KindFloat:
		switch dt.Size {
		case 2:
			return float64(halfToFloat32(order.Uint16(b))), nil
		case 4:
			return float64(math.Float32frombits(order.Uint32(b))), nil
		case 8:
			return math.Float64frombits(order.Uint64(b)), nil
		}
	case KindUnicode:
		var sb strings.Builder
		for i := 0; i+4 <= len(b); i += 4 {
			r := rune(order.Uint32(b[i:]))
			if r == 0 {
				break
			}
			if !utf8.ValidRune(r) {
				return nil, errors.NewCorrupt("", "", fmt.Sprintf("invalid code point %#x", r))
			}
			sb.WriteRune(r)
		}
		return sb.String(), nil
	}
	return nil, errors.NewUnsupported("dtype", dt.Descr())
}

// fortranToC reorders column-major elements into row-major order.
func fortranToC(src []any, shape []int) []any {
	dst := make([]any, len(src))
	idx := make([]int, len(shape))
	for c := range dst {
		// column-major offset of the C-order index idx
		off, stride := 0, 1
		for d := 0; d < len(shape); d++ {
			off += idx[d] * stride
			stride *= shape[d]
		}
		dst[c] = src[off]

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return dst
}

// halfToFloat32 widens an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: normalize into float32's range
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
}
