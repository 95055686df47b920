package npy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"
)

// Element is the set of Go types NewArray accepts.
type Element interface {
	~bool | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// NewArray builds a little-endian array of the given shape from C-order data.
func NewArray[T Element](shape []int, data []T) (*Array, error) {
	var zero T
	var dt DType
	switch any(zero).(type) {
	case bool:
		dt = DType{Kind: KindBool, Size: 1}
	case int8:
		dt = DType{Kind: KindInt, Size: 1}
	case int16:
		dt = DType{Kind: KindInt, Size: 2}
	case int32:
		dt = DType{Kind: KindInt, Size: 4}
	case int64:
		dt = DType{Kind: KindInt, Size: 8}
	case uint8:
		dt = DType{Kind: KindUint, Size: 1}
	case uint16:
		dt = DType{Kind: KindUint, Size: 2}
	case uint32:
		dt = DType{Kind: KindUint, Size: 4}
	case uint64:
		dt = DType{Kind: KindUint, Size: 8}
	case float32:
		dt = DType{Kind: KindFloat, Size: 4}
	case float64:
		dt = DType{Kind: KindFloat, Size: 8}
	default:
		return nil, fmt.Errorf("npy: unsupported element type %T", zero)
	}

	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	elems := make([]any, len(data))
	for i, v := range data {
		switch x := any(v).(type) {
		case bool:
			elems[i] = x
		case int8:
			elems[i] = int64(x)
		case int16:
			elems[i] = int64(x)
		case int32:
			elems[i] = int64(x)
		case int64:
			elems[i] = x
		case uint8:
			elems[i] = uint64(x)
		case uint16:
			elems[i] = uint64(x)
		case uint32:
			elems[i] = uint64(x)
		case uint64:
			elems[i] = x
		case float32:
			elems[i] = float64(x)
		case float64:
			elems[i] = x
		}
	}
	return &Array{dtype: dt, shape: append([]int(nil), shape...), elems: elems}, nil
}

// NewStrings builds a unicode array wide enough for the longest string.
func NewStrings(shape []int, data []string) (*Array, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}
	width := 1
	elems := make([]any, len(data))
	for i, s := range data {
		if n := utf8.RuneCountInString(s); n > width {
			width = n
		}
		if strings.ContainsRune(s, 0) {
			return nil, fmt.Errorf("npy: string %d contains NUL", i)
		}
		elems[i] = s
	}
	return &Array{dtype: DType{Kind: KindUnicode, Size: 4 * width}, shape: append([]int(nil), shape...), elems: elems}, nil
}

func checkShape(shape []int, n int) error {
	if err := checkDims(shape); err != nil {
		return fmt.Errorf("npy: shape %s: %w", FormatShape(shape), err)
	}
	want := 1
	for _, d := range shape {
		want *= d
	}
	if want != n {
		return fmt.Errorf("npy: shape %s needs %d elements, got %d", FormatShape(shape), want, n)
	}
	return nil
}

// Write encodes a as an NPY stream in C order.
func Write(w io.Writer, a *Array) error {
	if a.dtype.Kind == KindFloat && a.dtype.Size == 2 {
		return fmt.Errorf("npy: writing float16 is not supported")
	}
	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, a.dtype, a.shape); err != nil {
		return err
	}
	buf := make([]byte, a.dtype.Size)
	for _, v := range a.elems {
		encodeElem(a.dtype, buf, v)
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeHeader(w io.Writer, dt DType, shape []int) error {
	dict := formatHeaderDict(dt, shape)

	// magic + version + length field + dict + '\n', padded to 64 bytes
	major, lenField := byte(1), 2
	if len(dict)+64 > math.MaxUint16 {
		major, lenField = 2, 4
	}
	total := len(Magic) + 2 + lenField + len(dict) + 1
	if pad := total % 64; pad != 0 {
		dict += strings.Repeat(" ", 64-pad)
	}
	dict += "\n"

	if _, err := io.WriteString(w, Magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{major, 0}); err != nil {
		return err
	}
	var err error
	if major == 1 {
		err = binary.Write(w, binary.LittleEndian, uint16(len(dict)))
	} else {
		err = binary.Write(w, binary.LittleEndian, uint32(len(dict)))
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, dict)
	return err
}

func encodeElem(dt DType, b []byte, v any) {
	order := dt.byteOrder()
	switch x := v.(type) {
	case bool:
		b[0] = 0
		if x {
			b[0] = 1
		}
	case int64:
		switch dt.Size {
		case 1:
			b[0] = byte(x)
		case 2:
			order.PutUint16(b, uint16(x))
		case 4:
			order.PutUint32(b, uint32(x))
		case 8:
			order.PutUint64(b, uint64(x))
		}
	case uint64:
		switch dt.Size {
		case 1:
			b[0] = byte(x)
		case 2:
			order.PutUint16(b, uint16(x))
		case 4:
			order.PutUint32(b, uint32(x))
		case 8:
			order.PutUint64(b, x)
		}
	case float64:
		switch dt.Size {
		case 4:
			order.PutUint32(b, math.Float32bits(float32(x)))
		case 8:
			order.PutUint64(b, math.Float64bits(x))
		}
	case string:
		clear(b)
		i := 0
		for _, r := range x {
			order.PutUint32(b[i:], uint32(r))
			i += 4
		}
	}
}
