package npy

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/npzconv/core/errors"
)

// Kind is the NumPy type character of a dtype.
type Kind byte

const (
	KindBool    Kind = 'b'
	KindInt     Kind = 'i'
	KindUint    Kind = 'u'
	KindFloat   Kind = 'f'
	KindUnicode Kind = 'U'
)

// DType describes the element type of an array.
type DType struct {
	Kind Kind
	// Size is the element width in bytes. For KindUnicode it is four bytes per
	// character.
	Size int
	// BigEndian is false for little-endian and single-byte types.
	BigEndian bool
}

// ParseDType parses a NumPy array-protocol type string such as "<f4", "|b1"
// or ">U8". A "=" byte order is taken as little-endian.
func ParseDType(descr string) (DType, error) {
	if len(descr) < 2 {
		return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q", descr))
	}

	var dt DType
	s := descr
	switch s[0] {
	case '<', '|', '=':
		s = s[1:]
	case '>':
		dt.BigEndian = true
		s = s[1:]
	}
	if len(s) < 2 {
		return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q", descr))
	}

	dt.Kind = Kind(s[0])
	n, err := strconv.Atoi(s[1:])
	if err != nil || n <= 0 {
		return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q", descr))
	}

	switch dt.Kind {
	case KindBool:
		if n != 1 {
			return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q", descr))
		}
		dt.Size = 1
	case KindInt, KindUint:
		if n != 1 && n != 2 && n != 4 && n != 8 {
			return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q", descr))
		}
		dt.Size = n
	case KindFloat:
		if n != 2 && n != 4 && n != 8 {
			return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q: no float%d", descr, n*8))
		}
		dt.Size = n
	case KindUnicode:
		if n > MaxPayloadBytes/4 {
			return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q is too wide", descr))
		}
		dt.Size = 4 * n
	default:
		return DType{}, errors.NewUnsupported("dtype", fmt.Sprintf("%q has no JSON representation", descr))
	}

	if dt.Size == 1 {
		dt.BigEndian = false
	}
	return dt, nil
}

// Descr returns the array-protocol type string, e.g. "<f4".
func (d DType) Descr() string {
	n := d.Size
	if d.Kind == KindUnicode {
		n = d.Size / 4
	}
	order := "<"
	switch {
	case d.Size == 1:
		order = "|"
	case d.BigEndian:
		order = ">"
	}
	return order + string(rune(d.Kind)) + strconv.Itoa(n)
}

// String returns the name NumPy displays for the dtype: "float32", "int64",
// "bool" for native types, the descr for big-endian and unicode types.
func (d DType) String() string {
	if d.BigEndian || d.Kind == KindUnicode {
		return d.Descr()
	}
	bits := strconv.Itoa(d.Size * 8)
	switch d.Kind {
	case KindBool:
		return "bool"
	case KindInt:
		return "int" + bits
	case KindUint:
		return "uint" + bits
	case KindFloat:
		return "float" + bits
	}
	return d.Descr()
}

// Chars returns the fixed width of a unicode dtype in characters.
func (d DType) Chars() int {
	if d.Kind != KindUnicode {
		return 0
	}
	return d.Size / 4
}

func (d DType) byteOrder() binary.ByteOrder {
	if d.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
