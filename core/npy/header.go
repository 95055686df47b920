package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/npzconv/core/errors"
)

// Magic is the prefix of every NPY file.
const Magic = "\x93NUMPY"

// Header is the decoded NPY header.
type Header struct {
	Major, Minor byte
	DType        DType
	FortranOrder bool
	Shape        []int
}

// Count returns the number of elements described by the shape. A 0-d array
// holds one element.
func (h Header) Count() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

// MaxHeaderBytes bounds the header dict length a stream may declare.
var MaxHeaderBytes = 1 << 20

// MaxElements bounds the element count of an array and the number of lists
// at every level of its nested-list view.
var MaxElements = 1 << 28

// checkDims rejects shapes whose running product overflows or exceeds
// MaxElements. A zero dimension does not excuse the dimensions before it,
// since ToList allocates a list for each of them.
func checkDims(shape []int) error {
	p := 1
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("negative dimension %d", d)
		}
		if d > 0 && p > MaxElements/d {
			return fmt.Errorf("more than %d elements", MaxElements)
		}
		p *= d
	}
	return nil
}

// headerDict is the participle grammar for the Python dict literal stored in
// the header, e.g. {'descr': '<f4', 'fortran_order': False, 'shape': (2, 3), }
//
//nolint:govet // participle grammar tags are not standard struct tags
type headerDict struct {
	Entries []*headerEntry `"{" ( @@ ","? )* "}"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type headerEntry struct {
	Key   string       `@String ":"`
	Value *headerValue `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type headerValue struct {
	Str   *string      `  @String`
	Bool  *string      `| @( "True" | "False" )`
	Tuple *headerTuple `| @@`
	List  *headerList  `| @@`
	Int   *string      `| @Int`
}

//nolint:govet // participle grammar tags are not standard struct tags
type headerTuple struct {
	Items []*headerValue `"(" ( @@ ","? )* ")"`
}

// headerList only exists so structured dtypes get a clear error instead of a
// syntax error.
//
//nolint:govet // participle grammar tags are not standard struct tags
type headerList struct {
	Items []*headerValue `"[" ( @@ ","? )* "]"`
}

// headerLexer tokenizes the header dict.
var headerLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'[^']*'|"[^"]*"`},
	// Python 2 writers emit longs as 3L
	{Name: "Int", Pattern: `-?\d+L?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[{}()\[\]:,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var headerParser = participle.MustBuild[headerDict](
	participle.Lexer(headerLexer),
	participle.Elide("Whitespace"),
)

// ReadHeader reads the magic string, version and header dict from r and leaves
// r positioned at the first byte of array data.
func ReadHeader(r io.Reader) (Header, error) {
	var prefix [8]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Header{}, errors.NewCorrupt("", "", fmt.Sprintf("read magic: %v", err))
	}
	if string(prefix[:6]) != Magic {
		return Header{}, errors.NewCorrupt("", "", "not an NPY file (bad magic)")
	}

	h := Header{Major: prefix[6], Minor: prefix[7]}

	var headerLen int
	switch h.Major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Header{}, errors.NewCorrupt("", "", fmt.Sprintf("read header length: %v", err))
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return Header{}, errors.NewCorrupt("", "", fmt.Sprintf("read header length: %v", err))
		}
		headerLen = int(n)
	default:
		return Header{}, errors.NewUnsupported("NPY version", fmt.Sprintf("%d.%d", h.Major, h.Minor))
	}

	if headerLen > MaxHeaderBytes {
		return Header{}, errors.NewCorrupt("", "", fmt.Sprintf("header length %d exceeds %d bytes", headerLen, MaxHeaderBytes))
	}
	raw := make([]byte, headerLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, errors.NewCorrupt("", "", fmt.Sprintf("read header: %v", err))
	}

	if err := parseHeaderDict(string(bytes.TrimRight(raw, " \n\x00")), &h); err != nil {
		return Header{}, err
	}
	return h, nil
}

// ParseHeaderDict parses a header dict literal on its own.
func ParseHeaderDict(s string) (Header, error) {
	var h Header
	if err := parseHeaderDict(s, &h); err != nil {
		return Header{}, err
	}
	return h, nil
}

func parseHeaderDict(s string, h *Header) error {
	dict, err := headerParser.ParseString("", s)
	if err != nil {
		return errors.NewCorrupt("", "", fmt.Sprintf("parse header %q: %v", s, err))
	}

	var haveDescr, haveShape bool
	for _, e := range dict.Entries {
		key := unquote(e.Key)
		v := e.Value
		switch key {
		case "descr":
			if v.List != nil {
				return errors.NewUnsupported("dtype", "structured arrays have no JSON representation")
			}
			if v.Str == nil {
				return errors.NewCorrupt("", "", "header descr is not a string")
			}
			dt, err := ParseDType(unquote(*v.Str))
			if err != nil {
				return err
			}
			h.DType = dt
			haveDescr = true
		case "fortran_order":
			if v.Bool == nil {
				return errors.NewCorrupt("", "", "header fortran_order is not a bool")
			}
			h.FortranOrder = *v.Bool == "True"
		case "shape":
			if v.Tuple == nil {
				return errors.NewCorrupt("", "", "header shape is not a tuple")
			}
			shape := make([]int, 0, len(v.Tuple.Items))
			for _, item := range v.Tuple.Items {
				if item.Int == nil {
					return errors.NewCorrupt("", "", "header shape has a non-integer dimension")
				}
				n, err := strconv.Atoi(strings.TrimSuffix(*item.Int, "L"))
				if err != nil || n < 0 {
					return errors.NewCorrupt("", "", fmt.Sprintf("invalid dimension %q", *item.Int))
				}
				shape = append(shape, n)
			}
			if err := checkDims(shape); err != nil {
				return errors.NewCorrupt("", "", fmt.Sprintf("shape %s: %v", FormatShape(shape), err))
			}
			h.Shape = shape
			haveShape = true
		}
	}

	if !haveDescr {
		return errors.NewCorrupt("", "", "header has no descr")
	}
	if !haveShape {
		return errors.NewCorrupt("", "", "header has no shape")
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// formatHeaderDict renders the dict the way NumPy writes it.
func formatHeaderDict(dt DType, shape []int) string {
	return fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", dt.Descr(), FormatShape(shape))
}

// FormatShape renders a shape as a Python tuple: (2, 3), (5,) or ().
func FormatShape(shape []int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, d := range shape {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(d))
	}
	if len(shape) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}
