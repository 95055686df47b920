package convert

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/npzconv/core/encoding"
	"github.com/FocuswithJustin/npzconv/core/errors"
)

// EncodeOptions controls Encode.
type EncodeOptions struct {
	// AllowNaN writes NaN and ±Inf as NaN, Infinity and -Infinity instead of
	// failing. The result is not strict JSON.
	AllowNaN bool
	// RawUnicode writes non-ASCII characters as UTF-8 instead of \u escapes.
	RawUnicode bool
}

// Encode serializes doc with no whitespace between tokens and keys in
// document order. Floats always carry a fraction or an exponent (1.0, 1e-05)
// so readers can tell them from integers.
func Encode(doc *Document, opts EncodeOptions) ([]byte, error) {
	e := encoder{opts: opts}
	e.buf.WriteByte('{')
	for i, ent := range doc.entries {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.writeString(ent.Name)
		e.buf.WriteByte(':')
		if err := e.writeValue(ent.Name, ent.Value); err != nil {
			return nil, err
		}
	}
	e.buf.WriteByte('}')
	return e.buf.Bytes(), nil
}

// EncodeValue serializes a single converted value the way Encode does.
// entry names the value in any error.
func EncodeValue(entry string, v any, opts EncodeOptions) ([]byte, error) {
	e := encoder{opts: opts}
	if err := e.writeValue(entry, v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf     bytes.Buffer
	scratch [64]byte
	opts    EncodeOptions
}

func (e *encoder) writeValue(entry string, v any) error {
	switch x := v.(type) {
	case []any:
		e.buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.writeValue(entry, item); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	case nil:
		e.buf.WriteString("null")
	case bool:
		if x {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case int64:
		e.buf.Write(strconv.AppendInt(e.scratch[:0], x, 10))
	case int:
		e.buf.Write(strconv.AppendInt(e.scratch[:0], int64(x), 10))
	case uint64:
		e.buf.Write(strconv.AppendUint(e.scratch[:0], x, 10))
	case float32:
		return e.writeFloat(entry, float64(x))
	case float64:
		return e.writeFloat(entry, x)
	case string:
		e.writeString(x)
	default:
		return errors.NewSerialization(entry, fmt.Sprintf("unsupported value type %T", v))
	}
	return nil
}

func (e *encoder) writeFloat(entry string, f float64) error {
	switch {
	case math.IsNaN(f):
		if !e.opts.AllowNaN {
			return errors.NewSerialization(entry, "NaN is not valid JSON")
		}
		e.buf.WriteString("NaN")
	case math.IsInf(f, 1):
		if !e.opts.AllowNaN {
			return errors.NewSerialization(entry, "Infinity is not valid JSON")
		}
		e.buf.WriteString("Infinity")
	case math.IsInf(f, -1):
		if !e.opts.AllowNaN {
			return errors.NewSerialization(entry, "-Infinity is not valid JSON")
		}
		e.buf.WriteString("-Infinity")
	default:
		e.buf.Write(AppendFloat(e.scratch[:0], f))
	}
	return nil
}

// AppendFloat appends the shortest decimal form of f that round-trips.
// Fixed notation is used while the decimal exponent is in (-4, 16], with a
// trailing ".0" for whole numbers; otherwise exponent notation with a sign
// and at least two exponent digits.
func AppendFloat(b []byte, f float64) []byte {
	if f == 0 {
		if math.Signbit(f) {
			return append(b, "-0.0"...)
		}
		return append(b, "0.0"...)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	if s[0] == '-' {
		b = append(b, '-')
		s = s[1:]
	}
	mant, exps, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(exps)
	digits := strings.Replace(mant, ".", "", 1)
	// position of the decimal point relative to the digit string
	decpt := exp + 1

	if -4 < decpt && decpt <= 16 {
		switch {
		case decpt <= 0:
			b = append(b, "0."...)
			for i := 0; i < -decpt; i++ {
				b = append(b, '0')
			}
			b = append(b, digits...)
		case decpt >= len(digits):
			b = append(b, digits...)
			for i := len(digits); i < decpt; i++ {
				b = append(b, '0')
			}
			b = append(b, ".0"...)
		default:
			b = append(b, digits[:decpt]...)
			b = append(b, '.')
			b = append(b, digits[decpt:]...)
		}
		return b
	}

	b = append(b, digits[0])
	if len(digits) > 1 {
		b = append(b, '.')
		b = append(b, digits[1:]...)
	}
	b = append(b, 'e')
	if exp < 0 {
		b = append(b, '-')
		exp = -exp
	} else {
		b = append(b, '+')
	}
	if exp < 10 {
		b = append(b, '0')
	}
	return strconv.AppendInt(b, int64(exp), 10)
}

func (e *encoder) writeString(s string) {
	e.buf.Write(encoding.AppendJSONString(e.scratch[:0], s, !e.opts.RawUnicode))
}
