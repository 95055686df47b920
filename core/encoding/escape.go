// Package encoding provides shared text escaping utilities.
package encoding

import (
	"unicode/utf16"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// AppendJSONString appends s to b as a quoted JSON string.
// Control characters are always written as escapes. When ascii is true,
// everything outside printable ASCII is written as lowercase \uXXXX
// escapes, with characters above U+FFFF split into surrogate pairs.
// Invalid UTF-8 is replaced with U+FFFD.
func AppendJSONString(b []byte, s string, ascii bool) []byte {
	b = append(b, '"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case '"':
			b = append(b, '\\', '"')
		case '\\':
			b = append(b, '\\', '\\')
		case '\n':
			b = append(b, '\\', 'n')
		case '\r':
			b = append(b, '\\', 'r')
		case '\t':
			b = append(b, '\\', 't')
		case '\b':
			b = append(b, '\\', 'b')
		case '\f':
			b = append(b, '\\', 'f')
		default:
			switch {
			case r < 0x20, ascii && r > 0x7e:
				if r > 0xffff {
					r1, r2 := utf16.EncodeRune(r)
					b = appendEscape(b, r1)
					b = appendEscape(b, r2)
				} else {
					b = appendEscape(b, r)
				}
			default:
				b = utf8.AppendRune(b, r)
			}
		}
	}
	return append(b, '"')
}

// EscapeJSON returns s as a quoted JSON string; see AppendJSONString.
func EscapeJSON(s string, ascii bool) string {
	return string(AppendJSONString(make([]byte, 0, len(s)+2), s, ascii))
}

func appendEscape(b []byte, r rune) []byte {
	return append(b, '\\', 'u',
		hexDigits[r>>12&0xf],
		hexDigits[r>>8&0xf],
		hexDigits[r>>4&0xf],
		hexDigits[r&0xf])
}
