// Package canonical produces the deterministic byte encoding of JSON values
// that blocks are hashed over. The output matches what Python
// miners produce with json.dumps(value, sort_keys=True): keys are sorted,
// items are separated by ", " and keys by ": ", strings are ASCII only and
// floats use the shortest round trip representation. Every participant must
// produce identical bytes or hashes will not match.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Marshal returns the canonical encoding of the value.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Float returns the canonical text for a single float value.
func Float(f float64) string {
	return formatFloat(f)
}

// Decode parses JSON data keeping numbers as json.Number so integers and
// floats can be told apart when the value is encoded again.
func Decode(data []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	var v any
	if err := d.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return v, nil
}

// =============================================================================

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")

	case bool:
		if val {
			buf.WriteString("true")
			return nil
		}
		buf.WriteString("false")

	case string:
		writeString(buf, val)

	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))

	case float32:
		buf.WriteString(formatFloat(float64(val)))
	case float64:
		buf.WriteString(formatFloat(val))

	case json.Number:
		s, err := formatNumber(val)
		if err != nil {
			return err
		}
		buf.WriteString(s)

	case json.RawMessage:
		dv, err := Decode(val)
		if err != nil {
			return err
		}
		return encode(buf, dv)

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeString(buf, k)
			buf.WriteString(": ")
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	default:

		// Structs, typed slices and maps are taken through their JSON form
		// so the json tags decide the field names.
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshal %T: %w", val, err)
		}

		dv, err := Decode(data)
		if err != nil {
			return err
		}
		return encode(buf, dv)
	}

	return nil
}

// formatFloat renders the float the way Python's repr does.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	// The shortest digits in exponent form tell us the decimal exponent.
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil {
		return sci
	}

	if exp < -4 || exp >= 16 {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

// formatNumber renders a number as it was received. Integers keep arbitrary
// precision and anything with a fraction or exponent is a float.
func formatNumber(n json.Number) (string, error) {
	s := string(n)

	if strings.ContainsAny(s, ".eE") {
		// Out of range literals become ±Inf, as they do when Python loads them.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return "", fmt.Errorf("invalid float %q: %w", s, err)
		}
		return formatFloat(f), nil
	}

	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return "", fmt.Errorf("invalid integer %q", s)
	}

	return i.String(), nil
}

// writeString writes the string in ASCII only form, escaping everything
// outside of the printable range.
func writeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"

	u := func(r rune) {
		buf.WriteString(`\u`)
		buf.WriteByte(hex[r>>12&0xf])
		buf.WriteByte(hex[r>>8&0xf])
		buf.WriteByte(hex[r>>4&0xf])
		buf.WriteByte(hex[r&0xf])
	}

	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r >= ' ' && r <= '~':
			buf.WriteByte(byte(r))
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			u(r1)
			u(r2)
		default:
			u(r)
		}
	}
	buf.WriteByte('"')
}
