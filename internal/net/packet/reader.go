package packet

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

type field struct {
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// Reader indexes a protobuf wire-format payload once and exposes typed
// getters by field number. Scalar getters follow last-value-wins; repeated
// getters return values in wire order.
type Reader struct {
	fields map[protowire.Number][]field
}

// NewReader parses data. Fixed32/64 fields are accepted and skipped by the
// typed getters; groups are rejected.
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{fields: make(map[protowire.Number][]field)}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("payload tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		f := field{typ: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("payload field %d: %w", num, protowire.ParseError(n))
			}
			f.varint = v
			data = data[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("payload field %d: %w", num, protowire.ParseError(n))
			}
			f.bytes = v
			data = data[n:]
		case protowire.Fixed32Type, protowire.Fixed64Type:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("payload field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		default:
			return nil, fmt.Errorf("payload field %d: unsupported wire type %d", num, typ)
		}
		r.fields[num] = append(r.fields[num], f)
	}
	return r, nil
}

func (r *Reader) last(num protowire.Number, typ protowire.Type) (field, bool) {
	fs := r.fields[num]
	for i := len(fs) - 1; i >= 0; i-- {
		if fs[i].typ == typ {
			return fs[i], true
		}
	}
	return field{}, false
}

// Has reports whether field num is present.
func (r *Reader) Has(num protowire.Number) bool {
	return len(r.fields[num]) > 0
}

// Int64 reads a varint field.
func (r *Reader) Int64(num protowire.Number) (int64, bool) {
	f, ok := r.last(num, protowire.VarintType)
	return int64(f.varint), ok
}

// Int32 reads a varint field truncated to int32.
func (r *Reader) Int32(num protowire.Number) (int32, bool) {
	f, ok := r.last(num, protowire.VarintType)
	return int32(f.varint), ok
}

// Uint32 reads a varint field truncated to uint32.
func (r *Reader) Uint32(num protowire.Number) (uint32, bool) {
	f, ok := r.last(num, protowire.VarintType)
	return uint32(f.varint), ok
}

// Bool reads a varint field as a bool.
func (r *Reader) Bool(num protowire.Number) (bool, bool) {
	f, ok := r.last(num, protowire.VarintType)
	return protowire.DecodeBool(f.varint), ok
}

// String reads a length-delimited field as a string.
func (r *Reader) String(num protowire.Number) (string, bool) {
	f, ok := r.last(num, protowire.BytesType)
	return string(f.bytes), ok
}

// Bytes reads a length-delimited field.
func (r *Reader) Bytes(num protowire.Number) ([]byte, bool) {
	f, ok := r.last(num, protowire.BytesType)
	return f.bytes, ok
}

// Int32s reads a repeated int32 field in either packed or unpacked form.
func (r *Reader) Int32s(num protowire.Number) ([]int32, error) {
	var out []int32
	for _, f := range r.fields[num] {
		switch f.typ {
		case protowire.VarintType:
			out = append(out, int32(f.varint))
		case protowire.BytesType:
			b := f.bytes
			for len(b) > 0 {
				v, n := protowire.ConsumeVarint(b)
				if n < 0 {
					return nil, fmt.Errorf("packed field %d: %w", num, protowire.ParseError(n))
				}
				out = append(out, int32(v))
				b = b[n:]
			}
		}
	}
	return out, nil
}

// Messages reads a repeated embedded message field.
func (r *Reader) Messages(num protowire.Number) ([]*Reader, error) {
	var out []*Reader
	for _, f := range r.fields[num] {
		if f.typ != protowire.BytesType {
			continue
		}
		m, err := NewReader(f.bytes)
		if err != nil {
			return nil, fmt.Errorf("message field %d: %w", num, err)
		}
		out = append(out, m)
	}
	return out, nil
}
