package packet

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Writer builds a payload in protobuf wire format, one field at a time.
// Fields are written in call order; callers write them in field-number order.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteInt64 writes a varint field (int64/int32 encoding; negatives take 10 bytes).
func (w *Writer) WriteInt64(num protowire.Number, v int64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

// WriteInt32 writes a varint field with int32 semantics.
func (w *Writer) WriteInt32(num protowire.Number, v int32) {
	w.WriteInt64(num, int64(v))
}

// WriteUint32 writes a varint field with uint32 semantics.
func (w *Writer) WriteUint32(num protowire.Number, v uint32) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, uint64(v))
}

// WriteBool writes a varint 0/1 field.
func (w *Writer) WriteBool(num protowire.Number, v bool) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeBool(v))
}

// WriteString writes a length-delimited UTF-8 field.
func (w *Writer) WriteString(num protowire.Number, s string) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, s)
}

// WriteBytes writes a length-delimited raw field.
func (w *Writer) WriteBytes(num protowire.Number, b []byte) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, b)
}

// WriteMessage writes m as an embedded message field.
func (w *Writer) WriteMessage(num protowire.Number, m *Writer) {
	w.WriteBytes(num, m.Bytes())
}

// WritePackedInt32s writes a packed repeated int32 field. Empty slices are omitted.
func (w *Writer) WritePackedInt32s(num protowire.Number, vs []int32) {
	if len(vs) == 0 {
		return
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	w.WriteBytes(num, packed)
}

// Bytes returns the encoded payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the encoded length.
func (w *Writer) Len() int {
	return len(w.buf)
}
