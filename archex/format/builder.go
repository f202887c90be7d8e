package format

import (
	"bytes"
	"encoding/binary"
)

// Builder assembles archive bytes. It writes payloads verbatim; producing
// compressed or encrypted payloads is up to the caller.
type Builder struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

// NewBuilder writes the header for the given order and version.
func NewBuilder(order ByteOrder, version byte) *Builder {
	b := &Builder{order: order.Binary()}
	var magic [4]byte
	b.order.PutUint32(magic[:], Magic)
	b.buf.Write(magic[:])
	b.buf.WriteByte(version)
	return b
}

// Add appends a record whose processed size is len(payload).
func (b *Builder) Add(name string, originalSize uint64, method Method, payload []byte) *Builder {
	return b.AddRaw(name, originalSize, uint64(len(payload)), byte(method), payload)
}

// AddRaw appends a record with every field given explicitly, so the declared
// sizes need not agree with the payload.
func (b *Builder) AddRaw(name string, originalSize, processedSize uint64, method byte, payload []byte) *Builder {
	var n [8]byte
	b.order.PutUint32(n[:4], uint32(len(name)))
	b.buf.Write(n[:4])
	b.buf.WriteString(name)
	b.order.PutUint64(n[:], originalSize)
	b.buf.Write(n[:])
	b.order.PutUint64(n[:], processedSize)
	b.buf.Write(n[:])
	b.buf.WriteByte(method)
	b.buf.Write(payload)
	return b
}

// Append appends arbitrary bytes, for building truncated streams.
func (b *Builder) Append(p []byte) *Builder {
	b.buf.Write(p)
	return b
}

// Bytes returns a copy of the archive built so far.
func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}
