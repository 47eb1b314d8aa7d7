// Package codec implements the position-tracked byte buffer used to build
// and parse the game wire format (common header, game header, blocks).
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrTruncated is returned when a read would consume more bytes than remain.
var ErrTruncated = errors.New("codec: truncated read")

// Buffer is a growable byte container with independent read and write
// cursors. All numeric primitives are encoded little-endian on the wire.
type Buffer struct {
	data []byte
	rpos int
	wpos int
}

// New creates an empty buffer ready for writing.
func New() *Buffer {
	return &Buffer{data: make([]byte, 0, 256)}
}

// Wrap creates a buffer over an existing slice, positioned for reading from
// the start. The slice is not copied.
func Wrap(data []byte) *Buffer {
	return &Buffer{data: data, wpos: len(data)}
}

// Bytes returns the written portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.wpos]
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return b.wpos
}

// Remaining returns max(0, wpos-rpos), the number of unread bytes.
func (b *Buffer) Remaining() int {
	if b.wpos <= b.rpos {
		return 0
	}
	return b.wpos - b.rpos
}

// ReadPos returns the current read cursor.
func (b *Buffer) ReadPos() int { return b.rpos }

// WritePos returns the current write cursor.
func (b *Buffer) WritePos() int { return b.wpos }

// SeekRead repositions the read cursor.
func (b *Buffer) SeekRead(pos int) { b.rpos = pos }

func (b *Buffer) grow(n int) {
	need := b.wpos + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		b.wpos = need
		return
	}
	newCap := cap(b.data)*2 + n
	buf := make([]byte, need, newCap)
	copy(buf, b.data[:b.wpos])
	b.data = buf
	b.wpos = need
}

// WriteBytes appends raw bytes.
func (b *Buffer) WriteBytes(p []byte) {
	b.grow(len(p))
	copy(b.data[b.wpos-len(p):], p)
}

func (b *Buffer) writeUint(v uint64, width int) {
	b.grow(width)
	buf := b.data[b.wpos-width : b.wpos]
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(buf, v)
	default:
		panic(fmt.Sprintf("codec: unsupported width %d", width))
	}
}

// WriteUint8 writes a single byte.
func (b *Buffer) WriteUint8(v uint8) { b.writeUint(uint64(v), 1) }

// WriteUint16 writes a little-endian uint16.
func (b *Buffer) WriteUint16(v uint16) { b.writeUint(uint64(v), 2) }

// WriteUint32 writes a little-endian uint32.
func (b *Buffer) WriteUint32(v uint32) { b.writeUint(uint64(v), 4) }

// WriteUint64 writes a little-endian uint64.
func (b *Buffer) WriteUint64(v uint64) { b.writeUint(v, 8) }

// WriteFloat64 writes an IEEE-754 double, little-endian bit pattern.
func (b *Buffer) WriteFloat64(v float64) {
	b.WriteUint64(math.Float64bits(v))
}

// WriteString writes a length-prefixed (uint16) UTF-8 string.
func (b *Buffer) WriteString(s string) {
	b.WriteUint16(uint16(len(s)))
	b.WriteBytes([]byte(s))
}

// WriteCString writes a null-terminated string.
func (b *Buffer) WriteCString(s string) {
	b.WriteBytes([]byte(s))
	b.WriteUint8(0)
}

// Reserve appends width zero bytes and returns the position for a later Put.
func (b *Buffer) Reserve(width int) int {
	pos := b.wpos
	b.grow(width)
	return pos
}

// PutUint16 back-patches a uint16 previously reserved at pos.
func (b *Buffer) PutUint16(pos int, v uint16) {
	binary.LittleEndian.PutUint16(b.data[pos:pos+2], v)
}

// PutUint32 back-patches a uint32 previously reserved at pos.
func (b *Buffer) PutUint32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(b.data[pos:pos+4], v)
}

func (b *Buffer) readUint(width int) (uint64, error) {
	if b.Remaining() < width {
		return 0, ErrTruncated
	}
	buf := b.data[b.rpos : b.rpos+width]
	b.rpos += width
	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf)), nil
	case 8:
		return binary.LittleEndian.Uint64(buf), nil
	default:
		panic(fmt.Sprintf("codec: unsupported width %d", width))
	}
}

// ReadUint8 reads a single byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	v, err := b.readUint(1)
	return uint8(v), err
}

// ReadUint16 reads a little-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	v, err := b.readUint(2)
	return uint16(v), err
}

// ReadUint32 reads a little-endian uint32.
func (b *Buffer) ReadUint32() (uint32, error) {
	v, err := b.readUint(4)
	return uint32(v), err
}

// ReadUint64 reads a little-endian uint64.
func (b *Buffer) ReadUint64() (uint64, error) {
	return b.readUint(8)
}

// ReadFloat64 reads an IEEE-754 double, little-endian bit pattern.
func (b *Buffer) ReadFloat64() (float64, error) {
	bits, err := b.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// ReadBytes reads n raw bytes.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	if b.Remaining() < n {
		return nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, b.data[b.rpos:b.rpos+n])
	b.rpos += n
	return out, nil
}

// ReadString reads a length-prefixed (uint16) UTF-8 string.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint16()
	if err != nil {
		return "", err
	}
	raw, err := b.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ReadCString reads a null-terminated string.
func (b *Buffer) ReadCString() (string, error) {
	start := b.rpos
	for b.rpos < b.wpos {
		if b.data[b.rpos] == 0 {
			s := string(b.data[start:b.rpos])
			b.rpos++
			return s, nil
		}
		b.rpos++
	}
	b.rpos = start
	return "", ErrTruncated
}
