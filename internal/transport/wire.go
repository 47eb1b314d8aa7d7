// Package transport implements C4: the per-peer reliable/ordered/
// encrypted/fragmented datagram channel described in spec §4.4, built on
// an unreliable net.UDPConn socket.
package transport

import (
	"errors"
	"fmt"

	"github.com/mxocore/worldcore/internal/codec"
)

// Magic identifies a well-formed common header (§6).
const Magic = 0xA5

// ProtocolVersion is the only wire version this build speaks.
const ProtocolVersion = 1

// Common header size: magic(1) + version(1) + msgtype(2) + length(4).
const commonHeaderSize = 8

// Game header size: seq(2) + ack(2) + flags(1) + blockcount(1).
const gameHeaderSize = 6

// Block header size: type(2) + length(2).
const blockHeaderSize = 4

// Flags bitset (§4.4).
type Flags uint8

const (
	FlagReliable   Flags = 0x01
	FlagEncrypted  Flags = 0x02
	FlagCompressed Flags = 0x04
	FlagFragment   Flags = 0x08
)

// Has reports whether f contains all bits in mask.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Message-type ranges (§6).
const (
	MsgTypeAuthLow    = 0x0001
	MsgTypeAuthHigh   = 0x00FF
	MsgTypeGameLow    = 0x1001
	MsgTypeGameHigh   = 0x10FF
	MsgTypeMarginLow  = 0x2001
	MsgTypeMarginHigh = 0x20FF
)

// Concrete message types used by the handshake and standalone acks.
const (
	MsgHandshake     uint16 = 0x1001
	MsgHandshakeAck  uint16 = 0x1002
	MsgAck           uint16 = 0x1003
	MsgPing          uint16 = 0x1004
	MsgPlayerCommand uint16 = 0x1005
	MsgObjectCreate  uint16 = 0x1006
	MsgObjectUpdate  uint16 = 0x1007
	MsgObjectDestroy uint16 = 0x1008
	MsgPlayerState   uint16 = 0x1009
	MsgWorldInit     uint16 = 0x100A
	MsgSystem        uint16 = 0x100B
	MsgFragment      uint16 = 0x100C
)

// Errors matching §7's datagram-local error taxonomy.
var (
	ErrMalformedFrame = errors.New("transport: malformed frame")
	ErrTruncated      = codec.ErrTruncated
)

// Block is one length-prefixed unit of a datagram's payload.
type Block struct {
	Type uint16
	Data []byte
}

// Frame is a fully decoded datagram: headers plus its block list.
type Frame struct {
	Version   uint8
	MsgType   uint16
	Sequence  uint16
	Ack       uint16
	Flags     Flags
	Blocks    []Block
}

// Encode serializes a Frame to its wire representation. The total-length
// field covers common header + game header + all blocks (§6).
func Encode(f *Frame) []byte {
	b := codec.New()
	b.WriteUint8(Magic)
	b.WriteUint8(f.Version)
	b.WriteUint16(f.MsgType)
	lenPos := b.Reserve(4)

	b.WriteUint16(f.Sequence)
	b.WriteUint16(f.Ack)
	b.WriteUint8(uint8(f.Flags))
	b.WriteUint8(uint8(len(f.Blocks)))

	for _, blk := range f.Blocks {
		b.WriteUint16(blk.Type)
		b.WriteUint16(uint16(len(blk.Data)))
		b.WriteBytes(blk.Data)
	}

	b.PutUint32(lenPos, uint32(b.Len()))
	return b.Bytes()
}

// Decode parses a raw datagram into a Frame. Any structural mismatch
// (short buffer, length field disagreeing with the actual size, a block
// header claiming more data than remains) yields ErrMalformedFrame and the
// caller must drop the entire datagram (§4.4).
func Decode(raw []byte) (*Frame, error) {
	b := codec.Wrap(raw)

	magic, err := b.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%02x", ErrMalformedFrame, magic)
	}

	version, err := b.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	msgType, err := b.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	totalLen, err := b.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if int(totalLen) != len(raw) {
		return nil, fmt.Errorf("%w: length field %d != datagram size %d", ErrMalformedFrame, totalLen, len(raw))
	}

	seq, err := b.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	ack, err := b.ReadUint16()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	flagByte, err := b.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	blockCount, err := b.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	blocks := make([]Block, 0, blockCount)
	for i := 0; i < int(blockCount); i++ {
		btype, err := b.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("%w: block %d type: %v", ErrMalformedFrame, i, err)
		}
		blen, err := b.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("%w: block %d length: %v", ErrMalformedFrame, i, err)
		}
		data, err := b.ReadBytes(int(blen))
		if err != nil {
			return nil, fmt.Errorf("%w: block %d body: %v", ErrMalformedFrame, i, err)
		}
		blocks = append(blocks, Block{Type: btype, Data: data})
	}

	if b.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, b.Remaining())
	}

	return &Frame{
		Version:  version,
		MsgType:  msgType,
		Sequence: seq,
		Ack:      ack,
		Flags:    Flags(flagByte),
		Blocks:   blocks,
	}, nil
}

// HeaderOverhead is the number of bytes consumed by headers alone, used to
// compute the maximum single-datagram payload under a given MTU.
const HeaderOverhead = commonHeaderSize + gameHeaderSize + blockHeaderSize
