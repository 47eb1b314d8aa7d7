package transport

import "github.com/mxocore/worldcore/internal/codec"

// encodeBlockList serializes a block list independent of the outer common
// header, so it can be treated as an opaque plaintext for encryption (§4.4
// "encryption gate"): once a session is STATE_CONNECTED, the whole block
// list travels as a single encrypted block instead of in the clear.
func encodeBlockList(blocks []Block) []byte {
	b := codec.New()
	b.WriteUint8(uint8(len(blocks)))
	for _, blk := range blocks {
		b.WriteUint16(blk.Type)
		b.WriteUint16(uint16(len(blk.Data)))
		b.WriteBytes(blk.Data)
	}
	return b.Bytes()
}

func decodeBlockList(raw []byte) ([]Block, error) {
	b := codec.Wrap(raw)
	count, err := b.ReadUint8()
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, count)
	for i := 0; i < int(count); i++ {
		btype, err := b.ReadUint16()
		if err != nil {
			return nil, err
		}
		blen, err := b.ReadUint16()
		if err != nil {
			return nil, err
		}
		data, err := b.ReadBytes(int(blen))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, Block{Type: btype, Data: data})
	}
	return blocks, nil
}

// encryptedBlockType tags the single opaque block carried by an encrypted
// frame; it never appears on the wire outside that role.
const encryptedBlockType uint16 = 0xFFFE

// fragmentBlockType tags the single fragment-header-plus-chunk block
// carried by a fragmented frame.
const fragmentBlockType uint16 = 0xFFFD
