package transport

import (
	"encoding/binary"
	"time"
)

// DefaultMTU bounds the size of a single outgoing datagram (§4.4). Payloads
// that don't fit after HeaderOverhead is subtracted are split across
// multiple fragment frames and reassembled by the peer.
const DefaultMTU = 1200

// ReassemblyTimeout is how long a partially received fragment set is kept
// before it is discarded as abandoned.
const ReassemblyTimeout = 5 * time.Second

// fragHeaderSize is the byte width of the small header prefixed to every
// fragment's data: fragID(2) + index(1) + count(1).
const fragHeaderSize = 4

// MaxFragmentPayload is the largest chunk a single fragment block can carry
// under DefaultMTU once headers are accounted for.
func MaxFragmentPayload() int {
	return DefaultMTU - HeaderOverhead - fragHeaderSize
}

// Fragment is one piece of a payload too large for a single datagram.
type Fragment struct {
	FragID uint16
	Index  uint8
	Count  uint8
	Data   []byte
}

// Split breaks payload into fragments no larger than MaxFragmentPayload
// each, tagged with fragID so the peer can group them back together. It
// never produces more than 256 fragments (Index/Count are single bytes);
// callers must keep individual payloads within that bound.
func Split(fragID uint16, payload []byte) []Fragment {
	chunkSize := MaxFragmentPayload()
	if chunkSize <= 0 {
		chunkSize = 1
	}
	count := (len(payload) + chunkSize - 1) / chunkSize
	if count == 0 {
		count = 1
	}
	frags := make([]Fragment, 0, count)
	for i := 0; i < count; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		frags = append(frags, Fragment{
			FragID: fragID,
			Index:  uint8(i),
			Count:  uint8(count),
			Data:   payload[start:end],
		})
	}
	return frags
}

// EncodeFragmentBlock packs a Fragment's header and data into a single
// block payload, letting the ordinary Block/Frame machinery carry it.
func EncodeFragmentBlock(f Fragment) []byte {
	buf := make([]byte, fragHeaderSize+len(f.Data))
	binary.LittleEndian.PutUint16(buf[0:2], f.FragID)
	buf[2] = f.Index
	buf[3] = f.Count
	copy(buf[fragHeaderSize:], f.Data)
	return buf
}

// DecodeFragmentBlock reverses EncodeFragmentBlock.
func DecodeFragmentBlock(raw []byte) (Fragment, bool) {
	if len(raw) < fragHeaderSize {
		return Fragment{}, false
	}
	return Fragment{
		FragID: binary.LittleEndian.Uint16(raw[0:2]),
		Index:  raw[2],
		Count:  raw[3],
		Data:   raw[fragHeaderSize:],
	}, true
}

// pending tracks the chunks seen so far for one fragment set.
type pending struct {
	chunks   map[uint8][]byte
	total    uint8
	firstSeen time.Time
}

// Reassembler collects fragments belonging to a single peer's connection
// and reconstitutes the original payload once every chunk has arrived.
type Reassembler struct {
	sets map[uint16]*pending
}

// NewReassembler builds an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{sets: make(map[uint16]*pending)}
}

// Add records one fragment. It returns the reconstructed payload and true
// once every chunk in the set has arrived; otherwise it returns nil, false.
func (r *Reassembler) Add(f Fragment, now time.Time) ([]byte, bool) {
	p, ok := r.sets[f.FragID]
	if !ok {
		p = &pending{chunks: make(map[uint8][]byte, f.Count), total: f.Count, firstSeen: now}
		r.sets[f.FragID] = p
	}
	p.chunks[f.Index] = f.Data

	if uint8(len(p.chunks)) < p.total {
		return nil, false
	}

	full := make([]byte, 0, int(p.total)*MaxFragmentPayload())
	for i := uint8(0); i < p.total; i++ {
		chunk, ok := p.chunks[i]
		if !ok {
			return nil, false
		}
		full = append(full, chunk...)
	}
	delete(r.sets, f.FragID)
	return full, true
}

// ExpireStale drops fragment sets that have sat incomplete past timeout and
// reports which fragment IDs were abandoned.
func (r *Reassembler) ExpireStale(now time.Time, timeout time.Duration) []uint16 {
	var expired []uint16
	for id, p := range r.sets {
		if now.Sub(p.firstSeen) > timeout {
			expired = append(expired, id)
			delete(r.sets, id)
		}
	}
	return expired
}
