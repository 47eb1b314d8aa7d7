package playersession

import (
	"fmt"

	"github.com/mxocore/worldcore/internal/codec"
)

// Byte-keyed command ids (§6).
const (
	CmdReadyForSpawn         uint8 = 0x01
	CmdChat                  uint8 = 0x02
	CmdWhisper               uint8 = 0x03
	CmdStopAnim              uint8 = 0x04
	CmdStartAnim             uint8 = 0x05
	CmdChangeMood            uint8 = 0x06
	CmdEmote                 uint8 = 0x07
	CmdDynObj                uint8 = 0x08
	CmdStaticObj             uint8 = 0x09
	CmdJump                  uint8 = 0x0A
	CmdRegionLoaded          uint8 = 0x0B
	CmdReadyForWorldChange   uint8 = 0x0C
	CmdWho                   uint8 = 0x0D
	CmdWhereAmI              uint8 = 0x0E
	CmdGetPlayerDetails      uint8 = 0x0F
	CmdGetBackground         uint8 = 0x10
	CmdSetBackground         uint8 = 0x11
	CmdHardlineTeleport      uint8 = 0x12
	CmdObjectSelected        uint8 = 0x13
	CmdJackoutRequest        uint8 = 0x14
	CmdJackoutFinished       uint8 = 0x15
)

// Short-keyed commands (ability use, trade, group) begin at 0x0100.
const ShortCommandBase uint16 = 0x0100

// ErrUnknownCommand marks a command id absent from both dispatch tables.
// Per §7 this is a warn-and-drop, never a session teardown.
var ErrUnknownCommand = fmt.Errorf("playersession: unknown command")

// Handler runs one command's body against the owning session. Handlers
// must not tear the session down on their own parse errors (§4.5);
// Dispatch already isolates handler failures to the single command.
type Handler func(p *PlayerSession, body []byte) error

// Dispatcher holds the byte-keyed and short-keyed command tables. A single
// Dispatcher is shared read-only across every session once built.
type Dispatcher struct {
	byteTable  map[uint8]Handler
	shortTable map[uint16]Handler
}

// NewDispatcher builds the dispatch tables. Commands not registered by the
// caller drop with ErrUnknownCommand at Dispatch time (§9 "unknown ids drop").
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		byteTable:  make(map[uint8]Handler),
		shortTable: make(map[uint16]Handler),
	}
}

// RegisterByte binds a handler to a byte-keyed command id.
func (d *Dispatcher) RegisterByte(id uint8, h Handler) { d.byteTable[id] = h }

// RegisterShort binds a handler to a short-keyed command id (>= ShortCommandBase).
func (d *Dispatcher) RegisterShort(id uint16, h Handler) { d.shortTable[id] = h }

// Dispatch looks up and runs the handler for a PLAYER_COMMAND block body.
// The body's first byte or first two bytes (little-endian) selects the
// command id depending on isShort; the remainder is the handler's argument
// bytes, addressable via internal/codec.
func (d *Dispatcher) Dispatch(p *PlayerSession, isShort bool, body []byte) error {
	b := codec.Wrap(body)

	if !isShort {
		id, err := b.ReadUint8()
		if err != nil {
			return fmt.Errorf("playersession: %w", err)
		}
		h, ok := d.byteTable[id]
		if !ok {
			return fmt.Errorf("%w: byte cmd 0x%02X", ErrUnknownCommand, id)
		}
		return h(p, body[b.ReadPos():])
	}

	id, err := b.ReadUint16()
	if err != nil {
		return fmt.Errorf("playersession: %w", err)
	}
	h, ok := d.shortTable[id]
	if !ok {
		return fmt.Errorf("%w: short cmd 0x%04X", ErrUnknownCommand, id)
	}
	return h(p, body[b.ReadPos():])
}

// shortCommandMarker is the leading byte of a PLAYER_COMMAND block body
// that selects short-keyed dispatch; any other value means byte-keyed.
const shortCommandMarker = 0x01

// DispatchRaw unwraps a PLAYER_COMMAND block's body (a one-byte
// byte/short marker followed by Dispatch's usual id+args) and runs it.
func (d *Dispatcher) DispatchRaw(p *PlayerSession, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("playersession: %w: empty command body", ErrUnknownCommand)
	}
	return d.Dispatch(p, body[0] == shortCommandMarker, body[1:])
}
