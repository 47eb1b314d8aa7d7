package worldgraph

import (
	"github.com/mxocore/worldcore/internal/codec"
	"github.com/mxocore/worldcore/internal/spatial"
)

// EncodeCreate serializes o for an OBJECT_CREATE block: the uniform
// metadata header shared by every object type, per §9's tagged-variant
// design.
func EncodeCreate(o *Object) []byte {
	b := codec.New()
	b.WriteUint32(o.ID)
	b.WriteUint8(uint8(o.Type))
	b.WriteFloat64(o.Position.X)
	b.WriteFloat64(o.Position.Y)
	b.WriteFloat64(o.Position.Z)
	b.WriteFloat64(o.Position.O)
	b.WriteUint8(uint8(o.District))
	b.WriteString(o.Name)
	visible := uint8(0)
	if o.Visible {
		visible = 1
	}
	b.WriteUint8(visible)
	b.WriteUint32(o.StateFlags)
	b.WriteFloat64(o.Scale)
	b.WriteUint16(uint16(len(o.Properties)))
	for k, v := range o.Properties {
		b.WriteString(k)
		b.WriteString(v)
	}
	return b.Bytes()
}

// DecodeCreate reverses EncodeCreate.
func DecodeCreate(raw []byte) (*Object, error) {
	b := codec.Wrap(raw)
	o := &Object{Properties: make(map[string]string)}

	id, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	o.ID = id

	typ, err := b.ReadUint8()
	if err != nil {
		return nil, err
	}
	o.Type = Type(typ)

	x, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	y, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	z, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	ori, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	o.Position.X, o.Position.Y, o.Position.Z, o.Position.O = x, y, z, ori

	district, err := b.ReadUint8()
	if err != nil {
		return nil, err
	}
	o.District = District(district)

	name, err := b.ReadString()
	if err != nil {
		return nil, err
	}
	o.Name = name

	visible, err := b.ReadUint8()
	if err != nil {
		return nil, err
	}
	o.Visible = visible != 0

	flags, err := b.ReadUint32()
	if err != nil {
		return nil, err
	}
	o.StateFlags = flags

	scale, err := b.ReadFloat64()
	if err != nil {
		return nil, err
	}
	o.Scale = scale

	propCount, err := b.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(propCount); i++ {
		k, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		o.Properties[k] = v
	}
	return o, nil
}

// EncodeUpdate serializes an object-type-specific payload as an opaque
// property delta: object id followed by the raw payload bytes.
func EncodeUpdate(id uint32, payload []byte) []byte {
	b := codec.New()
	b.WriteUint32(id)
	b.WriteBytes(payload)
	return b.Bytes()
}

// DecodeUpdate reverses EncodeUpdate.
func DecodeUpdate(raw []byte) (id uint32, payload []byte, err error) {
	b := codec.Wrap(raw)
	id, err = b.ReadUint32()
	if err != nil {
		return 0, nil, err
	}
	payload, err = b.ReadBytes(b.Remaining())
	return id, payload, err
}

// EncodePositionDelta serializes a self-state position update: the
// x/y/z/orientation fields carried by PLAYER_STATE (§4.7 step 2).
func EncodePositionDelta(pos spatial.Position) []byte {
	b := codec.New()
	b.WriteFloat64(pos.X)
	b.WriteFloat64(pos.Y)
	b.WriteFloat64(pos.Z)
	b.WriteFloat64(pos.O)
	return b.Bytes()
}

// DecodePositionDelta reverses EncodePositionDelta.
func DecodePositionDelta(raw []byte) (spatial.Position, error) {
	b := codec.Wrap(raw)
	var pos spatial.Position
	var err error
	if pos.X, err = b.ReadFloat64(); err != nil {
		return pos, err
	}
	if pos.Y, err = b.ReadFloat64(); err != nil {
		return pos, err
	}
	if pos.Z, err = b.ReadFloat64(); err != nil {
		return pos, err
	}
	if pos.O, err = b.ReadFloat64(); err != nil {
		return pos, err
	}
	return pos, nil
}

// EncodeDestroy serializes an OBJECT_DESTROY block: just the object id.
func EncodeDestroy(id uint32) []byte {
	b := codec.New()
	b.WriteUint32(id)
	return b.Bytes()
}

// DecodeDestroy reverses EncodeDestroy.
func DecodeDestroy(raw []byte) (uint32, error) {
	b := codec.Wrap(raw)
	return b.ReadUint32()
}

// EncodeWorldInit serializes the one WORLD_INIT block sent on entering
// WORLD_LOADING: start position, district, server tick_ms.
func EncodeWorldInit(pos spatial.Position, district District, tickMs int) []byte {
	b := codec.New()
	b.WriteFloat64(pos.X)
	b.WriteFloat64(pos.Y)
	b.WriteFloat64(pos.Z)
	b.WriteFloat64(pos.O)
	b.WriteUint8(uint8(district))
	b.WriteUint32(uint32(tickMs))
	return b.Bytes()
}

// DecodeWorldInit reverses EncodeWorldInit.
func DecodeWorldInit(raw []byte) (pos spatial.Position, district District, tickMs int, err error) {
	b := codec.Wrap(raw)
	if pos.X, err = b.ReadFloat64(); err != nil {
		return pos, 0, 0, err
	}
	if pos.Y, err = b.ReadFloat64(); err != nil {
		return pos, 0, 0, err
	}
	if pos.Z, err = b.ReadFloat64(); err != nil {
		return pos, 0, 0, err
	}
	if pos.O, err = b.ReadFloat64(); err != nil {
		return pos, 0, 0, err
	}
	d, err := b.ReadUint8()
	if err != nil {
		return pos, 0, 0, err
	}
	tick, err := b.ReadUint32()
	if err != nil {
		return pos, 0, 0, err
	}
	return pos, District(d), int(tick), nil
}
