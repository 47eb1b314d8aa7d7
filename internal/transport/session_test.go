package transport

import (
	"net"
	"testing"
	"time"

	"github.com/mxocore/worldcore/internal/cryptoenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_UnreliableSendDelivers(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var got []Delivered
	recvSess := NewSession(addr, func([]byte) error { return nil }, nil)

	sendSess := NewSession(addr, func(payload []byte) error {
		d, err := recvSess.HandleInbound(payload, time.Now())
		require.NoError(t, err)
		got = append(got, d...)
		return nil
	}, nil)

	err := sendSess.Send(MsgPlayerCommand, []Block{{Type: 1, Data: []byte("hi")}}, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, MsgPlayerCommand, got[0].MsgType)
	assert.Equal(t, []byte("hi"), got[0].Blocks[0].Data)
}

func TestSession_ReliableSendTracksSlot(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	recvSess := NewSession(addr, func([]byte) error { return nil }, nil)

	var lastPayload []byte
	sendSess := NewSession(addr, func(payload []byte) error {
		lastPayload = payload
		return nil
	}, nil)

	err := sendSess.Send(MsgPlayerCommand, []Block{{Type: 1, Data: []byte("hi")}}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, sendSess.slots.Len())

	d, err := recvSess.HandleInbound(lastPayload, time.Now())
	require.NoError(t, err)
	require.Len(t, d, 1)
}

func TestSession_OutOfOrderDeliveryBuffers(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	recvSess := NewSession(addr, func([]byte) error { return nil }, nil)

	f0 := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPlayerCommand, Sequence: 0, Blocks: []Block{{Type: 1, Data: []byte("a")}}})
	f1 := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPlayerCommand, Sequence: 1, Blocks: []Block{{Type: 1, Data: []byte("b")}}})

	d, err := recvSess.HandleInbound(f1, time.Now())
	require.NoError(t, err)
	assert.Empty(t, d)

	d, err = recvSess.HandleInbound(f0, time.Now())
	require.NoError(t, err)
	require.Len(t, d, 2)
	assert.Equal(t, []byte("a"), d[0].Blocks[0].Data)
	assert.Equal(t, []byte("b"), d[1].Blocks[0].Data)
}

func TestSession_EncryptedRoundTrip(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var key [cryptoenv.SessionKeySize]byte
	for i := range key {
		key[i] = byte(i)
	}

	var got []Delivered
	recvSess := NewSession(addr, func([]byte) error { return nil }, nil)
	recvSess.EnableEncryption(key)

	sendSess := NewSession(addr, func(payload []byte) error {
		d, err := recvSess.HandleInbound(payload, time.Now())
		require.NoError(t, err)
		got = append(got, d...)
		return nil
	}, nil)
	sendSess.EnableEncryption(key)

	err := sendSess.Send(MsgPlayerState, []Block{{Type: 5, Data: []byte("secret")}}, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("secret"), got[0].Blocks[0].Data)
}

func TestSession_FragmentedSendReassembles(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	recvSess := NewSession(addr, func([]byte) error { return nil }, nil)

	var got []Delivered
	var datagrams [][]byte
	sendSess := NewSession(addr, func(payload []byte) error {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		datagrams = append(datagrams, cp)
		return nil
	}, nil)

	big := make([]byte, DefaultMTU*3)
	for i := range big {
		big[i] = byte(i % 251)
	}
	err := sendSess.Send(MsgObjectUpdate, []Block{{Type: 9, Data: big}}, true)
	require.NoError(t, err)
	require.Greater(t, len(datagrams), 1)

	for _, dg := range datagrams {
		d, err := recvSess.HandleInbound(dg, time.Now())
		require.NoError(t, err)
		got = append(got, d...)
	}
	require.Len(t, got, 1)
	assert.True(t, got[0].WasFragmented)
	assert.Equal(t, big, got[0].Blocks[0].Data)
}

func TestSession_StandaloneAckAfterCoalesce(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var acked []byte
	recvSess := NewSession(addr, func(payload []byte) error {
		acked = payload
		return nil
	}, nil)

	f := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPlayerCommand, Sequence: 0, Flags: FlagReliable, Blocks: []Block{{Type: 1, Data: []byte("hi")}}})
	_, err := recvSess.HandleInbound(f, time.Now())
	require.NoError(t, err)

	require.NoError(t, recvSess.MaybeSendAck(time.Now(), 20*time.Millisecond))
	assert.Nil(t, acked, "ack must wait out the coalesce window")

	require.NoError(t, recvSess.MaybeSendAck(time.Now().Add(21*time.Millisecond), 20*time.Millisecond))
	require.NotNil(t, acked)

	decoded, err := Decode(acked)
	require.NoError(t, err)
	assert.Equal(t, MsgAck, decoded.MsgType)
	assert.Equal(t, uint16(0), decoded.Ack)
}

func TestSession_PiggybackedAckClearsDirtyFlag(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var sent [][]byte
	sess := NewSession(addr, func(payload []byte) error {
		sent = append(sent, payload)
		return nil
	}, nil)

	f := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPlayerCommand, Sequence: 0, Flags: FlagReliable, Blocks: []Block{{Type: 1, Data: []byte("hi")}}})
	_, err := sess.HandleInbound(f, time.Now())
	require.NoError(t, err)

	require.NoError(t, sess.Send(MsgSystem, nil, false))
	require.Len(t, sent, 1, "the outbound send should have piggybacked the ack")

	require.NoError(t, sess.MaybeSendAck(time.Now().Add(time.Minute), 20*time.Millisecond))
	assert.Len(t, sent, 1, "no standalone ack once the piggyback already carried it")
}

func TestSession_OutOfWindowInboundNeverAcks(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var sent bool
	recvSess := NewSession(addr, func(payload []byte) error {
		sent = true
		return nil
	}, nil)

	f := Encode(&Frame{Version: ProtocolVersion, MsgType: MsgPlayerCommand, Sequence: WindowSize + 1, Flags: FlagReliable, Blocks: []Block{{Type: 1, Data: []byte("far")}}})
	_, err := recvSess.HandleInbound(f, time.Now())
	require.NoError(t, err)

	require.NoError(t, recvSess.MaybeSendAck(time.Now().Add(time.Minute), 20*time.Millisecond))
	assert.False(t, sent, "an out-of-window inbound must not trigger a standalone ack")
}

func TestSession_PingSentAfterInterval(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	var pinged []byte
	sess := NewSession(addr, func(payload []byte) error {
		pinged = payload
		return nil
	}, nil)

	require.NoError(t, sess.MaybeSendPing(time.Now(), 5*time.Second))
	assert.Nil(t, pinged, "ping must not fire before interval elapses")

	require.NoError(t, sess.MaybeSendPing(time.Now().Add(6*time.Second), 5*time.Second))
	require.NotNil(t, pinged)

	decoded, err := Decode(pinged)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, decoded.MsgType)
}

func TestSession_TimedOut(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	s := NewSession(addr, func([]byte) error { return nil }, nil)
	base := time.Now()
	s.Touch(base)
	assert.False(t, s.TimedOut(base.Add(time.Second)))
	assert.True(t, s.TimedOut(base.Add(ConnectionTimeout+time.Second)))
}
