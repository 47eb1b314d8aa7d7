package playersession

import (
	"net"
	"testing"
	"time"

	"github.com/mxocore/worldcore/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *PlayerSession {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	t := transport.NewSession(addr, func([]byte) error { return nil }, nil)
	return New(t)
}

func TestStateMachine_HappyPath(t *testing.T) {
	p := newTestSession()
	require.Equal(t, StateInitial, p.State())

	require.NoError(t, p.Bind(42, 7, "Neo"))
	assert.Equal(t, StateHandshake, p.State())

	require.NoError(t, p.Advance())
	assert.Equal(t, StateConnected, p.State())

	require.NoError(t, p.Advance())
	assert.Equal(t, StateWorldLoading, p.State())

	require.NoError(t, p.Advance())
	assert.Equal(t, StateInWorld, p.State())

	require.NoError(t, p.Advance())
	assert.Equal(t, StateDisconnecting, p.State())

	require.NoError(t, p.Advance())
	assert.Equal(t, StateClosed, p.State())

	err := p.Advance()
	assert.Error(t, err)
}

func TestStateMachine_ForceDisconnectFromAnyState(t *testing.T) {
	p := newTestSession()
	p.ForceDisconnect()
	assert.Equal(t, StateDisconnecting, p.State())
}

func TestRecordCryptoFailure_TripsAtLimit(t *testing.T) {
	p := newTestSession()
	now := time.Now()
	var tripped bool
	for i := 0; i < cryptoFailureLimit; i++ {
		tripped = p.RecordCryptoFailure(now)
	}
	assert.True(t, tripped)
}

func TestRecordCryptoFailure_OldFailuresExpire(t *testing.T) {
	p := newTestSession()
	base := time.Now()
	for i := 0; i < cryptoFailureLimit-1; i++ {
		p.RecordCryptoFailure(base)
	}
	tripped := p.RecordCryptoFailure(base.Add(cryptoFailureWindow + time.Second))
	assert.False(t, tripped)
}

func TestEvents_ServiceInFireTimeOrder(t *testing.T) {
	p := newTestSession()
	now := time.Now()
	var order []string

	p.ScheduleEvent(Event{Kind: EventTeleport, FireTime: now.Add(2 * time.Second), Call: func(*PlayerSession) {
		order = append(order, "second")
	}})
	p.ScheduleEvent(Event{Kind: EventAbilityEnd, FireTime: now.Add(1 * time.Second), Call: func(*PlayerSession) {
		order = append(order, "first")
	}})

	p.ServiceEvents(now.Add(3 * time.Second))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEvents_CancelByKind(t *testing.T) {
	p := newTestSession()
	now := time.Now()
	fired := false
	p.ScheduleEvent(Event{Kind: EventJackout, FireTime: now.Add(time.Second), Call: func(*PlayerSession) { fired = true }})
	p.CancelEvents(EventJackout)
	p.ServiceEvents(now.Add(time.Hour))
	assert.False(t, fired)
}

func TestEvents_FireTimeEqualsNowFiresSameTick(t *testing.T) {
	p := newTestSession()
	now := time.Now()
	fired := false
	p.ScheduleEvent(Event{Kind: EventAbilityEnd, FireTime: now, Call: func(*PlayerSession) { fired = true }})
	p.ServiceEvents(now)
	assert.True(t, fired)
}

func TestDispatcher_UnknownCommandDrops(t *testing.T) {
	p := newTestSession()
	d := NewDispatcher()
	err := d.Dispatch(p, false, []byte{0x99})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestDispatcher_ByteCommandRuns(t *testing.T) {
	p := newTestSession()
	d := NewDispatcher()
	var gotArg []byte
	d.RegisterByte(CmdChat, func(p *PlayerSession, body []byte) error {
		gotArg = body
		return nil
	})
	err := d.Dispatch(p, false, append([]byte{CmdChat}, []byte("hello")...))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), gotArg)
}

func TestDispatcher_ShortCommandRuns(t *testing.T) {
	p := newTestSession()
	d := NewDispatcher()
	ran := false
	d.RegisterShort(ShortCommandBase+1, func(p *PlayerSession, body []byte) error {
		ran = true
		return nil
	})
	body := []byte{0x01, 0x01} // little-endian ShortCommandBase+1
	err := d.Dispatch(p, true, body)
	require.NoError(t, err)
	assert.True(t, ran)
}
