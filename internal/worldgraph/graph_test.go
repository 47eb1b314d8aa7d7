package worldgraph

import (
	"testing"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	charID uint32
	sent   []uint16
}

func (f *fakeSender) CharacterID() uint32 { return f.charID }
func (f *fakeSender) Send(msgType uint16, blocks []transport.Block, reliable bool) error {
	f.sent = append(f.sent, msgType)
	return nil
}

type fakeDirectory struct {
	byDistrict map[District][]Sender
}

func (d *fakeDirectory) SessionsInDistrict(dist District) []Sender { return d.byDistrict[dist] }
func (d *fakeDirectory) AllSessions() []Sender {
	var all []Sender
	for _, s := range d.byDistrict {
		all = append(all, s...)
	}
	return all
}

func TestGraph_CreateAssignsIDAndBroadcasts(t *testing.T) {
	g := New()
	observer := &fakeSender{charID: 1}
	g.SetDirectory(&fakeDirectory{byDistrict: map[District][]Sender{
		DistrictDowntown: {observer},
	}})

	obj := g.Create(TypeNPC, spatial.Position{X: 1, Y: 2}, DistrictDowntown, "guard")
	require.NotZero(t, obj.ID)
	assert.Equal(t, []uint16{transport.MsgObjectCreate}, observer.sent)

	got, ok := g.Get(obj.ID)
	require.True(t, ok)
	assert.Equal(t, "guard", got.Name)
}

func TestGraph_DestroyRemovesFromIndicesAndBroadcasts(t *testing.T) {
	g := New()
	observer := &fakeSender{charID: 1}
	g.SetDirectory(&fakeDirectory{byDistrict: map[District][]Sender{
		DistrictDowntown: {observer},
	}})

	obj := g.Create(TypeItem, spatial.Position{}, DistrictDowntown, "")
	ok := g.Destroy(obj.ID)
	require.True(t, ok)

	_, exists := g.Get(obj.ID)
	assert.False(t, exists)
	assert.Contains(t, observer.sent, transport.MsgObjectDestroy)
}

func TestGraph_InRangeFiltersByDistance(t *testing.T) {
	g := New()
	g.SetDirectory(&fakeDirectory{})

	near := g.Create(TypeItem, spatial.Position{X: 0, Y: 0}, DistrictDowntown, "")
	far := g.Create(TypeItem, spatial.Position{X: 1000, Y: 1000}, DistrictDowntown, "")

	results := g.InRange(spatial.Position{X: 0, Y: 0}, DistrictDowntown, 10)
	var ids []uint32
	for _, o := range results {
		ids = append(ids, o.ID)
	}
	assert.Contains(t, ids, near.ID)
	assert.NotContains(t, ids, far.ID)
}

func TestGraph_ByHandle(t *testing.T) {
	g := New()
	g.SetDirectory(&fakeDirectory{})
	obj := g.Create(TypePlayer, spatial.Position{}, DistrictDowntown, "Neo")

	id, ok := g.ByHandle("Neo")
	require.True(t, ok)
	assert.Equal(t, obj.ID, id)
}

func TestGraph_MoveAcrossDistrictReindexes(t *testing.T) {
	g := New()
	g.SetDirectory(&fakeDirectory{})
	obj := g.Create(TypeNPC, spatial.Position{}, DistrictDowntown, "")

	ok := g.Move(obj.ID, spatial.Position{X: 5}, DistrictWestview)
	require.True(t, ok)

	inOld := g.InRange(spatial.Position{}, DistrictDowntown, 100)
	inNew := g.InRange(spatial.Position{}, DistrictWestview, 100)
	assert.Empty(t, inOld)
	require.Len(t, inNew, 1)
	assert.Equal(t, obj.ID, inNew[0].ID)
}

func TestEncodeDecodeCreate_RoundTrip(t *testing.T) {
	o := &Object{
		ID: 7, Type: TypeNPC, Position: spatial.Position{X: 1, Y: 2, Z: 3, O: 0.5},
		District: DistrictUeno, Name: "Guard", Visible: true, StateFlags: 0xFF, Scale: 1.5,
		Properties: map[string]string{"faction": "zion"},
	}
	raw := EncodeCreate(o)
	got, err := DecodeCreate(raw)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, o.Name, got.Name)
	assert.Equal(t, o.Properties, got.Properties)
}
