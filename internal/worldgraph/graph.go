package worldgraph

import (
	"sort"
	"sync"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/transport"
)

// Sender is the narrow surface a session exposes to the graph for
// broadcast delivery, kept minimal so this package never depends on the
// session or transport-server types directly (§9 "avoid ownership cycles").
type Sender interface {
	CharacterID() uint32
	Send(msgType uint16, blocks []transport.Block, reliable bool) error
}

// Directory resolves the interest set for a district. It is implemented by
// the session index and injected into the graph, rather than the graph
// reaching upward for it, keeping the dependency direction the data flow
// implies (C6/C8 -> C5, never the reverse).
type Directory interface {
	SessionsInDistrict(d District) []Sender
	AllSessions() []Sender
}

// Graph is the single source of truth for every object in the world. It
// is guarded by one RWMutex; C7 is expected to serialize its own mutating
// calls across a tick so interest sets observe a consistent snapshot.
type Graph struct {
	mu         sync.RWMutex
	objects    map[uint32]*Object
	byDistrict map[District]map[uint32]struct{}
	byHandle   map[string]uint32
	nextID     uint32

	directory Directory
}

// New builds an empty object graph.
func New() *Graph {
	return &Graph{
		objects:    make(map[uint32]*Object),
		byDistrict: make(map[District]map[uint32]struct{}),
		byHandle:   make(map[string]uint32),
	}
}

// SetDirectory wires the session lookup used by the broadcast helpers.
func (g *Graph) SetDirectory(d Directory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.directory = d
}

// Create allocates a new object id, inserts it into the graph, and
// broadcasts OBJECT_CREATE to the district's interest set.
func (g *Graph) Create(typ Type, pos spatial.Position, district District, name string) *Object {
	g.mu.Lock()
	g.nextID++
	obj := &Object{
		ID:         g.nextID,
		Type:       typ,
		Position:   pos,
		District:   district,
		Name:       name,
		Visible:    true,
		Properties: make(map[string]string),
	}
	g.objects[obj.ID] = obj
	g.indexDistrict(obj.ID, district)
	if typ == TypePlayer && name != "" {
		g.byHandle[name] = obj.ID
	}
	snapshot := obj.Clone()
	g.mu.Unlock()

	g.broadcastDistrict(district, transport.MsgObjectCreate, EncodeCreate(snapshot), 0)
	return obj
}

// Update broadcasts payload as OBJECT_UPDATE to the interest set of the
// object's current district. It does not change the stored object.
func (g *Graph) Update(id uint32, payload []byte) bool {
	g.mu.Lock()
	obj, ok := g.objects[id]
	if !ok {
		g.mu.Unlock()
		return false
	}
	district := obj.District
	g.mu.Unlock()

	g.broadcastDistrict(district, transport.MsgObjectUpdate, EncodeUpdate(id, payload), 0)
	return true
}

// Move relocates obj, updating district indices if it crossed a boundary.
// It sends nothing; the caller broadcasts the resulting OBJECT_UPDATE.
func (g *Graph) Move(id uint32, pos spatial.Position, newDistrict District) bool {
	g.mu.Lock()
	obj, ok := g.objects[id]
	if !ok {
		g.mu.Unlock()
		return false
	}
	oldDistrict := obj.District
	obj.Position = pos
	if newDistrict != oldDistrict {
		g.unindexDistrict(id, oldDistrict)
		g.indexDistrict(id, newDistrict)
		obj.District = newDistrict
	}
	g.mu.Unlock()
	return true
}

// Destroy removes id from every index and broadcasts OBJECT_DESTROY to the
// district it was last known to occupy.
func (g *Graph) Destroy(id uint32) bool {
	g.mu.Lock()
	obj, ok := g.objects[id]
	if !ok {
		g.mu.Unlock()
		return false
	}
	district := obj.District
	g.unindexDistrict(id, district)
	delete(g.objects, id)
	if obj.Type == TypePlayer {
		delete(g.byHandle, obj.Name)
	}
	g.mu.Unlock()

	g.broadcastDistrict(district, transport.MsgObjectDestroy, EncodeDestroy(id), 0)
	return true
}

// Get returns a snapshot of the object named id.
func (g *Graph) Get(id uint32) (*Object, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.objects[id]
	if !ok {
		return nil, false
	}
	return obj.Clone(), true
}

// ByHandle resolves a player object id by handle.
func (g *Graph) ByHandle(handle string) (uint32, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byHandle[handle]
	return id, ok
}

// All returns a snapshot of every object currently in the graph, for ops
// debugging; it is never called from the tick loop itself.
func (g *Graph) All() []*Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Object, 0, len(g.objects))
	for _, obj := range g.objects {
		out = append(out, obj.Clone())
	}
	return out
}

func (g *Graph) indexDistrict(id uint32, d District) {
	set, ok := g.byDistrict[d]
	if !ok {
		set = make(map[uint32]struct{})
		g.byDistrict[d] = set
	}
	set[id] = struct{}{}
}

func (g *Graph) unindexDistrict(id uint32, d District) {
	if set, ok := g.byDistrict[d]; ok {
		delete(set, id)
	}
}

// InRange returns every object in district within radius of pos, sorted by
// id for stable snapshot ordering within a tick.
func (g *Graph) InRange(pos spatial.Position, district District, radius float64) []*Object {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Object
	for id := range g.byDistrict[district] {
		obj := g.objects[id]
		if obj.Position.InRange(pos, radius) {
			out = append(out, obj.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Nearest returns the closest object of typ to pos within district and
// radius, or nil if none qualify.
func (g *Graph) Nearest(pos spatial.Position, district District, typ Type, radius float64) *Object {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *Object
	bestDist := radius * radius
	for id := range g.byDistrict[district] {
		obj := g.objects[id]
		if obj.Type != typ {
			continue
		}
		d := obj.Position.DistanceSquared3D(pos)
		if d <= bestDist {
			bestDist = d
			best = obj
		}
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}

// BroadcastDistrict sends msgType/payload to every session whose player
// object occupies district, excluding exceptCharID if nonzero.
func (g *Graph) BroadcastDistrict(district District, msgType uint16, payload []byte, exceptCharID uint32) {
	g.broadcastDistrict(district, msgType, payload, exceptCharID)
}

func (g *Graph) broadcastDistrict(district District, msgType uint16, payload []byte, exceptCharID uint32) {
	g.mu.RLock()
	dir := g.directory
	g.mu.RUnlock()
	if dir == nil {
		return
	}
	for _, sess := range dir.SessionsInDistrict(district) {
		if exceptCharID != 0 && sess.CharacterID() == exceptCharID {
			continue
		}
		_ = sess.Send(msgType, []transport.Block{{Type: msgType, Data: payload}}, true)
	}
}

// BroadcastAll sends msgType/payload to every connected session.
func (g *Graph) BroadcastAll(msgType uint16, payload []byte, exceptCharID uint32) {
	g.mu.RLock()
	dir := g.directory
	g.mu.RUnlock()
	if dir == nil {
		return
	}
	for _, sess := range dir.AllSessions() {
		if exceptCharID != 0 && sess.CharacterID() == exceptCharID {
			continue
		}
		_ = sess.Send(msgType, []transport.Block{{Type: msgType, Data: payload}}, true)
	}
}
