// Package worldgraph implements C5: the world's object graph, keyed by a
// 32-bit object id and partitioned by district, with interest-set
// broadcast to every session whose player object shares a district.
package worldgraph

import "github.com/mxocore/worldcore/internal/spatial"

// Type tags an Object's variant per the tagged-variant design (players,
// NPCs, items, interactive scenery, environment props) sharing one
// metadata header and dispatching on the tag for type-specific payloads.
type Type uint8

const (
	TypePlayer Type = iota
	TypeNPC
	TypeItem
	TypeInteractive
	TypeEnvironment
)

// District enumerates the twelve fixed spatial partitions of the world.
type District uint8

const (
	DistrictRichland District = iota + 1
	DistrictDowntown
	DistrictWestview
	DistrictInternational
	DistrictUeno
	DistrictStamos
	DistrictTabor
	DistrictEdgewater
	DistrictGracy
	DistrictHistoric
	DistrictCenter
	DistrictKedemoth
)

// Object is one entity in the world graph: a player, NPC, item,
// interactive prop, or environment feature. The graph exclusively owns
// Objects; every other component holds only ids (§9 "back-references").
type Object struct {
	ID         uint32
	Type       Type
	Position   spatial.Position
	District   District
	Name       string
	Visible    bool
	StateFlags uint32
	Scale      float64
	Properties map[string]string
}

// Clone returns a value copy of o, including its property map, so callers
// can hand out snapshots without risking mutation of graph-owned state.
func (o *Object) Clone() *Object {
	props := make(map[string]string, len(o.Properties))
	for k, v := range o.Properties {
		props[k] = v
	}
	c := *o
	c.Properties = props
	return &c
}
