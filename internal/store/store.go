// Package store implements C9: the narrow row read/write interface for
// character, world and appearance persistence (§4.9). Reads block; writes
// are enqueued to an async worker with a drain-on-shutdown and retried with
// backoff before being logged and dropped.
package store

import (
	"context"
	"time"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/worldgraph"
)

// Character is the relational row shape for the characters table, plus its
// embedded position fields (§6 Persisted state).
type Character struct {
	CharacterID uint32
	AccountID   uint32
	Handle      string
	FirstName   string
	LastName    string
	Background  string
	Experience  uint32
	Information uint32
	Profession  uint8
	Level       uint8
	Alignment   int8
	Position    spatial.Position
	District    worldgraph.District
}

// CharacterFields is a partial update: save_character(character_id, fields)
// only touches the keys present, so a chat-only tick never rewrites position
// and a position-only tick never rewrites profession.
type CharacterFields map[string]interface{}

// World is the relational row shape for the worlds table.
type World struct {
	Name        string
	Description string
	MaxPlayers  uint32
}

// Store is the interface C7 depends on. It never exposes SQL, Mongo
// or Redis types across the boundary.
type Store interface {
	LoadCharacter(ctx context.Context, characterID uint32) (*Character, error)
	SaveCharacter(characterID uint32, fields CharacterFields)
	LoadWorld(ctx context.Context, worldName string) (*World, error)
	SaveAppearance(characterID uint32, blob []byte)
	SavePosition(characterID uint32, pos spatial.Position, district worldgraph.District)
	Close() error
}

// writeKind distinguishes the payload shape carried by a queued write.
type writeKind uint8

const (
	writeCharacterFields writeKind = iota
	writeAppearance
	writePosition
)

// pendingWrite is one item on the async write queue, also the unit
// persisted to the badger write-ahead outbox before being flushed.
type pendingWrite struct {
	Kind        writeKind       `json:"kind"`
	CharacterID uint32          `json:"character_id"`
	Fields      CharacterFields `json:"fields,omitempty"`
	Blob        []byte          `json:"blob,omitempty"`
	Position    spatial.Position `json:"position,omitempty"`
	District    worldgraph.District `json:"district,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}
