package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mxocore/worldcore/internal/spatial"
	"github.com/mxocore/worldcore/internal/worldgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedCharacterColumn(t *testing.T) {
	assert.True(t, allowedCharacterColumn("handle"))
	assert.True(t, allowedCharacterColumn("experience"))
	assert.False(t, allowedCharacterColumn("character_id"))
	assert.False(t, allowedCharacterColumn("x"))
}

func TestPendingWrite_RoundTripsThroughJSON(t *testing.T) {
	pw := pendingWrite{
		Kind:        writePosition,
		CharacterID: 42,
		Position:    spatial.Position{X: 1, Y: 2, Z: 3, O: 0.5},
		District:    worldgraph.DistrictDowntown,
		EnqueuedAt:  time.Now(),
	}
	raw, err := json.Marshal(pw)
	require.NoError(t, err)

	var out pendingWrite
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, pw.Kind, out.Kind)
	assert.Equal(t, pw.CharacterID, out.CharacterID)
	assert.Equal(t, pw.Position, out.Position)
	assert.Equal(t, pw.District, out.District)
}

func TestOutboxKey_IsOrderedBySequence(t *testing.T) {
	a := outboxKey(1)
	b := outboxKey(2)
	c := outboxKey(10)
	assert.Less(t, string(a), string(b))
	assert.Less(t, string(b), string(c))
}

func TestOutbox_AppendPendingRemove(t *testing.T) {
	dir := t.TempDir()
	box, err := newOutbox(dir)
	require.NoError(t, err)
	defer box.close()

	key, err := box.append(pendingWrite{Kind: writeCharacterFields, CharacterID: 7, Fields: CharacterFields{"handle": "Neo"}})
	require.NoError(t, err)

	pending, keys, err := box.pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint32(7), pending[0].CharacterID)
	require.Len(t, keys, 1)

	require.NoError(t, box.remove(key))

	pending, _, err = box.pending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutbox_ReplaysAcrossMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	box, err := newOutbox(dir)
	require.NoError(t, err)
	defer box.close()

	_, err = box.append(pendingWrite{Kind: writePosition, CharacterID: 1})
	require.NoError(t, err)
	_, err = box.append(pendingWrite{Kind: writeAppearance, CharacterID: 2})
	require.NoError(t, err)

	pending, _, err := box.pending()
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
