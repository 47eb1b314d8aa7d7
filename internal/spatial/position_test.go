package spatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPosition_Distance(t *testing.T) {
	a := Position{X: 0, Y: 0, Z: 0}
	b := Position{X: 3, Y: 4, Z: 0}

	assert.Equal(t, 5.0, a.Distance2D(b))
	assert.Equal(t, 25.0, a.DistanceSquared2D(b))
	assert.Equal(t, 5.0, a.Distance3D(b))
}

func TestPosition_AngleTo(t *testing.T) {
	a := Position{X: 0, Y: 0}
	b := Position{X: 1, Y: 0}
	assert.InDelta(t, 0.0, a.AngleTo(b), 1e-9)

	c := Position{X: 0, Y: 1}
	assert.InDelta(t, math.Pi/2, a.AngleTo(c), 1e-9)
}

func TestPosition_ForwardMove(t *testing.T) {
	p := Position{X: 0, Y: 0, O: 0}
	moved := p.ForwardMove(10)
	assert.InDelta(t, 10.0, moved.X, 1e-9)
	assert.InDelta(t, 0.0, moved.Y, 1e-9)

	p2 := Position{X: 0, Y: 0, O: math.Pi / 2}
	moved2 := p2.ForwardMove(10)
	assert.InDelta(t, 0.0, moved2.X, 1e-9)
	assert.InDelta(t, 10.0, moved2.Y, 1e-9)
}

func TestPosition_Equal(t *testing.T) {
	a := Position{1, 2, 3, 4}
	b := Position{1, 2, 3, 4}
	c := Position{1, 2, 3, 5}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestPosition_InRange(t *testing.T) {
	a := Position{X: 0, Y: 0}
	b := Position{X: 5, Y: 0}
	assert.True(t, a.InRange(b, 5))
	assert.False(t, a.InRange(b, 4.9))
}
