// Package spatial implements the 3-D position + orientation primitive
// shared by the object graph, player sessions and the world tick.
package spatial

import "math"

// Position is a value type: (x, y, z) world coordinates plus a scalar
// orientation o (radians). Equality is exact bitwise on all four fields.
type Position struct {
	X, Y, Z float64
	O       float64
}

// Distance2D returns the Euclidean distance ignoring Z.
func (p Position) Distance2D(other Position) float64 {
	return math.Sqrt(p.DistanceSquared2D(other))
}

// DistanceSquared2D returns the squared 2D distance, cheaper for comparisons.
func (p Position) DistanceSquared2D(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}

// Distance3D returns the Euclidean distance including Z.
func (p Position) Distance3D(other Position) float64 {
	return math.Sqrt(p.DistanceSquared3D(other))
}

// DistanceSquared3D returns the squared 3D distance.
func (p Position) DistanceSquared3D(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// AngleTo returns atan2(Δy, Δx) toward other, in radians.
func (p Position) AngleTo(other Position) float64 {
	return math.Atan2(other.Y-p.Y, other.X-p.X)
}

// ForwardMove returns a new Position moved by d along the current
// orientation o: x += d*cos(o), y += d*sin(o).
func (p Position) ForwardMove(d float64) Position {
	return Position{
		X: p.X + d*math.Cos(p.O),
		Y: p.Y + d*math.Sin(p.O),
		Z: p.Z,
		O: p.O,
	}
}

// Equal reports exact bitwise equality on all four fields.
func (p Position) Equal(other Position) bool {
	return p.X == other.X && p.Y == other.Y && p.Z == other.Z && p.O == other.O
}

// InRange reports whether other lies within radius of p on the 2D plane.
func (p Position) InRange(other Position, radius float64) bool {
	return p.DistanceSquared2D(other) <= radius*radius
}
