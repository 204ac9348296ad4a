package domain

import (
	"fmt"
	"math"
)

// Point is a position in a named world.
type Point struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// String renders the point as "world(x, y, z)".
func (p Point) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", p.World, p.X, p.Y, p.Z)
}

// Distance returns the euclidean distance to q, or -1 across worlds.
func (p Point) Distance(q Point) float64 {
	if p.World != q.World {
		return -1
	}
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
