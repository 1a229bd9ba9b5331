package forcelayout

import "math"

const epsilon = 1e-9

// Vec2 is a 2D point or displacement used throughout the layout simulation.
type Vec2 struct {
	X, Y float64
}

func (a Vec2) Add(b Vec2) Vec2 { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2 { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Length() float64 { return math.Sqrt(a.X*a.X + a.Y*a.Y) }

func distance(a, b Vec2) float64 {
	return a.Sub(b).Length()
}
