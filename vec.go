package vcomp

// Number is the set of scalar types a Vec2 can hold.
type Number interface {
	~int32 | ~uint32 | ~float32 | ~float64 | ~int
}

// Vec2 is a 2D vector. vcomp uses Vec2[uint32] for resolutions and sizes,
// Vec2[int32] for positions on the output frame and Vec2[float32] for
// relative coordinates in the [0, 1] range.
type Vec2[T Number] struct {
	X, Y T
}

// V2 is a convenience function to create a Vec2.
func V2[T Number](x, y T) Vec2[T] {
	return Vec2[T]{X: x, Y: y}
}

// Add returns the sum of two vectors.
func (v Vec2[T]) Add(w Vec2[T]) Vec2[T] {
	return Vec2[T]{X: v.X + w.X, Y: v.Y + w.Y}
}

// IsZero reports whether both components are zero.
func (v Vec2[T]) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Area returns X*Y as an int.
func (v Vec2[T]) Area() int {
	return int(v.X) * int(v.Y)
}
