package vcomp

import "fmt"

// Placement describes where a video lands on the output frame.
//
// Position and Size are in output pixels. Z is a back-to-front ordering key,
// not a camera depth: a compositing pass visits streams in descending Z, so
// the stream with the lowest Z is drawn last and ends up visually on top.
// Devices clamp Z to [0, 1] for their depth test. Streams with equal Z are
// drawn in registration order, which callers must not rely on.
type Placement struct {
	Position Vec2[int32]
	Size     Vec2[uint32]
	Z        float32
}

// VideoProperties holds the resolution of a stream's frames together with
// its placement on the output frame.
type VideoProperties struct {
	Resolution Vec2[uint32]
	Placement  Placement
}

// String implements fmt.Stringer.
func (p VideoProperties) String() string {
	return fmt.Sprintf("%dx%d @ (%d,%d) %dx%d z=%g",
		p.Resolution.X, p.Resolution.Y,
		p.Placement.Position.X, p.Placement.Position.Y,
		p.Placement.Size.X, p.Placement.Size.Y,
		p.Placement.Z)
}
