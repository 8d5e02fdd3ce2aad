package vcomp

import (
	_ "embed"
	"fmt"
	"image"
	"math"
)

//go:embed shaders/cropping.wgsl
var croppingShaderSource string

// Cropping keeps a rectangular part of a video.
//
// TopLeft and Size are fractions of the input frame. The resolution and the
// placement size are scaled by Size. With TransformPosition set the
// placement moves by TopLeft × placement size, so the kept part stays where
// it was on the output frame; otherwise the crop is drawn at the original
// position.
type Cropping struct {
	TopLeft           Vec2[float32]
	Size              Vec2[float32]
	TransformPosition bool
}

func (Cropping) transformation() {}

// Kind returns TransformationCropping.
func (Cropping) Kind() TransformationKind { return TransformationCropping }

// Validate checks that the cropped region is non-empty and lies inside the
// frame.
func (c Cropping) Validate() error {
	if !unitRange(c.TopLeft.X) || !unitRange(c.TopLeft.Y) ||
		!unitRange(c.Size.X) || !unitRange(c.Size.Y) {
		return fmt.Errorf("%w: cropping fractions must lie in [0, 1]", ErrInvalidTransformation)
	}
	if c.Size.X == 0 || c.Size.Y == 0 {
		return fmt.Errorf("%w: empty cropping region", ErrInvalidTransformation)
	}
	if c.TopLeft.X+c.Size.X > 1+regionEpsilon || c.TopLeft.Y+c.Size.Y > 1+regionEpsilon {
		return fmt.Errorf("%w: cropping region exceeds the frame", ErrInvalidTransformation)
	}
	return nil
}

// regionEpsilon absorbs float32 rounding in TopLeft+Size.
const regionEpsilon = 1e-6

func unitRange(v float32) bool {
	return v >= 0 && v <= 1
}

// Transform scales the resolution and placement size and optionally shifts
// the position.
func (c Cropping) Transform(in VideoProperties) VideoProperties {
	out := in
	out.Resolution = V2(scaleRound(in.Resolution.X, c.Size.X), scaleRound(in.Resolution.Y, c.Size.Y))
	out.Placement.Size = V2(scaleRound(in.Placement.Size.X, c.Size.X), scaleRound(in.Placement.Size.Y, c.Size.Y))
	if c.TransformPosition {
		out.Placement.Position = in.Placement.Position.Add(V2(
			int32(math.Round(float64(c.TopLeft.X)*float64(in.Placement.Size.X))),
			int32(math.Round(float64(c.TopLeft.Y)*float64(in.Placement.Size.Y))),
		))
	}
	return out
}

func scaleRound(v uint32, f float32) uint32 {
	return uint32(math.Round(float64(v) * float64(f)))
}

// Params encodes top-left and size.
func (c Cropping) Params(VideoProperties) []byte {
	return encodeParams(c.TopLeft.X, c.TopLeft.Y, c.Size.X, c.Size.Y)
}

// cropKernel samples the cropped region of src into dst with
// nearest-neighbour sampling.
func cropKernel(dst, src *image.NRGBA, params []byte) {
	p := decodeParams(params)
	left, top, width, height := p[0], p[1], p[2], p[3]
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < dh; y++ {
		v := top + (float32(y)+0.5)/float32(dh)*height
		sy := min(max(int(v*float32(sh)), 0), sh-1)
		for x := 0; x < dw; x++ {
			u := left + (float32(x)+0.5)/float32(dw)*width
			sx := min(max(int(u*float32(sw)), 0), sw-1)
			si := src.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
}
