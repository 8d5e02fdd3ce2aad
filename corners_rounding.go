package vcomp

import (
	_ "embed"
	"fmt"
	"image"
	"math"
)

//go:embed shaders/corners_rounding.wgsl
var cornersRoundingShaderSource string

// CornersRounding makes the corners of a video transparent outside circular
// arcs of Radius output pixels. It does not change geometry.
//
// The radius is measured on the output frame, so the effect needs the
// placement size the stage receives, after any earlier cropping.
type CornersRounding struct {
	Radius float32
}

func (CornersRounding) transformation() {}

// Kind returns TransformationCornersRounding.
func (CornersRounding) Kind() TransformationKind { return TransformationCornersRounding }

// Validate checks that the radius is a finite non-negative number.
func (c CornersRounding) Validate() error {
	r := float64(c.Radius)
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return fmt.Errorf("%w: corner radius %v", ErrInvalidTransformation, c.Radius)
	}
	return nil
}

// Transform returns in unchanged.
func (c CornersRounding) Transform(in VideoProperties) VideoProperties {
	return in
}

// Params encodes the radius and the input placement width and height.
func (c CornersRounding) Params(in VideoProperties) []byte {
	return encodeParams(c.Radius, float32(in.Placement.Size.X), float32(in.Placement.Size.Y))
}

// roundCornersKernel copies src into dst, scaling alpha by the coverage of
// the rounded rectangle. Coverage is evaluated in output pixels.
func roundCornersKernel(dst, src *image.NRGBA, params []byte) {
	p := decodeParams(params)
	radius, placeW, placeH := float64(p[0]), float64(p[1]), float64(p[2])
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if placeW <= 0 || placeH <= 0 {
		placeW, placeH = float64(dw), float64(dh)
	}
	for y := 0; y < dh; y++ {
		sy := min(y*sh/dh, sh-1)
		py := (float64(y) + 0.5) * placeH / float64(dh)
		for x := 0; x < dw; x++ {
			sx := min(x*sw/dw, sw-1)
			px := (float64(x) + 0.5) * placeW / float64(dw)
			si := src.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
			cov := roundedRectCoverage(px, py, placeW, placeH, radius)
			dst.Pix[di+3] = uint8(float64(dst.Pix[di+3])*cov + 0.5)
		}
	}
}
