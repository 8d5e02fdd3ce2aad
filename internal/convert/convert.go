// Package convert implements the pixel-format conversions between the raw
// frames exchanged with the media pipeline and the packed RGBA surfaces the
// rendering devices work with.
//
// YUV values follow BT.601 full range, the same model as image/color.
package convert

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrSize is returned when a buffer does not match the stated dimensions.
var ErrSize = errors.New("convert: buffer size mismatch")

// I420Size returns the byte size of a w×h I420 frame. Chroma planes are
// ceil(w/2)×ceil(h/2) so odd dimensions round up.
func I420Size(w, h int) int {
	cw, ch := (w+1)/2, (h+1)/2
	return w*h + 2*cw*ch
}

// I420ToRGBA converts the planar frame in src into packed RGBA in dst.
// The produced pixels are opaque.
func I420ToRGBA(dst, src []byte, w, h int) error {
	if len(src) != I420Size(w, h) {
		return fmt.Errorf("%w: I420 %dx%d needs %d bytes, got %d", ErrSize, w, h, I420Size(w, h), len(src))
	}
	if len(dst) < w*h*4 {
		return fmt.Errorf("%w: RGBA %dx%d needs %d bytes, got %d", ErrSize, w, h, w*h*4, len(dst))
	}

	cw, ch := (w+1)/2, (h+1)/2
	ySize, cSize := w*h, cw*ch
	in := &image.YCbCr{
		Y:              src[:ySize],
		Cb:             src[ySize : ySize+cSize],
		Cr:             src[ySize+cSize : ySize+2*cSize],
		YStride:        w,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}
	out := &image.RGBA{Pix: dst[:w*h*4], Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	draw.Draw(out, out.Rect, in, image.Point{}, draw.Src)
	return nil
}

// RGBAToI420 converts packed RGBA in src into the planar frame in dst.
// Alpha is ignored; chroma is the average of each 2×2 block.
func RGBAToI420(dst, src []byte, w, h int) error {
	if len(src) < w*h*4 {
		return fmt.Errorf("%w: RGBA %dx%d needs %d bytes, got %d", ErrSize, w, h, w*h*4, len(src))
	}
	if len(dst) < I420Size(w, h) {
		return fmt.Errorf("%w: I420 %dx%d needs %d bytes, got %d", ErrSize, w, h, I420Size(w, h), len(dst))
	}

	cw, ch := (w+1)/2, (h+1)/2
	ySize, cSize := w*h, cw*ch
	yPlane := dst[:ySize]
	uPlane := dst[ySize : ySize+cSize]
	vPlane := dst[ySize+cSize : ySize+2*cSize]

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			yy, _, _ := color.RGBToYCbCr(src[i], src[i+1], src[i+2])
			yPlane[y*w+x] = yy
		}
	}

	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			var sr, sg, sb, n int
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					x, y := cx*2+dx, cy*2+dy
					if x >= w || y >= h {
						continue
					}
					i := (y*w + x) * 4
					sr += int(src[i])
					sg += int(src[i+1])
					sb += int(src[i+2])
					n++
				}
			}
			_, cb, cr := color.RGBToYCbCr(uint8(sr/n), uint8(sg/n), uint8(sb/n))
			uPlane[cy*cw+cx] = cb
			vPlane[cy*cw+cx] = cr
		}
	}
	return nil
}
