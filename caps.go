package vcomp

import (
	"fmt"

	"github.com/gogpu/vcomp/internal/convert"
)

// PixelFormat identifies the byte layout of raw frames exchanged with the
// surrounding pipeline.
type PixelFormat uint8

const (
	// PixelFormatI420 is planar YUV 4:2:0: a full-resolution Y plane
	// followed by quarter-resolution U and V planes.
	PixelFormatI420 PixelFormat = iota
	// PixelFormatRGBA is packed 8-bit RGBA with straight alpha.
	PixelFormatRGBA
)

// String implements fmt.Stringer.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatI420:
		return "I420"
	case PixelFormatRGBA:
		return "RGBA"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// FrameSize returns the number of bytes of a w×h frame in this format.
func (f PixelFormat) FrameSize(w, h int) int {
	switch f {
	case PixelFormatI420:
		return convert.I420Size(w, h)
	case PixelFormatRGBA:
		return w * h * 4
	default:
		return 0
	}
}

// Rational is a frame rate expressed as Num/Den frames per second.
type Rational struct {
	Num, Den uint64
}

// RawVideo describes a raw video stream as negotiated by the bridge layer.
type RawVideo struct {
	Width       uint32
	Height      uint32
	PixelFormat PixelFormat
	Framerate   Rational
}

// Validate reports whether the caps can drive a compositor.
func (c RawVideo) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidCaps, c.Width, c.Height)
	}
	if c.Framerate.Num == 0 || c.Framerate.Den == 0 {
		return fmt.Errorf("%w: framerate %d/%d", ErrInvalidCaps, c.Framerate.Num, c.Framerate.Den)
	}
	if c.PixelFormat.FrameSize(1, 1) == 0 {
		return fmt.Errorf("%w: pixel format %v", ErrInvalidCaps, c.PixelFormat)
	}
	return nil
}

// FrameSize returns the byte size of one frame described by the caps.
func (c RawVideo) FrameSize() int {
	return c.PixelFormat.FrameSize(int(c.Width), int(c.Height))
}

// FrameDuration returns the duration of one frame in nanoseconds.
func (c RawVideo) FrameDuration() float64 {
	return float64(c.Framerate.Den) / float64(c.Framerate.Num) * 1_000_000_000.0
}
