package backend

import (
	"errors"
	"image"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("backend: invalid dimensions")

	// ErrSizeMismatch is returned when a pixel buffer does not match the
	// dimensions of the texture or surface it is copied to or from.
	ErrSizeMismatch = errors.New("backend: pixel buffer size mismatch")

	// ErrForeignResource is returned when a texture or pipeline created by
	// one device is passed to another.
	ErrForeignResource = errors.New("backend: resource belongs to another device")

	// ErrReleased is returned when a released resource is used.
	ErrReleased = errors.New("backend: resource released")
)

// Color is a straight-alpha RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// Common colors.
var (
	Black       = Color{0, 0, 0, 1}
	Transparent = Color{0, 0, 0, 0}
)

// RGBA8 returns the color as 8-bit components.
func (c Color) RGBA8() (r, g, b, a uint8) {
	return unit8(c.R), unit8(c.G), unit8(c.B), unit8(c.A)
}

func unit8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}

// Device is a rendering device able to run per-stream effects and to
// composite textured quads into an output surface.
//
// Devices must be registered via Register() and are selected via
// Get() or Default().
type Device interface {
	// Name returns the device identifier (e.g., "software", "native").
	Name() string

	// Init prepares the device to produce width×height output surfaces.
	Init(width, height int) error

	// Close releases all device resources.
	// The device should not be used after Close is called.
	Close()

	// NewTexture allocates an RGBA texture.
	NewTexture(width, height int) (Texture, error)

	// NewEffectPipeline builds the pipeline of a per-stream effect.
	NewEffectPipeline(desc EffectDescriptor) (EffectPipeline, error)

	// BeginPass starts a composite pass over the output surface cleared
	// to clear.
	BeginPass(clear Color) (RenderPass, error)
}

// Texture is an RGBA image owned by a device.
type Texture interface {
	Width() int
	Height() int

	// Upload replaces the texture contents with packed straight-alpha
	// RGBA pixels. len(rgba) must be Width()*Height()*4.
	Upload(rgba []byte) error

	// Release frees the texture. Release is idempotent.
	Release()
}

// EffectKernel is the CPU form of an effect: it renders src into dst
// using the effect's parameter blob.
type EffectKernel func(dst, src *image.NRGBA, params []byte)

// EffectDescriptor describes an effect pipeline. Devices use the form they
// can execute: GPU devices the WGSL shader, the software device the kernel.
//
// The shader must declare a full-screen vertex stage "vs_main" and a
// fragment stage "fs_main" reading the source texture at group 0 binding 0,
// its sampler at binding 1 and a 16-byte uniform block of parameters at
// binding 2.
type EffectDescriptor struct {
	Label  string
	Shader string
	Kernel EffectKernel
}

// EffectPipeline renders one texture into another.
type EffectPipeline interface {
	// Apply renders src into dst. params is the effect's parameter blob.
	Apply(dst, src Texture, params []byte) error
	Release()
}

// Quad is one textured rectangle of a composite pass, in output pixels.
type Quad struct {
	X, Y          int
	Width, Height int

	// Z is the depth of the quad. Devices clamp it to [0, 1] and keep a
	// fragment when its depth is less than or equal to the stored one.
	Z float32

	Texture Texture
}

// RenderPass is a composite pass over a device's output surface.
type RenderPass interface {
	// Draw adds a quad to the pass. Quads are composited in call order
	// with straight-alpha "over" blending.
	Draw(q Quad) error

	// Finish completes the pass and reads the surface back into dst as
	// packed RGBA. len(dst) must be at least width*height*4.
	Finish(dst []byte) error

	// Discard abandons the pass without touching the surface.
	Discard()
}
