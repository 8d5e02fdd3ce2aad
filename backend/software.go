package backend

import (
	"fmt"
	"image"
	"log/slog"

	xdraw "golang.org/x/image/draw"
)

// SoftwareDevice is a CPU rendering device.
// Textures are image.NRGBA, effects run their Go kernel and quads are
// scaled with nearest-neighbour sampling, depth-tested and blended in
// straight alpha.
type SoftwareDevice struct {
	initialized bool
	width       int
	height      int
	target      *image.NRGBA
	depth       []float32
	log         *slog.Logger
}

// init registers the software device on package import.
func init() {
	Register(BackendSoftware, func() Device {
		return NewSoftwareDevice()
	})
}

// NewSoftwareDevice creates a new software rendering device.
func NewSoftwareDevice() *SoftwareDevice {
	return &SoftwareDevice{log: slog.New(slog.DiscardHandler)}
}

// SetLogger sets the logger used by the device.
func (d *SoftwareDevice) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.log = l
}

// Name returns the device identifier.
func (d *SoftwareDevice) Name() string {
	return BackendSoftware
}

// Init allocates the width×height output surface.
func (d *SoftwareDevice) Init(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	d.width, d.height = width, height
	d.target = image.NewNRGBA(image.Rect(0, 0, width, height))
	d.depth = make([]float32, width*height)
	d.initialized = true
	d.log.Debug("software device initialized", "width", width, "height", height)
	return nil
}

// Close releases the output surface.
func (d *SoftwareDevice) Close() {
	d.target = nil
	d.depth = nil
	d.initialized = false
}

// NewTexture allocates a width×height texture.
func (d *SoftwareDevice) NewTexture(width, height int) (Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return &softwareTexture{
		dev: d,
		img: image.NewNRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// NewEffectPipeline wraps the descriptor's kernel.
func (d *SoftwareDevice) NewEffectPipeline(desc EffectDescriptor) (EffectPipeline, error) {
	if desc.Kernel == nil {
		return nil, fmt.Errorf("backend: effect %q has no CPU kernel", desc.Label)
	}
	return &softwareEffect{dev: d, kernel: desc.Kernel}, nil
}

// BeginPass clears the output surface and the depth buffer.
func (d *SoftwareDevice) BeginPass(clear Color) (RenderPass, error) {
	if !d.initialized {
		return nil, ErrNotInitialized
	}
	r, g, b, a := clear.RGBA8()
	pix := d.target.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	for i := range d.depth {
		d.depth[i] = 1
	}
	return &softwarePass{dev: d}, nil
}

type softwareTexture struct {
	dev      *SoftwareDevice
	img      *image.NRGBA
	released bool
}

func (t *softwareTexture) Width() int  { return t.img.Rect.Dx() }
func (t *softwareTexture) Height() int { return t.img.Rect.Dy() }

func (t *softwareTexture) Upload(rgba []byte) error {
	if t.released {
		return ErrReleased
	}
	if len(rgba) != len(t.img.Pix) {
		return fmt.Errorf("%w: texture %dx%d needs %d bytes, got %d",
			ErrSizeMismatch, t.Width(), t.Height(), len(t.img.Pix), len(rgba))
	}
	copy(t.img.Pix, rgba)
	return nil
}

func (t *softwareTexture) Release() {
	t.released = true
}

// softwareTextureOf unwraps a texture created by d.
func (d *SoftwareDevice) softwareTextureOf(t Texture) (*softwareTexture, error) {
	st, ok := t.(*softwareTexture)
	if !ok || st.dev != d {
		return nil, ErrForeignResource
	}
	if st.released {
		return nil, ErrReleased
	}
	return st, nil
}

type softwareEffect struct {
	dev    *SoftwareDevice
	kernel EffectKernel
}

func (e *softwareEffect) Apply(dst, src Texture, params []byte) error {
	d, err := e.dev.softwareTextureOf(dst)
	if err != nil {
		return err
	}
	s, err := e.dev.softwareTextureOf(src)
	if err != nil {
		return err
	}
	e.kernel(d.img, s.img, params)
	return nil
}

func (e *softwareEffect) Release() {}

type softwarePass struct {
	dev     *SoftwareDevice
	scratch *image.NRGBA
	done    bool
}

func (p *softwarePass) Draw(q Quad) error {
	if p.done {
		return ErrReleased
	}
	tex, err := p.dev.softwareTextureOf(q.Texture)
	if err != nil {
		return err
	}
	if q.Width <= 0 || q.Height <= 0 {
		return nil
	}

	quadRect := image.Rect(q.X, q.Y, q.X+q.Width, q.Y+q.Height)
	visible := quadRect.Intersect(p.dev.target.Rect)
	if visible.Empty() {
		return nil
	}

	// Scale the whole quad so sampling does not depend on clipping.
	scaled := p.scaledBuffer(q.Width, q.Height)
	xdraw.NearestNeighbor.Scale(scaled, scaled.Rect, tex.img, tex.img.Rect, xdraw.Src, nil)

	z := clampDepth(q.Z)
	dst := p.dev.target
	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		for x := visible.Min.X; x < visible.Max.X; x++ {
			di := y*p.dev.width + x
			if z > p.dev.depth[di] {
				continue
			}
			p.dev.depth[di] = z
			si := scaled.PixOffset(x-q.X, y-q.Y)
			blendOver(dst.Pix[di*4:di*4+4], scaled.Pix[si:si+4])
		}
	}
	return nil
}

func (p *softwarePass) scaledBuffer(w, h int) *image.NRGBA {
	if p.scratch == nil || cap(p.scratch.Pix) < w*h*4 {
		p.scratch = image.NewNRGBA(image.Rect(0, 0, w, h))
		return p.scratch
	}
	p.scratch.Pix = p.scratch.Pix[:w*h*4]
	p.scratch.Stride = w * 4
	p.scratch.Rect = image.Rect(0, 0, w, h)
	return p.scratch
}

func (p *softwarePass) Finish(dst []byte) error {
	if p.done {
		return ErrReleased
	}
	if len(dst) < len(p.dev.target.Pix) {
		return fmt.Errorf("%w: surface needs %d bytes, got %d", ErrSizeMismatch, len(p.dev.target.Pix), len(dst))
	}
	copy(dst, p.dev.target.Pix)
	p.done = true
	return nil
}

func (p *softwarePass) Discard() {
	p.done = true
}

func clampDepth(z float32) float32 {
	switch {
	case z < 0:
		return 0
	case z > 1:
		return 1
	default:
		return z
	}
}

// blendOver composites the straight-alpha pixel src over dst in place.
func blendOver(dst, src []byte) {
	sa := uint32(src[3])
	switch sa {
	case 0:
		return
	case 255:
		copy(dst, src[:4])
		return
	}
	da := uint32(dst[3])
	// Alpha terms scaled by 255*255.
	srcW := sa * 255
	dstW := da * (255 - sa)
	outA := srcW + dstW
	for i := 0; i < 3; i++ {
		dst[i] = uint8((uint32(src[i])*srcW + uint32(dst[i])*dstW + outA/2) / outA)
	}
	dst[3] = uint8((outA + 127) / 255)
}
