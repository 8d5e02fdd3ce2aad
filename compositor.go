package vcomp

import (
	"fmt"
	"math"
	"slices"

	"cogentcore.org/core/base/keylist"

	"github.com/gogpu/vcomp/backend"
	"github.com/gogpu/vcomp/internal/convert"
)

// Compositor composites timestamped frames of several streams into one
// output stream at a fixed frame rate.
//
// A Compositor is not safe for concurrent use.
type Compositor struct {
	caps          RawVideo
	opts          options
	frameDuration float64

	device     backend.Device
	ownsDevice bool
	registry   *registry

	// streams is ordered by registration, which breaks z ties.
	streams *keylist.List[int, *inputStream]

	lastPTS uint64
	started bool

	surface []byte
}

// New creates a compositor producing frames described by caps.
//
// Without WithDevice, New initializes the named device (WithDeviceName) or
// the best available one.
func New(caps RawVideo, opts ...Option) (*Compositor, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.inputFormat.FrameSize(1, 1) == 0 {
		return nil, fmt.Errorf("%w: input pixel format %v", ErrInvalidCaps, o.inputFormat)
	}

	w, h := int(caps.Width), int(caps.Height)
	dev, owns, err := openDevice(o, w, h)
	if err != nil {
		return nil, err
	}
	propagateLogger(dev, Logger())

	reg, err := newRegistry(dev, transformationKinds)
	if err != nil {
		if owns {
			dev.Close()
		}
		return nil, err
	}

	c := &Compositor{
		caps:          caps,
		opts:          o,
		frameDuration: caps.FrameDuration(),
		device:        dev,
		ownsDevice:    owns,
		registry:      reg,
		streams:       keylist.New[int, *inputStream](),
		surface:       make([]byte, w*h*4),
	}
	Logger().Info("compositor created",
		"device", dev.Name(),
		"width", caps.Width,
		"height", caps.Height,
		"format", caps.PixelFormat,
		"framerate", fmt.Sprintf("%d/%d", caps.Framerate.Num, caps.Framerate.Den))
	return c, nil
}

func openDevice(o options, w, h int) (backend.Device, bool, error) {
	switch {
	case o.device != nil:
		if err := o.device.Init(w, h); err != nil {
			return nil, false, err
		}
		return o.device, false, nil
	case o.deviceName != "":
		dev := backend.Get(o.deviceName)
		if dev == nil {
			return nil, false, fmt.Errorf("%w: %q", backend.ErrBackendNotAvailable, o.deviceName)
		}
		if err := dev.Init(w, h); err != nil {
			dev.Close()
			return nil, false, err
		}
		return dev, true, nil
	default:
		dev, err := backend.InitDefault(w, h)
		if err != nil {
			return nil, false, err
		}
		return dev, true, nil
	}
}

// Close releases the textures and pipelines of the compositor and closes
// a device the compositor opened itself.
func (c *Compositor) Close() {
	for _, s := range c.streams.Values {
		s.release()
	}
	c.streams.Reset()
	if c.registry != nil {
		c.registry.release()
		c.registry = nil
	}
	if c.ownsDevice && c.device != nil {
		c.device.Close()
	}
	c.device = nil
}

// Caps returns the output caps.
func (c *Compositor) Caps() RawVideo {
	return c.caps
}

// FrameDuration returns the duration of one output frame in nanoseconds.
func (c *Compositor) FrameDuration() float64 {
	return c.frameDuration
}

// FrameInterval returns the window the next output frame represents. It
// reports false before the first frame was produced, when any queued frame
// is eligible. End is rounded up to a whole millisecond.
func (c *Compositor) FrameInterval() (Interval, bool) {
	if !c.started {
		return Interval{}, false
	}
	start := c.lastPTS
	end := uint64(math.Ceil((float64(start)+c.frameDuration)/1_000_000) * 1_000_000)
	return Interval{Start: start, End: end}, true
}

// AllFramesReady reports whether every stream has a queued frame or has
// ended, so DrawInto can run without missing a frame still on its way.
func (c *Compositor) AllFramesReady() bool {
	for _, s := range c.streams.Values {
		if !s.isReady() {
			return false
		}
	}
	return true
}

// UploadTexture queues a copy of a frame of stream id. data must hold one
// frame of the stream's current resolution in the input pixel format.
func (c *Compositor) UploadTexture(id int, data []byte, timestamp uint64) error {
	s, ok := c.streams.AtTry(id)
	if !ok {
		return streamError("upload", id, ErrUnknownStream)
	}
	res := s.base.Resolution
	if res.X == 0 || res.Y == 0 {
		return streamError("upload", id, fmt.Errorf("%w: stream resolution %dx%d", ErrFrameSize, res.X, res.Y))
	}
	if want := c.opts.inputFormat.FrameSize(int(res.X), int(res.Y)); len(data) != want {
		return streamError("upload", id, fmt.Errorf("%w: %v %dx%d needs %d bytes, got %d",
			ErrFrameSize, c.opts.inputFormat, res.X, res.Y, want, len(data)))
	}
	s.push(Frame{Timestamp: timestamp, Data: slices.Clone(data), Resolution: res})
	return nil
}

// AddVideo registers stream id with its base properties and transformation
// chain.
func (c *Compositor) AddVideo(id int, base VideoProperties, chain []Transformation) error {
	if _, ok := c.streams.AtTry(id); ok {
		return streamError("add", id, ErrDuplicateStream)
	}
	if err := validateChain(chain); err != nil {
		return streamError("add", id, err)
	}
	s := newInputStream(id, base, slices.Clone(chain))
	if err := c.streams.Add(id, s); err != nil {
		return streamError("add", id, err)
	}
	Logger().Info("stream added", "id", id, "properties", s.transformed.String())
	return nil
}

// UpdateProperties changes the resolution, the placement or the chain of
// stream id. Nil arguments keep the current value. Queued frames keep the
// resolution they were uploaded with.
func (c *Compositor) UpdateProperties(id int, resolution *Vec2[uint32], placement *Placement, chain []Transformation) error {
	s, ok := c.streams.AtTry(id)
	if !ok {
		return streamError("update", id, ErrUnknownStream)
	}
	if resolution == nil && placement == nil && chain == nil {
		return nil
	}
	if chain != nil {
		if err := validateChain(chain); err != nil {
			return streamError("update", id, err)
		}
		chain = slices.Clone(chain)
	} else {
		chain = s.chain
	}
	base := s.base
	if resolution != nil {
		base.Resolution = *resolution
	}
	if placement != nil {
		base.Placement = *placement
	}
	s.setProperties(base, chain)
	Logger().Debug("stream updated", "id", id, "properties", s.transformed.String())
	return nil
}

// RemoveVideo unregisters stream id immediately, discarding its queued
// frames.
func (c *Compositor) RemoveVideo(id int) error {
	s, ok := c.streams.AtTry(id)
	if !ok {
		return streamError("remove", id, ErrUnknownStream)
	}
	s.release()
	c.streams.DeleteByKey(id)
	Logger().Info("stream removed", "id", id)
	return nil
}

// SendEndOfStream marks stream id as ended. Queued frames are still drawn;
// the stream is removed on the first tick after its queue drained.
func (c *Compositor) SendEndOfStream(id int) error {
	s, ok := c.streams.AtTry(id)
	if !ok {
		return streamError("end of stream", id, ErrUnknownStream)
	}
	s.markEndOfStream()
	return nil
}

// Properties returns the base properties of stream id, as last set by the
// caller, and the properties after its transformation chain.
func (c *Compositor) Properties(id int) (base, transformed VideoProperties, err error) {
	s, ok := c.streams.AtTry(id)
	if !ok {
		return VideoProperties{}, VideoProperties{}, streamError("properties", id, ErrUnknownStream)
	}
	return s.base, s.transformed, nil
}

// StreamIDs returns the registered stream ids in registration order.
func (c *Compositor) StreamIDs() []int {
	return slices.Clone(c.streams.Keys)
}

// drawOrder returns the streams by descending z. Streams with equal z keep
// registration order.
func (c *Compositor) drawOrder() []*inputStream {
	order := slices.Clone(c.streams.Values)
	slices.SortStableFunc(order, func(a, b *inputStream) int {
		za, zb := a.transformed.Placement.Z, b.transformed.Placement.Z
		switch {
		case za > zb:
			return -1
		case za < zb:
			return 1
		default:
			return 0
		}
	})
	return order
}

// DrawInto composes one output frame into out and returns its timestamp:
// the newest timestamp among the drawn frames, or 0 if none was drawn.
//
// Each stream first drops frames superseded within the current interval,
// then draws its oldest frame unless that frame belongs to a later
// interval. Drawn frames are dequeued and drained ended streams removed
// once the device pass succeeded. On error nothing changes.
func (c *Compositor) DrawInto(out []byte) (uint64, error) {
	if want := c.caps.FrameSize(); len(out) < want {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, want, len(out))
	}
	interval, ok := c.FrameInterval()
	for _, s := range c.streams.Values {
		s.removeStaleFrames(interval, ok)
	}

	pass, err := c.device.BeginPass(c.opts.background)
	if err != nil {
		return 0, err
	}

	var (
		drawn []*inputStream
		ended []int
		pts   uint64
	)
	for _, s := range c.drawOrder() {
		outcome, ts := s.selectFrame(interval, ok)
		Logger().Debug("frame selection", "id", s.id, "outcome", outcome, "pts", ts)
		switch outcome {
		case rendered:
			if err := c.drawStream(pass, s); err != nil {
				pass.Discard()
				return 0, err
			}
			drawn = append(drawn, s)
			pts = max(pts, ts)
		case endOfStream:
			ended = append(ended, s.id)
		}
	}

	if err := pass.Finish(c.surface); err != nil {
		return 0, err
	}
	if err := c.writeOutput(out); err != nil {
		return 0, err
	}

	for _, s := range drawn {
		s.popFrame()
	}
	for _, id := range ended {
		if s, ok := c.streams.AtTry(id); ok {
			s.release()
			c.streams.DeleteByKey(id)
			Logger().Info("stream drained", "id", id)
		}
	}
	c.lastPTS = pts
	c.started = true
	return pts, nil
}

func (c *Compositor) drawStream(pass backend.RenderPass, s *inputStream) error {
	tex, err := s.render(c.device, c.registry, c.opts.inputFormat)
	if err != nil {
		return err
	}
	p := s.transformed.Placement
	return pass.Draw(backend.Quad{
		X:       int(p.Position.X),
		Y:       int(p.Position.Y),
		Width:   int(p.Size.X),
		Height:  int(p.Size.Y),
		Z:       p.Z,
		Texture: tex,
	})
}

// writeOutput converts the composed RGBA surface into out.
func (c *Compositor) writeOutput(out []byte) error {
	w, h := int(c.caps.Width), int(c.caps.Height)
	switch c.caps.PixelFormat {
	case PixelFormatRGBA:
		copy(out, c.surface)
		return nil
	default:
		return convert.RGBAToI420(out, c.surface, w, h)
	}
}

// QueueState returns a snapshot of every stream in registration order.
func (c *Compositor) QueueState() []StreamState {
	states := make([]StreamState, 0, c.streams.Len())
	for _, s := range c.streams.Values {
		st := StreamState{
			ID:          s.id,
			Queued:      len(s.frames),
			Ended:       s.ended,
			Ready:       s.isReady(),
			Transformed: s.transformed,
		}
		if len(s.frames) > 0 {
			st.Front = s.frames[0].Timestamp
		}
		states = append(states, st)
	}
	return states
}

// DumpQueueState logs the interval and the queue of every stream at debug
// level.
func (c *Compositor) DumpQueueState() {
	l := Logger()
	interval, ok := c.FrameInterval()
	l.Debug("queue state",
		"interval_defined", ok,
		"start", interval.Start,
		"end", interval.End,
		"frame_duration", c.frameDuration)
	for _, st := range c.QueueState() {
		l.Debug("stream queue",
			"id", st.ID,
			"queued", st.Queued,
			"front", st.Front,
			"ended", st.Ended,
			"ready", st.Ready)
	}
}
