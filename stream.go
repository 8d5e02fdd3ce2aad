package vcomp

import (
	"fmt"

	"github.com/gogpu/vcomp/backend"
	"github.com/gogpu/vcomp/internal/convert"
)

// Frame is one raw video frame queued on a stream.
type Frame struct {
	// Timestamp is the presentation time in nanoseconds.
	Timestamp uint64
	Data      []byte
	// Resolution is the stream resolution when the frame was uploaded.
	Resolution Vec2[uint32]
}

// Interval is the half-open window [Start, End) of an output frame, in
// nanoseconds.
type Interval struct {
	Start, End uint64
}

// drawOutcome is the decision taken for a stream in one tick.
type drawOutcome uint8

const (
	notRendered drawOutcome = iota
	rendered
	endOfStream
)

func (o drawOutcome) String() string {
	switch o {
	case rendered:
		return "rendered"
	case endOfStream:
		return "end-of-stream"
	default:
		return "not-rendered"
	}
}

// inputStream is the state of one registered stream: its frame queue, its
// properties and the device textures it owns.
type inputStream struct {
	id     int
	frames []Frame
	ended  bool

	base        VideoProperties
	transformed VideoProperties
	chain       []Transformation
	stages      []stage

	source        backend.Texture
	stageTextures []backend.Texture
	rgba          []byte
}

func newInputStream(id int, base VideoProperties, chain []Transformation) *inputStream {
	s := &inputStream{id: id}
	s.setProperties(base, chain)
	return s
}

// setProperties replaces the base properties and the chain and recomputes
// the transformed properties.
func (s *inputStream) setProperties(base VideoProperties, chain []Transformation) {
	s.base = base
	s.chain = chain
	s.transformed, s.stages = resolveChain(base, chain)
}

func (s *inputStream) push(f Frame) {
	s.frames = append(s.frames, f)
}

// isReady reports whether the stream has a frame or has ended. A stream
// with neither may still receive a frame the current tick needs.
func (s *inputStream) isReady() bool {
	return len(s.frames) > 0 || s.ended
}

func (s *inputStream) markEndOfStream() {
	s.ended = true
}

// removeStaleFrames drops frames superseded by a newer frame that is not
// newer than the interval. Nothing is dropped before the first output frame.
func (s *inputStream) removeStaleFrames(interval Interval, ok bool) {
	if !ok {
		return
	}
	n := 0
	for len(s.frames)-n >= 2 && s.frames[n+1].Timestamp < interval.End {
		n++
	}
	if n > 0 {
		s.dropFront(n)
	}
}

// selectFrame decides what the stream contributes to the tick. A rendered
// frame stays queued until popFrame.
func (s *inputStream) selectFrame(interval Interval, ok bool) (drawOutcome, uint64) {
	if len(s.frames) == 0 {
		if s.ended {
			return endOfStream, 0
		}
		return notRendered, 0
	}
	front := s.frames[0].Timestamp
	if ok && front >= interval.End {
		return notRendered, 0
	}
	return rendered, front
}

func (s *inputStream) popFrame() {
	if len(s.frames) > 0 {
		s.dropFront(1)
	}
}

func (s *inputStream) dropFront(n int) {
	clear(s.frames[:n])
	s.frames = s.frames[n:]
}

// render uploads the front frame and runs the chain. It returns the
// texture to draw.
func (s *inputStream) render(dev backend.Device, reg *registry, format PixelFormat) (backend.Texture, error) {
	f := s.frames[0]
	w, h := int(f.Resolution.X), int(f.Resolution.Y)

	src, err := ensureTexture(dev, &s.source, w, h)
	if err != nil {
		return nil, err
	}
	var rgba []byte
	switch format {
	case PixelFormatRGBA:
		rgba = f.Data
	default:
		if cap(s.rgba) < w*h*4 {
			s.rgba = make([]byte, w*h*4)
		}
		rgba = s.rgba[:w*h*4]
		if err := convert.I420ToRGBA(rgba, f.Data, w, h); err != nil {
			return nil, err
		}
	}
	if err := src.Upload(rgba); err != nil {
		return nil, err
	}

	s.trimStageTextures()
	out := src
	for i, st := range s.stages {
		dst, err := ensureTexture(dev, &s.stageTextures[i],
			max(int(st.out.Resolution.X), 1), max(int(st.out.Resolution.Y), 1))
		if err != nil {
			return nil, err
		}
		if err := reg.pipeline(st.kind).Apply(dst, out, st.params); err != nil {
			return nil, fmt.Errorf("apply %v: %w", st.kind, err)
		}
		out = dst
	}
	return out, nil
}

// trimStageTextures sizes stageTextures to the chain, releasing extras.
func (s *inputStream) trimStageTextures() {
	for i := len(s.stages); i < len(s.stageTextures); i++ {
		if s.stageTextures[i] != nil {
			s.stageTextures[i].Release()
		}
	}
	if len(s.stageTextures) > len(s.stages) {
		s.stageTextures = s.stageTextures[:len(s.stages)]
	}
	for len(s.stageTextures) < len(s.stages) {
		s.stageTextures = append(s.stageTextures, nil)
	}
}

// ensureTexture returns *slot, reallocating it when its size differs.
func ensureTexture(dev backend.Device, slot *backend.Texture, w, h int) (backend.Texture, error) {
	if t := *slot; t != nil {
		if t.Width() == w && t.Height() == h {
			return t, nil
		}
		t.Release()
		*slot = nil
	}
	t, err := dev.NewTexture(w, h)
	if err != nil {
		return nil, err
	}
	*slot = t
	return t, nil
}

// release frees the stream's textures and discards queued frames.
func (s *inputStream) release() {
	if s.source != nil {
		s.source.Release()
		s.source = nil
	}
	for _, t := range s.stageTextures {
		if t != nil {
			t.Release()
		}
	}
	s.stageTextures = nil
	s.frames = nil
}

// StreamState is a snapshot of a stream's queue.
type StreamState struct {
	ID          int
	Queued      int
	Front       uint64 // timestamp of the oldest queued frame, valid if Queued > 0
	Ended       bool
	Ready       bool
	Transformed VideoProperties
}
