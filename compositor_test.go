package vcomp

import (
	"errors"
	"testing"

	"github.com/gogpu/vcomp/backend"
)

var testFrame = []byte{0x30, 0x40, 0x30, 0x40, 0x80, 0xb0}

// tracingDevice is a software device recording the quads of every pass.
type tracingDevice struct {
	*backend.SoftwareDevice
	draws      []backend.Quad
	failFinish error
}

func newTracingDevice() *tracingDevice {
	return &tracingDevice{SoftwareDevice: backend.NewSoftwareDevice()}
}

func (d *tracingDevice) BeginPass(clear backend.Color) (backend.RenderPass, error) {
	d.draws = d.draws[:0]
	p, err := d.SoftwareDevice.BeginPass(clear)
	if err != nil {
		return nil, err
	}
	return &tracingPass{RenderPass: p, dev: d}, nil
}

type tracingPass struct {
	backend.RenderPass
	dev *tracingDevice
}

func (p *tracingPass) Draw(q backend.Quad) error {
	p.dev.draws = append(p.dev.draws, q)
	return p.RenderPass.Draw(q)
}

func (p *tracingPass) Finish(dst []byte) error {
	if p.dev.failFinish != nil {
		p.RenderPass.Discard()
		return p.dev.failFinish
	}
	return p.RenderPass.Finish(dst)
}

func newTestCompositor(t *testing.T, caps RawVideo, opts ...Option) *Compositor {
	t.Helper()
	opts = append([]Option{WithDeviceName(backend.BackendSoftware)}, opts...)
	c, err := New(caps, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// setupVideos creates a 2n×2 I420 compositor at 1 fps with n 2×2 streams
// side by side.
func setupVideos(t *testing.T, n int, opts ...Option) *Compositor {
	t.Helper()
	c := newTestCompositor(t, RawVideo{
		Width:       uint32(2 * n),
		Height:      2,
		PixelFormat: PixelFormatI420,
		Framerate:   Rational{Num: 1, Den: 1},
	}, opts...)
	for i := 0; i < n; i++ {
		err := c.AddVideo(i, VideoProperties{
			Resolution: V2[uint32](2, 2),
			Placement: Placement{
				Position: V2(int32(2*i), 0),
				Size:     V2[uint32](2, 2),
				Z:        0.5,
			},
		}, nil)
		if err != nil {
			t.Fatalf("AddVideo(%d) error = %v", i, err)
		}
	}
	return c
}

func mustUpload(t *testing.T, c *Compositor, id int, ts uint64) {
	t.Helper()
	if err := c.UploadTexture(id, testFrame, ts); err != nil {
		t.Fatalf("UploadTexture(%d, %d) error = %v", id, ts, err)
	}
}

func mustDraw(t *testing.T, c *Compositor) uint64 {
	t.Helper()
	out := make([]byte, c.Caps().FrameSize())
	pts, err := c.DrawInto(out)
	if err != nil {
		t.Fatalf("DrawInto() error = %v", err)
	}
	return pts
}

func TestEndsStreamsOnEOS(t *testing.T) {
	c := setupVideos(t, 2)

	mustUpload(t, c, 0, 0)
	mustUpload(t, c, 1, 0)
	if !c.AllFramesReady() {
		t.Fatal("AllFramesReady() = false after both streams got a frame")
	}
	mustDraw(t, c)

	if err := c.SendEndOfStream(1); err != nil {
		t.Fatalf("SendEndOfStream() error = %v", err)
	}
	mustUpload(t, c, 0, 500_000_000)
	if !c.AllFramesReady() {
		t.Error("AllFramesReady() = false, an ended stream must not block")
	}
}

func TestReadyAfterReceivingAllFrames(t *testing.T) {
	c := setupVideos(t, 3)

	mustUpload(t, c, 0, 0)
	if c.AllFramesReady() {
		t.Fatal("ready with one of three frames")
	}
	mustUpload(t, c, 1, 0)
	if c.AllFramesReady() {
		t.Fatal("ready with two of three frames")
	}
	mustUpload(t, c, 2, 0)
	if !c.AllFramesReady() {
		t.Fatal("not ready with all frames")
	}

	mustDraw(t, c)
	if c.AllFramesReady() {
		t.Fatal("ready after the tick consumed every frame")
	}

	mustUpload(t, c, 0, 500_000_000)
	if c.AllFramesReady() {
		t.Error("ready with one stream fed")
	}
	mustUpload(t, c, 0, 1_500_000_000)
	if c.AllFramesReady() {
		t.Error("ready with one stream fed twice")
	}
	mustUpload(t, c, 1, 500_000_000)
	if c.AllFramesReady() {
		t.Error("ready with two streams fed")
	}
	mustUpload(t, c, 2, 500_000_000)
	if !c.AllFramesReady() {
		t.Error("not ready with all streams fed")
	}
}

func TestJustAddedVideoWithTooNewFrames(t *testing.T) {
	c := setupVideos(t, 2)

	if err := c.RemoveVideo(1); err != nil {
		t.Fatalf("RemoveVideo() error = %v", err)
	}
	mustUpload(t, c, 0, 0)
	if !c.AllFramesReady() {
		t.Fatal("not ready with the only stream fed")
	}
	mustDraw(t, c)

	err := c.AddVideo(1, VideoProperties{
		Resolution: V2[uint32](2, 2),
		Placement:  Placement{Position: V2[int32](2, 0), Size: V2[uint32](2, 2)},
	}, nil)
	if err != nil {
		t.Fatalf("AddVideo() error = %v", err)
	}

	mustUpload(t, c, 0, 500_000_000)
	if c.AllFramesReady() {
		t.Fatal("a stream without frames must block readiness")
	}

	mustUpload(t, c, 1, 1_250_000_000)
	if !c.AllFramesReady() {
		t.Fatal("a too-new frame still makes the stream ready")
	}

	if pts := mustDraw(t, c); pts != 500_000_000 {
		t.Errorf("pts = %d, want 500000000", pts)
	}
	if c.AllFramesReady() {
		t.Fatal("stream 0 was drained and must block")
	}

	mustUpload(t, c, 0, 1_250_000_000)
	if !c.AllFramesReady() {
		t.Fatal("not ready with both streams at 1.25s")
	}

	if pts := mustDraw(t, c); pts != 1_250_000_000 {
		t.Errorf("pts = %d, want 1250000000", pts)
	}
	if c.AllFramesReady() {
		t.Fatal("ready with no frames left")
	}

	mustUpload(t, c, 0, 2_000_000_000)
	if c.AllFramesReady() {
		t.Error("stream 1 has no frames and must block")
	}
}

func TestUpdatePropertiesCroppingAndRounding(t *testing.T) {
	c := setupVideos(t, 4)

	chain := []Transformation{
		Cropping{TopLeft: V2[float32](0.1, 0.1), Size: V2[float32](0.5, 0.25), TransformPosition: true},
		CornersRounding{Radius: 100},
	}
	res := V2[uint32](640, 360)
	placement := Placement{Size: V2[uint32](1280, 720)}
	if err := c.UpdateProperties(0, &res, &placement, chain); err != nil {
		t.Fatalf("UpdateProperties() error = %v", err)
	}

	base, transformed, err := c.Properties(0)
	if err != nil {
		t.Fatalf("Properties() error = %v", err)
	}
	wantBase := VideoProperties{Resolution: res, Placement: placement}
	if base != wantBase {
		t.Errorf("base = %v, want %v", base, wantBase)
	}
	wantTransformed := VideoProperties{
		Resolution: V2[uint32](320, 90),
		Placement: Placement{
			Position: V2[int32](128, 72),
			Size:     V2[uint32](640, 180),
		},
	}
	if transformed != wantTransformed {
		t.Errorf("transformed = %v, want %v", transformed, wantTransformed)
	}

	s, _ := c.streams.AtTry(0)
	if len(s.stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(s.stages))
	}
	if got := decodeParams(s.stages[1].params); got != [4]float32{100, 640, 180, 0} {
		t.Errorf("corner rounding params = %v, want [100 640 180 0]", got)
	}
	if got := decodeParams(s.stages[0].params); got != [4]float32{0.1, 0.1, 0.5, 0.25} {
		t.Errorf("cropping params = %v", got)
	}
}

func TestUpdatePropertiesOmittedIsNoop(t *testing.T) {
	c := setupVideos(t, 1)
	chain := []Transformation{Cropping{TopLeft: V2[float32](0, 0), Size: V2[float32](0.5, 0.5)}}
	if err := c.UpdateProperties(0, nil, nil, chain); err != nil {
		t.Fatalf("UpdateProperties() error = %v", err)
	}
	mustUpload(t, c, 0, 0)
	mustUpload(t, c, 0, 40)

	_, before, _ := c.Properties(0)
	queued := c.QueueState()[0].Queued
	if err := c.UpdateProperties(0, nil, nil, nil); err != nil {
		t.Fatalf("UpdateProperties() error = %v", err)
	}
	_, after, _ := c.Properties(0)
	if before != after {
		t.Errorf("transformed changed: %v -> %v", before, after)
	}
	if got := c.QueueState()[0].Queued; got != queued {
		t.Errorf("queued = %d, want %d", got, queued)
	}
}

func TestUpdatePropertiesMergesFields(t *testing.T) {
	c := setupVideos(t, 1)
	chain := []Transformation{CornersRounding{Radius: 1}}
	if err := c.UpdateProperties(0, nil, nil, chain); err != nil {
		t.Fatal(err)
	}
	res := V2[uint32](4, 4)
	if err := c.UpdateProperties(0, &res, nil, nil); err != nil {
		t.Fatal(err)
	}
	base, _, _ := c.Properties(0)
	if base.Resolution != res {
		t.Errorf("resolution = %v, want %v", base.Resolution, res)
	}
	if base.Placement.Size != V2[uint32](2, 2) {
		t.Errorf("placement changed: %v", base.Placement)
	}
	s, _ := c.streams.AtTry(0)
	if len(s.chain) != 1 {
		t.Errorf("chain dropped by an update without chain")
	}

	// An empty non-nil chain clears it.
	if err := c.UpdateProperties(0, nil, nil, []Transformation{}); err != nil {
		t.Fatal(err)
	}
	if len(s.chain) != 0 || len(s.stages) != 0 {
		t.Errorf("chain not cleared: %d stages", len(s.stages))
	}
}

func TestDrainingAfterEndOfStream(t *testing.T) {
	c := setupVideos(t, 1)
	mustUpload(t, c, 0, 0)
	mustUpload(t, c, 0, 500_000_000)
	if err := c.SendEndOfStream(0); err != nil {
		t.Fatal(err)
	}
	if err := c.SendEndOfStream(0); err != nil {
		t.Fatalf("SendEndOfStream() is not idempotent: %v", err)
	}

	if pts := mustDraw(t, c); pts != 0 {
		t.Errorf("first pts = %d, want 0", pts)
	}
	if pts := mustDraw(t, c); pts != 500_000_000 {
		t.Errorf("second pts = %d, want 500000000", pts)
	}
	if ids := c.StreamIDs(); len(ids) != 1 {
		t.Fatalf("stream removed before its queue was drained: %v", ids)
	}
	if !c.AllFramesReady() {
		t.Error("an ended empty stream is ready")
	}

	if pts := mustDraw(t, c); pts != 0 {
		t.Errorf("pts with nothing drawn = %d, want 0", pts)
	}
	if ids := c.StreamIDs(); len(ids) != 0 {
		t.Errorf("drained stream still registered: %v", ids)
	}
	if err := c.UploadTexture(0, testFrame, 0); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("upload to a drained stream error = %v, want ErrUnknownStream", err)
	}
}

func TestFrameAtIntervalEndIsNotRendered(t *testing.T) {
	c := setupVideos(t, 1)
	mustUpload(t, c, 0, 0)
	mustDraw(t, c)

	interval, ok := c.FrameInterval()
	if !ok || interval != (Interval{Start: 0, End: 1_000_000_000}) {
		t.Fatalf("FrameInterval() = %v, %v", interval, ok)
	}

	mustUpload(t, c, 0, 1_000_000_000)
	if pts := mustDraw(t, c); pts != 0 {
		t.Errorf("pts = %d, a frame at the interval end must wait", pts)
	}
	if st := c.QueueState()[0]; st.Queued != 1 || st.Front != 1_000_000_000 {
		t.Errorf("queue = %+v, want the frame retained", st)
	}
}

func TestFrameAtIntervalEndDoesNotSupersede(t *testing.T) {
	c := setupVideos(t, 1)
	mustUpload(t, c, 0, 0)
	mustDraw(t, c)

	mustUpload(t, c, 0, 400_000_000)
	mustUpload(t, c, 0, 1_000_000_000)
	if pts := mustDraw(t, c); pts != 400_000_000 {
		t.Errorf("pts = %d, want 400000000", pts)
	}
	if pts := mustDraw(t, c); pts != 1_000_000_000 {
		t.Errorf("pts = %d, want 1000000000", pts)
	}
}

func TestStaleFramesAreDropped(t *testing.T) {
	c := setupVideos(t, 1)
	mustUpload(t, c, 0, 0)
	mustDraw(t, c)

	for _, ts := range []uint64{100_000_000, 300_000_000, 900_000_000, 1_200_000_000} {
		mustUpload(t, c, 0, ts)
	}
	if pts := mustDraw(t, c); pts != 900_000_000 {
		t.Errorf("pts = %d, want the newest frame before the interval end", pts)
	}
	if st := c.QueueState()[0]; st.Queued != 1 || st.Front != 1_200_000_000 {
		t.Errorf("queue = %+v", st)
	}
}

func TestFirstTickTakesOldestFrame(t *testing.T) {
	c := setupVideos(t, 1)
	mustUpload(t, c, 0, 5_000_000_000)
	mustUpload(t, c, 0, 6_000_000_000)
	if pts := mustDraw(t, c); pts != 5_000_000_000 {
		t.Errorf("pts = %d, want 5000000000", pts)
	}
}

func TestOutOfOrderTimestampsDoNotCrash(t *testing.T) {
	c := setupVideos(t, 1)
	for _, ts := range []uint64{900, 100, 500, 0} {
		mustUpload(t, c, 0, ts)
	}
	for i := 0; i < 5; i++ {
		mustDraw(t, c)
	}
}

func TestDrawOrderDescendingZ(t *testing.T) {
	dev := newTracingDevice()
	c := setupVideos(t, 3, WithDevice(dev))
	defer dev.Close()

	zs := []float32{0.2, 0.9, 0.5}
	for id, z := range zs {
		p := Placement{Position: V2(int32(2*id), 0), Size: V2[uint32](2, 2), Z: z}
		if err := c.UpdateProperties(id, nil, &p, nil); err != nil {
			t.Fatal(err)
		}
		mustUpload(t, c, id, 0)
	}
	mustDraw(t, c)

	wantX := []int{2, 4, 0} // z 0.9, 0.5, 0.2
	if len(dev.draws) != len(wantX) {
		t.Fatalf("draws = %d, want %d", len(dev.draws), len(wantX))
	}
	for i, q := range dev.draws {
		if q.X != wantX[i] {
			t.Errorf("draw %d at x=%d (z=%v), want x=%d", i, q.X, q.Z, wantX[i])
		}
	}
}

func TestEqualZKeepsRegistrationOrder(t *testing.T) {
	dev := newTracingDevice()
	c := setupVideos(t, 3, WithDevice(dev))
	defer dev.Close()
	for id := 0; id < 3; id++ {
		mustUpload(t, c, id, 0)
	}
	mustDraw(t, c)
	for i, q := range dev.draws {
		if q.X != 2*i {
			t.Errorf("draw %d at x=%d, want %d", i, q.X, 2*i)
		}
	}
}

func TestDeviceErrorLeavesStateUnchanged(t *testing.T) {
	dev := newTracingDevice()
	c := setupVideos(t, 2, WithDevice(dev))
	defer dev.Close()

	mustUpload(t, c, 0, 0)
	if err := c.SendEndOfStream(1); err != nil {
		t.Fatal(err)
	}

	errGPU := errors.New("device lost")
	dev.failFinish = errGPU
	out := make([]byte, c.Caps().FrameSize())
	if _, err := c.DrawInto(out); !errors.Is(err, errGPU) {
		t.Fatalf("DrawInto() error = %v, want the device error", err)
	}
	if _, ok := c.FrameInterval(); ok {
		t.Error("clock advanced on a failed tick")
	}
	if got := len(c.StreamIDs()); got != 2 {
		t.Errorf("streams = %d, want 2", got)
	}
	if st := c.QueueState()[0]; st.Queued != 1 {
		t.Errorf("frame popped on a failed tick: %+v", st)
	}

	dev.failFinish = nil
	if _, err := c.DrawInto(out); err != nil {
		t.Fatalf("DrawInto() retry error = %v", err)
	}
	if got := c.StreamIDs(); len(got) != 1 || got[0] != 0 {
		t.Errorf("streams = %v, want [0]", got)
	}
}

func TestDrawIntoShortBuffer(t *testing.T) {
	c := setupVideos(t, 1)
	mustUpload(t, c, 0, 0)
	if _, err := c.DrawInto(make([]byte, 3)); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("DrawInto() error = %v, want ErrShortBuffer", err)
	}
	if st := c.QueueState()[0]; st.Queued != 1 {
		t.Errorf("frame consumed by a rejected tick")
	}
}

func TestStreamErrors(t *testing.T) {
	c := setupVideos(t, 1)
	res := V2[uint32](2, 2)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"upload", c.UploadTexture(7, testFrame, 0), ErrUnknownStream},
		{"update", c.UpdateProperties(7, &res, nil, nil), ErrUnknownStream},
		{"remove", c.RemoveVideo(7), ErrUnknownStream},
		{"end of stream", c.SendEndOfStream(7), ErrUnknownStream},
		{"add duplicate", c.AddVideo(0, VideoProperties{}, nil), ErrDuplicateStream},
		{"frame size", c.UploadTexture(0, testFrame[:5], 0), ErrFrameSize},
		{"invalid chain", c.AddVideo(3, VideoProperties{}, []Transformation{CornersRounding{Radius: -1}}), ErrInvalidTransformation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("error = %v, want %v", tt.err, tt.want)
			}
			var se *StreamError
			if !errors.As(tt.err, &se) {
				t.Fatalf("error %v is not a *StreamError", tt.err)
			}
			if se.ID != 7 && se.ID != 0 && se.ID != 3 {
				t.Errorf("StreamError.ID = %d", se.ID)
			}
		})
	}

	if _, _, err := c.Properties(7); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("Properties() error = %v", err)
	}
	if ids := c.StreamIDs(); len(ids) != 1 {
		t.Errorf("failed operations changed the registry: %v", ids)
	}
}

func TestStreamIDReuseAfterRemoval(t *testing.T) {
	c := setupVideos(t, 2)
	if err := c.RemoveVideo(0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddVideo(0, VideoProperties{Resolution: V2[uint32](2, 2)}, nil); err != nil {
		t.Fatalf("AddVideo() reuse error = %v", err)
	}
	if ids := c.StreamIDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 0 {
		t.Errorf("StreamIDs() = %v, want [1 0]", ids)
	}
}

func TestNewInvalidCaps(t *testing.T) {
	tests := []RawVideo{
		{Width: 0, Height: 2, Framerate: Rational{Num: 1, Den: 1}},
		{Width: 2, Height: 2, Framerate: Rational{Num: 0, Den: 1}},
		{Width: 2, Height: 2, PixelFormat: PixelFormat(9), Framerate: Rational{Num: 1, Den: 1}},
	}
	for _, caps := range tests {
		if _, err := New(caps, WithDeviceName(backend.BackendSoftware)); !errors.Is(err, ErrInvalidCaps) {
			t.Errorf("New(%+v) error = %v, want ErrInvalidCaps", caps, err)
		}
	}
	caps := RawVideo{Width: 2, Height: 2, Framerate: Rational{Num: 1, Den: 1}}
	if _, err := New(caps, WithDeviceName("missing")); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("New() with unknown device error = %v", err)
	}
}

func TestFrameInterval(t *testing.T) {
	c := newTestCompositor(t, RawVideo{
		Width: 2, Height: 2,
		Framerate: Rational{Num: 30000, Den: 1001},
	})
	if _, ok := c.FrameInterval(); ok {
		t.Fatal("interval defined before the first frame")
	}
	if d := c.FrameDuration(); d < 33_366_666 || d > 33_366_667 {
		t.Errorf("FrameDuration() = %v", d)
	}
	c.lastPTS, c.started = 1_000_000_000, true
	interval, ok := c.FrameInterval()
	if !ok || interval.Start != 1_000_000_000 || interval.End != 1_034_000_000 {
		t.Errorf("FrameInterval() = %+v, %v, want end rounded up to 1034000000", interval, ok)
	}
}

func rgbaFrame(w, h int, px func(x, y int) [4]byte) []byte {
	buf := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := px(x, y)
			copy(buf[(y*w+x)*4:], p[:])
		}
	}
	return buf
}

func solid(c [4]byte) func(x, y int) [4]byte {
	return func(int, int) [4]byte { return c }
}

func outPixel(out []byte, w, x, y int) [4]byte {
	i := (y*w + x) * 4
	return [4]byte{out[i], out[i+1], out[i+2], out[i+3]}
}

var (
	red   = [4]byte{255, 0, 0, 255}
	green = [4]byte{0, 255, 0, 255}
	blue  = [4]byte{0, 0, 255, 255}
	black = [4]byte{0, 0, 0, 255}
)

func newRGBACompositor(t *testing.T, w, h int) *Compositor {
	t.Helper()
	return newTestCompositor(t, RawVideo{
		Width: uint32(w), Height: uint32(h),
		PixelFormat: PixelFormatRGBA,
		Framerate:   Rational{Num: 25, Den: 1},
	}, WithInputFormat(PixelFormatRGBA))
}

func TestCompositeLowestZOnTop(t *testing.T) {
	c := newRGBACompositor(t, 4, 2)
	add := func(id int, x int32, z float32, color [4]byte) {
		err := c.AddVideo(id, VideoProperties{
			Resolution: V2[uint32](2, 2),
			Placement:  Placement{Position: V2(x, 0), Size: V2[uint32](2, 2), Z: z},
		}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := c.UploadTexture(id, rgbaFrame(2, 2, solid(color)), 0); err != nil {
			t.Fatal(err)
		}
	}
	add(1, 0, 0.5, red)
	add(2, 1, 0.1, blue)

	out := make([]byte, 4*2*4)
	if _, err := c.DrawInto(out); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x    int
		want [4]byte
	}{
		{0, red},
		{1, blue},
		{2, blue},
		{3, black},
	}
	for _, tt := range tests {
		if got := outPixel(out, 4, tt.x, 0); got != tt.want {
			t.Errorf("pixel(%d,0) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestCompositeCropping(t *testing.T) {
	c := newRGBACompositor(t, 4, 4)
	err := c.AddVideo(1, VideoProperties{
		Resolution: V2[uint32](4, 4),
		Placement:  Placement{Size: V2[uint32](4, 4)},
	}, []Transformation{Cropping{TopLeft: V2[float32](0.5, 0), Size: V2[float32](0.5, 1)}})
	if err != nil {
		t.Fatal(err)
	}
	frame := rgbaFrame(4, 4, func(x, y int) [4]byte {
		if x < 2 {
			return red
		}
		return green
	})
	if err := c.UploadTexture(1, frame, 0); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 4*4*4)
	if _, err := c.DrawInto(out); err != nil {
		t.Fatal(err)
	}
	if got := outPixel(out, 4, 0, 0); got != green {
		t.Errorf("pixel(0,0) = %v, want the cropped right half", got)
	}
	if got := outPixel(out, 4, 3, 3); got != black {
		t.Errorf("pixel(3,3) = %v, want background", got)
	}
}

func TestCompositeCornersRounding(t *testing.T) {
	c := newRGBACompositor(t, 8, 8)
	err := c.AddVideo(1, VideoProperties{
		Resolution: V2[uint32](8, 8),
		Placement:  Placement{Size: V2[uint32](8, 8)},
	}, []Transformation{CornersRounding{Radius: 4}})
	if err != nil {
		t.Fatal(err)
	}
	white := [4]byte{255, 255, 255, 255}
	if err := c.UploadTexture(1, rgbaFrame(8, 8, solid(white)), 0); err != nil {
		t.Fatal(err)
	}
	out := make([]byte, 8*8*4)
	if _, err := c.DrawInto(out); err != nil {
		t.Fatal(err)
	}
	if got := outPixel(out, 8, 0, 0); got != black {
		t.Errorf("corner pixel = %v, want background", got)
	}
	if got := outPixel(out, 8, 4, 4); got != white {
		t.Errorf("center pixel = %v, want white", got)
	}
}

func TestCompositeI420Output(t *testing.T) {
	c := setupVideos(t, 1, WithBackground(backend.Color{R: 1, G: 1, B: 1, A: 1}))
	out := make([]byte, c.Caps().FrameSize())
	if _, err := c.DrawInto(out); err != nil {
		t.Fatal(err)
	}
	// White background: full luma, neutral chroma.
	for i, want := range []byte{255, 255, 255, 255, 128, 128} {
		if out[i] != want {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want)
		}
	}
}

func TestUploadCopiesData(t *testing.T) {
	c := newRGBACompositor(t, 2, 2)
	if err := c.AddVideo(1, VideoProperties{
		Resolution: V2[uint32](2, 2),
		Placement:  Placement{Size: V2[uint32](2, 2)},
	}, nil); err != nil {
		t.Fatal(err)
	}
	frame := rgbaFrame(2, 2, solid(red))
	if err := c.UploadTexture(1, frame, 0); err != nil {
		t.Fatal(err)
	}
	copy(frame, rgbaFrame(2, 2, solid(green)))

	out := make([]byte, 2*2*4)
	if _, err := c.DrawInto(out); err != nil {
		t.Fatal(err)
	}
	if got := outPixel(out, 2, 0, 0); got != red {
		t.Errorf("pixel = %v, want the frame as uploaded", got)
	}
}

func TestQueuedFramesKeepUploadResolution(t *testing.T) {
	c := newRGBACompositor(t, 4, 4)
	if err := c.AddVideo(1, VideoProperties{
		Resolution: V2[uint32](2, 2),
		Placement:  Placement{Size: V2[uint32](4, 4)},
	}, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.UploadTexture(1, rgbaFrame(2, 2, solid(red)), 0); err != nil {
		t.Fatal(err)
	}
	res := V2[uint32](4, 4)
	if err := c.UpdateProperties(1, &res, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.UploadTexture(1, rgbaFrame(2, 2, solid(red)), 1); !errors.Is(err, ErrFrameSize) {
		t.Errorf("old-size upload error = %v, want ErrFrameSize", err)
	}
	out := make([]byte, 4*4*4)
	if _, err := c.DrawInto(out); err != nil {
		t.Fatalf("DrawInto() error = %v", err)
	}
	if got := outPixel(out, 4, 3, 3); got != red {
		t.Errorf("pixel = %v, want red", got)
	}
}

func TestCloseReleasesStreams(t *testing.T) {
	dev := newTracingDevice()
	c := setupVideos(t, 2, WithDevice(dev))
	mustUpload(t, c, 0, 0)
	mustDraw(t, c)
	c.Close()
	if got := len(c.StreamIDs()); got != 0 {
		t.Errorf("streams after Close = %d", got)
	}
	// The caller's device stays usable.
	if _, err := dev.BeginPass(backend.Black); err != nil {
		t.Errorf("device closed by Close: %v", err)
	}
}
