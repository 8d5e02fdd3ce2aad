// Package vcomp composites independently timestamped video streams into a
// single output stream at a fixed frame rate.
//
// # Overview
//
// A media pipeline feeds vcomp raw decoded frames and pulls composed frames
// on a clock it controls. vcomp decides, for every output frame, which
// queued frame of each stream to show, draws the streams back to front and
// reads the result back into the output buffer.
//
// # Quick Start
//
//	import "github.com/gogpu/vcomp"
//
//	c, err := vcomp.New(vcomp.RawVideo{
//		Width:       1280,
//		Height:      720,
//		PixelFormat: vcomp.PixelFormatI420,
//		Framerate:   vcomp.Rational{Num: 30, Den: 1},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	err = c.AddVideo(1, vcomp.VideoProperties{
//		Resolution: vcomp.V2[uint32](640, 360),
//		Placement: vcomp.Placement{
//			Size: vcomp.V2[uint32](1280, 720),
//			Z:    0.5,
//		},
//	}, nil)
//
//	c.UploadTexture(1, frame, 0)
//	if c.AllFramesReady() {
//		pts, err := c.DrawInto(out)
//		// ...
//	}
//
// # Frame Selection
//
// Each output frame represents the half-open window [start, end): start is
// the timestamp of the previous output frame and end is start plus the
// frame duration, rounded up to a whole millisecond. The first output frame
// has no window and takes whatever is queued.
//
// A stream is ready when it has a queued frame or has ended. For each output
// frame a stream drops every queued frame that a newer frame before end
// supersedes, then draws its oldest frame unless that frame starts at or
// after end, in which case it is kept for a later output frame. The output
// timestamp is the newest drawn timestamp, or 0 when nothing was drawn.
//
// # Z Order
//
// Streams are drawn in descending Placement.Z, so the stream with the lowest
// Z ends up on top. Streams with equal Z are drawn in registration order;
// this order is not part of the API.
//
// # Transformations
//
// A stream may carry a chain of transformations, applied in order before
// the stream is drawn: Cropping changes geometry, CornersRounding fades the
// corners out. Properties reports both the properties set by the caller and
// the properties after the chain.
//
// # Devices
//
// Rendering goes through a backend.Device. The software device is always
// available; importing github.com/gogpu/vcomp/backend/native adds the GPU
// device, which New prefers when it initializes.
//
// # Logging
//
// vcomp is silent by default. Use SetLogger to enable logging.
package vcomp
