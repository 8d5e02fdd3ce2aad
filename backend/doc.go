// Package backend provides a pluggable rendering device abstraction for the
// compositor.
//
// A device owns the output surface of a compositor, the RGBA textures of its
// streams and the pipelines of per-stream effects. Each tick the compositor
// begins a pass, draws one textured quad per stream and finishes the pass,
// which reads the composed surface back into memory.
//
// # Device Registration
//
// Devices are registered via init() functions and selected at runtime.
// The software device is automatically registered on import:
//
//	import _ "github.com/gogpu/vcomp/backend"
//
// The GPU device registers itself when its package is imported:
//
//	import _ "github.com/gogpu/vcomp/backend/native"
//
// # Device Selection
//
// Use InitDefault() to get the best available initialized device, or Get()
// to request a specific device by name:
//
//	d, err := backend.InitDefault(1280, 720)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	// Or request a specific device
//	d := backend.Get("software")
//
// # Available Devices
//
//   - "software": CPU compositing with nearest-neighbour scaling (always available)
//   - "native": GPU compositing via gogpu/wgpu (build tag !nogpu)
package backend
