// Package native provides a GPU compositing device using gogpu/wgpu.
//
// The device renders into an RGBA8 surface with a Depth32Float depth buffer.
// Each stream is drawn as a textured triangle-list quad with straight-alpha
// blending and a LessEqual depth test. Effects run as full-screen render
// passes into the destination texture. WGSL shaders are compiled to SPIR-V
// with gogpu/naga; a shader naga rejects is handed to the HAL as WGSL.
//
// Importing the package registers the device as backend.BackendNative:
//
//	import _ "github.com/gogpu/vcomp/backend/native"
//
// An application that already owns a GPU device can share it:
//
//	d, err := native.WithDeviceProvider(provider)
//
// Build with the nogpu tag to exclude the package's GPU code.
package native
