package vcomp

import "github.com/gogpu/vcomp/backend"

// Option configures a Compositor during creation.
//
// Example:
//
//	// Best available device, opaque black background
//	c, err := vcomp.New(caps)
//
//	// Explicit device and a white background
//	c, err := vcomp.New(caps,
//		vcomp.WithDeviceName(backend.BackendSoftware),
//		vcomp.WithBackground(backend.Color{R: 1, G: 1, B: 1, A: 1}))
type Option func(*options)

// options holds optional configuration for Compositor creation.
type options struct {
	device      backend.Device
	deviceName  string
	background  backend.Color
	inputFormat PixelFormat
}

// defaultOptions returns the default compositor options.
func defaultOptions() options {
	return options{
		device:      nil, // Will be selected with backend.InitDefault if nil
		background:  backend.Black,
		inputFormat: PixelFormatI420,
	}
}

// WithDevice sets the rendering device. New initializes it for the output
// size; Close releases the compositor's resources but leaves the device
// open.
func WithDevice(d backend.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithDeviceName selects a registered device by name, e.g.
// backend.BackendSoftware. It is ignored when WithDevice is given.
func WithDeviceName(name string) Option {
	return func(o *options) {
		o.deviceName = name
	}
}

// WithBackground sets the colour output frames are cleared to.
func WithBackground(c backend.Color) Option {
	return func(o *options) {
		o.background = c
	}
}

// WithInputFormat sets the pixel format of uploaded frames. The default is
// PixelFormatI420.
func WithInputFormat(f PixelFormat) Option {
	return func(o *options) {
		o.inputFormat = f
	}
}
