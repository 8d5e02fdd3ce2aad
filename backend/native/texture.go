// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vcomp/backend"
)

const textureUsage = gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageRenderAttachment |
	gputypes.TextureUsageCopySrc

// texture is an RGBA8 texture sampled by quads and written by effects.
type texture struct {
	dev    *Device
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
}

// NewTexture allocates a width×height RGBA8 texture.
func (d *Device) NewTexture(width, height int) (backend.Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", backend.ErrInvalidDimensions, width, height)
	}
	if d.device == nil {
		return nil, backend.ErrNotInitialized
	}
	tex, view, err := d.createTexture("vcomp_texture", uint32(width), uint32(height), surfaceFormat, textureUsage)
	if err != nil {
		return nil, err
	}
	t := &texture{dev: d, tex: tex, view: view, width: uint32(width), height: uint32(height)}
	d.textures[t] = struct{}{}
	return t, nil
}

func (t *texture) Width() int  { return int(t.width) }
func (t *texture) Height() int { return int(t.height) }

func (t *texture) Upload(rgba []byte) error {
	if t.tex == nil {
		return backend.ErrReleased
	}
	want := int(t.width) * int(t.height) * 4
	if len(rgba) != want {
		return fmt.Errorf("%w: texture %dx%d needs %d bytes, got %d",
			backend.ErrSizeMismatch, t.width, t.height, want, len(rgba))
	}
	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		rgba,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: t.width * 4, RowsPerImage: t.height},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
	return nil
}

func (t *texture) Release() {
	if t.tex == nil {
		return
	}
	t.dev.device.DestroyTextureView(t.view)
	t.dev.device.DestroyTexture(t.tex)
	t.view, t.tex = nil, nil
	delete(t.dev.textures, t)
}

// textureOf unwraps a texture created by d.
func (d *Device) textureOf(bt backend.Texture) (*texture, error) {
	t, ok := bt.(*texture)
	if !ok || t.dev != d {
		return nil, backend.ErrForeignResource
	}
	if t.tex == nil {
		return nil, backend.ErrReleased
	}
	return t, nil
}

// bindTexture creates a bind group sampling t, followed by extra entries.
func (d *Device) bindTexture(label string, layout hal.BindGroupLayout, t *texture, extra ...gputypes.BindGroupEntry) (hal.BindGroup, error) {
	entries := append([]gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}},
		{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: d.sampler.NativeHandle()}},
	}, extra...)
	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s bind group: %w", label, err)
	}
	return bg, nil
}
