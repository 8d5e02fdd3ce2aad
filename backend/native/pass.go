// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vcomp/backend"
)

// quadVertexStride is the size of one vertex: position (3 × f32) followed
// by texture coordinates (2 × f32).
const quadVertexStride = 20

// copyPitchAlignment is the row alignment of texture-to-buffer copies.
const copyPitchAlignment = 256

// renderPass records quads and encodes them in Finish.
type renderPass struct {
	dev   *Device
	clear backend.Color
	quads []backend.Quad
	done  bool
}

// BeginPass starts recording a composite pass.
func (d *Device) BeginPass(clear backend.Color) (backend.RenderPass, error) {
	if !d.initialized {
		return nil, backend.ErrNotInitialized
	}
	return &renderPass{dev: d, clear: clear}, nil
}

func (p *renderPass) Draw(q backend.Quad) error {
	if p.done {
		return backend.ErrReleased
	}
	if _, err := p.dev.textureOf(q.Texture); err != nil {
		return err
	}
	if q.Width <= 0 || q.Height <= 0 {
		return nil
	}
	p.quads = append(p.quads, q)
	return nil
}

func (p *renderPass) Discard() {
	p.done = true
	p.quads = nil
}

// quadVertices appends the four vertices of q in clip space.
func quadVertices(buf []byte, q backend.Quad, width, height uint32) []byte {
	left := float32(q.X)/float32(width)*2 - 1
	right := float32(q.X+q.Width)/float32(width)*2 - 1
	top := 1 - float32(q.Y)/float32(height)*2
	bottom := 1 - float32(q.Y+q.Height)/float32(height)*2
	z := min(max(q.Z, 0), 1)

	corners := [4][5]float32{
		{left, top, z, 0, 0},
		{right, top, z, 1, 0},
		{left, bottom, z, 0, 1},
		{right, bottom, z, 1, 1},
	}
	for _, v := range corners {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

// quadIndices appends the two triangles of quad i.
func quadIndices(buf []byte, i int) []byte {
	base := uint32(i * 4)
	for _, idx := range [6]uint32{0, 1, 2, 2, 1, 3} {
		buf = binary.LittleEndian.AppendUint32(buf, base+idx)
	}
	return buf
}

// Finish encodes the pass, copies the surface to a staging buffer, submits,
// waits and reads the pixels back into dst.
func (p *renderPass) Finish(dst []byte) error {
	if p.done {
		return backend.ErrReleased
	}
	p.done = true
	d := p.dev
	w, h := d.width, d.height
	bytesPerRow := w * 4
	if len(dst) < int(bytesPerRow*h) {
		return fmt.Errorf("%w: surface needs %d bytes, got %d", backend.ErrSizeMismatch, bytesPerRow*h, len(dst))
	}

	res, err := p.createResources()
	defer res.destroy(d.device)
	if err != nil {
		return err
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "vcomp_composite_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("vcomp_composite"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "vcomp_composite_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       d.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: p.clear.R, G: p.clear.G, B: p.clear.B, A: p.clear.A},
		}},
		DepthStencilAttachment: &hal.RenderPassDepthStencilAttachment{
			View:            d.depthView,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	if len(p.quads) > 0 {
		rp.SetPipeline(d.quadPipeline)
		rp.SetVertexBuffer(0, res.vertexBuf, 0)
		rp.SetIndexBuffer(res.indexBuf, gputypes.IndexFormatUint32, 0)
		for i, bg := range res.bindGroups {
			rp.SetBindGroup(0, bg, nil)
			rp.DrawIndexed(6, 1, uint32(i*6), 0, 0)
		}
	}
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	// BytesPerRow of a buffer copy must be aligned to 256 bytes.
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)
	stagingBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vcomp_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(stagingBuf)

	encoder.CopyTextureToBuffer(d.target, stagingBuf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: d.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: d.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	if err := d.submit(cmdBuf); err != nil {
		return err
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * int(bytesPerRow)
		copy(dst[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return nil
}

// passResources are the per-pass GPU objects of the recorded quads.
type passResources struct {
	vertexBuf  hal.Buffer
	indexBuf   hal.Buffer
	bindGroups []hal.BindGroup
}

func (p *renderPass) createResources() (*passResources, error) {
	res := &passResources{}
	if len(p.quads) == 0 {
		return res, nil
	}
	d := p.dev

	vertices := make([]byte, 0, len(p.quads)*4*quadVertexStride)
	indices := make([]byte, 0, len(p.quads)*6*4)
	for i, q := range p.quads {
		vertices = quadVertices(vertices, q, d.width, d.height)
		indices = quadIndices(indices, i)
	}

	var err error
	res.vertexBuf, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vcomp_quad_vertices",
		Size:  uint64(len(vertices)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return res, fmt.Errorf("create vertex buffer: %w", err)
	}
	d.queue.WriteBuffer(res.vertexBuf, 0, vertices)

	res.indexBuf, err = d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vcomp_quad_indices",
		Size:  uint64(len(indices)),
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return res, fmt.Errorf("create index buffer: %w", err)
	}
	d.queue.WriteBuffer(res.indexBuf, 0, indices)

	for _, q := range p.quads {
		t, err := d.textureOf(q.Texture)
		if err != nil {
			return res, err
		}
		bg, err := d.bindTexture("vcomp_quad", d.quadLayout, t)
		if err != nil {
			return res, err
		}
		res.bindGroups = append(res.bindGroups, bg)
	}
	return res, nil
}

func (r *passResources) destroy(device hal.Device) {
	for _, bg := range r.bindGroups {
		device.DestroyBindGroup(bg)
	}
	if r.indexBuf != nil {
		device.DestroyBuffer(r.indexBuf)
	}
	if r.vertexBuf != nil {
		device.DestroyBuffer(r.vertexBuf)
	}
}
