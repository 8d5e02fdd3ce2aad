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

// effectUniformSize is the size of an effect's parameter block.
const effectUniformSize = 16

// effectPipeline renders a full-screen triangle into the destination
// texture, sampling the source through the effect's fragment shader.
type effectPipeline struct {
	dev      *Device
	label    string
	shader   hal.ShaderModule
	pipeline hal.RenderPipeline
}

// NewEffectPipeline builds the render pipeline of desc.Shader.
func (d *Device) NewEffectPipeline(desc backend.EffectDescriptor) (backend.EffectPipeline, error) {
	if d.effectPipeLayout == nil {
		return nil, backend.ErrNotInitialized
	}
	if desc.Shader == "" {
		return nil, fmt.Errorf("native: effect %q has no shader", desc.Label)
	}
	shader, err := d.createShaderModule(desc.Label, desc.Shader)
	if err != nil {
		return nil, err
	}
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label + "_pipeline",
		Layout: d.effectPipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    surfaceFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		d.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("create %s pipeline: %w", desc.Label, err)
	}
	e := &effectPipeline{dev: d, label: desc.Label, shader: shader, pipeline: pipeline}
	d.effects[e] = struct{}{}
	return e, nil
}

// Apply renders src into dst and waits for the GPU.
func (e *effectPipeline) Apply(dst, src backend.Texture, params []byte) error {
	if e.pipeline == nil {
		return backend.ErrReleased
	}
	d := e.dev
	dt, err := d.textureOf(dst)
	if err != nil {
		return err
	}
	st, err := d.textureOf(src)
	if err != nil {
		return err
	}

	uniform := make([]byte, effectUniformSize)
	copy(uniform, params)
	uniformBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: e.label + "_params",
		Size:  effectUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %s uniform buffer: %w", e.label, err)
	}
	defer d.device.DestroyBuffer(uniformBuf)
	d.queue.WriteBuffer(uniformBuf, 0, uniform)

	bg, err := d.bindTexture(e.label, d.effectLayout, st, gputypes.BindGroupEntry{
		Binding: 2,
		Resource: gputypes.BufferBinding{
			Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: effectUniformSize,
		},
	})
	if err != nil {
		return err
	}
	defer d.device.DestroyBindGroup(bg)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: e.label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(e.label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: e.label + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       dt.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(e.pipeline)
	rp.SetBindGroup(0, bg, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	return d.submit(cmdBuf)
}

func (e *effectPipeline) Release() {
	if e.pipeline == nil {
		return
	}
	e.dev.device.DestroyRenderPipeline(e.pipeline)
	e.dev.device.DestroyShaderModule(e.shader)
	e.pipeline, e.shader = nil, nil
	delete(e.dev.effects, e)
}
