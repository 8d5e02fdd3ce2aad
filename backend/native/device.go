// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/vcomp/backend"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

//go:embed shaders/quad.wgsl
var quadShaderSource string

// fenceTimeout bounds every wait on a submission.
const fenceTimeout = 5 * time.Second

const (
	surfaceFormat = gputypes.TextureFormatRGBA8Unorm
	depthFormat   = gputypes.TextureFormatDepth32Float
)

func init() {
	backend.Register(backend.BackendNative, func() backend.Device {
		return New()
	})
}

// Device is a backend.Device rendering with a gogpu/wgpu HAL device.
//
// Device is not safe for concurrent use.
type Device struct {
	log *slog.Logger

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	// owned is set when the device was opened by Init and must be
	// destroyed by Close.
	owned bool

	initialized   bool
	width, height uint32

	target     hal.Texture
	targetView hal.TextureView
	depth      hal.Texture
	depthView  hal.TextureView

	sampler          hal.Sampler
	quadLayout       hal.BindGroupLayout
	quadPipeLayout   hal.PipelineLayout
	quadShader       hal.ShaderModule
	quadPipeline     hal.RenderPipeline
	effectLayout     hal.BindGroupLayout
	effectPipeLayout hal.PipelineLayout

	textures map[*texture]struct{}
	effects  map[*effectPipeline]struct{}
}

// New creates a device that opens a Vulkan adapter on Init.
func New() *Device {
	return &Device{
		log:      slog.New(slog.DiscardHandler),
		textures: make(map[*texture]struct{}),
		effects:  make(map[*effectPipeline]struct{}),
	}
}

// NewWithDevice creates a device rendering with an existing HAL device and
// queue. Close leaves them open.
func NewWithDevice(device hal.Device, queue hal.Queue) *Device {
	d := New()
	d.device = device
	d.queue = queue
	return d
}

// WithDeviceProvider creates a device sharing the GPU device of provider.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func WithDeviceProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrInvalidProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrInvalidProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrInvalidProvider)
	}
	return NewWithDevice(device, queue), nil
}

// SetLogger sets the logger used by the device.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	d.log = l
}

// Name returns the device identifier.
func (d *Device) Name() string {
	return backend.BackendNative
}

// Init opens the GPU if needed and allocates the width×height surface and
// the shared pipelines.
func (d *Device) Init(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", backend.ErrInvalidDimensions, width, height)
	}
	if d.device == nil {
		if err := d.openAdapter(); err != nil {
			return err
		}
	}
	if d.quadPipeline == nil {
		if err := d.createShared(); err != nil {
			d.destroyShared()
			return err
		}
	}
	d.destroySurface()
	if err := d.createSurface(uint32(width), uint32(height)); err != nil {
		d.destroySurface()
		return err
	}
	d.initialized = true
	return nil
}

func (d *Device) openAdapter() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("%w: vulkan backend not available", ErrNoGPU)
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return ErrNoGPU
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return fmt.Errorf("open device: %w", err)
	}
	d.instance = instance
	d.device = openDev.Device
	d.queue = openDev.Queue
	d.owned = true
	d.log.Info("native device opened", "adapter", selected.Info.Name)
	return nil
}

func (d *Device) createShared() error {
	sampler, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "vcomp_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	d.sampler = sampler

	textureEntries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		},
		{
			Binding:    1,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		},
	}

	d.quadLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "vcomp_quad_layout",
		Entries: textureEntries,
	})
	if err != nil {
		return fmt.Errorf("create quad bind group layout: %w", err)
	}
	d.quadPipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "vcomp_quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.quadLayout},
	})
	if err != nil {
		return fmt.Errorf("create quad pipeline layout: %w", err)
	}

	effectEntries := append(textureEntries[:len(textureEntries):len(textureEntries)], gputypes.BindGroupLayoutEntry{
		Binding:    2,
		Visibility: gputypes.ShaderStageFragment,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	})
	d.effectLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "vcomp_effect_layout",
		Entries: effectEntries,
	})
	if err != nil {
		return fmt.Errorf("create effect bind group layout: %w", err)
	}
	d.effectPipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "vcomp_effect_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{d.effectLayout},
	})
	if err != nil {
		return fmt.Errorf("create effect pipeline layout: %w", err)
	}

	d.quadShader, err = d.createShaderModule("vcomp_quad", quadShaderSource)
	if err != nil {
		return err
	}
	d.quadPipeline, err = d.createQuadPipeline()
	return err
}

func (d *Device) createQuadPipeline() (hal.RenderPipeline, error) {
	blend := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "vcomp_quad_pipeline",
		Layout: d.quadPipeLayout,
		Vertex: hal.VertexState{
			Module:     d.quadShader,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: quadVertexStride,
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     d.quadShader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    surfaceFormat,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		DepthStencil: &hal.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLessEqual,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, fmt.Errorf("create quad pipeline: %w", err)
	}
	return pipeline, nil
}

func (d *Device) createSurface(width, height uint32) error {
	var err error
	d.target, d.targetView, err = d.createTexture("vcomp_surface", width, height, surfaceFormat,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	d.depth, d.depthView, err = d.createTexture("vcomp_depth", width, height, depthFormat,
		gputypes.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	d.width, d.height = width, height
	return nil
}

func (d *Device) createTexture(label string, width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (hal.Texture, hal.TextureView, error) {
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s texture: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("create %s view: %w", label, err)
	}
	return tex, view, nil
}

func (d *Device) destroySurface() {
	if d.targetView != nil {
		d.device.DestroyTextureView(d.targetView)
		d.targetView = nil
	}
	if d.target != nil {
		d.device.DestroyTexture(d.target)
		d.target = nil
	}
	if d.depthView != nil {
		d.device.DestroyTextureView(d.depthView)
		d.depthView = nil
	}
	if d.depth != nil {
		d.device.DestroyTexture(d.depth)
		d.depth = nil
	}
}

func (d *Device) destroyShared() {
	if d.device == nil {
		return
	}
	if d.quadPipeline != nil {
		d.device.DestroyRenderPipeline(d.quadPipeline)
		d.quadPipeline = nil
	}
	if d.quadShader != nil {
		d.device.DestroyShaderModule(d.quadShader)
		d.quadShader = nil
	}
	if d.quadPipeLayout != nil {
		d.device.DestroyPipelineLayout(d.quadPipeLayout)
		d.quadPipeLayout = nil
	}
	if d.effectPipeLayout != nil {
		d.device.DestroyPipelineLayout(d.effectPipeLayout)
		d.effectPipeLayout = nil
	}
	if d.quadLayout != nil {
		d.device.DestroyBindGroupLayout(d.quadLayout)
		d.quadLayout = nil
	}
	if d.effectLayout != nil {
		d.device.DestroyBindGroupLayout(d.effectLayout)
		d.effectLayout = nil
	}
	if d.sampler != nil {
		d.device.DestroySampler(d.sampler)
		d.sampler = nil
	}
}

// Close releases every resource created by the device. A device opened by
// Init is destroyed as well.
func (d *Device) Close() {
	if d.device != nil {
		for e := range d.effects {
			e.Release()
		}
		for t := range d.textures {
			t.Release()
		}
		d.destroySurface()
		d.destroyShared()
	}
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
		d.device, d.queue, d.instance = nil, nil, nil
		d.owned = false
	}
	d.initialized = false
}

// submit finishes the command buffer, submits it and waits for completion.
func (d *Device) submit(cmdBuf hal.CommandBuffer) error {
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return ErrGPUTimeout
	}
	return nil
}
