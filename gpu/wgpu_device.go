package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUDevice is the Device backed by a real webgpu device.
type WGPUDevice struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

func NewWGPUDevice(device *wgpu.Device) *WGPUDevice {
	return &WGPUDevice{
		device: device,
		queue:  device.GetQueue(),
	}
}

// Raw exposes the underlying device for code that draws outside this package.
func (d *WGPUDevice) Raw() *wgpu.Device { return d.device }

func (d *WGPUDevice) Queue() *wgpu.Queue { return d.queue }

func (d *WGPUDevice) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error) {
	layout, err := d.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroupLayout{layout: layout, label: desc.Label}, nil
}

func (d *WGPUDevice) CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error) {
	layout, ok := desc.Layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %q: layout %T is not a wgpu layout", desc.Label, desc.Layout)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buf, ok := e.Buffer.(*wgpuBuffer)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: foreign buffer %T", desc.Label, e.Binding, e.Buffer)
			}
			entry.Buffer = buf.buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.TextureView != nil:
			view, ok := e.TextureView.(*wgpuTextureView)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: foreign texture view %T", desc.Label, e.Binding, e.TextureView)
			}
			entry.TextureView = view.view
		case e.Sampler != nil:
			sampler, ok := e.Sampler.(*wgpuSampler)
			if !ok {
				return nil, fmt.Errorf("bind group %q binding %d: foreign sampler %T", desc.Label, e.Binding, e.Sampler)
			}
			entry.Sampler = sampler.sampler
		default:
			return nil, fmt.Errorf("bind group %q binding %d: empty entry", desc.Label, e.Binding)
		}
		entries = append(entries, entry)
	}

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBindGroup{group: group, label: desc.Label}, nil
}

func (d *WGPUDevice) CreateBufferInit(desc *wgpu.BufferInitDescriptor) (Buffer, error) {
	buffer, err := d.device.CreateBufferInit(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{buffer: buffer, size: uint64(len(desc.Contents))}, nil
}

func (d *WGPUDevice) CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error) {
	texture, err := d.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuTexture{texture: texture, size: desc.Size, format: desc.Format}, nil
}

func (d *WGPUDevice) CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error) {
	sampler, err := d.device.CreateSampler(desc)
	if err != nil {
		return nil, err
	}
	return &wgpuSampler{sampler: sampler}, nil
}

func (d *WGPUDevice) CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error) {
	code, err := desc.Shader.Load()
	if err != nil {
		return nil, err
	}
	if len(desc.Defs) > 0 {
		if code, err = Preprocess(code, desc.Defs); err != nil {
			return nil, err
		}
	}

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Shader.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	layouts := make([]*wgpu.BindGroupLayout, 0, len(desc.Layouts))
	for _, l := range desc.Layouts {
		wl, ok := l.(*wgpuBindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %q: foreign layout %T", desc.Label, l)
		}
		layouts = append(layouts, wl.layout)
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	pipeline, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return nil, err
	}
	return &wgpuComputePipeline{pipeline: pipeline, label: desc.Label}, nil
}

func (d *WGPUDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	return &wgpuCommandEncoder{encoder: encoder, label: label}, nil
}

func (d *WGPUDevice) WriteTexture(texture Texture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error {
	t, ok := texture.(*wgpuTexture)
	if !ok {
		return fmt.Errorf("write texture: foreign texture %T", texture)
	}
	d.queue.WriteTexture(&wgpu.ImageCopyTexture{
		Texture:  t.texture,
		MipLevel: 0,
		Origin:   wgpu.Origin3D{},
		Aspect:   wgpu.TextureAspectAll,
	}, data, layout, size)
	return nil
}

func (d *WGPUDevice) Submit(buffers ...CommandBuffer) {
	raw := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if cb, ok := b.(*wgpuCommandBuffer); ok {
			raw = append(raw, cb.buffer)
		}
	}
	if len(raw) == 0 {
		return
	}
	d.queue.Submit(raw...)
	for _, cb := range raw {
		cb.Release()
	}
}

type wgpuBindGroupLayout struct {
	layout *wgpu.BindGroupLayout
	label  string
}

func (l *wgpuBindGroupLayout) Release()      { l.layout.Release() }
func (l *wgpuBindGroupLayout) Label() string { return l.label }

type wgpuBindGroup struct {
	group *wgpu.BindGroup
	label string
}

func (g *wgpuBindGroup) Release()      { g.group.Release() }
func (g *wgpuBindGroup) Label() string { return g.label }

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

func (b *wgpuBuffer) Release()     { b.buffer.Release() }
func (b *wgpuBuffer) Size() uint64 { return b.size }

type wgpuSampler struct {
	sampler *wgpu.Sampler
}

func (s *wgpuSampler) Release() { s.sampler.Release() }

type wgpuTexture struct {
	texture *wgpu.Texture
	size    wgpu.Extent3D
	format  wgpu.TextureFormat
}

func (t *wgpuTexture) Release()                   { t.texture.Release() }
func (t *wgpuTexture) Size() wgpu.Extent3D        { return t.size }
func (t *wgpuTexture) Format() wgpu.TextureFormat { return t.format }

func (t *wgpuTexture) CreateView(desc *wgpu.TextureViewDescriptor) (TextureView, error) {
	view, err := t.texture.CreateView(desc)
	if err != nil {
		return nil, err
	}
	dim := wgpu.TextureViewDimension2D
	if desc != nil && desc.Dimension != 0 {
		dim = desc.Dimension
	}
	return &wgpuTextureView{view: view, dimension: dim}, nil
}

type wgpuTextureView struct {
	view      *wgpu.TextureView
	dimension wgpu.TextureViewDimension
}

func (v *wgpuTextureView) Release()                             { v.view.Release() }
func (v *wgpuTextureView) Dimension() wgpu.TextureViewDimension { return v.dimension }

type wgpuComputePipeline struct {
	pipeline *wgpu.ComputePipeline
	label    string
}

func (p *wgpuComputePipeline) Release()      { p.pipeline.Release() }
func (p *wgpuComputePipeline) Label() string { return p.label }

type wgpuCommandBuffer struct {
	buffer *wgpu.CommandBuffer
}

func (b *wgpuCommandBuffer) Release() { b.buffer.Release() }

type wgpuCommandEncoder struct {
	encoder *wgpu.CommandEncoder
	label   string
}

func (e *wgpuCommandEncoder) BeginComputePass(label string) ComputePass {
	return &wgpuComputePass{pass: e.encoder.BeginComputePass(nil), label: label}
}

func (e *wgpuCommandEncoder) Finish() (CommandBuffer, error) {
	buffer, err := e.encoder.Finish(nil)
	e.encoder.Release()
	if err != nil {
		return nil, err
	}
	return &wgpuCommandBuffer{buffer: buffer}, nil
}

type wgpuComputePass struct {
	pass  *wgpu.ComputePassEncoder
	label string
}

func (p *wgpuComputePass) SetPipeline(pipeline ComputePipeline) {
	if cp, ok := pipeline.(*wgpuComputePipeline); ok {
		p.pass.SetPipeline(cp.pipeline)
	}
}

func (p *wgpuComputePass) SetBindGroup(index uint32, group BindGroup) {
	if bg, ok := group.(*wgpuBindGroup); ok {
		p.pass.SetBindGroup(index, bg.group, nil)
	}
}

func (p *wgpuComputePass) DispatchWorkgroups(x, y, z uint32) {
	p.pass.DispatchWorkgroups(x, y, z)
}

func (p *wgpuComputePass) End() error {
	if err := p.pass.End(); err != nil {
		return fmt.Errorf("end compute pass %q: %w", p.label, err)
	}
	return nil
}

// RawTextureView unwraps a view created by a WGPUDevice.
func RawTextureView(view TextureView) (*wgpu.TextureView, bool) {
	v, ok := view.(*wgpuTextureView)
	if !ok {
		return nil, false
	}
	return v.view, true
}

func RawBindGroupLayout(layout BindGroupLayout) (*wgpu.BindGroupLayout, bool) {
	l, ok := layout.(*wgpuBindGroupLayout)
	if !ok {
		return nil, false
	}
	return l.layout, true
}

func RawBindGroup(group BindGroup) (*wgpu.BindGroup, bool) {
	g, ok := group.(*wgpuBindGroup)
	if !ok {
		return nil, false
	}
	return g.group, true
}
