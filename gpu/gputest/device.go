// Package gputest provides a recording gpu.Device for tests that need no GPU.
package gputest

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
)

// Dispatch is one DispatchWorkgroups call that reached the queue.
type Dispatch struct {
	Pass       string
	Pipeline   string
	BindGroups map[uint32]string
	X, Y, Z    uint32
}

// Device records everything created through it. Dispatches are recorded when
// the command buffer holding them is submitted.
type Device struct {
	mu sync.Mutex

	// TrackContents makes dispatches write into bound storage textures so
	// tests can compare texture bytes across frames.
	TrackContents bool

	Layouts     []*BindGroupLayout
	BindGroups  []*BindGroup
	Buffers     []*Buffer
	Textures    []*Texture
	Samplers    []*Sampler
	Pipelines   []*ComputePipeline
	Dispatches  []Dispatch
	Submissions int

	failPipelines map[string]error
	writeSeq      byte
}

func NewDevice() *Device {
	return &Device{failPipelines: map[string]error{}}
}

// FailPipeline makes CreateComputePipeline fail for the given label.
func (d *Device) FailPipeline(label string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failPipelines[label] = err
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (gpu.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	l := &BindGroupLayout{Desc: *desc, ID: len(d.Layouts)}
	d.Layouts = append(d.Layouts, l)
	return l, nil
}

func (d *Device) CreateBindGroup(desc *gpu.BindGroupDescriptor) (gpu.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := desc.Layout.(*BindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %q: foreign layout %T", desc.Label, desc.Layout)
	}
	if len(desc.Entries) != len(layout.Desc.Entries) {
		return nil, fmt.Errorf("bind group %q: %d entries for a layout with %d", desc.Label, len(desc.Entries), len(layout.Desc.Entries))
	}
	g := &BindGroup{Desc: *desc, LayoutRef: layout}
	d.BindGroups = append(d.BindGroups, g)
	return g, nil
}

func (d *Device) CreateBufferInit(desc *wgpu.BufferInitDescriptor) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := &Buffer{Label: desc.Label, Usage: desc.Usage, Contents: append([]byte(nil), desc.Contents...)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Size.Width == 0 || desc.Size.Height == 0 || desc.Size.DepthOrArrayLayers == 0 {
		return nil, fmt.Errorf("texture %q: zero-sized extent %+v", desc.Label, desc.Size)
	}
	t := &Texture{Desc: *desc, device: d}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateSampler(desc *wgpu.SamplerDescriptor) (gpu.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &Sampler{Desc: *desc}
	d.Samplers = append(d.Samplers, s)
	return s, nil
}

func (d *Device) CreateComputePipeline(desc *gpu.ComputePipelineDescriptor) (gpu.ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failPipelines[desc.Label]; ok {
		return nil, err
	}
	code, err := desc.Shader.Load()
	if err != nil {
		return nil, err
	}
	p := &ComputePipeline{Desc: *desc, Code: code}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	return &CommandEncoder{Label: label}, nil
}

func (d *Device) WriteTexture(texture gpu.Texture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error {
	t, ok := texture.(*Texture)
	if !ok {
		return fmt.Errorf("write texture: foreign texture %T", texture)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	t.Data = append(t.Data[:0], data...)
	t.Uploads++
	return nil
}

func (d *Device) Submit(buffers ...gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, b := range buffers {
		cb, ok := b.(*CommandBuffer)
		if !ok {
			continue
		}
		for _, rec := range cb.dispatches {
			d.Dispatches = append(d.Dispatches, rec.Dispatch)
			if d.TrackContents {
				d.writeStorage(rec.groups)
			}
		}
		d.Submissions++
	}
}

// writeStorage stamps every write-only storage texture bound by a dispatch.
func (d *Device) writeStorage(groups map[uint32]*BindGroup) {
	d.writeSeq++
	for _, g := range groups {
		for _, e := range g.Desc.Entries {
			view, ok := e.TextureView.(*TextureView)
			if !ok {
				continue
			}
			le, ok := g.LayoutRef.entry(e.Binding)
			if !ok || le.StorageTexture.Access != wgpu.StorageTextureAccessWriteOnly {
				continue
			}
			tex := view.Texture
			if len(tex.Data) == 0 {
				tex.Data = make([]byte, tex.ByteSize())
			}
			for i := range tex.Data {
				tex.Data[i] = d.writeSeq
			}
		}
	}
}

// TexturesLabeled returns every texture created with label, released or not.
func (d *Device) TexturesLabeled(label string) []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*Texture
	for _, t := range d.Textures {
		if t.Desc.Label == label {
			out = append(out, t)
		}
	}
	return out
}

// ViewsOf counts views created on textures with the given label and dimension.
func (d *Device) ViewsOf(label string, dim wgpu.TextureViewDimension) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, t := range d.Textures {
		if t.Desc.Label != label {
			continue
		}
		for _, v := range t.Views {
			if v.Desc.Dimension == dim {
				n++
			}
		}
	}
	return n
}

func (d *Device) BindGroupsLabeled(label string) []*BindGroup {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*BindGroup
	for _, g := range d.BindGroups {
		if g.Desc.Label == label {
			out = append(out, g)
		}
	}
	return out
}

func (d *Device) DispatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Dispatches)
}

func (d *Device) LastDispatch() (Dispatch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Dispatches) == 0 {
		return Dispatch{}, false
	}
	return d.Dispatches[len(d.Dispatches)-1], true
}

type BindGroupLayout struct {
	ID       int
	Desc     wgpu.BindGroupLayoutDescriptor
	Released bool
}

func (l *BindGroupLayout) Release()      { l.Released = true }
func (l *BindGroupLayout) Label() string { return l.Desc.Label }

func (l *BindGroupLayout) entry(binding uint32) (wgpu.BindGroupLayoutEntry, bool) {
	for _, e := range l.Desc.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return wgpu.BindGroupLayoutEntry{}, false
}

type BindGroup struct {
	Desc      gpu.BindGroupDescriptor
	LayoutRef *BindGroupLayout
	Released  bool
}

func (g *BindGroup) Release()      { g.Released = true }
func (g *BindGroup) Label() string { return g.Desc.Label }

type Buffer struct {
	Label    string
	Usage    wgpu.BufferUsage
	Contents []byte
	Released bool
}

func (b *Buffer) Release()     { b.Released = true }
func (b *Buffer) Size() uint64 { return uint64(len(b.Contents)) }

type Sampler struct {
	Desc     wgpu.SamplerDescriptor
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

type Texture struct {
	Desc     wgpu.TextureDescriptor
	Views    []*TextureView
	Data     []byte
	Uploads  int
	Released bool
	device   *Device
}

func (t *Texture) Release()                   { t.Released = true }
func (t *Texture) Size() wgpu.Extent3D        { return t.Desc.Size }
func (t *Texture) Format() wgpu.TextureFormat { return t.Desc.Format }

func (t *Texture) CreateView(desc *wgpu.TextureViewDescriptor) (gpu.TextureView, error) {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()

	if t.Released {
		return nil, fmt.Errorf("texture %q: view on released texture", t.Desc.Label)
	}
	v := &TextureView{Texture: t}
	if desc != nil {
		v.Desc = *desc
	}
	if v.Desc.Dimension == wgpu.TextureViewDimensionCube && t.Desc.Size.DepthOrArrayLayers != 6 {
		return nil, fmt.Errorf("texture %q: cube view needs 6 layers, have %d", t.Desc.Label, t.Desc.Size.DepthOrArrayLayers)
	}
	t.Views = append(t.Views, v)
	return v, nil
}

// ByteSize is the tightly packed size of all layers of mip 0.
func (t *Texture) ByteSize() int {
	s := t.Desc.Size
	return int(s.Width) * int(s.Height) * int(s.DepthOrArrayLayers) * BytesPerPixel(t.Desc.Format)
}

func BytesPerPixel(format wgpu.TextureFormat) int {
	switch format {
	case wgpu.TextureFormatRGBA32Float:
		return 16
	case wgpu.TextureFormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

type TextureView struct {
	Desc     wgpu.TextureViewDescriptor
	Texture  *Texture
	Released bool
}

func (v *TextureView) Release() { v.Released = true }

func (v *TextureView) Dimension() wgpu.TextureViewDimension {
	if v.Desc.Dimension == 0 {
		return wgpu.TextureViewDimension2D
	}
	return v.Desc.Dimension
}

type ComputePipeline struct {
	Desc     gpu.ComputePipelineDescriptor
	Code     string
	Released bool
}

func (p *ComputePipeline) Release()      { p.Released = true }
func (p *ComputePipeline) Label() string { return p.Desc.Label }

type recordedDispatch struct {
	Dispatch
	groups map[uint32]*BindGroup
}

type CommandEncoder struct {
	Label      string
	dispatches []recordedDispatch
	finished   bool
}

func (e *CommandEncoder) BeginComputePass(label string) gpu.ComputePass {
	return &ComputePass{encoder: e, label: label, groups: map[uint32]*BindGroup{}}
}

func (e *CommandEncoder) Finish() (gpu.CommandBuffer, error) {
	if e.finished {
		return nil, fmt.Errorf("encoder %q finished twice", e.Label)
	}
	e.finished = true
	return &CommandBuffer{dispatches: e.dispatches}, nil
}

type CommandBuffer struct {
	dispatches []recordedDispatch
}

func (b *CommandBuffer) Release() {}

type ComputePass struct {
	encoder  *CommandEncoder
	label    string
	pipeline *ComputePipeline
	groups   map[uint32]*BindGroup
	ended    bool
}

func (p *ComputePass) SetPipeline(pipeline gpu.ComputePipeline) {
	p.pipeline, _ = pipeline.(*ComputePipeline)
}

func (p *ComputePass) SetBindGroup(index uint32, group gpu.BindGroup) {
	if g, ok := group.(*BindGroup); ok {
		p.groups[index] = g
	}
}

func (p *ComputePass) DispatchWorkgroups(x, y, z uint32) {
	rec := recordedDispatch{
		Dispatch: Dispatch{
			Pass:       p.label,
			BindGroups: make(map[uint32]string, len(p.groups)),
			X:          x,
			Y:          y,
			Z:          z,
		},
		groups: make(map[uint32]*BindGroup, len(p.groups)),
	}
	if p.pipeline != nil {
		rec.Pipeline = p.pipeline.Label()
	}
	for i, g := range p.groups {
		rec.BindGroups[i] = g.Label()
		rec.groups[i] = g
	}
	p.encoder.dispatches = append(p.encoder.dispatches, rec)
}

func (p *ComputePass) End() error {
	if p.ended {
		return fmt.Errorf("compute pass %q ended twice", p.label)
	}
	p.ended = true
	return nil
}
