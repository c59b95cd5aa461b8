package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// Device is the slice of a graphics device the atmosphere pipeline needs.
// Descriptor enums and layouts come straight from wgpu so the real backend
// and the test fake speak the same vocabulary.
type Device interface {
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateBufferInit(desc *wgpu.BufferInitDescriptor) (Buffer, error)
	CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error)
	CreateSampler(desc *wgpu.SamplerDescriptor) (Sampler, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	WriteTexture(texture Texture, data []byte, layout *wgpu.TextureDataLayout, size *wgpu.Extent3D) error
	Submit(buffers ...CommandBuffer)
}

type Releaser interface {
	Release()
}

type BindGroupLayout interface {
	Releaser
	Label() string
}

type BindGroup interface {
	Releaser
	Label() string
}

type Buffer interface {
	Releaser
	Size() uint64
}

type Sampler interface {
	Releaser
}

type Texture interface {
	Releaser
	CreateView(desc *wgpu.TextureViewDescriptor) (TextureView, error)
	Size() wgpu.Extent3D
	Format() wgpu.TextureFormat
}

type TextureView interface {
	Releaser
	Dimension() wgpu.TextureViewDimension
}

type ComputePipeline interface {
	Releaser
	Label() string
}

type CommandBuffer interface {
	Releaser
}

type CommandEncoder interface {
	BeginComputePass(label string) ComputePass
	Finish() (CommandBuffer, error)
}

type ComputePass interface {
	SetPipeline(pipeline ComputePipeline)
	SetBindGroup(index uint32, group BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End() error
}

// BindGroupEntry binds exactly one of Buffer, TextureView or Sampler.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

type ComputePipelineDescriptor struct {
	Label      string
	Layouts    []BindGroupLayout
	Shader     ShaderSource
	Defs       []string
	EntryPoint string
}

// Release releases every non-nil handle.
func Release(handles ...Releaser) {
	for _, h := range handles {
		if h != nil {
			h.Release()
		}
	}
}
