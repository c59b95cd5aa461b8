package atmosphere

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/jinzhu/copier"
)

// ErrRetryNextUpdate is returned by AsBindGroup when an input texture is not
// on the GPU yet. The frame skips the sky update and tries again next frame.
var ErrRetryNextUpdate = errors.New("atmosphere model inputs not ready, retry next update")

// ModelType tags a concrete Atmospheric implementation. Cached metadata is
// trusted only while its tag matches the active model's.
type ModelType string

// ModelDescriptor is what a model declares about itself at registration.
type ModelDescriptor struct {
	Type   ModelType
	Shader gpu.ShaderSource
	Defs   []string
	// Layout is bind group 0. Bind group 1 is always the output image.
	Layout []wgpu.BindGroupLayoutEntry
	// Precompute models write the precompute table instead of the sky cubemap.
	Precompute bool
}

// Atmospheric is a pluggable sky model evaluated by a compute shader per cubemap texel.
type Atmospheric interface {
	ModelType() ModelType
	Descriptor() ModelDescriptor
	// AsBindGroup builds bind group 0 for layout. It returns ErrRetryNextUpdate
	// when a texture it needs has not been uploaded.
	AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, images *RenderImages, fallback *FallbackImage) (gpu.BindGroup, error)
	CloneModel() Atmospheric
}

// PrecomputeDependent models consume the output of a precompute model,
// which is derived from their own parameters every time they change.
type PrecomputeDependent interface {
	Atmospheric
	Precompute() Atmospheric
}

type AtmosphereModelMetadata struct {
	Type            ModelType
	BindGroupLayout gpu.BindGroupLayout
	Pipeline        gpu.CachedPipelineID
	Precompute      bool
}

// ModelRegistry maps model type tags to their layout and pipeline. It is
// filled while the app is built and only read afterwards.
type ModelRegistry struct {
	mu           sync.RWMutex
	entries      map[ModelType]AtmosphereModelMetadata
	order        []ModelType
	sealed       bool
	defaultModel Atmospheric
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{entries: make(map[ModelType]AtmosphereModelMetadata)}
}

// Register builds the model's bind group layout and queues its pipeline.
// The pipeline compiles asynchronously; poll the cache for its state.
func (r *ModelRegistry) Register(desc ModelDescriptor, device gpu.Device, cache *gpu.PipelineCache, layouts *AtmosphereImageBindGroupLayouts) AtmosphereModelMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("atmosphere model %q registered after the app started running", desc.Type))
	}
	if desc.Type == "" {
		panic("atmosphere model descriptor has an empty type")
	}
	if _, ok := r.entries[desc.Type]; ok {
		panic(fmt.Sprintf("atmosphere model %q registered twice", desc.Type))
	}

	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   string(desc.Type) + "_bind_group_layout",
		Entries: desc.Layout,
	})
	if err != nil {
		panic(fmt.Sprintf("atmosphere model %q: bind group layout: %v", desc.Type, err))
	}

	imageLayout := layouts.Image
	if desc.Precompute {
		imageLayout = layouts.Precompute
	}
	pipeline := cache.QueueComputePipeline(gpu.ComputePipelineDescriptor{
		Label:      string(desc.Type) + "_pipeline",
		Layouts:    []gpu.BindGroupLayout{layout, imageLayout},
		Shader:     desc.Shader,
		Defs:       desc.Defs,
		EntryPoint: "main",
	})

	meta := AtmosphereModelMetadata{
		Type:            desc.Type,
		BindGroupLayout: layout,
		Pipeline:        pipeline,
		Precompute:      desc.Precompute,
	}
	r.entries[desc.Type] = meta
	r.order = append(r.order, desc.Type)
	return meta
}

// Seal forbids further registration.
func (r *ModelRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

func (r *ModelRegistry) Metadata(t ModelType) (AtmosphereModelMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.entries[t]
	return meta, ok
}

// MustMetadata panics for a type that was never registered; using such a
// model is a build configuration error.
func (r *ModelRegistry) MustMetadata(t ModelType) AtmosphereModelMetadata {
	meta, ok := r.Metadata(t)
	if !ok {
		panic(fmt.Sprintf("atmosphere model type %q not registered, perhaps you forgot to register the atmospheric model", t))
	}
	return meta
}

func (r *ModelRegistry) Registered(t ModelType) bool {
	_, ok := r.Metadata(t)
	return ok
}

func (r *ModelRegistry) Types() []ModelType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *ModelRegistry) SetDefault(model Atmospheric) {
	r.mu.Lock()
	r.defaultModel = model
	r.mu.Unlock()
}

// Default returns a fresh copy of the default model.
func (r *ModelRegistry) Default() (*AtmosphereModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultModel == nil {
		return nil, false
	}
	return NewAtmosphereModel(r.defaultModel.CloneModel()), true
}

func (r *ModelRegistry) MustDefault() *AtmosphereModel {
	m, ok := r.Default()
	if !ok {
		panic("no default atmosphere model: enable at least one atmospheric model")
	}
	return m
}

// AtmosphereModel holds the active sky model. Absent means the default model.
type AtmosphereModel struct {
	model Atmospheric
}

func NewAtmosphereModel(model Atmospheric) *AtmosphereModel {
	if model == nil {
		panic("NewAtmosphereModel: nil model")
	}
	return &AtmosphereModel{model: model}
}

func (a *AtmosphereModel) Model() Atmospheric { return a.model }

func (a *AtmosphereModel) Type() ModelType { return a.model.ModelType() }

// Clone deep-copies the wrapped model.
func (a *AtmosphereModel) Clone() *AtmosphereModel {
	return &AtmosphereModel{model: a.model.CloneModel()}
}

// ModelAs downcasts to a concrete model type, e.g. ModelAs[*Nishita](m).
func ModelAs[T Atmospheric](a *AtmosphereModel) (T, bool) {
	t, ok := a.model.(T)
	return t, ok
}

// AtmosphereModelPrecompute is the precompute model derived from the active
// model, present only while the active model is PrecomputeDependent.
type AtmosphereModelPrecompute struct {
	AtmosphereModel
}

func (a *AtmosphereModelPrecompute) Clone() *AtmosphereModelPrecompute {
	return &AtmosphereModelPrecompute{AtmosphereModel: *a.AtmosphereModel.Clone()}
}

// deepClone copies src including anything it points to.
func deepClone[T any](src *T) *T {
	dst := new(T)
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		panic(fmt.Sprintf("clone %T: %v", src, err))
	}
	return dst
}

// AddAtmosphereModel registers prototype's model type, and the precompute
// model it depends on if that is not registered yet. Call it while building
// the app, after AtmospherePlugin.
func AddAtmosphereModel(app *App, prototype Atmospheric) {
	render := app.RenderWorld()
	registry, ok := Resource[ModelRegistry](render)
	if !ok {
		panic("AddAtmosphereModel: install AtmospherePlugin first")
	}
	device := MustResource[RenderDevice](render)
	cache := MustResource[gpu.PipelineCache](render)
	layouts := MustResource[AtmosphereImageBindGroupLayouts](render)

	if dep, ok := prototype.(PrecomputeDependent); ok {
		pre := dep.Precompute()
		if !registry.Registered(pre.ModelType()) {
			registry.Register(pre.Descriptor(), device.Device, cache, layouts)
		}
	}
	registry.Register(prototype.Descriptor(), device.Device, cache, layouts)
	app.Logger().Debugf("registered atmosphere model %s", prototype.ModelType())
}

func uniformLayoutEntry(binding uint32, size uint64) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageCompute,
		Buffer: wgpu.BufferBindingLayout{
			Type:             wgpu.BufferBindingTypeUniform,
			HasDynamicOffset: false,
			MinBindingSize:   size,
		},
	}
}

// uniformBindGroup uploads contents as binding 0 and appends extra entries after it.
func uniformBindGroup(device gpu.Device, layout gpu.BindGroupLayout, label string, contents []byte, extra ...gpu.BindGroupEntry) (gpu.BindGroup, error) {
	buffer, err := device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label + "_uniform",
		Contents: contents,
		Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s uniform buffer: %w", label, err)
	}
	entries := append([]gpu.BindGroupEntry{{Binding: 0, Buffer: buffer}}, extra...)
	group, err := device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   label + "_bind_group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		buffer.Release()
		return nil, fmt.Errorf("%s bind group: %w", label, err)
	}
	// The bind group keeps the buffer alive on the GPU side.
	buffer.Release()
	return group, nil
}
