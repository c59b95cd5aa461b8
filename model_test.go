package atmosphere

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRegistry struct {
	registry *ModelRegistry
	device   *gputest.Device
	cache    *gpu.PipelineCache
	layouts  *AtmosphereImageBindGroupLayouts
}

func newTestRegistry(t *testing.T) *testRegistry {
	t.Helper()
	device := gputest.NewDevice()
	layouts, err := newAtmosphereImageBindGroupLayouts(device)
	require.NoError(t, err)
	r := &testRegistry{
		registry: NewModelRegistry(),
		device:   device,
		cache:    gpu.NewPipelineCache(device, gpu.WithExecutor(gpu.InlineExecutor()), gpu.WithShaderValidator(acceptShaders)),
		layouts:  layouts,
	}
	r.register(DefaultNishita())
	r.register(DefaultGradient())
	return r
}

func (r *testRegistry) register(model Atmospheric) AtmosphereModelMetadata {
	return r.registry.Register(model.Descriptor(), r.device, r.cache, r.layouts)
}

func TestModelRegistry_Register(t *testing.T) {
	r := newTestRegistry(t)

	meta, ok := r.registry.Metadata(GradientModelType)
	require.True(t, ok)
	assert.Equal(t, GradientModelType, meta.Type)
	assert.Equal(t, "gradient_bind_group_layout", meta.BindGroupLayout.Label())
	assert.False(t, meta.Precompute)
	assert.Equal(t, []ModelType{NishitaModelType, GradientModelType}, r.registry.Types())

	state, err := r.cache.ComputePipelineState(meta.Pipeline)
	require.NoError(t, err)
	assert.Equal(t, gpu.PipelineQueued, state, "registration only queues the pipeline")

	r.cache.ProcessQueue()
	r.cache.ProcessQueue()
	pipeline, ok := r.cache.GetComputePipeline(meta.Pipeline)
	require.True(t, ok)
	assert.Equal(t, "gradient_pipeline", pipeline.Label())

	created := pipeline.(*gputest.ComputePipeline)
	require.Len(t, created.Desc.Layouts, 2)
	assert.Same(t, meta.BindGroupLayout, created.Desc.Layouts[0])
	assert.Same(t, r.layouts.Image, created.Desc.Layouts[1])
	assert.Contains(t, created.Code, "fn ray_direction", "sky models get the cube helpers")
	assert.Contains(t, created.Code, "@workgroup_size(8, 8, 1)")
}

func TestModelRegistry_PrecomputeUsesTableLayout(t *testing.T) {
	r := newTestRegistry(t)
	meta := r.register(&NishitaPrecompute{})
	assert.True(t, meta.Precompute)

	r.cache.ProcessQueue()
	r.cache.ProcessQueue()
	pipeline, ok := r.cache.GetComputePipeline(meta.Pipeline)
	require.True(t, ok)
	assert.Same(t, r.layouts.Precompute, pipeline.(*gputest.ComputePipeline).Desc.Layouts[1])
}

func TestModelRegistry_Panics(t *testing.T) {
	r := newTestRegistry(t)

	assert.PanicsWithValue(t, `atmosphere model "gradient" registered twice`, func() {
		r.register(DefaultGradient())
	})
	assert.PanicsWithValue(t, `atmosphere model type "textured_test" not registered, perhaps you forgot to register the atmospheric model`, func() {
		r.registry.MustMetadata(texturedModelType)
	})

	r.registry.Seal()
	assert.PanicsWithValue(t, `atmosphere model "textured_test" registered after the app started running`, func() {
		r.register(&texturedModel{})
	})
	assert.False(t, r.registry.Registered(texturedModelType))
}

func TestModelRegistry_Default(t *testing.T) {
	registry := NewModelRegistry()
	_, ok := registry.Default()
	assert.False(t, ok)

	registry.SetDefault(DefaultNishita())
	a := registry.MustDefault()
	b := registry.MustDefault()
	assert.Equal(t, NishitaModelType, a.Type())
	assert.NotSame(t, a.Model(), b.Model(), "each default is a fresh copy")
}

func TestAtmosphereModel_CloneIsDeep(t *testing.T) {
	original := NewAtmosphereModel(DefaultNishita())
	clone := original.Clone()

	n, ok := ModelAs[*Nishita](clone)
	require.True(t, ok)
	n.SunPosition = mgl32.Vec3{0, -1, 0}
	n.SunIntensity = 1

	o, _ := ModelAs[*Nishita](original)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, o.SunPosition)
	assert.Equal(t, float32(22), o.SunIntensity)

	_, ok = ModelAs[*Gradient](clone)
	assert.False(t, ok)
}

func TestAtmosphereAccessors(t *testing.T) {
	w := NewWorld("main")
	InsertResource(w, NewAtmosphereModel(DefaultNishita()))

	var watch ResourceWatch[AtmosphereModel]
	watch.Poll(w)

	assert.Equal(t, float32(22), Atmosphere[*Nishita](w).SunIntensity)
	_, changed, _ := watch.Poll(w)
	assert.False(t, changed, "reading does not mark the model changed")

	AtmosphereMut[*Nishita](w).SunIntensity = 10
	_, changed, _ = watch.Poll(w)
	assert.True(t, changed)
	assert.Equal(t, float32(10), Atmosphere[*Nishita](w).SunIntensity)

	assert.PanicsWithValue(t, "wrong type of Atmospheric model found: have nishita, want *atmosphere.Gradient", func() {
		Atmosphere[*Gradient](w)
	})
	assert.Panics(t, func() { Atmosphere[*Nishita](NewWorld("empty")) })
}

func TestUniformLayouts(t *testing.T) {
	assert.Equal(t, uintptr(gradientUniformSize), unsafe.Sizeof(gradientUniform{}))
	assert.Equal(t, uintptr(nishitaUniformSize), unsafe.Sizeof(nishitaUniform{}))
	assert.Equal(t, uintptr(appleskyUniformSize), unsafe.Sizeof(appleskyUniform{}))
	assert.Equal(t, uintptr(nishitaPrecomputeUniformSize), unsafe.Sizeof(nishitaPrecomputeUniform{}))

	// WGSL offsets of the fields following a vec3.
	assert.Equal(t, uintptr(28), unsafe.Offsetof(nishitaUniform{}.SunIntensity))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(nishitaUniform{}.RayleighCoefficient))
	assert.Equal(t, uintptr(44), unsafe.Offsetof(appleskyUniform{}.SunAngularRadius))
	assert.Equal(t, uintptr(80), unsafe.Offsetof(appleskyUniform{}.OzoneCoefficient))
	assert.Equal(t, uintptr(108), unsafe.Offsetof(appleskyUniform{}.RayleighScaleHeight))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(nishitaPrecomputeUniform{}.OzoneCoefficient))
}

func TestNishita_AsBindGroupUploadsUniform(t *testing.T) {
	r := newTestRegistry(t)
	meta := r.registry.MustMetadata(NishitaModelType)

	group, err := DefaultNishita().AsBindGroup(meta.BindGroupLayout, r.device, NewRenderImages(), nil)
	require.NoError(t, err)
	assert.Equal(t, "nishita_bind_group", group.Label())

	buffer := r.device.Buffers[len(r.device.Buffers)-1]
	assert.Equal(t, "nishita_uniform", buffer.Label)
	assert.Len(t, buffer.Contents, nishitaUniformSize)
	assert.NotZero(t, buffer.Usage&wgpu.BufferUsageUniform)
}

func TestApplesky_RetriesUntilTableIsResident(t *testing.T) {
	r := newTestRegistry(t)
	images := NewRenderImages()
	sky := DefaultApplesky("table")
	meta := r.register(sky)

	_, err := sky.AsBindGroup(meta.BindGroupLayout, r.device, images, nil)
	assert.True(t, errors.Is(err, ErrRetryNextUpdate))

	images.pending["table"] = newAtmospherePrecomputeImage()
	prepareImages(NewWorld("render"), &RenderDevice{Device: r.device}, images)

	group, err := sky.AsBindGroup(meta.BindGroupLayout, r.device, images, nil)
	require.NoError(t, err)
	entries := group.(*gputest.BindGroup).Desc.Entries
	require.Len(t, entries, 2)
	table, _ := images.Get("table")
	assert.Same(t, table.View, entries[1].TextureView)
}

func TestApplesky_PrecomputeScalesByDensity(t *testing.T) {
	sky := DefaultApplesky("table")
	sky.AirDensity = 2
	sky.DustDensity = 0.5
	sky.OzoneDensity = 0

	pre := sky.Precompute().(*NishitaPrecompute)
	assert.Equal(t, sky.RayleighCoefficient.Mul(2), pre.RayleighCoefficient)
	assert.Equal(t, sky.MieCoefficient*0.5, pre.MieCoefficient)
	assert.Equal(t, mgl32.Vec3{}, pre.OzoneCoefficient)
	assert.Equal(t, sky.PlanetRadius, pre.PlanetRadius)
}

func TestAppleskyFromWorld(t *testing.T) {
	w := NewWorld("main")
	assert.Panics(t, func() { AppleskyFromWorld(w) })

	InsertResource(w, &AtmospherePrecomputeImage{Handle: "table"})
	assert.Equal(t, ImageHandle("table"), AppleskyFromWorld(w).Precomputed)
}
