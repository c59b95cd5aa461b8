package atmosphere

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

const AppleskyModelType ModelType = "applesky"

// Applesky extends Nishita with an ozone layer, densities, a visible sun disk,
// and sun transmittance read from a precomputed table.
type Applesky struct {
	RayOrigin           mgl32.Vec3
	SunDirection        mgl32.Vec3
	SunIntensity        mgl32.Vec3
	SunAngularRadius    float32
	PlanetRadius        float32
	AtmosphereRadius    float32
	AirDensity          float32
	DustDensity         float32
	OzoneDensity        float32
	OzoneCoefficient    mgl32.Vec3
	RayleighCoefficient mgl32.Vec3
	RayleighScaleHeight float32
	MieCoefficient      float32
	MieScaleHeight      float32
	MieDirection        float32

	// Precomputed is the transmittance table, normally AtmospherePrecomputeImage.Handle.
	Precomputed ImageHandle
}

// DefaultApplesky needs the precompute image handle; see AppleskyFromWorld.
func DefaultApplesky(precomputed ImageHandle) *Applesky {
	return &Applesky{
		RayOrigin:           mgl32.Vec3{0, 6372e3, 0},
		SunDirection:        mgl32.Vec3{1, 1, 1},
		SunIntensity:        mgl32.Vec3{1.466, 1.756, 1.715},
		SunAngularRadius:    2.675e-2,
		PlanetRadius:        6371e3,
		AtmosphereRadius:    6471e3,
		AirDensity:          1.0,
		DustDensity:         1.0,
		OzoneDensity:        1.0,
		OzoneCoefficient:    mgl32.Vec3{7.0e-7, 15.0e-7, 3.2e-7},
		RayleighCoefficient: mgl32.Vec3{5.5e-6, 13.0e-6, 22.4e-6},
		RayleighScaleHeight: 7994,
		MieCoefficient:      21e-6,
		MieScaleHeight:      1.2e3,
		MieDirection:        0.758,
		Precomputed:         precomputed,
	}
}

// AppleskyFromWorld builds the default Applesky bound to the world's precompute image.
func AppleskyFromWorld(w *World) *Applesky {
	pre, ok := Resource[AtmospherePrecomputeImage](w)
	if !ok {
		panic("AppleskyFromWorld: no AtmospherePrecomputeImage, install AtmospherePlugin first")
	}
	return DefaultApplesky(pre.Handle)
}

type appleskyUniform struct {
	RayOrigin           mgl32.Vec3
	_                   float32
	SunDirection        mgl32.Vec3
	_                   float32
	SunIntensity        mgl32.Vec3
	SunAngularRadius    float32
	PlanetRadius        float32
	AtmosphereRadius    float32
	AirDensity          float32
	DustDensity         float32
	OzoneDensity        float32
	_                   [3]float32
	OzoneCoefficient    mgl32.Vec3
	_                   float32
	RayleighCoefficient mgl32.Vec3
	RayleighScaleHeight float32
	MieCoefficient      float32
	MieScaleHeight      float32
	MieDirection        float32
	_                   float32
}

const appleskyUniformSize = 128

func (a *Applesky) ModelType() ModelType { return AppleskyModelType }

func (a *Applesky) Descriptor() ModelDescriptor {
	return ModelDescriptor{
		Type:   AppleskyModelType,
		Shader: gpu.ShaderSource{Label: "applesky.wgsl", Code: shaders.CubeModel(shaders.AppleskyWGSL)},
		Layout: []wgpu.BindGroupLayoutEntry{
			uniformLayoutEntry(0, appleskyUniformSize),
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
		},
	}
}

func (a *Applesky) AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, images *RenderImages, _ *FallbackImage) (gpu.BindGroup, error) {
	table, ok := images.Get(a.Precomputed)
	if !ok {
		return nil, ErrRetryNextUpdate
	}
	u := appleskyUniform{
		RayOrigin:           a.RayOrigin,
		SunDirection:        a.SunDirection,
		SunIntensity:        a.SunIntensity,
		SunAngularRadius:    a.SunAngularRadius,
		PlanetRadius:        a.PlanetRadius,
		AtmosphereRadius:    a.AtmosphereRadius,
		AirDensity:          a.AirDensity,
		DustDensity:         a.DustDensity,
		OzoneDensity:        a.OzoneDensity,
		OzoneCoefficient:    a.OzoneCoefficient,
		RayleighCoefficient: a.RayleighCoefficient,
		RayleighScaleHeight: a.RayleighScaleHeight,
		MieCoefficient:      a.MieCoefficient,
		MieScaleHeight:      a.MieScaleHeight,
		MieDirection:        a.MieDirection,
	}
	return uniformBindGroup(device, layout, string(AppleskyModelType), wgpu.ToBytes([]appleskyUniform{u}),
		gpu.BindGroupEntry{Binding: 1, TextureView: table.View})
}

// Precompute derives the transmittance table parameters shared with this sky.
func (a *Applesky) Precompute() Atmospheric {
	return &NishitaPrecompute{
		PlanetRadius:        a.PlanetRadius,
		AtmosphereRadius:    a.AtmosphereRadius,
		OzoneCoefficient:    a.OzoneCoefficient.Mul(a.OzoneDensity),
		RayleighCoefficient: a.RayleighCoefficient.Mul(a.AirDensity),
		RayleighScaleHeight: a.RayleighScaleHeight,
		MieCoefficient:      a.MieCoefficient * a.DustDensity,
		MieScaleHeight:      a.MieScaleHeight,
		MieDirection:        a.MieDirection,
	}
}

func (a *Applesky) CloneModel() Atmospheric { return deepClone(a) }
