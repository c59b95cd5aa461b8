package atmosphere

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

const NishitaModelType ModelType = "nishita"

// Nishita is single-scattering Rayleigh and Mie sky, ray marched per texel.
// Distances are in meters.
type Nishita struct {
	// RayOrigin is the camera position relative to the planet center.
	RayOrigin           mgl32.Vec3
	SunPosition         mgl32.Vec3
	SunIntensity        float32
	PlanetRadius        float32
	AtmosphereRadius    float32
	RayleighCoefficient mgl32.Vec3
	RayleighScaleHeight float32
	MieCoefficient      float32
	MieScaleHeight      float32
	// MieDirection is the Henyey-Greenstein asymmetry factor.
	MieDirection float32
}

func DefaultNishita() *Nishita {
	return &Nishita{
		RayOrigin:           mgl32.Vec3{0, 6372e3, 0},
		SunPosition:         mgl32.Vec3{1, 1, 1},
		SunIntensity:        22.0,
		PlanetRadius:        6371e3,
		AtmosphereRadius:    6471e3,
		RayleighCoefficient: mgl32.Vec3{5.5e-6, 13.0e-6, 22.4e-6},
		RayleighScaleHeight: 8e3,
		MieCoefficient:      21e-6,
		MieScaleHeight:      1.2e3,
		MieDirection:        0.758,
	}
}

// nishitaUniform mirrors the WGSL struct, vec3 fields padded to 16 bytes.
type nishitaUniform struct {
	RayOrigin           mgl32.Vec3
	_                   float32
	SunPosition         mgl32.Vec3
	SunIntensity        float32
	PlanetRadius        float32
	AtmosphereRadius    float32
	_                   [2]float32
	RayleighCoefficient mgl32.Vec3
	RayleighScaleHeight float32
	MieCoefficient      float32
	MieScaleHeight      float32
	MieDirection        float32
	_                   float32
}

const nishitaUniformSize = 80

func (n *Nishita) uniform() nishitaUniform {
	return nishitaUniform{
		RayOrigin:           n.RayOrigin,
		SunPosition:         n.SunPosition,
		SunIntensity:        n.SunIntensity,
		PlanetRadius:        n.PlanetRadius,
		AtmosphereRadius:    n.AtmosphereRadius,
		RayleighCoefficient: n.RayleighCoefficient,
		RayleighScaleHeight: n.RayleighScaleHeight,
		MieCoefficient:      n.MieCoefficient,
		MieScaleHeight:      n.MieScaleHeight,
		MieDirection:        n.MieDirection,
	}
}

func (n *Nishita) ModelType() ModelType { return NishitaModelType }

func (n *Nishita) Descriptor() ModelDescriptor {
	return ModelDescriptor{
		Type:   NishitaModelType,
		Shader: gpu.ShaderSource{Label: "nishita.wgsl", Code: shaders.CubeModel(shaders.NishitaWGSL)},
		Layout: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, nishitaUniformSize)},
	}
}

func (n *Nishita) AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, _ *RenderImages, _ *FallbackImage) (gpu.BindGroup, error) {
	return uniformBindGroup(device, layout, string(NishitaModelType), wgpu.ToBytes([]nishitaUniform{n.uniform()}))
}

func (n *Nishita) CloneModel() Atmospheric { return deepClone(n) }
