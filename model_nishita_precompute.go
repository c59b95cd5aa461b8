package atmosphere

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

const NishitaPrecomputeModelType ModelType = "nishita_precompute"

// Size of the sun transmittance table, altitude by sun zenith cosine.
const (
	PrecomputeWidth  = 128
	PrecomputeHeight = 512
)

// NishitaPrecompute bakes sun transmittance through the atmosphere into
// AtmospherePrecomputeImage. It is never the active model itself; models
// that need the table derive it from their own parameters.
type NishitaPrecompute struct {
	PlanetRadius        float32
	AtmosphereRadius    float32
	OzoneCoefficient    mgl32.Vec3
	RayleighCoefficient mgl32.Vec3
	RayleighScaleHeight float32
	MieCoefficient      float32
	MieScaleHeight      float32
	MieDirection        float32
}

type nishitaPrecomputeUniform struct {
	PlanetRadius        float32
	AtmosphereRadius    float32
	_                   [2]float32
	OzoneCoefficient    mgl32.Vec3
	_                   float32
	RayleighCoefficient mgl32.Vec3
	RayleighScaleHeight float32
	MieCoefficient      float32
	MieScaleHeight      float32
	MieDirection        float32
	_                   float32
}

const nishitaPrecomputeUniformSize = 64

func (n *NishitaPrecompute) ModelType() ModelType { return NishitaPrecomputeModelType }

func (n *NishitaPrecompute) Descriptor() ModelDescriptor {
	return ModelDescriptor{
		Type:       NishitaPrecomputeModelType,
		Shader:     gpu.ShaderSource{Label: "nishita_precompute.wgsl", Code: shaders.NishitaPrecomputeWGSL},
		Layout:     []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, nishitaPrecomputeUniformSize)},
		Precompute: true,
	}
}

func (n *NishitaPrecompute) AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, _ *RenderImages, _ *FallbackImage) (gpu.BindGroup, error) {
	u := nishitaPrecomputeUniform{
		PlanetRadius:        n.PlanetRadius,
		AtmosphereRadius:    n.AtmosphereRadius,
		OzoneCoefficient:    n.OzoneCoefficient,
		RayleighCoefficient: n.RayleighCoefficient,
		RayleighScaleHeight: n.RayleighScaleHeight,
		MieCoefficient:      n.MieCoefficient,
		MieScaleHeight:      n.MieScaleHeight,
		MieDirection:        n.MieDirection,
	}
	return uniformBindGroup(device, layout, string(NishitaPrecomputeModelType), wgpu.ToBytes([]nishitaPrecomputeUniform{u}))
}

func (n *NishitaPrecompute) CloneModel() Atmospheric { return deepClone(n) }
