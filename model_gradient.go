package atmosphere

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

const GradientModelType ModelType = "gradient"

// Gradient blends three colors by the view direction's height.
type Gradient struct {
	Sky     mgl32.Vec4
	Horizon mgl32.Vec4
	Ground  mgl32.Vec4
}

func DefaultGradient() *Gradient {
	return &Gradient{
		Sky:     mgl32.Vec4{0.29, 0.41, 0.50, 1.0},
		Horizon: mgl32.Vec4{0.48, 0.62, 0.69, 1.0},
		Ground:  mgl32.Vec4{0.71, 0.69, 0.57, 1.0},
	}
}

type gradientUniform struct {
	Sky     mgl32.Vec4
	Horizon mgl32.Vec4
	Ground  mgl32.Vec4
}

const gradientUniformSize = 48

func (g *Gradient) ModelType() ModelType { return GradientModelType }

func (g *Gradient) Descriptor() ModelDescriptor {
	return ModelDescriptor{
		Type:   GradientModelType,
		Shader: gpu.ShaderSource{Label: "gradient.wgsl", Code: shaders.CubeModel(shaders.GradientWGSL)},
		Layout: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, gradientUniformSize)},
	}
}

func (g *Gradient) AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, _ *RenderImages, _ *FallbackImage) (gpu.BindGroup, error) {
	u := gradientUniform{Sky: g.Sky, Horizon: g.Horizon, Ground: g.Ground}
	return uniformBindGroup(device, layout, string(GradientModelType), wgpu.ToBytes([]gradientUniform{u}))
}

func (g *Gradient) CloneModel() Atmospheric { return deepClone(g) }
