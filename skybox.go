package atmosphere

import (
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

// SkyBoxMaterial samples the atmosphere cubemap onto the skybox mesh.
type SkyBoxMaterial struct {
	SkyTexture ImageHandle
	Dithering  bool
}

// SkyBoxMaterialKey selects a specialized skybox pipeline.
type SkyBoxMaterialKey struct {
	Dithering bool
}

func (m SkyBoxMaterial) Key() SkyBoxMaterialKey {
	return SkyBoxMaterialKey{Dithering: m.Dithering}
}

func (m SkyBoxMaterial) ShaderDefs() []string {
	if m.Dithering {
		return []string{"DITHER"}
	}
	return nil
}

func (m SkyBoxMaterial) Shader() gpu.ShaderSource {
	return gpu.ShaderSource{Label: "skybox.wgsl", Code: shaders.SkyboxWGSL}
}

// ShaderCode is the skybox shader with the material's defs applied.
func (m SkyBoxMaterial) ShaderCode() (string, error) {
	code, err := m.Shader().Load()
	if err != nil {
		return "", err
	}
	return gpu.Preprocess(code, m.ShaderDefs())
}

// BindGroupLayoutEntries describes group 1 of the skybox shader.
func (m SkyBoxMaterial) BindGroupLayoutEntries() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Texture: wgpu.TextureBindingLayout{
				SampleType:    wgpu.TextureSampleTypeFloat,
				ViewDimension: wgpu.TextureViewDimensionCube,
				Multisampled:  false,
			},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Sampler: wgpu.SamplerBindingLayout{
				Type: wgpu.SamplerBindingTypeFiltering,
			},
		},
	}
}

// AsBindGroup binds the cubemap, or the white fallback cube while the sky
// texture is not on the GPU yet.
func (m SkyBoxMaterial) AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, images *RenderImages, fallback *FallbackImage) (gpu.BindGroup, error) {
	view := fallback.Cube.View
	if img, ok := images.Get(m.SkyTexture); ok {
		view = img.View
	}
	return device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  "skybox_material_bind_group",
		Layout: layout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: fallback.Sampler},
		},
	})
}

// AtmosphereSkyBoxMaterial is the material the plugin created for the
// atmosphere cubemap. Its dithering follows AtmosphereSettings.
type AtmosphereSkyBoxMaterial struct {
	SkyBoxMaterial
}

type SkyBoxVertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

type SkyBoxMesh struct {
	Vertices []SkyBoxVertex
	Indices  []uint16
}

// NewSkyBoxMesh builds an inverted box that stays inside a far plane at far.
// Faces may touch the far sphere but corners would poke through it, hence
// the sqrt(0.5) shrink.
func NewSkyBoxMesh(far float32) *SkyBoxMesh {
	size := far*math32.Sqrt(0.5) - 1
	norm := math32.Sqrt(1.0 / 3.0)

	corners := [8][3]float32{
		{1, 1, 1},
		{-1, 1, 1},
		{1, -1, 1},
		{1, 1, -1},
		{-1, -1, 1},
		{1, -1, -1},
		{-1, 1, -1},
		{-1, -1, -1},
	}
	mesh := &SkyBoxMesh{
		Vertices: make([]SkyBoxVertex, 0, len(corners)),
		Indices: []uint16{
			0, 5, 2, 5, 0, 3, // +X
			6, 4, 7, 4, 6, 1, // -X
			0, 6, 3, 6, 0, 1, // +Y
			2, 7, 4, 7, 2, 5, // -Y
			1, 2, 4, 2, 1, 0, // +Z
			3, 7, 5, 7, 3, 6, // -Z
		},
	}
	for _, c := range corners {
		mesh.Vertices = append(mesh.Vertices, SkyBoxVertex{
			Position: mgl32.Vec3{c[0] * size, c[1] * size, c[2] * size},
			Normal:   mgl32.Vec3{c[0] * norm, c[1] * norm, c[2] * norm},
		})
	}
	return mesh
}

// AtmosphereCamera marks a camera that gets a skybox. RenderLayers, when
// set, puts the skybox on that layer only.
type AtmosphereCamera struct {
	RenderLayers *uint8
}

// CancelRotation is the local rotation a skybox parented to a camera needs
// so it stays fixed in world space.
func CancelRotation(parent mgl32.Quat) mgl32.Quat {
	return parent.Normalize().Inverse()
}

// SkyBoxViewProjection is the camera's view-projection with translation
// dropped, i.e. what the skybox sees from a camera at the origin.
func SkyBoxViewProjection(projection mgl32.Mat4, cameraRotation mgl32.Quat) mgl32.Mat4 {
	return projection.Mul4(CancelRotation(cameraRotation).Mat4())
}
