package atmosphere

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSkyBoxMesh(t *testing.T) {
	far := float32(1000)
	mesh := NewSkyBoxMesh(far)

	require.Len(t, mesh.Vertices, 8)
	require.Len(t, mesh.Indices, 36)

	size := far*math32.Sqrt(0.5) - 1
	for i, v := range mesh.Vertices {
		for axis := range 3 {
			if math32.Abs(v.Position[axis]) != size {
				t.Errorf("vertex %d axis %d: got %v, want ±%v", i, axis, v.Position[axis], size)
			}
		}
		assert.InDelta(t, 1, v.Normal.Len(), 1e-5)
		assert.True(t, v.Position.Normalize().ApproxEqualThreshold(v.Normal, 1e-5))
	}

	// Edge midpoints stay inside the far plane.
	edge := mgl32.Vec3{size, size, 0}
	assert.Less(t, edge.Len(), far)

	seen := make(map[uint16]bool)
	for _, idx := range mesh.Indices {
		require.Less(t, int(idx), len(mesh.Vertices))
		seen[idx] = true
	}
	assert.Len(t, seen, 8, "every corner is used")
}

func TestNewSkyBoxMesh_FacesPointInward(t *testing.T) {
	mesh := NewSkyBoxMesh(100)
	for tri := 0; tri < len(mesh.Indices); tri += 3 {
		a := mesh.Vertices[mesh.Indices[tri]].Position
		b := mesh.Vertices[mesh.Indices[tri+1]].Position
		c := mesh.Vertices[mesh.Indices[tri+2]].Position
		normal := b.Sub(a).Cross(c.Sub(a))
		center := a.Add(b).Add(c).Mul(1.0 / 3.0)
		if normal.Dot(center) >= 0 {
			t.Errorf("triangle %d faces outward", tri/3)
		}
	}
}

func TestSkyBoxMaterial_Specialization(t *testing.T) {
	plain := SkyBoxMaterial{SkyTexture: "sky"}
	dithered := SkyBoxMaterial{SkyTexture: "sky", Dithering: true}

	assert.NotEqual(t, plain.Key(), dithered.Key())
	assert.Equal(t, dithered.Key(), SkyBoxMaterial{SkyTexture: "other", Dithering: true}.Key())
	assert.Empty(t, plain.ShaderDefs())
	assert.Equal(t, []string{"DITHER"}, dithered.ShaderDefs())

	code, err := plain.ShaderCode()
	require.NoError(t, err)
	assert.NotContains(t, code, "fn dither")
	assert.NotContains(t, code, "#ifdef")
	assert.Contains(t, code, "fn fs_main")

	code, err = dithered.ShaderCode()
	require.NoError(t, err)
	assert.Contains(t, code, "fn dither")
	assert.Contains(t, code, "color += dither(in.clip.xy);")
}

func TestSkyBoxMaterial_AsBindGroup(t *testing.T) {
	device := gputest.NewDevice()
	fallback, err := newFallbackImage(device)
	require.NoError(t, err)

	material := SkyBoxMaterial{SkyTexture: "sky", Dithering: true}
	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "skybox_material_layout",
		Entries: material.BindGroupLayoutEntries(),
	})
	require.NoError(t, err)

	images := NewRenderImages()
	group, err := material.AsBindGroup(layout, device, images, fallback)
	require.NoError(t, err)
	entries := group.(*gputest.BindGroup).Desc.Entries
	assert.Same(t, fallback.Cube.View, entries[0].TextureView, "missing sky texture samples the fallback cube")
	assert.Same(t, fallback.Sampler, entries[1].Sampler)

	images.pending["sky"] = newAtmosphereImage(16)
	prepareImages(NewWorld("render"), &RenderDevice{Device: device}, images)
	sky, ok := images.Get("sky")
	require.True(t, ok)

	group, err = material.AsBindGroup(layout, device, images, fallback)
	require.NoError(t, err)
	view := group.(*gputest.BindGroup).Desc.Entries[0].TextureView
	assert.Same(t, sky.View, view)
	assert.Equal(t, wgpu.TextureViewDimensionCube, view.Dimension())
}

func assertIdentityQuat(t *testing.T, q mgl32.Quat) {
	t.Helper()
	assert.InDelta(t, 1, q.W, 1e-5, "got %v", q)
	for i, v := range q.V {
		assert.InDelta(t, 0, v, 1e-5, "component %d of %v", i, q)
	}
}

func TestCancelRotation(t *testing.T) {
	parent := mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}).Mul(mgl32.QuatRotate(-0.3, mgl32.Vec3{1, 0, 0}))
	assertIdentityQuat(t, parent.Mul(CancelRotation(parent)))

	// Unnormalized parents still cancel.
	scaled := mgl32.Quat{W: parent.W * 3, V: parent.V.Mul(3)}
	assertIdentityQuat(t, parent.Mul(CancelRotation(scaled)))
}

func TestSkyBoxViewProjection_IgnoresTranslation(t *testing.T) {
	projection := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 1000)
	rotation := mgl32.QuatRotate(0.4, mgl32.Vec3{0, 1, 0})

	vp := SkyBoxViewProjection(projection, rotation)
	// The view direction of the camera maps to the screen center.
	forward := rotation.Rotate(mgl32.Vec3{0, 0, -1}).Mul(500)
	clip := vp.Mul4x1(forward.Vec4(1))
	assert.InDelta(t, 0, clip.X()/clip.W(), 1e-4)
	assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-4)
}
