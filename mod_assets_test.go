package atmosphere

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h uint32) *Image {
	return &Image{
		Label:     "test_image",
		Size:      wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		Dimension: wgpu.TextureDimension2D,
		Format:    wgpu.TextureFormatRGBA8Unorm,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Data:      make([]byte, w*h*4),
	}
}

func TestImages_Resize(t *testing.T) {
	images := NewImages()
	id := images.Add(testImage(2, 2))
	other := images.Add(testImage(1, 1))
	assert.NotEqual(t, id, other)
	assert.Equal(t, 2, images.Len())

	require.True(t, images.Resize(id, wgpu.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1}))
	img, ok := images.Get(id)
	require.True(t, ok)
	assert.Equal(t, uint32(4), img.Size.Width)
	assert.Len(t, img.Data, 4*4*4)
	assert.Equal(t, uint(1), img.Version())

	assert.False(t, images.Resize("missing", wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1}))
}

func TestImages_ExtractAndPrepare(t *testing.T) {
	device := gputest.NewDevice()
	main := NewWorld("main")
	render := NewWorld("render")
	images := NewImages()
	InsertResource(main, images)
	renderImages := NewRenderImages()
	renderDevice := &RenderDevice{Device: device}

	id := images.Add(testImage(2, 2))
	extractImages(&MainWorld{World: main}, renderImages)
	assert.True(t, renderImages.Pending(id))
	_, ok := renderImages.Get(id)
	assert.False(t, ok, "not resident before prepare")

	prepareImages(render, renderDevice, renderImages)
	first, ok := renderImages.Get(id)
	require.True(t, ok)
	assert.False(t, renderImages.Pending(id))
	texture := first.Texture.(*gputest.Texture)
	assert.Equal(t, 1, texture.Uploads)
	assert.Len(t, texture.Data, 2*2*4)

	// Unchanged images are not shipped again.
	extractImages(&MainWorld{World: main}, renderImages)
	assert.False(t, renderImages.Pending(id))

	images.Resize(id, wgpu.Extent3D{Width: 8, Height: 8, DepthOrArrayLayers: 1})
	extractImages(&MainWorld{World: main}, renderImages)
	prepareImages(render, renderDevice, renderImages)
	second, _ := renderImages.Get(id)
	assert.NotSame(t, first, second)
	assert.True(t, texture.Released, "replaced texture is released")
	assert.Equal(t, uint32(8), second.Size.Width)
	assert.Equal(t, uint(1), second.Version)

	images.Remove(id)
	images.Remove(id)
	extractImages(&MainWorld{World: main}, renderImages)
	prepareImages(render, renderDevice, renderImages)
	_, ok = renderImages.Get(id)
	assert.False(t, ok)
	assert.True(t, second.Texture.(*gputest.Texture).Released)
}

func TestImages_ExtractedCopyIsIndependent(t *testing.T) {
	main := NewWorld("main")
	images := NewImages()
	InsertResource(main, images)
	renderImages := NewRenderImages()

	id := images.Add(testImage(1, 1))
	extractImages(&MainWorld{World: main}, renderImages)

	img, _ := images.GetMut(id)
	img.Data[0] = 42
	assert.Zero(t, renderImages.pending[id].Data[0])
}

func TestImages_UploadFailureIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	render := NewWorld("render")
	InsertResource(render, &LoggerResource{Logger: logger})
	renderImages := NewRenderImages()

	img := testImage(1, 1)
	img.Size = wgpu.Extent3D{}
	img.Data = nil
	renderImages.pending["empty"] = img

	prepareImages(render, &RenderDevice{Device: gputest.NewDevice()}, renderImages)
	_, ok := renderImages.Get("empty")
	assert.False(t, ok)
	assert.False(t, renderImages.Pending("empty"), "a failed upload waits for the next change")
	assert.True(t, logger.has(logger.errors, "failed to upload image test_image"))
}

func TestFallbackImage(t *testing.T) {
	device := gputest.NewDevice()
	fallback, err := newFallbackImage(device)
	require.NoError(t, err)

	assert.Equal(t, wgpu.TextureViewDimensionCube, fallback.Cube.View.Dimension())
	assert.Equal(t, uint32(6), fallback.Cube.Size.DepthOrArrayLayers)
	assert.Equal(t, wgpu.TextureViewDimension2D, fallback.D2.View.Dimension())
	cube := fallback.Cube.Texture.(*gputest.Texture)
	assert.Equal(t, []byte{255, 255, 255, 255}, cube.Data[:4])
}
