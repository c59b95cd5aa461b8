package atmosphere

import (
	"fmt"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/google/uuid"
)

type ImageHandle string

func makeImageHandle() ImageHandle {
	return ImageHandle(uuid.NewString())
}

// Image is the CPU-side description of a texture. Data may be nil, in which
// case the GPU texture starts zeroed and is only ever written by shaders.
type Image struct {
	Label     string
	Size      wgpu.Extent3D
	Dimension wgpu.TextureDimension
	Format    wgpu.TextureFormat
	Usage     wgpu.TextureUsage
	// View describes the default view consumers sample through.
	View wgpu.TextureViewDescriptor
	Data []byte

	version uint
}

func (img *Image) Version() uint { return img.version }

// Resize changes the extent in place. Existing pixel data is discarded.
func (img *Image) Resize(size wgpu.Extent3D) {
	if img.Data != nil {
		bytesPerPixel := len(img.Data) / max(1, pixelCount(img.Size))
		img.Data = make([]byte, bytesPerPixel*pixelCount(size))
	}
	img.Size = size
	img.version++
}

func pixelCount(s wgpu.Extent3D) int {
	return int(s.Width) * int(s.Height) * int(s.DepthOrArrayLayers)
}

func (img *Image) clone() *Image {
	c := *img
	if img.Data != nil {
		c.Data = slices.Clone(img.Data)
	}
	return &c
}

// Images is the main-world asset store. It remembers which handles changed
// so extraction only ships those.
type Images struct {
	images  map[ImageHandle]*Image
	changed map[ImageHandle]struct{}
	removed map[ImageHandle]struct{}
}

func NewImages() *Images {
	return &Images{
		images:  make(map[ImageHandle]*Image),
		changed: make(map[ImageHandle]struct{}),
		removed: make(map[ImageHandle]struct{}),
	}
}

func (s *Images) Add(img *Image) ImageHandle {
	id := makeImageHandle()
	s.images[id] = img
	s.changed[id] = struct{}{}
	return id
}

func (s *Images) Get(id ImageHandle) (*Image, bool) {
	img, ok := s.images[id]
	return img, ok
}

// GetMut marks the image for re-upload.
func (s *Images) GetMut(id ImageHandle) (*Image, bool) {
	img, ok := s.images[id]
	if ok {
		s.changed[id] = struct{}{}
	}
	return img, ok
}

func (s *Images) Resize(id ImageHandle, size wgpu.Extent3D) bool {
	img, ok := s.GetMut(id)
	if !ok {
		return false
	}
	img.Resize(size)
	return true
}

func (s *Images) Remove(id ImageHandle) {
	if _, ok := s.images[id]; !ok {
		return
	}
	delete(s.images, id)
	delete(s.changed, id)
	s.removed[id] = struct{}{}
}

func (s *Images) Len() int { return len(s.images) }

// GpuImage is an uploaded Image.
type GpuImage struct {
	Texture gpu.Texture
	View    gpu.TextureView
	Size    wgpu.Extent3D
	Format  wgpu.TextureFormat
	Version uint
}

func (g *GpuImage) release() {
	gpu.Release(g.View, g.Texture)
}

// RenderImages is the render-world mirror of Images.
type RenderImages struct {
	images  map[ImageHandle]*GpuImage
	pending map[ImageHandle]*Image
	removed []ImageHandle
}

func NewRenderImages() *RenderImages {
	return &RenderImages{
		images:  make(map[ImageHandle]*GpuImage),
		pending: make(map[ImageHandle]*Image),
	}
}

// Get returns the GPU image once it has been uploaded.
func (r *RenderImages) Get(id ImageHandle) (*GpuImage, bool) {
	img, ok := r.images[id]
	return img, ok
}

func (r *RenderImages) Pending(id ImageHandle) bool {
	_, ok := r.pending[id]
	return ok
}

func extractImages(main *MainWorld, renderImages *RenderImages) {
	images, ok := Resource[Images](main.World)
	if !ok {
		return
	}
	for id := range images.changed {
		if img, ok := images.images[id]; ok {
			renderImages.pending[id] = img.clone()
		}
	}
	for id := range images.removed {
		delete(renderImages.pending, id)
		renderImages.removed = append(renderImages.removed, id)
	}
	clear(images.changed)
	clear(images.removed)
}

func prepareImages(world *World, device *RenderDevice, renderImages *RenderImages) {
	logger := LoggerFrom(world)

	for _, id := range renderImages.removed {
		if img, ok := renderImages.images[id]; ok {
			img.release()
			delete(renderImages.images, id)
		}
	}
	renderImages.removed = renderImages.removed[:0]

	for id, img := range renderImages.pending {
		gpuImage, err := uploadImage(device.Device, img)
		if err != nil {
			logger.Errorf("failed to upload image %s (%s): %v", img.Label, id, err)
			delete(renderImages.pending, id)
			continue
		}
		if old, ok := renderImages.images[id]; ok {
			old.release()
		}
		renderImages.images[id] = gpuImage
		delete(renderImages.pending, id)
		logger.Debugf("uploaded image %s %dx%dx%d v%d", img.Label, img.Size.Width, img.Size.Height, img.Size.DepthOrArrayLayers, img.version)
	}
}

func uploadImage(device gpu.Device, img *Image) (*GpuImage, error) {
	texture, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         img.Label,
		Size:          img.Size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     img.Dimension,
		Format:        img.Format,
		Usage:         img.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}

	viewDesc := img.View
	if viewDesc.Format == 0 {
		viewDesc.Format = img.Format
	}
	if viewDesc.MipLevelCount == 0 {
		viewDesc.MipLevelCount = 1
	}
	if viewDesc.ArrayLayerCount == 0 {
		viewDesc.ArrayLayerCount = img.Size.DepthOrArrayLayers
	}
	view, err := texture.CreateView(&viewDesc)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("create view: %w", err)
	}

	if len(img.Data) > 0 {
		bytesPerPixel := uint32(len(img.Data) / max(1, pixelCount(img.Size)))
		err = device.WriteTexture(texture, img.Data, &wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  img.Size.Width * bytesPerPixel,
			RowsPerImage: img.Size.Height,
		}, &img.Size)
		if err != nil {
			gpu.Release(view, texture)
			return nil, fmt.Errorf("write texture: %w", err)
		}
	}

	return &GpuImage{
		Texture: texture,
		View:    view,
		Size:    img.Size,
		Format:  img.Format,
		Version: img.version,
	}, nil
}
