package atmosphere

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
)

const (
	AtmosphereImageLabel           = "atmosphere_image"
	AtmospherePrecomputeImageLabel = "atmosphere_precompute_image"
)

// AtmosphereImage is the sky cubemap. The sampled cube view lives on the GPU
// image; ArrayView is the 2D array view the compute pass writes through.
type AtmosphereImage struct {
	Handle ImageHandle
	// ArrayView is nil whenever the backing texture was (re)allocated and
	// not yet given a view. Only the render world ever fills it in.
	ArrayView gpu.TextureView
}

// AtmospherePrecomputeImage is the transmittance table precompute models write.
type AtmospherePrecomputeImage struct {
	Handle ImageHandle
}

func newAtmosphereImage(resolution uint32) *Image {
	return &Image{
		Label:     AtmosphereImageLabel,
		Size:      cubeExtent(resolution),
		Dimension: wgpu.TextureDimension2D,
		Format:    wgpu.TextureFormatRGBA16Float,
		Usage:     wgpu.TextureUsageCopyDst | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
		View: wgpu.TextureViewDescriptor{
			Label:           "atmosphere_image_cube_view",
			Format:          wgpu.TextureFormatRGBA16Float,
			Dimension:       wgpu.TextureViewDimensionCube,
			MipLevelCount:   1,
			ArrayLayerCount: 6,
		},
	}
}

func newAtmospherePrecomputeImage() *Image {
	return &Image{
		Label:     AtmospherePrecomputeImageLabel,
		Size:      wgpu.Extent3D{Width: PrecomputeWidth, Height: PrecomputeHeight, DepthOrArrayLayers: 1},
		Dimension: wgpu.TextureDimension2D,
		Format:    wgpu.TextureFormatRGBA32Float,
		Usage:     wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
		View: wgpu.TextureViewDescriptor{
			Label:     "atmosphere_precompute_image_view",
			Format:    wgpu.TextureFormatRGBA32Float,
			Dimension: wgpu.TextureViewDimension2D,
		},
	}
}

func cubeExtent(resolution uint32) wgpu.Extent3D {
	return wgpu.Extent3D{Width: resolution, Height: resolution, DepthOrArrayLayers: 6}
}

// AtmosphereImageBindGroupLayouts are the slot 1 layouts: the cubemap for sky
// models and the transmittance table for precompute models.
type AtmosphereImageBindGroupLayouts struct {
	Image      gpu.BindGroupLayout
	Precompute gpu.BindGroupLayout
}

func newAtmosphereImageBindGroupLayouts(device gpu.Device) (*AtmosphereImageBindGroupLayouts, error) {
	image, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "atmosphere_image_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        wgpu.TextureFormatRGBA16Float,
					ViewDimension: wgpu.TextureViewDimension2DArray,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("atmosphere image bind group layout: %w", err)
	}

	precompute, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "atmosphere_precompute_image_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        wgpu.TextureFormatRGBA32Float,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		image.Release()
		return nil, fmt.Errorf("atmosphere precompute image bind group layout: %w", err)
	}

	return &AtmosphereImageBindGroupLayouts{Image: image, Precompute: precompute}, nil
}

// AtmosphereQueue is the sky work still owed to the GPU. A pending precompute
// stage runs one frame before the cubemap stage it feeds.
type AtmosphereQueue struct {
	precompute *AtmosphereModel
	compute    *AtmosphereModel
}

func (q *AtmosphereQueue) Empty() bool { return q.compute == nil }

func (q *AtmosphereQueue) PrecomputePending() bool { return q.precompute != nil }

// Models returns the pending precompute model (nil unless queued) and the sky model.
func (q *AtmosphereQueue) Models() (precompute, compute *AtmosphereModel) {
	return q.precompute, q.compute
}

// Head is the model the next dispatch runs.
func (q *AtmosphereQueue) Head() *AtmosphereModel {
	if q.precompute != nil {
		return q.precompute
	}
	return q.compute
}

// Set queues a redraw with compute. A nil precompute keeps a precompute
// stage that is still pending, so a later model edit cannot drop it.
func (q *AtmosphereQueue) Set(precompute, compute *AtmosphereModel) {
	if precompute != nil {
		q.precompute = precompute
	}
	q.compute = compute
}

// Advance moves past the stage that was just dispatched.
func (q *AtmosphereQueue) Advance() {
	if q.precompute != nil {
		q.precompute = nil
		return
	}
	q.compute = nil
}

func (q *AtmosphereQueue) Clear() {
	q.precompute = nil
	q.compute = nil
}

// AtmosphereBindGroups is the {model, image} pair for the queue head. It is
// only ever replaced whole.
type AtmosphereBindGroups struct {
	Model gpu.BindGroup
	Image gpu.BindGroup
	// Precompute tells which stage the pair was built for.
	Precompute bool
	// Ready is set by the Queue stage and cleared after a dispatch.
	Ready bool

	head *AtmosphereModel
	view gpu.TextureView
}

func (g *AtmosphereBindGroups) replace(model, image gpu.BindGroup, head *AtmosphereModel, view gpu.TextureView, precompute bool) {
	gpu.Release(g.Model, g.Image)
	g.Model = model
	g.Image = image
	g.head = head
	g.view = view
	g.Precompute = precompute
	g.Ready = true
}

// builtFor reports whether the pair is current for the given stage inputs.
func (g *AtmosphereBindGroups) builtFor(head *AtmosphereModel, view gpu.TextureView, precompute bool) bool {
	return g.Ready && g.head == head && g.view == view && g.Precompute == precompute
}

// AtmosphereDispatched is set by the node when it recorded a dispatch this frame.
type AtmosphereDispatched struct {
	Done bool
}

type cachedMetadata struct {
	meta    AtmosphereModelMetadata
	valid   bool
	fetches int
}

// Resolve returns the metadata for t, going to the registry only when the
// cached entry belongs to another type.
func (c *cachedMetadata) Resolve(registry *ModelRegistry, t ModelType) AtmosphereModelMetadata {
	if c.valid && c.meta.Type == t {
		return c.meta
	}
	c.meta = registry.MustMetadata(t)
	c.valid = true
	c.fetches++
	return c.meta
}

func (c *cachedMetadata) Current() (AtmosphereModelMetadata, bool) {
	return c.meta, c.valid
}

// Fetches counts registry lookups, i.e. cache misses.
func (c *cachedMetadata) Fetches() int { return c.fetches }

type CachedComputeMetadata struct {
	cachedMetadata
}

type CachedPrecomputeMetadata struct {
	cachedMetadata
}

// atmosphereSettingsWatcher applies AtmosphereSettings to the cubemap and
// the skybox material in the main world.
type atmosphereSettingsWatcher struct {
	watch ResourceWatch[AtmosphereSettings]
}

func (w *atmosphereSettingsWatcher) run(world *World, images *Images, atmosphereImage *AtmosphereImage, material *AtmosphereSkyBoxMaterial) {
	settings, changed, removed := w.watch.Poll(world)
	if !changed && !removed {
		return
	}
	logger := LoggerFrom(world)

	applied := DefaultAtmosphereSettings()
	if settings != nil {
		applied = *settings
	}
	if err := applied.Validate(); err != nil {
		logger.Errorf("ignoring atmosphere settings: %v", err)
		return
	}
	if !applied.AlignedToWorkgroup() {
		logger.Warnf("resolution %d is not a multiple of %d, issues may be encountered", applied.Resolution, WorkgroupSize)
	}

	img, ok := images.Get(atmosphereImage.Handle)
	if !ok {
		logger.Errorf("atmosphere image %s is missing from Images", atmosphereImage.Handle)
		return
	}
	if img.Size != cubeExtent(applied.Resolution) {
		images.Resize(atmosphereImage.Handle, cubeExtent(applied.Resolution))
		atmosphereImage.ArrayView = nil
		MarkChanged[AtmosphereImage](world)
		logger.Debugf("resized atmosphere image to %d", applied.Resolution)
	}

	if material.Dithering != applied.Dithering {
		material.Dithering = applied.Dithering
		MarkChanged[AtmosphereSkyBoxMaterial](world)
	}
}

// atmospherePrecomputeUpdater keeps AtmosphereModelPrecompute derived from
// the active model, touching it only when the derived parameters differ.
type atmospherePrecomputeUpdater struct {
	watch ResourceWatch[AtmosphereModel]
}

func (u *atmospherePrecomputeUpdater) run(world *World) {
	model, changed, removed := u.watch.Poll(world)
	if removed {
		RemoveResource[AtmosphereModelPrecompute](world)
		return
	}
	if !changed {
		return
	}

	dep, ok := model.Model().(PrecomputeDependent)
	if !ok {
		RemoveResource[AtmosphereModelPrecompute](world)
		return
	}
	next := dep.Precompute()
	if current, ok := Resource[AtmosphereModelPrecompute](world); ok && reflect.DeepEqual(current.Model(), next) {
		return
	}
	InsertResource(world, &AtmosphereModelPrecompute{AtmosphereModel: AtmosphereModel{model: next}})
}

// prepareAtmosphereImage gives a freshly uploaded cubemap its storage view.
// It runs after PrepareAssets, so the texture it wraps is current.
func prepareAtmosphereImage(world *World, images *RenderImages, atmosphereImage *AtmosphereImage, model *AtmosphereModel, queue *AtmosphereQueue) {
	if atmosphereImage.ArrayView != nil {
		return
	}
	gpuImage, ok := images.Get(atmosphereImage.Handle)
	if !ok {
		return
	}

	view, err := gpuImage.Texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           "atmosphere_image_array_view",
		Format:          wgpu.TextureFormatRGBA16Float,
		Dimension:       wgpu.TextureViewDimension2DArray,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 6,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		LoggerFrom(world).Errorf("failed to create atmosphere image array view: %v", err)
		return
	}
	atmosphereImage.ArrayView = view
	LoggerFrom(world).Debugf("created atmosphere array view for %dx%d texture", gpuImage.Size.Width, gpuImage.Size.Height)

	// The new allocation starts empty.
	queue.Set(nil, model)
}

func queueAtmosphereBindGroups(
	world *World,
	device *RenderDevice,
	registry *ModelRegistry,
	queue *AtmosphereQueue,
	images *RenderImages,
	fallback *FallbackImage,
	layouts *AtmosphereImageBindGroupLayouts,
	atmosphereImage *AtmosphereImage,
	precomputeImage *AtmospherePrecomputeImage,
	groups *AtmosphereBindGroups,
	computeMeta *CachedComputeMetadata,
	precomputeMeta *CachedPrecomputeMetadata,
) {
	if queue.Empty() {
		return
	}

	head, precompute := queue.Head(), queue.PrecomputePending()
	layout, view, label := layouts.Image, atmosphereImage.ArrayView, "atmosphere_image_bind_group"
	if precompute {
		layout, view, label = layouts.Precompute, precomputeImageView(images, precomputeImage), "atmosphere_precompute_image_bind_group"
	}
	if groups.builtFor(head, view, precompute) {
		return
	}
	groups.Ready = false

	var meta AtmosphereModelMetadata
	if precompute {
		meta = precomputeMeta.Resolve(registry, head.Type())
	} else {
		meta = computeMeta.Resolve(registry, head.Type())
	}
	model, image, err := buildBindGroups(device.Device, meta, head, images, fallback, layout, view, label)

	logger := LoggerFrom(world)
	switch {
	case errors.Is(err, ErrRetryNextUpdate):
		logger.Debugf("atmosphere bind groups deferred: %v", err)
	case err != nil:
		logger.Errorf("failed to create atmosphere model bind group: %v", err)
		queue.Clear()
	default:
		groups.replace(model, image, head, view, precompute)
	}
}

func precomputeImageView(images *RenderImages, precomputeImage *AtmospherePrecomputeImage) gpu.TextureView {
	if gpuImage, ok := images.Get(precomputeImage.Handle); ok {
		return gpuImage.View
	}
	return nil
}

// buildBindGroups creates both groups or neither.
func buildBindGroups(device gpu.Device, meta AtmosphereModelMetadata, model *AtmosphereModel, images *RenderImages, fallback *FallbackImage, imageLayout gpu.BindGroupLayout, view gpu.TextureView, imageLabel string) (gpu.BindGroup, gpu.BindGroup, error) {
	if view == nil {
		return nil, nil, fmt.Errorf("%s: output view: %w", model.Type(), ErrRetryNextUpdate)
	}
	modelGroup, err := model.Model().AsBindGroup(meta.BindGroupLayout, device, images, fallback)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", model.Type(), err)
	}
	imageGroup, err := device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  imageLabel,
		Layout: imageLayout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
		},
	})
	if err != nil {
		modelGroup.Release()
		return nil, nil, fmt.Errorf("%s: %w", imageLabel, err)
	}
	return modelGroup, imageGroup, nil
}

func atmosphereCleanup(queue *AtmosphereQueue, dispatched *AtmosphereDispatched, groups *AtmosphereBindGroups) {
	if dispatched.Done {
		queue.Advance()
		dispatched.Done = false
		groups.Ready = false
	}
}
