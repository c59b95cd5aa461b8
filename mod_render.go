package atmosphere

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
)

// RenderDevice is the render world's handle on the graphics device.
type RenderDevice struct {
	gpu.Device
}

// FallbackImage stands in for textures a model references but does not have yet.
type FallbackImage struct {
	D2      *GpuImage
	Cube    *GpuImage
	Sampler gpu.Sampler
}

func newFallbackImage(device gpu.Device) (*FallbackImage, error) {
	white := []byte{255, 255, 255, 255}

	d2, err := uploadImage(device, &Image{
		Label:     "fallback_image_d2",
		Size:      wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		Dimension: wgpu.TextureDimension2D,
		Format:    wgpu.TextureFormatRGBA8Unorm,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		View:      wgpu.TextureViewDescriptor{Dimension: wgpu.TextureViewDimension2D},
		Data:      white,
	})
	if err != nil {
		return nil, err
	}

	cubeData := make([]byte, 0, 6*len(white))
	for range 6 {
		cubeData = append(cubeData, white...)
	}
	cube, err := uploadImage(device, &Image{
		Label:     "fallback_image_cube",
		Size:      wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 6},
		Dimension: wgpu.TextureDimension2D,
		Format:    wgpu.TextureFormatRGBA8Unorm,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		View:      wgpu.TextureViewDescriptor{Dimension: wgpu.TextureViewDimensionCube},
		Data:      cubeData,
	})
	if err != nil {
		d2.release()
		return nil, err
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "fallback_sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		d2.release()
		cube.release()
		return nil, err
	}

	return &FallbackImage{D2: d2, Cube: cube, Sampler: sampler}, nil
}

// RenderModule wires a graphics device into the render world: image uploads,
// the pipeline cache and the render graph.
type RenderModule struct {
	Device gpu.Device
	// Name distinguishes renderers for the single-renderer check.
	Name                 string
	PipelineCacheOptions []gpu.PipelineCacheOption
}

func (mod RenderModule) Install(app *App, cmd *Commands) {
	if mod.Device == nil {
		panic("RenderModule: Device is nil")
	}
	name := mod.Name
	if name == "" {
		name = fmt.Sprintf("%T", mod.Device)
	}
	ensureSingleRenderer(app, name)

	fallback, err := newFallbackImage(mod.Device)
	if err != nil {
		app.Logger().Errorf("failed to create fallback image: %v", err)
		panic(err)
	}

	graph := NewRenderGraph()
	graph.AddNode(CameraDriverLabel, emptyNode{})

	cmd.AddResources(NewImages())
	app.RenderApp().Commands().AddResources(
		&RenderDevice{Device: mod.Device},
		gpu.NewPipelineCache(mod.Device, mod.PipelineCacheOptions...),
		NewRenderImages(),
		fallback,
		graph,
	)

	app.RenderApp().
		UseSystem(System(extractImages).InStage(Extract)).
		UseSystem(System(prepareImages).InStage(PrepareAssets)).
		UseSystem(System(processPipelineQueue).InStage(Prepare)).
		UseSystem(System(runRenderGraph).InStage(Render))
}

func processPipelineQueue(cache *gpu.PipelineCache) {
	cache.ProcessQueue()
}
