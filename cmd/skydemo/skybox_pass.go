package main

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

const skyFar = 1000

// skyboxPass draws the atmosphere cubemap onto the swapchain. It lives in the
// render world and runs after the render graph has dispatched the sky.
type skyboxPass struct {
	gpu    *gpuState
	device *gpu.WGPUDevice

	viewBuffer   *wgpu.Buffer
	viewGroup    *wgpu.BindGroup
	viewLayout   *wgpu.BindGroupLayout
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	indexCount   uint32

	materialLayout gpu.BindGroupLayout
	materialGroup  gpu.BindGroup
	boundView      gpu.TextureView
	pipelines      map[atmosphere.SkyBoxMaterialKey]*wgpu.RenderPipeline
}

func newSkyboxPass(state *gpuState, device *gpu.WGPUDevice) (*skyboxPass, error) {
	p := &skyboxPass{
		gpu:       state,
		device:    device,
		pipelines: make(map[atmosphere.SkyBoxMaterialKey]*wgpu.RenderPipeline),
	}

	mesh := atmosphere.NewSkyBoxMesh(skyFar)
	var err error
	p.vertexBuffer, err = state.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "skybox_vertices",
		Contents: wgpu.ToBytes(mesh.Vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, err
	}
	p.indexBuffer, err = state.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "skybox_indices",
		Contents: wgpu.ToBytes(mesh.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		return nil, err
	}
	p.indexCount = uint32(len(mesh.Indices))

	p.viewBuffer, err = state.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "skybox_view",
		Size:  uint64(unsafe.Sizeof(mgl32.Mat4{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	p.viewLayout, err = state.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "skybox_view_layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeUniform,
				MinBindingSize: uint64(unsafe.Sizeof(mgl32.Mat4{})),
			},
		}},
	})
	if err != nil {
		return nil, err
	}
	p.viewGroup, err = state.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "skybox_view_bind_group",
		Layout: p.viewLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  p.viewBuffer,
			Size:    wgpu.WholeSize,
		}},
	})
	if err != nil {
		return nil, err
	}

	p.materialLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "skybox_material_layout",
		Entries: atmosphere.SkyBoxMaterial{}.BindGroupLayoutEntries(),
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (p *skyboxPass) pipeline(material atmosphere.SkyBoxMaterial) (*wgpu.RenderPipeline, error) {
	if pipeline, ok := p.pipelines[material.Key()]; ok {
		return pipeline, nil
	}

	code, err := material.ShaderCode()
	if err != nil {
		return nil, err
	}
	if err := gpu.NagaValidator(material.Shader().Label, code); err != nil {
		return nil, err
	}
	shader, err := p.gpu.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          material.Shader().Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()

	materialLayout, ok := gpu.RawBindGroupLayout(p.materialLayout)
	if !ok {
		return nil, fmt.Errorf("skybox material layout %T is not a wgpu layout", p.materialLayout)
	}
	layout, err := p.gpu.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "skybox_pipeline_layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.viewLayout, materialLayout},
	})
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	pipeline, err := p.gpu.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "skybox_pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(atmosphere.SkyBoxVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    p.gpu.surfaceConfig.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}
	p.pipelines[material.Key()] = pipeline
	return pipeline, nil
}

// materialBindGroup rebuilds the material bind group when the cubemap was
// replaced, e.g. after a resolution change.
func (p *skyboxPass) materialBindGroup(material atmosphere.SkyBoxMaterial, images *atmosphere.RenderImages, fallback *atmosphere.FallbackImage) (*wgpu.BindGroup, error) {
	view := fallback.Cube.View
	if img, ok := images.Get(material.SkyTexture); ok {
		view = img.View
	}
	if p.materialGroup == nil || p.boundView != view {
		group, err := material.AsBindGroup(p.materialLayout, p.device, images, fallback)
		if err != nil {
			return nil, err
		}
		if p.materialGroup != nil {
			p.materialGroup.Release()
		}
		p.materialGroup = group
		p.boundView = view
	}
	raw, ok := gpu.RawBindGroup(p.materialGroup)
	if !ok {
		return nil, fmt.Errorf("skybox material bind group %T is not a wgpu bind group", p.materialGroup)
	}
	return raw, nil
}

func (p *skyboxPass) draw(material atmosphere.SkyBoxMaterial, images *atmosphere.RenderImages, fallback *atmosphere.FallbackImage, camera *lookCamera) error {
	pipeline, err := p.pipeline(material)
	if err != nil {
		return fmt.Errorf("skybox pipeline: %w", err)
	}
	materialGroup, err := p.materialBindGroup(material, images, fallback)
	if err != nil {
		return fmt.Errorf("skybox material: %w", err)
	}

	aspect := float32(p.gpu.surfaceConfig.Width) / float32(p.gpu.surfaceConfig.Height)
	projection := mgl32.Perspective(mgl32.DegToRad(camera.Fov), aspect, 0.1, skyFar)
	viewProj := atmosphere.SkyBoxViewProjection(projection, camera.Rotation())
	if err := p.gpu.queue.WriteBuffer(p.viewBuffer, 0, wgpu.ToBytes(viewProj[:])); err != nil {
		return err
	}

	frame, err := p.gpu.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("get current texture: %w", err)
	}
	defer frame.Release()
	view, err := frame.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	defer view.Release()

	encoder, err := p.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, p.viewGroup, nil)
	pass.SetBindGroup(1, materialGroup, nil)
	pass.SetVertexBuffer(0, p.vertexBuffer, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(p.indexBuffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
	pass.DrawIndexed(p.indexCount, 1, 0, 0, 0)
	if err := pass.End(); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	p.gpu.queue.Submit(cmd)
	p.gpu.surface.Present()
	return nil
}

// drawSkybox runs in the render world's Render stage, after the graph.
func drawSkybox(pass *skyboxPass, material *atmosphere.AtmosphereSkyBoxMaterial, images *atmosphere.RenderImages, fallback *atmosphere.FallbackImage, camera *lookCamera, world *atmosphere.World) {
	if err := pass.draw(material.SkyBoxMaterial, images, fallback, camera); err != nil {
		atmosphere.LoggerFrom(world).Errorf("skybox: %v", err)
	}
}
