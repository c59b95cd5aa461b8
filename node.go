package atmosphere

import (
	"errors"
	"fmt"

	"github.com/gekko3d/atmosphere/gpu"
)

const AtmosphereNodeLabel = "atmosphere"

type AtmosphereNodeState int

const (
	AtmosphereLoading AtmosphereNodeState = iota
	AtmosphereReady
)

func (s AtmosphereNodeState) String() string {
	if s == AtmosphereReady {
		return "Ready"
	}
	return "Loading"
}

// AtmosphereNode dispatches the sky compute shaders. It waits in Loading
// until the pipelines of the active model have compiled, then dispatches
// once per queued stage.
type AtmosphereNode struct {
	state AtmosphereNodeState
}

func NewAtmosphereNode() *AtmosphereNode {
	return &AtmosphereNode{state: AtmosphereLoading}
}

func (n *AtmosphereNode) State() AtmosphereNodeState { return n.state }

func (n *AtmosphereNode) Update(world *World) {
	if n.state == AtmosphereReady {
		return
	}
	registry := MustResource[ModelRegistry](world)
	cache := MustResource[gpu.PipelineCache](world)
	queue := MustResource[AtmosphereQueue](world)

	precompute, compute := queue.Models()
	if compute == nil {
		compute = MustResource[AtmosphereModel](world)
	}
	if precompute == nil {
		if p, ok := Resource[AtmosphereModelPrecompute](world); ok {
			precompute = &p.AtmosphereModel
		}
	}

	pipelines := []gpu.CachedPipelineID{
		MustResource[CachedComputeMetadata](world).Resolve(registry, compute.Type()).Pipeline,
	}
	if precompute != nil {
		pipelines = append(pipelines, MustResource[CachedPrecomputeMetadata](world).Resolve(registry, precompute.Type()).Pipeline)
	}

	for _, id := range pipelines {
		state, err := cache.ComputePipelineState(id)
		switch state {
		case gpu.PipelineOk:
			continue
		case gpu.PipelineErr:
			failedToCompile(world, err)
		}
		return
	}
	n.state = AtmosphereReady
	LoggerFrom(world).Debugf("atmosphere pipelines ready")
}

func failedToCompile(world *World, err error) {
	msg := fmt.Sprintf("atmosphere pipeline failed to compile: %v", err)
	LoggerFrom(world).Errorf("%s", msg)
	panic(msg)
}

func (n *AtmosphereNode) Run(ctx *RenderContext, world *World) error {
	if n.state != AtmosphereReady {
		return nil
	}
	queue := MustResource[AtmosphereQueue](world)
	groups := MustResource[AtmosphereBindGroups](world)
	if queue.Empty() || !groups.Ready || groups.Precompute != queue.PrecomputePending() {
		return nil
	}

	registry := MustResource[ModelRegistry](world)
	var (
		meta       AtmosphereModelMetadata
		workgroups [3]uint32
		label      string
	)
	if queue.PrecomputePending() {
		meta = MustResource[CachedPrecomputeMetadata](world).Resolve(registry, queue.Head().Type())
		workgroups = [3]uint32{PrecomputeWidth / WorkgroupSize, PrecomputeHeight / WorkgroupSize, 1}
		label = "atmosphere_precompute_pass"
	} else {
		meta = MustResource[CachedComputeMetadata](world).Resolve(registry, queue.Head().Type())
		image := MustResource[AtmosphereImage](world)
		gpuImage, ok := MustResource[RenderImages](world).Get(image.Handle)
		if !ok {
			return nil
		}
		workgroups = CubeWorkgroups(gpuImage.Size.Width)
		label = "atmosphere_pass"
	}

	pipeline, err := computePipeline(world, meta)
	if errors.Is(err, gpu.ErrPipelineNotReady) {
		return nil
	}
	if err != nil {
		failedToCompile(world, err)
	}

	encoder, err := ctx.CommandEncoder()
	if err != nil {
		return fmt.Errorf("atmosphere command encoder: %w", err)
	}
	pass := encoder.BeginComputePass(label)
	pass.SetBindGroup(0, groups.Model)
	pass.SetBindGroup(1, groups.Image)
	pass.SetPipeline(pipeline)
	pass.DispatchWorkgroups(workgroups[0], workgroups[1], workgroups[2])
	if err := pass.End(); err != nil {
		return err
	}

	MustResource[AtmosphereDispatched](world).Done = true
	return nil
}

// computePipeline returns ErrPipelineNotReady while the model's pipeline is
// still compiling, e.g. right after switching to a model not used before.
func computePipeline(world *World, meta AtmosphereModelMetadata) (gpu.ComputePipeline, error) {
	cache := MustResource[gpu.PipelineCache](world)
	state, err := cache.ComputePipelineState(meta.Pipeline)
	switch state {
	case gpu.PipelineOk:
		pipeline, _ := cache.GetComputePipeline(meta.Pipeline)
		return pipeline, nil
	case gpu.PipelineErr:
		return nil, err
	}
	return nil, fmt.Errorf("%s pipeline is %s: %w", meta.Type, state, gpu.ErrPipelineNotReady)
}

// CubeWorkgroups sizes a dispatch covering every texel of all six faces.
func CubeWorkgroups(resolution uint32) [3]uint32 {
	n := (resolution + WorkgroupSize - 1) / WorkgroupSize
	return [3]uint32{n, n, 6}
}
