package gpu_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptAll(string, string) error { return nil }

func testLayout(t *testing.T, dev gpu.Device) gpu.BindGroupLayout {
	t.Helper()
	layout, err := dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "test_layout"})
	require.NoError(t, err)
	return layout
}

func TestPipelineCache_BecomesOkOnSecondProcess(t *testing.T) {
	dev := gputest.NewDevice()
	cache := gpu.NewPipelineCache(dev, gpu.WithExecutor(gpu.InlineExecutor()), gpu.WithShaderValidator(acceptAll))

	id := cache.QueueComputePipeline(gpu.ComputePipelineDescriptor{
		Label:   "sky",
		Layouts: []gpu.BindGroupLayout{testLayout(t, dev)},
		Shader:  gpu.ShaderSource{Label: "sky", Code: "#ifdef DITHER\nd\n#endif\nbody"},
		Defs:    []string{"DITHER"},
	})

	state, err := cache.ComputePipelineState(id)
	require.NoError(t, err)
	assert.Equal(t, gpu.PipelineQueued, state)
	_, ok := cache.GetComputePipeline(id)
	assert.False(t, ok)

	cache.ProcessQueue()
	state, _ = cache.ComputePipelineState(id)
	assert.Equal(t, gpu.PipelineCreating, state)

	cache.ProcessQueue()
	state, err = cache.ComputePipelineState(id)
	require.NoError(t, err)
	assert.Equal(t, gpu.PipelineOk, state)

	p, ok := cache.GetComputePipeline(id)
	require.True(t, ok)
	assert.Equal(t, "sky", p.Label())

	require.Len(t, dev.Pipelines, 1)
	assert.Equal(t, "d\nbody", dev.Pipelines[0].Code)
	assert.Equal(t, "main", dev.Pipelines[0].Desc.EntryPoint)
}

func TestPipelineCache_ValidationError(t *testing.T) {
	dev := gputest.NewDevice()
	boom := errors.New("bad wgsl")
	cache := gpu.NewPipelineCache(dev,
		gpu.WithExecutor(gpu.InlineExecutor()),
		gpu.WithShaderValidator(func(string, string) error { return boom }),
	)

	id := cache.QueueComputePipeline(gpu.ComputePipelineDescriptor{
		Label:  "broken",
		Shader: gpu.ShaderSource{Label: "broken", Code: "nonsense"},
	})
	cache.ProcessQueue()
	cache.ProcessQueue()

	state, err := cache.ComputePipelineState(id)
	assert.Equal(t, gpu.PipelineErr, state)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, dev.Pipelines)
}

func TestPipelineCache_DeviceError(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailPipeline("rejected", errors.New("layout mismatch"))
	cache := gpu.NewPipelineCache(dev, gpu.WithExecutor(gpu.InlineExecutor()), gpu.WithShaderValidator(acceptAll))

	id := cache.QueueComputePipeline(gpu.ComputePipelineDescriptor{
		Label:  "rejected",
		Shader: gpu.ShaderSource{Label: "rejected", Code: "x"},
	})
	cache.ProcessQueue()
	cache.ProcessQueue()

	state, err := cache.ComputePipelineState(id)
	assert.Equal(t, gpu.PipelineErr, state)
	assert.ErrorContains(t, err, "layout mismatch")
}

func TestPipelineCache_PreprocessError(t *testing.T) {
	cache := gpu.NewPipelineCache(gputest.NewDevice(), gpu.WithExecutor(gpu.InlineExecutor()), gpu.WithShaderValidator(acceptAll))

	id := cache.QueueComputePipeline(gpu.ComputePipelineDescriptor{
		Label:  "unterminated",
		Shader: gpu.ShaderSource{Label: "unterminated", Code: "#ifdef A\n"},
	})
	cache.ProcessQueue()

	state, err := cache.ComputePipelineState(id)
	assert.Equal(t, gpu.PipelineErr, state)
	assert.Error(t, err)
}

func TestPipelineCache_UnknownID(t *testing.T) {
	cache := gpu.NewPipelineCache(gputest.NewDevice(), gpu.WithExecutor(gpu.InlineExecutor()))

	state, err := cache.ComputePipelineState(42)
	assert.Equal(t, gpu.PipelineErr, state)
	assert.Error(t, err)
	_, ok := cache.GetComputePipeline(-1)
	assert.False(t, ok)
}

func TestPipelineCache_WorkerPoolExecutor(t *testing.T) {
	dev := gputest.NewDevice()
	cache := gpu.NewPipelineCache(dev, gpu.WithExecutor(gpu.NewPoolExecutor(2)), gpu.WithShaderValidator(acceptAll))

	id := cache.QueueComputePipeline(gpu.ComputePipelineDescriptor{
		Label:  "pooled",
		Shader: gpu.ShaderSource{Label: "pooled", Code: "x"},
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		cache.ProcessQueue()
		if state, _ := cache.ComputePipelineState(id); state == gpu.PipelineOk {
			break
		}
		time.Sleep(time.Millisecond)
	}

	state, err := cache.ComputePipelineState(id)
	require.NoError(t, err)
	assert.Equal(t, gpu.PipelineOk, state)
}

func TestPipelineState_String(t *testing.T) {
	assert.Equal(t, "Queued", gpu.PipelineQueued.String())
	assert.Equal(t, "Ok", gpu.PipelineOk.String())
	assert.Equal(t, "PipelineState(9)", gpu.PipelineState(9).String())
}
