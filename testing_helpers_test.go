package atmosphere

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/atmosphere/gpu"
	"github.com/gekko3d/atmosphere/gpu/gputest"
)

type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

func (l *recordingLogger) DebugEnabled() bool { return true }
func (l *recordingLogger) SetDebug(bool)      {}

func (l *recordingLogger) Debugf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugs = append(l.debugs, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Warnf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) has(lines []string, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func acceptShaders(string, string) error { return nil }

func testRenderModule(device *gputest.Device) RenderModule {
	return RenderModule{
		Device: device,
		Name:   "gputest",
		PipelineCacheOptions: []gpu.PipelineCacheOption{
			gpu.WithExecutor(gpu.InlineExecutor()),
			gpu.WithShaderValidator(acceptShaders),
		},
	}
}

// heldExecutor keeps shader compiles pending until release.
type heldExecutor struct {
	tasks []func()
}

func (e *heldExecutor) Go(task func()) { e.tasks = append(e.tasks, task) }

func (e *heldExecutor) release() {
	tasks := e.tasks
	e.tasks = nil
	for _, task := range tasks {
		task()
	}
}

type skyHarness struct {
	app    *App
	device *gputest.Device
	logger *recordingLogger
}

func newSkyHarness(t *testing.T, plugin AtmospherePlugin) *skyHarness {
	t.Helper()
	return newSkyHarnessWith(t, gputest.NewDevice(), plugin)
}

func newSkyHarnessWith(t *testing.T, device *gputest.Device, plugin AtmospherePlugin) *skyHarness {
	t.Helper()
	return newSkyHarnessRender(t, device, testRenderModule(device), plugin)
}

func newSkyHarnessRender(t *testing.T, device *gputest.Device, render RenderModule, plugin AtmospherePlugin) *skyHarness {
	t.Helper()
	logger := &recordingLogger{}
	app := NewAppBuilder().
		UseModule(
			LoggingModule{Logger: logger},
			render,
			plugin,
		).
		Build()
	return &skyHarness{app: app, device: device, logger: logger}
}

func (h *skyHarness) frames(n int) {
	for range n {
		h.app.Update()
	}
}

func (h *skyHarness) node() *AtmosphereNode {
	node, _ := MustResource[RenderGraph](h.app.RenderWorld()).Node(AtmosphereNodeLabel)
	return node.(*AtmosphereNode)
}

func (h *skyHarness) skyTextures() []*gputest.Texture {
	return h.device.TexturesLabeled(AtmosphereImageLabel)
}

func (h *skyHarness) liveSkyTexture() *gputest.Texture {
	var live *gputest.Texture
	for _, tex := range h.skyTextures() {
		if !tex.Released {
			live = tex
		}
	}
	return live
}

func (h *skyHarness) dispatchesSince(n int) []gputest.Dispatch {
	return append([]gputest.Dispatch(nil), h.device.Dispatches[n:]...)
}

func panicMessage(f func()) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprint(r)
		}
	}()
	f()
	return ""
}

const texturedModelType ModelType = "textured_test"

// texturedModel depends on a texture asset, which makes AsBindGroup retry
// until the texture is on the GPU.
type texturedModel struct {
	Texture ImageHandle
}

func (m *texturedModel) ModelType() ModelType { return texturedModelType }

func (m *texturedModel) Descriptor() ModelDescriptor {
	return ModelDescriptor{
		Type:   texturedModelType,
		Shader: gpu.ShaderSource{Label: "textured.wgsl", Code: "@compute @workgroup_size(8, 8, 1)\nfn main() {}\n"},
		Layout: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	}
}

func (m *texturedModel) AsBindGroup(layout gpu.BindGroupLayout, device gpu.Device, images *RenderImages, _ *FallbackImage) (gpu.BindGroup, error) {
	img, ok := images.Get(m.Texture)
	if !ok {
		return nil, ErrRetryNextUpdate
	}
	return device.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   "textured_test_bind_group",
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 0, TextureView: img.View}},
	})
}

func (m *texturedModel) CloneModel() Atmospheric { return deepClone(m) }

const brokenModelType ModelType = "broken_test"

// brokenModel fails bind group creation for good.
type brokenModel struct{}

func (m *brokenModel) ModelType() ModelType { return brokenModelType }

func (m *brokenModel) Descriptor() ModelDescriptor {
	return ModelDescriptor{
		Type:   brokenModelType,
		Shader: gpu.ShaderSource{Label: "broken.wgsl", Code: "fn main() {}\n"},
		Layout: []wgpu.BindGroupLayoutEntry{uniformLayoutEntry(0, 16)},
	}
}

func (m *brokenModel) AsBindGroup(gpu.BindGroupLayout, gpu.Device, *RenderImages, *FallbackImage) (gpu.BindGroup, error) {
	return nil, errors.New("uniform does not fit")
}

func (m *brokenModel) CloneModel() Atmospheric { return &brokenModel{} }
