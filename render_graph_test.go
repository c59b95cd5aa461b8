package atmosphere

import (
	"errors"
	"testing"

	"github.com/gekko3d/atmosphere/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceNode struct {
	name     string
	trace    *[]string
	dispatch bool
	err      error
}

func (n *traceNode) Update(*World) {
	*n.trace = append(*n.trace, "update:"+n.name)
}

func (n *traceNode) Run(ctx *RenderContext, _ *World) error {
	*n.trace = append(*n.trace, "run:"+n.name)
	if n.dispatch {
		encoder, err := ctx.CommandEncoder()
		if err != nil {
			return err
		}
		pass := encoder.BeginComputePass(n.name)
		pass.DispatchWorkgroups(1, 1, 1)
		if err := pass.End(); err != nil {
			return err
		}
	}
	return n.err
}

func TestRenderGraph_Order(t *testing.T) {
	var trace []string
	g := NewRenderGraph()
	g.AddNode("camera", &traceNode{name: "camera", trace: &trace})
	g.AddNode("sky", &traceNode{name: "sky", trace: &trace})
	g.AddNode("shadows", &traceNode{name: "shadows", trace: &trace})
	g.AddNodeEdge("sky", "camera")
	g.AddNodeEdge("shadows", "camera")
	g.AddNodeEdge("sky", "camera")

	order, err := g.sorted()
	require.NoError(t, err)
	assert.Equal(t, []string{"sky", "shadows", "camera"}, order)

	runRenderGraph(NewWorld("render"), g, &RenderDevice{Device: gputest.NewDevice()})
	assert.Equal(t, []string{
		"update:sky", "update:shadows", "update:camera",
		"run:sky", "run:shadows", "run:camera",
	}, trace)
}

func TestRenderGraph_Cycle(t *testing.T) {
	var trace []string
	g := NewRenderGraph()
	g.AddNode("a", &traceNode{name: "a", trace: &trace})
	g.AddNode("b", &traceNode{name: "b", trace: &trace})
	g.AddNodeEdge("a", "b")
	g.AddNodeEdge("b", "a")

	_, err := g.sorted()
	require.Error(t, err)
	assert.Panics(t, func() {
		runRenderGraph(NewWorld("render"), g, &RenderDevice{Device: gputest.NewDevice()})
	})
	assert.Empty(t, trace)
}

func TestRenderGraph_Panics(t *testing.T) {
	g := NewRenderGraph()
	g.AddNode("a", emptyNode{})

	assert.PanicsWithValue(t, `render graph node "a" already exists`, func() {
		g.AddNode("a", emptyNode{})
	})
	assert.PanicsWithValue(t, `render graph node "missing" not found`, func() {
		g.AddNodeEdge("a", "missing")
	})
}

func TestRenderGraph_SubmitsOnlyRecordedWork(t *testing.T) {
	device := gputest.NewDevice()
	var trace []string
	idle := NewRenderGraph()
	idle.AddNode("idle", &traceNode{name: "idle", trace: &trace})

	runRenderGraph(NewWorld("render"), idle, &RenderDevice{Device: device})
	assert.Zero(t, device.Submissions)

	busy := NewRenderGraph()
	busy.AddNode("first", &traceNode{name: "first", trace: &trace, dispatch: true})
	busy.AddNode("second", &traceNode{name: "second", trace: &trace, dispatch: true})
	runRenderGraph(NewWorld("render"), busy, &RenderDevice{Device: device})

	assert.Equal(t, 1, device.Submissions, "nodes share one encoder")
	require.Len(t, device.Dispatches, 2)
	assert.Equal(t, "first", device.Dispatches[0].Pass)
	assert.Equal(t, "second", device.Dispatches[1].Pass)
}

func TestRenderGraph_NodeErrorIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	world := NewWorld("render")
	InsertResource(world, &LoggerResource{Logger: logger})

	var trace []string
	g := NewRenderGraph()
	g.AddNode("bad", &traceNode{name: "bad", trace: &trace, err: errors.New("boom")})
	g.AddNode("good", &traceNode{name: "good", trace: &trace})

	runRenderGraph(world, g, &RenderDevice{Device: gputest.NewDevice()})
	assert.Contains(t, trace, "run:good", "a failing node does not stop the graph")
	assert.True(t, logger.has(logger.errors, `render graph node "bad": boom`))
}
