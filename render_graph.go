package atmosphere

import (
	"fmt"
	"slices"

	"github.com/gekko3d/atmosphere/gpu"
)

// CameraDriverLabel is the node after which camera passes (and the skybox draw) run.
const CameraDriverLabel = "camera_driver"

// Node is one step of the render graph. Update may mutate the node and runs
// for every node before any Run; Run records GPU work.
type Node interface {
	Update(world *World)
	Run(ctx *RenderContext, world *World) error
}

type RenderGraph struct {
	nodes map[string]Node
	order []string
	edges map[string][]string
}

func NewRenderGraph() *RenderGraph {
	return &RenderGraph{
		nodes: make(map[string]Node),
		edges: make(map[string][]string),
	}
}

func (g *RenderGraph) AddNode(label string, node Node) {
	if _, ok := g.nodes[label]; ok {
		panic(fmt.Sprintf("render graph node %q already exists", label))
	}
	g.nodes[label] = node
	g.order = append(g.order, label)
}

// AddNodeEdge makes from run before to.
func (g *RenderGraph) AddNodeEdge(from, to string) {
	for _, label := range []string{from, to} {
		if _, ok := g.nodes[label]; !ok {
			panic(fmt.Sprintf("render graph node %q not found", label))
		}
	}
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
}

func (g *RenderGraph) Node(label string) (Node, bool) {
	n, ok := g.nodes[label]
	return n, ok
}

// sorted orders nodes so every edge points forward; ties keep insertion order.
func (g *RenderGraph) sorted() ([]string, error) {
	indegree := make(map[string]int, len(g.order))
	for _, label := range g.order {
		for _, to := range g.edges[label] {
			indegree[to]++
		}
	}

	out := make([]string, 0, len(g.order))
	done := make(map[string]bool, len(g.order))
	for len(out) < len(g.order) {
		progressed := false
		for _, label := range g.order {
			if done[label] || indegree[label] > 0 {
				continue
			}
			done[label] = true
			out = append(out, label)
			for _, to := range g.edges[label] {
				indegree[to]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("render graph has a cycle among %d nodes", len(g.order)-len(out))
		}
	}
	return out, nil
}

// RenderContext hands nodes a lazily created command encoder for the frame.
type RenderContext struct {
	device  gpu.Device
	encoder gpu.CommandEncoder
}

func (c *RenderContext) Device() gpu.Device { return c.device }

func (c *RenderContext) CommandEncoder() (gpu.CommandEncoder, error) {
	if c.encoder == nil {
		encoder, err := c.device.CreateCommandEncoder("render_graph")
		if err != nil {
			return nil, err
		}
		c.encoder = encoder
	}
	return c.encoder, nil
}

type emptyNode struct{}

func (emptyNode) Update(*World)                    {}
func (emptyNode) Run(*RenderContext, *World) error { return nil }

func runRenderGraph(world *World, graph *RenderGraph, device *RenderDevice) {
	order, err := graph.sorted()
	if err != nil {
		LoggerFrom(world).Errorf("%v", err)
		panic(err.Error())
	}

	for _, label := range order {
		graph.nodes[label].Update(world)
	}

	logger := LoggerFrom(world)
	ctx := &RenderContext{device: device.Device}
	for _, label := range order {
		if err := graph.nodes[label].Run(ctx, world); err != nil {
			logger.Errorf("render graph node %q: %v", label, err)
		}
	}

	if ctx.encoder == nil {
		return
	}
	buffer, err := ctx.encoder.Finish()
	if err != nil {
		logger.Errorf("finish render graph commands: %v", err)
		return
	}
	device.Device.Submit(buffer)
}
