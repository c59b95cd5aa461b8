package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gogpu/naga"
)

var ErrPipelineNotReady = errors.New("pipeline not ready")

const spirvMagic = 0x07230203

type CachedPipelineID int

type PipelineState int

const (
	PipelineQueued PipelineState = iota
	PipelineCreating
	PipelineOk
	PipelineErr
)

func (s PipelineState) String() string {
	switch s {
	case PipelineQueued:
		return "Queued"
	case PipelineCreating:
		return "Creating"
	case PipelineOk:
		return "Ok"
	case PipelineErr:
		return "Err"
	}
	return fmt.Sprintf("PipelineState(%d)", int(s))
}

// Executor runs shader compile jobs away from the frame loop.
type Executor interface {
	Go(task func())
}

type inlineExecutor struct{}

func (inlineExecutor) Go(task func()) { task() }

// InlineExecutor runs jobs on the calling goroutine. Pipelines then become
// ready on the second ProcessQueue call, which keeps tests deterministic.
func InlineExecutor() Executor { return inlineExecutor{} }

type poolExecutor struct {
	pool   worker.DynamicWorkerPool
	nextID atomic.Int64
}

// NewPoolExecutor runs jobs on a dynamic worker pool.
func NewPoolExecutor(workers int) Executor {
	if workers < 1 {
		workers = 1
	}
	return &poolExecutor{pool: worker.NewDynamicWorkerPool(workers, 256, 1*time.Second)}
}

func (e *poolExecutor) Go(task func()) {
	id := int(e.nextID.Add(1))
	e.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			task()
			return nil, nil
		},
	})
}

// ShaderValidator checks preprocessed WGSL before the device sees it.
type ShaderValidator func(label, wgsl string) error

// NagaValidator front-end compiles WGSL to SPIR-V. Diagnostics about features
// naga has not implemented are left for the driver to judge.
func NagaValidator(label, wgsl string) error {
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		if unsupportedByNaga(err) {
			return nil
		}
		return fmt.Errorf("compile shader %q: %w", label, err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return fmt.Errorf("compile shader %q: output is not a SPIR-V module", label)
	}
	return nil
}

func unsupportedByNaga(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not yet implemented") ||
		strings.Contains(msg, "not supported") ||
		strings.Contains(msg, "unsupported")
}

type cachedPipeline struct {
	desc      ComputePipelineDescriptor
	source    string
	state     PipelineState
	err       error
	pipeline  ComputePipeline
	validated chan error
}

// PipelineCache compiles compute pipelines asynchronously. Queue returns an
// id at once; ProcessQueue, called once per frame, advances every pipeline
// through Queued -> Creating -> Ok|Err.
type PipelineCache struct {
	device   Device
	executor Executor
	validate ShaderValidator

	mu        sync.Mutex
	pipelines []*cachedPipeline
}

type PipelineCacheOption func(*PipelineCache)

func WithExecutor(e Executor) PipelineCacheOption {
	return func(c *PipelineCache) { c.executor = e }
}

func WithShaderValidator(v ShaderValidator) PipelineCacheOption {
	return func(c *PipelineCache) { c.validate = v }
}

func NewPipelineCache(device Device, opts ...PipelineCacheOption) *PipelineCache {
	c := &PipelineCache{
		device:   device,
		validate: NagaValidator,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = NewPoolExecutor(runtime.NumCPU())
	}
	return c
}

func (c *PipelineCache) QueueComputePipeline(desc ComputePipelineDescriptor) CachedPipelineID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if desc.EntryPoint == "" {
		desc.EntryPoint = "main"
	}
	c.pipelines = append(c.pipelines, &cachedPipeline{desc: desc, state: PipelineQueued})
	return CachedPipelineID(len(c.pipelines) - 1)
}

func (c *PipelineCache) ProcessQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pipelines {
		switch p.state {
		case PipelineCreating:
			select {
			case err := <-p.validated:
				c.create(p, err)
			default:
			}
		case PipelineQueued:
			c.start(p)
		}
	}
}

func (c *PipelineCache) start(p *cachedPipeline) {
	code, err := p.desc.Shader.Load()
	if err == nil {
		code, err = Preprocess(code, p.desc.Defs)
	}
	if err != nil {
		p.state = PipelineErr
		p.err = err
		return
	}

	p.source = code
	p.state = PipelineCreating
	p.validated = make(chan error, 1)

	label, ch, validate := p.desc.Label, p.validated, c.validate
	c.executor.Go(func() {
		ch <- validate(label, code)
	})
}

func (c *PipelineCache) create(p *cachedPipeline, validateErr error) {
	if validateErr != nil {
		p.state = PipelineErr
		p.err = validateErr
		return
	}

	desc := p.desc
	desc.Shader = ShaderSource{Label: p.desc.Shader.Label, Code: p.source}
	desc.Defs = nil
	pipeline, err := c.device.CreateComputePipeline(&desc)
	if err != nil {
		p.state = PipelineErr
		p.err = fmt.Errorf("create compute pipeline %q: %w", desc.Label, err)
		return
	}
	p.pipeline = pipeline
	p.state = PipelineOk
}

func (c *PipelineCache) ComputePipelineState(id CachedPipelineID) (PipelineState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return PipelineErr, fmt.Errorf("unknown pipeline id %d", id)
	}
	p := c.pipelines[id]
	return p.state, p.err
}

// GetComputePipeline returns the pipeline once it is Ok.
func (c *PipelineCache) GetComputePipeline(id CachedPipelineID) (ComputePipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return nil, false
	}
	p := c.pipelines[id]
	if p.state != PipelineOk {
		return nil, false
	}
	return p.pipeline, true
}

func (c *PipelineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}

func (c *PipelineCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pipelines {
		if p.pipeline != nil {
			p.pipeline.Release()
			p.pipeline = nil
		}
	}
}
