package atmosphere

import (
	"fmt"
	"slices"
)

type Stage struct {
	Name string
}

// Main world stages, run in this order every frame.
var (
	First      = Stage{Name: "First"}
	PreUpdate  = Stage{Name: "PreUpdate"}
	Update     = Stage{Name: "Update"}
	PostUpdate = Stage{Name: "PostUpdate"}
	Last       = Stage{Name: "Last"}
)

// Render world stages. Extract is the only stage that sees the main world.
var (
	Extract       = Stage{Name: "Extract"}
	PrepareAssets = Stage{Name: "PrepareAssets"}
	Prepare       = Stage{Name: "Prepare"}
	Queue         = Stage{Name: "Queue"}
	Render        = Stage{Name: "Render"}
	Cleanup       = Stage{Name: "Cleanup"}
)

type systemScheduleBuilder struct {
	inStage Stage
	system  systemFn
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  sched.system,
		inStage: s,
	}
}

// System wraps fn for scheduling; it lands in Update unless InStage says otherwise.
func System(system systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{
		system:  system,
		inStage: Update,
	}
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePositionBuilder struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageBefore,
		target:   s,
	}
}

func AfterStage(s Stage) stagePositionBuilder {
	return stagePositionBuilder{
		position: stageAfter,
		target:   s,
	}
}

// schedule is an ordered list of stages, each holding systems in insertion order.
type schedule struct {
	stages  []Stage
	systems map[string][]systemFn
}

func newSchedule(stages ...Stage) *schedule {
	s := &schedule{systems: make(map[string][]systemFn)}
	for _, stage := range stages {
		s.stages = append(s.stages, stage)
		s.systems[stage.Name] = make([]systemFn, 0)
	}
	return s
}

func (s *schedule) useStage(stage Stage, where stagePositionBuilder) {
	if _, ok := s.systems[stage.Name]; ok {
		panic(fmt.Sprintf("Stage %v already exists", stage.Name))
	}
	stageIdx := slices.IndexFunc(s.stages, func(st Stage) bool { return st.Name == where.target.Name })
	if -1 == stageIdx {
		panic(fmt.Sprintf("Stage %v not found", where.target.Name))
	}

	insertAt := stageIdx
	if stageAfter == where.position {
		insertAt = stageIdx + 1
	}

	s.stages = slices.Insert(s.stages, insertAt, stage)
	s.systems[stage.Name] = make([]systemFn, 0)
}

func (s *schedule) useSystem(system systemScheduleBuilder) {
	if _, ok := s.systems[system.inStage.Name]; !ok {
		panic(fmt.Sprintf("Stage %v doesn't exist", system.inStage.Name))
	}
	s.systems[system.inStage.Name] = append(s.systems[system.inStage.Name], system.system)
}

func (s *schedule) hasStage(stage Stage) bool {
	_, ok := s.systems[stage.Name]
	return ok
}
