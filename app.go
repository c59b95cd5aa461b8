package atmosphere

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

type Module interface {
	Install(app *App, cmd *Commands)
}

// FinishingModule is called once after every module has been installed.
type FinishingModule interface {
	Finish(app *App)
}

// AppExit stops App.Run at the end of the frame it was inserted in.
type AppExit struct{}

// MainWorld is handed to render systems during Extract, and only then.
type MainWorld struct {
	*World
}

// SubApp is a world together with the stages that run against it.
type SubApp struct {
	world     *World
	schedule  *schedule
	pending   []func(w *World)
	mainWorld *MainWorld
}

func newSubApp(name string, stages ...Stage) *SubApp {
	return &SubApp{
		world:    NewWorld(name),
		schedule: newSchedule(stages...),
	}
}

func (s *SubApp) World() *World { return s.world }

func (s *SubApp) Commands() *Commands {
	return &Commands{sub: s}
}

func (s *SubApp) UseStage(stage Stage, where stagePositionBuilder) *SubApp {
	s.schedule.useStage(stage, where)
	return s
}

func (s *SubApp) UseSystem(system systemScheduleBuilder) *SubApp {
	s.schedule.useSystem(system)
	return s
}

func (s *SubApp) run(mainWorld *World) {
	for _, stage := range s.schedule.stages {
		if stage.Name == Extract.Name && mainWorld != nil {
			s.mainWorld = &MainWorld{World: mainWorld}
		}
		for _, system := range s.schedule.systems[stage.Name] {
			s.callSystem(system)
		}
		s.mainWorld = nil
		s.FlushCommands()
	}
}

func (s *SubApp) FlushCommands() {
	if len(s.pending) == 0 {
		return
	}
	pending := s.pending
	s.pending = nil
	for _, apply := range pending {
		apply(s.world)
	}
}

var (
	typeOfCommands  = reflect.TypeOf(Commands{})
	typeOfWorld     = reflect.TypeOf(World{})
	typeOfMainWorld = reflect.TypeOf(MainWorld{})
)

func (s *SubApp) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			s.unresolved(systemValue, systemType, argType)
		}
		underlyingType := argType.Elem()

		switch {
		case underlyingType == typeOfCommands:
			args[i] = reflect.ValueOf(&Commands{sub: s})
		case underlyingType == typeOfWorld:
			args[i] = reflect.ValueOf(s.world)
		case underlyingType == typeOfMainWorld:
			if s.mainWorld == nil {
				panic(fmt.Sprintf("System %s asks for *MainWorld outside of the Extract stage", systemName(systemValue)))
			}
			args[i] = reflect.ValueOf(s.mainWorld)
		default:
			cell, ok := s.world.cell(underlyingType)
			if !ok {
				s.unresolved(systemValue, systemType, argType)
			}
			args[i] = reflect.ValueOf(cell.value)
		}
	}
	systemValue.Call(args)
}

func (s *SubApp) unresolved(systemValue reflect.Value, systemType reflect.Type, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve System dependency.\nWorld: %s\nSystem: %s\nSystem type: %s\nDependency: %s",
		s.world.name,
		systemName(systemValue),
		fmt.Sprint(systemType),
		fmt.Sprint(argType),
	)
	LoggerFrom(s.world).Errorf("%s", msg)
	panic(msg)
}

func systemName(v reflect.Value) string {
	if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
		return fn.Name()
	}
	return v.Type().String()
}

// App drives a simulation world and a render world in lockstep. Every frame
// runs the main stages, then extracts into the render world and runs the
// render stages.
type App struct {
	main    *SubApp
	render  *SubApp
	modules []Module
	frame   uint64
}

func newApp() *App {
	return &App{
		main:   newSubApp("main", First, PreUpdate, Update, PostUpdate, Last),
		render: newSubApp("render", Extract, PrepareAssets, Prepare, Queue, Render, Cleanup),
	}
}

func (app *App) World() *World { return app.main.world }

func (app *App) RenderApp() *SubApp { return app.render }

func (app *App) RenderWorld() *World { return app.render.world }

func (app *App) Commands() *Commands {
	return app.main.Commands()
}

func (app *App) UseStage(stage Stage, where stagePositionBuilder) *App {
	app.main.UseStage(stage, where)
	return app
}

func (app *App) UseSystem(system systemScheduleBuilder) *App {
	app.main.UseSystem(system)
	return app
}

func (app *App) Frame() uint64 { return app.frame }

func (app *App) addResources(resources ...any) *App {
	app.main.world.addResources(resources...)
	return app
}

// Update runs exactly one frame.
func (app *App) Update() {
	app.main.run(nil)
	app.render.run(app.main.world)
	app.frame++
}

// Run updates until a system inserts AppExit.
func (app *App) Run() {
	for !HasResource[AppExit](app.main.world) {
		app.Update()
	}
	app.Logger().Infof("exiting after %d frames", app.frame)
}
