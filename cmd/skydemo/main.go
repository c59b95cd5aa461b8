// Command skydemo renders the procedural sky into a window.
package main

import (
	"flag"
	"math"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/atmosphere"
	"github.com/gekko3d/atmosphere/gpu"
)

// skyboxModule draws the sky cubemap to the window.
type skyboxModule struct {
	gpu    *gpuState
	device *gpu.WGPUDevice
}

func (mod skyboxModule) Install(app *atmosphere.App, cmd *atmosphere.Commands) {
	pass, err := newSkyboxPass(mod.gpu, mod.device)
	if err != nil {
		app.Logger().Errorf("failed to create skybox pass: %v", err)
		panic(err)
	}
	app.RenderApp().Commands().AddResources(pass)
	app.RenderApp().UseSystem(atmosphere.System(drawSkybox).InStage(atmosphere.Render))
}

func main() {
	settingsPath := flag.String("settings", "", "YAML file with atmosphere settings")
	debug := flag.Bool("debug", false, "log debug messages")
	applesky := flag.Bool("applesky", false, "register the ozone sky model")
	dayLength := flag.Float64("day", 60, "seconds per simulated day")
	flag.Parse()

	window := createWindowState(1280, 720, "Sky")
	defer glfw.Terminate()
	defer window.window.Destroy()

	state := createGpuState(window)
	device := gpu.NewWGPUDevice(state.device)
	window.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		state.resize(width, height)
	})

	plugin := atmosphere.AtmospherePlugin{Applesky: *applesky}
	if *settingsPath != "" {
		settings, err := atmosphere.LoadSettingsFile(*settingsPath)
		if err != nil {
			panic(err)
		}
		plugin.Settings = &settings
	}

	app := atmosphere.NewAppBuilder().
		UseModule(
			atmosphere.LoggingModule{Prefix: "sky", Debug: *debug},
			atmosphere.TimeModule{},
			windowModule{state: window},
			cameraModule{},
			atmosphere.RenderModule{Device: device, Name: "wgpu"},
			plugin,
			skyboxModule{gpu: state, device: device},
		).
		Build()

	controls := &skyControls{models: []atmosphere.Atmospheric{atmosphere.DefaultGradient(), atmosphere.DefaultNishita()}}
	if *applesky {
		controls.models = append(controls.models, atmosphere.AppleskyFromWorld(app.World()))
	}
	cycle := &sunCycle{period: float32(math.Max(*dayLength, 1))}
	app.UseSystem(atmosphere.System(controls.run).InStage(atmosphere.Update)).
		UseSystem(atmosphere.System(cycle.run).InStage(atmosphere.Update))

	app.Run()
}
