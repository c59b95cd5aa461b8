package atmosphere

// AtmospherePlugin renders a procedural sky into a cubemap. Install it after
// RenderModule. Models are registered during installation; the registry is
// sealed once every module has been installed.
type AtmospherePlugin struct {
	// Settings overrides the defaults and is inserted into the main world.
	Settings *AtmosphereSettings
	// DisableDefaultModels skips registering Nishita and Gradient. At least
	// one model must then come from Models or Model.
	DisableDefaultModels bool
	// Applesky also registers the ozone model with its precompute pass.
	Applesky bool
	// Models are registered in addition to the defaults.
	Models []Atmospheric
	// Model is the starting model. Nil means the default model.
	Model Atmospheric
}

func (mod AtmospherePlugin) Install(app *App, cmd *Commands) {
	ensurePluginOnce(app, "atmosphere")

	render := app.RenderWorld()
	device, ok := Resource[RenderDevice](render)
	if !ok {
		panic("AtmospherePlugin requires RenderModule to be installed first")
	}

	settings := DefaultAtmosphereSettings()
	if mod.Settings != nil {
		settings = *mod.Settings
	}
	if err := settings.Validate(); err != nil {
		app.Logger().Errorf("invalid atmosphere settings: %v", err)
		panic(err)
	}

	images := MustResource[Images](app.World())
	imageHandle := images.Add(newAtmosphereImage(settings.Resolution))
	precomputeHandle := images.Add(newAtmospherePrecomputeImage())

	layouts, err := newAtmosphereImageBindGroupLayouts(device.Device)
	if err != nil {
		app.Logger().Errorf("%v", err)
		panic(err)
	}

	registry := NewModelRegistry()
	material := SkyBoxMaterial{SkyTexture: imageHandle, Dithering: settings.Dithering}

	cmd.AddResources(
		registry,
		&AtmosphereImage{Handle: imageHandle},
		&AtmospherePrecomputeImage{Handle: precomputeHandle},
		&AtmosphereSkyBoxMaterial{SkyBoxMaterial: material},
	)
	if mod.Settings != nil {
		cmd.AddResources(&settings)
	}

	app.RenderApp().Commands().AddResources(
		registry,
		layouts,
		&AtmosphereSettings{Resolution: settings.Resolution, Dithering: settings.Dithering},
		&AtmosphereImage{Handle: imageHandle},
		&AtmospherePrecomputeImage{Handle: precomputeHandle},
		&AtmosphereSkyBoxMaterial{SkyBoxMaterial: material},
		&AtmosphereQueue{},
		&AtmosphereBindGroups{},
		&AtmosphereDispatched{},
		&CachedComputeMetadata{},
		&CachedPrecomputeMetadata{},
	)

	if !mod.DisableDefaultModels {
		AddAtmosphereModel(app, DefaultNishita())
		AddAtmosphereModel(app, DefaultGradient())
		registry.SetDefault(DefaultNishita())
	}
	if mod.Applesky {
		AddAtmosphereModel(app, AppleskyFromWorld(app.World()))
	}
	for _, model := range mod.Models {
		AddAtmosphereModel(app, model)
	}

	settingsWatcher := &atmosphereSettingsWatcher{}
	precomputeUpdater := &atmospherePrecomputeUpdater{}
	app.UseSystem(System(settingsWatcher.run).InStage(PostUpdate)).
		UseSystem(System(precomputeUpdater.run).InStage(PostUpdate))

	settingsExtract := &settingsExtractor{}
	modelExtract := &modelExtractor{}
	imageExtract := &imageExtractor{}
	materialExtract := &skyBoxMaterialExtractor{}
	app.RenderApp().
		UseSystem(System(settingsExtract.run).InStage(Extract)).
		UseSystem(System(modelExtract.run).InStage(Extract)).
		UseSystem(System(imageExtract.run).InStage(Extract)).
		UseSystem(System(materialExtract.run).InStage(Extract)).
		UseSystem(System(prepareAtmosphereImage).InStage(Prepare)).
		UseSystem(System(queueAtmosphereBindGroups).InStage(Queue)).
		UseSystem(System(atmosphereCleanup).InStage(Cleanup))

	graph := MustResource[RenderGraph](render)
	graph.AddNode(AtmosphereNodeLabel, NewAtmosphereNode())
	graph.AddNodeEdge(AtmosphereNodeLabel, CameraDriverLabel)
}

// Finish seals the registry and puts the starting model into both worlds.
func (mod AtmospherePlugin) Finish(app *App) {
	registry := MustResource[ModelRegistry](app.World())
	registry.Seal()

	if _, ok := registry.Default(); !ok && mod.Model != nil {
		registry.SetDefault(mod.Model.CloneModel())
	}
	def := registry.MustDefault()

	start := def
	if mod.Model != nil {
		start = NewAtmosphereModel(mod.Model.CloneModel())
	}
	registry.MustMetadata(start.Type())

	InsertResource(app.World(), start)
	InsertResource(app.RenderWorld(), start.Clone())
	app.Logger().Infof("atmosphere ready with %d models, starting with %s", len(registry.Types()), start.Type())
}
