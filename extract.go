package atmosphere

// Extraction is the only place where state crosses from the main world into
// the render world. Each system keeps its own watch, so "changed" means
// changed since that system last looked.

type settingsExtractor struct {
	watch ResourceWatch[AtmosphereSettings]
}

func (e *settingsExtractor) run(main *MainWorld, settings *AtmosphereSettings, model *AtmosphereModel, queue *AtmosphereQueue) {
	mainSettings, changed, removed := e.watch.Poll(main.World)
	switch {
	case removed:
		*settings = DefaultAtmosphereSettings()
	case changed:
		// The main world keeps its old cubemap for invalid settings, so do we.
		if mainSettings.Validate() != nil {
			return
		}
		*settings = *mainSettings
	default:
		return
	}
	// The cubemap is redrawn by the view rebuild when the size changed; a
	// dithering toggle alone still warrants a fresh dispatch.
	queue.Set(nil, model)
}

type modelExtractor struct {
	model      ResourceWatch[AtmosphereModel]
	precompute ResourceWatch[AtmosphereModelPrecompute]
}

func (e *modelExtractor) run(main *MainWorld, world *World, registry *ModelRegistry, queue *AtmosphereQueue) {
	model, changed, removed := e.model.Poll(main.World)
	pre, preChanged, preRemoved := e.precompute.Poll(main.World)

	switch {
	case removed:
		def := registry.MustDefault()
		InsertResource(world, def)
		var precompute *AtmosphereModel
		if dep, ok := def.Model().(PrecomputeDependent); ok {
			p := &AtmosphereModelPrecompute{AtmosphereModel: *NewAtmosphereModel(dep.Precompute())}
			InsertResource(world, p)
			precompute = &p.AtmosphereModel
		} else {
			RemoveResource[AtmosphereModelPrecompute](world)
		}
		queue.Set(precompute, def)
		LoggerFrom(world).Debugf("atmosphere model removed, using default %s", def.Type())
		return

	case changed:
		compute := model.Clone()
		InsertResource(world, compute)
		var precompute *AtmosphereModel
		if pre != nil && preChanged {
			p := pre.Clone()
			InsertResource(world, p)
			precompute = &p.AtmosphereModel
		}
		queue.Set(precompute, compute)
	}

	if preRemoved {
		RemoveResource[AtmosphereModelPrecompute](world)
	}
}

type imageExtractor struct {
	watch ResourceWatch[AtmosphereImage]
}

func (e *imageExtractor) run(main *MainWorld, image *AtmosphereImage) {
	mainImage, changed, _ := e.watch.Poll(main.World)
	if !changed {
		return
	}
	// The texture behind the old view is being replaced this frame.
	if image.ArrayView != nil {
		image.ArrayView.Release()
	}
	image.Handle = mainImage.Handle
	image.ArrayView = nil
}

type skyBoxMaterialExtractor struct {
	watch ResourceWatch[AtmosphereSkyBoxMaterial]
}

func (e *skyBoxMaterialExtractor) run(main *MainWorld, world *World) {
	material, changed, _ := e.watch.Poll(main.World)
	if !changed {
		return
	}
	InsertResource(world, &AtmosphereSkyBoxMaterial{SkyBoxMaterial: material.SkyBoxMaterial})
}
