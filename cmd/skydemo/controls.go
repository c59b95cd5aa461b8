package main

import (
	"github.com/chewxy/math32"
	"github.com/gekko3d/atmosphere"
)

// sunCycle moves the Nishita sun around the sky, one full day per period
// seconds. Other models are left alone.
type sunCycle struct {
	period  float32
	elapsed float32
}

func (c *sunCycle) run(t *atmosphere.Time, world *atmosphere.World) {
	c.elapsed += float32(t.Dt.Seconds())

	model, ok := atmosphere.Resource[atmosphere.AtmosphereModel](world)
	if !ok {
		return
	}
	if _, ok := atmosphere.ModelAs[*atmosphere.Nishita](model); !ok {
		return
	}
	angle := 2 * math32.Pi * c.elapsed / c.period
	nishita := atmosphere.AtmosphereMut[*atmosphere.Nishita](world)
	nishita.SunPosition[0] = 0
	nishita.SunPosition[1] = math32.Sin(angle)
	nishita.SunPosition[2] = math32.Cos(angle)
}

// skyControls maps keys to sky changes:
//
//	M      next model
//	G      remove the model, falling back to the default
//	D      toggle dithering
//	- / =  halve / double the cubemap resolution
type skyControls struct {
	models []atmosphere.Atmospheric
	next   int
}

func (c *skyControls) run(input *Input, world *atmosphere.World, registry *atmosphere.ModelRegistry, cmd *atmosphere.Commands) {
	logger := atmosphere.LoggerFrom(world)

	if input.JustPressed[KeyM] && len(c.models) > 0 {
		model := c.models[c.next%len(c.models)]
		c.next++
		if registry.Registered(model.ModelType()) {
			atmosphere.InsertResource(world, atmosphere.NewAtmosphereModel(model.CloneModel()))
			logger.Infof("sky model: %s", model.ModelType())
		}
	}
	if input.JustPressed[KeyG] {
		cmd.RemoveResources(&atmosphere.AtmosphereModel{})
		logger.Infof("sky model removed")
	}

	if !input.JustPressed[KeyD] && !input.JustPressed[KeyMinus] && !input.JustPressed[KeyEqual] {
		return
	}
	settings := atmosphere.DefaultAtmosphereSettings()
	if s, ok := atmosphere.Resource[atmosphere.AtmosphereSettings](world); ok {
		settings = *s
	}
	switch {
	case input.JustPressed[KeyD]:
		settings.Dithering = !settings.Dithering
	case input.JustPressed[KeyMinus]:
		settings.Resolution = max(atmosphere.WorkgroupSize, settings.Resolution/2)
	case input.JustPressed[KeyEqual]:
		settings.Resolution = min(4096, settings.Resolution*2)
	}
	atmosphere.InsertResource(world, &settings)
	logger.Infof("sky settings: resolution %d, dithering %t", settings.Resolution, settings.Dithering)
}
