package atmosphere

import (
	"time"
)

type Time struct {
	Time  time.Time
	Dt    time.Duration
	Frame uint64
}

// TimeModule keeps Time current in the main world and mirrors it into the render world.
type TimeModule struct {
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	now := mod.Now
	if now == nil {
		now = time.Now
	}
	cmd.AddResources(&Time{
		Time: now(),
		Dt:   0,
	})
	app.UseSystem(
		System(func(timeResource *Time) { advanceTime(timeResource, now()) }).
			InStage(First),
	)

	app.RenderApp().Commands().AddResources(&Time{})
	app.RenderApp().UseSystem(System(extractTime).InStage(Extract))
}

func advanceTime(timeResource *Time, now time.Time) {
	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
	timeResource.Frame++
}

func extractTime(main *MainWorld, renderTime *Time) {
	if t, ok := Resource[Time](main.World); ok {
		*renderTime = *t
	}
}
