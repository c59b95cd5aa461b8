package atmosphere

import (
	"fmt"
)

// RendererTag marks that a render device has been installed into the App.
// Only one device may drive the render world.
type RendererTag struct {
	Name string
}

// ensureSingleRenderer panics if a different renderer already claimed the render world.
func ensureSingleRenderer(app *App, name string) {
	if app == nil {
		panic("ensureSingleRenderer: app is nil")
	}
	if tag, ok := Resource[RendererTag](app.RenderWorld()); ok {
		if tag.Name != name {
			app.Logger().Errorf("Multiple renderers installed: %s and %s", tag.Name, name)
			panic(fmt.Sprintf("Multiple renderers installed: %s and %s", tag.Name, name))
		}
		return
	}
	app.RenderWorld().addResources(&RendererTag{Name: name})
}

// PluginTag records which plugins have been installed, so a plugin added twice fails loudly.
type PluginTag struct {
	names map[string]bool
}

func ensurePluginOnce(app *App, name string) {
	tag, ok := Resource[PluginTag](app.World())
	if !ok {
		tag = &PluginTag{names: map[string]bool{}}
		app.World().addResources(tag)
	}
	if tag.names[name] {
		app.Logger().Errorf("plugin %s installed twice", name)
		panic(fmt.Sprintf("plugin %s installed twice", name))
	}
	tag.names[name] = true
}
