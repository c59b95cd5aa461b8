package atmosphere

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	return &AppBuilder{app: newApp()}
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)

	return b
}

func (b *AppBuilder) Build() *App {
	app := b.app
	commands := app.Commands()

	for _, module := range b.modules {
		module.Install(app, commands)
		app.main.FlushCommands()
		app.render.FlushCommands()
	}
	for _, module := range b.modules {
		if f, ok := module.(FinishingModule); ok {
			f.Finish(app)
		}
	}
	app.modules = b.modules

	return app
}
