package main

import (
	"github.com/gekko3d/atmosphere"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	KeyD int = iota
	KeyG
	KeyM
	KeyTab
	KeyEscape
	KeyMinus
	KeyEqual
	MouseButtonLeft
)

// Input is the keyboard and mouse state of the current frame.
type Input struct {
	Pressed [16]bool

	JustPressed  [16]bool
	JustReleased [16]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	MouseCaptured            bool
}

// windowModule polls the window, keeps Input current and exits the app once
// the window is closed.
type windowModule struct {
	state *windowState
}

func (mod windowModule) Install(app *atmosphere.App, cmd *atmosphere.Commands) {
	cmd.AddResources(mod.state, &Input{})
	app.UseSystem(atmosphere.System(inputSystem).InStage(atmosphere.PreUpdate))
}

func inputSystem(s *windowState, input *Input, cmd *atmosphere.Commands) {
	glfw.PollEvents()
	if s.window.ShouldClose() {
		cmd.Exit()
		return
	}

	for key, glfwKey := range keyToGlfw {
		track(input, key, s.window.GetKey(glfwKey))
	}
	track(input, MouseButtonLeft, s.window.GetMouseButton(glfw.MouseButtonLeft))

	mx, my := s.window.GetCursorPos()
	if input.MouseCaptured {
		input.MouseDeltaX = mx - input.MouseX
		input.MouseDeltaY = my - input.MouseY
	} else {
		input.MouseDeltaX = 0
		input.MouseDeltaY = 0
	}
	input.MouseX = mx
	input.MouseY = my

	if input.JustPressed[KeyTab] {
		input.MouseCaptured = !input.MouseCaptured
	}
	if input.JustPressed[KeyEscape] {
		s.window.SetShouldClose(true)
	}
	if input.MouseCaptured {
		s.window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		s.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

func track(input *Input, key int, action glfw.Action) {
	input.JustPressed[key] = false
	input.JustReleased[key] = false

	if glfw.Press == action {
		if !input.Pressed[key] {
			input.JustPressed[key] = true
		}
		input.Pressed[key] = true
	} else if glfw.Release == action {
		if input.Pressed[key] {
			input.JustReleased[key] = true
		}
		input.Pressed[key] = false
	}
}

var keyToGlfw = map[int]glfw.Key{
	KeyD:      glfw.KeyD,
	KeyG:      glfw.KeyG,
	KeyM:      glfw.KeyM,
	KeyTab:    glfw.KeyTab,
	KeyEscape: glfw.KeyEscape,
	KeyMinus:  glfw.KeyMinus,
	KeyEqual:  glfw.KeyEqual,
}
