package main

import (
	"github.com/gekko3d/atmosphere"
	"github.com/go-gl/mathgl/mgl32"
)

// lookCamera is a camera that only turns. The sky is infinitely far away, so
// position never matters.
type lookCamera struct {
	Yaw         float32
	Pitch       float32
	Sensitivity float32
	Fov         float32
}

func (c *lookCamera) Rotation() mgl32.Quat {
	yaw := mgl32.QuatRotate(mgl32.DegToRad(-c.Yaw), mgl32.Vec3{0, 1, 0})
	pitch := mgl32.QuatRotate(mgl32.DegToRad(c.Pitch), mgl32.Vec3{1, 0, 0})
	return yaw.Mul(pitch)
}

// cameraModule turns the camera with the captured mouse and mirrors it into
// the render world.
type cameraModule struct{}

func (cameraModule) Install(app *atmosphere.App, cmd *atmosphere.Commands) {
	cmd.AddResources(&lookCamera{Pitch: 10, Sensitivity: 0.1, Fov: 70})
	app.RenderApp().Commands().AddResources(&lookCamera{})
	app.UseSystem(atmosphere.System(lookSystem).InStage(atmosphere.Update))
	app.RenderApp().UseSystem(atmosphere.System(extractCamera).InStage(atmosphere.Extract))
}

func lookSystem(input *Input, camera *lookCamera) {
	if !input.MouseCaptured {
		return
	}
	camera.Yaw += float32(input.MouseDeltaX) * camera.Sensitivity
	camera.Pitch -= float32(input.MouseDeltaY) * camera.Sensitivity

	if camera.Pitch > 89.0 {
		camera.Pitch = 89.0
	}
	if camera.Pitch < -89.0 {
		camera.Pitch = -89.0
	}
}

func extractCamera(main *atmosphere.MainWorld, camera *lookCamera) {
	if c, ok := atmosphere.Resource[lookCamera](main.World); ok {
		*camera = *c
	}
}
