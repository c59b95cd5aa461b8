package shaders

import (
	_ "embed"
)

//go:embed cube_common.wgsl
var CubeCommonWGSL string

//go:embed gradient.wgsl
var GradientWGSL string

//go:embed nishita.wgsl
var NishitaWGSL string

//go:embed applesky.wgsl
var AppleskyWGSL string

//go:embed nishita_precompute.wgsl
var NishitaPrecomputeWGSL string

//go:embed skybox.wgsl
var SkyboxWGSL string

// CubeModel prefixes a sky model's compute shader with the cubemap output
// binding and the face direction helpers it relies on.
func CubeModel(body string) string {
	return CubeCommonWGSL + "\n" + body
}
