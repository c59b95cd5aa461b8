package atmosphere

import (
	"fmt"
)

// Atmosphere reads the active model as T. It panics when the world has no
// model or the model is of another type.
func Atmosphere[T Atmospheric](w *World) T {
	m, ok := Resource[AtmosphereModel](w)
	if !ok {
		panic(fmt.Sprintf("%s world has no AtmosphereModel", w.Name()))
	}
	return mustModelAs[T](m)
}

// AtmosphereMut is Atmosphere for writers: the model is marked changed so
// the next extraction ships it to the render world.
func AtmosphereMut[T Atmospheric](w *World) T {
	m, ok := ResourceMut[AtmosphereModel](w)
	if !ok {
		panic(fmt.Sprintf("%s world has no AtmosphereModel", w.Name()))
	}
	return mustModelAs[T](m)
}

func mustModelAs[T Atmospheric](m *AtmosphereModel) T {
	t, ok := ModelAs[T](m)
	if !ok {
		var want T
		panic(fmt.Sprintf("wrong type of Atmospheric model found: have %s, want %T", m.Type(), want))
	}
	return t
}
