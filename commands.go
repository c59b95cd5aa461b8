package atmosphere

import (
	"fmt"
	"reflect"
)

// Commands defers world edits to the end of the running stage.
type Commands struct {
	sub *SubApp
}

func (cmd *Commands) World() *World { return cmd.sub.world }

// AddResources inserts resources right away and panics on a duplicate type.
func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.sub.world.addResources(resources...)
	return cmd
}

// InsertResources adds or replaces resources at the next flush.
func (cmd *Commands) InsertResources(resources ...any) *Commands {
	for _, resource := range resources {
		if t := reflect.TypeOf(resource); t == nil || t.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %v must be a pointer", t))
		}
		r := resource
		cmd.sub.pending = append(cmd.sub.pending, func(w *World) {
			w.insert(r)
		})
	}
	return cmd
}

// RemoveResources removes, at the next flush, the resources whose types match
// the given values; e.g. RemoveResources(&AtmosphereSettings{}).
func (cmd *Commands) RemoveResources(resources ...any) *Commands {
	for _, resource := range resources {
		t := reflect.TypeOf(resource)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		cmd.sub.pending = append(cmd.sub.pending, func(w *World) {
			w.remove(t)
		})
	}
	return cmd
}

func (cmd *Commands) Exit() {
	cmd.InsertResources(&AppExit{})
}
