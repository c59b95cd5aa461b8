package atmosphere

import (
	"fmt"
	"reflect"
)

// Tick orders resource mutations inside one World.
type Tick uint64

type resourceCell struct {
	value   any
	added   Tick
	changed Tick
}

// World is a typed resource store. The main world and the render world are
// separate instances; nothing but extraction reads across them.
type World struct {
	name      string
	resources map[reflect.Type]*resourceCell
	tick      Tick
}

func NewWorld(name string) *World {
	return &World{
		name:      name,
		resources: make(map[reflect.Type]*resourceCell),
	}
}

func (w *World) Name() string { return w.name }

// ChangeTick is the tick of the most recent mutation.
func (w *World) ChangeTick() Tick { return w.tick }

func (w *World) nextTick() Tick {
	w.tick++
	return w.tick
}

// insert stores a pointer resource. Replacing an existing value counts as a change.
func (w *World) insert(resource any) {
	resourceType := reflect.TypeOf(resource)
	if resourceType == nil || resourceType.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("resource %v must be a pointer", resourceType))
	}
	tick := w.nextTick()
	if cell, ok := w.resources[resourceType.Elem()]; ok {
		cell.value = resource
		cell.changed = tick
		return
	}
	w.resources[resourceType.Elem()] = &resourceCell{value: resource, added: tick, changed: tick}
}

func (w *World) addResources(resources ...any) {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := w.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		w.insert(resource)
	}
}

func (w *World) remove(t reflect.Type) bool {
	if _, ok := w.resources[t]; !ok {
		return false
	}
	w.nextTick()
	delete(w.resources, t)
	return true
}

func (w *World) cell(t reflect.Type) (*resourceCell, bool) {
	cell, ok := w.resources[t]
	return cell, ok
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// InsertResource adds or replaces the T resource and marks it changed.
func InsertResource[T any](w *World, value *T) {
	w.insert(value)
}

func RemoveResource[T any](w *World) bool {
	return w.remove(typeOf[T]())
}

func HasResource[T any](w *World) bool {
	_, ok := w.resources[typeOf[T]()]
	return ok
}

// Resource reads T without touching its change tick.
func Resource[T any](w *World) (*T, bool) {
	cell, ok := w.cell(typeOf[T]())
	if !ok {
		return nil, false
	}
	return cell.value.(*T), true
}

// ResourceMut returns T and marks it changed, whether or not the caller writes.
func ResourceMut[T any](w *World) (*T, bool) {
	cell, ok := w.cell(typeOf[T]())
	if !ok {
		return nil, false
	}
	cell.changed = w.nextTick()
	return cell.value.(*T), true
}

func MustResource[T any](w *World) *T {
	v, ok := Resource[T](w)
	if !ok {
		panic(fmt.Sprintf("%s world has no %s resource", w.name, typeOf[T]()))
	}
	return v
}

// MarkChanged bumps the change tick of T without handing out a pointer.
func MarkChanged[T any](w *World) {
	if cell, ok := w.cell(typeOf[T]()); ok {
		cell.changed = w.nextTick()
	}
}

// ResourceWatch remembers what one system saw of T on its previous poll:
// whether T existed and the world tick at that time.
type ResourceWatch[T any] struct {
	existed  bool
	lastSeen Tick
}

// Poll reports T's current value, whether it was added or changed since the
// previous poll, and whether it disappeared since the previous poll.
func (rw *ResourceWatch[T]) Poll(w *World) (value *T, changed bool, removed bool) {
	cell, ok := w.cell(typeOf[T]())
	defer func() { rw.lastSeen = w.tick }()

	if !ok {
		removed = rw.existed
		rw.existed = false
		return nil, false, removed
	}
	rw.existed = true
	return cell.value.(*T), cell.changed > rw.lastSeen, false
}
