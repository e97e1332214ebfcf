package extension

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/kbukum/hostkit/errors"
)

// ErrNotFound is the cause of every lookup miss.
var ErrNotFound = stderrors.New("extension not registered")

// ErrTypeMismatch is the cause when a stored instance is not a T.
var ErrTypeMismatch = stderrors.New("extension has the wrong type")

// Entry is one unkeyed registration, returned by All for diagnostics.
type Entry struct {
	Type     reflect.Type
	Instance any
}

type namedKey struct {
	name string
	typ  reflect.Type
}

// Registry is a concurrent heterogeneous store. Reads and writes never block
// each other; the maps are sync.Map so lookups stay lock-free on the hot path.
type Registry struct {
	byType sync.Map // map[reflect.Type]any
	byKey  sync.Map // map[namedKey]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// AddInstance stores instance under t unless t already has one. It reports
// whether instance was stored. Nil instances and instances not assignable to
// t are never stored.
func (r *Registry) AddInstance(t reflect.Type, instance any) bool {
	if !assignable(t, instance) {
		return false
	}
	_, loaded := r.byType.LoadOrStore(t, instance)
	return !loaded
}

// AddNamedInstance stores instance under (name, t) unless the pair is taken.
func (r *Registry) AddNamedInstance(name string, t reflect.Type, instance any) bool {
	if !assignable(t, instance) {
		return false
	}
	_, loaded := r.byKey.LoadOrStore(namedKey{name: name, typ: t}, instance)
	return !loaded
}

func assignable(t reflect.Type, instance any) bool {
	return t != nil && instance != nil && reflect.TypeOf(instance).AssignableTo(t)
}

// Instance returns the instance stored under t.
func (r *Registry) Instance(t reflect.Type) (any, bool) {
	return r.byType.Load(t)
}

// NamedInstance returns the instance stored under (name, t).
func (r *Registry) NamedInstance(name string, t reflect.Type) (any, bool) {
	return r.byKey.Load(namedKey{name: name, typ: t})
}

// All returns a snapshot of the unkeyed registrations sorted by type name.
// Named registrations are not included.
func (r *Registry) All() []Entry {
	entries := make([]Entry, 0)
	r.byType.Range(func(key, value any) bool {
		entries = append(entries, Entry{Type: key.(reflect.Type), Instance: value})
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Type.String() < entries[j].Type.String()
	})
	return entries
}

// Add registers instance under T. The first registration for T wins; later
// calls and nil instances are ignored and reported as false.
func Add[T any](r *Registry, instance T) bool {
	return r.AddInstance(reflect.TypeFor[T](), instance)
}

// AddNamed registers instance under (name, T) with the same first-wins rule.
func AddNamed[T any](r *Registry, name string, instance T) bool {
	return r.AddNamedInstance(name, reflect.TypeFor[T](), instance)
}

// Get returns the instance registered under T, or a NOT_FOUND error wrapping
// ErrNotFound.
func Get[T any](r *Registry) (T, error) {
	t := reflect.TypeFor[T]()
	v, ok := r.Instance(t)
	if !ok {
		var zero T
		return zero, errors.NotFound("extension", t.String()).WithCause(ErrNotFound)
	}
	return typed[T](t, v)
}

// GetNamed returns the instance registered under (name, T).
func GetNamed[T any](r *Registry, name string) (T, error) {
	t := reflect.TypeFor[T]()
	v, ok := r.NamedInstance(name, t)
	if !ok {
		var zero T
		return zero, errors.NotFound("extension", fmt.Sprintf("%s[%s]", t, name)).WithCause(ErrNotFound)
	}
	return typed[T](t, v)
}

func typed[T any](t reflect.Type, v any) (T, error) {
	out, ok := v.(T)
	if !ok {
		return out, errors.New(errors.ErrCodeInvalidState,
			fmt.Sprintf("extension %s holds %T", t, v)).WithCause(ErrTypeMismatch)
	}
	return out, nil
}

// TryGet returns the instance registered under T and whether it was present.
func TryGet[T any](r *Registry) (T, bool) {
	v, err := Get[T](r)
	return v, err == nil
}

// TryGetNamed returns the instance registered under (name, T) and whether it was present.
func TryGetNamed[T any](r *Registry, name string) (T, bool) {
	v, err := GetNamed[T](r, name)
	return v, err == nil
}

// MustGet is Get that panics on a miss. Use it only where a missing
// extension is a programming error.
func MustGet[T any](r *Registry) T {
	v, err := Get[T](r)
	if err != nil {
		panic(fmt.Sprintf("extension: %v", err))
	}
	return v
}
