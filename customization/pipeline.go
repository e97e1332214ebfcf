package customization

import "fmt"

// Step is a single customization. Mutating and replacing transforms are both
// normalized to this shape when they are added.
type Step[T any] func(T) (T, error)

// Mutate wraps an in-place mutation as a Step that returns its input.
func Mutate[T any](fn func(T)) Step[T] {
	return func(v T) (T, error) {
		fn(v)
		return v, nil
	}
}

// MutateE is Mutate for mutations that can fail.
func MutateE[T any](fn func(T) error) Step[T] {
	return func(v T) (T, error) {
		if err := fn(v); err != nil {
			return v, err
		}
		return v, nil
	}
}

// Replace wraps a pure transform as a Step.
func Replace[T any](fn func(T) T) Step[T] {
	return func(v T) (T, error) {
		return fn(v), nil
	}
}

// ReplaceE is Replace for transforms that can fail.
func ReplaceE[T any](fn func(T) (T, error)) Step[T] {
	return Step[T](fn)
}

// Pipeline applies its steps in registration order, feeding the output of
// each step into the next. The zero value is an empty pipeline ready to use.
// A pipeline is not safe for concurrent modification; builders finish adding
// steps before Build runs.
type Pipeline[T any] struct {
	steps []Step[T]
}

// AddCustomization appends a step.
func (p *Pipeline[T]) AddCustomization(step Step[T]) *Pipeline[T] {
	if step != nil {
		p.steps = append(p.steps, step)
	}
	return p
}

// AddMutation appends an in-place mutation.
func (p *Pipeline[T]) AddMutation(fn func(T)) *Pipeline[T] {
	if fn == nil {
		return p
	}
	return p.AddCustomization(Mutate(fn))
}

// AddReplacement appends a transform that produces a replacement value.
func (p *Pipeline[T]) AddReplacement(fn func(T) T) *Pipeline[T] {
	if fn == nil {
		return p
	}
	return p.AddCustomization(Replace(fn))
}

// Len returns the number of steps.
func (p *Pipeline[T]) Len() int {
	return len(p.steps)
}

// Customize folds every step over initial. The first failing step aborts the
// fold and its error is returned together with the value it received. Mutating
// steps may alter initial itself.
func (p *Pipeline[T]) Customize(initial T) (T, error) {
	current := initial
	for i, step := range p.steps {
		next, err := step(current)
		if err != nil {
			return current, fmt.Errorf("customization step %d failed: %w", i, err)
		}
		current = next
	}
	return current, nil
}
