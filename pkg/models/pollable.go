package models

// Entity is anything stored in a project's nested collection.
type Entity interface {
	Key() string
}

// Pollable is an entity produced by an asynchronous server-side job.
// While Loading is true the job is still running and the entity is a placeholder.
type Pollable interface {
	Entity
	IsLoading() bool
}

// Named is a pollable entity that can receive a default display name.
// T is the concrete entity type so WithName can return it by value.
type Named[T any] interface {
	Pollable
	DisplayName() string
	WithName(name string) T
}

// ApplyDefaultName names an unnamed entity "<label> <id>".
// An empty label disables naming; entities that already have a name keep it.
func ApplyDefaultName[T Named[T]](label string, item T) T {
	if label == "" || item.DisplayName() != "" {
		return item
	}
	return item.WithName(label + " " + item.Key())
}
