package polling

import (
	"context"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/store"
)

// Kind describes one pollable entity type.
type Kind[T models.Named[T]] struct {
	// Name identifies the kind in logs and chain snapshots.
	Name string
	// Label prefixes default display names ("Note 42"). Empty disables naming.
	Label      string
	Collection store.Collection[T]
}

var (
	MeetingNoteKind = Kind[models.MeetingNote]{Name: "note", Label: "Note", Collection: store.MeetingNotes}
	ReportKind      = Kind[models.Report]{Name: "report", Label: "Report", Collection: store.Reports}
	MessageKind     = Kind[models.Message]{Name: "message", Collection: store.Messages}
)

// FetchFunc re-fetches one entity by id.
type FetchFunc[T any] func(ctx context.Context, id string) (T, error)

// Submit runs submit and writes its result into projectID's collection. A
// result that is still loading starts a poll chain using fetch. On error
// nothing is written and no chain starts.
func Submit[T models.Named[T]](ctx context.Context, e *Engine, kind Kind[T], projectID string, submit func(context.Context) (T, error), fetch FetchFunc[T]) (T, error) {
	item, err := submit(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return Track(e, kind, projectID, item, fetch), nil
}

// SubmitMany is Submit for submissions that answer with several entities,
// such as a chat message and its pending reply.
func SubmitMany[T models.Named[T]](ctx context.Context, e *Engine, kind Kind[T], projectID string, submit func(context.Context) ([]T, error), fetch FetchFunc[T]) ([]T, error) {
	items, err := submit(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = Track(e, kind, projectID, item, fetch)
	}
	return out, nil
}

// LoadAll lists a collection, replaces the stored collection with the result
// and starts one poll chain per loading element. If the project is not in
// the store nothing is written and no chain starts.
func LoadAll[T models.Named[T]](ctx context.Context, e *Engine, kind Kind[T], projectID string, list func(context.Context) ([]T, error), fetch FetchFunc[T]) ([]T, error) {
	items, err := list(ctx)
	if err != nil {
		return nil, err
	}

	named := make([]T, len(items))
	for i, item := range items {
		named[i] = models.ApplyDefaultName(kind.Label, item)
	}
	if !store.ReplaceNested(e.store, projectID, kind.Collection, named) {
		e.logger.Debug("Skipping poll chains for unknown project",
			zap.String("kind", kind.Name),
			zap.String("project_id", projectID))
		return named, nil
	}

	for _, item := range named {
		if item.IsLoading() {
			startChain(e, kind, projectID, item.Key(), fetch)
		}
	}
	return named, nil
}

// Track names and stores an entity the caller already has, starting a poll
// chain if it is loading. It returns the stored form.
func Track[T models.Named[T]](e *Engine, kind Kind[T], projectID string, item T, fetch FetchFunc[T]) T {
	item = models.ApplyDefaultName(kind.Label, item)
	store.UpsertNested(e.store, projectID, kind.Collection, item)
	if item.IsLoading() {
		startChain(e, kind, projectID, item.Key(), fetch)
	}
	return item
}

// startChain adapts a typed fetch into the engine's untyped poll loop.
// A completed entity is named and upserted; loading results are not written.
func startChain[T models.Named[T]](e *Engine, kind Kind[T], projectID, entityID string, fetch FetchFunc[T]) {
	e.start(kind.Name, kind.Collection.Name, projectID, entityID, func(ctx context.Context) (bool, error) {
		item, err := fetch(ctx, entityID)
		if err != nil {
			return true, err
		}
		if item.IsLoading() {
			return true, nil
		}
		store.UpsertNested(e.store, projectID, kind.Collection, models.ApplyDefaultName(kind.Label, item))
		return false, nil
	})
}
