// Package store provides the in-memory entity cache backing a dashboard session.
// Projects are the root aggregate; meeting notes, reports, messages and user
// mappings live in per-project nested collections.
//
// Every write replaces the maps it touches instead of mutating them, and every
// read returns a deep copy, so observers never see a partially applied update.
package store

import (
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/models"
)

// subscriberBuffer is the per-subscriber event buffer. Events are dropped
// for subscribers that fall further behind; readers re-read state on wake-up.
const subscriberBuffer = 64

// Change describes one committed store mutation.
type Change struct {
	Version    uint64 `json:"version"`
	ProjectID  string `json:"projectId,omitempty"`
	Collection string `json:"collection"`
	ItemID     string `json:"itemId,omitempty"`
}

// ProjectPatch carries a partial project update. Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string
	Description *string
	Users       []models.User
}

// Store is a concurrency-safe, copy-on-write map of projects.
type Store struct {
	mu       sync.RWMutex
	projects map[string]models.Project
	version  uint64

	subMu    sync.Mutex
	subs     map[int]chan Change
	nextSub  int
	onChange func(Change)

	logger *zap.Logger
}

// New creates an empty store.
func New(logger *zap.Logger) *Store {
	return &Store{
		projects: make(map[string]models.Project),
		subs:     make(map[int]chan Change),
		logger:   logger.Named("store"),
	}
}

// SetOnChange registers a callback invoked after every committed change.
// The callback runs outside the store lock and may read from the store.
func (s *Store) SetOnChange(callback func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.onChange = callback
}

// Subscribe returns a channel of change events and a function that
// unsubscribes and closes it.
func (s *Store) Subscribe() (<-chan Change, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Change, subscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// Version returns the number of committed changes so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns a copy of the project with the given id.
func (s *Store) Get(id string) (models.Project, bool) {
	s.mu.RLock()
	p, ok := s.projects[id]
	s.mu.RUnlock()
	if !ok {
		return models.Project{}, false
	}
	return p.Clone(), true
}

// List returns copies of all projects ordered by name, then id.
func (s *Store) List() []models.Project {
	s.mu.RLock()
	out := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.Project) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// ReplaceAll rebuilds the store from the given projects. Afterwards the store
// contains exactly those projects.
func (s *Store) ReplaceAll(projects []models.Project) {
	next := make(map[string]models.Project, len(projects))
	for _, p := range projects {
		next[p.ID] = p.Clone()
	}

	s.mu.Lock()
	if reflect.DeepEqual(s.projects, next) {
		s.mu.Unlock()
		return
	}
	s.projects = next
	change := s.commitLocked(Change{Collection: CollectionProjects})
	s.mu.Unlock()

	s.publish(change)
}

// Upsert inserts the project or fully replaces an existing one.
func (s *Store) Upsert(id string, project models.Project) {
	project = project.Clone()
	project.ID = id

	s.mu.Lock()
	if current, ok := s.projects[id]; ok && reflect.DeepEqual(current, project) {
		s.mu.Unlock()
		return
	}
	next := maps.Clone(s.projects)
	next[id] = project
	s.projects = next
	change := s.commitLocked(Change{ProjectID: id, Collection: CollectionProjects})
	s.mu.Unlock()

	s.publish(change)
}

// Merge stores a project fetched from the backend. An unknown id is
// inserted. For a known id the name, description and users are replaced,
// and nested collections the fetched project does not carry are kept.
func (s *Store) Merge(id string, project models.Project) {
	project = project.Clone()
	project.ID = id

	s.mu.Lock()
	current, ok := s.projects[id]
	if ok {
		if project.MeetingNotes == nil {
			project.MeetingNotes = current.MeetingNotes
		}
		if project.Reports == nil {
			project.Reports = current.Reports
		}
		if project.Messages == nil {
			project.Messages = current.Messages
		}
		if project.UserMappings == nil {
			project.UserMappings = current.UserMappings
		}
		if reflect.DeepEqual(current, project) {
			s.mu.Unlock()
			return
		}
	}
	next := maps.Clone(s.projects)
	next[id] = project
	s.projects = next
	change := s.commitLocked(Change{ProjectID: id, Collection: CollectionProjects})
	s.mu.Unlock()

	s.publish(change)
}

// Patch merges the non-nil fields of patch into an existing project.
// Returns false, and changes nothing, if the project is unknown.
func (s *Store) Patch(id string, patch ProjectPatch) bool {
	return s.update(id, Change{Collection: CollectionProjects}, func(p models.Project) (models.Project, bool) {
		before := p
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Users != nil {
			p.Users = slices.Clone(patch.Users)
		}
		return p, !reflect.DeepEqual(before, p)
	})
}

// AddUsers appends users not yet assigned to the project.
func (s *Store) AddUsers(projectID string, users []models.User) bool {
	return s.update(projectID, Change{Collection: CollectionUsers}, func(p models.Project) (models.Project, bool) {
		next := slices.Clone(p.Users)
		for _, u := range users {
			if !slices.ContainsFunc(next, func(existing models.User) bool { return existing.ID == u.ID }) {
				next = append(next, u)
			}
		}
		if len(next) == len(p.Users) {
			return p, false
		}
		p.Users = next
		return p, true
	})
}

// RemoveUser removes a user from the project's ordered user list.
func (s *Store) RemoveUser(projectID, userID string) bool {
	return s.update(projectID, Change{Collection: CollectionUsers, ItemID: userID}, func(p models.Project) (models.Project, bool) {
		idx := slices.IndexFunc(p.Users, func(u models.User) bool { return u.ID == userID })
		if idx < 0 {
			return p, false
		}
		p.Users = slices.Delete(slices.Clone(p.Users), idx, idx+1)
		return p, true
	})
}

// UpsertNested inserts or replaces one item of a nested collection.
// Returns false, and changes nothing, if the project is unknown.
func UpsertNested[T models.Entity](s *Store, projectID string, c Collection[T], item T) bool {
	key := item.Key()
	item = c.clone(item)
	return s.update(projectID, Change{Collection: c.Name, ItemID: key}, func(p models.Project) (models.Project, bool) {
		current := c.get(&p)
		if existing, ok := current[key]; ok && reflect.DeepEqual(existing, item) {
			return p, false
		}
		next := make(map[string]T, len(current)+1)
		maps.Copy(next, current)
		next[key] = item
		c.set(&p, next)
		return p, true
	})
}

// ReplaceNested replaces a whole nested collection with items.
// Returns false, and changes nothing, if the project is unknown.
func ReplaceNested[T models.Entity](s *Store, projectID string, c Collection[T], items []T) bool {
	next := make(map[string]T, len(items))
	for _, item := range items {
		next[item.Key()] = c.clone(item)
	}
	return s.update(projectID, Change{Collection: c.Name}, func(p models.Project) (models.Project, bool) {
		current := c.get(&p)
		if len(current) == len(next) && reflect.DeepEqual(current, next) {
			return p, false
		}
		c.set(&p, next)
		return p, true
	})
}

// RemoveNested deletes one item of a nested collection by key.
func RemoveNested[T models.Entity](s *Store, projectID string, c Collection[T], key string) bool {
	return s.update(projectID, Change{Collection: c.Name, ItemID: key}, func(p models.Project) (models.Project, bool) {
		current := c.get(&p)
		if _, ok := current[key]; !ok {
			return p, false
		}
		next := maps.Clone(current)
		delete(next, key)
		c.set(&p, next)
		return p, true
	})
}

// Item returns a copy of one nested item.
func Item[T models.Entity](s *Store, projectID string, c Collection[T], key string) (T, bool) {
	var zero T
	s.mu.RLock()
	p, ok := s.projects[projectID]
	s.mu.RUnlock()
	if !ok {
		return zero, false
	}
	item, ok := c.get(&p)[key]
	if !ok {
		return zero, false
	}
	return c.clone(item), true
}

// Items returns copies of all items of a nested collection in no particular order.
func Items[T models.Entity](s *Store, projectID string, c Collection[T]) ([]T, bool) {
	s.mu.RLock()
	p, ok := s.projects[projectID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	current := c.get(&p)
	out := make([]T, 0, len(current))
	for _, item := range current {
		out = append(out, c.clone(item))
	}
	return out, true
}

// update applies fn to a copy of an existing project and commits the result if
// fn reports a change. Unknown projects are ignored.
func (s *Store) update(projectID string, change Change, fn func(models.Project) (models.Project, bool)) bool {
	s.mu.Lock()
	current, ok := s.projects[projectID]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("Ignoring update for unknown project",
			zap.String("project_id", projectID),
			zap.String("collection", change.Collection))
		return false
	}

	next, changed := fn(current)
	if !changed {
		s.mu.Unlock()
		return true
	}

	projects := maps.Clone(s.projects)
	projects[projectID] = next
	s.projects = projects
	change.ProjectID = projectID
	change = s.commitLocked(change)
	s.mu.Unlock()

	s.publish(change)
	return true
}

// commitLocked bumps the version. Caller must hold s.mu.
func (s *Store) commitLocked(change Change) Change {
	s.version++
	change.Version = s.version
	return change
}

func (s *Store) publish(change Change) {
	s.subMu.Lock()
	callback := s.onChange
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
	s.subMu.Unlock()

	if callback != nil {
		callback(change)
	}
}
