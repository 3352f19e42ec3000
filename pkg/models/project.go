// Package models contains domain types for the trace dashboard.
package models

import "slices"

// Project is the root aggregate held in the entity store.
// Nested collections are keyed by entity id (or mapping key for user mappings).
type Project struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Users        []User                 `json:"users"`
	MeetingNotes map[string]MeetingNote `json:"meetingNotes,omitempty"`
	Reports      map[string]Report      `json:"reports,omitempty"`
	Messages     map[string]Message     `json:"messages,omitempty"`
	UserMappings map[string]UserMapping `json:"userMappings,omitempty"`
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Clone returns a deep copy of the project. Mutating the copy never
// affects the original.
func (p Project) Clone() Project {
	out := p
	out.Users = slices.Clone(p.Users)
	out.MeetingNotes = cloneMap(p.MeetingNotes, MeetingNote.Clone)
	out.Reports = cloneMap(p.Reports, Report.Clone)
	out.Messages = cloneMap(p.Messages, Message.Clone)
	out.UserMappings = cloneMap(p.UserMappings, UserMapping.Clone)
	return out
}

// HasUser reports whether the user is assigned to the project.
func (p Project) HasUser(userID string) bool {
	return slices.ContainsFunc(p.Users, func(u User) bool { return u.ID == userID })
}

func cloneMap[T any](m map[string]T, clone func(T) T) map[string]T {
	if m == nil {
		return nil
	}
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}
