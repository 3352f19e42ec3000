package models

import (
	"slices"
	"time"
)

// Report is an AI-generated summary of project activity over a time window.
type Report struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Loading     bool      `json:"loading"`
	ProjectID   string    `json:"projectId,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	UserIDs     []string  `json:"userIds,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Summary     string    `json:"summary,omitempty"`
}

// ReportParams selects the window and users a report covers.
type ReportParams struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	UserIDs   []string  `json:"userIds"`
}

func (r Report) Key() string         { return r.ID }
func (r Report) IsLoading() bool     { return r.Loading }
func (r Report) DisplayName() string { return r.Name }

func (r Report) WithName(name string) Report {
	r.Name = name
	return r
}

func (r Report) Clone() Report {
	r.UserIDs = slices.Clone(r.UserIDs)
	return r
}
