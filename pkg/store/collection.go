package store

import "github.com/trace-app/trace-dashboard/pkg/models"

// Collection describes one nested, id-keyed collection of a project.
type Collection[T models.Entity] struct {
	Name  string
	get   func(p *models.Project) map[string]T
	set   func(p *models.Project, items map[string]T)
	clone func(T) T
}

// Collection names used in change events.
const (
	CollectionProjects     = "projects"
	CollectionUsers        = "users"
	CollectionMeetingNotes = "meetingNotes"
	CollectionReports      = "reports"
	CollectionMessages     = "messages"
	CollectionUserMappings = "userMappings"
)

var (
	MeetingNotes = Collection[models.MeetingNote]{
		Name:  CollectionMeetingNotes,
		get:   func(p *models.Project) map[string]models.MeetingNote { return p.MeetingNotes },
		set:   func(p *models.Project, m map[string]models.MeetingNote) { p.MeetingNotes = m },
		clone: models.MeetingNote.Clone,
	}
	Reports = Collection[models.Report]{
		Name:  CollectionReports,
		get:   func(p *models.Project) map[string]models.Report { return p.Reports },
		set:   func(p *models.Project, m map[string]models.Report) { p.Reports = m },
		clone: models.Report.Clone,
	}
	Messages = Collection[models.Message]{
		Name:  CollectionMessages,
		get:   func(p *models.Project) map[string]models.Message { return p.Messages },
		set:   func(p *models.Project, m map[string]models.Message) { p.Messages = m },
		clone: models.Message.Clone,
	}
	UserMappings = Collection[models.UserMapping]{
		Name:  CollectionUserMappings,
		get:   func(p *models.Project) map[string]models.UserMapping { return p.UserMappings },
		set:   func(p *models.Project, m map[string]models.UserMapping) { p.UserMappings = m },
		clone: models.UserMapping.Clone,
	}
)
