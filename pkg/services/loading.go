package services

import "sync"

// LoadTarget names a list load whose progress the dashboard shows.
type LoadTarget string

const (
	LoadProjectList LoadTarget = "projectList"
	LoadNotes       LoadTarget = "notes"
	LoadReports     LoadTarget = "reports"
	LoadMessages    LoadTarget = "messages"
)

// LoadingFlags reports which list loads are in flight.
type LoadingFlags struct {
	ProjectList bool `json:"projectList"`
	Notes       bool `json:"notes"`
	Reports     bool `json:"reports"`
	Messages    bool `json:"messages"`
}

// LoadState counts in-flight loads per target. Overlapping loads keep the
// flag set until the last one ends.
type LoadState struct {
	mu     sync.Mutex
	counts map[LoadTarget]int
}

func NewLoadState() *LoadState {
	return &LoadState{counts: make(map[LoadTarget]int)}
}

// Begin marks a load of target as started. The returned func ends it.
func (l *LoadState) Begin(target LoadTarget) func() {
	l.mu.Lock()
	l.counts[target]++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.counts[target]--
		})
	}
}

// Flags returns the current loading flags.
func (l *LoadState) Flags() LoadingFlags {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoadingFlags{
		ProjectList: l.counts[LoadProjectList] > 0,
		Notes:       l.counts[LoadNotes] > 0,
		Reports:     l.counts[LoadReports] > 0,
		Messages:    l.counts[LoadMessages] > 0,
	}
}
