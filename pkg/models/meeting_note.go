package models

import (
	"slices"
	"time"
)

// MeetingNote is an uploaded meeting recording and its transcript.
// The transcript is produced asynchronously by the transcription service.
type MeetingNote struct {
	ID             string              `json:"id"`
	Name           string              `json:"name,omitempty"`
	Loading        bool                `json:"loading"`
	ProjectID      string              `json:"projectId,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	AudioExtension string              `json:"audioExtension,omitempty"`
	Transcript     []TranscriptSegment `json:"transcript,omitempty"`
}

// TranscriptSegment is one speaker turn of a transcript.
type TranscriptSegment struct {
	SegmentIndex int     `json:"segmentIndex"`
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	SpeakerID    string  `json:"speakerId,omitempty"`
	SpeakerName  string  `json:"speakerName,omitempty"`
}

// TranscriptUploadResponse is returned by the transcription service when an
// upload is accepted for processing.
type TranscriptUploadResponse struct {
	TranscriptID string `json:"transcriptId"`
	Loading      bool   `json:"loading"`
}

func (n MeetingNote) Key() string         { return n.ID }
func (n MeetingNote) IsLoading() bool     { return n.Loading }
func (n MeetingNote) DisplayName() string { return n.Name }

func (n MeetingNote) WithName(name string) MeetingNote {
	n.Name = name
	return n
}

func (n MeetingNote) Clone() MeetingNote {
	n.Transcript = slices.Clone(n.Transcript)
	return n
}
