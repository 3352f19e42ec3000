package models

import "time"

// Message is a chat message. UserID is empty for AI replies.
// A reply starts with Loading set while the model is generating it.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
	Content   string    `json:"content"`
	Loading   bool      `json:"loading"`
}

// SendMessageRequest is the chat payload sent to the gen-AI service.
type SendMessageRequest struct {
	Content string `json:"content"`
}

func (m Message) Key() string     { return m.ID }
func (m Message) IsLoading() bool { return m.Loading }

// DisplayName is always empty; messages carry no name.
func (m Message) DisplayName() string { return "" }

// WithName is a no-op for messages.
func (m Message) WithName(string) Message { return m }

func (m Message) Clone() Message { return m }

// IsFromAI reports whether the message was written by the assistant.
func (m Message) IsFromAI() bool { return m.UserID == "" }
