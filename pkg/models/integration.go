package models

import (
	"slices"
	"time"
)

// Platform identifies a third-party system whose users are mapped onto
// project users.
type Platform string

const (
	PlatformGitHub        Platform = "GITHUB"
	PlatformDiscord       Platform = "DISCORD"
	PlatformSlack         Platform = "SLACK"
	PlatformTranscription Platform = "TRANSCRIPTION"
)

// CommsPlatforms lists the chat platforms the comms connector supports.
var CommsPlatforms = []Platform{PlatformDiscord, PlatformSlack}

// IsCommsPlatform reports whether p is handled by the comms connector.
func IsCommsPlatform(p Platform) bool {
	return slices.Contains(CommsPlatforms, p)
}

// UserMapping links a platform account to a project user.
type UserMapping struct {
	ProjectID      string   `json:"projectId"`
	Platform       Platform `json:"platform"`
	PlatformUserID string   `json:"platformUserId"`
	UserID         string   `json:"userId"`
}

// MappingKey builds the key a mapping is stored under.
func MappingKey(platform Platform, platformUserID string) string {
	return string(platform) + ":" + platformUserID
}

func (m UserMapping) Key() string        { return MappingKey(m.Platform, m.PlatformUserID) }
func (m UserMapping) Clone() UserMapping { return m }

// CommsConnection links a project to a chat server.
type CommsConnection struct {
	ProjectID string   `json:"projectId"`
	Platform  Platform `json:"platform"`
	ServerID  string   `json:"serverId"`
}

// SdlcToken is an access token registered with the SDLC connector.
// The token value is write-only and never returned.
type SdlcToken struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Platform  Platform  `json:"platform"`
	CreatedAt time.Time `json:"createdAt"`
}

// SaveSdlcTokenRequest registers a new SDLC access token.
type SaveSdlcTokenRequest struct {
	Platform Platform `json:"platform"`
	Token    string   `json:"token"`
}

// Speaker is a voice sample registered with the transcription service.
type Speaker struct {
	ID              string `json:"id"`
	UserName        string `json:"userName"`
	ProjectID       string `json:"projectId"`
	SampleExtension string `json:"sampleExtension,omitempty"`
}
