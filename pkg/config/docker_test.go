package config

import (
	"testing"
)

func TestResolveURL_NotInDocker(t *testing.T) {
	urls := []string{
		"http://localhost:8081",
		"http://127.0.0.1:8082/api",
		"https://genai.example.com",
		"",
	}

	for _, u := range urls {
		if result := resolveURL(u, false); result != u {
			t.Errorf("resolveURL(%q, false) = %q, want unchanged", u, result)
		}
	}
}

func TestResolveURL_InDocker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://localhost:8081", "http://host.docker.internal:8081"},
		{"http://127.0.0.1:8082/api", "http://host.docker.internal:8082/api"},
		{"http://localhost", "http://host.docker.internal"},
		{"https://genai.example.com", "https://genai.example.com"},
		{"http://host.docker.internal:9000", "http://host.docker.internal:9000"},
	}

	for _, tt := range tests {
		if result := resolveURL(tt.input, true); result != tt.expected {
			t.Errorf("resolveURL(%q, true) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestResolveURLForDocker_MatchesEnvironment(t *testing.T) {
	result := ResolveURLForDocker("http://localhost:8081")
	if IsRunningInDocker() {
		if result != "http://host.docker.internal:8081" {
			t.Errorf("in Docker got %q", result)
		}
	} else if result != "http://localhost:8081" {
		t.Errorf("outside Docker got %q", result)
	}
}
