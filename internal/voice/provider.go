package voice

import (
	"context"
	"strings"
	"time"
)

// Provider is the provider-agnostic boundary used by the screening core.
//
// Rules:
// - No provider HTTP/SDK calls outside adapters in this package.
// - Stop is idempotent: stopping an already-ended call is not an error.
// - Fetch returns (nil, nil) when the provider knows the call but has no data yet.
type Provider interface {
	Name() string
	Start(ctx context.Context, cfg SessionConfig) (providerCallID string, err error)
	Stop(ctx context.Context, providerCallID string) error
	Fetch(ctx context.Context, providerCallID string) (*CallData, error)
}

// ArtifactFetcher is implemented by providers that expose a second, slower
// lookup path (call listings, artifact stores). Retrieval uses it as a fallback.
type ArtifactFetcher interface {
	FetchArtifacts(ctx context.Context, providerCallID string) (*CallData, error)
}

// SessionConfig is everything a provider needs to run one screening interview.
type SessionConfig struct {
	FirstMessage string
	SystemPrompt string
	EndMessage   string
	Questions    []string

	// EndPhrases make the assistant hang up when spoken.
	EndPhrases []string

	MaxDuration time.Duration

	CustomerName   string
	CustomerNumber string

	// Metadata is echoed back by the provider on every event and webhook.
	Metadata map[string]string
}

const (
	MetadataScreeningCallID = "screeningCallId"
	MetadataApplicationID   = "applicationId"
)

// CallData is what a provider knows about a finished call. It is transient.
type CallData struct {
	Transcript      string `json:"transcript,omitempty"`
	Summary         string `json:"summary,omitempty"`
	AudioURL        string `json:"audio_url,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	Status          string `json:"status,omitempty"`
	EndedReason     string `json:"ended_reason,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// Usable reports whether the data carries a transcript or a summary.
func (d *CallData) Usable() bool {
	if d == nil {
		return false
	}
	return strings.TrimSpace(d.Transcript) != "" || strings.TrimSpace(d.Summary) != ""
}

// Merge fills empty fields of d from other. Non-empty fields of d win.
func (d CallData) Merge(other CallData) CallData {
	if d.Transcript == "" {
		d.Transcript = other.Transcript
	}
	if d.Summary == "" {
		d.Summary = other.Summary
	}
	if d.AudioURL == "" {
		d.AudioURL = other.AudioURL
	}
	if d.ErrorMessage == "" {
		d.ErrorMessage = other.ErrorMessage
	}
	if d.Status == "" {
		d.Status = other.Status
	}
	if d.EndedReason == "" {
		d.EndedReason = other.EndedReason
	}
	if d.DurationSeconds == 0 {
		d.DurationSeconds = other.DurationSeconds
	}
	return d
}
