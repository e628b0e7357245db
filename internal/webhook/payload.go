// Package webhook ingests asynchronous push notifications from the voice
// provider. It is an alternate path to polling and feeds the same finalizer.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"screening-platform/internal/voice"

	"github.com/go-playground/validator/v10"
)

// Payload is the provider webhook body. Providers either send it bare or
// wrapped as {"message": {...}}.
type Payload struct {
	Type   string   `json:"type" validate:"required,max=64"`
	CallID string   `json:"callId" validate:"omitempty,max=128"`
	Call   *CallRef `json:"call,omitempty"`

	Transcript   string  `json:"transcript,omitempty"`
	Summary      string  `json:"summary,omitempty"`
	AudioURL     string  `json:"audioUrl,omitempty" validate:"omitempty,url"`
	RecordingURL string  `json:"recordingUrl,omitempty" validate:"omitempty,url"`
	Duration     float64 `json:"duration,omitempty" validate:"gte=0"`
	Status       string  `json:"status,omitempty" validate:"max=64"`
	EndedReason  string  `json:"endedReason,omitempty"`
	Error        string  `json:"error,omitempty"`

	Role string `json:"role,omitempty" validate:"max=32"`
	Text string `json:"text,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamp is milliseconds since epoch.
	Timestamp int64 `json:"timestamp,omitempty"`
}

type CallRef struct {
	ID       string         `json:"id" validate:"max=128"`
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type envelope struct {
	Message json.RawMessage `json:"message"`
}

var errNoCallID = errors.New("webhook: payload has no call id")

// Decode parses and validates a webhook body.
func Decode(v *validator.Validate, body []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Payload{}, fmt.Errorf("webhook: decode: %w", err)
	}
	raw := body
	if m := bytes.TrimSpace(env.Message); len(m) > 0 && m[0] == '{' {
		raw = m
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("webhook: decode: %w", err)
	}
	if err := v.Struct(p); err != nil {
		return Payload{}, fmt.Errorf("webhook: invalid payload: %w", err)
	}
	if p.ProviderCallID() == "" && p.ScreeningCallID() == "" {
		return Payload{}, errNoCallID
	}
	return p, nil
}

func (p Payload) ProviderCallID() string {
	if id := strings.TrimSpace(p.CallID); id != "" {
		return id
	}
	if p.Call != nil {
		return strings.TrimSpace(p.Call.ID)
	}
	return ""
}

// ScreeningCallID is the correlation id echoed back from the start metadata.
func (p Payload) ScreeningCallID() string {
	if id := metaString(p.Metadata, voice.MetadataScreeningCallID); id != "" {
		return id
	}
	if p.Call != nil {
		return metaString(p.Call.Metadata, voice.MetadataScreeningCallID)
	}
	return ""
}

func (p Payload) status() string {
	if p.Status != "" {
		return p.Status
	}
	if p.Call != nil {
		return p.Call.Status
	}
	return ""
}

// Event converts the payload into a provider event.
func (p Payload) Event() voice.Event {
	ev := voice.Event{
		Type:            voice.ParseEventType(p.Type, p.status()),
		ProviderCallID:  p.ProviderCallID(),
		ScreeningCallID: p.ScreeningCallID(),
		Role:            p.Role,
		Error:           p.Error,
	}
	if p.Timestamp > 0 {
		ev.At = time.UnixMilli(p.Timestamp).UTC()
	}
	switch ev.Type {
	case voice.EventTranscript:
		ev.Text = p.Text
		if ev.Text == "" {
			ev.Text = p.Transcript
		}
	case voice.EventError:
		if ev.Error == "" {
			ev.Error = firstNonEmpty(p.EndedReason, p.status())
		}
	case voice.EventEndOfCallReport:
		d := p.CallData()
		ev.Data = &d
	}
	return ev
}

// CallData is the final call data carried by an end-of-call report.
func (p Payload) CallData() voice.CallData {
	return voice.CallData{
		Transcript:      strings.TrimSpace(p.Transcript),
		Summary:         strings.TrimSpace(p.Summary),
		AudioURL:        firstNonEmpty(p.AudioURL, p.RecordingURL),
		ErrorMessage:    strings.TrimSpace(p.Error),
		Status:          p.status(),
		EndedReason:     p.EndedReason,
		DurationSeconds: int(p.Duration),
	}
}

func metaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
