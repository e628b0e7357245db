package voice

import (
	"strings"
	"time"
)

// EventType is the normalized provider event kind.
type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventTranscript  EventType = "transcript"
	EventError       EventType = "error"
	// EventEndOfCallReport carries the provider's final data for the call.
	EventEndOfCallReport EventType = "end-of-call-report"
	EventUnknown         EventType = ""
)

// ParseEventType maps provider spellings onto EventType.
// status is consulted for generic "status-update" events.
func ParseEventType(raw, status string) EventType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "call-start", "call.started", "call-started":
		return EventCallStart
	case "call-end", "call.ended", "call-ended", "hang":
		return EventCallEnd
	case "speech-start", "speech-update.started":
		return EventSpeechStart
	case "speech-end", "speech-update.stopped":
		return EventSpeechEnd
	case "transcript", "conversation-update":
		return EventTranscript
	case "error", "call.failed":
		return EventError
	case "end-of-call-report", "call.report":
		return EventEndOfCallReport
	case "status-update":
		switch strings.ToLower(strings.TrimSpace(status)) {
		case "in-progress", "in_progress", "started":
			return EventCallStart
		case "ended", "completed":
			return EventCallEnd
		case "failed":
			return EventError
		}
	}
	return EventUnknown
}

// Event is one normalized provider event for a call.
type Event struct {
	Type EventType

	ProviderCallID  string
	ScreeningCallID string

	At time.Time

	// Role and Text carry transcript fragments ("assistant"/"user").
	Role string
	Text string

	Error string

	// Data is set for end-of-call reports.
	Data *CallData
}
