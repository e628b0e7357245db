// Package reconcile decides the true outcome of a call when the provider's
// signals disagree with each other. Everything here is pure.
package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"screening-platform/internal/voice"
)

type Category string

const (
	CategoryNone                          Category = ""
	CategoryErrorWithContent              Category = "error_with_content"
	CategoryFailedStatusWithContent       Category = "failed_status_with_content"
	CategorySuccessWithErrorResidue       Category = "success_with_error_residue"
	CategoryMissingContentDespiteDuration Category = "missing_content_despite_duration"
	CategoryAudioWithoutTranscript        Category = "audio_without_transcript"
)

type Resolution string

const (
	ResolutionNone              Resolution = ""
	ResolutionTrustTranscript   Resolution = "trust_transcript"
	ResolutionOverrideCompleted Resolution = "override_completed"
	ResolutionClearError        Resolution = "clear_error"
	ResolutionPartialSuccess    Resolution = "partial_success"
	ResolutionMarkFailed        Resolution = "mark_failed"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

const (
	// SubstantialTranscriptChars is the length above which a transcript is
	// treated as evidence that an interview took place.
	SubstantialTranscriptChars = 100
	// ConversationSeconds is the duration that implies a conversation happened.
	ConversationSeconds = 30
)

// Report is the detector's verdict. Conflict is false for consistent data.
type Report struct {
	Conflict   bool       `json:"conflict"`
	Category   Category   `json:"category,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
	Severity   Severity   `json:"severity,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// Input is retrieved call data plus what the session observed locally.
type Input struct {
	Data voice.CallData
	// ObservedSeconds is the duration measured from call-start/call-end events.
	ObservedSeconds int
}

func (in Input) duration() int {
	if in.ObservedSeconds > in.Data.DurationSeconds {
		return in.ObservedSeconds
	}
	return in.Data.DurationSeconds
}

var failureStatuses = map[string]bool{"failed": true, "error": true, "errored": true}

var successStatuses = map[string]bool{"completed": true, "ended": true, "success": true, "succeeded": true}

// phrases a provider or carrier plays when the call never reached a person.
// They only count when the candidate never speaks.
var candidateTurn = regexp.MustCompile(`(?im)^\s*(user|candidate|customer)\s*:`)

var failureNarration = []string{
	"call failed",
	"could not be completed",
	"couldn't connect",
	"could not connect",
	"the number you have dialed",
	"the person you are calling",
	"is not available",
	"leave a message",
	"voicemail",
	"mailbox is full",
	"no answer",
}

// Detect classifies the first conflict found, in precedence order.
func Detect(in Input) Report {
	d := in.Data
	transcript := strings.TrimSpace(d.Transcript)
	summary := strings.TrimSpace(d.Summary)
	errMsg := strings.TrimSpace(d.ErrorMessage)
	status := strings.ToLower(strings.TrimSpace(d.Status))
	substantial := len(transcript) >= SubstantialTranscriptChars

	switch {
	case failureStatuses[status] && substantial:
		return Report{
			Conflict:   true,
			Category:   CategoryFailedStatusWithContent,
			Resolution: ResolutionOverrideCompleted,
			Severity:   SeverityMedium,
			Detail:     fmt.Sprintf("status %q but transcript has %d chars", status, len(transcript)),
		}
	case errMsg != "" && substantial && !describesFailure(transcript):
		return Report{
			Conflict:   true,
			Category:   CategoryErrorWithContent,
			Resolution: ResolutionTrustTranscript,
			Severity:   SeverityLow,
			Detail:     fmt.Sprintf("error %q alongside %d chars of transcript", errMsg, len(transcript)),
		}
	case successStatuses[status] && errMsg != "" && (transcript != "" || summary != ""):
		return Report{
			Conflict:   true,
			Category:   CategorySuccessWithErrorResidue,
			Resolution: ResolutionClearError,
			Severity:   SeverityLow,
			Detail:     fmt.Sprintf("status %q with leftover error %q", status, errMsg),
		}
	case strings.TrimSpace(d.AudioURL) != "" && transcript == "":
		if summary != "" {
			return Report{
				Conflict:   true,
				Category:   CategoryAudioWithoutTranscript,
				Resolution: ResolutionPartialSuccess,
				Severity:   SeverityMedium,
				Detail:     "recording and summary present, transcript missing",
			}
		}
		return Report{
			Conflict:   true,
			Category:   CategoryAudioWithoutTranscript,
			Resolution: ResolutionMarkFailed,
			Severity:   SeverityMedium,
			Detail:     "recording present, transcript and summary missing",
		}
	case transcript == "" && in.duration() >= ConversationSeconds:
		return Report{
			Conflict:   true,
			Category:   CategoryMissingContentDespiteDuration,
			Resolution: ResolutionMarkFailed,
			Severity:   SeverityHigh,
			Detail:     fmt.Sprintf("call lasted %ds but produced no transcript", in.duration()),
		}
	}
	return Report{}
}

// describesFailure reports whether transcript is only the provider narrating
// a failed connection.
func describesFailure(transcript string) bool {
	if candidateTurn.MatchString(transcript) {
		return false
	}
	lower := strings.ToLower(transcript)
	for _, p := range failureNarration {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
