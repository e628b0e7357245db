package reconcile

import (
	"strings"

	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
)

// Result is the reconciled outcome ready for finalization.
type Result struct {
	Report  Report
	Outcome screening.Status
	// Reason is set when Outcome is rejected.
	Reason screening.Reason
	// Data is the call data with resolved residue removed.
	Data            voice.CallData
	DurationSeconds int
}

// Reconcile runs Detect and turns the verdict into an outcome.
func Reconcile(in Input) Result {
	rep := Detect(in)
	data := in.Data
	out := Result{Report: rep, Data: data, DurationSeconds: in.duration()}

	switch rep.Resolution {
	case ResolutionOverrideCompleted, ResolutionTrustTranscript, ResolutionClearError:
		out.Data.ErrorMessage = ""
		out.Outcome = screening.StatusCompleted
		return out
	case ResolutionPartialSuccess:
		out.Outcome = screening.StatusCompleted
		return out
	case ResolutionMarkFailed:
		out.Outcome = screening.StatusRejected
		out.Reason = screening.StateConflict(string(rep.Category))
		if out.Data.ErrorMessage == "" {
			out.Data.ErrorMessage = rep.Detail
		}
		return out
	}

	// Consistent data: trust it.
	errMsg := strings.TrimSpace(data.ErrorMessage)
	status := strings.ToLower(strings.TrimSpace(data.Status))
	switch {
	case errMsg != "":
		out.Outcome = screening.StatusRejected
		out.Reason = voice.Classify(0, errMsg)
	case failureStatuses[status]:
		out.Outcome = screening.StatusRejected
		out.Reason = screening.ReasonProviderTransientError
		out.Data.ErrorMessage = "provider reported status " + status
	case data.Usable():
		out.Outcome = screening.StatusCompleted
	default:
		out.Outcome = screening.StatusRejected
		out.Reason = screening.ReasonRetrievalExhausted
	}
	return out
}
