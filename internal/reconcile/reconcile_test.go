package reconcile

import (
	"strings"
	"testing"

	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
)

var longTranscript = strings.Repeat("Candidate: I worked the grill line for three years. ", 8)

func TestDetect_Categories(t *testing.T) {
	cases := []struct {
		name     string
		in       Input
		category Category
		res      Resolution
		sev      Severity
	}{
		{
			name:     "failed status with real transcript",
			in:       Input{Data: voice.CallData{Status: "failed", ErrorMessage: "Call failed", Transcript: longTranscript}},
			category: CategoryFailedStatusWithContent,
			res:      ResolutionOverrideCompleted,
			sev:      SeverityMedium,
		},
		{
			name:     "error with real transcript",
			in:       Input{Data: voice.CallData{ErrorMessage: "pipeline-error-eleven-labs", Transcript: longTranscript}},
			category: CategoryErrorWithContent,
			res:      ResolutionTrustTranscript,
			sev:      SeverityLow,
		},
		{
			name:     "success with leftover error",
			in:       Input{Data: voice.CallData{Status: "ended", ErrorMessage: "socket closed", Summary: "Good fit."}},
			category: CategorySuccessWithErrorResidue,
			res:      ResolutionClearError,
			sev:      SeverityLow,
		},
		{
			name:     "audio and summary but no transcript",
			in:       Input{Data: voice.CallData{AudioURL: "https://rec/1.mp3", Summary: "Talked about shifts."}},
			category: CategoryAudioWithoutTranscript,
			res:      ResolutionPartialSuccess,
			sev:      SeverityMedium,
		},
		{
			name:     "audio alone",
			in:       Input{Data: voice.CallData{AudioURL: "https://rec/1.mp3"}},
			category: CategoryAudioWithoutTranscript,
			res:      ResolutionMarkFailed,
			sev:      SeverityMedium,
		},
		{
			name:     "long call with nothing said",
			in:       Input{Data: voice.CallData{Status: "completed"}, ObservedSeconds: 95},
			category: CategoryMissingContentDespiteDuration,
			res:      ResolutionMarkFailed,
			sev:      SeverityHigh,
		},
		{
			name:     "provider duration counts too",
			in:       Input{Data: voice.CallData{DurationSeconds: 31}},
			category: CategoryMissingContentDespiteDuration,
			res:      ResolutionMarkFailed,
			sev:      SeverityHigh,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := Detect(tc.in)
			if !rep.Conflict {
				t.Fatalf("expected conflict, got %+v", rep)
			}
			if rep.Category != tc.category || rep.Resolution != tc.res || rep.Severity != tc.sev {
				t.Fatalf("got %+v, want %s/%s/%s", rep, tc.category, tc.res, tc.sev)
			}
			if rep.Detail == "" {
				t.Fatalf("expected detail")
			}
		})
	}
}

func TestDetect_NoConflict(t *testing.T) {
	cases := []Input{
		{},
		{Data: voice.CallData{Status: "completed", Transcript: longTranscript, Summary: "ok"}},
		{Data: voice.CallData{ErrorMessage: "no answer"}, ObservedSeconds: 5},
		{Data: voice.CallData{Transcript: "AI: Hello?"}, ObservedSeconds: 12},
	}
	for i, in := range cases {
		if rep := Detect(in); rep.Conflict {
			t.Fatalf("case %d: unexpected conflict %+v", i, rep)
		}
	}
}

func TestDetect_FailureNarrationIsNotErrorWithContent(t *testing.T) {
	transcript := "AI: Hi, this is the hiring assistant. " + strings.Repeat("The person you are calling is not available. ", 4)
	rep := Detect(Input{Data: voice.CallData{ErrorMessage: "no answer", Transcript: transcript}})
	if rep.Category == CategoryErrorWithContent {
		t.Fatalf("voicemail narration must not count as interview content: %+v", rep)
	}
	res := Reconcile(Input{Data: voice.CallData{ErrorMessage: "no answer", Transcript: transcript}})
	if res.Outcome != screening.StatusRejected {
		t.Fatalf("expected rejected, got %s", res.Outcome)
	}
}

const interviewWithFailureWords = `AI: Thanks for joining. Tell me about a busy service you handled.
User: Saturday nights the phone line had no answer for twenty minutes, so I took orders at the window.
AI: What if a guest asks something you have no answer to?
User: I say I will check with the manager and come back to them right away.
AI: Last one, are you available on weekends?
User: Yes, every weekend.`

func TestDetect_InterviewMentioningFailureWords(t *testing.T) {
	failed := Input{Data: voice.CallData{Status: "failed", ErrorMessage: "Call failed", Transcript: interviewWithFailureWords}}
	if rep := Detect(failed); rep.Category != CategoryFailedStatusWithContent {
		t.Fatalf("expected %s, got %+v", CategoryFailedStatusWithContent, rep)
	}
	res := Reconcile(failed)
	if res.Outcome != screening.StatusCompleted || res.Reason != "" {
		t.Fatalf("expected completed, got %+v", res)
	}

	errored := Input{Data: voice.CallData{ErrorMessage: "pipeline-error", Transcript: interviewWithFailureWords}}
	if rep := Detect(errored); rep.Category != CategoryErrorWithContent {
		t.Fatalf("expected %s, got %+v", CategoryErrorWithContent, rep)
	}
}

func TestReconcile_Outcomes(t *testing.T) {
	t.Run("error plus 420 char transcript completes", func(t *testing.T) {
		in := Input{Data: voice.CallData{Status: "failed", ErrorMessage: "Call failed", Transcript: strings.Repeat("x", 420)}}
		res := Reconcile(in)
		if res.Outcome != screening.StatusCompleted {
			t.Fatalf("expected completed, got %s", res.Outcome)
		}
		if res.Report.Category != CategoryFailedStatusWithContent {
			t.Fatalf("unexpected category %s", res.Report.Category)
		}
		if res.Data.ErrorMessage != "" {
			t.Fatalf("expected error cleared, got %q", res.Data.ErrorMessage)
		}
		if res.Reason != "" {
			t.Fatalf("completed outcome carries no reason, got %q", res.Reason)
		}
	})

	t.Run("long silence rejects with conflict reason", func(t *testing.T) {
		res := Reconcile(Input{Data: voice.CallData{Status: "completed"}, ObservedSeconds: 120})
		if res.Outcome != screening.StatusRejected {
			t.Fatalf("expected rejected, got %s", res.Outcome)
		}
		if res.Reason != screening.StateConflict(string(CategoryMissingContentDespiteDuration)) {
			t.Fatalf("unexpected reason %q", res.Reason)
		}
		if res.DurationSeconds != 120 {
			t.Fatalf("expected observed duration, got %d", res.DurationSeconds)
		}
		if res.Data.ErrorMessage == "" {
			t.Fatalf("expected detail carried as error message")
		}
	})

	t.Run("clean success", func(t *testing.T) {
		res := Reconcile(Input{Data: voice.CallData{Transcript: longTranscript, Summary: "Strong."}})
		if res.Outcome != screening.StatusCompleted || res.Report.Conflict {
			t.Fatalf("unexpected %+v", res)
		}
	})

	t.Run("plain provider error rejects with classified reason", func(t *testing.T) {
		res := Reconcile(Input{Data: voice.CallData{ErrorMessage: "Insufficient credit on account"}})
		if res.Outcome != screening.StatusRejected || res.Reason != screening.ReasonProviderPaymentError {
			t.Fatalf("unexpected %+v", res)
		}
	})

	t.Run("nothing usable", func(t *testing.T) {
		res := Reconcile(Input{})
		if res.Outcome != screening.StatusRejected || res.Reason != screening.ReasonRetrievalExhausted {
			t.Fatalf("unexpected %+v", res)
		}
	})

	t.Run("partial success keeps audio", func(t *testing.T) {
		res := Reconcile(Input{Data: voice.CallData{AudioURL: "https://rec/1.mp3", Summary: "Fine."}})
		if res.Outcome != screening.StatusCompleted || res.Data.AudioURL == "" {
			t.Fatalf("unexpected %+v", res)
		}
	})
}
