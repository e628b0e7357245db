package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"screening-platform/internal/cache"
	"screening-platform/internal/config"
	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
)

type step struct {
	data *voice.CallData
	err  error
}

type scriptedFetcher struct {
	mu        sync.Mutex
	steps     []step
	calls     int
	artifacts *voice.CallData
	artCalls  int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, id string) (*voice.CallData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.steps) == 0 {
		return nil, nil
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s.data, s.err
}

func (f *scriptedFetcher) FetchArtifacts(ctx context.Context, id string) (*voice.CallData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artCalls++
	return f.artifacts, nil
}

type sleepRecorder struct {
	slept []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

func newTestEngine(f *scriptedFetcher, captures cache.CaptureStore) (*Engine, *sleepRecorder) {
	cfg := config.RetrievalConfig{ExtendedWait: time.Minute, PollInterval: 20 * time.Second}
	e := NewEngine(f, cfg, Options{Captures: captures, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	rec := &sleepRecorder{}
	e.Sleep = rec.sleep
	return e, rec
}

func TestRetrieve_DirectSucceedsAfterBackoff(t *testing.T) {
	f := &scriptedFetcher{steps: []step{{}, {}, {data: &voice.CallData{Transcript: "AI: hi"}}}}
	e, rec := newTestEngine(f, nil)

	d, err := e.Retrieve(context.Background(), "p1", 5, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d == nil || d.Transcript != "AI: hi" {
		t.Fatalf("unexpected data: %+v", d)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 fetches, got %d", f.calls)
	}
	want := []time.Duration{2 * time.Second, 3 * time.Second}
	if len(rec.slept) != len(want) {
		t.Fatalf("unexpected sleeps: %v", rec.slept)
	}
	for i := range want {
		if rec.slept[i] != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, rec.slept[i], want[i])
		}
	}
}

func TestRetrieve_ExtendedWaitStopsBeforeComprehensive(t *testing.T) {
	f := &scriptedFetcher{
		steps:     []step{{}, {}, {data: &voice.CallData{Summary: "Strong candidate."}}},
		artifacts: &voice.CallData{Transcript: "should not be used"},
	}
	e, rec := newTestEngine(f, nil)

	d, err := e.Retrieve(context.Background(), "p1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d == nil || d.Summary != "Strong candidate." {
		t.Fatalf("unexpected data: %+v", d)
	}
	if f.artCalls != 0 {
		t.Fatalf("comprehensive strategy must not run, got %d calls", f.artCalls)
	}
	// one backoff sleep plus one extended-wait poll
	if len(rec.slept) != 2 || rec.slept[1] != 20*time.Second {
		t.Fatalf("unexpected sleeps: %v", rec.slept)
	}
}

func TestRetrieve_ComprehensiveMergesCapture(t *testing.T) {
	captures := cache.NewMemoryCaptureStore()
	_ = captures.SaveCapture(context.Background(), "p1", voice.CallData{Transcript: "User: I can work weekends.", DurationSeconds: 75})

	f := &scriptedFetcher{artifacts: &voice.CallData{AudioURL: "https://rec/p1.mp3", Status: "ended"}}
	e, _ := newTestEngine(f, captures)

	d, err := e.Retrieve(context.Background(), "p1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d == nil {
		t.Fatalf("expected merged data")
	}
	if d.Transcript == "" || d.AudioURL == "" || d.DurationSeconds != 75 {
		t.Fatalf("expected artifact and capture merged, got %+v", d)
	}
	if f.artCalls != 1 {
		t.Fatalf("expected one artifact lookup, got %d", f.artCalls)
	}
}

func TestRetrieve_ExhaustedReturnsNil(t *testing.T) {
	f := &scriptedFetcher{}
	e, _ := newTestEngine(f, cache.NewMemoryCaptureStore())

	d, err := e.Retrieve(context.Background(), "p1", 3, time.Second)
	if err != nil || d != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", d, err)
	}
	// 3 direct + 3 polls (1m / 20s)
	if f.calls != 6 {
		t.Fatalf("expected 6 fetches, got %d", f.calls)
	}
}

func TestRetrieve_UnrecoverableAborts(t *testing.T) {
	authErr := &voice.ProviderError{Kind: screening.ReasonProviderAuthError, StatusCode: 401, Message: "invalid api key"}
	f := &scriptedFetcher{steps: []step{{err: authErr}}}
	e, rec := newTestEngine(f, nil)

	_, err := e.Retrieve(context.Background(), "p1", 5, time.Second)
	if !errors.As(err, new(*voice.ProviderError)) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if f.calls != 1 || len(rec.slept) != 0 {
		t.Fatalf("expected immediate abort, calls=%d sleeps=%v", f.calls, rec.slept)
	}
}

func TestRetrieve_TransientErrorsAreRetried(t *testing.T) {
	f := &scriptedFetcher{steps: []step{
		{err: errors.New("upstream 503")},
		{data: &voice.CallData{Transcript: "AI: hello"}},
	}}
	e, _ := newTestEngine(f, nil)

	d, err := e.Retrieve(context.Background(), "p1", 3, time.Second)
	if err != nil || d == nil {
		t.Fatalf("expected data, got %+v, %v", d, err)
	}
}

func TestRetrieve_CancelledContext(t *testing.T) {
	f := &scriptedFetcher{}
	e, _ := newTestEngine(f, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Retrieve(ctx, "p1", 3, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPartial_MergesFetchAndCapture(t *testing.T) {
	captures := cache.NewMemoryCaptureStore()
	_ = captures.SaveCapture(context.Background(), "p1", voice.CallData{DurationSeconds: 40})
	f := &scriptedFetcher{steps: []step{{data: &voice.CallData{AudioURL: "https://rec/a.mp3"}}}}
	e, _ := newTestEngine(f, captures)

	d := e.Partial(context.Background(), "p1")
	if d.AudioURL == "" || d.DurationSeconds != 40 {
		t.Fatalf("unexpected partial: %+v", d)
	}
}
