package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"screening-platform/internal/screening"
	"screening-platform/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	events   []voice.Event
	resolved map[string]voice.CallData
	status   screening.Status
}

func (s *recordingSink) HandleEvent(ctx context.Context, ev voice.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) ResolveWithData(ctx context.Context, id string, data voice.CallData) (screening.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved == nil {
		s.resolved = map[string]voice.CallData{}
	}
	s.resolved[id] = data
	if s.status == "" {
		return screening.StatusCompleted, nil
	}
	return s.status, nil
}

func setup(t *testing.T, secret string) (*gin.Engine, *recordingSink, screening.Call) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := screening.NewMemoryStore()
	ctx := context.Background()
	call, err := store.Create(ctx, screening.Call{ApplicationID: "app-1", CandidateID: "cand-1", JobID: "job-1"})
	require.NoError(t, err)
	require.NoError(t, store.AttachProviderCall(ctx, call.ID, "prov-1", call.CreatedAt))

	sink := &recordingSink{}
	r := gin.New()
	r.POST("/webhooks/voice", NewHandler(sink, store, secret).Handle)
	return r, sink, call
}

func post(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandle_EndOfCallReportResolvesByProviderID(t *testing.T) {
	r, sink, call := setup(t, "")

	body := `{"message":{"type":"end-of-call-report","call":{"id":"prov-1","status":"ended"},
		"transcript":"AI: Hi Ana\nUser: I have five years on the line","summary":"Strong fit","duration":95.4}}`
	w := post(r, body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
	got, ok := sink.resolved[call.ID]
	require.True(t, ok)
	assert.Equal(t, "Strong fit", got.Summary)
	assert.Equal(t, 95, got.DurationSeconds)
	assert.Equal(t, "ended", got.Status)
}

func TestHandle_MetadataCorrelation(t *testing.T) {
	r, sink, call := setup(t, "")

	body := `{"type":"transcript","callId":"prov-unknown","role":"user","text":"hello",
		"metadata":{"screeningCallId":"` + call.ID + `"}}`
	w := post(r, body, nil)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, voice.EventTranscript, ev.Type)
	assert.Equal(t, call.ID, ev.ScreeningCallID)
	assert.Equal(t, "hello", ev.Text)
}

func TestHandle_UnknownCallAcknowledged(t *testing.T) {
	r, sink, _ := setup(t, "")

	w := post(r, `{"type":"call-end","callId":"nope"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unknown call")
	assert.Empty(t, sink.events)
	assert.Empty(t, sink.resolved)
}

func TestHandle_InvalidPayloadAcknowledged(t *testing.T) {
	r, sink, _ := setup(t, "")

	for _, body := range []string{`not json`, `{"callId":"prov-1"}`, `{"type":"call-end"}`} {
		w := post(r, body, nil)
		require.Equal(t, http.StatusOK, w.Code, body)
		assert.Contains(t, w.Body.String(), "invalid payload", body)
	}
	assert.Empty(t, sink.events)
}

func TestHandle_IgnoresUnknownEventTypes(t *testing.T) {
	r, sink, _ := setup(t, "")

	w := post(r, `{"type":"model-output","callId":"prov-1"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
	assert.Empty(t, sink.events)
}

func TestHandle_Signature(t *testing.T) {
	r, sink, _ := setup(t, "s3cret")
	body := `{"type":"call-start","callId":"prov-1"}`

	w := post(r, body, map[string]string{SignatureHeader: "deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, sink.events)

	w = post(r, body, map[string]string{SignatureHeader: "sha256=" + Sign("s3cret", []byte(body))})
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, voice.EventCallStart, sink.events[0].Type)
}

func TestHandle_ReportForFinishedCallStillAnswersOK(t *testing.T) {
	r, sink, call := setup(t, "")
	sink.status = screening.StatusCompleted

	w := post(r, `{"type":"end-of-call-report","callId":"prov-1","transcript":"AI: bye"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, sink.resolved, call.ID)
}

func TestDecode_StatusUpdateMapsToCallEnd(t *testing.T) {
	p, err := Decode(NewHandler(nil, nil, "").Validate, []byte(`{"message":{"type":"status-update","call":{"id":"prov-9","status":"ended"}}}`))
	require.NoError(t, err)
	ev := p.Event()
	assert.Equal(t, voice.EventCallEnd, ev.Type)
	assert.Equal(t, "prov-9", ev.ProviderCallID)
}

func TestDecode_ErrorFallsBackToEndedReason(t *testing.T) {
	p, err := Decode(NewHandler(nil, nil, "").Validate, []byte(`{"type":"error","callId":"p","endedReason":"assistant-error"}`))
	require.NoError(t, err)
	assert.Equal(t, "assistant-error", p.Event().Error)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := Sign("k", body)
	if !VerifySignature("k", body, sig) {
		t.Fatalf("expected valid signature")
	}
	if VerifySignature("k", []byte(`{"a":2}`), sig) {
		t.Fatalf("expected mismatch for altered body")
	}
	if !VerifySignature("", body, "") {
		t.Fatalf("empty secret disables verification")
	}
}
