package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"screening-platform/internal/config"
	"screening-platform/internal/screening"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	p, err := NewHTTPProvider(config.VoiceConfig{BaseURL: srv.URL, APIKey: "key", PhoneNumberID: "pn-1"}, srv.Client())
	require.NoError(t, err)
	return p
}

func TestHTTPProvider_StartSendsScriptAndMetadata(t *testing.T) {
	var got startCallRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "prov-1", "status": "queued"})
	})

	id, err := p.Start(context.Background(), SessionConfig{
		FirstMessage:   "Hi Ana",
		SystemPrompt:   "You are screening a line cook",
		EndPhrases:     []string{"goodbye"},
		MaxDuration:    180 * time.Second,
		CustomerNumber: "+15551234567",
		Metadata:       map[string]string{MetadataScreeningCallID: "call-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "prov-1", id)
	assert.Equal(t, "pn-1", got.PhoneNumberID)
	assert.Equal(t, 180, got.Assistant.MaxDurationSeconds)
	assert.Equal(t, "call-1", got.Metadata[MetadataScreeningCallID])
	require.Len(t, got.Assistant.Model.Messages, 1)
	assert.Equal(t, "system", got.Assistant.Model.Messages[0].Role)
}

func TestHTTPProvider_StartClassifiesErrors(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   screening.Reason
	}{
		{http.StatusUnauthorized, `{"message":"Invalid Key"}`, screening.ReasonProviderAuthError},
		{http.StatusPaymentRequired, `{"message":"no"}`, screening.ReasonProviderPaymentError},
		{http.StatusBadRequest, `{"message":["Insufficient credits to start call"]}`, screening.ReasonProviderPaymentError},
		{http.StatusServiceUnavailable, `upstream down`, screening.ReasonProviderTransientError},
	}
	for _, tc := range cases {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		})
		_, err := p.Start(context.Background(), SessionConfig{})
		require.Error(t, err)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, tc.want, pe.Kind, "status %d", tc.status)
		assert.Equal(t, tc.want, ReasonOf(err))
	}
}

func TestHTTPProvider_FetchMapsResource(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call/prov-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id":"prov-1","status":"ended","endedReason":"customer-ended-call",
			"startedAt":"2024-01-01T10:00:00Z","endedAt":"2024-01-01T10:02:30Z",
			"analysis":{"summary":"Strong candidate"},
			"artifact":{"transcript":"AI: hi\nUser: hello","recordingUrl":"https://rec/1.wav"}
		}`))
	})

	d, err := p.Fetch(context.Background(), "prov-1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Strong candidate", d.Summary)
	assert.Equal(t, "AI: hi\nUser: hello", d.Transcript)
	assert.Equal(t, "https://rec/1.wav", d.AudioURL)
	assert.Equal(t, 150, d.DurationSeconds)
	assert.Empty(t, d.ErrorMessage)
	assert.True(t, d.Usable())
}

func TestHTTPProvider_FetchNotFoundIsNoData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	d, err := p.Fetch(context.Background(), "prov-1")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestHTTPProvider_FetchArtifactsUsesListing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "prov-1", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[{"id":"prov-1","summary":"listed summary","endedReason":"pipeline-error-openai"}]`))
	})
	d, err := p.FetchArtifacts(context.Background(), "prov-1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "listed summary", d.Summary)
	assert.Equal(t, "pipeline-error-openai", d.ErrorMessage)
}

func TestHTTPProvider_StopIsIdempotent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call/prov-1/stop", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
	})
	assert.NoError(t, p.Stop(context.Background(), "prov-1"))
	assert.NoError(t, p.Stop(context.Background(), ""))
}

func TestParseEventType(t *testing.T) {
	assert.Equal(t, EventCallStart, ParseEventType("status-update", "in-progress"))
	assert.Equal(t, EventCallEnd, ParseEventType("status-update", "ended"))
	assert.Equal(t, EventEndOfCallReport, ParseEventType("end-of-call-report", ""))
	assert.Equal(t, EventCallEnd, ParseEventType("hang", ""))
	assert.Equal(t, EventUnknown, ParseEventType("function-call", ""))
}

func TestCallDataMerge(t *testing.T) {
	a := CallData{Summary: "s"}
	b := CallData{Summary: "other", Transcript: "t", DurationSeconds: 40}
	m := a.Merge(b)
	assert.Equal(t, "s", m.Summary)
	assert.Equal(t, "t", m.Transcript)
	assert.Equal(t, 40, m.DurationSeconds)

	var nilData *CallData
	assert.False(t, nilData.Usable())
	assert.False(t, (&CallData{Transcript: "   "}).Usable())
}
