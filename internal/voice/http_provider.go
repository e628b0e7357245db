package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"screening-platform/internal/config"
)

const maxErrorBody = 4 << 10

// HTTPProvider is the REST adapter for the hosted voice-agent provider.
type HTTPProvider struct {
	baseURL       string
	apiKey        string
	phoneNumberID string
	model         string
	client        *http.Client
}

func NewHTTPProvider(cfg config.VoiceConfig, client *http.Client) (*HTTPProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("voice: base url is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("voice: api key is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
		if client.Timeout <= 0 {
			client.Timeout = 15 * time.Second
		}
	}
	return &HTTPProvider{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		phoneNumberID: cfg.PhoneNumberID,
		model:         cfg.Model,
		client:        client,
	}, nil
}

func (p *HTTPProvider) Name() string { return "voice-http" }

type startCallRequest struct {
	PhoneNumberID string            `json:"phoneNumberId,omitempty"`
	Customer      customer          `json:"customer"`
	Assistant     assistant         `json:"assistant"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type customer struct {
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

type assistant struct {
	FirstMessage       string            `json:"firstMessage"`
	EndCallMessage     string            `json:"endCallMessage,omitempty"`
	EndCallPhrases     []string          `json:"endCallPhrases,omitempty"`
	MaxDurationSeconds int               `json:"maxDurationSeconds,omitempty"`
	Model              assistantModel    `json:"model"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

type assistantModel struct {
	Model    string         `json:"model,omitempty"`
	Messages []modelMessage `json:"messages"`
}

type modelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type callResource struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	EndedReason  string     `json:"endedReason"`
	Transcript   string     `json:"transcript"`
	Summary      string     `json:"summary"`
	RecordingURL string     `json:"recordingUrl"`
	StartedAt    *time.Time `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt"`
	Analysis     struct {
		Summary string `json:"summary"`
	} `json:"analysis"`
	Artifact struct {
		Transcript   string `json:"transcript"`
		RecordingURL string `json:"recordingUrl"`
	} `json:"artifact"`
}

func (p *HTTPProvider) Start(ctx context.Context, cfg SessionConfig) (string, error) {
	body := startCallRequest{
		PhoneNumberID: p.phoneNumberID,
		Customer:      customer{Number: cfg.CustomerNumber, Name: cfg.CustomerName},
		Assistant: assistant{
			FirstMessage:       cfg.FirstMessage,
			EndCallMessage:     cfg.EndMessage,
			EndCallPhrases:     cfg.EndPhrases,
			MaxDurationSeconds: int(cfg.MaxDuration.Seconds()),
			Model: assistantModel{
				Model:    p.model,
				Messages: []modelMessage{{Role: "system", Content: cfg.SystemPrompt}},
			},
			Metadata: cfg.Metadata,
		},
		Metadata: cfg.Metadata,
	}

	var out callResource
	if err := p.do(ctx, http.MethodPost, "/call", body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", newProviderError(0, "start response missing call id")
	}
	return out.ID, nil
}

func (p *HTTPProvider) Stop(ctx context.Context, providerCallID string) error {
	if providerCallID == "" {
		return nil
	}
	err := p.do(ctx, http.MethodPost, "/call/"+url.PathEscape(providerCallID)+"/stop", nil, nil)
	var pe *ProviderError
	if errors.As(err, &pe) && (pe.StatusCode == http.StatusNotFound || pe.StatusCode == http.StatusConflict) {
		return nil
	}
	return err
}

func (p *HTTPProvider) Fetch(ctx context.Context, providerCallID string) (*CallData, error) {
	var out callResource
	err := p.do(ctx, http.MethodGet, "/call/"+url.PathEscape(providerCallID), nil, &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.toCallData(), nil
}

// FetchArtifacts looks the call up through the listing endpoint, which is
// served from a different store than the single-call resource.
func (p *HTTPProvider) FetchArtifacts(ctx context.Context, providerCallID string) (*CallData, error) {
	var out []callResource
	q := url.Values{"id": {providerCallID}, "limit": {"1"}}
	err := p.do(ctx, http.MethodGet, "/call?"+q.Encode(), nil, &out)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		if c.ID == providerCallID {
			return c.toCallData(), nil
		}
	}
	return nil, nil
}

func (c callResource) toCallData() *CallData {
	d := &CallData{
		Transcript:  firstNonEmpty(c.Transcript, c.Artifact.Transcript),
		Summary:     firstNonEmpty(c.Analysis.Summary, c.Summary),
		AudioURL:    firstNonEmpty(c.RecordingURL, c.Artifact.RecordingURL),
		Status:      c.Status,
		EndedReason: c.EndedReason,
	}
	if c.StartedAt != nil && c.EndedAt != nil && c.EndedAt.After(*c.StartedAt) {
		d.DurationSeconds = int(c.EndedAt.Sub(*c.StartedAt).Seconds())
	}
	if strings.Contains(strings.ToLower(c.EndedReason), "error") || strings.Contains(strings.ToLower(c.EndedReason), "failed") {
		d.ErrorMessage = c.EndedReason
	}
	return d
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &ProviderError{Kind: Classify(0, err.Error()), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newProviderError(resp.StatusCode, errorMessage(raw, resp.Status))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("voice: decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Message any    `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch m := body.Message.(type) {
		case string:
			if m != "" {
				return m
			}
		case []any:
			parts := make([]string, 0, len(m))
			for _, v := range m {
				parts = append(parts, fmt.Sprint(v))
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fallback
}

func isNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
