package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"screening-platform/internal/config"

	"github.com/gin-gonic/gin"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newManager(t)

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, Identity{UserID: "user-1", Role: RoleCandidate, CandidateID: "cand-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(1*time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.CandidateID != "cand-1" || claims.Role != RoleCandidate {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), Identity{UserID: "u", Role: "recruiter"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); err == nil {
		t.Fatalf("expected token_type mismatch")
	}
}

func TestVerifyRejectsCandidateWithoutCandidateID(t *testing.T) {
	m := newManager(t)
	now := time.Now()
	p, err := m.IssuePair(now, Identity{UserID: "u", Role: RoleCandidate})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now); err == nil {
		t.Fatalf("expected candidate_id requirement")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, _ := m.IssuePair(now, Identity{UserID: "u", Role: "recruiter"})
	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour)); err == nil {
		t.Fatalf("expected expiry")
	}
}

func TestRequireAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/me", RequireAccessToken(m), func(c *gin.Context) {
		id, err := FromContext(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.UserID+"/"+id.Role)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	p, _ := m.IssuePair(time.Now(), Identity{UserID: "rec-1", Role: "recruiter"})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+p.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "rec-1/recruiter" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestInterruptToken_ScopedToCall(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()
	id := Identity{UserID: "user-1", Role: RoleCandidate, CandidateID: "cand-1"}

	tok, err := m.IssueInterrupt(now, id, "call-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(tok, TokenTypeInterrupt, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.ScreeningCallID != "call-1" || claims.CandidateID != "cand-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := m.Verify(tok, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatalf("interrupt token must not pass as an access token")
	}
	if _, err := m.Verify(tok, TokenTypeInterrupt, now.Add(11*time.Minute)); err == nil {
		t.Fatalf("expected expiry")
	}
	if _, err := m.IssueInterrupt(now, id, "", time.Minute); err == nil {
		t.Fatalf("expected call id requirement")
	}
}

func TestRequireInterruptToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)
	id := Identity{UserID: "user-1", Role: RoleCandidate, CandidateID: "cand-1"}
	tok, err := m.IssueInterrupt(time.Now(), id, "call-1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	pair, err := m.IssuePair(time.Now(), id)
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	r := gin.New()
	r.POST("/v1/screening-calls/:id/beacon", RequireInterruptToken(m), func(c *gin.Context) {
		got, err := FromContext(c.Request.Context())
		if err != nil || got.CandidateID != "cand-1" {
			t.Errorf("identity not set: %+v %v", got, err)
		}
		c.Status(http.StatusNoContent)
	})

	cases := []struct {
		name string
		path string
		want int
	}{
		{"query token", "/v1/screening-calls/call-1/beacon?token=" + tok, http.StatusNoContent},
		{"other call", "/v1/screening-calls/call-2/beacon?token=" + tok, http.StatusUnauthorized},
		{"access token", "/v1/screening-calls/call-1/beacon?token=" + pair.AccessToken, http.StatusUnauthorized},
		{"missing", "/v1/screening-calls/call-1/beacon", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, w.Code)
		}
	}
}
