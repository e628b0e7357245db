package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"

	// TokenTypeInterrupt authorizes only the interrupt beacon of one call.
	TokenTypeInterrupt TokenType = "interrupt"
)

// RoleCandidate tokens must carry CandidateID.
const RoleCandidate = "candidate"

// Claims are the only supported JWT claims shape for this service.
// CandidateID is set for candidate tokens and scopes them to that candidate's
// applications; staff tokens leave it empty.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	CandidateID string    `json:"candidate_id,omitempty"`
	TokenType   TokenType `json:"token_type"`

	// ScreeningCallID scopes interrupt tokens to a single call.
	ScreeningCallID string `json:"screening_call_id,omitempty"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID      string
	Role        string
	CandidateID string
}
