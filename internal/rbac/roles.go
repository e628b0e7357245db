package rbac

import "screening-platform/internal/auth"

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleCandidate = auth.RoleCandidate
	RoleRecruiter = "recruiter"
	RoleAdmin     = "admin"
	RoleService   = "service" // ops tooling; never implied by other roles
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// CanActOnCandidate reports whether id may act on an application owned by
// candidateID. Candidates are limited to their own applications.
func CanActOnCandidate(id auth.Identity, candidateID string) bool {
	if id.Role != RoleCandidate {
		return true
	}
	return id.CandidateID != "" && id.CandidateID == candidateID
}
