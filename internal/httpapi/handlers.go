package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"screening-platform/internal/admission"
	"screening-platform/internal/applications"
	"screening-platform/internal/auth"
	"screening-platform/internal/rbac"
	"screening-platform/internal/reporting"
	"screening-platform/internal/screening"
	"screening-platform/internal/session"
	"screening-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Screening is the lifecycle surface the API drives.
type Screening interface {
	Start(ctx context.Context, req session.StartRequest) (session.StartResult, error)
	Stop(ctx context.Context, screeningCallID string) (session.State, error)
	Interrupt(ctx context.Context, screeningCallID string, sig session.Signal) (bool, error)
	Resolve(ctx context.Context, screeningCallID string) (screening.Status, error)
	State(screeningCallID string) (session.State, bool)
}

type Eligibility interface {
	Evaluate(ctx context.Context, applicationID string) (admission.Decision, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Screening   Screening
	Eligibility Eligibility
	Calls       screening.Store
	Apps        applications.Service
	Reports     *reporting.Service
	Sweeper     Sweeper
	Validate    *validator.Validate

	// AllowLogin enables the token issuing endpoint outside production.
	AllowLogin bool

	// InterruptTTL bounds the interrupt token handed out when a call starts.
	InterruptTTL time.Duration
}

// NewValidator returns the request validator with the screening tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("signal", func(fl validator.FieldLevel) bool {
		return session.Signal(fl.Field().String()).Valid()
	})
	return v
}

// --- Auth ---

type loginRequest struct {
	UserID      string `json:"user_id" validate:"required,max=128"`
	Role        string `json:"role" validate:"required,oneof=candidate recruiter admin service"`
	CandidateID string `json:"candidate_id" validate:"required_if=Role candidate,max=128"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || !h.AllowLogin {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "login disabled"})
		return
	}
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), auth.Identity{UserID: req.UserID, Role: req.Role, CandidateID: req.CandidateID})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	id, err := auth.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role, "candidate_id": id.CandidateID})
}

// --- helpers ---

func (h Handlers) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return false
		}
	}
	return true
}

// authorizeCandidate checks the caller against the owning candidate and
// writes 401/403 when it may not proceed.
func authorizeCandidate(c *gin.Context, candidateID string) (auth.Identity, bool) {
	id, err := auth.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return auth.Identity{}, false
	}
	if !rbac.CanActOnCandidate(id, candidateID) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return auth.Identity{}, false
	}
	return id, true
}

func writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, screening.ErrNotFound), errors.Is(err, applications.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, screening.ErrInvalidArgument), errors.Is(err, applications.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error(msg, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
