package httpapi

import (
	"errors"
	"net/http"
	"time"

	"screening-platform/internal/reporting"
	"screening-platform/internal/screening"
	"screening-platform/internal/session"
	"screening-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type callResponse struct {
	screening.Call
	LiveState session.State `json:"live_state,omitempty"`
}

type interruptRequest struct {
	Signal string `json:"signal" validate:"required,signal"`
}

// startResponse adds the interrupt token the browser uses for its unload
// beacon, which cannot carry the bearer header.
type startResponse struct {
	session.StartResult
	InterruptToken string `json:"interrupt_token,omitempty"`
}

// StartScreeningCall admits and starts a call for the application.
// 201 when the call started, 409 when admission denied it, 502 when the
// provider refused to start it.
func (h Handlers) StartScreeningCall(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := h.Apps.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "application lookup failed")
		return
	}
	id, ok := authorizeCandidate(c, app.CandidateID)
	if !ok {
		return
	}

	res, err := h.Screening.Start(ctx, session.StartRequest{
		ApplicationID: app.ID,
		ActorUserID:   id.UserID,
		ActorRole:     id.Role,
	})
	if err != nil {
		writeError(c, err, "screening start failed")
		return
	}
	switch {
	case !res.Decision.Allowed:
		c.JSON(http.StatusConflict, res)
	case res.State == session.StateRejected:
		c.JSON(http.StatusBadGateway, res)
	default:
		out := startResponse{StartResult: res}
		if h.Auth != nil && res.ScreeningCall != nil {
			tok, err := h.Auth.IssueInterrupt(time.Now(), id, res.ScreeningCall.ID, h.InterruptTTL)
			if err != nil {
				logger.FromGin(c).Warn("interrupt token not issued", "err", err)
			}
			out.InterruptToken = tok
		}
		c.JSON(http.StatusCreated, out)
	}
}

// ScreeningEligibility previews admission without creating a call.
func (h Handlers) ScreeningEligibility(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := h.Apps.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "application lookup failed")
		return
	}
	if _, ok := authorizeCandidate(c, app.CandidateID); !ok {
		return
	}
	d, err := h.Eligibility.Evaluate(ctx, app.ID)
	if err != nil {
		writeError(c, err, "eligibility check failed")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) ListScreeningCalls(c *gin.Context) {
	ctx := c.Request.Context()
	app, err := h.Apps.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err, "application lookup failed")
		return
	}
	if _, ok := authorizeCandidate(c, app.CandidateID); !ok {
		return
	}
	calls, err := h.Calls.List(ctx, screening.Filter{ApplicationID: app.ID})
	if err != nil {
		writeError(c, err, "screening call list failed")
		return
	}
	out := make([]callResponse, 0, len(calls))
	for _, call := range calls {
		out = append(out, h.render(call))
	}
	c.JSON(http.StatusOK, gin.H{"screening_calls": out})
}

func (h Handlers) GetScreeningCall(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.render(call))
}

// StopScreeningCall ends a live call on the user's request.
func (h Handlers) StopScreeningCall(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	st, err := h.Screening.Stop(c.Request.Context(), call.ID)
	if err != nil {
		writeError(c, err, "screening stop failed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"screening_call_id": call.ID, "state": st})
}

// InterruptScreeningCall reports a client lifecycle signal. Only navigation
// intent ends the call; other signals are acknowledged and ignored.
func (h Handlers) InterruptScreeningCall(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	var req interruptRequest
	if !h.bind(c, &req) {
		return
	}
	ended, err := h.Screening.Interrupt(c.Request.Context(), call.ID, session.Signal(req.Signal))
	if err != nil {
		writeError(c, err, "screening interrupt failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"screening_call_id": call.ID, "interrupted": ended})
}

// InterruptBeacon takes navigator.sendBeacon posts. The caller is
// authenticated by an interrupt token and the signal comes from ?signal=,
// falling back to a JSON body. Beacons ignore responses, so it answers 204.
func (h Handlers) InterruptBeacon(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	req := interruptRequest{Signal: c.Query("signal")}
	if req.Signal == "" {
		if !h.bind(c, &req) {
			return
		}
	} else if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if _, err := h.Screening.Interrupt(c.Request.Context(), call.ID, session.Signal(req.Signal)); err != nil {
		writeError(c, err, "screening interrupt failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// JobScreeningSummary aggregates screening outcomes for a job. Optional
// from/to query parameters are RFC3339.
func (h Handlers) JobScreeningSummary(c *gin.Context) {
	req := reporting.JobSummaryRequest{JobID: c.Param("id")}
	for key, dst := range map[string]*time.Time{"from": &req.Range.From, "to": &req.Range.To} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC3339"})
			return
		}
		*dst = t
	}
	out, err := h.Reports.JobSummary(c.Request.Context(), req)
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		writeError(c, err, "summary failed")
		return
	}
	c.JSON(http.StatusOK, out)
}

// SweepStale runs the reaper now.
func (h Handlers) SweepStale(c *gin.Context) {
	n, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err, "sweep failed")
		return
	}
	logger.FromGin(c).Info("manual sweep", "reaped", n)
	c.JSON(http.StatusOK, gin.H{"reaped": n})
}

// ResolveScreeningCall forces retrieval and finalization of an ended call.
func (h Handlers) ResolveScreeningCall(c *gin.Context) {
	call, ok := h.loadCall(c)
	if !ok {
		return
	}
	st, err := h.Screening.Resolve(c.Request.Context(), call.ID)
	if err != nil {
		writeError(c, err, "resolve failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"screening_call_id": call.ID, "status": st})
}

func (h Handlers) loadCall(c *gin.Context) (screening.Call, bool) {
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "screening call lookup failed")
		return screening.Call{}, false
	}
	if _, ok := authorizeCandidate(c, call.CandidateID); !ok {
		return screening.Call{}, false
	}
	return call, true
}

func (h Handlers) render(call screening.Call) callResponse {
	out := callResponse{Call: call}
	if h.Screening != nil {
		if st, ok := h.Screening.State(call.ID); ok {
			out.LiveState = st
		}
	}
	return out
}
