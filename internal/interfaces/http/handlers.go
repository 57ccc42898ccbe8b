package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rcmstack/preauth-engine/internal/application/port"
	"github.com/rcmstack/preauth-engine/internal/application/service"
	"github.com/rcmstack/preauth-engine/internal/domain/claim"
	"github.com/rcmstack/preauth-engine/internal/domain/workflow"
	"github.com/rcmstack/preauth-engine/internal/reporting"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	preauthService service.PreauthService
	auditService   service.AuditService
	exporter       *reporting.RegisterExporter
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	preauthService service.PreauthService,
	auditService service.AuditService,
	exporter *reporting.RegisterExporter,
	logger Logger,
) *Handlers {
	return &Handlers{
		preauthService: preauthService,
		auditService:   auditService,
		exporter:       exporter,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type updateStatusRequest struct {
	PreauthID string             `json:"preauth_id" binding:"required"`
	NewStatus string             `json:"new_status" binding:"required"`
	Remarks   string             `json:"remarks"`
	StateData claim.StatePayload `json:"state_data"`
}

type submitDischargeRequest struct {
	PreauthID     string                 `json:"preauth_id" binding:"required"`
	DischargeData claim.DischargePayload `json:"discharge_data" binding:"required"`
	Remarks       string                 `json:"remarks"`
}

type transitionResponse struct {
	Claim  *claim.Claim            `json:"claim"`
	Record *claim.TransitionRecord `json:"transition"`
}

type statusResponse struct {
	Claim              *claim.Claim            `json:"claim"`
	Latest             *claim.TransitionRecord `json:"latest_transition,omitempty"`
	AllowedTransitions []workflow.State        `json:"allowed_transitions"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Submit handles POST /api/v1/preauth/submit
func (h *Handlers) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.preauthService.Submit(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    transitionResponse{Claim: result.Claim, Record: result.Record},
	})
}

// UpdateStatus handles PUT /api/v1/preauth/update-status
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "preauth_id and new_status are required"})
		return
	}

	result, err := h.preauthService.UpdateStatus(c.Request.Context(), actorFrom(c), service.UpdateStatusRequest{
		PreauthID:      req.PreauthID,
		RequestedState: workflow.State(req.NewStatus),
		Remarks:        req.Remarks,
		Payload:        req.StateData,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    transitionResponse{Claim: result.Claim, Record: result.Record},
	})
}

// SubmitDischarge handles POST /api/v1/preauth/submit-discharge
func (h *Handlers) SubmitDischarge(c *gin.Context) {
	var req submitDischargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "preauth_id and discharge_data are required"})
		return
	}

	result, err := h.preauthService.SubmitDischarge(c.Request.Context(), actorFrom(c), req.PreauthID, req.DischargeData, req.Remarks)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    transitionResponse{Claim: result.Claim, Record: result.Record},
	})
}

// CurrentStatus handles GET /api/v1/preauth/current-status/:preauthId
func (h *Handlers) CurrentStatus(c *gin.Context) {
	projection, err := h.auditService.CurrentStatus(c.Request.Context(), actorFrom(c), c.Param("preauthId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: statusResponse{
			Claim:              projection.Claim,
			Latest:             projection.Latest,
			AllowedTransitions: projection.AllowedTransitions,
		},
	})
}

// StatusHistory handles GET /api/v1/preauth/status-history/:preauthId
func (h *Handlers) StatusHistory(c *gin.Context) {
	history, err := h.auditService.StatusHistory(c.Request.Context(), actorFrom(c), c.Param("preauthId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// List handles GET /api/v1/preauth/list
func (h *Handlers) List(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	claims, err := h.auditService.ListClaims(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// ExportRegister handles GET /api/v1/preauth/export
func (h *Handlers) ExportRegister(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	// Build the workbook before committing any response headers, so a
	// store failure still gets a proper error envelope.
	actor := actorFrom(c)
	var buf bytes.Buffer
	if err := h.exporter.Export(c.Request.Context(), actor.HospitalID, filter, &buf); err != nil {
		h.logger.Error("Failed to export claim register", "hospital_id", actor.HospitalID, "error", err)
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=claim-register-%s.xlsx", time.Now().UTC().Format("20060102")))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func filterFromQuery(c *gin.Context) (port.ClaimFilter, error) {
	var filter port.ClaimFilter

	if v := c.Query("state"); v != "" {
		state := workflow.State(v)
		if !state.IsValid() {
			return filter, fmt.Errorf("unknown state filter: %s", v)
		}
		filter.State = state
	}
	if v := c.Query("type"); v != "" {
		ct := claim.ClaimType(v)
		if !ct.IsValid() {
			return filter, fmt.Errorf("unknown claim type filter: %s", v)
		}
		filter.ClaimType = ct
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if v := c.Query(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return filter, fmt.Errorf("%s must be RFC3339", name)
			}
			*dst = t
		}
	}

	filter.Limit = 50
	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return filter, fmt.Errorf("limit must be an integer between 1 and 200")
		}
		filter.Limit = n
	}
	if v, ok := c.GetQuery("offset"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

// writeError maps the engine's error kinds onto HTTP statuses with enough
// structured detail for the caller to act on.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var verr *claim.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "validation failed",
			Detail:  verr.Fields,
		})
		return
	}

	var denied *workflow.DeniedError
	if errors.As(err, &denied) {
		kind := "unknown_transition"
		if errors.Is(denied, workflow.ErrRoleNotPermitted) {
			kind = "role_not_permitted"
		}
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   denied.Error(),
			Detail: gin.H{
				"kind":          kind,
				"current_state": denied.From,
				"new_state":     denied.To,
				"role":          denied.Role,
				"allowed_roles": denied.Allowed,
			},
		})
		return
	}

	switch {
	case errors.Is(err, workflow.ErrInvalidState), errors.Is(err, workflow.ErrInvalidRole):
		// a misspelled state or role from the caller, not an engine fault
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error()})
	case errors.Is(err, claim.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "preauth request not found"})
	case errors.Is(err, claim.ErrDuplicate):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "preauth request already exists"})
	case errors.Is(err, claim.ErrStaleState):
		c.JSON(http.StatusConflict, Response{Success: false, Error: "claim state changed concurrently, reload and retry"})
	case errors.Is(err, claim.ErrStoreUnavailable):
		h.logger.Error("Claim store unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Error: "storage temporarily unavailable"})
	default:
		h.logger.Error("Unhandled request error", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}
