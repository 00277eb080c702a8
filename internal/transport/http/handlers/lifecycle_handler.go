package handlers

import (
	"errors"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/aggregate"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/repository"
	"github.com/telcoops/vnf-lifecycle-manager/internal/domain/service"
	"github.com/telcoops/vnf-lifecycle-manager/internal/transport/http/response"
	"github.com/telcoops/vnf-lifecycle-manager/internal/usecase"
)

type Handler struct {
	lifecycle service.LifecycleService
	store     repository.Store
}

func NewHandler(lifecycle service.LifecycleService, store repository.Store) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		store:     store,
	}
}

type instantiateRequest struct {
	FlavourID string            `json:"flavour_id" binding:"required"`
	Resources map[string]string `json:"resources"`
}

type operationAccepted struct {
	VNFID       string `json:"vnf_id"`
	OperationID string `json:"operation_id"`
}

// instantiateVNF accepts the command and returns 202 with a Location
// pointing at the operation occurrence; success or failure of the
// underlying saga is only observable by polling that resource.
func (h *Handler) instantiateVNF(c *gin.Context) {
	vnfID := c.Param("id")
	var req instantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, nethttp.StatusBadRequest, err.Error())
		return
	}

	operationID, err := h.lifecycle.Instantiate(c.Request.Context(), vnfID, req.FlavourID, req.Resources)
	if err != nil {
		respondLifecycleError(c, err, "instantiate failed")
		return
	}

	c.Header("Location", "/api/operations/"+operationID)
	response.RespondOK(c, nethttp.StatusAccepted, operationAccepted{VNFID: vnfID, OperationID: operationID})
}

func (h *Handler) terminateVNF(c *gin.Context) {
	vnfID := c.Param("id")

	operationID, err := h.lifecycle.Terminate(c.Request.Context(), vnfID)
	if err != nil {
		respondLifecycleError(c, err, "terminate failed")
		return
	}

	c.Header("Location", "/api/operations/"+operationID)
	response.RespondOK(c, nethttp.StatusAccepted, operationAccepted{VNFID: vnfID, OperationID: operationID})
}

type vnfView struct {
	ID            string   `json:"id"`
	State         string   `json:"state"`
	FlavourID     string   `json:"flavour_id,omitempty"`
	ResourceIDs   []string `json:"resource_ids,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
	Version       int64    `json:"version"`
}

func (h *Handler) getVNF(c *gin.Context) {
	vnf, err := h.lifecycle.GetVNF(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrVNFNotFound) {
			response.RespondError(c, nethttp.StatusNotFound, "not found")
			return
		}
		response.RespondError(c, nethttp.StatusInternalServerError, "get failed")
		return
	}
	response.RespondOK(c, nethttp.StatusOK, vnfView{
		ID:            vnf.ID,
		State:         string(vnf.State),
		FlavourID:     vnf.FlavourID,
		ResourceIDs:   vnf.ResourceIDs,
		FailureReason: vnf.FailureReason,
		Version:       vnf.Version,
	})
}

type operationView struct {
	ID            string `json:"id"`
	VNFID         string `json:"vnf_id"`
	OperationType string `json:"operation_type"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (h *Handler) getOperation(c *gin.Context) {
	op, err := h.lifecycle.GetOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrOperationNotFound) {
			response.RespondError(c, nethttp.StatusNotFound, "not found")
			return
		}
		response.RespondError(c, nethttp.StatusInternalServerError, "get failed")
		return
	}
	response.RespondOK(c, nethttp.StatusOK, operationView{
		ID:            op.ID,
		VNFID:         op.VNFID,
		OperationType: op.OperationType,
		State:         string(op.State),
		FailureReason: op.FailureReason,
	})
}

func (h *Handler) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		response.RespondOK(c, nethttp.StatusServiceUnavailable, gin.H{"status": "down"})
		return
	}
	response.RespondOK(c, nethttp.StatusOK, gin.H{"status": "ok"})
}

func respondLifecycleError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, usecase.ErrVNFNotFound):
		response.RespondError(c, nethttp.StatusNotFound, "not found")
	case errors.Is(err, aggregate.ErrStateConflict):
		response.RespondError(c, nethttp.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrVersionConflict):
		response.RespondError(c, nethttp.StatusConflict, "concurrent update, retry")
	default:
		response.RespondError(c, nethttp.StatusInternalServerError, fallback)
	}
}
