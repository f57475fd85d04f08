package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
	"github.com/AnTengye/civicfund/service"
)

type ApprovalHandler struct {
	store *service.Store
}

func NewApprovalHandler(store *service.Store) *ApprovalHandler {
	return &ApprovalHandler{store: store}
}

// Pending lists undecided requests for an authority id or wallet address
func (h *ApprovalHandler) Pending(c *gin.Context) {
	authority := c.Param("authority")

	approvals, err := h.store.PendingFor(authority)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Authority not found"})
		return
	}
	c.JSON(http.StatusOK, approvals)
}

// Decide records an Approved or Rejected decision. A request is decided once.
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req model.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}
	if !req.Decision.Terminal() {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Decision must be Approved or Rejected"})
		return
	}

	approval, err := h.store.Decide(c.Param("id"), req.Decision, req.Comments)
	switch {
	case errors.Is(err, service.ErrRejectionComments):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Comments are required when rejecting"})
		return
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Approval request not found"})
		return
	case errors.Is(err, service.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"detail": "Approval request already decided"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to record decision"})
		return
	}

	ctx := logger.WithProject(logger.WithAuthority(c.Request.Context(), approval.AuthorityID), approval.ProjectID)
	logger.Info(ctx, "approval decided", "approval_id", approval.ID, "decision", approval.Decision)
	c.JSON(http.StatusOK, gin.H{"success": true, "approval": approval})
}
