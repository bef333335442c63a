// README: Driver handlers for listing, claim, status updates and availability.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/service"
)

type DriverHandler struct {
	orders service.OrderAPI
	log    *slog.Logger
}

func NewDriverHandler(svc service.OrderAPI, logger *slog.Logger) *DriverHandler {
	return &DriverHandler{orders: svc, log: orLogger(logger)}
}

func (h *DriverHandler) ListAvailable(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.orders.ListAvailableOrders(c.Request.Context(), actor)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": order.ToViews(list)})
}

func (h *DriverHandler) ListMine(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.orders.ListDriverOrders(c.Request.Context(), actor)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": order.ToViews(list)})
}

func (h *DriverHandler) Claim(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.ClaimOrder(c.Request.Context(), actor, id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, order.ToView(o))
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "status is required")
		return
	}
	o, err := h.orders.AdvanceOrderStatus(c.Request.Context(), actor, id, order.Status(req.Status))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, order.ToView(o))
}

func (h *DriverHandler) Complete(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.CompleteOrder(c.Request.Context(), actor, id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, order.ToView(o))
}

type availabilityReq struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// SetAvailability toggles the caller's own availability.
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "is_available is required")
		return
	}
	u, err := h.orders.SetDriverAvailability(c.Request.Context(), actor, actor.UserID, *req.IsAvailable)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, user.ToView(u))
}
