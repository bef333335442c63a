// README: Admin handlers for users, roles, availability and order moderation.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/service"
	"github.com/Lm7452/UniEats/internal/types"
)

type AdminHandler struct {
	orders service.OrderAPI
	users  *user.Service
	log    *slog.Logger
}

func NewAdminHandler(orders service.OrderAPI, users *user.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, users: users, log: orLogger(logger)}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.users.ListUsers(c.Request.Context(), actor)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"users": user.ToViews(list)})
}

type roleReq struct {
	Role string `json:"role" binding:"required"`
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req roleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "role is required")
		return
	}
	u, err := h.users.SetRole(c.Request.Context(), actor, id, types.Role(req.Role))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, user.ToView(u))
}

func (h *AdminHandler) SetAvailability(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "is_available is required")
		return
	}
	u, err := h.orders.SetDriverAvailability(c.Request.Context(), actor, id, *req.IsAvailable)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, user.ToView(u))
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.orders.ListAllOrders(c.Request.Context(), actor)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": order.ToViews(list)})
}

func (h *AdminHandler) CancelOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.CancelOrder(c.Request.Context(), actor, id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, order.ToView(o))
}

func (h *AdminHandler) DeleteOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(c.Request.Context(), actor, id); err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
