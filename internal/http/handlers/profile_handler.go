// README: Profile handlers and realtime ticket issuance for the signed-in user.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/realtime"
)

type ProfileHandler struct {
	users   *user.Service
	tickets *realtime.Tickets
	log     *slog.Logger
}

// NewProfileHandler builds the handler. tickets may be nil when the hub
// accepts bare registrations.
func NewProfileHandler(users *user.Service, tickets *realtime.Tickets, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, tickets: tickets, log: orLogger(logger)}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	u, err := h.users.Profile(c.Request.Context(), actor)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, user.ToView(u))
}

type profileReq struct {
	Name              *string `json:"name"`
	PhoneNumber       *string `json:"phone_number"`
	DormBuilding      *string `json:"dorm_building"`
	DormRoom          *string `json:"dorm_room"`
	NotifyOrderStatus *bool   `json:"notify_order_status"`
	NotifyPromotions  *bool   `json:"notify_promotions"`
	PushToken         *string `json:"push_token"`
}

func (h *ProfileHandler) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), actor, user.ProfileUpdate{
		Name:              req.Name,
		PhoneNumber:       req.PhoneNumber,
		DormBuilding:      req.DormBuilding,
		DormRoom:          req.DormRoom,
		NotifyOrderStatus: req.NotifyOrderStatus,
		NotifyPromotions:  req.NotifyPromotions,
		PushToken:         req.PushToken,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, user.ToView(u))
}

// Ticket issues the short-lived token a websocket session presents in its
// register frame.
func (h *ProfileHandler) Ticket(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	if h.tickets == nil {
		writeJSON(c, http.StatusOK, gin.H{"user_id": actor.UserID, "role": actor.Role, "ticket": ""})
		return
	}
	token, exp, err := h.tickets.Issue(actor)
	if err != nil {
		h.log.Error("issue realtime ticket", "user_id", actor.UserID, "err", err)
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"user_id": actor.UserID, "role": actor.Role, "ticket": token, "expires_at": exp})
}
