// README: Customer order handlers for create, get, history and quotes.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/service"
)

type OrderHandler struct {
	orders service.OrderAPI
	log    *slog.Logger
}

func NewOrderHandler(svc service.OrderAPI, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: svc, log: orLogger(logger)}
}

type createOrderReq struct {
	ExternalOrderRef string  `json:"external_order_ref"`
	LocationType     string  `json:"location_type"`
	DeliveryBuilding string  `json:"delivery_building"`
	DeliveryRoom     string  `json:"delivery_room"`
	ResidenceHall    string  `json:"residence_hall"`
	TipAmount        float64 `json:"tip_amount"`
	PaymentReference string  `json:"payment_reference"`
	PromoCode        string  `json:"promo_code"`
	CustomerPhone    string  `json:"customer_phone"`
	CustomerEmail    string  `json:"customer_email"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.orders.CreateOrder(c.Request.Context(), actor, service.CreateOrderInput{
		ExternalOrderRef: req.ExternalOrderRef,
		LocationType:     req.LocationType,
		DeliveryBuilding: req.DeliveryBuilding,
		DeliveryRoom:     req.DeliveryRoom,
		ResidenceHall:    req.ResidenceHall,
		TipAmount:        req.TipAmount,
		PaymentReference: req.PaymentReference,
		PromoCode:        req.PromoCode,
		CustomerPhone:    req.CustomerPhone,
		CustomerEmail:    req.CustomerEmail,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, order.ToView(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	o, err := h.orders.GetOrder(c.Request.Context(), actor, id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, order.ToView(o))
}

func (h *OrderHandler) History(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	list, err := h.orders.ListCustomerOrderHistory(c.Request.Context(), actor)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": order.ToViews(list)})
}

type quoteReq struct {
	TipAmount float64 `json:"tip_amount"`
	PromoCode string  `json:"promo_code"`
}

func (h *OrderHandler) Quote(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	q, err := h.orders.Quote(c.Request.Context(), actor, req.TipAmount, req.PromoCode)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"tip":           q.Tip.Decimal(),
		"service_fee":   q.ServiceFee.Decimal(),
		"total":         q.Total.Decimal(),
		"currency":      q.Total.Currency,
		"promo_applied": q.PromoApplied,
		"promo_code":    q.PromoCode,
		"zero_amount":   q.ZeroAmount,
		"breakdown":     q.Breakdown,
	})
}

func (h *OrderHandler) AppStatus(c *gin.Context) {
	st, err := h.orders.AppStatus(c.Request.Context())
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}
