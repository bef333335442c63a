// Package realtime fans order events out to connected sessions.
//
// Sessions join groups by registering; an event names the groups it is for
// and every session in any of them receives it once. Admin sessions receive
// every event. Delivery is at-most-once: a session that is not connected
// when an event is published never sees it.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Lm7452/UniEats/internal/types"
)

type Kind string

const (
	KindOrderCreated       Kind = "order_created"
	KindOrderClaimed       Kind = "order_claimed"
	KindOrderUpdated       Kind = "order_updated"
	KindOrderStatusChanged Kind = "order_status_changed"
	KindOrderCompleted     Kind = "order_completed"
)

// Target is a subscription group address.
type Target string

func UserTarget(id types.ID) Target {
	return Target("user:" + string(id))
}

func RoleTarget(role types.Role) Target {
	return Target("role:" + string(role))
}

var (
	DriversTarget = RoleTarget(types.RoleDriver)
	AdminsTarget  = RoleTarget(types.RoleAdmin)
)

// Event is what services emit. Data is marshalled to JSON once per emit.
type Event struct {
	Kind    Kind
	Targets []Target
	Data    any
}

// Envelope is the encoded event as it travels over a Bus.
type Envelope struct {
	Kind    Kind            `json:"type"`
	Targets []Target        `json:"targets"`
	Data    json.RawMessage `json:"data"`
}

func (e Event) Envelope() (Envelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", e.Kind, err)
	}
	return Envelope{Kind: e.Kind, Targets: e.Targets, Data: data}, nil
}

// Frame is the websocket message shape in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	FrameRegister   = "register"
	FrameRegistered = "registered"
	FrameError      = "error"
)

// RegisterMessage joins the session to user:{UserID} and role:{Role}.
// Ticket is required when the hub verifies tickets.
type RegisterMessage struct {
	UserID types.ID   `json:"userId"`
	Role   types.Role `json:"role"`
	Ticket string     `json:"ticket,omitempty"`
}

// Payloads. Field names match what the web client listens for.

type OrderClaimed struct {
	OrderID   string `json:"orderId"`
	ClaimedBy string `json:"claimedBy"`
}

type OrderStatusChanged struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Order   any    `json:"order,omitempty"`
}

type OrderCompleted struct {
	OrderID string `json:"orderId"`
}
