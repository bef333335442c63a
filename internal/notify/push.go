// Package notify sends order status pushes to customers' devices through
// Firebase Cloud Messaging.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/Lm7452/UniEats/internal/modules/order"
	"github.com/Lm7452/UniEats/internal/modules/user"
)

// Sender is the slice of *messaging.Client the pusher uses.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Pusher struct {
	sender Sender
	log    *slog.Logger
}

func NewPusher(sender Sender, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pusher{sender: sender, log: logger}
}

var statusText = map[order.Status]string{
	order.StatusClaimed:   "A driver has claimed your order.",
	order.StatusPickedUp:  "Your food has been picked up.",
	order.StatusEnRoute:   "Your driver is on the way.",
	order.StatusDelivered: "Your order has been delivered. Enjoy!",
	order.StatusCancelled: "Your order was cancelled.",
}

// OrderStatus pushes a status change to the customer. It is a no-op when
// the customer opted out or has no registered device.
func (p *Pusher) OrderStatus(ctx context.Context, customer *user.User, o *order.Order) error {
	if customer == nil || !customer.NotifyOrderStatus || customer.PushToken == nil || *customer.PushToken == "" {
		return nil
	}
	body, ok := statusText[o.Status]
	if !ok {
		return nil
	}

	msg := &messaging.Message{
		Token: *customer.PushToken,
		Data: map[string]string{
			"type":     "order_status_changed",
			"order_id": string(o.ID),
			"status":   string(o.Status),
		},
		Notification: &messaging.Notification{
			Title: "UniEats order update",
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	messageID, err := p.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM for order %s: %w", o.ID, err)
	}
	p.log.Debug("FCM sent", "order_id", o.ID, "status", o.Status, "message_id", messageID)
	return nil
}
