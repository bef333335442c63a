package user

import "time"

// View is the wire shape of a user. The push token never leaves the server.
type View struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	IsAvailable       bool      `json:"is_available"`
	PhoneNumber       *string   `json:"phone_number,omitempty"`
	NotifyOrderStatus bool      `json:"notify_order_status"`
	NotifyPromotions  bool      `json:"notify_promotions"`
	HasPushToken      bool      `json:"has_push_token"`
	DormBuilding      *string   `json:"dorm_building,omitempty"`
	DormRoom          *string   `json:"dorm_room,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func ToView(u *User) View {
	return View{
		ID:                string(u.ID),
		Name:              u.Name,
		Email:             u.Email,
		Role:              string(u.Role),
		IsAvailable:       u.IsAvailable,
		PhoneNumber:       u.PhoneNumber,
		NotifyOrderStatus: u.NotifyOrderStatus,
		NotifyPromotions:  u.NotifyPromotions,
		HasPushToken:      u.PushToken != nil && *u.PushToken != "",
		DormBuilding:      u.DormBuilding,
		DormRoom:          u.DormRoom,
		CreatedAt:         u.CreatedAt,
	}
}

func ToViews(list []*User) []View {
	out := make([]View, 0, len(list))
	for _, u := range list {
		out = append(out, ToView(u))
	}
	return out
}
