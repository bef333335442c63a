// README: User directory model. Identity comes from the provider, role and
// availability live here.
package user

import (
	"strings"
	"time"
	"unicode"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

type User struct {
	ID                types.ID
	Subject           string
	Name              string
	Email             string
	Role              types.Role
	IsAvailable       bool
	PhoneNumber       *string
	NotifyOrderStatus bool
	NotifyPromotions  bool
	PushToken         *string
	DormBuilding      *string
	DormRoom          *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (u *User) Actor() types.Actor {
	return types.Actor{UserID: u.ID, Role: u.Role}
}

// Identity is what the identity provider vouches for.
type Identity struct {
	Subject string
	Email   string
	Name    string
	// EmailVerified is the provider's email_verified claim. Only a verified
	// email can match the admin allowlist.
	EmailVerified bool
}

// ProfileUpdate carries the self-service fields. Nil means unchanged.
type ProfileUpdate struct {
	Name              *string
	PhoneNumber       *string
	DormBuilding      *string
	DormRoom          *string
	NotifyOrderStatus *bool
	NotifyPromotions  *bool
	PushToken         *string
}

// NormalizePhone reduces a North American number to +1XXXXXXXXXX.
// An empty input clears the number.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	}
	return "", errs.Validation("phone number %q is not a 10 digit number", raw)
}
