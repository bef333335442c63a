package realtime

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Lm7452/UniEats/internal/types"
)

var ErrInvalidTicket = errors.New("invalid realtime ticket")

type ticketClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tickets issues and checks short-lived HS256 tokens that bind a websocket
// registration to an authenticated user and role.
type Tickets struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTickets(secret string, ttl time.Duration) *Tickets {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Tickets{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tickets) Issue(actor types.Actor) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := ticketClaims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    "unieats",
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t *Tickets) Verify(token string) (types.Actor, error) {
	tok, err := jwt.ParseWithClaims(token, &ticketClaims{}, func(tk *jwt.Token) (interface{}, error) {
		if tk.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer("unieats"))
	if err != nil || !tok.Valid {
		return types.Actor{}, ErrInvalidTicket
	}
	c, _ := tok.Claims.(*ticketClaims)
	if c == nil || c.Subject == "" || !types.Role(c.Role).Valid() {
		return types.Actor{}, ErrInvalidTicket
	}
	return types.Actor{UserID: types.ID(c.Subject), Role: types.Role(c.Role)}, nil
}
