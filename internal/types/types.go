// README: Identifiers and the authenticated actor passed into every core operation.
package types

// ID is an opaque server-assigned identifier.
type ID string

type Role string

const (
	RoleStudent Role = "student"
	RoleDriver  Role = "driver"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

// Actor is the already-authenticated caller. The transport layer builds it from
// the verified identity and the stored role; core code never reads request state.
type Actor struct {
	UserID ID
	Role   Role
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsDriver() bool { return a.Role == RoleDriver }
