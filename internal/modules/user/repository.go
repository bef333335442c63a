package user

import (
	"context"

	"github.com/Lm7452/UniEats/internal/types"
)

type Repository interface {
	// UpsertIdentity creates the user on first sight with initialRole and
	// refreshes email on later sign-ins. Role is never overwritten.
	UpsertIdentity(ctx context.Context, id Identity, initialRole types.Role) (*User, error)
	Get(ctx context.Context, id types.ID) (*User, error)
	List(ctx context.Context) ([]*User, error)
	SetRole(ctx context.Context, id types.ID, role types.Role) (*User, error)
	SetAvailability(ctx context.Context, id types.ID, available bool) (*User, error)
	CountAvailableDrivers(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id types.ID, p ProfileUpdate) (*User, error)
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*MemoryStore)(nil)
)
