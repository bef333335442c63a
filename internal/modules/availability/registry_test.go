package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lm7452/UniEats/internal/modules/user"
	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

func seed(store *user.MemoryStore, id types.ID, role types.Role) types.Actor {
	store.Put(&user.User{ID: id, Subject: string(id), Role: role})
	return types.Actor{UserID: id, Role: role}
}

func TestSetAvailability(t *testing.T) {
	store := user.NewMemoryStore()
	reg := NewRegistry(store, nil)
	ctx := context.Background()

	d1 := seed(store, "d1", types.RoleDriver)
	d2 := seed(store, "d2", types.RoleDriver)
	s1 := seed(store, "s1", types.RoleStudent)
	admin := seed(store, "a1", types.RoleAdmin)

	n, err := reg.CountAvailableDrivers(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	u, err := reg.SetAvailability(ctx, d1, d1.UserID, true)
	require.NoError(t, err)
	require.True(t, u.IsAvailable)

	_, err = reg.SetAvailability(ctx, admin, d2.UserID, true)
	require.NoError(t, err)

	n, err = reg.CountAvailableDrivers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// A driver cannot toggle someone else.
	_, err = reg.SetAvailability(ctx, d1, d2.UserID, false)
	require.ErrorIs(t, err, errs.ErrForbidden)

	// Only driver accounts carry availability.
	_, err = reg.SetAvailability(ctx, s1, s1.UserID, true)
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = reg.SetAvailability(ctx, admin, s1.UserID, true)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = reg.SetAvailability(ctx, admin, "missing", true)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// Last write wins.
	_, err = reg.SetAvailability(ctx, d1, d1.UserID, false)
	require.NoError(t, err)
	_, err = reg.SetAvailability(ctx, d1, d1.UserID, false)
	require.NoError(t, err)
	n, err = reg.CountAvailableDrivers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
