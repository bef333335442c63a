package user

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

// MemoryStore is the in-process Repository for development and tests.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[types.ID]*User
	bySubject map[string]types.ID
	seq       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[types.ID]*User),
		bySubject: make(map[string]types.ID),
	}
}

func (m *MemoryStore) UpsertIdentity(_ context.Context, id Identity, initialRole types.Role) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if uid, ok := m.bySubject[id.Subject]; ok {
		u := m.users[uid]
		u.Email = id.Email
		if u.Name == "" {
			u.Name = id.Name
		}
		u.UpdatedAt = now
		return cloneUser(u), nil
	}

	m.seq++
	// Creation order breaks ties in List when timestamps collide.
	u := &User{
		ID:                types.ID(uuid.NewString()),
		Subject:           id.Subject,
		Name:              id.Name,
		Email:             id.Email,
		Role:              initialRole,
		NotifyOrderStatus: true,
		CreatedAt:         now.Add(time.Duration(m.seq)),
		UpdatedAt:         now,
	}
	m.users[u.ID] = u
	m.bySubject[id.Subject] = u.ID
	return cloneUser(u), nil
}

// Put stores u as is. Tests use it to seed fixed ids.
func (m *MemoryStore) Put(u *User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = cloneUser(u)
	if u.Subject != "" {
		m.bySubject[u.Subject] = u.ID
	}
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) List(_ context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, cloneUser(u))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SetRole(_ context.Context, id types.ID, role types.Role) (*User, error) {
	return m.update(id, func(u *User) {
		u.Role = role
		if role != types.RoleDriver {
			u.IsAvailable = false
		}
	})
}

func (m *MemoryStore) SetAvailability(_ context.Context, id types.ID, available bool) (*User, error) {
	return m.update(id, func(u *User) { u.IsAvailable = available })
}

func (m *MemoryStore) CountAvailableDrivers(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errs.Unavailable("count available drivers", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.users {
		if u.Role == types.RoleDriver && u.IsAvailable {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id types.ID, p ProfileUpdate) (*User, error) {
	return m.update(id, func(u *User) {
		if p.Name != nil {
			u.Name = *p.Name
		}
		u.PhoneNumber = applyOptional(u.PhoneNumber, p.PhoneNumber)
		u.DormBuilding = applyOptional(u.DormBuilding, p.DormBuilding)
		u.DormRoom = applyOptional(u.DormRoom, p.DormRoom)
		u.PushToken = applyOptional(u.PushToken, p.PushToken)
		if p.NotifyOrderStatus != nil {
			u.NotifyOrderStatus = *p.NotifyOrderStatus
		}
		if p.NotifyPromotions != nil {
			u.NotifyPromotions = *p.NotifyPromotions
		}
	})
}

func (m *MemoryStore) update(id types.ID, fn func(*User)) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return cloneUser(u), nil
}

func applyOptional(cur, next *string) *string {
	if next == nil {
		return cur
	}
	if *next == "" {
		return nil
	}
	v := *next
	return &v
}

func cloneUser(u *User) *User {
	c := *u
	return &c
}
