package user

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

type Service struct {
	repo        Repository
	adminEmails map[string]struct{}
	log         *slog.Logger
}

// NewService builds the user directory. Accounts whose email is listed in
// adminEmails are created with the admin role; every other account starts
// as a student.
func NewService(repo Repository, adminEmails []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Service{repo: repo, adminEmails: admins, log: logger}
}

// SignIn resolves a verified identity to a stored user.
func (s *Service) SignIn(ctx context.Context, id Identity) (*User, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return nil, errs.Validation("identity subject is required")
	}
	role := types.RoleStudent
	if _, ok := s.adminEmails[strings.ToLower(id.Email)]; ok {
		if id.EmailVerified {
			role = types.RoleAdmin
		} else {
			s.log.Warn("admin allowlist match on unverified email", "subject", id.Subject)
		}
	}
	u, err := s.repo.UpsertIdentity(ctx, id, role)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Profile(ctx context.Context, actor types.Actor) (*User, error) {
	return s.repo.Get(ctx, actor.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, actor types.Actor, p ProfileUpdate) (*User, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, errs.Validation("name must not be empty")
		}
		p.Name = &name
	}
	if p.PhoneNumber != nil {
		phone, err := NormalizePhone(*p.PhoneNumber)
		if err != nil {
			return nil, err
		}
		p.PhoneNumber = &phone
	}
	p.DormBuilding = trimmed(p.DormBuilding)
	p.DormRoom = trimmed(p.DormRoom)
	p.PushToken = trimmed(p.PushToken)
	return s.repo.UpdateProfile(ctx, actor.UserID, p)
}

func (s *Service) ListUsers(ctx context.Context, actor types.Actor) ([]*User, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	return s.repo.List(ctx)
}

// SetRole switches an account between student and driver. Admin accounts
// are provisioned by configuration only and cannot be changed here.
func (s *Service) SetRole(ctx context.Context, actor types.Actor, target types.ID, role types.Role) (*User, error) {
	if !actor.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	if role != types.RoleStudent && role != types.RoleDriver {
		return nil, errs.Validation("role must be %q or %q", types.RoleStudent, types.RoleDriver)
	}
	cur, err := s.repo.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if cur.Role == types.RoleAdmin {
		return nil, errs.ErrForbidden
	}
	u, err := s.repo.SetRole(ctx, target, role)
	if err != nil {
		return nil, err
	}
	s.log.Info("user role changed", "user_id", target, "from", cur.Role, "to", role, "by", actor.UserID)
	return u, nil
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
