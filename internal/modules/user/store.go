// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Lm7452/UniEats/internal/shared/errs"
	"github.com/Lm7452/UniEats/internal/types"
)

const userColumns = `
	id, subject, name, email, role, is_available, phone_number,
	notify_order_status, notify_promotions, push_token, dorm_building, dorm_room,
	created_at, updated_at`

type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewStore(db *pgxpool.Pool, statementTimeout time.Duration) *Store {
	if statementTimeout <= 0 {
		statementTimeout = 3 * time.Second
	}
	return &Store{db: db, timeout: statementTimeout}
}

func (s *Store) UpsertIdentity(ctx context.Context, id Identity, initialRole types.Role) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, subject, name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject) DO UPDATE
		SET email = EXCLUDED.email,
			name = CASE WHEN users.name = '' THEN EXCLUDED.name ELSE users.name END,
			updated_at = NOW()
		RETURNING `+userColumns,
		uuid.NewString(), id.Subject, id.Name, id.Email, string(initialRole),
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, errs.Unavailable("upsert user", err)
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.one(ctx, "get user", `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
}

func (s *Store) List(ctx context.Context) ([]*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, errs.Unavailable("list users", err)
	}
	defer rows.Close()

	out := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errs.Unavailable("list users", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable("list users", err)
	}
	return out, nil
}

// SetRole also clears availability when the account stops being a driver.
func (s *Store) SetRole(ctx context.Context, id types.ID, role types.Role) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.one(ctx, "set user role", `
		UPDATE users
		SET role = $2,
			is_available = CASE WHEN $2 = 'driver' THEN is_available ELSE FALSE END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, string(id), string(role))
}

func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.one(ctx, "set availability", `
		UPDATE users SET is_available = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, string(id), available)
}

func (s *Store) CountAvailableDrivers(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'driver' AND is_available`).Scan(&n)
	if err != nil {
		return 0, errs.Unavailable("count available drivers", err)
	}
	return n, nil
}

// UpdateProfile applies only the non-nil fields. An empty string clears an
// optional column.
func (s *Store) UpdateProfile(ctx context.Context, id types.ID, p ProfileUpdate) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.one(ctx, "update profile", `
		UPDATE users
		SET name = COALESCE($2, name),
			phone_number = CASE WHEN $3::text IS NULL THEN phone_number ELSE NULLIF($3, '') END,
			dorm_building = CASE WHEN $4::text IS NULL THEN dorm_building ELSE NULLIF($4, '') END,
			dorm_room = CASE WHEN $5::text IS NULL THEN dorm_room ELSE NULLIF($5, '') END,
			notify_order_status = COALESCE($6, notify_order_status),
			notify_promotions = COALESCE($7, notify_promotions),
			push_token = CASE WHEN $8::text IS NULL THEN push_token ELSE NULLIF($8, '') END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		string(id), p.Name, p.PhoneNumber, p.DormBuilding, p.DormRoom,
		p.NotifyOrderStatus, p.NotifyPromotions, p.PushToken,
	)
}

func (s *Store) one(ctx context.Context, op, query string, args ...any) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Unavailable(op, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		id   string
		role string
	)
	err := row.Scan(
		&id, &u.Subject, &u.Name, &u.Email, &role, &u.IsAvailable, &u.PhoneNumber,
		&u.NotifyOrderStatus, &u.NotifyPromotions, &u.PushToken, &u.DormBuilding, &u.DormRoom,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.ID = types.ID(id)
	u.Role = types.Role(role)
	return &u, nil
}
