package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// UserRepo persists the role-agnostic identity rows.
type UserRepo struct{ Pool PgxPool }

// NewUserRepo constructs a UserRepo with the given pool.
func NewUserRepo(p PgxPool) *UserRepo { return &UserRepo{Pool: p} }

// Upsert creates the user on first contact and refreshes mutable profile
// fields after that. Empty incoming fields never clobber stored values.
func (r *UserRepo) Upsert(ctx domain.Context, u domain.User) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Upsert")
	defer span.End()
	q := `INSERT INTO users (user_id, display_name, ui_language, gender)
	      VALUES ($1, NULLIF($2,''), COALESCE(NULLIF($3,''),'English'), NULLIF($4,''))
	      ON CONFLICT (user_id) DO UPDATE SET
	        display_name = COALESCE(NULLIF(EXCLUDED.display_name,''), users.display_name),
	        ui_language  = COALESCE(NULLIF($3,''), users.ui_language),
	        gender       = COALESCE(NULLIF($4,''), users.gender),
	        updated_at   = NOW()`
	_, err := r.Pool.Exec(ctx, q, u.UserID, u.DisplayName, u.UILanguage, u.Gender)
	if err != nil {
		return fmt.Errorf("op=user.upsert: %w", translateErr(err))
	}
	return nil
}

// Get loads a user by id.
func (r *UserRepo) Get(ctx domain.Context, userID int64) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Get")
	defer span.End()
	q := `SELECT user_id, COALESCE(display_name,''), ui_language, COALESCE(gender,''), created_at, updated_at
	      FROM users WHERE user_id=$1`
	var u domain.User
	err := r.Pool.QueryRow(ctx, q, userID).Scan(&u.UserID, &u.DisplayName, &u.UILanguage, &u.Gender, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.User{}, fmt.Errorf("op=user.get: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get: %w", translateErr(err))
	}
	return u, nil
}
