package repository

import (
	"context"

	"github.com/hray3182/gabay/internal/database"
	"github.com/hray3182/gabay/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// TouchUser registers the owner, refreshing the display name on repeat visits.
func (r *UserRepository) TouchUser(ctx context.Context, userID, name string) (*models.User, error) {
	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, created_at`,
		userID, name,
	).Scan(&user.ID, &user.Name, &user.CreatedAt)
	if err != nil {
		return nil, models.StoreError(err, "upsert user")
	}
	return user, nil
}

func (r *UserRepository) ListKnownOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, models.StoreError(err, "list users")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, models.StoreError(err, "scan user")
		}
		ids = append(ids, id)
	}
	return ids, models.StoreError(rows.Err(), "list users")
}
