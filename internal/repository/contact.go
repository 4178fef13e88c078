package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/hray3182/gabay/internal/database"
	"github.com/hray3182/gabay/internal/models"
	"github.com/jackc/pgx/v5"
)

type ContactRepository struct {
	db *database.DB
}

func NewContactRepository(db *database.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) SaveContact(ctx context.Context, ownerID, name, channelID string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return models.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(channelID) == "" {
		return models.NewValidationError("channel_id", "is required")
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO contacts (owner_id, name, channel_id) VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, name) DO UPDATE SET channel_id = EXCLUDED.channel_id, updated_at = NOW()`,
		ownerID, name, channelID,
	)
	return models.StoreError(err, "save contact")
}

func (r *ContactRepository) ResolveRecipient(ctx context.Context, ownerID, name string) (string, bool, error) {
	var channel string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT channel_id FROM contacts WHERE owner_id = $1 AND name = $2`,
		ownerID, strings.ToLower(strings.TrimSpace(name)),
	).Scan(&channel)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, models.StoreError(err, "resolve contact")
	}
	return channel, true, nil
}

func (r *ContactRepository) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT owner_id, name, channel_id FROM contacts WHERE owner_id = $1 ORDER BY name`,
		ownerID,
	)
	if err != nil {
		return nil, models.StoreError(err, "list contacts")
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.OwnerID, &c.Name, &c.ChannelID); err != nil {
			return nil, models.StoreError(err, "scan contact")
		}
		contacts = append(contacts, c)
	}
	return contacts, models.StoreError(rows.Err(), "list contacts")
}
