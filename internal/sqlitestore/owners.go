package sqlitestore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/models"
)

func (s *Store) TouchUser(ctx context.Context, userID, name string) (*models.User, error) {
	var created int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name
		 RETURNING created_at`,
		userID, name, millis(s.now()),
	).Scan(&created)
	if err != nil {
		return nil, models.StoreError(err, "upsert user")
	}
	return &models.User{ID: userID, Name: name, CreatedAt: time.UnixMilli(created).UTC()}, nil
}

func (s *Store) ListKnownOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at ASC, id ASC`)
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

func (s *Store) SaveContact(ctx context.Context, ownerID, name, channelID string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return models.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(channelID) == "" {
		return models.NewValidationError("channel_id", "is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (owner_id, name, channel_id) VALUES (?, ?, ?)
		 ON CONFLICT (owner_id, name) DO UPDATE SET channel_id = excluded.channel_id`,
		ownerID, name, channelID,
	)
	return models.StoreError(err, "save contact")
}

func (s *Store) ResolveRecipient(ctx context.Context, ownerID, name string) (string, bool, error) {
	var channel string
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id FROM contacts WHERE owner_id = ? AND name = ?`,
		ownerID, strings.ToLower(strings.TrimSpace(name)),
	).Scan(&channel)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, models.StoreError(err, "resolve contact")
	}
	return channel, true, nil
}

func (s *Store) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT owner_id, name, channel_id FROM contacts WHERE owner_id = ? ORDER BY name`,
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
