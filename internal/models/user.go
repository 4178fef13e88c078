package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact maps a lower-cased name to a delivery channel for one owner.
type Contact struct {
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	ChannelID string `json:"channel_id"`
}
