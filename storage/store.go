package storage

import (
	"context"
	"time"
)

// Store is a JSON document of values addressed by top level keys.
type Store interface {
	Set(ctx context.Context, key string, value interface{}) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// Len is the number of keys in the document.
	Len() int

	// Backup returns the whole document.
	Backup() ([]byte, error)

	Close() error
}

// Session is the registry record of one live connection.
type Session struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	Username    string    `json:"username,omitempty"`
	State       string    `json:"state"`
	ConnectedAt time.Time `json:"connected_at"`
}
